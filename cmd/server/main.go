package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	alerthandler "complyflow/internal/alerts/handler"
	alertservice "complyflow/internal/alerts/service"
	alertstore "complyflow/internal/alerts/store"
	cataloghandler "complyflow/internal/catalog/handler"
	catalogservice "complyflow/internal/catalog/service"
	catalogstore "complyflow/internal/catalog/store"
	factshandler "complyflow/internal/facts/handler"
	factsservice "complyflow/internal/facts/service"
	factsstore "complyflow/internal/facts/store"
	statehandler "complyflow/internal/state/handler"
	stateservice "complyflow/internal/state/service"
	statestore "complyflow/internal/state/store"

	"complyflow/internal/alerts/differ"
	"complyflow/internal/platform/config"
	"complyflow/internal/platform/httpserver"
	"complyflow/internal/platform/logger"
	"complyflow/internal/platform/metrics"
	"complyflow/internal/platform/middleware"
	"complyflow/internal/platform/postgres"
	"complyflow/internal/platform/redis"
	"complyflow/internal/scheduler"
	httptransport "complyflow/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
	}

	cache, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	var (
		catStore     catalogstore.Store
		factStore    factsstore.Store
		currentStore statestore.CurrentStore
		historyStore statestore.HistoryStore
		logStore     statestore.LogStore
		alStore      alertstore.Store
	)
	if db != nil {
		catStore = catalogstore.NewPostgresStore(db)
		factStore = factsstore.NewPostgresStore(db)
		currentStore = statestore.NewPostgresCurrentStore(db)
		historyStore = statestore.NewPostgresHistoryStore(db)
		logStore = statestore.NewPostgresLogStore(db)
		alStore = alertstore.NewPostgresStore(db)
	} else {
		log.Warn("postgres not configured, using in-memory stores")
		catStore = catalogstore.NewMemoryStore()
		factStore = factsstore.NewMemoryStore()
		currentStore = statestore.NewMemoryCurrentStore()
		historyStore = statestore.NewMemoryHistoryStore()
		logStore = statestore.NewMemoryLogStore()
		alStore = alertstore.NewMemoryStore()
	}

	if cfg.SeedCatalog {
		if err := catalogstore.Seed(ctx, catStore); err != nil {
			log.Error("catalog seed failed", "error", err)
			os.Exit(1)
		}
	}

	m := metrics.New()

	catalogSvc, err := catalogservice.New(catStore, log)
	if err != nil {
		log.Error("catalog service init failed", "error", err)
		os.Exit(1)
	}
	factsSvc, err := factsservice.New(factStore, log)
	if err != nil {
		log.Error("facts service init failed", "error", err)
		os.Exit(1)
	}
	alertSvc, err := alertservice.New(alStore, log)
	if err != nil {
		log.Error("alert service init failed", "error", err)
		os.Exit(1)
	}
	stateSvc, err := stateservice.New(stateservice.Config{
		Current:       currentStore,
		History:       historyStore,
		Logs:          logStore,
		Alerts:        alStore,
		Facts:         factsSvc,
		Catalog:       catalogSvc,
		Differ:        differ.New(cfg.PenaltyAlertThreshold),
		Cache:         cache,
		Metrics:       m,
		Logger:        log,
		SkipUnchanged: cfg.SkipUnchanged,
	})
	if err != nil {
		log.Error("state service init failed", "error", err)
		os.Exit(1)
	}

	health := map[string]httptransport.HealthChecker{}
	if db != nil {
		health["postgres"] = httptransport.HealthFunc(func(ctx context.Context) error {
			return postgres.Health(ctx, db)
		})
	}
	if cache != nil {
		health["redis"] = cache
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Catalog:        cataloghandler.New(catalogSvc, log),
		State:          statehandler.New(stateSvc, log),
		Facts:          factshandler.New(factsSvc, log),
		Alerts:         alerthandler.New(alertSvc, log),
		AdminValidator: middleware.NewAdminValidator(cfg.JWTSigningKey),
		Logger:         log,
		Health:         health,
	})

	sweeper := scheduler.NewSweeper(stateSvc, factsSvc, cfg.SweepParallelism, log)
	if cfg.SweepSchedule != "" {
		if err := sweeper.Start(cfg.SweepSchedule); err != nil {
			log.Error("sweep schedule invalid", "schedule", cfg.SweepSchedule, "error", err)
			os.Exit(1)
		}
	}

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
