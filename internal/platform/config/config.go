package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr          string
	PostgresURL   string
	RedisURL      string
	JWTSigningKey string

	// SweepSchedule is a cron expression for the periodic AUTO recalculation
	// sweep. Empty disables the scheduler.
	SweepSchedule string
	// SweepParallelism bounds how many entities recalculate concurrently
	// during a sweep.
	SweepParallelism int

	// PenaltyAlertThreshold is the absolute exposure at which a PENALTY_RISK
	// alert fires for a requirement.
	PenaltyAlertThreshold decimal.Decimal

	// SkipUnchanged short-circuits AUTO recalculations whose input hash and
	// catalog version match the previous run.
	SkipUnchanged bool

	// SeedCatalog loads the built-in rule set on startup when the catalog is
	// empty. Intended for dev and for fresh installs.
	SeedCatalog bool

	ShutdownTimeout time.Duration
}

// FromEnv builds a Config from environment variables with dev defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:                  getenv("COMPLYFLOW_ADDR", ":8080"),
		PostgresURL:           os.Getenv("COMPLYFLOW_POSTGRES_URL"),
		RedisURL:              os.Getenv("COMPLYFLOW_REDIS_URL"),
		JWTSigningKey:         getenv("COMPLYFLOW_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SweepSchedule:         getenv("COMPLYFLOW_SWEEP_SCHEDULE", "@hourly"),
		SweepParallelism:      getint("COMPLYFLOW_SWEEP_PARALLELISM", 8),
		PenaltyAlertThreshold: getdecimal("COMPLYFLOW_PENALTY_ALERT_THRESHOLD", decimal.NewFromInt(10000)),
		SkipUnchanged:         getenv("COMPLYFLOW_SKIP_UNCHANGED", "true") == "true",
		SeedCatalog:           getenv("COMPLYFLOW_SEED_CATALOG", "true") == "true",
		ShutdownTimeout:       10 * time.Second,
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getdecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return fallback
}
