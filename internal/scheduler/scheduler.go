package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"complyflow/internal/state/models"
)

// Calculator runs one entity's calculation.
type Calculator interface {
	Calculate(ctx context.Context, entityID string, trigger models.Trigger) (*models.EntityComplianceState, error)
}

// EntityLister enumerates entities for the sweep.
type EntityLister interface {
	ListEntityIDs(ctx context.Context) ([]string, error)
}

// Sweeper recalculates every entity on a cron schedule. Entities run with
// bounded parallelism; a failure for one entity never stops the sweep.
type Sweeper struct {
	calculator  Calculator
	entities    EntityLister
	logger      *slog.Logger
	parallelism int

	cron *cron.Cron
}

func NewSweeper(calc Calculator, entities EntityLister, parallelism int, logger *slog.Logger) *Sweeper {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Sweeper{
		calculator:  calc,
		entities:    entities,
		logger:      logger,
		parallelism: parallelism,
	}
}

// Start schedules the sweep. The schedule uses standard five-field cron
// syntax.
func (s *Sweeper) Start(schedule string) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("sweep scheduled", "schedule", schedule, "parallelism", s.parallelism)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep recalculates all entities once. Exposed for manual invocation.
func (s *Sweeper) Sweep(ctx context.Context) {
	started := time.Now()
	ids, err := s.entities.ListEntityIDs(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep aborted, entity listing failed", "error", err)
		return
	}

	var failed int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	results := make(chan error, len(ids))
	for _, id := range ids {
		entityID := id
		g.Go(func() error {
			_, err := s.calculator.Calculate(gctx, entityID, models.TriggerAuto)
			if err != nil {
				s.logger.WarnContext(gctx, "sweep calculation failed",
					"entity_id", entityID, "error", err)
			}
			results <- err
			// Errors are reported per entity, never propagated, so one bad
			// entity cannot cancel the group.
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.ErrorContext(ctx, "sweep group error", "error", err)
	}
	close(results)
	for err := range results {
		if err != nil {
			failed++
		}
	}

	s.logger.InfoContext(ctx, "sweep finished",
		"entities", len(ids),
		"failed", failed,
		"duration_ms", time.Since(started).Milliseconds())
}
