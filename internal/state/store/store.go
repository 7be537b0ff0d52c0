package store

import (
	"context"
	"time"

	"complyflow/internal/state/models"
)

// CurrentStore holds the single live state row per entity.
//
// Put enforces optimistic concurrency: expectedVersion is the
// CalculationVersion the caller read before computing (0 for a first
// calculation). A mismatch returns sentinel.ErrStale and leaves the stored
// state untouched.
type CurrentStore interface {
	Get(ctx context.Context, entityID string) (*models.EntityComplianceState, error)
	Put(ctx context.Context, state *models.EntityComplianceState, expectedVersion int64) error
}

// HistoryStore is append-only.
type HistoryStore interface {
	Append(ctx context.Context, rec *models.HistoryRecord) error
	List(ctx context.Context, entityID string, from, to time.Time, limit int) ([]models.HistoryRecord, error)
}

// LogStore records every calculation attempt, committed or not.
type LogStore interface {
	Append(ctx context.Context, entry *models.CalculationLog) error
	List(ctx context.Context, entityID string, limit int) ([]models.CalculationLog, error)
}
