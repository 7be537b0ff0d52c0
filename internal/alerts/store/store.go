package store

import (
	"context"

	"complyflow/internal/alerts/models"
)

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Severity models.Severity
	Status   models.Status
}

// Store persists alerts.
//
// Upsert keeps at most one ACTIVE alert per (entityId, ruleId, alertType):
// re-raising updates the existing row in place instead of duplicating it.
// Acknowledged alerts are history and are never reused.
type Store interface {
	Upsert(ctx context.Context, alert *models.Alert) error
	List(ctx context.Context, entityID string, f Filter) ([]models.Alert, error)
	Get(ctx context.Context, id string) (*models.Alert, error)
	Acknowledge(ctx context.Context, id, actor string) (*models.Alert, error)
}
