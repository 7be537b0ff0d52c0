package store

import (
	"context"
	"time"

	"complyflow/internal/catalog/models"
)

// Store is the persistence contract for the rule catalog. The catalog is
// read-mostly: calculations list active rules, administrators occasionally
// write new versions.
type Store interface {
	// Save inserts a new (ruleId, version) row. When a prior version exists
	// it is retired (effectiveUntil set, no longer active) in the same
	// operation. Every successful Save bumps the catalog version.
	Save(ctx context.Context, rule *models.ComplianceRule) error
	// GetLatest returns the highest version of a rule, active or not.
	GetLatest(ctx context.Context, ruleID string) (*models.ComplianceRule, error)
	// GetVersion returns one specific historical version.
	GetVersion(ctx context.Context, ruleID string, version int) (*models.ComplianceRule, error)
	// ListActive returns the latest version of every rule effective at the
	// given instant.
	ListActive(ctx context.Context, at time.Time) ([]*models.ComplianceRule, error)
	// Deactivate retires the latest version of a rule. Bumps the catalog
	// version.
	Deactivate(ctx context.Context, ruleID string, at time.Time) error
	// CatalogVersion is a counter incremented by every administrative write.
	// Calculations snapshot it once at the start of a run.
	CatalogVersion(ctx context.Context) (int64, error)
}
