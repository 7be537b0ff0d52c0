package store

import (
	"context"

	"complyflow/internal/facts/models"
)

// Store is the persistence contract for entity facts.
type Store interface {
	UpsertProfile(ctx context.Context, profile *models.EntityProfile) error
	GetProfile(ctx context.Context, entityID string) (*models.EntityProfile, error)
	ListEntityIDs(ctx context.Context) ([]string, error)

	UpsertService(ctx context.Context, svc *models.ServiceStatus) error
	ListServices(ctx context.Context, entityID string) ([]models.ServiceStatus, error)

	UpsertDocument(ctx context.Context, doc *models.DocumentStatus) error
	ListDocuments(ctx context.Context, entityID string) ([]models.DocumentStatus, error)

	AddFiling(ctx context.Context, filing *models.FilingRecord) error
	ListFilings(ctx context.Context, entityID string) ([]models.FilingRecord, error)
}
