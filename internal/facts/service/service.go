package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"complyflow/internal/engine"
	"complyflow/internal/facts/models"
	"complyflow/internal/facts/store"
	"complyflow/pkg/domainerrors"
	"complyflow/pkg/platform/sentinel"
)

// Service owns entity fact intake and snapshot assembly. The calculation
// pipeline never reads fact tables directly, it asks for a Snapshot.
type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

func New(st store.Store, logger *slog.Logger) (*Service, error) {
	if st == nil {
		return nil, errors.New("facts store is required")
	}
	return &Service{store: st, logger: logger, now: time.Now}, nil
}

// Snapshot assembles the immutable input for one entity's calculation. All
// fact reads happen here; a failure of any read fails the whole snapshot so
// a calculation never runs against partial facts.
func (s *Service) Snapshot(ctx context.Context, entityID string) (*engine.Input, error) {
	profile, err := s.store.GetProfile(ctx, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "entity not found: "+entityID)
		}
		return nil, domainerrors.Wrap(domainerrors.CodeUnavailable, "failed to load entity profile", err)
	}
	services, err := s.store.ListServices(ctx, entityID)
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeUnavailable, "failed to load services", err)
	}
	documents, err := s.store.ListDocuments(ctx, entityID)
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeUnavailable, "failed to load documents", err)
	}
	filings, err := s.store.ListFilings(ctx, entityID)
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeUnavailable, "failed to load filings", err)
	}

	in := &engine.Input{
		EntityID:               profile.EntityID,
		EntityType:             profile.EntityType,
		IncorporationDate:      profile.IncorporationDate,
		State:                  profile.State,
		AnnualTurnover:         profile.AnnualTurnover,
		EmployeeCount:          profile.EmployeeCount,
		GSTRegistered:          profile.GSTRegistered,
		PFRegistered:           profile.PFRegistered,
		ESIRegistered:          profile.ESIRegistered,
		HasForeignTransactions: profile.HasForeignTransactions,
		CapturedAt:             s.now().UTC(),
	}
	for _, svc := range services {
		in.Services = append(in.Services, engine.ServiceSnapshot{
			ServiceKey:    svc.ServiceKey,
			Status:        svc.Status,
			DueDate:       svc.DueDate,
			LastCompleted: svc.LastCompleted,
		})
	}
	for _, doc := range documents {
		in.Documents = append(in.Documents, engine.DocumentSnapshot{
			Type:      doc.Type,
			Uploaded:  doc.Uploaded,
			Approved:  doc.Approved,
			ExpiresAt: doc.ExpiresAt,
		})
	}
	for _, f := range filings {
		in.Filings = append(in.Filings, engine.FilingSnapshot{
			Type:        f.Type,
			FiledAt:     f.FiledAt,
			PeriodStart: f.PeriodStart,
			PeriodEnd:   f.PeriodEnd,
		})
	}
	in.Normalize()
	return in, nil
}

// UpsertProfile creates or replaces an entity profile.
func (s *Service) UpsertProfile(ctx context.Context, p *models.EntityProfile) error {
	if err := p.Validate(); err != nil {
		return domainerrors.Wrap(domainerrors.CodeBadRequest, "invalid profile: "+err.Error(), err)
	}
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return domainerrors.Wrap(domainerrors.CodeInternal, "failed to save profile", err)
	}
	s.logger.InfoContext(ctx, "entity profile saved", "entity_id", p.EntityID)
	return nil
}

// GetProfile returns one entity profile.
func (s *Service) GetProfile(ctx context.Context, entityID string) (*models.EntityProfile, error) {
	p, err := s.store.GetProfile(ctx, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "entity not found: "+entityID)
		}
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "failed to load profile", err)
	}
	return p, nil
}

// ListEntityIDs returns every registered entity, for the scheduled sweep.
func (s *Service) ListEntityIDs(ctx context.Context) ([]string, error) {
	ids, err := s.store.ListEntityIDs(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "failed to list entities", err)
	}
	return ids, nil
}

// UpsertService records the status of one engaged service.
func (s *Service) UpsertService(ctx context.Context, svc *models.ServiceStatus) error {
	if svc.EntityID == "" || svc.ServiceKey == "" {
		return domainerrors.New(domainerrors.CodeBadRequest, "entityId and serviceKey are required")
	}
	if err := s.requireEntity(ctx, svc.EntityID); err != nil {
		return err
	}
	if err := s.store.UpsertService(ctx, svc); err != nil {
		return domainerrors.Wrap(domainerrors.CodeInternal, "failed to save service status", err)
	}
	return nil
}

// UpsertDocument records the status of one document type.
func (s *Service) UpsertDocument(ctx context.Context, doc *models.DocumentStatus) error {
	if doc.EntityID == "" || doc.Type == "" {
		return domainerrors.New(domainerrors.CodeBadRequest, "entityId and type are required")
	}
	if err := s.requireEntity(ctx, doc.EntityID); err != nil {
		return err
	}
	if err := s.store.UpsertDocument(ctx, doc); err != nil {
		return domainerrors.Wrap(domainerrors.CodeInternal, "failed to save document status", err)
	}
	return nil
}

// AddFiling records one completed statutory filing.
func (s *Service) AddFiling(ctx context.Context, f *models.FilingRecord) error {
	if f.EntityID == "" || f.Type == "" {
		return domainerrors.New(domainerrors.CodeBadRequest, "entityId and type are required")
	}
	if f.FiledAt.IsZero() || f.PeriodEnd.IsZero() {
		return domainerrors.New(domainerrors.CodeBadRequest, "filedAt and periodEnd are required")
	}
	if f.PeriodStart.After(f.PeriodEnd) {
		return domainerrors.New(domainerrors.CodeBadRequest,
			fmt.Sprintf("periodStart %s is after periodEnd %s",
				f.PeriodStart.Format(time.DateOnly), f.PeriodEnd.Format(time.DateOnly)))
	}
	if err := s.requireEntity(ctx, f.EntityID); err != nil {
		return err
	}
	if err := s.store.AddFiling(ctx, f); err != nil {
		return domainerrors.Wrap(domainerrors.CodeInternal, "failed to record filing", err)
	}
	s.logger.InfoContext(ctx, "filing recorded",
		"entity_id", f.EntityID, "filing_type", f.Type,
		"period_end", f.PeriodEnd.Format(time.DateOnly))
	return nil
}

func (s *Service) requireEntity(ctx context.Context, entityID string) error {
	if _, err := s.store.GetProfile(ctx, entityID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "entity not found: "+entityID)
		}
		return domainerrors.Wrap(domainerrors.CodeInternal, "failed to load profile", err)
	}
	return nil
}
