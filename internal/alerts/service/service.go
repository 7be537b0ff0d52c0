package service

import (
	"context"
	"errors"
	"log/slog"

	"complyflow/internal/alerts/models"
	"complyflow/internal/alerts/store"
	"complyflow/pkg/domainerrors"
	"complyflow/pkg/platform/sentinel"
)

// Service owns the alert read and lifecycle surface. Alerts are created only
// by the calculation pipeline; this service never raises them.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

func New(st store.Store, logger *slog.Logger) (*Service, error) {
	if st == nil {
		return nil, errors.New("alert store is required")
	}
	return &Service{store: st, logger: logger}, nil
}

// List returns an entity's alerts, optionally filtered by severity and
// status.
func (s *Service) List(ctx context.Context, entityID string, severity models.Severity, status models.Status) ([]models.Alert, error) {
	if severity != "" && !models.Severities[severity] {
		return nil, domainerrors.Newf(domainerrors.CodeBadRequest, "unknown severity %q", severity)
	}
	if status != "" && status != models.StatusActive && status != models.StatusAcknowledged {
		return nil, domainerrors.Newf(domainerrors.CodeBadRequest, "unknown status %q", status)
	}
	alerts, err := s.store.List(ctx, entityID, store.Filter{Severity: severity, Status: status})
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "failed to list alerts", err)
	}
	return alerts, nil
}

// Acknowledge closes an active alert and records who did it.
func (s *Service) Acknowledge(ctx context.Context, id, actor string) (*models.Alert, error) {
	if actor == "" {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "acknowledging actor is required")
	}
	alert, err := s.store.Acknowledge(ctx, id, actor)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, domainerrors.New(domainerrors.CodeNotFound, "alert not found: "+id)
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, domainerrors.New(domainerrors.CodeConflict, "alert already acknowledged: "+id)
		}
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "failed to acknowledge alert", err)
	}
	s.logger.InfoContext(ctx, "alert acknowledged",
		"alert_id", id, "entity_id", alert.EntityID, "actor", actor)
	return alert, nil
}
