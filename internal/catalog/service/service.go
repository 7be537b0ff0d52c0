package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"complyflow/internal/catalog/models"
	"complyflow/internal/catalog/store"
	"complyflow/pkg/domainerrors"
	"complyflow/pkg/platform/sentinel"
)

// Service owns catalog administration. Writes are versioned: an update never
// touches the stored version a past calculation referenced, it retires it and
// inserts the successor.
type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

func New(st store.Store, logger *slog.Logger) (*Service, error) {
	if st == nil {
		return nil, errors.New("catalog store is required")
	}
	return &Service{store: st, logger: logger, now: time.Now}, nil
}

// Create inserts version 1 of a new rule.
func (s *Service) Create(ctx context.Context, rule *models.ComplianceRule) (*models.ComplianceRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeBadRequest, "invalid rule definition: "+err.Error(), err)
	}
	if _, err := s.store.GetLatest(ctx, rule.RuleID); err == nil {
		return nil, domainerrors.New(domainerrors.CodeConflict, "rule already exists: "+rule.RuleID)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "catalog lookup failed", err)
	}

	now := s.now()
	rule.Version = 1
	rule.IsActive = true
	if rule.EffectiveFrom.IsZero() {
		rule.EffectiveFrom = now
	}
	rule.EffectiveUntil = nil
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.store.Save(ctx, rule); err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "failed to save rule", err)
	}
	s.logger.InfoContext(ctx, "rule created", "rule_id", rule.RuleID, "domain", rule.Domain)
	return rule, nil
}

// Update saves the next version of an existing rule. The updated definition
// replaces the rule going forward only.
func (s *Service) Update(ctx context.Context, rule *models.ComplianceRule) (*models.ComplianceRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeBadRequest, "invalid rule definition: "+err.Error(), err)
	}
	prev, err := s.store.GetLatest(ctx, rule.RuleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "rule not found: "+rule.RuleID)
		}
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "catalog lookup failed", err)
	}

	now := s.now()
	rule.Version = prev.Version + 1
	rule.IsActive = true
	if rule.EffectiveFrom.IsZero() || rule.EffectiveFrom.Before(prev.EffectiveFrom) {
		rule.EffectiveFrom = now
	}
	rule.EffectiveUntil = nil
	rule.CreatedAt = prev.CreatedAt
	rule.UpdatedAt = now

	if err := s.store.Save(ctx, rule); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, domainerrors.Wrap(domainerrors.CodeConflict, "concurrent rule update", err)
		}
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "failed to save rule", err)
	}
	s.logger.InfoContext(ctx, "rule updated",
		"rule_id", rule.RuleID, "version", rule.Version)
	return rule, nil
}

// Deactivate retires a rule from future calculations without deleting its
// history.
func (s *Service) Deactivate(ctx context.Context, ruleID string) error {
	if err := s.store.Deactivate(ctx, ruleID, s.now()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "rule not found: "+ruleID)
		}
		return domainerrors.Wrap(domainerrors.CodeInternal, "failed to deactivate rule", err)
	}
	s.logger.InfoContext(ctx, "rule deactivated", "rule_id", ruleID)
	return nil
}

// Get returns the latest version of a rule.
func (s *Service) Get(ctx context.Context, ruleID string) (*models.ComplianceRule, error) {
	rule, err := s.store.GetLatest(ctx, ruleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "rule not found: "+ruleID)
		}
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "catalog lookup failed", err)
	}
	return rule, nil
}

// ActiveRules returns the rule set and the catalog version the calculation
// should snapshot. Both come from the same store so a run sees a consistent
// pair.
func (s *Service) ActiveRules(ctx context.Context, at time.Time) ([]*models.ComplianceRule, int64, error) {
	version, err := s.store.CatalogVersion(ctx)
	if err != nil {
		return nil, 0, domainerrors.Wrap(domainerrors.CodeUnavailable, "catalog unavailable", err)
	}
	rules, err := s.store.ListActive(ctx, at)
	if err != nil {
		return nil, 0, domainerrors.Wrap(domainerrors.CodeUnavailable, "catalog unavailable", err)
	}
	return rules, version, nil
}

// List returns every active rule.
func (s *Service) List(ctx context.Context) ([]*models.ComplianceRule, error) {
	rules, _, err := s.ActiveRules(ctx, s.now())
	return rules, err
}
