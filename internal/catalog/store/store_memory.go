package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"complyflow/internal/catalog/models"
	"complyflow/pkg/platform/sentinel"
)

// MemoryStore is the in-memory catalog used in dev mode and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	rules   map[string][]*models.ComplianceRule // ruleID -> versions ascending
	version int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rules: make(map[string][]*models.ComplianceRule)}
}

func (s *MemoryStore) Save(ctx context.Context, rule *models.ComplianceRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.rules[rule.RuleID]
	if len(versions) > 0 {
		prev := versions[len(versions)-1]
		if rule.Version != prev.Version+1 {
			return fmt.Errorf("version %d after %d: %w", rule.Version, prev.Version, sentinel.ErrConflict)
		}
		until := rule.EffectiveFrom
		prev.EffectiveUntil = &until
		prev.IsActive = false
	} else if rule.Version != 1 {
		return fmt.Errorf("first version must be 1: %w", sentinel.ErrConflict)
	}

	cp := *rule
	s.rules[rule.RuleID] = append(versions, &cp)
	s.version++
	return nil
}

func (s *MemoryStore) GetLatest(ctx context.Context, ruleID string) (*models.ComplianceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.rules[ruleID]
	if len(versions) == 0 {
		return nil, sentinel.ErrNotFound
	}
	cp := *versions[len(versions)-1]
	return &cp, nil
}

func (s *MemoryStore) GetVersion(ctx context.Context, ruleID string, version int) (*models.ComplianceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rules[ruleID] {
		if r.Version == version {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) ListActive(ctx context.Context, at time.Time) ([]*models.ComplianceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ComplianceRule
	for _, versions := range s.rules {
		latest := versions[len(versions)-1]
		if latest.EffectiveAt(at) {
			cp := *latest
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out, nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, ruleID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.rules[ruleID]
	if len(versions) == 0 {
		return sentinel.ErrNotFound
	}
	latest := versions[len(versions)-1]
	latest.IsActive = false
	latest.EffectiveUntil = &at
	latest.UpdatedAt = at
	s.version++
	return nil
}

func (s *MemoryStore) CatalogVersion(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}
