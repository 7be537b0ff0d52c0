package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"complyflow/internal/alerts/models"
	"complyflow/pkg/platform/sentinel"
)

// MemoryStore is the in-memory Store used by unit tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	alerts map[string]*models.Alert
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{alerts: make(map[string]*models.Alert), now: time.Now}
}

func (s *MemoryStore) Upsert(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.alerts {
		if existing.Status == models.StatusActive &&
			existing.EntityID == alert.EntityID &&
			existing.RuleID == alert.RuleID &&
			existing.Type == alert.Type {
			existing.Severity = alert.Severity
			existing.Title = alert.Title
			existing.Message = alert.Message
			existing.TriggeredAt = alert.TriggeredAt
			alert.ID = existing.ID
			return nil
		}
	}
	cp := *alert
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.Status = models.StatusActive
	s.alerts[cp.ID] = &cp
	alert.ID = cp.ID
	return nil
}

func (s *MemoryStore) List(ctx context.Context, entityID string, f Filter) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Alert
	for _, a := range s.alerts {
		if a.EntityID != entityID {
			continue
		}
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TriggeredAt.Equal(out[j].TriggeredAt) {
			return out[i].TriggeredAt.After(out[j].TriggeredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) Acknowledge(ctx context.Context, id, actor string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if a.Status != models.StatusActive {
		return nil, sentinel.ErrInvalidState
	}
	now := s.now().UTC()
	a.Status = models.StatusAcknowledged
	a.AcknowledgedAt = &now
	a.AcknowledgedBy = actor
	cp := *a
	return &cp, nil
}
