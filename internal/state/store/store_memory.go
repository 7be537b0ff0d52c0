package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"complyflow/internal/state/models"
	"complyflow/pkg/platform/sentinel"
)

// MemoryCurrentStore is the in-memory CurrentStore used by unit tests and
// local runs.
type MemoryCurrentStore struct {
	mu     sync.RWMutex
	states map[string]*models.EntityComplianceState
}

func NewMemoryCurrentStore() *MemoryCurrentStore {
	return &MemoryCurrentStore{states: make(map[string]*models.EntityComplianceState)}
}

func (s *MemoryCurrentStore) Get(ctx context.Context, entityID string) (*models.EntityComplianceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[entityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneState(st), nil
}

func (s *MemoryCurrentStore) Put(ctx context.Context, state *models.EntityComplianceState, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if prev, ok := s.states[state.EntityID]; ok {
		current = prev.CalculationVersion
	}
	if current != expectedVersion {
		return sentinel.ErrStale
	}
	s.states[state.EntityID] = cloneState(state)
	return nil
}

// MemoryHistoryStore is the in-memory HistoryStore.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	records map[string][]models.HistoryRecord
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{records: make(map[string][]models.HistoryRecord)}
}

func (s *MemoryHistoryStore) Append(ctx context.Context, rec *models.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.State = *cloneState(&rec.State)
	s.records[rec.EntityID] = append(s.records[rec.EntityID], cp)
	return nil
}

func (s *MemoryHistoryStore) List(ctx context.Context, entityID string, from, to time.Time, limit int) ([]models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.HistoryRecord
	for _, rec := range s.records[entityID] {
		if !from.IsZero() && rec.RecordedAt.Before(from) {
			continue
		}
		if !to.IsZero() && rec.RecordedAt.After(to) {
			continue
		}
		out = append(out, rec)
	}
	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryLogStore is the in-memory LogStore.
type MemoryLogStore struct {
	mu      sync.RWMutex
	entries map[string][]models.CalculationLog
}

func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{entries: make(map[string][]models.CalculationLog)}
}

func (s *MemoryLogStore) Append(ctx context.Context, entry *models.CalculationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	s.entries[entry.EntityID] = append(s.entries[entry.EntityID], cp)
	return nil
}

func (s *MemoryLogStore) List(ctx context.Context, entityID string, limit int) ([]models.CalculationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.entries[entityID]
	out := make([]models.CalculationLog, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// cloneState deep-copies through JSON so callers can never mutate stored
// requirement or domain slices.
func cloneState(st *models.EntityComplianceState) *models.EntityComplianceState {
	raw, err := json.Marshal(st)
	if err != nil {
		panic("state is not serializable: " + err.Error())
	}
	var cp models.EntityComplianceState
	if err := json.Unmarshal(raw, &cp); err != nil {
		panic("state round-trip failed: " + err.Error())
	}
	return &cp
}
