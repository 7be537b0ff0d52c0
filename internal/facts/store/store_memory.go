package store

import (
	"context"
	"sort"
	"sync"

	"complyflow/internal/facts/models"
	"complyflow/pkg/platform/sentinel"
)

// MemoryStore keeps entity facts in process memory for dev mode and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	profiles  map[string]*models.EntityProfile
	services  map[string]map[string]models.ServiceStatus
	documents map[string]map[string]models.DocumentStatus
	filings   map[string][]models.FilingRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:  make(map[string]*models.EntityProfile),
		services:  make(map[string]map[string]models.ServiceStatus),
		documents: make(map[string]map[string]models.DocumentStatus),
		filings:   make(map[string][]models.FilingRecord),
	}
}

func (s *MemoryStore) UpsertProfile(ctx context.Context, profile *models.EntityProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *profile
	s.profiles[profile.EntityID] = &cp
	return nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, entityID string) (*models.EntityProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[entityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListEntityIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) UpsertService(ctx context.Context, svc *models.ServiceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.services[svc.EntityID] == nil {
		s.services[svc.EntityID] = make(map[string]models.ServiceStatus)
	}
	s.services[svc.EntityID][svc.ServiceKey] = *svc
	return nil
}

func (s *MemoryStore) ListServices(ctx context.Context, entityID string) ([]models.ServiceStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ServiceStatus
	for _, svc := range s.services[entityID] {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceKey < out[j].ServiceKey })
	return out, nil
}

func (s *MemoryStore) UpsertDocument(ctx context.Context, doc *models.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.documents[doc.EntityID] == nil {
		s.documents[doc.EntityID] = make(map[string]models.DocumentStatus)
	}
	s.documents[doc.EntityID][doc.Type] = *doc
	return nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context, entityID string) ([]models.DocumentStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DocumentStatus
	for _, doc := range s.documents[entityID] {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (s *MemoryStore) AddFiling(ctx context.Context, filing *models.FilingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filings[filing.EntityID] = append(s.filings[filing.EntityID], *filing)
	return nil
}

func (s *MemoryStore) ListFilings(ctx context.Context, entityID string) ([]models.FilingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FilingRecord, len(s.filings[entityID]))
	copy(out, s.filings[entityID])
	return out, nil
}
