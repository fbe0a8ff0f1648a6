package store

import (
	"context"
	"sort"
	"sync"

	"covenant/internal/consent/models"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

// InMemoryStore keeps consent records in process memory. Records are cloned
// on the way in and out so callers never alias stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.PrincipalID]map[id.PurposeID]*models.ConsentRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.PrincipalID]map[id.PurposeID]*models.ConsentRecord)}
}

func (s *InMemoryStore) Get(_ context.Context, principalID id.PrincipalID, purposeID id.PurposeID) (*models.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[principalID][purposeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, record *models.ConsentRecord, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byPurpose, ok := s.records[record.PrincipalID]
	if !ok {
		byPurpose = make(map[id.PurposeID]*models.ConsentRecord)
		s.records[record.PrincipalID] = byPurpose
	}

	current, exists := byPurpose[record.PurposeID]
	switch {
	case !exists && expectedVersion != 0:
		return sentinel.ErrConflict
	case exists && current.Version != expectedVersion:
		return sentinel.ErrConflict
	}

	stored := record.Clone()
	stored.Version = expectedVersion + 1
	byPurpose[record.PurposeID] = stored
	record.Version = stored.Version
	return nil
}

func (s *InMemoryStore) ListByPrincipal(_ context.Context, principalID id.PrincipalID) ([]*models.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPurpose := s.records[principalID]
	out := make([]*models.ConsentRecord, 0, len(byPurpose))
	for _, record := range byPurpose {
		out = append(out, record.Clone())
	}
	// Stable order keeps handler output and tests deterministic.
	sort.Slice(out, func(i, j int) bool { return out[i].PurposeID < out[j].PurposeID })
	return out, nil
}

func (s *InMemoryStore) ReplaceAll(_ context.Context, principalID id.PrincipalID, records []*models.ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byPurpose := make(map[id.PurposeID]*models.ConsentRecord, len(records))
	for _, record := range records {
		stored := record.Clone()
		if stored.Version == 0 {
			stored.Version = 1
		}
		byPurpose[record.PurposeID] = stored
		record.Version = stored.Version
	}
	s.records[principalID] = byPurpose
	return nil
}
