package auditlog

import (
	"context"
	"sync"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]Entry)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string][]Entry)
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.PrincipalID] = append(s.entries[entry.PrincipalID], entry)
	return nil
}

func (s *InMemoryStore) ListByPrincipal(_ context.Context, principalID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.entries[principalID]...), nil
}

func (s *InMemoryStore) ListByActions(_ context.Context, principalID string, actions []Action) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[Action]bool, len(actions))
	for _, a := range actions {
		wanted[a] = true
	}

	var out []Entry
	for _, e := range s.entries[principalID] {
		if wanted[e.Action] {
			out = append(out, e)
		}
	}
	return out, nil
}
