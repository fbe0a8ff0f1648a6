package certificate

import (
	"context"
	"sort"
	"sync"

	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

// Store persists issued certificates.
type Store interface {
	Save(ctx context.Context, cert *Certificate) error
	Get(ctx context.Context, certID id.CertificateID) (*Certificate, error)
	ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*Certificate, error)
}

type InMemoryStore struct {
	mu    sync.RWMutex
	certs map[id.CertificateID]*Certificate
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{certs: make(map[id.CertificateID]*Certificate)}
}

func (s *InMemoryStore) Save(_ context.Context, cert *Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *cert
	s.certs[cert.ID] = &clone
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, certID id.CertificateID) (*Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, ok := s.certs[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *cert
	return &clone, nil
}

func (s *InMemoryStore) ListByPrincipal(_ context.Context, principalID id.PrincipalID) ([]*Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Certificate
	for _, cert := range s.certs {
		if cert.PrincipalID == principalID {
			clone := *cert
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
	return out, nil
}
