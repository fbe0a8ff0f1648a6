package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"covenant/internal/session/models"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

// In-memory stores keep the initial implementation lightweight and testable.
// They intentionally favor clarity over performance.

type InMemoryPrincipalStore struct {
	mu      sync.RWMutex
	byID    map[id.PrincipalID]*models.Principal
	byEmail map[string]id.PrincipalID
}

func NewInMemoryPrincipalStore() *InMemoryPrincipalStore {
	return &InMemoryPrincipalStore{
		byID:    make(map[id.PrincipalID]*models.Principal),
		byEmail: make(map[string]id.PrincipalID),
	}
}

func (s *InMemoryPrincipalStore) Create(_ context.Context, principal *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(principal.Email)
	if _, exists := s.byEmail[email]; exists {
		return sentinel.ErrConflict
	}
	clone := *principal
	s.byID[principal.ID] = &clone
	s.byEmail[email] = principal.ID
	return nil
}

func (s *InMemoryPrincipalStore) FindByID(_ context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	principal, ok := s.byID[principalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *principal
	return &clone, nil
}

func (s *InMemoryPrincipalStore) FindByEmail(_ context.Context, email string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	principalID, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[principalID]
	return &clone, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *session
	s.sessions[session.ID] = &clone
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *session
	return &clone, nil
}

func (s *InMemorySessionStore) Revoke(_ context.Context, sessionID id.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if session.Status == models.SessionStatusRevoked {
		return nil
	}
	session.Status = models.SessionStatusRevoked
	session.RevokedAt = &at
	return nil
}
