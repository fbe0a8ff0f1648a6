package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"covenant/internal/session/models"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

type SessionStoreSuite struct {
	suite.Suite
	ctx        context.Context
	principals *InMemoryPrincipalStore
	sessions   *InMemorySessionStore
}

func TestSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(SessionStoreSuite))
}

func (s *SessionStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.principals = NewInMemoryPrincipalStore()
	s.sessions = NewInMemorySessionStore()
}

func (s *SessionStoreSuite) TestPrincipalLookup() {
	principal := &models.Principal{
		ID:    id.PrincipalID(uuid.New()),
		Email: "Asha@Example.com",
		Name:  "Asha",
		Role:  models.RoleUser,
	}
	s.Require().NoError(s.principals.Create(s.ctx, principal))

	found, err := s.principals.FindByID(s.ctx, principal.ID)
	s.Require().NoError(err)
	s.Equal(principal.Name, found.Name)

	// Email lookup is case-insensitive.
	found, err = s.principals.FindByEmail(s.ctx, "asha@example.com")
	s.Require().NoError(err)
	s.Equal(principal.ID, found.ID)
}

func (s *SessionStoreSuite) TestDuplicateEmailConflicts() {
	first := &models.Principal{ID: id.PrincipalID(uuid.New()), Email: "asha@example.com"}
	second := &models.Principal{ID: id.PrincipalID(uuid.New()), Email: "ASHA@example.com"}

	s.Require().NoError(s.principals.Create(s.ctx, first))
	s.Require().ErrorIs(s.principals.Create(s.ctx, second), sentinel.ErrConflict)
}

func (s *SessionStoreSuite) TestPrincipalNotFound() {
	_, err := s.principals.FindByID(s.ctx, id.PrincipalID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.principals.FindByEmail(s.ctx, "nobody@example.com")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SessionStoreSuite) TestSessionRevocation() {
	session := &models.Session{
		ID:          id.SessionID(uuid.New()),
		PrincipalID: id.PrincipalID(uuid.New()),
		Status:      models.SessionStatusActive,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	s.Require().NoError(s.sessions.Create(s.ctx, session))

	revokedAt := time.Now()
	s.Require().NoError(s.sessions.Revoke(s.ctx, session.ID, revokedAt))

	found, err := s.sessions.FindByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusRevoked, found.Status)
	s.Require().NotNil(found.RevokedAt)

	// Revocation is idempotent.
	s.Require().NoError(s.sessions.Revoke(s.ctx, session.ID, time.Now()))
}

func (s *SessionStoreSuite) TestRevokeMissingSession() {
	err := s.sessions.Revoke(s.ctx, id.SessionID(uuid.New()), time.Now())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SessionStoreSuite) TestSessionIsolation() {
	session := &models.Session{
		ID:        id.SessionID(uuid.New()),
		Status:    models.SessionStatusActive,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	s.Require().NoError(s.sessions.Create(s.ctx, session))

	found, err := s.sessions.FindByID(s.ctx, session.ID)
	s.Require().NoError(err)
	found.Status = models.SessionStatusRevoked

	again, err := s.sessions.FindByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusActive, again.Status)
}
