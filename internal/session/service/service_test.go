package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	auditstore "covenant/internal/auditlog"
	consentmodels "covenant/internal/consent/models"
	consentservice "covenant/internal/consent/service"
	consentstore "covenant/internal/consent/store"
	"covenant/internal/session/store"
	"covenant/internal/session/token"
	"covenant/internal/signer"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

type SessionServiceSuite struct {
	suite.Suite
	ctx     context.Context
	service *Service
	ledger  *consentservice.Service
	tokens  *token.Service
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceSuite))
}

func (s *SessionServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctx = context.Background()
	s.tokens = token.NewService("test-signing-key", "covenant")

	logs := auditstore.NewPublisher(auditstore.NewInMemoryStore(), auditstore.WithPublisherLogger(logger))
	s.ledger = consentservice.NewService(
		consentstore.NewInMemoryStore(),
		signer.NewMock("KeyID.1"),
		logs,
		logger,
		consentmodels.DefaultCatalog(),
	)

	s.service = NewService(
		store.NewInMemoryPrincipalStore(),
		store.NewInMemorySessionStore(),
		s.tokens,
		s.ledger,
		logger,
		WithTokenTTL(time.Hour),
	)
}

func (s *SessionServiceSuite) register() *LoginResult {
	_, err := s.service.Register(s.ctx, RegisterParams{
		Email:    "asha@example.com",
		Name:     "Asha",
		Password: "correct-horse",
	})
	s.Require().NoError(err)

	result, err := s.service.Login(s.ctx, "asha@example.com", "correct-horse", "test-agent")
	s.Require().NoError(err)
	return result
}

func (s *SessionServiceSuite) TestRegisterInitializesConsents() {
	principal, err := s.service.Register(s.ctx, RegisterParams{
		Email:    "asha@example.com",
		Name:     "Asha",
		Password: "correct-horse",
	})
	s.Require().NoError(err)
	s.False(principal.ID.IsNil())
	s.NotEqual("correct-horse", principal.PasswordHash)

	records, err := s.ledger.List(s.ctx, principal.ID)
	s.Require().NoError(err)
	s.Len(records, len(consentmodels.DefaultCatalog()))
}

func (s *SessionServiceSuite) TestRegisterValidation() {
	_, err := s.service.Register(s.ctx, RegisterParams{Email: "", Password: "correct-horse"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.Register(s.ctx, RegisterParams{Email: "a@example.com", Password: "short"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *SessionServiceSuite) TestRegisterDuplicateEmail() {
	_, err := s.service.Register(s.ctx, RegisterParams{Email: "asha@example.com", Password: "correct-horse"})
	s.Require().NoError(err)

	_, err = s.service.Register(s.ctx, RegisterParams{Email: "asha@example.com", Password: "correct-horse"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *SessionServiceSuite) TestLoginIssuesValidToken() {
	result := s.register()

	s.NotEmpty(result.AccessToken)
	s.Equal(time.Hour, result.ExpiresIn)

	claims, err := s.tokens.ValidateToken(result.AccessToken)
	s.Require().NoError(err)
	s.Equal(result.Principal.ID.String(), claims.PrincipalID)
	s.Equal(result.Session.ID.String(), claims.SessionID)
}

func (s *SessionServiceSuite) TestLoginWrongPassword() {
	s.register()

	_, err := s.service.Login(s.ctx, "asha@example.com", "wrong-password", "")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *SessionServiceSuite) TestLoginUnknownEmail() {
	_, err := s.service.Login(s.ctx, "nobody@example.com", "whatever-password", "")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *SessionServiceSuite) TestLoginPreservesConsentChoices() {
	result := s.register()
	principal := consentmodels.Principal{ID: result.Principal.ID, Email: result.Principal.Email}

	_, err := s.ledger.Update(s.ctx, principal, id.PurposeID("analytics"), consentmodels.StatusGranted, auditstore.Meta{})
	s.Require().NoError(err)

	// A second login must not reset existing records.
	_, err = s.service.Login(s.ctx, "asha@example.com", "correct-horse", "")
	s.Require().NoError(err)

	record, err := s.ledger.Get(s.ctx, result.Principal.ID, id.PurposeID("analytics"))
	s.Require().NoError(err)
	s.Equal(consentmodels.StatusGranted, record.Status)
	s.Len(record.History, 1)
}

func (s *SessionServiceSuite) TestLogoutRevokesSession() {
	result := s.register()

	s.Require().NoError(s.service.Logout(s.ctx, result.Session.ID))

	// The validator must now reject the still-unexpired token.
	adapter := token.NewValidatorAdapter(s.tokens, s.service.sessions)
	_, err := adapter.ValidateToken(result.AccessToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	// Logout is idempotent.
	s.Require().NoError(s.service.Logout(s.ctx, result.Session.ID))
}
