// Package service implements account registration, login, and logout for the
// consent dashboard.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	consentmodels "covenant/internal/consent/models"
	"covenant/internal/platform/metrics"
	"covenant/internal/session/models"
	"covenant/internal/session/store"
	"covenant/internal/session/token"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/sentinel"
	"covenant/pkg/secrets"
)

// Ledger is the slice of the consent service sessions depend on: every
// authenticated principal must have a full set of consent records.
type Ledger interface {
	Initialize(ctx context.Context, principal consentmodels.Principal) ([]*consentmodels.ConsentRecord, error)
	List(ctx context.Context, principalID id.PrincipalID) ([]*consentmodels.ConsentRecord, error)
}

const defaultTokenTTL = time.Hour

// Service orchestrates accounts, sessions, and tokens.
type Service struct {
	principals store.PrincipalStore
	sessions   store.SessionStore
	tokens     *token.Service
	ledger     Ledger
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tokenTTL   time.Duration
	now        func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithTokenTTL overrides the default access token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(principals store.PrincipalStore, sessions store.SessionStore, tokens *token.Service, ledger Ledger, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		principals: principals,
		sessions:   sessions,
		tokens:     tokens,
		ledger:     ledger,
		logger:     logger,
		tokenTTL:   defaultTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterParams carries the fields needed to create an account.
type RegisterParams struct {
	Email    string
	Mobile   string
	Name     string
	Password string
}

// Register creates an account and initializes its consent records so the
// dashboard never sees a principal without a full consent set.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.Principal, error) {
	if params.Email == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if len(params.Password) < 8 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters")
	}

	hash, err := secrets.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	principal := &models.Principal{
		ID:           id.PrincipalID(uuid.New()),
		Email:        params.Email,
		Mobile:       params.Mobile,
		Name:         params.Name,
		Role:         models.RoleUser,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	if err := s.principals.Create(ctx, principal); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to create account")
	}

	if _, err := s.ledger.Initialize(ctx, consentPrincipal(principal)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to initialize consent records")
	}

	s.logger.InfoContext(ctx, "account registered",
		"principal_id", principal.ID,
	)
	return principal, nil
}

// LoginResult is a successful authentication.
type LoginResult struct {
	Principal   *models.Principal
	Session     *models.Session
	AccessToken string
	ExpiresIn   time.Duration
}

// Login authenticates credentials and opens a session. Missing consent
// records are backfilled here so accounts created before a catalog change
// still get a complete set.
func (s *Service) Login(ctx context.Context, email, password, userAgent string) (*LoginResult, error) {
	principal, err := s.principals.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to look up account")
	}

	if err := secrets.Verify(password, principal.PasswordHash); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	now := s.now()
	session := &models.Session{
		ID:          id.SessionID(uuid.New()),
		PrincipalID: principal.ID,
		Status:      models.SessionStatusActive,
		UserAgent:   userAgent,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.tokenTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to create session")
	}

	if err := s.ensureConsents(ctx, principal); err != nil {
		return nil, err
	}

	accessToken, err := s.tokens.GenerateAccessToken(*principal, *session, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}

	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
	}
	s.logger.InfoContext(ctx, "session created",
		"principal_id", principal.ID,
		"session_id", session.ID,
	)

	return &LoginResult{
		Principal:   principal,
		Session:     session,
		AccessToken: accessToken,
		ExpiresIn:   s.tokenTTL,
	}, nil
}

// Logout revokes the session. Revoking an already-revoked session succeeds.
func (s *Service) Logout(ctx context.Context, sessionID id.SessionID) error {
	if err := s.sessions.Revoke(ctx, sessionID, s.now()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to revoke session")
	}
	return nil
}

// Profile returns the account for an authenticated principal.
func (s *Service) Profile(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	principal, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to look up account")
	}
	return principal, nil
}

// ensureConsents initializes the ledger only when the principal has no
// records, so existing choices survive repeat logins.
func (s *Service) ensureConsents(ctx context.Context, principal *models.Principal) error {
	records, err := s.ledger.List(ctx, principal.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to check consent records")
	}
	if len(records) > 0 {
		return nil
	}
	if _, err := s.ledger.Initialize(ctx, consentPrincipal(principal)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to initialize consent records")
	}
	return nil
}

func consentPrincipal(principal *models.Principal) consentmodels.Principal {
	return consentmodels.Principal{
		ID:     principal.ID,
		Email:  principal.Email,
		Mobile: principal.Mobile,
		Name:   principal.Name,
	}
}
