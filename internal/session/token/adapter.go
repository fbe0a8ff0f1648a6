package token

import (
	"context"
	"errors"
	"time"

	"covenant/internal/platform/middleware"
	"covenant/internal/session/models"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/sentinel"
)

// SessionLookup is the slice of the session store the validator needs to
// reject tokens for revoked or expired sessions.
type SessionLookup interface {
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
}

// ValidatorAdapter bridges the token service and session store to the HTTP
// auth middleware. A structurally valid JWT is not enough: its session must
// still be active, so logout takes effect before the token expires.
type ValidatorAdapter struct {
	tokens   *Service
	sessions SessionLookup
	now      func() time.Time
}

func NewValidatorAdapter(tokens *Service, sessions SessionLookup) *ValidatorAdapter {
	return &ValidatorAdapter{
		tokens:   tokens,
		sessions: sessions,
		now:      time.Now,
	}
}

func (a *ValidatorAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	session, err := a.sessions.FindByID(context.Background(), sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "could not verify session")
	}
	if session.Status != models.SessionStatusActive {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session has been revoked")
	}
	if a.now().After(session.ExpiresAt) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session has expired")
	}

	return &middleware.JWTClaims{
		PrincipalID: claims.PrincipalID,
		SessionID:   claims.SessionID,
		Email:       claims.Email,
		Role:        claims.Role,
	}, nil
}
