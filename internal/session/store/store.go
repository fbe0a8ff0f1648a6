// Package store provides persistence for principals and login sessions.
package store

import (
	"context"
	"time"

	"covenant/internal/session/models"
	id "covenant/pkg/domain"
)

// PrincipalStore persists registered accounts.
type PrincipalStore interface {
	Create(ctx context.Context, principal *models.Principal) error
	FindByID(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error)
	FindByEmail(ctx context.Context, email string) (*models.Principal, error)
}

// SessionStore persists login sessions. Implementations must treat revocation
// as idempotent so repeated logouts are harmless.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Revoke(ctx context.Context, sessionID id.SessionID, at time.Time) error
}
