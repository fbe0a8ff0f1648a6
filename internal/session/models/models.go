// Package models defines the session domain: registered principals and their
// login sessions.
package models

import (
	"time"

	id "covenant/pkg/domain"
)

// Role distinguishes regular dashboard users from support staff who can
// work grievance tickets.
type Role string

const (
	RoleUser    Role = "user"
	RoleSupport Role = "support"
)

// Principal is a registered account.
type Principal struct {
	ID           id.PrincipalID `json:"id"`
	Email        string         `json:"email"`
	Mobile       string         `json:"mobile,omitempty"`
	Name         string         `json:"name"`
	Role         Role           `json:"role"`
	PasswordHash string         `json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// SessionStatus tracks whether a session can still authenticate requests.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusRevoked SessionStatus = "revoked"
)

// Session is one authenticated login. The JWT carries the session ID so
// logout can revoke it before the token expires.
type Session struct {
	ID          id.SessionID   `json:"id"`
	PrincipalID id.PrincipalID `json:"principalId"`
	Status      SessionStatus  `json:"status"`
	UserAgent   string         `json:"userAgent,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	RevokedAt   *time.Time     `json:"revokedAt,omitempty"`
}
