// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "covenant/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a PrincipalID where a ConsentID is expected.
type (
	PrincipalID   uuid.UUID
	ConsentID     uuid.UUID
	TicketID      uuid.UUID
	CertificateID uuid.UUID
	SessionID     uuid.UUID
)

// PurposeID is a catalog key for processing purposes (e.g. "marketing_email").
// Purposes are a static catalog, not generated identifiers, so this stays a string.
type PurposeID string

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParsePrincipalID(s string) (PrincipalID, error) {
	id, err := parseUUID(s, "principal ID")
	return PrincipalID(id), err
}

func ParseConsentID(s string) (ConsentID, error) {
	id, err := parseUUID(s, "consent ID")
	return ConsentID(id), err
}

func ParseTicketID(s string) (TicketID, error) {
	id, err := parseUUID(s, "ticket ID")
	return TicketID(id), err
}

func ParseCertificateID(s string) (CertificateID, error) {
	id, err := parseUUID(s, "certificate ID")
	return CertificateID(id), err
}

func ParseSessionID(s string) (SessionID, error) {
	id, err := parseUUID(s, "session ID")
	return SessionID(id), err
}

func ParsePurposeID(s string) (PurposeID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "purpose ID cannot be empty")
	}
	return PurposeID(s), nil
}

// String methods - for logging and debugging.

func (id PrincipalID) String() string   { return uuid.UUID(id).String() }
func (id ConsentID) String() string     { return uuid.UUID(id).String() }
func (id TicketID) String() string      { return uuid.UUID(id).String() }
func (id CertificateID) String() string { return uuid.UUID(id).String() }
func (id SessionID) String() string     { return uuid.UUID(id).String() }
func (id PurposeID) String() string     { return string(id) }

// Text marshaling - defined types do not inherit uuid.UUID's methods, so
// without these the IDs would JSON-encode as raw 16-byte arrays. Canonical
// string form everywhere: API responses, snapshots, session payloads.

func (id PrincipalID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id ConsentID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id TicketID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id CertificateID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id SessionID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *PrincipalID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text)
}

func (id *ConsentID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text)
}

func (id *TicketID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text)
}

func (id *CertificateID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text)
}

func (id *SessionID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text)
}

func unmarshalUUID(dst *uuid.UUID, text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

// IsNil checks - used for service-layer validation.

func (id PrincipalID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ConsentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TicketID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PurposeID) IsNil() bool     { return id == "" }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; use IsNil() at the service layer for business
// validation so store lookups can return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return id, nil
}
