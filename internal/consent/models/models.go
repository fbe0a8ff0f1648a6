// Package models holds the pure domain entities of the consent ledger:
// entities that should not depend on transport or HTTP-specific concerns.
package models

import (
	"time"

	"covenant/internal/signer"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

// Status is a principal's decision for one purpose.
type Status string

const (
	StatusGranted   Status = "granted"
	StatusDenied    Status = "denied"
	StatusWithdrawn Status = "withdrawn"
)

var validStatuses = map[Status]bool{
	StatusGranted:   true,
	StatusDenied:    true,
	StatusWithdrawn: true,
}

// ParseStatus constructs a Status from external input.
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status: "+s)
	}
	return st, nil
}

// LifecycleStatus is the derived classification layered on top of Status.
// It is never stored; Lifecycle() is the single derivation function.
type LifecycleStatus string

const (
	LifecycleActive   LifecycleStatus = "active"
	LifecycleRevoked  LifecycleStatus = "revoked"
	LifecycleExpired  LifecycleStatus = "expired"
	LifecycleModified LifecycleStatus = "modified"
)

// Principal is the data subject whose consent choices are tracked.
type Principal struct {
	ID     id.PrincipalID
	Email  string
	Mobile string
	Name   string
}

// HistoryEntry is a prior state of a consent record. History holds only
// prior states, oldest first; the live fields hold the current state.
type HistoryEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
}

// ConsentRecord is the current and historical consent decision for one
// (principal, purpose) pair. Exactly one record exists per pair. Records are
// never deleted, only transitioned.
type ConsentRecord struct {
	ID          id.ConsentID     `json:"id"`
	PrincipalID id.PrincipalID   `json:"principalId"`
	PurposeID   id.PurposeID     `json:"purposeId"`
	Status      Status           `json:"status"`
	ValidUntil  time.Time        `json:"validUntil"`
	LastUpdated time.Time        `json:"lastUpdated"`
	Artifact    *signer.Artifact `json:"artifact,omitempty"`
	History     []HistoryEntry   `json:"history"`

	// Version supports optimistic concurrency: updates compare-and-swap on
	// it so two concurrent transitions on the same pair cannot interleave.
	Version int64 `json:"version"`
}

// Lifecycle derives the record's lifecycle classification at the given time.
// This is THE derivation rule; nothing else computes or stores it:
// withdrawn records are revoked; otherwise past-validity records are
// expired; otherwise records changed more than once are modified; otherwise
// active. Pure function of record state, safe to call repeatedly.
func (r *ConsentRecord) Lifecycle(now time.Time) LifecycleStatus {
	switch {
	case r.Status == StatusWithdrawn:
		return LifecycleRevoked
	case now.After(r.ValidUntil):
		return LifecycleExpired
	case len(r.History) > 1:
		return LifecycleModified
	default:
		return LifecycleActive
	}
}

// Clone returns a deep copy so stores can hand out records without aliasing
// internal state.
func (r *ConsentRecord) Clone() *ConsentRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.History = append([]HistoryEntry(nil), r.History...)
	if r.Artifact != nil {
		artifact := *r.Artifact
		out.Artifact = &artifact
	}
	return &out
}
