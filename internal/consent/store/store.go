// Package store persists consent records. All implementations enforce
// compare-and-swap on ConsentRecord.Version so concurrent updates to the
// same (principal, purpose) pair cannot silently interleave.
package store

import (
	"context"

	"covenant/internal/consent/models"
	id "covenant/pkg/domain"
)

// Store is the persistence contract for consent records.
//
// Save semantics: expectedVersion is the version the caller read. When the
// stored version differs (or the record exists and expectedVersion is 0),
// implementations return sentinel.ErrConflict and change nothing. On success
// the record is stored with Version = expectedVersion + 1.
type Store interface {
	Get(ctx context.Context, principalID id.PrincipalID, purposeID id.PurposeID) (*models.ConsentRecord, error)
	Save(ctx context.Context, record *models.ConsentRecord, expectedVersion int64) error
	ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*models.ConsentRecord, error)

	// ReplaceAll swaps the principal's entire record set, used when a session
	// is (re)initialized. Versions restart at 1.
	ReplaceAll(ctx context.Context, principalID id.PrincipalID, records []*models.ConsentRecord) error
}
