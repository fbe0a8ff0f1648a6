package auditlog

import (
	"context"

	dErrors "covenant/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "log entry not found")

// Store persists consent log entries. Implementations must treat entries as
// append-only: no update or delete operations exist on this interface.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByPrincipal(ctx context.Context, principalID string) ([]Entry, error)
	ListByActions(ctx context.Context, principalID string, actions []Action) ([]Entry, error)
}
