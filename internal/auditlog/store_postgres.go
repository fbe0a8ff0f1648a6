package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists log entries in PostgreSQL. The table carries no
// UPDATE or DELETE paths; retention is a database concern, not an API one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const createLogTable = `
CREATE TABLE IF NOT EXISTS consent_log (
	id           UUID PRIMARY KEY,
	ts           TIMESTAMPTZ NOT NULL,
	principal_id TEXT NOT NULL,
	action       TEXT NOT NULL,
	purpose_id   TEXT NOT NULL,
	ip_address   TEXT NOT NULL DEFAULT '',
	user_agent   TEXT NOT NULL DEFAULT '',
	metadata     JSONB
);
CREATE INDEX IF NOT EXISTS idx_consent_log_principal ON consent_log (principal_id, ts);
`

// EnsureSchema creates the consent_log table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createLogTable); err != nil {
		return fmt.Errorf("ensure consent_log schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	var metadata []byte
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal log metadata: %w", err)
		}
		metadata = raw
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consent_log (id, ts, principal_id, action, purpose_id, ip_address, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Timestamp, entry.PrincipalID, string(entry.Action),
		entry.PurposeID, entry.IPAddress, entry.UserAgent, metadata,
	)
	if err != nil {
		return fmt.Errorf("append consent log entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByPrincipal(ctx context.Context, principalID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, principal_id, action, purpose_id, ip_address, user_agent, metadata
		FROM consent_log WHERE principal_id = $1 ORDER BY ts`, principalID)
	if err != nil {
		return nil, fmt.Errorf("list consent log: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	return scanEntries(rows)
}

func (s *PostgresStore) ListByActions(ctx context.Context, principalID string, actions []Action) ([]Entry, error) {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, principal_id, action, purpose_id, ip_address, user_agent, metadata
		FROM consent_log WHERE principal_id = $1 AND action = ANY($2) ORDER BY ts`,
		principalID, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("list consent log by actions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		var action string
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.PrincipalID, &action, &e.PurposeID, &e.IPAddress, &e.UserAgent, &metadata); err != nil {
			return nil, fmt.Errorf("scan consent log entry: %w", err)
		}
		e.Action = Action(action)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal log metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
