package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"covenant/internal/consent/models"
	"covenant/internal/signer"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

// PostgresStore persists consent records in PostgreSQL. History and artifact
// travel as JSONB; optimistic concurrency rides on the version column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const createConsentTable = `
CREATE TABLE IF NOT EXISTS consent_records (
	id           UUID NOT NULL,
	principal_id UUID NOT NULL,
	purpose_id   TEXT NOT NULL,
	status       TEXT NOT NULL,
	valid_until  TIMESTAMPTZ NOT NULL,
	last_updated TIMESTAMPTZ NOT NULL,
	artifact     JSONB,
	history      JSONB NOT NULL DEFAULT '[]',
	version      BIGINT NOT NULL,
	PRIMARY KEY (principal_id, purpose_id)
);
`

// EnsureSchema creates the consent_records table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createConsentTable); err != nil {
		return fmt.Errorf("ensure consent_records schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, principalID id.PrincipalID, purposeID id.PurposeID) (*models.ConsentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, principal_id, purpose_id, status, valid_until, last_updated, artifact, history, version
		FROM consent_records WHERE principal_id = $1 AND purpose_id = $2`,
		uuid.UUID(principalID), string(purposeID))

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get consent record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Save(ctx context.Context, record *models.ConsentRecord, expectedVersion int64) error {
	artifact, history, err := marshalParts(record)
	if err != nil {
		return err
	}

	if expectedVersion == 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO consent_records (id, principal_id, purpose_id, status, valid_until, last_updated, artifact, history, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)`,
			uuid.UUID(record.ID), uuid.UUID(record.PrincipalID), string(record.PurposeID),
			string(record.Status), record.ValidUntil, record.LastUpdated, artifact, history,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert consent record: %w", err)
		}
		record.Version = 1
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE consent_records
		SET status = $1, valid_until = $2, last_updated = $3, artifact = $4, history = $5, version = version + 1
		WHERE principal_id = $6 AND purpose_id = $7 AND version = $8`,
		string(record.Status), record.ValidUntil, record.LastUpdated, artifact, history,
		uuid.UUID(record.PrincipalID), string(record.PurposeID), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update consent record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update consent record: %w", err)
	}
	if affected == 0 {
		// Stale version or missing row; either way the caller's read is outdated.
		return sentinel.ErrConflict
	}
	record.Version = expectedVersion + 1
	return nil
}

func (s *PostgresStore) ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*models.ConsentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, principal_id, purpose_id, status, valid_until, last_updated, artifact, history, version
		FROM consent_records WHERE principal_id = $1 ORDER BY purpose_id`,
		uuid.UUID(principalID))
	if err != nil {
		return nil, fmt.Errorf("list consent records: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []*models.ConsentRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReplaceAll(ctx context.Context, principalID id.PrincipalID, records []*models.ConsentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is a no-op
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM consent_records WHERE principal_id = $1`, uuid.UUID(principalID)); err != nil {
		return fmt.Errorf("clear consent records: %w", err)
	}

	for _, record := range records {
		artifact, history, err := marshalParts(record)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO consent_records (id, principal_id, purpose_id, status, valid_until, last_updated, artifact, history, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)`,
			uuid.UUID(record.ID), uuid.UUID(principalID), string(record.PurposeID),
			string(record.Status), record.ValidUntil, record.LastUpdated, artifact, history,
		); err != nil {
			return fmt.Errorf("insert consent record: %w", err)
		}
		record.Version = 1
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ConsentRecord, error) {
	var (
		record       models.ConsentRecord
		recordID     uuid.UUID
		principalID  uuid.UUID
		purposeID    string
		status       string
		artifactJSON []byte
		historyJSON  []byte
	)
	err := row.Scan(&recordID, &principalID, &purposeID, &status,
		&record.ValidUntil, &record.LastUpdated, &artifactJSON, &historyJSON, &record.Version)
	if err != nil {
		return nil, err
	}

	record.ID = id.ConsentID(recordID)
	record.PrincipalID = id.PrincipalID(principalID)
	record.PurposeID = id.PurposeID(purposeID)
	record.Status = models.Status(status)

	if len(artifactJSON) > 0 {
		var artifact signer.Artifact
		if err := json.Unmarshal(artifactJSON, &artifact); err != nil {
			return nil, fmt.Errorf("unmarshal artifact: %w", err)
		}
		record.Artifact = &artifact
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &record.History); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
	}
	return &record, nil
}

func marshalParts(record *models.ConsentRecord) (artifact, history []byte, err error) {
	if record.Artifact != nil {
		artifact, err = json.Marshal(record.Artifact)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal artifact: %w", err)
		}
	}
	if record.History == nil {
		history = []byte("[]")
	} else {
		history, err = json.Marshal(record.History)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal history: %w", err)
		}
	}
	return artifact, history, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
