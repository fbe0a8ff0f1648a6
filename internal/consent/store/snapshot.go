package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"

	"covenant/internal/consent/models"
	id "covenant/pkg/domain"
)

// SnapshotKey is the fixed key the record set is stored under inside the
// snapshot document.
const SnapshotKey = "covenant.consents"

// snapshotDoc is the on-disk shape: the whole record set JSON-encoded under
// one fixed key. No schema versioning or migration; an unreadable document
// falls back to an empty set.
type snapshotDoc map[string][]*models.ConsentRecord

// SnapshotStore decorates the in-memory store with best-effort persistence:
// after every mutation the full record set is serialized to a single JSON
// document. Writes are fire-and-forget; a failed write loses durability, not
// correctness, and is only logged.
type SnapshotStore struct {
	*InMemoryStore
	path   string
	logger *slog.Logger

	// OnWriteFailure is invoked after each failed snapshot write, e.g. to
	// bump a metric. Optional.
	OnWriteFailure func()

	writeMu sync.Mutex
}

func NewSnapshotStore(inner *InMemoryStore, path string, logger *slog.Logger) *SnapshotStore {
	return &SnapshotStore{InMemoryStore: inner, path: path, logger: logger}
}

// Load reads the snapshot document and restores the record set. A missing
// file yields an empty set; an unreadable one is logged as a parse failure
// and also yields an empty set, never an error.
func (s *SnapshotStore) Load(ctx context.Context) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.WarnContext(ctx, "consent snapshot unreadable, starting empty",
				"path", s.path, "error", err)
		}
		return
	}

	var doc snapshotDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.WarnContext(ctx, "consent snapshot parse failure, starting empty",
			"path", s.path, "error", err)
		return
	}

	byPrincipal := make(map[id.PrincipalID][]*models.ConsentRecord)
	for _, record := range doc[SnapshotKey] {
		byPrincipal[record.PrincipalID] = append(byPrincipal[record.PrincipalID], record)
	}
	for principalID, records := range byPrincipal {
		// Restore preserves versions; ReplaceAll resets them to 1 only for
		// zero-valued versions.
		if err := s.InMemoryStore.ReplaceAll(ctx, principalID, records); err != nil {
			s.logger.WarnContext(ctx, "consent snapshot restore failed",
				"principal_id", principalID, "error", err)
		}
	}
}

func (s *SnapshotStore) Save(ctx context.Context, record *models.ConsentRecord, expectedVersion int64) error {
	if err := s.InMemoryStore.Save(ctx, record, expectedVersion); err != nil {
		return err
	}
	s.flush(ctx)
	return nil
}

func (s *SnapshotStore) ReplaceAll(ctx context.Context, principalID id.PrincipalID, records []*models.ConsentRecord) error {
	if err := s.InMemoryStore.ReplaceAll(ctx, principalID, records); err != nil {
		return err
	}
	s.flush(ctx)
	return nil
}

// flush writes the whole record set. Failures are logged and counted, never
// surfaced: the in-memory state remains the source of truth.
func (s *SnapshotStore) flush(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc := snapshotDoc{SnapshotKey: s.InMemoryStore.Dump()}
	raw, err := json.Marshal(doc)
	if err == nil {
		err = os.WriteFile(s.path, raw, 0o600)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "consent snapshot write failed, durability lost",
			"path", s.path, "error", err)
		if s.OnWriteFailure != nil {
			s.OnWriteFailure()
		}
	}
}

func sortPrincipals(principals []id.PrincipalID) {
	sort.Slice(principals, func(i, j int) bool { return principals[i].String() < principals[j].String() })
}

func sortPurposes(purposes []id.PurposeID) {
	sort.Slice(purposes, func(i, j int) bool { return purposes[i] < purposes[j] })
}

// Dump returns every stored record across principals, sorted by principal
// then purpose for stable output.
func (s *InMemoryStore) Dump() []*models.ConsentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	principals := make([]id.PrincipalID, 0, len(s.records))
	for principalID := range s.records {
		principals = append(principals, principalID)
	}
	sortPrincipals(principals)

	var out []*models.ConsentRecord
	for _, principalID := range principals {
		byPurpose := s.records[principalID]
		purposes := make([]id.PurposeID, 0, len(byPurpose))
		for purposeID := range byPurpose {
			purposes = append(purposes, purposeID)
		}
		sortPurposes(purposes)
		for _, purposeID := range purposes {
			out = append(out, byPurpose[purposeID].Clone())
		}
	}
	return out
}
