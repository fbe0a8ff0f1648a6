// Package service implements the consent ledger: the authoritative state of
// every (principal, purpose) consent decision, the transition rules, and the
// audit trail each transition leaves behind.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"covenant/internal/auditlog"
	"covenant/internal/consent/models"
	"covenant/internal/platform/metrics"
	"covenant/internal/platform/privacy"
	"covenant/internal/signer"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/sentinel"
)

// Store is the persistence contract the ledger depends on. See the store
// package for compare-and-swap semantics.
type Store interface {
	Get(ctx context.Context, principalID id.PrincipalID, purposeID id.PurposeID) (*models.ConsentRecord, error)
	Save(ctx context.Context, record *models.ConsentRecord, expectedVersion int64) error
	ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*models.ConsentRecord, error)
	ReplaceAll(ctx context.Context, principalID id.PrincipalID, records []*models.ConsentRecord) error
}

// casRetries bounds how often an update is retried after losing a
// compare-and-swap race before giving up with a conflict.
const casRetries = 3

// Service owns consent records and enforces valid transitions. It keeps
// orchestration out of handlers and domain logic thin.
type Service struct {
	store    Store
	catalog  models.Catalog
	signer   signer.Signer
	logs     *auditlog.Publisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	validity time.Duration
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithValidity overrides the default one-year validity window set at record
// initialization.
func WithValidity(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store Store, artifactSigner signer.Signer, logs *auditlog.Publisher, logger *slog.Logger, catalog models.Catalog, opts ...Option) *Service {
	s := &Service{
		store:    store,
		catalog:  catalog,
		signer:   artifactSigner,
		logs:     logs,
		logger:   logger,
		tracer:   otel.Tracer("covenant/consent"),
		validity: 365 * 24 * time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize creates one record per catalog purpose for the principal:
// optional purposes start denied, required purposes start granted so they
// always resolve granted. ValidUntil is fixed at now + validity and is not
// recomputed by later updates. Re-initializing replaces the entire set.
func (s *Service) Initialize(ctx context.Context, principal models.Principal) ([]*models.ConsentRecord, error) {
	if principal.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "principal ID is required")
	}

	now := s.now()
	records := make([]*models.ConsentRecord, 0, len(s.catalog))
	for _, purpose := range s.catalog {
		status := models.StatusDenied
		if purpose.Required {
			status = models.StatusGranted
		}
		records = append(records, &models.ConsentRecord{
			ID:          id.ConsentID(uuid.New()),
			PrincipalID: principal.ID,
			PurposeID:   purpose.ID,
			Status:      status,
			ValidUntil:  now.Add(s.validity),
			LastUpdated: now,
			History:     []models.HistoryEntry{},
		})
	}

	if err := s.store.ReplaceAll(ctx, principal.ID, records); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to initialize consent records")
	}

	s.logger.InfoContext(ctx, "consent records initialized",
		"principal_id", principal.ID,
		"purposes", len(records),
	)
	return records, nil
}

// Update transitions one record to newStatus. The effect is all-or-nothing:
// a rejected transition leaves status, history, and artifact untouched and
// appends no log entry. A successful one signs exactly one artifact, pushes
// exactly one history entry, and appends exactly one log entry.
func (s *Service) Update(ctx context.Context, principal models.Principal, purposeID id.PurposeID, newStatus models.Status, meta auditlog.Meta) (*models.ConsentRecord, error) {
	ctx, span := s.tracer.Start(ctx, "consent.update", trace.WithAttributes(
		attribute.String("consent.purpose", purposeID.String()),
		attribute.String("consent.status", string(newStatus)),
	))
	defer span.End()

	start := s.now()

	purpose, ok := s.catalog.Lookup(purposeID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown purpose: "+purposeID.String())
	}
	if purpose.Required && newStatus == models.StatusWithdrawn {
		if s.metrics != nil {
			s.metrics.InvalidTransitions.Inc()
		}
		err := dErrors.New(dErrors.CodeInvalidTransition, "required purpose cannot be withdrawn")
		span.RecordError(err)
		return nil, err
	}

	var updated *models.ConsentRecord
	for attempt := 0; attempt < casRetries; attempt++ {
		record, err := s.store.Get(ctx, principal.ID, purposeID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "no consent record for purpose: "+purposeID.String())
			}
			return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to read consent record")
		}

		now := s.now()
		artifact, err := s.signer.Sign(
			signer.Principal{ID: principal.ID.String(), Email: principal.Email, Mobile: principal.Mobile},
			signer.PurposeRef{ID: purpose.ID.String(), Name: purpose.Name, Version: purpose.Version},
			string(newStatus),
			now,
		)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign consent artifact")
		}

		updated = record.Clone()
		updated.History = append(updated.History, models.HistoryEntry{
			Status:    record.Status,
			Timestamp: record.LastUpdated,
			Actor:     "user",
		})
		updated.Status = newStatus
		updated.LastUpdated = now
		updated.Artifact = &artifact
		// ValidUntil deliberately untouched: modification does not extend validity.

		if err := s.store.Save(ctx, updated, record.Version); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to save consent record")
		}

		s.observeUpdate(ctx, principal, purpose.ID, newStatus, now, start, meta)
		return updated, nil
	}

	err := dErrors.New(dErrors.CodeConflict, "consent record changed concurrently, retries exhausted")
	span.RecordError(err)
	return nil, err
}

// observeUpdate handles metrics and the append-only trail for a committed
// transition.
func (s *Service) observeUpdate(ctx context.Context, principal models.Principal, purposeID id.PurposeID, newStatus models.Status, now, start time.Time, meta auditlog.Meta) {
	if s.metrics != nil {
		s.metrics.ConsentUpdates.WithLabelValues(string(newStatus)).Inc()
		s.metrics.ArtifactsSigned.Inc()
		s.metrics.UpdateLatency.Observe(s.now().Sub(start).Seconds())
	}

	entry := auditlog.Entry{
		ID:          uuid.New().String(),
		Timestamp:   now,
		PrincipalID: principal.ID.String(),
		Action:      actionFor(newStatus),
		PurposeID:   purposeID.String(),
		IPAddress:   privacy.AnonymizeIP(meta.IPAddress),
		UserAgent:   meta.UserAgent,
	}
	if meta.RequestID != "" || meta.UserAgent != "" {
		entry.Metadata = map[string]string{}
		if meta.RequestID != "" {
			entry.Metadata["request_id"] = meta.RequestID
		}
		if meta.UserAgent != "" {
			entry.Metadata["device"] = auditlog.DeviceDisplayName(meta.UserAgent)
		}
	}
	if err := s.logs.Emit(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit consent log entry",
			"error", err,
			"principal_id", principal.ID,
			"purpose_id", purposeID,
		)
	}
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, principalID id.PrincipalID, purposeID id.PurposeID) (*models.ConsentRecord, error) {
	record, err := s.store.Get(ctx, principalID, purposeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no consent record for purpose: "+purposeID.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to read consent record")
	}
	return record, nil
}

// List returns all records for the principal, ordered by purpose.
func (s *Service) List(ctx context.Context, principalID id.PrincipalID) ([]*models.ConsentRecord, error) {
	records, err := s.store.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to list consent records")
	}
	return records, nil
}

// Logs returns the principal's consent trail, oldest first. A non-empty
// actions slice restricts the trail to those actions.
func (s *Service) Logs(ctx context.Context, principalID id.PrincipalID, actions []auditlog.Action) ([]auditlog.Entry, error) {
	if len(actions) == 0 {
		return s.logs.List(ctx, principalID.String())
	}
	return s.logs.ListByActions(ctx, principalID.String(), actions)
}

// VerifyArtifact runs the configured signer's verification predicate.
func (s *Service) VerifyArtifact(artifact signer.Artifact, signature string) bool {
	return s.signer.Verify(artifact, signature)
}

// Catalog exposes the purpose catalog for display.
func (s *Service) Catalog() models.Catalog {
	return s.catalog
}

// Now reports the service clock, used by handlers to derive lifecycle status
// consistently with the ledger.
func (s *Service) Now() time.Time {
	return s.now()
}

func actionFor(status models.Status) auditlog.Action {
	switch status {
	case models.StatusGranted:
		return auditlog.ActionGrant
	case models.StatusDenied:
		return auditlog.ActionDeny
	case models.StatusWithdrawn:
		return auditlog.ActionWithdraw
	default:
		return auditlog.ActionUpdate
	}
}
