// Package handler wires consent ledger endpoints to the consent service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"covenant/internal/auditlog"
	"covenant/internal/consent/models"
	"covenant/internal/platform/middleware"
	"covenant/internal/signer"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

// Service defines the consent operations the handler depends on.
type Service interface {
	Update(ctx context.Context, principal models.Principal, purposeID id.PurposeID, newStatus models.Status, meta auditlog.Meta) (*models.ConsentRecord, error)
	Get(ctx context.Context, principalID id.PrincipalID, purposeID id.PurposeID) (*models.ConsentRecord, error)
	List(ctx context.Context, principalID id.PrincipalID) ([]*models.ConsentRecord, error)
	Logs(ctx context.Context, principalID id.PrincipalID, actions []auditlog.Action) ([]auditlog.Entry, error)
	VerifyArtifact(artifact signer.Artifact, signature string) bool
	Catalog() models.Catalog
	Now() time.Time
}

// Handler exposes the consent ledger over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a consent handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts consent endpoints on the router. All routes assume the
// auth middleware has already populated the principal in context.
func (h *Handler) Register(r chi.Router) {
	r.Get("/consents", h.HandleList)
	r.Get("/consents/{purposeID}", h.HandleGet)
	r.Post("/consents/{purposeID}", h.HandleUpdate)
	r.Get("/consents/{purposeID}/artifact", h.HandleArtifact)
	r.Post("/consents/{purposeID}/verify", h.HandleVerify)
	r.Get("/consent-logs", h.HandleLogs)
	r.Get("/purposes", h.HandlePurposes)
}

func (h *Handler) principalFromContext(ctx context.Context) (models.Principal, error) {
	raw := middleware.GetPrincipalID(ctx)
	if raw == "" {
		return models.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	principalID, err := id.ParsePrincipalID(raw)
	if err != nil {
		return models.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "invalid principal identity")
	}
	return models.Principal{
		ID:    principalID,
		Email: middleware.GetEmail(ctx),
	}, nil
}

// HandleList handles GET /consents.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := h.principalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.List(ctx, principal.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list consents",
			"request_id", middleware.GetRequestID(ctx),
			"principal_id", principal.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRecords(records, h.service.Catalog(), h.service.Now()))
}

// HandleGet handles GET /consents/{purposeID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := h.principalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	purposeID := id.PurposeID(chi.URLParam(r, "purposeID"))
	record, err := h.service.Get(ctx, principal.ID, purposeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRecord(record, h.service.Catalog(), h.service.Now()))
}

// HandleUpdate handles POST /consents/{purposeID} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	principal, err := h.principalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	purposeID := id.PurposeID(chi.URLParam(r, "purposeID"))
	meta := auditlog.Meta{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
		RequestID: requestID,
	}

	record, err := h.service.Update(ctx, principal, purposeID, req.ParsedStatus(), meta)
	if err != nil {
		h.logger.ErrorContext(ctx, "consent update failed",
			"request_id", requestID,
			"principal_id", principal.ID,
			"purpose_id", purposeID,
			"status", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "consent updated",
		"request_id", requestID,
		"principal_id", principal.ID,
		"purpose_id", purposeID,
		"status", record.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromRecord(record, h.service.Catalog(), h.service.Now()))
}

// HandleArtifact handles GET /consents/{purposeID}/artifact.
func (h *Handler) HandleArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := h.principalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	purposeID := id.PurposeID(chi.URLParam(r, "purposeID"))
	record, err := h.service.Get(ctx, principal.ID, purposeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if record.Artifact == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no signed artifact for purpose: "+purposeID.String()))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ArtifactResponse{Artifact: record.Artifact})
}

// HandleVerify handles POST /consents/verify requests. Verification is a
// pure function of the submitted artifact, so no auth-scoped lookups happen
// here.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	valid := h.service.VerifyArtifact(req.Artifact, req.Signature)
	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{Valid: valid})
}

// HandleLogs handles GET /consent-logs. Repeatable `action` query params
// narrow the trail, e.g. ?action=grant&action=withdraw.
func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := h.principalFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var actions []auditlog.Action
	for _, raw := range r.URL.Query()["action"] {
		action, err := auditlog.ParseAction(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		actions = append(actions, action)
	}

	entries, err := h.service.Logs(ctx, principal.ID, actions)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list consent logs",
			"request_id", middleware.GetRequestID(ctx),
			"principal_id", principal.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []auditlog.Entry{}
	}

	httputil.WriteJSON(w, http.StatusOK, LogsResponse{Entries: entries})
}

// HandlePurposes handles GET /purposes: the catalog consents are recorded
// against.
func (h *Handler) HandlePurposes(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Catalog())
}
