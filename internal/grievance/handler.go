package grievance

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"covenant/internal/platform/middleware"
	"covenant/internal/session/models"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/httputil"
)

// Handler exposes the ticket workflow over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts grievance endpoints on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/grievances", h.HandleOpen)
	r.Get("/grievances", h.HandleList)
	r.Get("/grievances/{ticketID}", h.HandleGet)
	r.Post("/grievances/{ticketID}/status", h.HandleStatus)
}

// OpenRequest is the body for POST /grievances.
type OpenRequest struct {
	Category    string `json:"category"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

func (r *OpenRequest) Normalize() {
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	r.Subject = strings.TrimSpace(r.Subject)
}

func (r *OpenRequest) Validate() error {
	if r.Subject == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}
	if _, err := ParseCategory(r.Category); err != nil {
		return err
	}
	return nil
}

// StatusRequest is the body for POST /grievances/{ticketID}/status.
type StatusRequest struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution"`
}

func (r *StatusRequest) Normalize() {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
}

func (r *StatusRequest) Validate() error {
	switch Status(r.Status) {
	case StatusOpen, StatusInProgress, StatusResolved:
		return nil
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "invalid ticket status: "+r.Status)
	}
}

func callerFromContext(r *http.Request) (id.PrincipalID, bool, error) {
	principalID, err := id.ParsePrincipalID(middleware.GetPrincipalID(r.Context()))
	if err != nil {
		return id.PrincipalID{}, false, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	asSupport := middleware.GetRole(r.Context()) == string(models.RoleSupport)
	return principalID, asSupport, nil
}

// HandleOpen handles POST /grievances requests.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	principalID, _, err := callerFromContext(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[OpenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	category, _ := ParseCategory(req.Category)
	ticket, err := h.service.Open(ctx, OpenParams{
		PrincipalID: principalID,
		Category:    category,
		Subject:     req.Subject,
		Description: req.Description,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, ticket)
}

// HandleList handles GET /grievances requests. Support staff get every
// unresolved ticket; principals get their own.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID, asSupport, err := callerFromContext(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var tickets []*Ticket
	if asSupport {
		tickets, err = h.service.ListOpen(ctx)
	} else {
		tickets, err = h.service.List(ctx, principalID)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if tickets == nil {
		tickets = []*Ticket{}
	}

	httputil.WriteJSON(w, http.StatusOK, tickets)
}

// HandleGet handles GET /grievances/{ticketID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID, asSupport, err := callerFromContext(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ticketID, err := id.ParseTicketID(chi.URLParam(r, "ticketID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ticket, err := h.service.Get(ctx, ticketID, principalID, asSupport)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ticket)
}

// HandleStatus handles POST /grievances/{ticketID}/status requests.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	principalID, asSupport, err := callerFromContext(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ticketID, err := id.ParseTicketID(chi.URLParam(r, "ticketID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[StatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	ticket, err := h.service.Transition(ctx, ticketID, principalID, asSupport, Status(req.Status), req.Resolution)
	if err != nil {
		h.logger.WarnContext(ctx, "ticket transition failed",
			"request_id", requestID,
			"ticket_id", ticketID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ticket)
}
