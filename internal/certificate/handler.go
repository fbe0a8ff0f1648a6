package certificate

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"covenant/internal/platform/middleware"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/httputil"
)

// Handler exposes the quiz and certificates over HTTP.
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

// Register mounts quiz endpoints on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/quiz", h.HandleQuiz)
	r.Post("/quiz/submit", h.HandleSubmit)
	r.Get("/certificates", h.HandleList)
	r.Get("/certificates/{certificateID}", h.HandleGet)
	r.Post("/certificates/verify", h.HandleVerify)
}

// SubmitRequest is the body for POST /quiz/submit.
type SubmitRequest struct {
	Name    string         `json:"name"`
	Answers map[string]int `json:"answers"`
}

func (r *SubmitRequest) Validate() error {
	if len(r.Answers) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "answers are required")
	}
	return nil
}

// VerifyRequest is the body for POST /certificates/verify.
type VerifyRequest struct {
	Certificate Certificate `json:"certificate"`
}

// VerifyResponse reports whether a certificate stamp checks out.
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

func principalFromContext(r *http.Request) (id.PrincipalID, error) {
	principalID, err := id.ParsePrincipalID(middleware.GetPrincipalID(r.Context()))
	if err != nil {
		return id.PrincipalID{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return principalID, nil
}

// HandleQuiz handles GET /quiz requests.
func (h *Handler) HandleQuiz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Questions())
}

// HandleSubmit handles POST /quiz/submit requests.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	principalID, err := principalFromContext(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Submit(ctx, principalID, req.Name, req.Answers)
	if err != nil {
		h.logger.ErrorContext(ctx, "quiz submission failed",
			"request_id", requestID,
			"principal_id", principalID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleList handles GET /certificates requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID, err := principalFromContext(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	certs, err := h.service.List(ctx, principalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if certs == nil {
		certs = []*Certificate{}
	}

	httputil.WriteJSON(w, http.StatusOK, certs)
}

// HandleGet handles GET /certificates/{certificateID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID, err := principalFromContext(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	certID, err := id.ParseCertificateID(chi.URLParam(r, "certificateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cert, err := h.service.Get(ctx, certID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if cert.PrincipalID != principalID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "certificate not found"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, cert)
}

// HandleVerify handles POST /certificates/verify requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	valid, err := h.service.VerifyStamp(req.Certificate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{Valid: valid})
}
