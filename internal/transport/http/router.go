// Package httptransport assembles the HTTP surface of the consent service:
// feature handlers, middleware stack, and operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"covenant/internal/certificate"
	consenthandler "covenant/internal/consent/handler"
	"covenant/internal/grievance"
	"covenant/internal/platform/metrics"
	"covenant/internal/platform/middleware"
	sessionhandler "covenant/internal/session/handler"
	"covenant/pkg/platform/httputil"
)

// Health reports readiness of a backing dependency.
type Health func() error

// Deps carries everything the router needs. Optional fields may be nil.
type Deps struct {
	Consents     *consenthandler.Handler
	Sessions     *sessionhandler.Handler
	Grievances   *grievance.Handler
	Certificates *certificate.Handler
	Validator    middleware.JWTValidator
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	HealthChecks map[string]Health
}

// NewRouter wires all endpoints with the middleware stack. Registration and
// login stay public; everything else requires a bearer token.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth(deps.HealthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		deps.Sessions.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))

		deps.Sessions.RegisterProtected(r)
		deps.Consents.Register(r)
		deps.Grievances.Register(r)
		deps.Certificates.Register(r)
	})

	return r
}

func handleHealth(checks map[string]Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			} else {
				body[name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}
