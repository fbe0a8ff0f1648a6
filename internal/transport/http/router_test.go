package httptransport_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"covenant/internal/auditlog"
	"covenant/internal/certificate"
	consenthandler "covenant/internal/consent/handler"
	consentmodels "covenant/internal/consent/models"
	consentservice "covenant/internal/consent/service"
	consentstore "covenant/internal/consent/store"
	"covenant/internal/grievance"
	sessionhandler "covenant/internal/session/handler"
	sessionservice "covenant/internal/session/service"
	sessionstore "covenant/internal/session/store"
	"covenant/internal/session/token"
	"covenant/internal/signer"
	httptransport "covenant/internal/transport/http"
	"covenant/pkg/testutil"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	logs := auditlog.NewPublisher(auditlog.NewInMemoryStore(), auditlog.WithPublisherLogger(logger))
	ledger := consentservice.NewService(
		consentstore.NewInMemoryStore(),
		signer.NewMock("KeyID.1"),
		logs,
		logger,
		consentmodels.DefaultCatalog(),
	)

	sessions := sessionstore.NewInMemorySessionStore()
	tokens := token.NewService("router-test-signing-key", "covenant")
	accounts := sessionservice.NewService(sessionstore.NewInMemoryPrincipalStore(), sessions, tokens, ledger, logger)

	grievances := grievance.NewService(grievance.NewInMemoryStore(), logger)
	certificates := certificate.NewService(certificate.NewInMemoryStore(), logger)

	return httptransport.NewRouter(httptransport.Deps{
		Consents:     consenthandler.New(ledger, logger),
		Sessions:     sessionhandler.New(accounts, logger),
		Grievances:   grievance.NewHandler(grievances, logger),
		Certificates: certificate.NewHandler(certificates, logger),
		Validator:    token.NewValidatorAdapter(tokens, sessions),
		Logger:       logger,
		HealthChecks: map[string]httptransport.Health{
			"store": func() error { return nil },
		},
	})
}

func call(t *testing.T, router http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestConsentJourney(t *testing.T) {
	router := newTestRouter(t)

	testutil.Scenario(t, "a subject manages their consents end to end", func(t *testing.T) {
		var bearer string

		testutil.Given(t, "a registered account", func(t *testing.T) {
			rec := call(t, router, http.MethodPost, "/auth/register", "", map[string]string{
				"email":    "dana@example.com",
				"name":     "Dana",
				"password": "correct-horse-battery",
			})
			require.Equal(t, http.StatusCreated, rec.Code)

			rec = call(t, router, http.MethodPost, "/auth/login", "", map[string]string{
				"email":    "dana@example.com",
				"password": "correct-horse-battery",
			})
			require.Equal(t, http.StatusOK, rec.Code)

			var tokenResp struct {
				AccessToken string `json:"access_token"`
			}
			decode(t, rec, &tokenResp)
			require.NotEmpty(t, tokenResp.AccessToken)
			bearer = tokenResp.AccessToken
		})

		testutil.Then(t, "registration seeded the default consent set", func(t *testing.T) {
			rec := call(t, router, http.MethodGet, "/consents", bearer, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var consents []struct {
				PurposeID string `json:"purposeId"`
				Required  bool   `json:"required"`
				Status    string `json:"status"`
			}
			decode(t, rec, &consents)
			require.Len(t, consents, len(consentmodels.DefaultCatalog()))
			for _, c := range consents {
				if c.Required {
					require.Equal(t, "granted", c.Status, "required purpose %s", c.PurposeID)
				} else {
					require.Equal(t, "denied", c.Status, "optional purpose %s", c.PurposeID)
				}
			}
		})

		testutil.When(t, "the subject grants and then withdraws marketing email", func(t *testing.T) {
			rec := call(t, router, http.MethodPost, "/consents/marketing_email", bearer, map[string]string{"status": "granted"})
			require.Equal(t, http.StatusOK, rec.Code)

			var granted struct {
				Status    string `json:"status"`
				Lifecycle string `json:"lifecycle"`
			}
			decode(t, rec, &granted)
			require.Equal(t, "granted", granted.Status)
			require.Equal(t, "active", granted.Lifecycle)

			rec = call(t, router, http.MethodPost, "/consents/marketing_email", bearer, map[string]string{"status": "withdrawn"})
			require.Equal(t, http.StatusOK, rec.Code)

			var withdrawn struct {
				Status    string `json:"status"`
				Lifecycle string `json:"lifecycle"`
			}
			decode(t, rec, &withdrawn)
			require.Equal(t, "withdrawn", withdrawn.Status)
			require.Equal(t, "revoked", withdrawn.Lifecycle)
		})

		testutil.Then(t, "the trail records both decisions in order", func(t *testing.T) {
			rec := call(t, router, http.MethodGet, "/consent-logs", bearer, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var logsResp struct {
				Entries []struct {
					Action    string `json:"action"`
					PurposeID string `json:"purposeId"`
				} `json:"entries"`
			}
			decode(t, rec, &logsResp)
			require.Len(t, logsResp.Entries, 2)
			require.Equal(t, "grant", logsResp.Entries[0].Action)
			require.Equal(t, "withdraw", logsResp.Entries[1].Action)
			require.Equal(t, "marketing_email", logsResp.Entries[0].PurposeID)
		})

		testutil.Then(t, "withdrawing a required purpose is rejected", func(t *testing.T) {
			rec := call(t, router, http.MethodPost, "/consents/service_delivery", bearer, map[string]string{"status": "withdrawn"})
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var errResp struct {
				Error string `json:"error"`
			}
			decode(t, rec, &errResp)
			require.Equal(t, "invalid_transition", errResp.Error)
		})

		testutil.When(t, "the subject files a grievance", func(t *testing.T) {
			rec := call(t, router, http.MethodPost, "/grievances", bearer, map[string]string{
				"category":    "data_deletion",
				"subject":     "Delete my analytics history",
				"description": "I withdrew analytics consent and want the backlog erased.",
			})
			require.Equal(t, http.StatusCreated, rec.Code)

			rec = call(t, router, http.MethodGet, "/grievances", bearer, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var tickets []struct {
				Status string `json:"status"`
			}
			decode(t, rec, &tickets)
			require.Len(t, tickets, 1)
			require.Equal(t, "open", tickets[0].Status)
		})

		testutil.When(t, "the subject passes the awareness quiz", func(t *testing.T) {
			rec := call(t, router, http.MethodGet, "/quiz", bearer, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			require.NotContains(t, rec.Body.String(), `"answer"`)

			rec = call(t, router, http.MethodPost, "/quiz/submit", bearer, map[string]any{
				"name":    "Dana",
				"answers": map[string]int{"q1": 0, "q2": 1, "q3": 2, "q4": 0, "q5": 1},
			})
			require.Equal(t, http.StatusOK, rec.Code)

			var result struct {
				Passed      bool `json:"passed"`
				Certificate *struct {
					Stamp string `json:"stamp"`
				} `json:"certificate"`
			}
			decode(t, rec, &result)
			require.True(t, result.Passed)
			require.NotNil(t, result.Certificate)
			require.NotEmpty(t, result.Certificate.Stamp)
		})

		testutil.Then(t, "logout invalidates the bearer token", func(t *testing.T) {
			rec := call(t, router, http.MethodPost, "/auth/logout", bearer, nil)
			require.Equal(t, http.StatusNoContent, rec.Code)

			rec = call(t, router, http.MethodGet, "/consents", bearer, nil)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := call(t, router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]string
	decode(t, rec, &health)
	require.Equal(t, "ok", health["status"])
	require.Equal(t, "ok", health["store"])

	rec = call(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzReportsDegradedDependency(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	logs := auditlog.NewPublisher(auditlog.NewInMemoryStore())
	ledger := consentservice.NewService(consentstore.NewInMemoryStore(), signer.NewMock("KeyID.1"), logs, logger, consentmodels.DefaultCatalog())
	sessions := sessionstore.NewInMemorySessionStore()
	tokens := token.NewService("router-test-signing-key", "covenant")
	accounts := sessionservice.NewService(sessionstore.NewInMemoryPrincipalStore(), sessions, tokens, ledger, logger)

	router := httptransport.NewRouter(httptransport.Deps{
		Consents:     consenthandler.New(ledger, logger),
		Sessions:     sessionhandler.New(accounts, logger),
		Grievances:   grievance.NewHandler(grievance.NewService(grievance.NewInMemoryStore(), logger), logger),
		Certificates: certificate.NewHandler(certificate.NewService(certificate.NewInMemoryStore(), logger), logger),
		Validator:    token.NewValidatorAdapter(tokens, sessions),
		Logger:       logger,
		HealthChecks: map[string]httptransport.Health{
			"database": func() error { return errors.New("connection refused") },
		},
	})

	rec := call(t, router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health map[string]string
	decode(t, rec, &health)
	require.Equal(t, "degraded", health["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/consents", "/consent-logs", "/grievances", "/quiz", "/certificates", "/auth/me"} {
		rec := call(t, router, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "path %s", path)
	}
}
