package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"covenant/internal/auditlog"
	"covenant/internal/consent/handler/mocks"
	"covenant/internal/consent/models"
	"covenant/internal/platform/middleware"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

const testPrincipalID = "7b4d2f7e-8f7a-4c1d-9a0e-2f6b5c4d3e2a"

var handlerNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type HandlerSuite struct {
	suite.Suite
	router      http.Handler
	ctrl        *gomock.Controller
	mockService *mocks.MockService
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.mockService, logger)

	r := chi.NewRouter()
	r.Use(injectPrincipal(testPrincipalID))
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

// injectPrincipal mimics the auth middleware for tests.
func injectPrincipal(principalID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.ContextKeyPrincipalID, principalID)
			ctx = context.WithValue(ctx, middleware.ContextKeyEmail, "asha@example.com")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func testRecord() *models.ConsentRecord {
	principalID, _ := id.ParsePrincipalID(testPrincipalID)
	return &models.ConsentRecord{
		PrincipalID: principalID,
		PurposeID:   id.PurposeID("marketing_email"),
		Status:      models.StatusGranted,
		ValidUntil:  handlerNow.Add(365 * 24 * time.Hour),
		LastUpdated: handlerNow,
		History: []models.HistoryEntry{
			{Status: models.StatusDenied, Timestamp: handlerNow.Add(-time.Hour), Actor: "user"},
		},
		Version: 2,
	}
}

func (s *HandlerSuite) TestUpdateConsent() {
	record := testRecord()
	principalID, _ := id.ParsePrincipalID(testPrincipalID)

	s.mockService.EXPECT().
		Update(gomock.Any(), gomock.Any(), id.PurposeID("marketing_email"), models.StatusGranted, gomock.Any()).
		DoAndReturn(func(_ context.Context, principal models.Principal, _ id.PurposeID, _ models.Status, _ auditlog.Meta) (*models.ConsentRecord, error) {
			assert.Equal(s.T(), principalID, principal.ID)
			assert.Equal(s.T(), "asha@example.com", principal.Email)
			return record, nil
		})
	s.mockService.EXPECT().Catalog().Return(models.DefaultCatalog())
	s.mockService.EXPECT().Now().Return(handlerNow)

	// Status parsing trims and lowercases before validation.
	body := bytes.NewReader([]byte(`{"status":" Granted "}`))
	req := httptest.NewRequest(http.MethodPost, "/consents/marketing_email", body)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var resp ConsentResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(s.T(), "marketing_email", resp.PurposeID)
	assert.Equal(s.T(), "granted", resp.Status)
	assert.Equal(s.T(), "active", resp.Lifecycle)
	assert.Len(s.T(), resp.History, 1)
}

func (s *HandlerSuite) TestUpdateConsent_InvalidStatus() {
	body := bytes.NewReader([]byte(`{"status":"maybe"}`))
	req := httptest.NewRequest(http.MethodPost, "/consents/marketing_email", body)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestUpdateConsent_InvalidJSON() {
	body := bytes.NewReader([]byte("not valid json"))
	req := httptest.NewRequest(http.MethodPost, "/consents/marketing_email", body)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestUpdateConsent_RequiredPurposeRejected() {
	s.mockService.EXPECT().
		Update(gomock.Any(), gomock.Any(), id.PurposeID("service_delivery"), models.StatusWithdrawn, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInvalidTransition, "required purpose cannot be withdrawn"))

	body := bytes.NewReader([]byte(`{"status":"withdrawn"}`))
	req := httptest.NewRequest(http.MethodPost, "/consents/service_delivery", body)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	var resp map[string]string
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(s.T(), "invalid_transition", resp["error"])
}

func (s *HandlerSuite) TestUpdateConsent_Conflict() {
	s.mockService.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "consent record changed concurrently, retries exhausted"))

	body := bytes.NewReader([]byte(`{"status":"granted"}`))
	req := httptest.NewRequest(http.MethodPost, "/consents/analytics", body)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusConflict, rec.Code)
}

func (s *HandlerSuite) TestListConsents() {
	s.mockService.EXPECT().
		List(gomock.Any(), gomock.Any()).
		Return([]*models.ConsentRecord{testRecord()}, nil)
	s.mockService.EXPECT().Catalog().Return(models.DefaultCatalog())
	s.mockService.EXPECT().Now().Return(handlerNow)

	req := httptest.NewRequest(http.MethodGet, "/consents", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var resp []ConsentResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Require().Len(resp, 1)
	assert.Equal(s.T(), "Marketing Email", resp[0].PurposeName)
}

func (s *HandlerSuite) TestGetConsent_NotFound() {
	s.mockService.EXPECT().
		Get(gomock.Any(), gomock.Any(), id.PurposeID("nope")).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "no consent record for purpose: nope"))

	req := httptest.NewRequest(http.MethodGet, "/consents/nope", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestArtifact_NoneSigned() {
	record := testRecord()
	record.Artifact = nil
	s.mockService.EXPECT().
		Get(gomock.Any(), gomock.Any(), id.PurposeID("marketing_email")).
		Return(record, nil)

	req := httptest.NewRequest(http.MethodGet, "/consents/marketing_email/artifact", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestVerify() {
	s.mockService.EXPECT().
		VerifyArtifact(gomock.Any(), "sig_KeyID.1_0011223344556677_1773480600000").
		Return(true)

	body := bytes.NewReader([]byte(`{"artifact":{},"signature":"sig_KeyID.1_0011223344556677_1773480600000"}`))
	req := httptest.NewRequest(http.MethodPost, "/consents/marketing_email/verify", body)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var resp VerifyResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(s.T(), resp.Valid)
}

func (s *HandlerSuite) TestLogs() {
	s.mockService.EXPECT().
		Logs(gomock.Any(), gomock.Any(), gomock.Nil()).
		Return([]auditlog.Entry{
			{Action: auditlog.ActionGrant, PurposeID: "marketing_email", Timestamp: handlerNow},
		}, nil)

	req := httptest.NewRequest(http.MethodGet, "/consent-logs", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var resp LogsResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Require().Len(resp.Entries, 1)
	assert.Equal(s.T(), auditlog.ActionGrant, resp.Entries[0].Action)
}

func (s *HandlerSuite) TestLogsForwardsActionFilter() {
	s.mockService.EXPECT().
		Logs(gomock.Any(), gomock.Any(), []auditlog.Action{auditlog.ActionGrant, auditlog.ActionWithdraw}).
		Return([]auditlog.Entry{
			{Action: auditlog.ActionWithdraw, PurposeID: "marketing_email", Timestamp: handlerNow},
		}, nil)

	req := httptest.NewRequest(http.MethodGet, "/consent-logs?action=grant&action=withdraw", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var resp LogsResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Require().Len(resp.Entries, 1)
	assert.Equal(s.T(), auditlog.ActionWithdraw, resp.Entries[0].Action)
}

func (s *HandlerSuite) TestLogsRejectsUnknownAction() {
	req := httptest.NewRequest(http.MethodGet, "/consent-logs?action=ponder", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}
