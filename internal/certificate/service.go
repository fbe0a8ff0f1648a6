package certificate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"covenant/internal/platform/metrics"
	"covenant/internal/signer"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/sentinel"
)

// PassThreshold is the fraction of correct answers needed to earn a
// certificate.
const PassThreshold = 0.8

// Service scores quiz submissions and issues certificates.
type Service struct {
	store     Store
	questions []Question
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithQuestions replaces the default question bank.
func WithQuestions(questions []Question) ServiceOption {
	return func(s *Service) {
		if len(questions) > 0 {
			s.questions = questions
		}
	}
}

func NewService(store Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		questions: DefaultQuiz(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Questions returns the quiz for display. Correct answers stay server-side.
func (s *Service) Questions() []Question {
	return s.questions
}

// Submit scores a quiz attempt. A passing score issues a stamped
// certificate; failing attempts report the score and issue nothing.
func (s *Service) Submit(ctx context.Context, principalID id.PrincipalID, name string, answers map[string]int) (*Result, error) {
	if principalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "principal ID is required")
	}

	score := 0
	for _, question := range s.questions {
		if answer, ok := answers[question.ID]; ok && answer == question.Answer {
			score++
		}
	}
	total := len(s.questions)

	result := &Result{
		Score:  score,
		Total:  total,
		Passed: float64(score) >= PassThreshold*float64(total),
	}
	if !result.Passed {
		return result, nil
	}

	cert := &Certificate{
		ID:          id.CertificateID(uuid.New()),
		PrincipalID: principalID,
		Name:        name,
		Score:       score,
		Total:       total,
		IssuedAt:    s.now(),
	}
	stamp, err := signer.ContentHash(cert)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to stamp certificate")
	}
	cert.Stamp = stamp

	if err := s.store.Save(ctx, cert); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to save certificate")
	}

	if s.metrics != nil {
		s.metrics.CertificatesIssued.Inc()
	}
	s.logger.InfoContext(ctx, "certificate issued",
		"certificate_id", cert.ID,
		"principal_id", principalID,
		"score", score,
	)

	result.Certificate = cert
	return result, nil
}

// Get returns one certificate.
func (s *Service) Get(ctx context.Context, certID id.CertificateID) (*Certificate, error) {
	cert, err := s.store.Get(ctx, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to read certificate")
	}
	return cert, nil
}

// List returns the principal's certificates, oldest first.
func (s *Service) List(ctx context.Context, principalID id.PrincipalID) ([]*Certificate, error) {
	certs, err := s.store.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to list certificates")
	}
	return certs, nil
}

// VerifyStamp recomputes the content hash and compares it to the stamp.
func (s *Service) VerifyStamp(cert Certificate) (bool, error) {
	stamp := cert.Stamp
	cert.Stamp = ""
	recomputed, err := signer.ContentHash(&cert)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash certificate")
	}
	return recomputed == stamp, nil
}
