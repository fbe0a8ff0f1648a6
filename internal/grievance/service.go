package grievance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"covenant/internal/platform/metrics"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/sentinel"
)

// Service owns the ticket workflow.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
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

func NewService(store Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenParams carries the fields needed to raise a ticket.
type OpenParams struct {
	PrincipalID id.PrincipalID
	Category    Category
	Subject     string
	Description string
}

// Open raises a new ticket in status open.
func (s *Service) Open(ctx context.Context, params OpenParams) (*Ticket, error) {
	if params.PrincipalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "principal ID is required")
	}
	if params.Subject == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}

	now := s.now()
	ticket := &Ticket{
		ID:          id.TicketID(uuid.New()),
		PrincipalID: params.PrincipalID,
		Category:    params.Category,
		Subject:     params.Subject,
		Description: params.Description,
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, ticket); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to create ticket")
	}

	if s.metrics != nil {
		s.metrics.TicketsOpened.Inc()
	}
	s.logger.InfoContext(ctx, "grievance ticket opened",
		"ticket_id", ticket.ID,
		"principal_id", params.PrincipalID,
		"category", params.Category,
	)
	return ticket, nil
}

// List returns the principal's tickets, oldest first.
func (s *Service) List(ctx context.Context, principalID id.PrincipalID) ([]*Ticket, error) {
	tickets, err := s.store.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to list tickets")
	}
	return tickets, nil
}

// ListOpen returns all unresolved tickets, for support staff.
func (s *Service) ListOpen(ctx context.Context) ([]*Ticket, error) {
	tickets, err := s.store.ListOpen(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to list open tickets")
	}
	return tickets, nil
}

// Get returns one ticket, restricted to its owner unless asSupport is set.
func (s *Service) Get(ctx context.Context, ticketID id.TicketID, principalID id.PrincipalID, asSupport bool) (*Ticket, error) {
	ticket, err := s.store.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "ticket not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to read ticket")
	}
	if !asSupport && ticket.PrincipalID != principalID {
		// Hide existence of other principals' tickets.
		return nil, dErrors.New(dErrors.CodeNotFound, "ticket not found")
	}
	return ticket, nil
}

// Transition moves a ticket along the workflow. Only forward moves are
// allowed, and resolving requires a resolution note.
func (s *Service) Transition(ctx context.Context, ticketID id.TicketID, principalID id.PrincipalID, asSupport bool, to Status, resolution string) (*Ticket, error) {
	ticket, err := s.Get(ctx, ticketID, principalID, asSupport)
	if err != nil {
		return nil, err
	}

	if !canTransition(ticket.Status, to) {
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			"cannot move ticket from "+string(ticket.Status)+" to "+string(to))
	}
	if to == StatusResolved && resolution == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "resolution note is required")
	}

	ticket.Status = to
	ticket.Resolution = resolution
	ticket.UpdatedAt = s.now()

	if err := s.store.Update(ctx, ticket); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to update ticket")
	}

	s.logger.InfoContext(ctx, "grievance ticket transitioned",
		"ticket_id", ticket.ID,
		"status", to,
	)
	return ticket, nil
}
