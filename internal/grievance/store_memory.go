package grievance

import (
	"context"
	"sort"
	"sync"

	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

// Store persists tickets.
type Store interface {
	Create(ctx context.Context, ticket *Ticket) error
	Get(ctx context.Context, ticketID id.TicketID) (*Ticket, error)
	Update(ctx context.Context, ticket *Ticket) error
	ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*Ticket, error)
	ListOpen(ctx context.Context) ([]*Ticket, error)
}

// InMemoryStore keeps tickets in a map. Support staff volumes are small
// enough that linear scans are fine.
type InMemoryStore struct {
	mu      sync.RWMutex
	tickets map[id.TicketID]*Ticket
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tickets: make(map[id.TicketID]*Ticket)}
}

func (s *InMemoryStore) Create(_ context.Context, ticket *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tickets[ticket.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *ticket
	s.tickets[ticket.ID] = &clone
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, ticketID id.TicketID) (*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *ticket
	return &clone, nil
}

func (s *InMemoryStore) Update(_ context.Context, ticket *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[ticket.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *ticket
	s.tickets[ticket.ID] = &clone
	return nil
}

func (s *InMemoryStore) ListByPrincipal(_ context.Context, principalID id.PrincipalID) ([]*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Ticket
	for _, ticket := range s.tickets {
		if ticket.PrincipalID == principalID {
			clone := *ticket
			out = append(out, &clone)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemoryStore) ListOpen(_ context.Context) ([]*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Ticket
	for _, ticket := range s.tickets {
		if ticket.Status != StatusResolved {
			clone := *ticket
			out = append(out, &clone)
		}
	}
	sortByCreation(out)
	return out, nil
}

func sortByCreation(tickets []*Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
}
