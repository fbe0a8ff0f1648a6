package auditlog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink receives a copy of every entry after it is persisted. Used for
// streaming the compliance trail to external systems (see KafkaSink).
// Sink failures are logged, never propagated: the store is the source of
// truth and the ledger must not fail because a stream is down.
type Sink interface {
	Send(ctx context.Context, entry Entry) error
}

// Publisher captures consent log entries. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store   Store
	sinks   []Sink
	entries chan Entry
	wg      sync.WaitGroup
	logger  *slog.Logger
	async   bool
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Entries are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.entries = make(chan Entry, size)
			p.async = true
		}
	}
}

// WithSink adds a downstream sink that receives persisted entries.
func WithSink(sink Sink) PublisherOption {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

// WithPublisherLogger sets a logger for async error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEntries()
	}
	return p
}

func (p *Publisher) processEntries() {
	defer p.wg.Done()
	for entry := range p.entries {
		p.persist(context.Background(), entry)
	}
}

func (p *Publisher) persist(ctx context.Context, entry Entry) {
	if err := p.store.Append(ctx, entry); err != nil {
		if p.logger != nil {
			p.logger.Error("failed to persist consent log entry",
				"error", err,
				"action", entry.Action,
				"principal_id", entry.PrincipalID,
			)
		}
		return
	}
	for _, sink := range p.sinks {
		if err := sink.Send(ctx, entry); err != nil && p.logger != nil {
			p.logger.Error("consent log sink failed",
				"error", err,
				"action", entry.Action,
				"principal_id", entry.PrincipalID,
			)
		}
	}
}

// Close shuts down the async publisher and waits for pending entries to drain.
func (p *Publisher) Close() {
	if p.async && p.entries != nil {
		close(p.entries)
		p.wg.Wait()
	}
}

// Emit records a consent log entry. In synchronous mode the entry is
// persisted before Emit returns; in async mode it is queued, and dropped
// with a warning when the buffer is full to keep the ledger hot path
// non-blocking.
func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if p.async {
		select {
		case p.entries <- entry:
			return nil
		default:
			if p.logger != nil {
				p.logger.Warn("consent log buffer full, entry dropped",
					"action", entry.Action,
					"principal_id", entry.PrincipalID,
				)
			}
			return nil
		}
	}
	p.persist(ctx, entry)
	return nil
}

// List returns the full trail for one principal, oldest first.
func (p *Publisher) List(ctx context.Context, principalID string) ([]Entry, error) {
	return p.store.ListByPrincipal(ctx, principalID)
}

// ListByActions returns the principal's trail restricted to the given
// actions, oldest first.
func (p *Publisher) ListByActions(ctx context.Context, principalID string, actions []Action) ([]Entry, error) {
	return p.store.ListByActions(ctx, principalID, actions)
}
