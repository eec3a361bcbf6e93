package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"lifeline/pkg/requestcontext"
)

// Sink receives status-change events. Services get one through their options;
// there is no process-wide emitter.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists events. The postgres implementation writes to the outbox inside
// the caller's transaction when ctx carries one.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, entity Entity, entityID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Publisher is a fail-closed Sink: Emit returns the store error and the calling
// operation must fail with it.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills in id, timestamp and correlation data, then persists the event.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Kind == "" {
		return fmt.Errorf("event requires kind")
	}
	if event.EntityID == "" {
		return fmt.Errorf("event requires entity id")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.ActorID(ctx)
	}
	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "failed to persist event",
				"kind", event.Kind,
				"entity_id", event.EntityID,
				"error", err,
			)
		}
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// List returns the history of one entity.
func (p *Publisher) List(ctx context.Context, entity Entity, entityID string) ([]Event, error) {
	return p.store.ListByEntity(ctx, entity, entityID)
}

// Discard is a Sink that drops events. Used where no stream is configured.
type Discard struct{}

func (Discard) Emit(context.Context, Event) error { return nil }
