// Package relay moves committed outbox rows onto the event stream.
//
// Delivery is at-least-once: a crash between publish and MarkPublished repeats
// the batch, so consumers deduplicate on the event id carried in the payload.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Entry is one pending outbox row.
type Entry struct {
	ID      uuid.UUID
	Topic   string
	Key     string
	Payload []byte
}

// Outbox is the relay's view of the outbox table.
type Outbox interface {
	FetchPending(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Producer publishes a batch synchronously.
type Producer interface {
	Publish(ctx context.Context, entries []Entry) error
}

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Worker polls the outbox and publishes pending entries.
type Worker struct {
	outbox       Outbox
	producer     Producer
	logger       *slog.Logger
	batchSize    int
	pollInterval time.Duration
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func NewWorker(outbox Outbox, producer Producer, opts ...Option) *Worker {
	w := &Worker{
		outbox:       outbox,
		producer:     producer,
		logger:       slog.New(slog.DiscardHandler),
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the outbox until ctx is cancelled. Publish failures are logged and
// retried on the next tick; they never stop the worker.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		for {
			n, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.WarnContext(ctx, "outbox relay batch failed", "error", err)
				break
			}
			if n < w.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce publishes at most one batch and returns how many entries it delivered.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	entries, err := w.outbox.FetchPending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := w.producer.Publish(ctx, entries); err != nil {
		return 0, err
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := w.outbox.MarkPublished(ctx, ids, time.Now()); err != nil {
		return 0, err
	}
	w.logger.DebugContext(ctx, "outbox batch published", "count", len(entries))
	return len(entries), nil
}
