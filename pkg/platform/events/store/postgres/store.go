package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lifeline/pkg/platform/events"
	"lifeline/pkg/platform/events/relay"
	txcontext "lifeline/pkg/platform/tx"
)

// Store implements events.Store using the transactional outbox pattern. Append
// joins the ledger transaction carried by ctx, so an event exists only if the
// transition that produced it committed. The relay publishes pending rows.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes the event to the outbox.
func (s *Store) Append(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = txcontext.Pick(ctx, s.db).ExecContext(ctx, query,
		event.ID,
		string(event.Entity()),
		event.EntityID,
		string(event.Kind),
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *Store) ListByEntity(ctx context.Context, entity events.Entity, entityID string) ([]events.Event, error) {
	query := `
		SELECT payload FROM outbox
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(entity), entityID)
	if err != nil {
		return nil, fmt.Errorf("query events by entity: %w", err)
	}
	defer rows.Close()
	return scanPayloads(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM outbox ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()
	return scanPayloads(rows)
}

// FetchPending returns unpublished outbox rows, oldest first.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]relay.Entry, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox: %w", err)
	}
	defer rows.Close()

	var entries []relay.Entry
	for rows.Next() {
		var (
			entry         relay.Entry
			aggregateType string
		)
		if err := rows.Scan(&entry.ID, &aggregateType, &entry.Key, &entry.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entry.Topic = events.Entity(aggregateType).Topic()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given outbox rows as delivered.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = $2 WHERE id = ANY($1::uuid[]) AND published_at IS NULL`,
		pq.Array(raw), at)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func scanPayloads(rows *sql.Rows) ([]events.Event, error) {
	var out []events.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event payload: %w", err)
		}
		var e events.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal event payload: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
