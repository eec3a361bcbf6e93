package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lifeline/internal/request/models"
	"lifeline/internal/request/store"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/sentinel"
)

// InMemoryStore keeps requests in a map. RunInTx serializes with every other
// call and discards its writes if fn fails.
type InMemoryStore struct {
	mu       sync.Mutex
	requests map[id.RequestID]*models.Request
}

func New() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.RequestID]*models.Request)}
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &txStore{base: s.requests, staged: make(map[id.RequestID]*models.Request)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, r := range tx.staged {
		s.requests[k] = r
	}
	return nil
}

func (s *InMemoryStore) run(ctx context.Context, fn func(st store.Store) error) error {
	return s.RunInTx(ctx, func(_ context.Context, st store.Store) error { return fn(st) })
}

func (s *InMemoryStore) Create(ctx context.Context, r *models.Request) error {
	return s.run(ctx, func(st store.Store) error { return st.Create(ctx, r) })
}

func (s *InMemoryStore) FindByID(ctx context.Context, requestID id.RequestID) (out *models.Request, err error) {
	err = s.run(ctx, func(st store.Store) error {
		out, err = st.FindByID(ctx, requestID)
		return err
	})
	return out, err
}

func (s *InMemoryStore) List(ctx context.Context, filter models.Filter) (out []*models.Request, err error) {
	err = s.run(ctx, func(st store.Store) error {
		out, err = st.List(ctx, filter)
		return err
	})
	return out, err
}

func (s *InMemoryStore) Update(ctx context.Context, r *models.Request, expected models.Status) error {
	return s.run(ctx, func(st store.Store) error { return st.Update(ctx, r, expected) })
}

func (s *InMemoryStore) MarkTrackingStarted(ctx context.Context, requestID id.RequestID, at time.Time) (flipped bool, err error) {
	err = s.run(ctx, func(st store.Store) error {
		flipped, err = st.MarkTrackingStarted(ctx, requestID, at)
		return err
	})
	return flipped, err
}

func (s *InMemoryStore) ListStaleApproved(ctx context.Context, cutoff time.Time, limit int) (out []*models.Request, err error) {
	err = s.run(ctx, func(st store.Store) error {
		out, err = st.ListStaleApproved(ctx, cutoff, limit)
		return err
	})
	return out, err
}

// txStore reads staged writes first. The owning store's lock is held while it lives.
type txStore struct {
	base   map[id.RequestID]*models.Request
	staged map[id.RequestID]*models.Request
}

func (t *txStore) get(requestID id.RequestID) (*models.Request, bool) {
	if r, ok := t.staged[requestID]; ok {
		return r, true
	}
	r, ok := t.base[requestID]
	return r, ok
}

// all returns every request, newest first.
func (t *txStore) all() []*models.Request {
	out := make([]*models.Request, 0, len(t.base)+len(t.staged))
	for k, r := range t.base {
		if _, shadowed := t.staged[k]; !shadowed {
			out = append(out, r)
		}
	}
	for _, r := range t.staged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (t *txStore) Create(_ context.Context, r *models.Request) error {
	if _, exists := t.get(r.ID); exists {
		return fmt.Errorf("request %s: %w", r.ID, sentinel.ErrAlreadyUsed)
	}
	t.staged[r.ID] = r.Clone()
	return nil
}

func (t *txStore) FindByID(_ context.Context, requestID id.RequestID) (*models.Request, error) {
	r, ok := t.get(requestID)
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return r.Clone(), nil
}

func (t *txStore) List(_ context.Context, filter models.Filter) ([]*models.Request, error) {
	var out []*models.Request
	for _, r := range t.all() {
		if !filter.Matches(r) {
			continue
		}
		out = append(out, r.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (t *txStore) Update(_ context.Context, r *models.Request, expected models.Status) error {
	current, ok := t.get(r.ID)
	if !ok {
		return fmt.Errorf("request %s: %w", r.ID, sentinel.ErrNotFound)
	}
	if current.Status != expected {
		return fmt.Errorf("request %s is %s: %w", r.ID, current.Status, sentinel.ErrInvalidState)
	}
	if current.Version != r.Version {
		return fmt.Errorf("request %s changed since version %d: %w", r.ID, r.Version, sentinel.ErrInvalidState)
	}
	next := r.Clone()
	next.Version = current.Version + 1
	next.CreatedAt = current.CreatedAt
	next.Delivery.TrackingStarted = current.Delivery.TrackingStarted
	t.staged[r.ID] = next
	r.Version = next.Version
	return nil
}

func (t *txStore) MarkTrackingStarted(_ context.Context, requestID id.RequestID, at time.Time) (bool, error) {
	current, ok := t.get(requestID)
	if !ok {
		return false, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if current.Status != models.StatusApproved {
		return false, fmt.Errorf("request %s is %s: %w", requestID, current.Status, sentinel.ErrInvalidState)
	}
	if current.Delivery.TrackingStarted {
		return false, nil
	}
	next := current.Clone()
	next.Delivery.TrackingStarted = true
	next.UpdatedAt = at
	t.staged[requestID] = next
	return true, nil
}

func (t *txStore) ListStaleApproved(_ context.Context, cutoff time.Time, limit int) ([]*models.Request, error) {
	var out []*models.Request
	for _, r := range t.all() {
		if r.Status != models.StatusApproved || r.Delivery.StartedAt == nil || !r.Delivery.StartedAt.Before(cutoff) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Delivery.StartedAt.Before(*out[j].Delivery.StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
