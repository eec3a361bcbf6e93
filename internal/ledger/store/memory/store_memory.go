package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lifeline/internal/ledger/models"
	"lifeline/internal/ledger/store"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/sentinel"
)

// Error Contract:
// - ErrNotFound when the unit does not exist
// - ErrAlreadyUsed when creating a duplicate id
// - ErrInvalidState when a conditional update sees a different status

// InMemoryStore keeps units in a map for tests and single-process deployments.
//
// A single mutex serializes every unit of work. Writes inside RunInTx are staged
// and merged into the map only when fn returns nil, so a failed unit of work
// leaves no trace.
type InMemoryStore struct {
	mu    sync.Mutex
	units map[id.UnitID]*models.Unit
}

func New() *InMemoryStore {
	return &InMemoryStore{units: make(map[id.UnitID]*models.Unit)}
}

// RunInTx holds the store lock for the duration of fn.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.newView()
	if err := fn(ctx, v); err != nil {
		return err
	}
	v.commit()
	return nil
}

func (s *InMemoryStore) newView() *view {
	return &view{base: s.units, staged: make(map[id.UnitID]*models.Unit)}
}

// autocommit runs a single operation as its own unit of work.
func (s *InMemoryStore) autocommit(fn func(v *view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.newView()
	if err := fn(v); err != nil {
		return err
	}
	v.commit()
	return nil
}

func (s *InMemoryStore) Create(ctx context.Context, u *models.Unit) error {
	return s.autocommit(func(v *view) error { return v.Create(ctx, u) })
}

func (s *InMemoryStore) FindByID(ctx context.Context, unitID id.UnitID) (out *models.Unit, err error) {
	err = s.autocommit(func(v *view) error {
		out, err = v.FindByID(ctx, unitID)
		return err
	})
	return out, err
}

func (s *InMemoryStore) FindByIDs(ctx context.Context, ids []id.UnitID) (out []*models.Unit, err error) {
	err = s.autocommit(func(v *view) error {
		out, err = v.FindByIDs(ctx, ids)
		return err
	})
	return out, err
}

func (s *InMemoryStore) List(ctx context.Context, filter models.UnitFilter) (out []*models.Unit, err error) {
	err = s.autocommit(func(v *view) error {
		out, err = v.List(ctx, filter)
		return err
	})
	return out, err
}

func (s *InMemoryStore) Update(ctx context.Context, u *models.Unit, expected models.Status) error {
	return s.autocommit(func(v *view) error { return v.Update(ctx, u, expected) })
}

func (s *InMemoryStore) ClaimAvailable(ctx context.Context, filter models.ClaimFilter, n int, now time.Time) (out []*models.Unit, err error) {
	err = s.autocommit(func(v *view) error {
		out, err = v.ClaimAvailable(ctx, filter, n, now)
		return err
	})
	return out, err
}

func (s *InMemoryStore) CountAllocatable(ctx context.Context, filter models.ClaimFilter, now time.Time) (out int, err error) {
	err = s.autocommit(func(v *view) error {
		out, err = v.CountAllocatable(ctx, filter, now)
		return err
	})
	return out, err
}

func (s *InMemoryStore) LockAllocatable(ctx context.Context, filter models.ClaimFilter, now time.Time) (out int, err error) {
	err = s.autocommit(func(v *view) error {
		out, err = v.LockAllocatable(ctx, filter, now)
		return err
	})
	return out, err
}

func (s *InMemoryStore) ListExpiring(ctx context.Context, now time.Time, limit int) (out []*models.Unit, err error) {
	err = s.autocommit(func(v *view) error {
		out, err = v.ListExpiring(ctx, now, limit)
		return err
	})
	return out, err
}

func (s *InMemoryStore) StockLevels(ctx context.Context, now time.Time) (out []models.StockLevel, err error) {
	err = s.autocommit(func(v *view) error {
		out, err = v.StockLevels(ctx, now)
		return err
	})
	return out, err
}

// view reads through staged writes to the committed map. The caller holds the
// store lock for the lifetime of a view.
type view struct {
	base   map[id.UnitID]*models.Unit
	staged map[id.UnitID]*models.Unit
}

func (v *view) commit() {
	for k, u := range v.staged {
		v.base[k] = u
	}
}

func (v *view) get(unitID id.UnitID) (*models.Unit, bool) {
	if u, ok := v.staged[unitID]; ok {
		return u, true
	}
	u, ok := v.base[unitID]
	return u, ok
}

// all returns the merged units sorted by creation time then id.
func (v *view) all() []*models.Unit {
	out := make([]*models.Unit, 0, len(v.base)+len(v.staged))
	for k, u := range v.base {
		if _, shadowed := v.staged[k]; !shadowed {
			out = append(out, u)
		}
	}
	for _, u := range v.staged {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v *view) Create(_ context.Context, u *models.Unit) error {
	if _, exists := v.get(u.ID); exists {
		return fmt.Errorf("unit %s: %w", u.ID, sentinel.ErrAlreadyUsed)
	}
	v.staged[u.ID] = u.Clone()
	return nil
}

func (v *view) FindByID(_ context.Context, unitID id.UnitID) (*models.Unit, error) {
	u, ok := v.get(unitID)
	if !ok {
		return nil, fmt.Errorf("unit %s: %w", unitID, sentinel.ErrNotFound)
	}
	return u.Clone(), nil
}

func (v *view) FindByIDs(_ context.Context, ids []id.UnitID) ([]*models.Unit, error) {
	out := make([]*models.Unit, 0, len(ids))
	seen := make(map[id.UnitID]struct{}, len(ids))
	for _, unitID := range ids {
		if _, dup := seen[unitID]; dup {
			continue
		}
		seen[unitID] = struct{}{}
		if u, ok := v.get(unitID); ok {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (v *view) List(_ context.Context, filter models.UnitFilter) ([]*models.Unit, error) {
	var out []*models.Unit
	for _, u := range v.all() {
		if !filter.Matches(u) {
			continue
		}
		out = append(out, u.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (v *view) Update(_ context.Context, u *models.Unit, expected models.Status) error {
	current, ok := v.get(u.ID)
	if !ok {
		return fmt.Errorf("unit %s: %w", u.ID, sentinel.ErrNotFound)
	}
	if current.Status != expected {
		return fmt.Errorf("unit %s is %s: %w", u.ID, current.Status, sentinel.ErrInvalidState)
	}
	next := u.Clone()
	next.ExpiresAt = current.ExpiresAt
	next.CreatedAt = current.CreatedAt
	v.staged[u.ID] = next
	return nil
}

func (v *view) allocatable(filter models.ClaimFilter, now time.Time) []*models.Unit {
	var out []*models.Unit
	for _, u := range v.all() {
		if u.BloodGroup == filter.BloodGroup && u.Component == filter.Component && u.IsAllocatableAt(now) {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v *view) ClaimAvailable(_ context.Context, filter models.ClaimFilter, n int, now time.Time) ([]*models.Unit, error) {
	if n <= 0 {
		return nil, nil
	}
	candidates := v.allocatable(filter, now)
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]*models.Unit, 0, len(candidates))
	for _, u := range candidates {
		next := u.Clone()
		next.Status = models.StatusReserved
		next.UpdatedAt = now
		v.staged[next.ID] = next
		out = append(out, next.Clone())
	}
	return out, nil
}

func (v *view) CountAllocatable(_ context.Context, filter models.ClaimFilter, now time.Time) (int, error) {
	return len(v.allocatable(filter, now)), nil
}

// LockAllocatable is CountAllocatable: units of work are already serialized.
func (v *view) LockAllocatable(ctx context.Context, filter models.ClaimFilter, now time.Time) (int, error) {
	return v.CountAllocatable(ctx, filter, now)
}

func (v *view) ListExpiring(_ context.Context, now time.Time, limit int) ([]*models.Unit, error) {
	var out []*models.Unit
	for _, u := range v.all() {
		if (u.Status == models.StatusAvailable || u.Status == models.StatusReserved) && u.IsExpiredAt(now) {
			out = append(out, u.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v *view) StockLevels(_ context.Context, now time.Time) ([]models.StockLevel, error) {
	type key struct {
		group     models.BloodGroup
		component models.Component
	}
	levels := make(map[key]*models.StockLevel)
	for _, u := range v.all() {
		if !u.IsAllocatableAt(now) {
			continue
		}
		k := key{u.BloodGroup, u.Component}
		lvl, ok := levels[k]
		if !ok {
			lvl = &models.StockLevel{BloodGroup: u.BloodGroup, Component: u.Component}
			levels[k] = lvl
		}
		lvl.Units++
		lvl.Quantity += u.Quantity
	}
	out := make([]models.StockLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, *lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BloodGroup != out[j].BloodGroup {
			return out[i].BloodGroup < out[j].BloodGroup
		}
		return out[i].Component < out[j].Component
	})
	return out, nil
}
