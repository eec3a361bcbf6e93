// Package store declares the persistence contract of the unit ledger.
// Implementations return pkg/platform/sentinel errors; the ledger service
// translates them into domain errors.
package store

import (
	"context"
	"time"

	"lifeline/internal/ledger/models"
	id "lifeline/pkg/domain"
)

// Store persists units.
type Store interface {
	// Create inserts a new unit. Returns sentinel.ErrAlreadyUsed on a duplicate id.
	Create(ctx context.Context, u *models.Unit) error
	FindByID(ctx context.Context, unitID id.UnitID) (*models.Unit, error)
	// FindByIDs returns the units that exist among ids, in no particular order.
	FindByIDs(ctx context.Context, ids []id.UnitID) ([]*models.Unit, error)
	List(ctx context.Context, filter models.UnitFilter) ([]*models.Unit, error)
	// Update writes u only if the stored status still equals expected.
	// Returns sentinel.ErrNotFound or sentinel.ErrInvalidState otherwise.
	// ID, ExpiresAt and CreatedAt are never rewritten.
	Update(ctx context.Context, u *models.Unit, expected models.Status) error
	// ClaimAvailable moves up to n allocatable units matching filter to reserved,
	// soonest expiry first, and returns exactly the units it moved.
	ClaimAvailable(ctx context.Context, filter models.ClaimFilter, n int, now time.Time) ([]*models.Unit, error)
	CountAllocatable(ctx context.Context, filter models.ClaimFilter, now time.Time) (int, error)
	// LockAllocatable counts like CountAllocatable but waits out concurrent
	// claimers and holds the counted rows until the unit of work ends.
	LockAllocatable(ctx context.Context, filter models.ClaimFilter, now time.Time) (int, error)
	// ListExpiring returns available or reserved units whose expiry is at or before now.
	ListExpiring(ctx context.Context, now time.Time, limit int) ([]*models.Unit, error)
	StockLevels(ctx context.Context, now time.Time) ([]models.StockLevel, error)
}

// TxRunner runs fn as one unit of work. Nothing fn wrote is visible to other
// callers unless fn returns nil. fn must use the ctx and Store it is given.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// Transactional is a store that can also open units of work.
type Transactional interface {
	Store
	TxRunner
}
