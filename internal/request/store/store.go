// Package store declares the persistence contract of blood requests.
package store

import (
	"context"
	"time"

	"lifeline/internal/request/models"
	id "lifeline/pkg/domain"
)

type Store interface {
	Create(ctx context.Context, r *models.Request) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	// List returns matching requests, newest first.
	List(ctx context.Context, filter models.Filter) ([]*models.Request, error)
	// Update writes r only if the stored status still equals expected and the
	// stored version still equals r.Version, then advances r.Version.
	// Returns sentinel.ErrNotFound or sentinel.ErrInvalidState otherwise.
	// The tracking-started flag is owned by MarkTrackingStarted and never rewritten here.
	Update(ctx context.Context, r *models.Request, expected models.Status) error
	// MarkTrackingStarted flips the tracking flag of an approved request and
	// reports whether this call flipped it. Returns sentinel.ErrInvalidState
	// when the request is not approved.
	MarkTrackingStarted(ctx context.Context, requestID id.RequestID, at time.Time) (bool, error)
	// ListStaleApproved returns approved requests whose delivery started before cutoff.
	ListStaleApproved(ctx context.Context, cutoff time.Time, limit int) ([]*models.Request, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

type Transactional interface {
	Store
	TxRunner
}
