package service

import (
	"context"

	"lifeline/internal/reservation"
	id "lifeline/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Reserver,TrackingLatch

// Reserver is the reservation engine as seen by the request workflow.
type Reserver interface {
	Reserve(ctx context.Context, req reservation.Request) ([]id.UnitID, error)
	Release(ctx context.Context, unitIDs []id.UnitID) error
	Fulfill(ctx context.Context, unitIDs []id.UnitID) error
}

// TrackingLatch marks requests whose first location ping was already handled.
type TrackingLatch interface {
	Acquire(ctx context.Context, requestID id.RequestID) (bool, error)
	Clear(ctx context.Context, requestID id.RequestID) error
}
