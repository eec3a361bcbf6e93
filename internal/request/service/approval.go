package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"lifeline/internal/request/models"
	"lifeline/internal/reservation"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/requestcontext"
)

// DeliveryInput carries dispatch details supplied at approval.
type DeliveryInput struct {
	DriverName       string
	ContactNumber    string
	VehicleNumber    string
	EstimatedArrival string
	Notes            string
}

// Approval is the result of a successful approval. Code is the cleartext
// delivery code; it is returned only here and never stored.
type Approval struct {
	Request *models.Request
	Code    string
}

// Approve reserves stock for a pending request and issues its delivery code.
// A stock shortfall leaves the request pending and returns the
// *reservation.InsufficientStockError.
func (s *Service) Approve(ctx context.Context, requestID id.RequestID, delivery DeliveryInput) (*Approval, error) {
	r, err := s.load(ctx, requestID, models.StatusApproved)
	if err != nil {
		return nil, err
	}

	unitIDs, err := s.reserver.Reserve(ctx, reservation.Request{
		BloodGroup: r.BloodGroup,
		Component:  r.Component,
		Quantity:   r.Quantity,
		RequestID:  r.ID.String(),
	})
	if err != nil {
		s.logger.InfoContext(ctx, "approval could not reserve stock",
			"blood_request_id", r.ID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}

	code, hash, err := s.issueCode()
	if err != nil {
		s.release(ctx, r.ID, unitIDs)
		return nil, err
	}

	now := requestcontext.Now(ctx)
	r.Status = models.StatusApproved
	r.ReservedUnitIDs = unitIDs
	r.RejectionReason = ""
	r.UpdatedAt = now
	r.Delivery = models.Delivery{
		DriverName:       strings.TrimSpace(delivery.DriverName),
		ContactNumber:    strings.TrimSpace(delivery.ContactNumber),
		VehicleNumber:    strings.TrimSpace(delivery.VehicleNumber),
		EstimatedArrival: strings.TrimSpace(delivery.EstimatedArrival),
		Notes:            strings.TrimSpace(delivery.Notes),
		StartedAt:        &now,
		CodeHash:         hash,
		CodeIssuedAt:     &now,
	}
	err = s.save(ctx, r, models.StatusPending, s.transitionEvent(r, models.StatusPending, map[string]string{
		"units": strconv.Itoa(len(unitIDs)),
	}))
	if err != nil {
		s.release(ctx, r.ID, unitIDs)
		return nil, translate(err, "request "+r.ID.String())
	}

	s.recordTransition(models.StatusPending, models.StatusApproved)
	s.logger.InfoContext(ctx, "blood request approved",
		"blood_request_id", r.ID.String(),
		"units", len(unitIDs),
		"request_id", requestcontext.RequestID(ctx),
	)
	return &Approval{Request: r, Code: code}, nil
}

func (s *Service) issueCode() (string, string, error) {
	code, err := s.generate()
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate delivery code")
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash delivery code")
	}
	return code, hash, nil
}

// release undoes a reservation the request could not keep.
func (s *Service) release(ctx context.Context, requestID id.RequestID, unitIDs []id.UnitID) {
	if err := s.reserver.Release(ctx, unitIDs); err != nil {
		s.logger.ErrorContext(ctx, "failed to release reserved units",
			"blood_request_id", requestID.String(),
			"units", len(unitIDs),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// Reject declines a pending request, or cancels an approved one and returns its
// units to stock.
func (s *Service) Reject(ctx context.Context, requestID id.RequestID, reason string) (*models.Request, error) {
	r, err := s.load(ctx, requestID, models.StatusRejected)
	if err != nil {
		return nil, err
	}
	return s.reject(ctx, r, strings.TrimSpace(reason))
}

func (s *Service) reject(ctx context.Context, r *models.Request, reason string) (*models.Request, error) {
	from := r.Status
	held := r.ReservedUnitIDs

	r.Status = models.StatusRejected
	r.RejectionReason = reason
	r.ReservedUnitIDs = nil
	r.Delivery.CodeHash = ""
	r.UpdatedAt = requestcontext.Now(ctx)
	attrs := map[string]string{}
	if reason != "" {
		attrs["reason"] = reason
	}
	if err := s.save(ctx, r, from, s.transitionEvent(r, from, attrs)); err != nil {
		return nil, translate(err, "request "+r.ID.String())
	}
	s.recordTransition(from, models.StatusRejected)

	if from == models.StatusApproved && len(held) > 0 {
		if err := s.reserver.Release(ctx, held); err != nil {
			s.logger.ErrorContext(ctx, "rejected request left units reserved",
				"blood_request_id", r.ID.String(),
				"units", len(held),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil, err
		}
	}
	s.logger.InfoContext(ctx, "blood request rejected",
		"blood_request_id", r.ID.String(),
		"from", string(from),
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	return r, nil
}

// Reopen moves a rejected request back to pending.
func (s *Service) Reopen(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	r, err := s.load(ctx, requestID, models.StatusPending)
	if err != nil {
		return nil, err
	}
	from := r.Status
	r.Status = models.StatusPending
	r.RejectionReason = ""
	r.Delivery = models.Delivery{}
	r.UpdatedAt = requestcontext.Now(ctx)
	if err := s.save(ctx, r, from, s.transitionEvent(r, from, nil)); err != nil {
		return nil, translate(err, "request "+r.ID.String())
	}
	s.recordTransition(from, models.StatusPending)
	return r, nil
}

// ExpireStaleReservations rejects approved requests whose delivery has not
// completed within the hold TTL, releasing their units. It is a no-op when no
// TTL is configured.
func (s *Service) ExpireStaleReservations(ctx context.Context, now time.Time) (int, error) {
	if s.holdTTL <= 0 {
		return 0, nil
	}
	ctx = requestcontext.WithTime(ctx, now)
	cutoff := now.Add(-s.holdTTL)

	const batch = 100
	expired := 0
	for {
		stale, err := s.store.ListStaleApproved(ctx, cutoff, batch)
		if err != nil {
			return expired, translate(err, "failed to list stale reservations")
		}
		progressed := false
		for _, r := range stale {
			if _, err := s.reject(ctx, r, RejectReasonTimeout); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
					continue
				}
				return expired, err
			}
			expired++
			progressed = true
			if s.metrics != nil {
				s.metrics.StaleReservations.Inc()
			}
		}
		if len(stale) < batch || !progressed {
			break
		}
	}
	if expired > 0 {
		s.logger.InfoContext(ctx, "stale reservations expired", "count", expired)
	}
	return expired, nil
}
