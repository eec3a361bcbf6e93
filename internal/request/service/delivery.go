package service

import (
	"context"
	"strconv"

	"lifeline/internal/request/models"
	"lifeline/internal/request/store"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/events"
	"lifeline/pkg/requestcontext"
)

// VerifyDelivery confirms handover with the one-time code. On a match the
// request completes and then its reserved units go out; if they cannot, the
// request is reinstated as approved. On a mismatch the request stays approved
// and the failed attempt is counted.
func (s *Service) VerifyDelivery(ctx context.Context, requestID id.RequestID, code string) (*models.Request, error) {
	r, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusApproved {
		return nil, invalidTransition(r.Status, models.StatusCompleted)
	}
	if r.Delivery.CodeHash == "" {
		return nil, dErrors.New(dErrors.CodeIntegrity, "approved request has no delivery code on record")
	}

	if err := s.hasher.Verify(code, r.Delivery.CodeHash); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeInvalidCredential) {
			return nil, err
		}
		s.recordFailedAttempt(ctx, r)
		s.observeVerification("mismatch")
		return nil, dErrors.New(dErrors.CodeInvalidCredential, "delivery code does not match")
	}

	// Claim the request before touching stock. Once it is completed no reject
	// or expiry can release the units underneath the fulfilment.
	codeHash := r.Delivery.CodeHash
	now := requestcontext.Now(ctx)
	r.Status = models.StatusCompleted
	r.Delivery.CompletedAt = &now
	r.Delivery.CodeHash = ""
	r.UpdatedAt = now
	err = s.save(ctx, r, models.StatusApproved,
		s.transitionEvent(r, models.StatusApproved, nil),
		func(txCtx context.Context) error {
			return s.emit(txCtx, events.KindDeliveryConfirmed, r, "", "", map[string]string{
				"units": strconv.Itoa(len(r.ReservedUnitIDs)),
			})
		},
	)
	if err != nil {
		s.observeVerification("error")
		return nil, translate(err, "request "+r.ID.String())
	}

	if err := s.reserver.Fulfill(ctx, r.ReservedUnitIDs); err != nil {
		s.reinstate(ctx, r.ID, codeHash, err)
		s.observeVerification("error")
		return nil, err
	}

	s.recordTransition(models.StatusApproved, models.StatusCompleted)
	s.observeVerification("match")
	s.logger.InfoContext(ctx, "delivery confirmed",
		"blood_request_id", r.ID.String(),
		"units", len(r.ReservedUnitIDs),
		"request_id", requestcontext.RequestID(ctx),
	)
	return r, nil
}

// reinstate returns a completed request to approved after its units could not
// be fulfilled, restoring the delivery code so the handover can be retried.
func (s *Service) reinstate(ctx context.Context, requestID id.RequestID, codeHash string, cause error) {
	err := s.store.RunInTx(ctx, func(txCtx context.Context, st store.Store) error {
		r, err := st.FindByID(txCtx, requestID)
		if err != nil {
			return err
		}
		r.Status = models.StatusApproved
		r.Delivery.CompletedAt = nil
		r.Delivery.CodeHash = codeHash
		r.UpdatedAt = requestcontext.Now(ctx)
		if err := st.Update(txCtx, r, models.StatusCompleted); err != nil {
			return err
		}
		return s.emit(txCtx, events.KindRequestTransition, r, string(models.StatusCompleted), string(models.StatusApproved),
			map[string]string{"reason": "fulfilment_failed"})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "request completed but units not fulfilled",
			"blood_request_id", requestID.String(),
			"cause", cause,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	s.logger.WarnContext(ctx, "fulfilment failed, request reinstated",
		"blood_request_id", requestID.String(),
		"error", cause,
		"request_id", requestcontext.RequestID(ctx),
	)
}

// recordFailedAttempt counts a wrong code. Bookkeeping failures are logged and
// do not change the caller's result.
func (s *Service) recordFailedAttempt(ctx context.Context, r *models.Request) {
	r.Delivery.FailedAttempts++
	r.UpdatedAt = requestcontext.Now(ctx)
	err := s.save(ctx, r, models.StatusApproved, func(txCtx context.Context) error {
		return s.emit(txCtx, events.KindDeliveryCodeFailed, r, "", "", map[string]string{
			"attempts": strconv.Itoa(r.Delivery.FailedAttempts),
		})
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record rejected delivery code",
			"blood_request_id", r.ID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	s.logger.InfoContext(ctx, "delivery code rejected",
		"blood_request_id", r.ID.String(),
		"attempts", r.Delivery.FailedAttempts,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) observeVerification(result string) {
	if s.metrics != nil {
		s.metrics.DeliveryVerification.WithLabelValues(result).Inc()
	}
}
