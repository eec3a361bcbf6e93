package service

import (
	"context"
	"errors"
	"strconv"

	"lifeline/internal/request/store"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/events"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/requestcontext"
)

// RecordLocation handles a driver location ping. The first ping for an approved
// request starts tracking and emits request.tracking_started exactly once;
// later pings are pass-through. It reports whether this ping started tracking.
func (s *Service) RecordLocation(ctx context.Context, requestID id.RequestID, lat, lng float64) (bool, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return false, dErrors.New(dErrors.CodeValidation, "coordinates out of range")
	}

	if s.latch != nil {
		first, err := s.latch.Acquire(ctx, requestID)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "tracking latch unavailable, falling back to store",
				"blood_request_id", requestID.String(),
				"error", err,
			)
		case !first:
			return false, nil
		}
	}

	started := false
	err := s.store.RunInTx(ctx, func(txCtx context.Context, st store.Store) error {
		flipped, err := st.MarkTrackingStarted(txCtx, requestID, requestcontext.Now(ctx))
		if err != nil || !flipped {
			return err
		}
		started = true
		return s.sink.Emit(txCtx, events.Event{
			Kind:      events.KindTrackingStarted,
			EntityID:  requestID.String(),
			Timestamp: requestcontext.Now(ctx),
			Attributes: map[string]string{
				"lat": strconv.FormatFloat(lat, 'f', 6, 64),
				"lng": strconv.FormatFloat(lng, 'f', 6, 64),
			},
		})
	})
	if err != nil {
		// A ping that did not start tracking must not hold the latch.
		if s.latch != nil {
			if clearErr := s.latch.Clear(ctx, requestID); clearErr != nil {
				s.logger.WarnContext(ctx, "failed to clear tracking latch",
					"blood_request_id", requestID.String(),
					"error", clearErr,
				)
			}
		}
		if errors.Is(err, sentinel.ErrInvalidState) {
			return false, dErrors.New(dErrors.CodeInvalidTransition, "tracking starts only for approved requests")
		}
		return false, translate(err, "request "+requestID.String())
	}

	if started {
		if s.metrics != nil {
			s.metrics.TrackingStarted.Inc()
		}
		s.logger.InfoContext(ctx, "delivery tracking started",
			"blood_request_id", requestID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return started, nil
}
