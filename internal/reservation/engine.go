// Package reservation allocates tested-safe stock to requests without ever
// committing a unit twice.
//
// A reservation is a single conditional claim inside a ledger unit of work.
// If fewer units than requested come back, the unit of work aborts so nothing
// stays reserved, the eligible stock is counted again, and the claim is retried
// only when the count shows enough stock (the shortfall was lock contention).
// The last attempt locks the eligible rows before claiming, so it either
// succeeds or reports the exact shortfall.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lifeline/internal/ledger/models"
	ledger "lifeline/internal/ledger/service"
	"lifeline/internal/platform/metrics"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/requestcontext"
)

const (
	defaultMaxAttempts = 4
	defaultBackoff     = 15 * time.Millisecond
)

// InsufficientStockError reports a shortfall. Available is the eligible count
// observed after the aborted claim.
type InsufficientStockError struct {
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
}

// Unwrap exposes the domain code so dErrors.HasCode and HTTP mapping work.
func (e *InsufficientStockError) Unwrap() error {
	return dErrors.New(dErrors.CodeInsufficientStock, e.Error())
}

// Ledger is the subset of the unit ledger the engine uses.
type Ledger interface {
	Atomically(ctx context.Context, fn func(tx *ledger.Tx) error) error
}

// Request describes the stock to claim.
type Request struct {
	BloodGroup models.BloodGroup
	Component  models.Component
	Quantity   int
	// RequestID tags the claim events with the owning blood request.
	RequestID string
}

type Engine struct {
	ledger      Ledger
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithMaxAttempts bounds claim attempts per reservation.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between attempts; each wait is jittered.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.backoff = d
	}
}

func New(l Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger:      l,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer("lifeline/reservation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// shortClaim aborts the unit of work when the claim came back short.
type shortClaim struct {
	claimed int
}

func (e shortClaim) Error() string {
	return fmt.Sprintf("claim returned %d units", e.claimed)
}

// Reserve claims exactly req.Quantity eligible units, soonest expiry first, and
// returns their ids in that order. On a shortfall no unit is mutated and the
// error is *InsufficientStockError.
func (e *Engine) Reserve(ctx context.Context, req Request) ([]id.UnitID, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "reservation.Reserve", trace.WithAttributes(
		attribute.String("blood.group", string(req.BloodGroup)),
		attribute.String("blood.component", string(req.Component)),
		attribute.Int("quantity", req.Quantity),
	))
	defer span.End()

	if err := validate(req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "context cancelled")
		e.observe(start, "error", 0)
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "reservation aborted: context cancelled")
	}

	filter := models.ClaimFilter{BloodGroup: req.BloodGroup, Component: req.Component}
	for attempt := 1; ; attempt++ {
		ids, err := e.attempt(ctx, filter, req, attempt >= e.maxAttempts)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			e.observe(start, "ok", len(ids))
			e.logger.InfoContext(ctx, "units reserved",
				"blood_group", string(req.BloodGroup),
				"component", string(req.Component),
				"quantity", req.Quantity,
				"attempts", attempt,
				"request_id", requestcontext.RequestID(ctx),
			)
			return ids, nil
		}

		var stockErr *InsufficientStockError
		if errors.As(err, &stockErr) {
			return nil, e.insufficient(ctx, span, start, req, stockErr)
		}
		var short shortClaim
		if !errors.As(err, &short) {
			span.RecordError(err)
			span.SetStatus(codes.Error, dErrors.Message(err))
			e.observe(start, "error", 0)
			return nil, err
		}

		available, err := e.count(ctx, filter)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, dErrors.Message(err))
			e.observe(start, "error", 0)
			return nil, err
		}
		if available < req.Quantity {
			return nil, e.insufficient(ctx, span, start, req,
				&InsufficientStockError{Requested: req.Quantity, Available: available})
		}
		if attempt >= e.maxAttempts {
			span.SetStatus(codes.Error, "claim contention")
			e.observe(start, "contended", 0)
			return nil, dErrors.New(dErrors.CodeConflict, "stock is being claimed concurrently; retry")
		}

		if e.metrics != nil {
			e.metrics.ReservationRetries.Inc()
		}
		if err := e.wait(ctx, attempt); err != nil {
			span.SetStatus(codes.Error, "context cancelled")
			e.observe(start, "error", 0)
			return nil, err
		}
	}
}

func (e *Engine) insufficient(ctx context.Context, span trace.Span, start time.Time, req Request, stockErr *InsufficientStockError) error {
	span.SetStatus(codes.Error, stockErr.Error())
	e.observe(start, "insufficient", 0)
	e.logger.InfoContext(ctx, "reservation short of stock",
		"blood_group", string(req.BloodGroup),
		"component", string(req.Component),
		"requested", req.Quantity,
		"available", stockErr.Available,
		"request_id", requestcontext.RequestID(ctx),
	)
	return stockErr
}

// attempt runs one claim. A final attempt locks the eligible rows first, so
// its shortfall is an exact count rather than a guess at contention.
func (e *Engine) attempt(ctx context.Context, filter models.ClaimFilter, req Request, final bool) ([]id.UnitID, error) {
	var ids []id.UnitID
	err := e.ledger.Atomically(ctx, func(tx *ledger.Tx) error {
		if final {
			held, err := tx.LockAllocatable(filter)
			if err != nil {
				return err
			}
			if held < req.Quantity {
				return &InsufficientStockError{Requested: req.Quantity, Available: held}
			}
		}
		claimed, err := tx.Claim(filter, req.Quantity)
		if err != nil {
			return err
		}
		if len(claimed) < req.Quantity {
			return shortClaim{claimed: len(claimed)}
		}
		ids = make([]id.UnitID, len(claimed))
		for i, u := range claimed {
			ids[i] = u.ID
			if req.RequestID != "" {
				tx.Annotate(u.ID, "blood_request_id", req.RequestID)
			}
		}
		return nil
	})
	return ids, err
}

func (e *Engine) count(ctx context.Context, filter models.ClaimFilter) (int, error) {
	var n int
	err := e.ledger.Atomically(ctx, func(tx *ledger.Tx) error {
		var err error
		n, err = tx.CountAllocatable(filter)
		return err
	})
	return n, err
}

func (e *Engine) wait(ctx context.Context, attempt int) error {
	if e.backoff <= 0 {
		return nil
	}
	d := e.backoff * time.Duration(attempt)
	d += time.Duration(rand.Int64N(int64(e.backoff)))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "reservation aborted: context cancelled")
	case <-timer.C:
		return nil
	}
}

func (e *Engine) observe(start time.Time, outcome string, units int) {
	if e.metrics != nil {
		e.metrics.ObserveReserve(start, outcome, units)
	}
}

// Release returns reserved units to available stock. Units already available
// are skipped; any other status is an invalid transition and nothing is released.
func (e *Engine) Release(ctx context.Context, unitIDs []id.UnitID) error {
	if len(unitIDs) == 0 {
		return nil
	}
	released := 0
	err := e.ledger.Atomically(ctx, func(tx *ledger.Tx) error {
		released = 0
		for _, unitID := range dedupe(unitIDs) {
			u, err := tx.Get(unitID)
			if err != nil {
				return err
			}
			if u.Status == models.StatusAvailable {
				continue
			}
			if _, err := tx.Transition(unitID, models.StatusAvailable); err != nil {
				return err
			}
			released++
		}
		return nil
	})
	if err != nil {
		return err
	}
	if released > 0 {
		e.logger.InfoContext(ctx, "units released",
			"count", released,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return nil
}

// Fulfill moves every unit from reserved to out in one unit of work.
func (e *Engine) Fulfill(ctx context.Context, unitIDs []id.UnitID) error {
	if len(unitIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "no units to fulfil")
	}
	return e.ledger.Atomically(ctx, func(tx *ledger.Tx) error {
		for _, unitID := range dedupe(unitIDs) {
			if _, err := tx.Transition(unitID, models.StatusOut); err != nil {
				return err
			}
		}
		return nil
	})
}

func validate(req Request) error {
	if !req.BloodGroup.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "blood group is missing or invalid")
	}
	if !req.Component.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "component is missing or invalid")
	}
	if req.Quantity < 1 {
		return dErrors.New(dErrors.CodeValidation, "quantity must be at least 1")
	}
	return nil
}

func dedupe(ids []id.UnitID) []id.UnitID {
	seen := make(map[id.UnitID]struct{}, len(ids))
	out := make([]id.UnitID, 0, len(ids))
	for _, unitID := range ids {
		if _, ok := seen[unitID]; ok {
			continue
		}
		seen[unitID] = struct{}{}
		out = append(out, unitID)
	}
	return out
}
