// Package service owns every write to unit status. Screening, separation and
// reservation compose ledger operations inside Atomically; nothing else calls
// the unit store directly.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lifeline/internal/ledger/models"
	"lifeline/internal/ledger/store"
	"lifeline/internal/platform/metrics"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/events"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/requestcontext"
)

const (
	defaultLocation = "Main Storage"
	defaultVolumeML = 450
	sweepBatchSize  = 200
)

// Policy holds intake defaults.
type Policy struct {
	// AllowPrescreened lets intake register units already screened upstream.
	AllowPrescreened bool
	DefaultLocation  string
	DefaultVolumeML  int
}

// Service is the unit ledger.
type Service struct {
	store   store.Transactional
	sink    events.Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
	policy  Policy
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEventSink sets where unit events go. Without one, events are dropped.
func WithEventSink(sink events.Sink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

func WithPolicy(p Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func New(st store.Transactional, opts ...Option) *Service {
	s := &Service{
		store:  st,
		sink:   events.Discard{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.DefaultLocation == "" {
		s.policy.DefaultLocation = defaultLocation
	}
	if s.policy.DefaultVolumeML <= 0 {
		s.policy.DefaultVolumeML = defaultVolumeML
	}
	return s
}

// CreateUnitRequest is a donation intake record.
type CreateUnitRequest struct {
	// ID is the bag barcode. A BU- identifier is generated when empty.
	ID         string
	BloodGroup models.BloodGroup
	Component  models.Component
	Quantity   int
	VolumeML   int
	ExpiresAt  time.Time
	Location   string
	DonorID    string
	// Prescreened registers the unit as tested safe. Requires AllowPrescreened.
	Prescreened bool
}

// Atomically runs fn as one unit of work. Events recorded by fn are emitted
// inside the same transaction, so a failed emit aborts the whole operation.
func (s *Service) Atomically(ctx context.Context, fn func(tx *Tx) error) error {
	var committed *Tx
	err := s.store.RunInTx(ctx, func(txCtx context.Context, st store.Store) error {
		tx := &Tx{ctx: txCtx, store: st, now: requestcontext.Now(ctx), svc: s}
		if err := fn(tx); err != nil {
			return err
		}
		for _, e := range tx.events {
			if err := s.sink.Emit(txCtx, e); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record unit event")
			}
		}
		committed = tx
		return nil
	})
	if err != nil {
		return translate(err, "ledger operation failed")
	}
	s.observe(ctx, committed)
	return nil
}

func (s *Service) observe(ctx context.Context, tx *Tx) {
	for _, e := range tx.events {
		s.logger.InfoContext(ctx, "unit event",
			"kind", e.Kind,
			"unit_id", e.EntityID,
			"from", e.From,
			"to", e.To,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics == nil {
			continue
		}
		switch e.Kind {
		case events.KindUnitCreated:
			s.metrics.IncrementUnitsCreated(1)
		case events.KindUnitStatusChanged:
			s.metrics.RecordTransition(e.From, e.To)
			switch models.Status(e.To) {
			case models.StatusQuarantined:
				s.metrics.UnitsQuarantined.Inc()
			case models.StatusExpired:
				s.metrics.UnitsExpired.Inc()
			case models.StatusAvailable:
				s.metrics.UnitsReleased.Inc()
			}
		}
	}
}

// Create registers a unit from intake.
func (s *Service) Create(ctx context.Context, req CreateUnitRequest) (*models.Unit, error) {
	var out *models.Unit
	err := s.Atomically(ctx, func(tx *Tx) error {
		u, err := tx.Create(req)
		out = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves one unit along the status graph.
func (s *Service) Transition(ctx context.Context, unitID id.UnitID, to models.Status) (*models.Unit, error) {
	var out *models.Unit
	err := s.Atomically(ctx, func(tx *Tx) error {
		u, err := tx.Transition(unitID, to)
		out = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, unitID id.UnitID) (*models.Unit, error) {
	u, err := s.store.FindByID(ctx, unitID)
	if err != nil {
		return nil, translate(err, "unit "+unitID.String())
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, filter models.UnitFilter) ([]*models.Unit, error) {
	if filter.BloodGroup != "" && !filter.BloodGroup.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid blood group")
	}
	if filter.Component != "" && !filter.Component.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid component")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid status")
	}
	units, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, translate(err, "failed to list units")
	}
	return units, nil
}

// Lineage returns a unit with its parent and derived components.
func (s *Service) Lineage(ctx context.Context, unitID id.UnitID) (*models.Lineage, error) {
	u, err := s.Get(ctx, unitID)
	if err != nil {
		return nil, err
	}
	out := &models.Lineage{Unit: u}
	if u.ParentID != "" {
		parent, err := s.Get(ctx, u.ParentID)
		if err != nil {
			return nil, err
		}
		out.Parent = parent
	}
	children, err := s.store.List(ctx, models.UnitFilter{ParentID: u.ID})
	if err != nil {
		return nil, translate(err, "failed to list components")
	}
	out.Children = children
	return out, nil
}

// Stats aggregates allocatable quantity by group and component.
func (s *Service) Stats(ctx context.Context) ([]models.StockLevel, error) {
	levels, err := s.store.StockLevels(ctx, requestcontext.Now(ctx))
	if err != nil {
		return nil, translate(err, "failed to aggregate stock")
	}
	return levels, nil
}

// SweepExpired moves available and reserved units at or past expiry to expired.
// Each unit is its own unit of work; units that changed status concurrently
// are skipped. Returns how many units were expired.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	ctx = requestcontext.WithTime(ctx, now)
	expired := 0
	for {
		batch, err := s.store.ListExpiring(ctx, now, sweepBatchSize)
		if err != nil {
			return expired, translate(err, "failed to list expiring units")
		}
		moved := 0
		for _, u := range batch {
			if _, err := s.Transition(ctx, u.ID, models.StatusExpired); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvalidTransition) || dErrors.HasCode(err, dErrors.CodeNotFound) {
					continue
				}
				return expired, err
			}
			moved++
		}
		expired += moved
		if len(batch) < sweepBatchSize || moved == 0 {
			break
		}
	}
	if expired > 0 {
		s.logger.InfoContext(ctx, "expired units swept", "count", expired)
	}
	return expired, nil
}

// translate maps store sentinels onto domain codes. Domain errors pass through.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg+": not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg+": already exists")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidTransition, msg+": status changed concurrently")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "unit store unavailable")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg+": timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
