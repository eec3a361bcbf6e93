// Package separation splits cleared whole blood into component units.
package separation

import (
	"context"
	"log/slog"
	"strings"
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
	"lifeline/pkg/platform/events"
	"lifeline/pkg/requestcontext"
)

// ShelfLife is the storage life granted to each component at separation.
type ShelfLife map[models.Component]time.Duration

// DefaultShelfLife is used for components the configured policy omits.
func DefaultShelfLife() ShelfLife {
	return ShelfLife{
		models.ComponentWholeBlood: 35 * 24 * time.Hour,
		models.ComponentRedCells:   42 * 24 * time.Hour,
		models.ComponentPlasma:     365 * 24 * time.Hour,
		models.ComponentPlatelets:  5 * 24 * time.Hour,
	}
}

// Ledger is the subset of the unit ledger separation uses.
type Ledger interface {
	Atomically(ctx context.Context, fn func(tx *ledger.Tx) error) error
}

type Service struct {
	ledger    Ledger
	shelfLife ShelfLife
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
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

// WithShelfLife overrides storage lives per component.
func WithShelfLife(policy ShelfLife) Option {
	return func(s *Service) {
		for c, d := range policy {
			if d > 0 {
				s.shelfLife[c] = d
			}
		}
	}
}

func New(l Ledger, opts ...Option) *Service {
	s := &Service{
		ledger:    l,
		shelfLife: DefaultShelfLife(),
		logger:    slog.New(slog.DiscardHandler),
		tracer:    otel.Tracer("lifeline/separation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Separate creates one child unit per requested component and retires the
// parent with quantity 0. Nothing is persisted unless every step succeeds.
func (s *Service) Separate(ctx context.Context, parentID id.UnitID, components []models.Component) ([]*models.Unit, error) {
	ctx, span := s.tracer.Start(ctx, "separation.Separate", trace.WithAttributes(
		attribute.String("unit.id", parentID.String()),
		attribute.Int("components.count", len(components)),
	))
	defer span.End()

	if err := validateComponents(components); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var children []*models.Unit
	err := s.ledger.Atomically(ctx, func(tx *ledger.Tx) error {
		children = children[:0]
		parent, err := tx.Get(parentID)
		if err != nil {
			return err
		}
		if err := parent.CanSeparate(tx.Now()); err != nil {
			return err
		}
		for _, c := range components {
			child, err := tx.CreateComponent(parent, c, s.expiryFor(c, tx.Now()))
			if err != nil {
				return err
			}
			children = append(children, child)
		}
		if _, err := tx.Transition(parent.ID, models.StatusProcessed); err != nil {
			return err
		}
		names := make([]string, len(children))
		for i, child := range children {
			names[i] = child.ID.String()
		}
		tx.Emit(events.KindUnitSeparated, parent.ID, map[string]string{"children": strings.Join(names, ",")})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.Message(err))
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.UnitsSeparated.Inc()
	}
	s.logger.InfoContext(ctx, "unit separated",
		"unit_id", parentID.String(),
		"children", len(children),
		"request_id", requestcontext.RequestID(ctx),
	)
	return children, nil
}

func (s *Service) expiryFor(c models.Component, now time.Time) time.Time {
	return now.Add(s.shelfLife[c])
}

func validateComponents(components []models.Component) error {
	if len(components) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one component is required")
	}
	seen := make(map[models.Component]struct{}, len(components))
	for _, c := range components {
		if !c.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "unknown component "+string(c))
		}
		if c == models.ComponentWholeBlood {
			return dErrors.New(dErrors.CodeValidation, "whole blood is not a separable component")
		}
		if _, dup := seen[c]; dup {
			return dErrors.New(dErrors.CodeValidation, "duplicate component "+string(c))
		}
		seen[c] = struct{}{}
	}
	return nil
}
