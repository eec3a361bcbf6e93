// Package screening applies laboratory panels to units and serves the lab
// worklists.
package screening

import (
	"context"
	"log/slog"

	"lifeline/internal/ledger/models"
	ledger "lifeline/internal/ledger/service"
	id "lifeline/pkg/domain"
	"lifeline/pkg/requestcontext"
)

// Ledger is the subset of the unit ledger the gate uses.
type Ledger interface {
	Atomically(ctx context.Context, fn func(tx *ledger.Tx) error) error
	List(ctx context.Context, filter models.UnitFilter) ([]*models.Unit, error)
}

type Service struct {
	ledger Ledger
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(l Ledger, opts ...Option) *Service {
	s := &Service{ledger: l, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordTestResults stores the panel on the unit. Any positive marker
// quarantines it; otherwise it stays available and becomes tested safe.
// Re-testing an available unit overwrites the previous panel.
func (s *Service) RecordTestResults(ctx context.Context, unitID id.UnitID, results models.ScreeningResults) (*models.Unit, error) {
	outcome := models.OutcomeSafe
	if results.AnyPositive() {
		outcome = models.OutcomeUnsafe
	}

	var out *models.Unit
	err := s.ledger.Atomically(ctx, func(tx *ledger.Tx) error {
		u, err := tx.RecordScreening(unitID, models.Screening{
			Results:  results,
			TestedAt: tx.Now(),
			TestedBy: requestcontext.ActorID(ctx),
		}, outcome)
		out = u
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "screening recorded",
		"unit_id", unitID.String(),
		"outcome", string(outcome),
		"status", string(out.Status),
		"request_id", requestcontext.RequestID(ctx),
	)
	return out, nil
}

// PendingScreening lists available units still awaiting a panel.
func (s *Service) PendingScreening(ctx context.Context) ([]*models.Unit, error) {
	untested := false
	return s.ledger.List(ctx, models.UnitFilter{Status: models.StatusAvailable, Tested: &untested})
}

// Separable lists in-date, tested-safe, available whole blood.
func (s *Service) Separable(ctx context.Context) ([]*models.Unit, error) {
	tested := true
	units, err := s.ledger.List(ctx, models.UnitFilter{
		Component: models.ComponentWholeBlood,
		Status:    models.StatusAvailable,
		Tested:    &tested,
	})
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	out := units[:0]
	for _, u := range units {
		if u.CanSeparate(now) == nil {
			out = append(out, u)
		}
	}
	return out, nil
}
