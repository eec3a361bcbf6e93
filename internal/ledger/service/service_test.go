package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lifeline/internal/ledger/models"
	"lifeline/internal/ledger/service"
	"lifeline/internal/ledger/store/memory"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/events"
	eventstore "lifeline/pkg/platform/events/store/memory"
	"lifeline/pkg/requestcontext"
)

type LedgerServiceSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *memory.InMemoryStore
	events  *eventstore.InMemoryStore
	service *service.Service
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = memory.New()
	s.events = eventstore.NewInMemoryStore()
	s.service = service.New(s.store,
		service.WithEventSink(events.NewPublisher(s.events)),
		service.WithPolicy(service.Policy{AllowPrescreened: true}),
	)
}

func (s *LedgerServiceSuite) intake(unitID string, prescreened bool) *models.Unit {
	u, err := s.service.Create(s.ctx, service.CreateUnitRequest{
		ID:          unitID,
		BloodGroup:  models.GroupOPos,
		Component:   models.ComponentWholeBlood,
		ExpiresAt:   s.now.Add(35 * 24 * time.Hour),
		Prescreened: prescreened,
	})
	s.Require().NoError(err)
	return u
}

func (s *LedgerServiceSuite) TestCreate() {
	s.Run("applies intake defaults", func() {
		u := s.intake(" bu-100 ", false)
		s.Equal(id.UnitID("BU-100"), u.ID)
		s.Equal(models.StatusAvailable, u.Status)
		s.False(u.Tested)
		s.Equal(models.OutcomePending, u.Outcome)
		s.Equal(1, u.Quantity)
		s.Equal(450, u.VolumeML)
		s.Equal("Main Storage", u.Location)

		created := s.events.ListKind(s.ctx, events.KindUnitCreated)
		s.Require().Len(created, 1)
		s.Equal("BU-100", created[0].EntityID)
	})

	s.Run("generates an id when none is supplied", func() {
		u := s.intake("", false)
		s.Contains(u.ID.String(), "BU-")
	})

	s.Run("duplicate id is a conflict", func() {
		_, err := s.service.Create(s.ctx, service.CreateUnitRequest{
			ID: "BU-100", BloodGroup: models.GroupOPos, Component: models.ComponentWholeBlood,
			ExpiresAt: s.now.Add(time.Hour),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("missing fields are validation errors", func() {
		cases := []service.CreateUnitRequest{
			{Component: models.ComponentWholeBlood, ExpiresAt: s.now.Add(time.Hour)},
			{BloodGroup: models.GroupAPos, ExpiresAt: s.now.Add(time.Hour)},
			{BloodGroup: models.GroupAPos, Component: models.ComponentPlasma},
			{BloodGroup: models.GroupAPos, Component: models.ComponentPlasma, ExpiresAt: s.now.Add(-time.Hour)},
			{BloodGroup: models.GroupAPos, Component: models.ComponentPlasma, ExpiresAt: s.now.Add(time.Hour), Quantity: -1},
		}
		for _, req := range cases {
			_, err := s.service.Create(s.ctx, req)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "request %+v", req)
		}
	})

	s.Run("prescreened intake requires policy", func() {
		strict := service.New(memory.New())
		_, err := strict.Create(s.ctx, service.CreateUnitRequest{
			BloodGroup: models.GroupAPos, Component: models.ComponentWholeBlood,
			ExpiresAt: s.now.Add(time.Hour), Prescreened: true,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		u := s.intake("BU-PRE", true)
		s.True(u.IsClearedSafe())
	})
}

func (s *LedgerServiceSuite) TestTransitionGraph() {
	s.Run("reserving an untested unit is refused", func() {
		u := s.intake("BU-RAW", false)
		_, err := s.service.Transition(s.ctx, u.ID, models.StatusReserved)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("edges outside the graph are invalid transitions", func() {
		u := s.intake("BU-Q", true)
		_, err := s.service.Transition(s.ctx, u.ID, models.StatusOut)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		_, err = s.service.Transition(s.ctx, u.ID, models.StatusQuarantined)
		s.Require().NoError(err)
		_, err = s.service.Transition(s.ctx, u.ID, models.StatusAvailable)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("unknown unit", func() {
		_, err := s.service.Transition(s.ctx, "BU-NOPE", models.StatusReserved)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("reserve then fulfil emits status events", func() {
		u := s.intake("BU-GO", true)
		_, err := s.service.Transition(s.ctx, u.ID, models.StatusReserved)
		s.Require().NoError(err)
		out, err := s.service.Transition(s.ctx, u.ID, models.StatusOut)
		s.Require().NoError(err)
		s.Equal(models.StatusOut, out.Status)

		history, err := s.events.ListByEntity(s.ctx, events.EntityUnit, "BU-GO")
		s.Require().NoError(err)
		s.Require().Len(history, 3)
		s.Equal("reserved", history[1].To)
		s.Equal("reserved", history[2].From)
		s.Equal("out", history[2].To)
	})
}

func (s *LedgerServiceSuite) TestAtomicallyRollsBack() {
	errBoom := errors.New("boom")
	err := s.service.Atomically(s.ctx, func(tx *service.Tx) error {
		if _, err := tx.Create(service.CreateUnitRequest{
			ID: "BU-GHOST", BloodGroup: models.GroupBNeg, Component: models.ComponentPlasma,
			ExpiresAt: s.now.Add(time.Hour),
		}); err != nil {
			return err
		}
		return errBoom
	})
	s.Require().Error(err)
	s.Require().ErrorIs(err, errBoom)

	_, err = s.service.Get(s.ctx, "BU-GHOST")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.events.ListKind(s.ctx, events.KindUnitCreated))
}

func (s *LedgerServiceSuite) TestExpiryIsStable() {
	u := s.intake("BU-EXP", true)
	_, err := s.service.Transition(s.ctx, u.ID, models.StatusReserved)
	s.Require().NoError(err)
	_, err = s.service.Transition(s.ctx, u.ID, models.StatusAvailable)
	s.Require().NoError(err)

	got, err := s.service.Get(s.ctx, u.ID)
	s.Require().NoError(err)
	s.True(got.ExpiresAt.Equal(u.ExpiresAt))
}

func (s *LedgerServiceSuite) TestSweepExpired() {
	fresh := s.intake("BU-FRESH", true)
	_, err := s.service.Create(s.ctx, service.CreateUnitRequest{
		ID: "BU-SHORT", BloodGroup: models.GroupOPos, Component: models.ComponentPlatelets,
		ExpiresAt: s.now.Add(2 * time.Hour), Prescreened: true,
	})
	s.Require().NoError(err)
	_, err = s.service.Create(s.ctx, service.CreateUnitRequest{
		ID: "BU-HELD", BloodGroup: models.GroupOPos, Component: models.ComponentPlatelets,
		ExpiresAt: s.now.Add(3 * time.Hour), Prescreened: true,
	})
	s.Require().NoError(err)
	_, err = s.service.Transition(s.ctx, "BU-HELD", models.StatusReserved)
	s.Require().NoError(err)

	n, err := s.service.SweepExpired(s.ctx, s.now.Add(4*time.Hour))
	s.Require().NoError(err)
	s.Equal(2, n)

	for _, unitID := range []id.UnitID{"BU-SHORT", "BU-HELD"} {
		u, err := s.service.Get(s.ctx, unitID)
		s.Require().NoError(err)
		s.Equal(models.StatusExpired, u.Status)
	}
	u, err := s.service.Get(s.ctx, fresh.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAvailable, u.Status)

	n, err = s.service.SweepExpired(s.ctx, s.now.Add(4*time.Hour))
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *LedgerServiceSuite) TestLineageAndStats() {
	parent := s.intake("BU-ROOT", true)
	err := s.service.Atomically(s.ctx, func(tx *service.Tx) error {
		p, err := tx.Get(parent.ID)
		if err != nil {
			return err
		}
		if _, err := tx.CreateComponent(p, models.ComponentPlasma, s.now.Add(365*24*time.Hour)); err != nil {
			return err
		}
		_, err = tx.Transition(p.ID, models.StatusProcessed)
		return err
	})
	s.Require().NoError(err)

	lineage, err := s.service.Lineage(s.ctx, parent.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusProcessed, lineage.Unit.Status)
	s.Zero(lineage.Unit.Quantity)
	s.Require().Len(lineage.Children, 1)
	s.Equal(id.UnitID("BU-ROOT-PLS"), lineage.Children[0].ID)

	child, err := s.service.Lineage(s.ctx, "BU-ROOT-PLS")
	s.Require().NoError(err)
	s.Require().NotNil(child.Parent)
	s.Equal(parent.ID, child.Parent.ID)

	levels, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal([]models.StockLevel{
		{BloodGroup: models.GroupOPos, Component: models.ComponentPlasma, Units: 1, Quantity: 1},
	}, levels)
}

func (s *LedgerServiceSuite) TestListValidatesFilter() {
	_, err := s.service.List(s.ctx, models.UnitFilter{BloodGroup: "C+"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
