package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lifeline/internal/ledger/models"
	"lifeline/internal/ledger/store"
	id "lifeline/pkg/domain"
	"lifeline/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) safeUnit(unitID string, expiresIn time.Duration) *models.Unit {
	return &models.Unit{
		ID:         id.UnitID(unitID),
		BloodGroup: models.GroupOPos,
		Component:  models.ComponentWholeBlood,
		Quantity:   1,
		ExpiresAt:  s.now.Add(expiresIn),
		Tested:     true,
		Outcome:    models.OutcomeSafe,
		Status:     models.StatusAvailable,
		CreatedAt:  s.now,
		UpdatedAt:  s.now,
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	s.Run("returns a copy of the stored unit", func() {
		u := s.safeUnit("BU-1", 24*time.Hour)
		s.Require().NoError(s.store.Create(s.ctx, u))

		found, err := s.store.FindByID(s.ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(u, found)

		found.Location = "mutated"
		again, err := s.store.FindByID(s.ctx, u.ID)
		s.Require().NoError(err)
		s.Empty(again.Location)
	})

	s.Run("duplicate id is rejected", func() {
		err := s.store.Create(s.ctx, s.safeUnit("BU-1", time.Hour))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(s.ctx, "BU-404")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestUpdateIsConditional() {
	u := s.safeUnit("BU-2", time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, u))

	s.Run("stale expected status is rejected", func() {
		next := u.Clone()
		next.Status = models.StatusOut
		err := s.store.Update(s.ctx, next, models.StatusReserved)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("expiry is never rewritten", func() {
		next := u.Clone()
		next.Status = models.StatusQuarantined
		next.ExpiresAt = u.ExpiresAt.Add(240 * time.Hour)
		s.Require().NoError(s.store.Update(s.ctx, next, models.StatusAvailable))

		found, err := s.store.FindByID(s.ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusQuarantined, found.Status)
		s.True(found.ExpiresAt.Equal(u.ExpiresAt))
	})

	s.Run("missing unit", func() {
		err := s.store.Update(s.ctx, s.safeUnit("BU-X", time.Hour), models.StatusAvailable)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestClaimAvailableOrdersByExpiry() {
	s.Require().NoError(s.store.Create(s.ctx, s.safeUnit("BU-LATE", 72*time.Hour)))
	s.Require().NoError(s.store.Create(s.ctx, s.safeUnit("BU-SOON", 2*time.Hour)))
	s.Require().NoError(s.store.Create(s.ctx, s.safeUnit("BU-MID", 24*time.Hour)))
	expired := s.safeUnit("BU-OLD", -time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, expired))
	untested := s.safeUnit("BU-RAW", time.Hour)
	untested.Tested = false
	untested.Outcome = models.OutcomePending
	s.Require().NoError(s.store.Create(s.ctx, untested))

	filter := models.ClaimFilter{BloodGroup: models.GroupOPos, Component: models.ComponentWholeBlood}
	count, err := s.store.CountAllocatable(s.ctx, filter, s.now)
	s.Require().NoError(err)
	s.Equal(3, count)

	claimed, err := s.store.ClaimAvailable(s.ctx, filter, 2, s.now)
	s.Require().NoError(err)
	s.Require().Len(claimed, 2)
	s.Equal(id.UnitID("BU-SOON"), claimed[0].ID)
	s.Equal(id.UnitID("BU-MID"), claimed[1].ID)
	for _, u := range claimed {
		s.Equal(models.StatusReserved, u.Status)
	}

	count, err = s.store.CountAllocatable(s.ctx, filter, s.now)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *InMemoryStoreSuite) TestRunInTxRollsBackOnError() {
	errBoom := errors.New("boom")
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, st store.Store) error {
		if err := st.Create(ctx, s.safeUnit("BU-TX", time.Hour)); err != nil {
			return err
		}
		found, err := st.FindByID(ctx, "BU-TX")
		s.Require().NoError(err)
		s.Equal(id.UnitID("BU-TX"), found.ID)
		return errBoom
	})
	s.Require().ErrorIs(err, errBoom)

	_, err = s.store.FindByID(s.ctx, "BU-TX")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestRunInTxRejectsCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	called := false
	err := s.store.RunInTx(ctx, func(context.Context, store.Store) error {
		called = true
		return nil
	})
	s.Require().Error(err)
	s.False(called)
}

func (s *InMemoryStoreSuite) TestConcurrentClaimsNeverOverlap() {
	const stock = 20
	for i := 0; i < stock; i++ {
		s.Require().NoError(s.store.Create(s.ctx, s.safeUnit(string(id.NewUnitID()), time.Duration(i+1)*time.Hour)))
	}
	filter := models.ClaimFilter{BloodGroup: models.GroupOPos, Component: models.ComponentWholeBlood}

	var wg sync.WaitGroup
	var total atomic.Int32
	var mu sync.Mutex
	seen := make(map[id.UnitID]int)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := s.store.ClaimAvailable(s.ctx, filter, 3, s.now)
			if err != nil {
				return
			}
			total.Add(int32(len(claimed)))
			mu.Lock()
			for _, u := range claimed {
				seen[u.ID]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Equal(int32(stock), total.Load())
	for unitID, n := range seen {
		s.Equal(1, n, "unit %s claimed more than once", unitID)
	}
}

func (s *InMemoryStoreSuite) TestListExpiringAndStock() {
	s.Require().NoError(s.store.Create(s.ctx, s.safeUnit("BU-A", time.Hour)))
	s.Require().NoError(s.store.Create(s.ctx, s.safeUnit("BU-B", -time.Minute)))
	plasma := s.safeUnit("BU-C", 48*time.Hour)
	plasma.Component = models.ComponentPlasma
	s.Require().NoError(s.store.Create(s.ctx, plasma))

	expiring, err := s.store.ListExpiring(s.ctx, s.now, 0)
	s.Require().NoError(err)
	s.Require().Len(expiring, 1)
	s.Equal(id.UnitID("BU-B"), expiring[0].ID)

	levels, err := s.store.StockLevels(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal([]models.StockLevel{
		{BloodGroup: models.GroupOPos, Component: models.ComponentPlasma, Units: 1, Quantity: 1},
		{BloodGroup: models.GroupOPos, Component: models.ComponentWholeBlood, Units: 1, Quantity: 1},
	}, levels)
}

func (s *InMemoryStoreSuite) TestListFilters() {
	parent := s.safeUnit("BU-P", time.Hour)
	child := s.safeUnit("BU-P-PLS", time.Hour)
	child.Component = models.ComponentPlasma
	child.ParentID = parent.ID
	child.CreatedAt = s.now.Add(time.Second)
	s.Require().NoError(s.store.Create(s.ctx, parent))
	s.Require().NoError(s.store.Create(s.ctx, child))

	out, err := s.store.List(s.ctx, models.UnitFilter{ParentID: parent.ID})
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(child.ID, out[0].ID)

	out, err = s.store.List(s.ctx, models.UnitFilter{Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(parent.ID, out[0].ID)

	out, err = s.store.FindByIDs(s.ctx, []id.UnitID{parent.ID, "BU-NONE", parent.ID})
	s.Require().NoError(err)
	s.Len(out, 1)
}
