//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lifeline/internal/ledger/models"
	"lifeline/internal/ledger/store"
	"lifeline/internal/ledger/store/postgres"
	id "lifeline/pkg/domain"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "units", "outbox")
	s.Require().NoError(err)
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) seed(n int, group models.BloodGroup) {
	for i := 0; i < n; i++ {
		u := &models.Unit{
			ID:         id.UnitID(fmt.Sprintf("BU-%s-%03d", map[models.BloodGroup]string{models.GroupOPos: "OP", models.GroupANeg: "AN"}[group], i)),
			BloodGroup: group,
			Component:  models.ComponentWholeBlood,
			Quantity:   1,
			VolumeML:   450,
			ExpiresAt:  s.now.Add(time.Duration(i+1) * time.Hour),
			Location:   "Main Storage",
			Tested:     true,
			Outcome:    models.OutcomeSafe,
			Status:     models.StatusAvailable,
			CreatedAt:  s.now,
			UpdatedAt:  s.now,
		}
		s.Require().NoError(s.store.Create(context.Background(), u))
	}
}

// TestConcurrentClaimsPartitionStock verifies that SKIP LOCKED claims never hand
// the same unit to two transactions.
func (s *PostgresStoreSuite) TestConcurrentClaimsPartitionStock() {
	s.seed(10, models.GroupOPos)
	filter := models.ClaimFilter{BloodGroup: models.GroupOPos, Component: models.ComponentWholeBlood}
	const goroutines = 8

	var wg sync.WaitGroup
	var claimedTotal atomic.Int32
	var mu sync.Mutex
	seen := make(map[id.UnitID]int)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.RunInTx(context.Background(), func(ctx context.Context, st store.Store) error {
				claimed, err := st.ClaimAvailable(ctx, filter, 3, s.now)
				if err != nil {
					return err
				}
				claimedTotal.Add(int32(len(claimed)))
				mu.Lock()
				for _, u := range claimed {
					seen[u.ID]++
				}
				mu.Unlock()
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(int32(10), claimedTotal.Load())
	for unitID, n := range seen {
		s.Equal(1, n, "unit %s claimed twice", unitID)
	}
}

func (s *PostgresStoreSuite) TestRollbackDiscardsClaim() {
	s.seed(2, models.GroupANeg)
	filter := models.ClaimFilter{BloodGroup: models.GroupANeg, Component: models.ComponentWholeBlood}

	err := s.store.RunInTx(context.Background(), func(ctx context.Context, st store.Store) error {
		claimed, err := st.ClaimAvailable(ctx, filter, 5, s.now)
		s.Require().NoError(err)
		s.Len(claimed, 2)
		return sentinel.ErrInvalidState
	})
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	count, err := s.store.CountAllocatable(context.Background(), filter, s.now)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *PostgresStoreSuite) TestExpiryNeverRewritten() {
	s.seed(1, models.GroupOPos)
	u, err := s.store.FindByID(context.Background(), "BU-OP-000")
	s.Require().NoError(err)
	original := u.ExpiresAt

	u.Status = models.StatusQuarantined
	u.ExpiresAt = original.Add(24 * time.Hour)
	s.Require().NoError(s.store.Update(context.Background(), u, models.StatusAvailable))

	again, err := s.store.FindByID(context.Background(), u.ID)
	s.Require().NoError(err)
	s.True(again.ExpiresAt.Equal(original))
	s.Equal(models.StatusQuarantined, again.Status)
}
