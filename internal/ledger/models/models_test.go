package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	dErrors "lifeline/pkg/domain-errors"
)

func TestStatusTransitions(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusAvailable, StatusReserved}:    true,
		{StatusAvailable, StatusQuarantined}: true,
		{StatusAvailable, StatusProcessed}:   true,
		{StatusAvailable, StatusExpired}:     true,
		{StatusReserved, StatusOut}:          true,
		{StatusReserved, StatusExpired}:      true,
		{StatusReserved, StatusAvailable}:    true,
	}
	all := []Status{StatusAvailable, StatusReserved, StatusQuarantined, StatusProcessed, StatusExpired, StatusOut}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusQuarantined, StatusProcessed, StatusExpired, StatusOut} {
		assert.True(t, s.IsTerminal(), string(s))
	}
	assert.False(t, StatusAvailable.IsTerminal())
	assert.False(t, StatusReserved.IsTerminal())
	assert.False(t, Status("pending").IsTerminal())
}

func TestUnitEligibility(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := func() *Unit {
		return &Unit{
			ID:         "BU-1",
			BloodGroup: GroupOPos,
			Component:  ComponentWholeBlood,
			Quantity:   1,
			ExpiresAt:  now.Add(24 * time.Hour),
			Tested:     true,
			Outcome:    OutcomeSafe,
			Status:     StatusAvailable,
		}
	}

	t.Run("tested safe in-date available unit is allocatable", func(t *testing.T) {
		assert.True(t, base().IsAllocatableAt(now))
	})

	t.Run("untested unit is not allocatable", func(t *testing.T) {
		u := base()
		u.Tested = false
		u.Outcome = OutcomePending
		assert.False(t, u.IsAllocatableAt(now))
	})

	t.Run("unit at expiry instant is not allocatable", func(t *testing.T) {
		u := base()
		u.ExpiresAt = now
		assert.False(t, u.IsAllocatableAt(now))
	})

	t.Run("separation requires whole blood", func(t *testing.T) {
		u := base()
		u.Component = ComponentPlasma
		err := u.CanSeparate(now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("separation rejects unsafe unit", func(t *testing.T) {
		u := base()
		u.Outcome = OutcomeUnsafe
		u.Status = StatusQuarantined
		assert.True(t, dErrors.HasCode(u.CanSeparate(now), dErrors.CodeConflict))
	})

	t.Run("clone does not share screening", func(t *testing.T) {
		u := base()
		u.Screening = &Screening{TestedAt: now}
		c := u.Clone()
		c.Screening.TestedBy = "lab-2"
		assert.Empty(t, u.Screening.TestedBy)
	})
}

func TestScreeningResults_AnyPositive(t *testing.T) {
	assert.False(t, ScreeningResults{}.AnyPositive())
	assert.True(t, ScreeningResults{Malaria: true}.AnyPositive())
}

func TestUnitFilterMatches(t *testing.T) {
	tested := true
	u := &Unit{BloodGroup: GroupAPos, Component: ComponentPlasma, Status: StatusAvailable, Tested: true, ParentID: "BU-9"}
	assert.True(t, UnitFilter{}.Matches(u))
	assert.True(t, UnitFilter{BloodGroup: GroupAPos, Tested: &tested, ParentID: "BU-9"}.Matches(u))
	assert.False(t, UnitFilter{Component: ComponentPlatelets}.Matches(u))
	assert.False(t, UnitFilter{Status: StatusReserved}.Matches(u))
}
