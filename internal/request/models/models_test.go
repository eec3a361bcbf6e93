package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	unit "lifeline/internal/ledger/models"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
)

func TestStatusTransitions(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusApproved}:   true,
		{StatusPending, StatusRejected}:   true,
		{StatusApproved, StatusCompleted}: true,
		{StatusApproved, StatusRejected}:  true,
		{StatusRejected, StatusPending}:   true,
	}
	all := []Status{StatusPending, StatusApproved, StatusRejected, StatusCompleted}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, Status("cancelled").IsValid())
}

func TestCloneIsDeep(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &Request{
		ID:              id.NewRequestID(),
		ReservedUnitIDs: []id.UnitID{"BU-1"},
		Delivery:        Delivery{StartedAt: &started},
	}
	c := r.Clone()
	c.ReservedUnitIDs[0] = "BU-2"
	*c.Delivery.StartedAt = started.Add(time.Hour)

	assert.Equal(t, id.UnitID("BU-1"), r.ReservedUnitIDs[0])
	assert.Equal(t, started, *r.Delivery.StartedAt)
}

func TestPublicViewOmitsCredentials(t *testing.T) {
	r := &Request{
		ID:            id.NewRequestID(),
		RequesterName: "City Hospital",
		BloodGroup:    unit.GroupOPos,
		Delivery:      Delivery{DriverName: "Ravi", CodeHash: "$2a$secret", TrackingStarted: true},
	}
	view := r.Public()
	assert.Equal(t, "Ravi", view.DriverName)
	assert.True(t, view.TrackingStarted)
	assert.Equal(t, r.ID, view.ID)
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Filter{Status: StatusApproved, BloodGroup: unit.GroupABNeg}.Validate())
	assert.True(t, dErrors.HasCode(Filter{Status: "lost"}.Validate(), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(Filter{BloodGroup: "C+"}.Validate(), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(Filter{Limit: -1}.Validate(), dErrors.CodeValidation))
}
