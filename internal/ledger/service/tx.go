package service

import (
	"context"
	"strings"
	"time"

	"lifeline/internal/ledger/models"
	"lifeline/internal/ledger/store"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/events"
)

// Tx is a ledger unit of work. It is valid only inside the Atomically callback
// that created it and is not safe for concurrent use.
type Tx struct {
	ctx    context.Context
	store  store.Store
	now    time.Time
	svc    *Service
	events []events.Event
}

// Context returns the transaction-scoped context.
func (t *Tx) Context() context.Context { return t.ctx }

// Now is the single timestamp used for every write in the unit of work.
func (t *Tx) Now() time.Time { return t.now }

func (t *Tx) record(kind events.Kind, unitID id.UnitID, from, to string, attrs map[string]string) {
	t.events = append(t.events, events.Event{
		Kind:       kind,
		EntityID:   unitID.String(),
		From:       from,
		To:         to,
		Timestamp:  t.now,
		Attributes: attrs,
	})
}

func (t *Tx) Get(unitID id.UnitID) (*models.Unit, error) {
	u, err := t.store.FindByID(t.ctx, unitID)
	if err != nil {
		return nil, translate(err, "unit "+unitID.String())
	}
	return u, nil
}

// Create validates an intake request and inserts the unit.
func (t *Tx) Create(req CreateUnitRequest) (*models.Unit, error) {
	u, err := t.svc.buildUnit(req, t.now)
	if err != nil {
		return nil, err
	}
	if err := t.insert(u); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateComponent inserts a unit derived from parent. The child inherits group,
// donor, location and screening status and gets id <parent>-<suffix>.
func (t *Tx) CreateComponent(parent *models.Unit, component models.Component, expiresAt time.Time) (*models.Unit, error) {
	if !component.IsValid() || component == models.ComponentWholeBlood {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid component "+string(component))
	}
	if !expiresAt.After(t.now) {
		return nil, dErrors.New(dErrors.CodeValidation, "component expiry must be in the future")
	}
	child := &models.Unit{
		ID:         id.UnitID(parent.ID.String() + "-" + component.Suffix()),
		BloodGroup: parent.BloodGroup,
		Component:  component,
		Quantity:   1,
		ExpiresAt:  expiresAt,
		Location:   parent.Location,
		Tested:     parent.Tested,
		Outcome:    parent.Outcome,
		Status:     models.StatusAvailable,
		DonorID:    parent.DonorID,
		ParentID:   parent.ID,
		CreatedAt:  t.now,
		UpdatedAt:  t.now,
	}
	if parent.Screening != nil {
		sc := *parent.Screening
		child.Screening = &sc
	}
	if err := t.insert(child); err != nil {
		return nil, err
	}
	return child, nil
}

func (t *Tx) insert(u *models.Unit) error {
	if err := t.store.Create(t.ctx, u); err != nil {
		return translate(err, "unit "+u.ID.String())
	}
	attrs := map[string]string{
		"blood_group": string(u.BloodGroup),
		"component":   string(u.Component),
	}
	if u.ParentID != "" {
		attrs["parent_id"] = u.ParentID.String()
	}
	t.record(events.KindUnitCreated, u.ID, "", string(u.Status), attrs)
	return nil
}

// Transition moves a unit along the status graph.
func (t *Tx) Transition(unitID id.UnitID, to models.Status) (*models.Unit, error) {
	if !to.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid status "+string(to))
	}
	u, err := t.Get(unitID)
	if err != nil {
		return nil, err
	}
	from := u.Status
	if !from.CanTransitionTo(to) {
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			"unit "+unitID.String()+" cannot move from "+string(from)+" to "+string(to))
	}
	switch to {
	case models.StatusReserved:
		if !u.IsAllocatableAt(t.now) {
			return nil, dErrors.New(dErrors.CodeConflict, "unit "+unitID.String()+" is not eligible for allocation")
		}
	case models.StatusExpired:
		if !u.IsExpiredAt(t.now) {
			return nil, dErrors.New(dErrors.CodeConflict, "unit "+unitID.String()+" has not reached expiry")
		}
	case models.StatusProcessed:
		u.Quantity = 0
	}
	u.Status = to
	u.UpdatedAt = t.now
	if err := t.store.Update(t.ctx, u, from); err != nil {
		return nil, translate(err, "unit "+unitID.String())
	}
	t.record(events.KindUnitStatusChanged, u.ID, string(from), string(to), nil)
	return u, nil
}

// RecordScreening stores a test panel on an available unit. An unsafe outcome
// quarantines the unit in the same write.
func (t *Tx) RecordScreening(unitID id.UnitID, sc models.Screening, outcome models.TestOutcome) (*models.Unit, error) {
	if outcome != models.OutcomeSafe && outcome != models.OutcomeUnsafe {
		return nil, dErrors.New(dErrors.CodeValidation, "screening outcome must be Safe or Unsafe")
	}
	u, err := t.Get(unitID)
	if err != nil {
		return nil, err
	}
	if u.Status != models.StatusAvailable {
		return nil, dErrors.New(dErrors.CodeConflict,
			"unit "+unitID.String()+" is "+string(u.Status)+" and cannot be screened")
	}
	from := u.Status
	u.Tested = true
	u.Outcome = outcome
	u.Screening = &sc
	u.UpdatedAt = t.now
	if outcome == models.OutcomeUnsafe {
		u.Status = models.StatusQuarantined
	}
	if err := t.store.Update(t.ctx, u, from); err != nil {
		return nil, translate(err, "unit "+unitID.String())
	}
	t.record(events.KindUnitScreened, u.ID, "", "", map[string]string{"outcome": string(outcome)})
	if u.Status != from {
		t.record(events.KindUnitStatusChanged, u.ID, string(from), string(u.Status), nil)
	}
	return u, nil
}

// Claim reserves up to n allocatable units, soonest expiry first, and returns
// the units actually claimed. Callers decide whether a short claim aborts.
func (t *Tx) Claim(filter models.ClaimFilter, n int) ([]*models.Unit, error) {
	claimed, err := t.store.ClaimAvailable(t.ctx, filter, n, t.now)
	if err != nil {
		return nil, translate(err, "failed to claim units")
	}
	for _, u := range claimed {
		t.record(events.KindUnitStatusChanged, u.ID, string(models.StatusAvailable), string(models.StatusReserved), nil)
	}
	return claimed, nil
}

// CountAllocatable counts units a claim with filter could take right now.
func (t *Tx) CountAllocatable(filter models.ClaimFilter) (int, error) {
	n, err := t.store.CountAllocatable(t.ctx, filter, t.now)
	if err != nil {
		return 0, translate(err, "failed to count units")
	}
	return n, nil
}

// LockAllocatable counts like CountAllocatable after in-flight claims settle,
// and keeps the counted units for this unit of work.
func (t *Tx) LockAllocatable(filter models.ClaimFilter) (int, error) {
	n, err := t.store.LockAllocatable(t.ctx, filter, t.now)
	if err != nil {
		return 0, translate(err, "failed to lock units")
	}
	return n, nil
}

// Annotate attaches attributes to the events of unitID recorded so far in
// this unit of work, e.g. the request that reserved it.
func (t *Tx) Annotate(unitID id.UnitID, key, value string) {
	for i := range t.events {
		if t.events[i].EntityID != unitID.String() {
			continue
		}
		if t.events[i].Attributes == nil {
			t.events[i].Attributes = make(map[string]string)
		}
		t.events[i].Attributes[key] = value
	}
}

// Emit records an extra unit event, committed with the unit of work.
func (t *Tx) Emit(kind events.Kind, unitID id.UnitID, attrs map[string]string) {
	t.record(kind, unitID, "", "", attrs)
}

func (s *Service) buildUnit(req CreateUnitRequest, now time.Time) (*models.Unit, error) {
	if !req.BloodGroup.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "blood group is missing or invalid")
	}
	if !req.Component.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "component is missing or invalid")
	}
	if req.ExpiresAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "expiry is required")
	}
	if !req.ExpiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "expiry must be in the future")
	}
	if req.Quantity < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "quantity must be at least 1")
	}
	if req.VolumeML < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "volume must not be negative")
	}
	if req.Prescreened && !s.policy.AllowPrescreened {
		return nil, dErrors.New(dErrors.CodeValidation, "prescreened intake is disabled")
	}

	unitID := id.NewUnitID()
	if strings.TrimSpace(req.ID) != "" {
		parsed, err := id.ParseUnitID(req.ID)
		if err != nil {
			return nil, err
		}
		unitID = parsed
	}

	u := &models.Unit{
		ID:         unitID,
		BloodGroup: req.BloodGroup,
		Component:  req.Component,
		Quantity:   req.Quantity,
		VolumeML:   req.VolumeML,
		ExpiresAt:  req.ExpiresAt,
		Location:   strings.TrimSpace(req.Location),
		Outcome:    models.OutcomePending,
		Status:     models.StatusAvailable,
		DonorID:    strings.TrimSpace(req.DonorID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if u.Quantity == 0 {
		u.Quantity = 1
	}
	if u.VolumeML == 0 {
		u.VolumeML = s.policy.DefaultVolumeML
	}
	if u.Location == "" {
		u.Location = s.policy.DefaultLocation
	}
	if req.Prescreened {
		u.Tested = true
		u.Outcome = models.OutcomeSafe
	}
	return u, nil
}
