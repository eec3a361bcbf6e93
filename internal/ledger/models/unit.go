package models

import (
	"time"

	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
)

// BloodGroup is one of the eight ABO/RhD groups.
type BloodGroup string

const (
	GroupOPos  BloodGroup = "O+"
	GroupONeg  BloodGroup = "O-"
	GroupAPos  BloodGroup = "A+"
	GroupANeg  BloodGroup = "A-"
	GroupBPos  BloodGroup = "B+"
	GroupBNeg  BloodGroup = "B-"
	GroupABPos BloodGroup = "AB+"
	GroupABNeg BloodGroup = "AB-"
)

var bloodGroups = map[BloodGroup]struct{}{
	GroupOPos: {}, GroupONeg: {}, GroupAPos: {}, GroupANeg: {},
	GroupBPos: {}, GroupBNeg: {}, GroupABPos: {}, GroupABNeg: {},
}

func (g BloodGroup) IsValid() bool {
	_, ok := bloodGroups[g]
	return ok
}

// Component is the kind of product held in a bag.
type Component string

const (
	ComponentWholeBlood Component = "Whole Blood"
	ComponentRedCells   Component = "Packed Red Cells"
	ComponentPlasma     Component = "Plasma"
	ComponentPlatelets  Component = "Platelets"
)

// componentSuffix is appended to the parent id of a separated component.
var componentSuffix = map[Component]string{
	ComponentWholeBlood: "WB",
	ComponentRedCells:   "RBC",
	ComponentPlasma:     "PLS",
	ComponentPlatelets:  "PLT",
}

func (c Component) IsValid() bool {
	_, ok := componentSuffix[c]
	return ok
}

// Suffix returns the short code used in derived unit ids.
func (c Component) Suffix() string {
	return componentSuffix[c]
}

// IsSeparable reports whether units of this component can be split.
func (c Component) IsSeparable() bool {
	return c == ComponentWholeBlood
}

// TestOutcome is the screening verdict of a unit.
type TestOutcome string

const (
	OutcomePending TestOutcome = "Pending"
	OutcomeSafe    TestOutcome = "Safe"
	OutcomeUnsafe  TestOutcome = "Unsafe"
)

// ScreeningResults holds the raw transfusion-transmissible infection panel.
// True means the marker tested positive.
type ScreeningResults struct {
	HIV      bool `json:"hiv"`
	HBV      bool `json:"hbv"`
	HCV      bool `json:"hcv"`
	Malaria  bool `json:"malaria"`
	Syphilis bool `json:"syphilis"`
}

// AnyPositive reports whether any marker is positive.
func (r ScreeningResults) AnyPositive() bool {
	return r.HIV || r.HBV || r.HCV || r.Malaria || r.Syphilis
}

// Screening is the persisted audit record of the last test panel.
type Screening struct {
	Results  ScreeningResults `json:"results"`
	TestedAt time.Time        `json:"tested_at"`
	TestedBy string           `json:"tested_by,omitempty"`
}

// Unit is one physical bag of whole blood or a component.
//
// Invariants:
//   - ID and ExpiresAt are immutable once created
//   - Status changes only along the edges of Status.CanTransitionTo
//   - an untested unit is never eligible for allocation
//   - ParentID is set only on units produced by separation
//   - a processed parent keeps Quantity == 0
type Unit struct {
	ID         id.UnitID   `json:"id"`
	BloodGroup BloodGroup  `json:"blood_group"`
	Component  Component   `json:"component"`
	Quantity   int         `json:"quantity"`
	VolumeML   int         `json:"volume_ml"`
	ExpiresAt  time.Time   `json:"expires_at"`
	Location   string      `json:"location"`
	Tested     bool        `json:"tested"`
	Outcome    TestOutcome `json:"test_outcome"`
	Status     Status      `json:"status"`
	DonorID    string      `json:"donor_id,omitempty"`
	ParentID   id.UnitID   `json:"parent_id,omitempty"`
	Screening  *Screening  `json:"screening,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// IsExpiredAt reports whether the unit is past its expiry at now.
func (u *Unit) IsExpiredAt(now time.Time) bool {
	return !now.Before(u.ExpiresAt)
}

// IsClearedSafe reports whether screening passed.
func (u *Unit) IsClearedSafe() bool {
	return u.Tested && u.Outcome == OutcomeSafe
}

// IsAllocatableAt reports whether the unit may be reserved at now.
func (u *Unit) IsAllocatableAt(now time.Time) bool {
	return u.Status == StatusAvailable && u.IsClearedSafe() && !u.IsExpiredAt(now)
}

// CanSeparate checks the separation preconditions.
func (u *Unit) CanSeparate(now time.Time) error {
	if !u.Component.IsSeparable() {
		return dErrors.New(dErrors.CodeConflict, "only whole blood can be separated")
	}
	if !u.Tested {
		return dErrors.New(dErrors.CodeConflict, "unit has not been screened")
	}
	if u.Outcome != OutcomeSafe {
		return dErrors.New(dErrors.CodeConflict, "unit failed screening")
	}
	if u.Status != StatusAvailable {
		return dErrors.New(dErrors.CodeConflict, "unit is "+string(u.Status))
	}
	if u.IsExpiredAt(now) {
		return dErrors.New(dErrors.CodeConflict, "unit is past expiry")
	}
	return nil
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (u *Unit) Clone() *Unit {
	if u == nil {
		return nil
	}
	c := *u
	if u.Screening != nil {
		s := *u.Screening
		c.Screening = &s
	}
	return &c
}

// UnitFilter narrows List queries. Zero values mean "any".
type UnitFilter struct {
	BloodGroup BloodGroup
	Component  Component
	Status     Status
	Tested     *bool
	ParentID   id.UnitID
	DonorID    string
	Limit      int
}

// Matches reports whether u satisfies the filter.
func (f UnitFilter) Matches(u *Unit) bool {
	if f.BloodGroup != "" && u.BloodGroup != f.BloodGroup {
		return false
	}
	if f.Component != "" && u.Component != f.Component {
		return false
	}
	if f.Status != "" && u.Status != f.Status {
		return false
	}
	if f.Tested != nil && u.Tested != *f.Tested {
		return false
	}
	if f.ParentID != "" && u.ParentID != f.ParentID {
		return false
	}
	if f.DonorID != "" && u.DonorID != f.DonorID {
		return false
	}
	return true
}

// ClaimFilter selects allocatable stock.
type ClaimFilter struct {
	BloodGroup BloodGroup
	Component  Component
}

// StockLevel is an aggregate of allocatable quantity.
type StockLevel struct {
	BloodGroup BloodGroup `json:"blood_group"`
	Component  Component  `json:"component"`
	Units      int        `json:"units"`
	Quantity   int        `json:"quantity"`
}

// Lineage is a unit together with its parent and children.
type Lineage struct {
	Unit     *Unit   `json:"unit"`
	Parent   *Unit   `json:"parent,omitempty"`
	Children []*Unit `json:"children,omitempty"`
}
