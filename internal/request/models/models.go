package models

import (
	"time"

	"github.com/shopspring/decimal"

	unit "lifeline/internal/ledger/models"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
)

// Status is the lifecycle state of a blood request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusCompleted, StatusRejected},
	StatusRejected:  {StatusPending},
	StatusCompleted: nil,
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether s -> to is a permitted edge.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type RequesterType string

const (
	RequesterHospital   RequesterType = "Hospital"
	RequesterClinic     RequesterType = "Clinic"
	RequesterIndividual RequesterType = "Individual"
)

func (t RequesterType) IsValid() bool {
	switch t {
	case RequesterHospital, RequesterClinic, RequesterIndividual:
		return true
	}
	return false
}

type Priority string

const (
	PriorityUrgent Priority = "Urgent"
	PriorityNormal Priority = "Normal"
)

func (p Priority) IsValid() bool {
	return p == PriorityUrgent || p == PriorityNormal
}

type PaymentMethod string

const (
	PaymentOnline  PaymentMethod = "Online"
	PaymentCOD     PaymentMethod = "COD"
	PaymentPending PaymentMethod = "Pending"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentOnline, PaymentCOD, PaymentPending:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "Pending"
	PaymentStatusPaid     PaymentStatus = "Paid"
	PaymentStatusVerified PaymentStatus = "Verified"
)

// Delivery tracks dispatch of an approved request. CodeHash never leaves the
// service boundary.
type Delivery struct {
	DriverName       string     `json:"driver_name,omitempty"`
	ContactNumber    string     `json:"contact_number,omitempty"`
	VehicleNumber    string     `json:"vehicle_number,omitempty"`
	EstimatedArrival string     `json:"estimated_arrival,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	TrackingStarted  bool       `json:"tracking_started"`
	CodeHash         string     `json:"-"`
	CodeIssuedAt     *time.Time `json:"code_issued_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	FailedAttempts   int        `json:"failed_attempts"`
}

type Payment struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	Status        PaymentStatus   `json:"status"`
	UPIID         string          `json:"upi_id,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Note          string          `json:"note,omitempty"`
}

// Request is a demand for blood units from a hospital, clinic or individual.
//
// Invariants:
//   - Status changes only along Status.CanTransitionTo
//   - ReservedUnitIDs is non-empty exactly while approved or completed
//   - Quantity >= 1
type Request struct {
	ID              id.RequestID    `json:"id"`
	RequesterID     string          `json:"requester_id,omitempty"`
	RequesterName   string          `json:"requester_name"`
	RequesterType   RequesterType   `json:"requester_type"`
	OrganizationID  string          `json:"organization_id,omitempty"`
	PatientName     string          `json:"patient_name"`
	BloodGroup      unit.BloodGroup `json:"blood_group"`
	Component       unit.Component  `json:"component"`
	Quantity        int             `json:"quantity"`
	Priority        Priority        `json:"priority"`
	Status          Status          `json:"status"`
	ReservedUnitIDs []id.UnitID     `json:"reserved_unit_ids,omitempty"`
	Delivery        Delivery        `json:"delivery"`
	Payment         Payment         `json:"payment"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	// Version counts committed updates. Stores compare it on every write.
	Version int64 `json:"-"`
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.ReservedUnitIDs = append([]id.UnitID(nil), r.ReservedUnitIDs...)
	c.Delivery.StartedAt = cloneTime(r.Delivery.StartedAt)
	c.Delivery.CodeIssuedAt = cloneTime(r.Delivery.CodeIssuedAt)
	c.Delivery.CompletedAt = cloneTime(r.Delivery.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Filter narrows List queries. Zero values mean "any".
type Filter struct {
	Status         Status
	OrganizationID string
	RequesterID    string
	BloodGroup     unit.BloodGroup
	Limit          int
}

func (f Filter) Matches(r *Request) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.OrganizationID != "" && r.OrganizationID != f.OrganizationID {
		return false
	}
	if f.RequesterID != "" && r.RequesterID != f.RequesterID {
		return false
	}
	if f.BloodGroup != "" && r.BloodGroup != f.BloodGroup {
		return false
	}
	return true
}

// Validate checks the filter's enumerated fields.
func (f Filter) Validate() error {
	if f.Status != "" && !f.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown request status "+string(f.Status))
	}
	if f.BloodGroup != "" && !f.BloodGroup.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown blood group "+string(f.BloodGroup))
	}
	if f.Limit < 0 {
		return dErrors.New(dErrors.CodeValidation, "limit must not be negative")
	}
	return nil
}

// PublicView is what a driver sees: dispatch details only, no credentials and
// no payment data.
type PublicView struct {
	ID               id.RequestID    `json:"id"`
	Status           Status          `json:"status"`
	OrganizationID   string          `json:"organization_id,omitempty"`
	RequesterName    string          `json:"requester_name"`
	BloodGroup       unit.BloodGroup `json:"blood_group"`
	Component        unit.Component  `json:"component"`
	Quantity         int             `json:"quantity"`
	Priority         Priority        `json:"priority"`
	DriverName       string          `json:"driver_name,omitempty"`
	VehicleNumber    string          `json:"vehicle_number,omitempty"`
	EstimatedArrival string          `json:"estimated_arrival,omitempty"`
	TrackingStarted  bool            `json:"tracking_started"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

func (r *Request) Public() PublicView {
	return PublicView{
		ID:               r.ID,
		Status:           r.Status,
		OrganizationID:   r.OrganizationID,
		RequesterName:    r.RequesterName,
		BloodGroup:       r.BloodGroup,
		Component:        r.Component,
		Quantity:         r.Quantity,
		Priority:         r.Priority,
		DriverName:       r.Delivery.DriverName,
		VehicleNumber:    r.Delivery.VehicleNumber,
		EstimatedArrival: r.Delivery.EstimatedArrival,
		TrackingStarted:  r.Delivery.TrackingStarted,
		CompletedAt:      cloneTime(r.Delivery.CompletedAt),
	}
}
