package models

// Status is the lifecycle state of a unit. Untested units are available with
// Tested=false; screening is tracked separately from status.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusReserved    Status = "reserved"
	StatusQuarantined Status = "quarantined"
	StatusProcessed   Status = "processed"
	StatusExpired     Status = "expired"
	StatusOut         Status = "out"
)

var transitions = map[Status][]Status{
	StatusAvailable: {StatusReserved, StatusQuarantined, StatusProcessed, StatusExpired},
	StatusReserved:  {StatusOut, StatusExpired, StatusAvailable},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusQuarantined, StatusProcessed, StatusExpired, StatusOut:
		return true
	}
	return false
}

// IsTerminal reports whether no edge leaves s.
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether the ledger permits the edge s -> to.
// reserved -> available exists only for releasing a reservation.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
