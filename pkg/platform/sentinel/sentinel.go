package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped) and
// services translate them into domain errors:
//   - ErrNotFound: no unit or request with that identifier
//   - ErrAlreadyUsed: identifier already taken, or a one-time edge already fired
//   - ErrInvalidState: the record is not in the state a conditional write expected
//   - ErrUnavailable: the backing store cannot be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
