package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "lifeline/pkg/domain-errors"
)

// UnitID identifies one physical bag. Bag barcodes are printed upper case, so the
// canonical form is upper case with surrounding whitespace removed.
type UnitID string

// RequestID identifies a blood request.
type RequestID uuid.UUID

const maxUnitIDLength = 64

func (u UnitID) String() string { return string(u) }

// ParseUnitID normalizes and validates a unit identifier. Allowed characters are
// letters, digits, '-', '_' and a leading '#', matching legacy bag labels.
func ParseUnitID(s string) (UnitID, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unit id is required")
	}
	if !utf8.ValidString(s) || len(s) > maxUnitIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unit id is malformed")
	}
	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		case r == '#' && i == 0:
		default:
			return "", dErrors.New(dErrors.CodeInvalidInput, "unit id is malformed")
		}
	}
	return UnitID(s), nil
}

// NewUnitID generates an identifier for units that arrive without a barcode.
func NewUnitID() UnitID {
	return UnitID("BU-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")))
}

func (r RequestID) String() string { return uuid.UUID(r).String() }

// IsNil reports whether the id is the zero UUID.
func (r RequestID) IsNil() bool { return uuid.UUID(r) == uuid.Nil }

// NewRequestID generates a random request identifier.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// ParseRequestID parses a request identifier, rejecting the nil UUID.
func ParseRequestID(s string) (RequestID, error) {
	if s == "" {
		return RequestID{}, dErrors.New(dErrors.CodeInvalidInput, "request id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return RequestID{}, dErrors.New(dErrors.CodeInvalidInput, "request id is malformed")
	}
	if parsed == uuid.Nil {
		return RequestID{}, dErrors.New(dErrors.CodeInvalidInput, "request id is required")
	}
	return RequestID(parsed), nil
}
