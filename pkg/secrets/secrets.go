// Package secrets issues and checks one-time delivery codes.
package secrets

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"

	dErrors "lifeline/pkg/domain-errors"
)

// CodeDigits is the length of a delivery code.
const CodeDigits = 4

// Hasher hashes and verifies secrets with bcrypt at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher. A cost outside bcrypt's range falls back to the default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// GenerateCode returns a uniformly random numeric code of CodeDigits digits,
// zero-padded.
func GenerateCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < CodeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("could not generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}

// Normalize trims surrounding whitespace from a submitted code.
func Normalize(code string) string {
	return strings.TrimSpace(code)
}

// Hash creates a bcrypt hash of the normalized secret.
func (h *Hasher) Hash(secret string) (string, error) {
	secret = Normalize(secret)
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a submitted secret against a stored hash. A mismatch is
// CodeInvalidCredential; an empty hash is CodeIntegrity.
func (h *Hasher) Verify(secret, hash string) error {
	if hash == "" {
		return dErrors.New(dErrors.CodeIntegrity, "no code on record")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(Normalize(secret))); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeInvalidCredential, "code does not match")
		}
		return dErrors.Wrap(err, dErrors.CodeIntegrity, "stored code hash is unreadable")
	}
	return nil
}
