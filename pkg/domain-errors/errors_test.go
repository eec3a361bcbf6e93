package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeNotFound, "unit not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("load: %w", New(CodeConflict, "busy"))
		assert.True(t, HasCode(err, CodeConflict))
		assert.Equal(t, CodeConflict, CodeOf(err))
	})

	t.Run("outermost code wins", func(t *testing.T) {
		inner := New(CodeNotFound, "missing")
		outer := Wrap(inner, CodeInternal, "failed to load")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.False(t, HasCode(outer, CodeNotFound))
		assert.ErrorIs(t, outer, inner)
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.Equal(t, "internal error", Message(errors.New("boom")))
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:        http.StatusBadRequest,
		CodeNotFound:          http.StatusNotFound,
		CodeInvalidTransition: http.StatusConflict,
		CodeInsufficientStock: http.StatusConflict,
		CodeInvalidCredential: http.StatusUnprocessableEntity,
		CodeIntegrity:         http.StatusInternalServerError,
		CodeUnavailable:       http.StatusServiceUnavailable,
		CodeForbidden:         http.StatusForbidden,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
