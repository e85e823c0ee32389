package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "AuthorizationError", KindAuthorization.String())
	assert.Equal(t, "ValidationError", KindValidation.String())
	assert.Equal(t, "InsufficientRepaymentError", KindInsufficientRepayment.String())
	assert.Equal(t, "ExternalCallFailure", KindExternalCall.String())
	assert.Equal(t, "UnknownError", KindUnknown.String())
}

func TestConstructorsAndPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  Kind
		check func(error) bool
	}{
		{"authorization", Authorization("caller %s is not owner", "0xdead"), KindAuthorization, IsAuthorization},
		{"validation", Validation("path too short"), KindValidation, IsValidation},
		{"repayment", InsufficientRepayment("short by %d", 5), KindInsufficientRepayment, IsInsufficientRepayment},
		{"external", ExternalCall("router reverted"), KindExternalCall, IsExternalCall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindExternalCall, cause, "relay submission failed")

	require.True(t, IsExternalCall(err))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "ExternalCallFailure")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindSurvivesFmtWrapping(t *testing.T) {
	inner := Validation("length mismatch")
	outer := fmt.Errorf("initiate: %w", inner)

	assert.True(t, IsValidation(outer))
	assert.Equal(t, KindValidation, KindOf(outer))
}

func TestIsMatchesByKind(t *testing.T) {
	a := Validation("first")
	b := Validation("second")
	c := Authorization("third")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.False(t, IsValidation(nil))
}
