package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesExistingCode(t *testing.T) {
	inner := New(CodeInvalidTransition, "required purpose cannot be withdrawn")
	wrapped := Wrap(inner, CodeInternal, "update failed")

	assert.True(t, HasCode(wrapped, CodeInvalidTransition))
	assert.False(t, HasCode(wrapped, CodeInternal))
	assert.Equal(t, "update failed", wrapped.Error())
}

func TestWrapForeignError(t *testing.T) {
	inner := fmt.Errorf("disk full")
	wrapped := Wrap(inner, CodeStorageFailure, "snapshot write failed")

	assert.True(t, HasCode(wrapped, CodeStorageFailure))
	assert.ErrorIs(t, wrapped, inner)
}

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeNotFound, "no record for purpose")
	require.Error(t, err)
	assert.True(t, errors.Is(err, &Error{Code: CodeNotFound}))
	assert.False(t, errors.Is(err, &Error{Code: CodeConflict}))
}

func TestErrorMessageFallsBackToCode(t *testing.T) {
	err := &Error{Code: CodeParseFailure}
	assert.Equal(t, "parse_failure", err.Error())
}
