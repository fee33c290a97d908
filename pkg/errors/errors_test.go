package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := NewInternalError("failed to list businesses", cause)

	assert.Equal(t, "INTERNAL: failed to list businesses: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestTypeOf_WrappedAppError(t *testing.T) {
	err := fmt.Errorf("create category: %w", NewConflictError("category already exists", nil))

	assert.Equal(t, ErrorTypeConflict, TypeOf(err))
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestTypeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("boom")))
	assert.False(t, IsConflict(nil))
}
