package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorWrapping(t *testing.T) {
	cause := errors.New("division by zero")
	err := NewStageFailure("matcher", cause)

	assert.Equal(t, "matcher stage failed: division by zero", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("failed to diagnose: %w", err)
	code, ok := CodeOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrStageFailure, code)
	assert.True(t, IsCode(wrapped, ErrStageFailure))
	assert.False(t, IsCode(wrapped, ErrValidation))
}

func TestCodeOfPlainError(t *testing.T) {
	_, ok := CodeOf(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsCode(nil, ErrValidation))
}

func TestConstructorMessages(t *testing.T) {
	assert.Equal(t, "coordinator is not initialized", NewNotInitialized("coordinator").Error())
	assert.Equal(t, "embedding capability is unavailable", NewCapabilityAbsent("embedding", nil).Error())
	assert.Equal(t, "symptoms are required", NewValidation("symptoms are required", nil).Error())
	assert.Equal(t, ErrNotFound, NotFound("condition", nil).Code)
}
