package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Is(t *testing.T) {
	err := fmt.Errorf("add contact: %w", invalid(CodeInvalidEmail))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrForbidden))

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, CodeInvalidEmail, ve.Code)
}
