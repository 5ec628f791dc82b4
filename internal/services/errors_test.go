package services

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_UnwrapsKindAndCause(t *testing.T) {
	err := storageError("failed to save file", io.ErrUnexpectedEOF)

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "failed to save file: unexpected EOF", err.Error())

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "failed to save file", e.Msg)
}

func TestError_WithoutCause(t *testing.T) {
	err := validationError("File must be an image")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "File must be an image", err.Error())
}

func TestAuthErrorsAreAuthKind(t *testing.T) {
	assert.ErrorIs(t, ErrInvalidCredentials, ErrAuth)
	assert.ErrorIs(t, ErrInvalidToken, ErrAuth)
	assert.NotErrorIs(t, ErrInvalidCredentials, ErrInvalidToken)
}
