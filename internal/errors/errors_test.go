package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, CodeOf(NotFound("target", "t-1")))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("boom")))

	wrapped := fmt.Errorf("loading: %w", New(ErrCodeConflict, "already completed"))
	assert.Equal(t, ErrCodeConflict, CodeOf(wrapped))
	assert.True(t, Is(wrapped, ErrCodeConflict))
	assert.False(t, Is(nil, ErrCodeConflict))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "x"))

	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrCodeInternal, "failed to load history")
	assert.EqualError(t, err, "failed to load history: connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestValidation(t *testing.T) {
	err := Validation(map[string]string{"note": "required", "approvalStatus": "required"})
	assert.Equal(t, ErrCodeInvalidInput, err.Code)
	assert.Equal(t, "invalid input: approvalStatus: required; note: required", err.Error())
	assert.Equal(t, map[string]string{"note": "required", "approvalStatus": "required"}, FieldsOf(err))
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("title", "title is required")
	assert.Equal(t, "invalid title: title is required", err.Error())
	assert.Equal(t, "title is required", err.Fields["title"])
	assert.Nil(t, FieldsOf(stderrors.New("plain")))
}
