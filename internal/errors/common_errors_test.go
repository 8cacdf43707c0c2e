package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "keep fraction out of range",
			},
			wantMessage: "[VALIDATION] keep fraction out of range",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeParsing,
				Message: "invalid JSON in column totals",
				Cause:   fmt.Errorf("unexpected end of input"),
			},
			wantMessage: "[PARSING] invalid JSON in column totals: unexpected end of input",
		},
		{
			name: "error with empty message",
			appError: &AppError{
				Type: ErrTypeStorage,
			},
			wantMessage: "[STORAGE] ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("failed to write chunk", cause)

	assert.Same(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))

	wrapped := fmt.Errorf("flatten: %w", err)
	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypeStorage, appErr.Type)
}

func TestAppError_WithContext(t *testing.T) {
	err := &AppError{Type: ErrTypeParsing, Message: "bad date"}

	result := err.WithContext("row", 12).WithContext("column", "date")

	assert.Same(t, err, result)
	assert.Equal(t, 12, result.Context["row"])
	assert.Equal(t, "date", result.Context["column"])
}

func TestConstructors(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantMsg  string
	}{
		{"parsing", NewParsingError("parse", cause), ErrTypeParsing, "parse"},
		{"storage", NewStorageError("store", cause), ErrTypeStorage, "store"},
		{"validation", NewValidationError("invalid", nil), ErrTypeValidation, "invalid"},
		{"not found", NewNotFoundError("input file"), ErrTypeNotFound, "input file not found"},
		{"config", NewConfigError("config", cause), ErrTypeConfig, "config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Message)
			assert.NotNil(t, tt.err.Context)
		})
	}
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("stage failed: %w", NewValidationError("unparseable date", nil))

	assert.True(t, IsType(err, ErrTypeValidation))
	assert.False(t, IsType(err, ErrTypeParsing))
	assert.False(t, IsType(errors.New("plain"), ErrTypeValidation))
	assert.False(t, IsType(nil, ErrTypeValidation))
}
