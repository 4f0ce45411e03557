package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeInvariant, "bad rank index"),
			expected: "[INVARIANT_VIOLATION] bad rank index",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeCommError, "alltoallv failed", errors.New("short write")),
			expected: "[COMM_ERROR] alltoallv failed: short write",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeProtocolMismatch, "unexpected tag", underlying)

	unwrapped := err.Unwrap()
	assert.Equal(t, underlying, unwrapped)
}

func TestAppError_Is(t *testing.T) {
	err1 := New(CodeInvariant, "error 1")
	err2 := New(CodeInvariant, "error 2")
	err3 := New(CodeProtocolMismatch, "error 3")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestIsInvariant(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "invariant error",
			err:      ErrInvariant,
			expected: true,
		},
		{
			name:     "wrapped invariant error",
			err:      Wrap(CodeInvariant, "cell index out of range", errors.New("index 42")),
			expected: true,
		},
		{
			name:     "other error",
			err:      ErrProtocolMismatch,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsInvariant(tt.err))
		})
	}
}

func TestIsProtocolMismatch(t *testing.T) {
	assert.True(t, IsProtocolMismatch(ErrProtocolMismatch))
	assert.False(t, IsProtocolMismatch(ErrInvariant))
}

func TestIsEmptyDomain(t *testing.T) {
	assert.True(t, IsEmptyDomain(ErrEmptyDomain))
	assert.False(t, IsEmptyDomain(ErrInvariant))
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "app error",
			err:      New(CodeInvariant, "bad index"),
			expected: CodeInvariant,
		},
		{
			name:     "wrapped app error",
			err:      Wrap(CodeCommError, "send failed", errors.New("inner")),
			expected: CodeCommError,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: CodeUnknown,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCode(tt.err))
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "app error",
			err:      New(CodeInvariant, "bad cell index"),
			expected: "bad cell index",
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: "standard error",
		},
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorMessage(tt.err))
		})
	}
}
