package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCode_ThroughWrapping(t *testing.T) {
	base := NewNotFoundError("claim", "01HX")
	wrapped := fmt.Errorf("load claim: %w", base)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsInvalidTransition(wrapped))

	stdErr, ok := AsStandardError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNotFound, stdErr.Code)
}

func TestDependencyUnavailable_IsRetryableAndUnwraps(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewDependencyUnavailableError("policy-lookup", cause)

	assert.True(t, IsRetryable(err))
	assert.True(t, IsDependencyUnavailable(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "policy-lookup", err.Metadata["dependency"])
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{"not found", NewNotFoundError("claim", "x"), "CLAIM_NOT_FOUND", 0},
		{"transition", NewInvalidTransitionError("triage", "fnol_complete"), "CLAIM_INVALID_TRANSITION", 0},
		{"validation", NewValidationFailedError("policyNumber", "empty"), "CLAIM_VALIDATION_FAILED", 0},
		{"dependency", NewDependencyUnavailableError("postgres", stderrors.New("down")), "CLAIM_DEPENDENCY_UNAVAILABLE", 3},
		{"conflict", NewConflictError("claim", "x"), "CLAIM_CONFLICT", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ToErrorVariables()["originalErrorCode"])
		})
	}
}

func TestNormalize_PlainError(t *testing.T) {
	stdErr := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.False(t, stdErr.Retryable)
	assert.Equal(t, "OTHER", GetErrorCategory(stdErr.Code))
}
