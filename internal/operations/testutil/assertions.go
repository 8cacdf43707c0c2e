package testutil

import (
	"errors"
	"testing"
	"time"

	"gafeatures/internal/operations"
)

// AssertStepStatus verifies a step in the response has the expected status
func AssertStepStatus(t *testing.T, resp *operations.OperationResponse, stepID string, expected operations.StepStatus) {
	t.Helper()
	if resp == nil {
		t.Fatal("operation response is nil")
	}
	step, ok := resp.Steps[stepID]
	if !ok {
		t.Fatalf("step %s not found", stepID)
	}
	if step.Status != expected {
		t.Errorf("step %s status = %v, want %v", stepID, step.Status, expected)
	}
}

// AssertErrorType verifies the type of an operation error
func AssertErrorType(t *testing.T, err error, expectedType operations.ErrorType) {
	t.Helper()
	if err == nil {
		t.Fatal("error is nil")
	}
	var opErr *operations.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("error is not an OperationError: %T", err)
	}
	if opErr.Type != expectedType {
		t.Errorf("error type = %v, want %v", opErr.Type, expectedType)
	}
}

// FastConfig returns a config with millisecond retry delays for tests
func FastConfig() *operations.Config {
	return operations.NewConfigBuilder().
		WithRetryConfig(operations.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		}).
		Build()
}
