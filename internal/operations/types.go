package operations

import (
	"time"
)

// Pipeline step identifiers
const (
	StepIDFlattenTrain = "flatten_train"
	StepIDFlattenTest  = "flatten_test"
	StepIDSplit        = "split"
	StepIDExport       = "export"
)

// Pipeline step names
const (
	StepNameFlattenTrain = "Flatten Train Sessions"
	StepNameFlattenTest  = "Flatten Test Sessions"
	StepNameSplit        = "Build Feature Tables"
	StepNameExport       = "Export Feature Tables"
)

// Context keys for values passed between steps
const (
	ContextKeyFlatTrain   = "flat_train"
	ContextKeyFlatTest    = "flat_test"
	ContextKeySplitResult = "split_result"
	ContextKeyOutputs     = "outputs"
)

// Request parameter keys
const (
	ParamStep = "step"
)

// Default timeouts
const (
	DefaultStepTimeout = 2 * time.Hour
)

// RetryConfig defines retry behavior for steps
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// OperationRequest represents a request to execute an operation.
// Parameters[ParamStep] limits the run to a single registered step.
type OperationRequest struct {
	ID         string                 `json:"id"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// OperationResponse represents the response from an operation execution
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Error    string                `json:"error,omitempty"`
}
