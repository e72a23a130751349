package usecase

import "fmt"

// WorkflowError wraps a failure from any stage of the ingestion pipeline. It
// carries whether the stage that produced it should be retried, so the
// controller doesn't need to type-switch on the underlying cause.
type WorkflowError struct {
	Stage     string
	Err       error
	Retryable bool
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func NewIdempotencyError(err error) *WorkflowError {
	return &WorkflowError{Stage: "idempotency", Err: err, Retryable: false}
}

func NewTranscodingError(err error) *WorkflowError {
	return &WorkflowError{Stage: "transcoding", Err: err, Retryable: true}
}

func NewASRError(err error) *WorkflowError {
	return &WorkflowError{Stage: "asr", Err: err, Retryable: true}
}

func NewAgenticError(err error) *WorkflowError {
	return &WorkflowError{Stage: "agentic", Err: err, Retryable: true}
}

func NewPersistenceError(err error) *WorkflowError {
	return &WorkflowError{Stage: "persistence", Err: err, Retryable: true}
}

func NewMCPError(err error) *WorkflowError {
	return &WorkflowError{Stage: "mcp", Err: err, Retryable: true}
}
