// ABOUTME: Error taxonomy for the reply and ingestion pipelines
// ABOUTME: Callers map these to transport status codes with errors.Is / errors.As

package conversation

import (
	"context"
	"errors"
	"fmt"
)

// ErrValidation is matched by every *ValidationError
var ErrValidation = errors.New("validation failed")

// ValidationError reports a request that cannot be processed as given.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StoreError reports a persistence failure, including the step that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// AgentError reports a drafting failure.
type AgentError struct {
	Err error
}

func (e *AgentError) Error() string { return "agent draft failed: " + e.Err.Error() }

func (e *AgentError) Unwrap() error { return e.Err }

// Timeout reports whether the agent ran out of time.
func (e *AgentError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
