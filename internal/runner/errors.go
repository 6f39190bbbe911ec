package runner

import (
	"errors"
	"fmt"
)

// Runner errors.
var (
	// ErrMaxSteps indicates the model still requested tools when the step
	// budget ran out.
	ErrMaxSteps = errors.New("maximum steps reached")

	// ErrNoProvider indicates no provider is configured.
	ErrNoProvider = errors.New("no provider configured")

	// ErrNoUserMessage indicates the turn has no user message to answer.
	ErrNoUserMessage = errors.New("no user message")

	// ErrIllegalTransition indicates a driver state change outside the
	// transition table.
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrPersistence wraps storage failures after the stream completed.
	ErrPersistence = errors.New("persist turn")
)

// GenerationError is a model failure during streaming.
type GenerationError struct {
	Step  int
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed at step %d: %v", e.Step, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }
