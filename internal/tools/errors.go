package tools

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned when a requested tool is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyExists is returned when a name is registered twice.
	ErrToolAlreadyExists = errors.New("tool already exists")

	// ErrInvalidArgs is returned when tool arguments are malformed or fail
	// schema validation.
	ErrInvalidArgs = errors.New("invalid tool arguments")

	// ErrToolExecution wraps failures raised by a tool's Execute.
	ErrToolExecution = errors.New("tool execution failed")
)

// ToolNotFoundError names the missing tool.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

func (e *ToolNotFoundError) Is(target error) bool { return target == ErrToolNotFound }

func (e *ToolNotFoundError) Unwrap() error { return ErrToolNotFound }

// ToolAlreadyExistsError names the duplicate tool.
type ToolAlreadyExistsError struct {
	Name string
}

func (e *ToolAlreadyExistsError) Error() string {
	return fmt.Sprintf("tool already exists: %s", e.Name)
}

func (e *ToolAlreadyExistsError) Is(target error) bool { return target == ErrToolAlreadyExists }

func (e *ToolAlreadyExistsError) Unwrap() error { return ErrToolAlreadyExists }

// InvalidArgsError describes rejected arguments.
type InvalidArgsError struct {
	Tool    string
	Message string
	Cause   error
}

func (e *InvalidArgsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid arguments for tool %s: %s: %v", e.Tool, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, e.Message)
}

func (e *InvalidArgsError) Is(target error) bool { return target == ErrInvalidArgs }

func (e *InvalidArgsError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrInvalidArgs
}

// ToolExecutionError records a failed call. The model receives its message
// as an error result and the turn continues.
type ToolExecutionError struct {
	Tool  string
	Cause error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Cause)
}

func (e *ToolExecutionError) Is(target error) bool { return target == ErrToolExecution }

func (e *ToolExecutionError) Unwrap() error { return e.Cause }

// NewToolNotFoundError creates a ToolNotFoundError.
func NewToolNotFoundError(name string) error {
	return &ToolNotFoundError{Name: name}
}

// NewToolAlreadyExistsError creates a ToolAlreadyExistsError.
func NewToolAlreadyExistsError(name string) error {
	return &ToolAlreadyExistsError{Name: name}
}

// NewInvalidArgsError creates an InvalidArgsError.
func NewInvalidArgsError(tool, message string, cause error) error {
	return &InvalidArgsError{Tool: tool, Message: message, Cause: cause}
}

// NewToolExecutionError creates a ToolExecutionError.
func NewToolExecutionError(tool string, cause error) error {
	return &ToolExecutionError{Tool: tool, Cause: cause}
}
