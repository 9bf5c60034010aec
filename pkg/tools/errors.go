package tools

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrParseFunctionCall is returned when a <ToolUse> block cannot be
	// turned into a structured function call.
	ErrParseFunctionCall = errors.New("could not parse function call")

	// ErrSerializeResult is returned when a tool's return value cannot be
	// serialized to JSON.
	ErrSerializeResult = errors.New("could not serialize tool result")
)

// MissingFieldError marks a structured function call that came back without
// a required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("function call is missing field %q", e.Field)
}

// DeserializeArgumentsError wraps a failure to decode the arguments of a
// resolved function call.
type DeserializeArgumentsError struct {
	Name string
	Err  error
}

func (e *DeserializeArgumentsError) Error() string {
	return fmt.Sprintf("could not deserialize arguments for %q: %v", e.Name, e.Err)
}

func (e *DeserializeArgumentsError) Unwrap() error { return e.Err }

// FunctionExecutionError wraps a failure inside a tool handler.
type FunctionExecutionError struct {
	Name string
	Err  error
}

func (e *FunctionExecutionError) Error() string {
	return fmt.Sprintf("calling function %q failed: %v", e.Name, e.Err)
}

func (e *FunctionExecutionError) Unwrap() error { return e.Err }
