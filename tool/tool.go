// Package tool defines the callable-function contract the conversation loop
// executes on behalf of the model, plus a generic adapter for exposing plain
// Go functions as tools with schema-validated arguments and consistent error
// codes.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/chatloop/internal/util"
)

// Tool is a local capability the model may request during a turn.
//
// Implementations should:
//   - Provide clear, descriptive names (snake_case recommended)
//   - Define a proper JSON schema for parameters
//   - Observe ctx cancellation at blocking points
//   - Be thread-safe if shared across concurrent invocations; the execution
//     core guarantees its own invariants but not tool-author correctness
//
// A tool ends the turn early by returning a core.Halt value: the halt
// payload becomes the turn's answer instead of re-invoking the model.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description provided to the model
	// so it understands when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Invoke executes the tool. Arguments have been decoded from the model's
	// JSON payload. Errors are converted by the coordinator into error-shaped
	// results visible to the model; they never abort the turn.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation failures with the
// offending field.
type ValidationError = util.ValidationError

// ToolError represents errors raised during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
