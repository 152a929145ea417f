// Package provider defines the contract the conversation loop consumes to
// talk to a remote model. Per-vendor payload encoding, HTTP transport and
// retry policy live entirely inside implementations of this contract; the
// core only decides when a request happens and under which consistency
// guarantees its outcome is committed.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/tool"
)

// ToolDefinition declaratively exposes a callable tool to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Definition builds the normalized definition for a tool. Adapters translate
// it into their vendor schema via FormatTool.
func Definition(t tool.Tool) ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// Definitions builds definitions for a set of tools preserving input order.
func Definitions(tools []tool.Tool) []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, Definition(t))
	}
	return defs
}

// Chunk is one incremental fragment of a streaming assistant reply.
type Chunk struct {
	Content string `json:"content"`
}

// StreamFunc receives incremental chunks during a streaming request. It runs
// on the goroutine performing the request.
type StreamFunc func(Chunk)

// Info contains metadata about a provider implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Provider is the minimal interface required to drive one model turn. The
// returned assistant message carries tool calls in the model's request order
// when the model asks for tools.
type Provider interface {
	// Send performs a blocking completion over the full message sequence.
	Send(ctx context.Context, messages []core.Message, tools []ToolDefinition) (core.Message, error)

	// Stream performs a completion delivering text fragments to onChunk as
	// they arrive, then returns the complete assistant message.
	Stream(ctx context.Context, messages []core.Message, tools []ToolDefinition, onChunk StreamFunc) (core.Message, error)

	// FormatTool translates a normalized tool definition into the vendor's
	// native schema representation.
	FormatTool(def ToolDefinition) any

	// Info returns metadata about the provider implementation.
	Info() Info
}

// Error is the distinguishable provider failure the loop (or an installed
// request hook) classifies as retryable vs fatal.
type Error struct {
	Provider   string `json:"provider"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	Err        error  `json:"-"`
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// Unwrap exposes the underlying vendor error for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a provider error marked transient
// (rate limits, timeouts, 5xx responses).
func IsRetryable(err error) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Retryable
	}
	return false
}

// RetryableStatus classifies an HTTP status code the way adapters mark their
// errors: 408, 429 and all 5xx responses are transient.
func RetryableStatus(status int) bool {
	return status == 408 || status == 429 || status >= 500
}
