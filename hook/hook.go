// Package hook provides the two single-slot interception points of the
// execution core: one wrapping individual tool invocations, one wrapping
// outbound model requests. Unlike the event bus, hooks are not additive —
// installing a new function replaces the previous one. They are plain
// settable function values, not a subclassing mechanism.
package hook

import (
	"context"
	"sync"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/tool"
)

// ProceedTool performs the underlying tool invocation a ToolExecutionFunc
// wraps.
type ProceedTool func(ctx context.Context) (any, error)

// ToolExecutionFunc intercepts one tool invocation. The default behavior is
// proceed(ctx); overrides may short-circuit (return a cached value without
// calling proceed), rate limit, or post-process the result. Implementations
// must be exception-safe: release any acquired resource via defer so cleanup
// runs regardless of how proceed exits.
type ToolExecutionFunc func(ctx context.Context, call core.ToolCall, t tool.Tool, proceed ProceedTool) (any, error)

// ProceedRequest performs the underlying provider request a RequestFunc
// wraps. Streaming requests use the same signature; the incremental-chunk
// callback is captured by the closure, so an override that calls proceed
// preserves the streaming contract unchanged.
type ProceedRequest func(ctx context.Context, messages []core.Message) (core.Message, error)

// RequestFunc intercepts one outbound model request. The default behavior is
// proceed(ctx, messages); overrides may substitute the outbound message set
// (e.g. truncate context), retry on transient provider errors, or serve
// cached responses. The returned message must be compatible with what
// proceed would have returned.
type RequestFunc func(ctx context.Context, messages []core.Message, proceed ProceedRequest) (core.Message, error)

// Hooks holds the two slots. One function per slot per chat instance;
// setting a slot replaces its previous occupant. The zero value is ready to
// use and behaves as if both slots held their defaults.
type Hooks struct {
	mu            sync.RWMutex
	toolExecution ToolExecutionFunc
	request       RequestFunc
}

// New constructs an empty Hooks with default pass-through behavior.
func New() *Hooks { return &Hooks{} }

// SetToolExecution installs fn in the tool-execution slot, replacing any
// previous function. A nil fn restores the default.
func (h *Hooks) SetToolExecution(fn ToolExecutionFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolExecution = fn
}

// SetRequest installs fn in the request slot, replacing any previous
// function. A nil fn restores the default.
func (h *Hooks) SetRequest(fn RequestFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.request = fn
}

// ToolExecution runs the installed tool-execution function, or proceed
// directly when the slot is empty.
func (h *Hooks) ToolExecution(ctx context.Context, call core.ToolCall, t tool.Tool, proceed ProceedTool) (any, error) {
	h.mu.RLock()
	fn := h.toolExecution
	h.mu.RUnlock()

	if fn == nil {
		return proceed(ctx)
	}
	return fn(ctx, call, t, proceed)
}

// Request runs the installed request function, or proceed directly when the
// slot is empty.
func (h *Hooks) Request(ctx context.Context, messages []core.Message, proceed ProceedRequest) (core.Message, error) {
	h.mu.RLock()
	fn := h.request
	h.mu.RUnlock()

	if fn == nil {
		return proceed(ctx, messages)
	}
	return fn(ctx, messages, proceed)
}
