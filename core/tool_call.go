package core

// ToolCall is a single tool invocation requested by the model within one
// assistant turn. It is created while parsing a model response and read-only
// afterwards. ID is unique within the turn.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Clone returns a deep copy of the call.
func (c ToolCall) Clone() ToolCall {
	out := c
	if c.Arguments != nil {
		out.Arguments = make(map[string]any, len(c.Arguments))
		for k, v := range c.Arguments {
			out.Arguments[k] = v
		}
	}
	return out
}

// Halt is a sentinel tool return value that terminates the tool-execution
// loop early. Its payload is surfaced as the turn's final answer instead of
// re-invoking the model.
type Halt struct {
	Content any `json:"content"`
}

// NewHalt wraps a final payload in a Halt sentinel. Tools return it from
// Invoke to end the turn:
//
//	func (t *doneTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
//	    return core.NewHalt("all work finished"), nil
//	}
func NewHalt(content any) Halt { return Halt{Content: content} }

// AsHalt unwraps a tool return value, reporting whether it is a Halt
// sentinel. Both value and pointer forms are recognized.
func AsHalt(v any) (Halt, bool) {
	switch h := v.(type) {
	case Halt:
		return h, true
	case *Halt:
		if h != nil {
			return *h, true
		}
	}
	return Halt{}, false
}

// ToolResult is the reconciled outcome of one tool invocation. IsError marks
// failures that were converted into error-shaped results so the remote model
// sees a failure message rather than the turn aborting. Halt is non-nil when
// the tool returned a Halt sentinel.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    any    `json:"content,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
	Halt       *Halt  `json:"halt,omitempty"`
}

// Message converts the result into the tool-role message committed to the
// ledger. A halted result carries the halt payload as its content.
func (r ToolResult) Message() Message {
	content := r.Content
	if r.Halt != nil {
		content = r.Halt.Content
	}
	return NewToolMessage(r.ToolCallID, content)
}
