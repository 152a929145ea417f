package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message in the conversation transcript.
type Role string

const (
	// RoleSystem marks instructions injected by the embedding application.
	RoleSystem Role = "system"
	// RoleUser marks end-user input.
	RoleUser Role = "user"
	// RoleAssistant marks model output, possibly requesting tool calls.
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of a tool invocation, linked to its call
	// via ToolCallID.
	RoleTool Role = "tool"
)

// Message is one entry in a conversation transcript. Messages are owned by
// the ledger that holds them and are treated as immutable after creation,
// with a single documented exception: a schema-constrained final reply may
// have its Content replaced once by the decoded structured value (see
// ledger.ReplaceContent).
//
// ToolCalls is present only on assistant messages requesting tools and
// preserves the model's request order. ToolCallID links a tool-role message
// to the call it answers.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    any        `json:"content,omitempty"` // text or structured payload
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`

	// Provider metadata, populated by adapters on assistant messages.
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

// NewID generates a unique identifier for messages, tool calls and
// subscriptions.
func NewID() string { return uuid.NewString() }

// NewMessage creates a bare message with the given role and content.
func NewMessage(role Role, content any) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewSystemMessage creates a system-role instruction message.
func NewSystemMessage(text string) Message { return NewMessage(RoleSystem, text) }

// NewUserMessage creates a user-role message.
func NewUserMessage(text string) Message { return NewMessage(RoleUser, text) }

// NewAssistantMessage creates an assistant-role message with plain content
// and no tool calls.
func NewAssistantMessage(content any) Message { return NewMessage(RoleAssistant, content) }

// NewToolMessage creates a tool-role message answering the call identified
// by toolCallID.
func NewToolMessage(toolCallID string, content any) Message {
	m := NewMessage(RoleTool, content)
	m.ToolCallID = toolCallID
	return m
}

// HasToolCalls reports whether this assistant message requests tool
// execution.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// Text renders the message content as a string. Structured payloads are
// formatted with %v; nil content yields the empty string.
func (m Message) Text() string {
	switch c := m.Content.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return fmt.Sprintf("%v", c)
	}
}

// Clone returns a deep copy safe for isolation across component boundaries.
func (m Message) Clone() Message {
	out := m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i := range m.ToolCalls {
			out.ToolCalls[i] = m.ToolCalls[i].Clone()
		}
	}
	return out
}

// CloneMessages returns deep copies of all messages.
func CloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
