package testutil

import (
	"fmt"

	"github.com/hupe1980/chatloop/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().AssistantText("hello").ToolCall("tc-1", "search", nil).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	id         string
	role       core.Role
	content    any
	toolCallID string
	toolCalls  []core.ToolCall
}

// NewMessageBuilder creates a builder with default role assistant.
func NewMessageBuilder() *MessageBuilder { return &MessageBuilder{role: core.RoleAssistant} }

// ID overrides the auto-generated message ID (chainable). Use mainly where
// determinism matters.
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.id = id; return b }

// SystemText sets system role and textual content (chainable).
func (b *MessageBuilder) SystemText(t string) *MessageBuilder {
	b.role = core.RoleSystem
	b.content = t
	return b
}

// UserText sets user role and textual content (chainable).
func (b *MessageBuilder) UserText(t string) *MessageBuilder {
	b.role = core.RoleUser
	b.content = t
	return b
}

// AssistantText sets assistant role and textual content (chainable).
func (b *MessageBuilder) AssistantText(t string) *MessageBuilder {
	b.role = core.RoleAssistant
	b.content = t
	return b
}

// ToolResult sets tool role, the answered call id, and content (chainable).
func (b *MessageBuilder) ToolResult(toolCallID string, content any) *MessageBuilder {
	b.role = core.RoleTool
	b.toolCallID = toolCallID
	b.content = content
	return b
}

// ToolCall appends a tool call request to an assistant message (chainable).
func (b *MessageBuilder) ToolCall(id, name string, args map[string]any) *MessageBuilder {
	b.role = core.RoleAssistant
	b.toolCalls = append(b.toolCalls, core.ToolCall{ID: id, Name: name, Arguments: args})
	return b
}

// Build returns the constructed message.
func (b *MessageBuilder) Build() core.Message {
	msg := core.NewMessage(b.role, b.content)
	if b.id != "" {
		msg.ID = b.id
	}
	msg.ToolCallID = b.toolCallID
	msg.ToolCalls = b.toolCalls
	return msg
}

// Calls constructs n tool calls named name with ids "tc-1".."tc-n".
func Calls(n int, name string) []core.ToolCall {
	calls := make([]core.ToolCall, n)
	for i := range calls {
		calls[i] = core.ToolCall{
			ID:        fmt.Sprintf("tc-%d", i+1),
			Name:      name,
			Arguments: map[string]any{},
		}
	}
	return calls
}
