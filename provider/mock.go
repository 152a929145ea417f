package provider

import (
	"context"
	"sync"

	"github.com/hupe1980/chatloop/core"
)

// MockProvider is a lightweight in-memory Provider useful for tests and
// examples. Responses are played back in the order they were scripted; once
// the script is exhausted a canned echo reply is produced. All methods are
// safe for concurrent use.
type MockProvider struct {
	mu        sync.Mutex
	script    []core.Message
	errs      []error
	requests  [][]core.Message
	lastTools []ToolDefinition
}

// NewMockProvider constructs an empty MockProvider.
func NewMockProvider() *MockProvider { return &MockProvider{} }

// EnqueueReply scripts a plain assistant text reply.
func (m *MockProvider) EnqueueReply(text string) *MockProvider {
	return m.EnqueueMessage(core.NewAssistantMessage(text))
}

// EnqueueToolCalls scripts an assistant reply requesting the given tool
// calls in order.
func (m *MockProvider) EnqueueToolCalls(calls ...core.ToolCall) *MockProvider {
	msg := core.NewAssistantMessage(nil)
	msg.ToolCalls = calls
	return m.EnqueueMessage(msg)
}

// EnqueueMessage scripts an arbitrary assistant message.
func (m *MockProvider) EnqueueMessage(msg core.Message) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, msg)
	m.errs = append(m.errs, nil)
	return m
}

// EnqueueError scripts a failing request.
func (m *MockProvider) EnqueueError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, core.Message{})
	m.errs = append(m.errs, err)
	return m
}

// Requests returns the message sequences received so far, in call order.
func (m *MockProvider) Requests() [][]core.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]core.Message, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastTools returns the tool definitions from the most recent request.
func (m *MockProvider) LastTools() []ToolDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTools
}

// Send implements Provider.
func (m *MockProvider) Send(ctx context.Context, messages []core.Message, tools []ToolDefinition) (core.Message, error) {
	if err := ctx.Err(); err != nil {
		return core.Message{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, core.CloneMessages(messages))
	m.lastTools = tools

	if len(m.script) == 0 {
		prompt := ""
		if len(messages) > 0 {
			prompt = messages[len(messages)-1].Text()
		}
		return core.NewAssistantMessage("mock response to: " + prompt), nil
	}

	msg, err := m.script[0], m.errs[0]
	m.script = m.script[1:]
	m.errs = m.errs[1:]
	if err != nil {
		return core.Message{}, err
	}
	return msg, nil
}

// Stream implements Provider by replaying the scripted reply as single-rune
// chunks before returning it whole.
func (m *MockProvider) Stream(ctx context.Context, messages []core.Message, tools []ToolDefinition, onChunk StreamFunc) (core.Message, error) {
	msg, err := m.Send(ctx, messages, tools)
	if err != nil {
		return core.Message{}, err
	}
	if onChunk != nil {
		for _, r := range msg.Text() {
			if err := ctx.Err(); err != nil {
				return core.Message{}, err
			}
			onChunk(Chunk{Content: string(r)})
		}
	}
	return msg, nil
}

// FormatTool implements Provider; the mock's native schema is the normalized
// definition itself.
func (m *MockProvider) FormatTool(def ToolDefinition) any { return def }

// Info implements Provider.
func (m *MockProvider) Info() Info {
	return Info{Name: "mock", Provider: "mock", SupportsTools: true}
}
