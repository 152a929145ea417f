package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/internal/testutil"
	"github.com/hupe1980/chatloop/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitions(t *testing.T) {
	defs := Definitions([]tool.Tool{testutil.Echo("a"), testutil.Echo("b")})

	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)
	assert.Equal(t, "b", defs[1].Name)
}

func TestMockProviderScript(t *testing.T) {
	m := NewMockProvider()
	m.EnqueueToolCalls(core.ToolCall{ID: "tc-1", Name: "search", Arguments: map[string]any{"q": "go"}})
	m.EnqueueReply("done")

	first, err := m.Send(context.Background(), []core.Message{core.NewUserMessage("find go")}, nil)
	require.NoError(t, err)
	require.True(t, first.HasToolCalls())
	assert.Equal(t, "search", first.ToolCalls[0].Name)

	second, err := m.Send(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", second.Text())

	// Script exhausted: echo fallback.
	third, err := m.Send(context.Background(), []core.Message{core.NewUserMessage("hello")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock response to: hello", third.Text())
}

func TestMockProviderError(t *testing.T) {
	m := NewMockProvider()
	m.EnqueueError(&Error{Provider: "mock", StatusCode: 429, Message: "rate limited", Retryable: true})
	m.EnqueueReply("recovered")

	_, err := m.Send(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	reply, err := m.Send(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply.Text())
}

func TestMockProviderRecordsRequests(t *testing.T) {
	m := NewMockProvider()

	_, err := m.Send(context.Background(), []core.Message{core.NewUserMessage("one")}, nil)
	require.NoError(t, err)
	_, err = m.Send(context.Background(), []core.Message{
		core.NewUserMessage("one"),
		core.NewAssistantMessage("reply"),
	}, nil)
	require.NoError(t, err)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0], 1)
	assert.Len(t, reqs[1], 2)
}

func TestMockProviderStreamChunks(t *testing.T) {
	m := NewMockProvider()
	m.EnqueueReply("hi!")

	var chunks []string
	reply, err := m.Stream(context.Background(), nil, nil, func(ck Chunk) {
		chunks = append(chunks, ck.Content)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"h", "i", "!"}, chunks)
	assert.Equal(t, "hi!", reply.Text())
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("request failed: %w", &Error{
		Provider:  "openai",
		Message:   "timeout",
		Retryable: true,
	})
	assert.True(t, IsRetryable(wrapped))

	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(&Error{Provider: "openai", Message: "bad request"}))
	assert.False(t, IsRetryable(nil))
}

func TestRetryableStatus(t *testing.T) {
	for _, status := range []int{408, 429, 500, 502, 503} {
		assert.True(t, RetryableStatus(status), "status %d", status)
	}
	for _, status := range []int{200, 400, 401, 403, 404} {
		assert.False(t, RetryableStatus(status), "status %d", status)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("socket closed")
	err := &Error{Provider: "anthropic", Message: "send failed", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "anthropic")
}

func TestDefinitionFromTool(t *testing.T) {
	def := Definition(testutil.Echo("echo"))
	assert.Equal(t, "echo", def.Name)
	assert.NotNil(t, def.Parameters)
}
