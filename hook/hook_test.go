package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/internal/testutil"
	"github.com/hupe1980/chatloop/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolExecutionDefaultProceeds(t *testing.T) {
	h := New()

	proceeded := false
	value, err := h.ToolExecution(context.Background(), core.ToolCall{Name: "echo"}, testutil.Echo("echo"), func(context.Context) (any, error) {
		proceeded = true
		return "result", nil
	})

	require.NoError(t, err)
	assert.True(t, proceeded)
	assert.Equal(t, "result", value)
}

func TestToolExecutionHookShortCircuits(t *testing.T) {
	h := New()

	h.SetToolExecution(func(ctx context.Context, call core.ToolCall, _ tool.Tool, proceed ProceedTool) (any, error) {
		if call.Name == "cached" {
			return "from cache", nil
		}
		return proceed(ctx)
	})

	value, err := h.ToolExecution(context.Background(), core.ToolCall{Name: "cached"}, testutil.Echo("cached"), func(context.Context) (any, error) {
		t.Fatal("proceed must not run for cached calls")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from cache", value)

	value, err = h.ToolExecution(context.Background(), core.ToolCall{Name: "other"}, testutil.Echo("other"), func(context.Context) (any, error) {
		return "live", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "live", value)
}

func TestToolExecutionHookWrapsResult(t *testing.T) {
	h := New()

	h.SetToolExecution(func(ctx context.Context, _ core.ToolCall, _ tool.Tool, proceed ProceedTool) (any, error) {
		value, err := proceed(ctx)
		if err != nil {
			return nil, err
		}
		return "wrapped: " + value.(string), nil
	})

	value, err := h.ToolExecution(context.Background(), core.ToolCall{}, testutil.Echo("x"), func(context.Context) (any, error) {
		return "inner", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "wrapped: inner", value)
}

func TestToolExecutionHookReplaceSemantics(t *testing.T) {
	h := New()

	h.SetToolExecution(func(context.Context, core.ToolCall, tool.Tool, ProceedTool) (any, error) {
		return "first", nil
	})
	h.SetToolExecution(func(context.Context, core.ToolCall, tool.Tool, ProceedTool) (any, error) {
		return "second", nil
	})

	value, err := h.ToolExecution(context.Background(), core.ToolCall{}, testutil.Echo("x"), func(context.Context) (any, error) {
		return "proceed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "second", value, "installing a hook replaces the previous one")

	h.SetToolExecution(nil)
	value, err = h.ToolExecution(context.Background(), core.ToolCall{}, testutil.Echo("x"), func(context.Context) (any, error) {
		return "proceed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "proceed", value, "nil restores the default")
}

func TestRequestDefaultProceeds(t *testing.T) {
	h := New()

	msgs := []core.Message{core.NewUserMessage("hi")}
	reply, err := h.Request(context.Background(), msgs, func(_ context.Context, in []core.Message) (core.Message, error) {
		require.Len(t, in, 1)
		return core.NewAssistantMessage("hello"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", reply.Text())
}

func TestRequestHookSubstitutesMessages(t *testing.T) {
	h := New()

	h.SetRequest(func(ctx context.Context, messages []core.Message, proceed ProceedRequest) (core.Message, error) {
		// Truncate the context window to the last message only.
		return proceed(ctx, messages[len(messages)-1:])
	})

	msgs := []core.Message{
		core.NewUserMessage("old"),
		core.NewUserMessage("new"),
	}

	var seen []core.Message
	_, err := h.Request(context.Background(), msgs, func(_ context.Context, in []core.Message) (core.Message, error) {
		seen = in
		return core.NewAssistantMessage("ok"), nil
	})

	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "new", seen[0].Text())
}

func TestRequestHookRetries(t *testing.T) {
	h := New()

	transient := errors.New("transient")
	h.SetRequest(func(ctx context.Context, messages []core.Message, proceed ProceedRequest) (core.Message, error) {
		reply, err := proceed(ctx, messages)
		if err != nil {
			return proceed(ctx, messages)
		}
		return reply, err
	})

	attempts := 0
	reply, err := h.Request(context.Background(), nil, func(context.Context, []core.Message) (core.Message, error) {
		attempts++
		if attempts == 1 {
			return core.Message{}, transient
		}
		return core.NewAssistantMessage("recovered"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "recovered", reply.Text())
}

func TestRequestHookErrorPropagates(t *testing.T) {
	h := New()

	boom := errors.New("provider exploded")
	h.SetRequest(func(context.Context, []core.Message, ProceedRequest) (core.Message, error) {
		return core.Message{}, boom
	})

	_, err := h.Request(context.Background(), nil, func(context.Context, []core.Message) (core.Message, error) {
		t.Fatal("proceed must not run")
		return core.Message{}, nil
	})

	require.ErrorIs(t, err, boom)
}
