package testutil

import (
	"context"
	"time"
)

// StubTool is a scripted tool implementation for tests. Fn receives the call
// arguments; when Delay is set the tool sleeps first, returning early with
// ctx.Err() if cancelled.
type StubTool struct {
	ToolName string
	Desc     string
	Params   map[string]any
	Delay    time.Duration
	Fn       func(ctx context.Context, args map[string]any) (any, error)
}

// Name implements tool.Tool.
func (t *StubTool) Name() string { return t.ToolName }

// Description implements tool.Tool.
func (t *StubTool) Description() string {
	if t.Desc == "" {
		return "stub tool for tests"
	}
	return t.Desc
}

// Parameters implements tool.Tool.
func (t *StubTool) Parameters() map[string]any {
	if t.Params == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return t.Params
}

// Invoke implements tool.Tool.
func (t *StubTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if t.Delay > 0 {
		select {
		case <-time.After(t.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if t.Fn == nil {
		return "ok", nil
	}
	return t.Fn(ctx, args)
}

// Echo returns a StubTool named name that echoes its arguments back.
func Echo(name string) *StubTool {
	return &StubTool{
		ToolName: name,
		Fn: func(_ context.Context, args map[string]any) (any, error) {
			return args, nil
		},
	}
}
