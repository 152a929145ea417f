package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func TestFunctionToolInvoke(t *testing.T) {
	sum := NewFunctionTool("calculate_sum", "Add two numbers", sumSchema(),
		func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		})

	assert.Equal(t, "calculate_sum", sum.Name())
	assert.Equal(t, "Add two numbers", sum.Description())

	result, err := sum.Invoke(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionToolValidationError(t *testing.T) {
	sum := NewFunctionTool("calculate_sum", "Add two numbers", sumSchema(),
		func(context.Context, map[string]any) (any, error) {
			t.Fatal("fn must not run on invalid args")
			return nil, nil
		})

	_, err := sum.Invoke(context.Background(), map[string]any{"a": 2.0})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "calculate_sum", toolErr.Tool)

	_, err = sum.Invoke(context.Background(), map[string]any{"a": 2.0, "b": "three"})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionToolExecutionError(t *testing.T) {
	failing := NewFunctionTool("flaky", "Always fails", map[string]any{"type": "object", "properties": map[string]any{}},
		func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		})

	_, err := failing.Invoke(context.Background(), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "backend unavailable")
}

func TestFunctionToolCustomToolErrorPassesThrough(t *testing.T) {
	custom := NewToolError("gate", "quota exceeded", "RATE_LIMITED")
	limited := NewFunctionTool("gate", "Rate limited", map[string]any{"type": "object", "properties": map[string]any{}},
		func(context.Context, map[string]any) (any, error) {
			return nil, custom
		})

	_, err := limited.Invoke(context.Background(), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "RATE_LIMITED", toolErr.Code)
	assert.Same(t, custom, toolErr)
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type SumArgs struct {
		A    float64 `json:"a" description:"First addend"`
		B    float64 `json:"b" description:"Second addend"`
		Note string  `json:"note,omitempty"`
	}

	sum := NewFunctionToolFromStruct("calculate_sum", "Add two numbers", SumArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		})

	schema := sum.Parameters()
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "note")
	assert.ElementsMatch(t, []string{"a", "b"}, schema["required"])

	result, err := sum.Invoke(context.Background(), map[string]any{"a": 1.0, "b": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 3.0, result)
}

func TestToolErrorMessage(t *testing.T) {
	err := NewToolError("search", "index offline", "EXECUTION_ERROR")
	assert.Contains(t, err.Error(), "search")
	assert.Contains(t, err.Error(), "index offline")
}
