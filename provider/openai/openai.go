// Package openai adapts the OpenAI Chat Completions API (including
// streaming and function/tool calling) to the generic provider.Provider
// contract.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/provider"
	"github.com/openai/openai-go"
)

// aggCall aggregates partial tool call streaming deltas (id, name,
// arguments), allowing reconstruction of complete tool calls when the finish
// reason arrives.
type aggCall struct{ id, name, args string }

// Options configures the OpenAI adapter. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Client wraps the OpenAI Chat Completions API behind provider.Provider.
type Client struct {
	client *openai.Client
	opts   Options
}

// New creates an OpenAI provider using the official client.
func New(optFns ...func(o *Options)) *Client {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an OpenAI provider from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{client: client, opts: opts}
}

// Send performs a non-streaming completion with tool calling.
func (c *Client) Send(ctx context.Context, messages []core.Message, tools []provider.ToolDefinition) (core.Message, error) {
	params := c.buildParams(messages, tools)

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return core.Message{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return core.Message{}, &provider.Error{Provider: "openai", Message: "no choices returned"}
	}

	choice := resp.Choices[0]

	msg := core.NewAssistantMessage(nil)
	if choice.Message.Content != "" {
		msg.Content = choice.Message.Content
	}
	msg.Model = resp.Model
	msg.InputTokens = int(resp.Usage.PromptTokens)
	msg.OutputTokens = int(resp.Usage.CompletionTokens)

	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, toolCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}

	return msg, nil
}

// Stream performs a streaming completion, forwarding textual deltas through
// onChunk and returning the reconstructed final message.
func (c *Client) Stream(ctx context.Context, messages []core.Message, tools []provider.ToolDefinition, onChunk provider.StreamFunc) (core.Message, error) {
	params := c.buildParams(messages, tools)

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)

	var (
		text  string
		model string
		order []int64
		agg   = map[int64]*aggCall{}
	)

	for stream.Next() {
		ck := stream.Current()
		if ck.Model != "" {
			model = ck.Model
		}
		for _, choice := range ck.Choices {
			if choice.Delta.Content != "" {
				text += choice.Delta.Content
				if onChunk != nil {
					onChunk(provider.Chunk{Content: choice.Delta.Content})
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				ac, ok := agg[tc.Index]
				if !ok {
					ac = &aggCall{}
					agg[tc.Index] = ac
					order = append(order, tc.Index)
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				ac.args += tc.Function.Arguments
			}
		}
	}
	if err := stream.Err(); err != nil {
		return core.Message{}, classify(err)
	}

	msg := core.NewAssistantMessage(nil)
	if text != "" {
		msg.Content = text
	}
	msg.Model = model

	for _, idx := range order {
		ac := agg[idx]
		msg.ToolCalls = append(msg.ToolCalls, toolCall(ac.id, ac.name, ac.args))
	}

	return msg, nil
}

// FormatTool renders a tool definition in OpenAI's function-tool format.
func (c *Client) FormatTool(def provider.ToolDefinition) any {
	return buildTool(def)
}

// Info returns metadata describing this adapter.
func (c *Client) Info() provider.Info {
	return provider.Info{
		Name:          c.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}

// buildParams assembles the request parameters from the transcript and the
// available tool definitions.
func (c *Client) buildParams(messages []core.Message, tools []provider.ToolDefinition) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(messages),
		Model:               c.opts.Model,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
	}

	if len(tools) > 0 {
		openaiTools := make([]openai.ChatCompletionToolParam, len(tools))
		for i, def := range tools {
			openaiTools[i] = buildTool(def)
		}
		params.Tools = openaiTools
	}

	return params
}

// buildMessages converts transcript messages to OpenAI chat messages.
func buildMessages(messages []core.Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion

	for _, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text()))
		case core.RoleUser:
			out = append(out, openai.UserMessage(m.Text()))
		case core.RoleTool:
			out = append(out, openai.ToolMessage(m.Text(), m.ToolCallID))
		case core.RoleAssistant:
			if !m.HasToolCalls() {
				out = append(out, openai.AssistantMessage(m.Text()))
				continue
			}

			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, call := range m.ToolCalls {
				args := "{}"
				if raw, err := json.Marshal(call.Arguments); err == nil {
					args = string(raw)
				}
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   call.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: args,
					},
				}
			}

			assistant := &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: toolCalls,
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		default:
			if text := m.Text(); text != "" {
				out = append(out, openai.UserMessage(text))
			}
		}
	}

	return out
}

// buildTool converts a generic tool definition to OpenAI's function format.
func buildTool(def provider.ToolDefinition) openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: openai.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openai.String(def.Description),
			Parameters:  def.Parameters,
		},
	}
}

// toolCall parses an arguments JSON blob into a core.ToolCall.
func toolCall(id, name, args string) core.ToolCall {
	arguments := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &arguments); err != nil {
			arguments = map[string]any{"_raw": args}
		}
	}
	return core.ToolCall{ID: id, Name: name, Arguments: arguments}
}

// classify wraps an SDK error as a provider.Error with retryability derived
// from the HTTP status.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &provider.Error{
			Provider:   "openai",
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
			Retryable:  provider.RetryableStatus(apiErr.StatusCode),
			Err:        err,
		}
	}

	return &provider.Error{
		Provider: "openai",
		Message:  fmt.Sprintf("openai api error: %v", err),
		Err:      err,
	}
}
