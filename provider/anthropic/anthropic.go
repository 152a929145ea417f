// Package anthropic adapts the Anthropic Messages API to the generic
// provider.Provider contract.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/provider"
)

// Options configures the Anthropic adapter (model id, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Client wraps the Anthropic Messages API behind provider.Provider.
type Client struct {
	client *anthropic.Client
	opts   Options
}

// New creates an Anthropic provider using the official client.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Client{
		client: &client,
		opts:   opts,
	}
}

// NewFromClient creates an Anthropic provider from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		client: client,
		opts:   opts,
	}
}

// Send performs a non-streaming completion with tool calling.
func (c *Client) Send(ctx context.Context, messages []core.Message, tools []provider.ToolDefinition) (core.Message, error) {
	params := anthropic.MessageNewParams{
		Model:       c.opts.Model,
		Messages:    buildMessages(messages),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
	}

	if systemBlocks := extractSystem(messages); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}

	if len(tools) > 0 {
		anthropicTools := make([]anthropic.ToolUnionParam, len(tools))
		for i, def := range tools {
			anthropicTools[i] = buildTool(def)
		}
		params.Tools = anthropicTools
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return core.Message{}, classify(err)
	}

	msg := core.NewAssistantMessage(nil)
	msg.Model = string(resp.Model)
	msg.InputTokens = int(resp.Usage.InputTokens)
	msg.OutputTokens = int(resp.Usage.OutputTokens)

	var text string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()

			args := map[string]any{}
			if toolBlock.Input != nil {
				if raw, err := json.Marshal(toolBlock.Input); err == nil {
					_ = json.Unmarshal(raw, &args)
				}
			}

			msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}
	if text != "" {
		msg.Content = text
	}

	return msg, nil
}

// Stream is not supported by this adapter yet; callers needing incremental
// output should use the OpenAI adapter or wrap Send themselves.
func (c *Client) Stream(ctx context.Context, messages []core.Message, tools []provider.ToolDefinition, onChunk provider.StreamFunc) (core.Message, error) {
	return core.Message{}, &provider.Error{
		Provider: "anthropic",
		Message:  "streaming not supported",
	}
}

// FormatTool renders a tool definition in Anthropic's tool format.
func (c *Client) FormatTool(def provider.ToolDefinition) any {
	return buildTool(def)
}

// Info returns metadata describing this adapter.
func (c *Client) Info() provider.Info {
	return provider.Info{
		Name:          string(c.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}

// buildMessages converts transcript messages to Anthropic message params.
// Tool-role messages become tool_result blocks inside a user message placed
// right after the assistant turn that requested them.
func buildMessages(messages []core.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam

	var pendingResults []anthropic.ContentBlockParamUnion
	flushResults := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			continue
		case core.RoleTool:
			pendingResults = append(pendingResults,
				anthropic.NewToolResultBlock(m.ToolCallID, m.Text(), false))
		case core.RoleAssistant:
			flushResults()

			var blocks []anthropic.ContentBlockParamUnion
			if text := m.Text(); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, call := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, call.Arguments, call.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flushResults()
			if text := m.Text(); text != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
			}
		}
	}
	flushResults()

	return out
}

// extractSystem collects system messages into system prompt blocks.
func extractSystem(messages []core.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, m := range messages {
		if m.Role == core.RoleSystem && m.Text() != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: m.Text()})
		}
	}
	return blocks
}

// buildTool converts a generic tool definition to Anthropic's tool format.
func buildTool(def provider.ToolDefinition) anthropic.ToolUnionParam {
	inputSchema := anthropic.ToolInputSchemaParam{
		Type: constant.Object("object"),
	}

	if def.Parameters != nil {
		if properties, ok := def.Parameters["properties"]; ok {
			inputSchema.Properties = properties
		}
		if required, ok := def.Parameters["required"]; ok {
			switch req := required.(type) {
			case []string:
				inputSchema.Required = req
			case []any:
				for _, r := range req {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}
	}

	return anthropic.ToolUnionParamOfTool(inputSchema, def.Name)
}

// classify wraps an SDK error as a provider.Error with retryability derived
// from the HTTP status.
func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &provider.Error{
			Provider:   "anthropic",
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
			Retryable:  provider.RetryableStatus(apiErr.StatusCode),
			Err:        err,
		}
	}

	return &provider.Error{
		Provider: "anthropic",
		Message:  fmt.Sprintf("anthropic api error: %v", err),
		Err:      err,
	}
}
