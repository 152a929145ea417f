// Package chat implements the conversation loop: it drives a provider
// request, executes any requested tool calls inside a single ledger
// transaction, and recurses until the model produces a final answer or a
// tool halts the turn. The Chat type owns one ledger, one event bus, one
// hook set, and one tool-execution coordinator, and exposes fluent
// configuration in front of all of them.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/chatloop/bus"
	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/executor"
	"github.com/hupe1980/chatloop/hook"
	"github.com/hupe1980/chatloop/ledger"
	"github.com/hupe1980/chatloop/logging"
	"github.com/hupe1980/chatloop/provider"
	"github.com/hupe1980/chatloop/tool"
)

// Options configures a Chat.
type Options struct {
	// Instructions seeds the transcript with a system message.
	Instructions string
	// Strategy names the tool-execution concurrency strategy.
	Strategy string
	// MaxConcurrency bounds parallel tool execution.
	MaxConcurrency int
	// Registry resolves strategy names. Defaults to executor.DefaultRegistry.
	Registry *executor.Registry
	// Logger receives chat and executor telemetry. Defaults to slog.
	Logger logging.Logger
}

// Chat is a stateful conversation bound to one provider.
type Chat struct {
	provider    provider.Provider
	ledger      *ledger.Ledger
	bus         *bus.Bus
	hooks       *hook.Hooks
	coordinator *executor.Coordinator
	logger      logging.Logger

	tools     map[string]tool.Tool
	toolOrder []tool.Tool

	schema map[string]any
}

// New creates a Chat backed by the given provider.
func New(p provider.Provider, optFns ...func(o *Options)) *Chat {
	opts := Options{
		Strategy: executor.StrategySequential,
		Registry: executor.DefaultRegistry,
		Logger:   logging.NewDefaultSlogLogger(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	led := ledger.New()
	if opts.Instructions != "" {
		led.Append(core.NewSystemMessage(opts.Instructions))
	}

	b := bus.New(func(o *bus.Options) {
		o.Logger = opts.Logger
	})

	hooks := hook.New()

	coord := executor.New(led, b, hooks, func(o *executor.Options) {
		o.Strategy = opts.Strategy
		o.MaxConcurrency = opts.MaxConcurrency
		o.Registry = opts.Registry
		o.Logger = opts.Logger
	})

	return &Chat{
		provider:    p,
		ledger:      led,
		bus:         b,
		hooks:       hooks,
		coordinator: coord,
		logger:      opts.Logger,
		tools:       make(map[string]tool.Tool),
	}
}

// WithTool registers a tool the model may call. Registering a tool with a
// name already in use replaces it.
func (c *Chat) WithTool(t tool.Tool) *Chat {
	if _, ok := c.tools[t.Name()]; !ok {
		c.toolOrder = append(c.toolOrder, t)
	} else {
		for i, existing := range c.toolOrder {
			if existing.Name() == t.Name() {
				c.toolOrder[i] = t
				break
			}
		}
	}
	c.tools[t.Name()] = t
	return c
}

// WithTools registers multiple tools.
func (c *Chat) WithTools(tools ...tool.Tool) *Chat {
	for _, t := range tools {
		c.WithTool(t)
	}
	return c
}

// WithInstructions replaces the system instructions. When replace is true,
// existing system messages are removed and the conversation history is left
// untouched; when false, a second system message is appended alongside any
// existing one.
func (c *Chat) WithInstructions(text string, replace bool) *Chat {
	if replace {
		c.ledger.DropRole(core.RoleSystem)
	}
	c.ledger.Append(core.NewSystemMessage(text))
	return c
}

// WithStrategy switches the tool-execution strategy for subsequent turns.
func (c *Chat) WithStrategy(name string) *Chat {
	c.coordinator.SetStrategy(name)
	return c
}

// WithMaxConcurrency bounds parallel tool execution for subsequent turns.
func (c *Chat) WithMaxConcurrency(n int) *Chat {
	c.coordinator.SetMaxConcurrency(n)
	return c
}

// WithResponseSchema makes the chat request a JSON response matching the
// given schema and decode the final assistant message's textual content into
// a structured value. The decode is the single content-replacement exception
// to the transcript's append-only discipline.
func (c *Chat) WithResponseSchema(schema map[string]any) *Chat {
	c.schema = schema
	return c
}

// OnNewMessage subscribes fn to turn-started events.
func (c *Chat) OnNewMessage(fn func()) *Chat {
	_, _ = c.bus.Subscribe(bus.NewMessage, func(bus.Event) { fn() })
	return c
}

// OnEndMessage subscribes fn to turn-ended events.
func (c *Chat) OnEndMessage(fn func(msg *core.Message)) *Chat {
	_, _ = c.bus.Subscribe(bus.EndMessage, func(ev bus.Event) { fn(ev.Message) })
	return c
}

// OnToolCall subscribes fn to tool-invoked events.
func (c *Chat) OnToolCall(fn func(call *core.ToolCall)) *Chat {
	_, _ = c.bus.Subscribe(bus.ToolCall, func(ev bus.Event) { fn(ev.Call) })
	return c
}

// OnToolResult subscribes fn to tool-result events.
func (c *Chat) OnToolResult(fn func(res *core.ToolResult)) *Chat {
	_, _ = c.bus.Subscribe(bus.ToolResult, func(ev bus.Event) { fn(ev.Result) })
	return c
}

// AroundToolExecution installs the tool-execution hook, replacing any
// previously installed one. Passing nil restores the default behavior.
func (c *Chat) AroundToolExecution(fn hook.ToolExecutionFunc) *Chat {
	c.hooks.SetToolExecution(fn)
	return c
}

// AroundRequest installs the request hook, replacing any previously
// installed one. Passing nil restores the default behavior.
func (c *Chat) AroundRequest(fn hook.RequestFunc) *Chat {
	c.hooks.SetRequest(fn)
	return c
}

// Bus exposes the event bus for direct subscription management.
func (c *Chat) Bus() *bus.Bus { return c.bus }

// Ledger exposes the message ledger.
func (c *Chat) Ledger() *ledger.Ledger { return c.ledger }

// Messages returns a deep copy of the current transcript.
func (c *Chat) Messages() []core.Message { return c.ledger.Snapshot() }

// Reset clears the transcript, optionally preserving system messages.
func (c *Chat) Reset(preserveSystem bool) { c.ledger.Reset(preserveSystem) }

// Ask appends a user message and runs the conversation loop until the model
// produces a final answer.
func (c *Chat) Ask(ctx context.Context, content string) (*core.Message, error) {
	c.ledger.Append(core.NewUserMessage(content))
	return c.complete(ctx, nil)
}

// AskStreaming behaves like Ask but streams the assistant's textual content
// through onChunk as it arrives.
func (c *Chat) AskStreaming(ctx context.Context, content string, onChunk provider.StreamFunc) (*core.Message, error) {
	c.ledger.Append(core.NewUserMessage(content))
	return c.complete(ctx, onChunk)
}

// Continue resumes the loop on the current transcript without adding a user
// message, e.g. after a caller-level Restore.
func (c *Chat) Continue(ctx context.Context) (*core.Message, error) {
	return c.complete(ctx, nil)
}

// complete drives one or more request/tool-execution rounds until a response
// carries no tool calls or a tool halts the turn.
func (c *Chat) complete(ctx context.Context, onChunk provider.StreamFunc) (*core.Message, error) {
	defs := provider.Definitions(c.toolOrder)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.bus.Emit(bus.Event{Kind: bus.NewMessage})

		start := time.Now()
		response, err := c.request(ctx, defs, onChunk)
		if err != nil {
			return nil, fmt.Errorf("chat: request failed: %w", err)
		}

		c.logger.Debug("chat.request.completed",
			"model", response.Model,
			"tool_calls", len(response.ToolCalls),
			"duration_ms", time.Since(start).Milliseconds(),
		)

		if !response.HasToolCalls() {
			return c.finalize(response)
		}

		var halt *core.Halt

		err = c.ledger.Transaction(func() error {
			msg := c.ledger.Append(response)
			c.bus.Emit(bus.Event{Kind: bus.EndMessage, Message: &msg})

			h, execErr := c.coordinator.Execute(ctx, response.ToolCalls, c.tools)
			if execErr != nil {
				return execErr
			}
			halt = h
			return nil
		})
		if err != nil {
			return nil, err
		}

		if halt != nil {
			c.logger.Debug("chat.turn.halted")
			final := c.ledger.Append(core.NewAssistantMessage(halt.Content))
			c.bus.Emit(bus.Event{Kind: bus.EndMessage, Message: &final})
			return &final, nil
		}
	}
}

// request sends the current transcript through the request hook to the
// provider.
func (c *Chat) request(ctx context.Context, defs []provider.ToolDefinition, onChunk provider.StreamFunc) (core.Message, error) {
	snapshot := c.ledger.Snapshot()

	proceed := func(ctx context.Context, msgs []core.Message) (core.Message, error) {
		outbound := c.outbound(msgs)
		if onChunk != nil {
			return c.provider.Stream(ctx, outbound, defs, onChunk)
		}
		return c.provider.Send(ctx, outbound, defs)
	}

	return c.hooks.Request(ctx, snapshot, proceed)
}

// outbound augments the outgoing message set with the response-schema
// instruction when one is configured. The transcript itself is untouched.
func (c *Chat) outbound(msgs []core.Message) []core.Message {
	if c.schema == nil {
		return msgs
	}

	raw, err := json.Marshal(c.schema)
	if err != nil {
		c.logger.Warn("chat.schema.marshal_failed", "error", err.Error())
		return msgs
	}

	instruction := core.NewSystemMessage(
		"Respond only with a JSON object matching this JSON schema:\n" + string(raw),
	)

	out := make([]core.Message, 0, len(msgs)+1)
	out = append(out, instruction)
	out = append(out, msgs...)
	return out
}

// finalize appends the model's final message, applies structured-output
// decoding when a schema is configured, and emits turn-ended exactly once.
func (c *Chat) finalize(response core.Message) (*core.Message, error) {
	var structured any
	if c.schema != nil {
		if err := json.Unmarshal([]byte(response.Text()), &structured); err != nil {
			return nil, fmt.Errorf("chat: response is not valid JSON for the configured schema: %w", err)
		}
	}

	final := c.ledger.Append(response)

	if c.schema != nil && c.ledger.ReplaceContent(final.ID, structured) {
		final.Content = structured
	}

	c.bus.Emit(bus.Event{Kind: bus.EndMessage, Message: &final})
	return &final, nil
}
