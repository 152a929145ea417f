package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/chatloop/bus"
	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/hook"
	"github.com/hupe1980/chatloop/ledger"
	"github.com/hupe1980/chatloop/logging"
	"github.com/hupe1980/chatloop/tool"
)

// Options configures a Coordinator.
type Options struct {
	// Strategy names the concurrency strategy for multi-call batches.
	// Empty or StrategySequential means one-at-a-time execution.
	Strategy string
	// MaxConcurrency bounds parallel tool execution. <= 0 means one worker
	// per call.
	MaxConcurrency int
	// Registry resolves strategy names. Defaults to DefaultRegistry.
	Registry *Registry
	// Logger receives execution telemetry. Defaults to slog.
	Logger logging.Logger
}

// Coordinator executes tool-call batches against a ledger, a bus, and a
// hook set. Progress events (tool invoked, tool result) stream live as each
// call completes; ledger commits happen in request order once the whole
// batch is done, so the transcript stays deterministic no matter which call
// finished first.
type Coordinator struct {
	ledger         *ledger.Ledger
	bus            *bus.Bus
	hooks          *hook.Hooks
	registry       *Registry
	logger         logging.Logger
	strategy       string
	maxConcurrency int
}

// New creates a Coordinator bound to the given ledger, bus, and hooks.
func New(led *ledger.Ledger, b *bus.Bus, hooks *hook.Hooks, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		Strategy: StrategySequential,
		Registry: DefaultRegistry,
		Logger:   logging.NewDefaultSlogLogger(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Coordinator{
		ledger:         led,
		bus:            b,
		hooks:          hooks,
		registry:       opts.Registry,
		logger:         opts.Logger,
		strategy:       opts.Strategy,
		maxConcurrency: opts.MaxConcurrency,
	}
}

// SetStrategy switches the concurrency strategy for subsequent batches.
func (c *Coordinator) SetStrategy(name string) { c.strategy = name }

// SetMaxConcurrency adjusts the parallelism bound for subsequent batches.
func (c *Coordinator) SetMaxConcurrency(n int) { c.maxConcurrency = n }

// Strategy returns the configured strategy name.
func (c *Coordinator) Strategy() string { return c.strategy }

// Execute runs a batch of tool calls and commits one tool message per call
// to the ledger in request order. The returned halt is the payload of the
// first halting call in request order, or nil when no call halted. A
// non-nil error means the batch was aborted before commit (cancellation or
// an unknown strategy) and the ledger was left untouched by Execute itself;
// callers running inside a ledger transaction roll back the enclosing turn.
func (c *Coordinator) Execute(ctx context.Context, calls []core.ToolCall, tools map[string]tool.Tool) (*core.Halt, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	if c.strategy == "" || c.strategy == StrategySequential {
		return c.executeSequential(ctx, calls, tools)
	}

	strat, ok := c.registry.Lookup(c.strategy)
	if !ok {
		return nil, &UnknownStrategyError{Name: c.strategy}
	}

	return c.executeConcurrent(ctx, strat, calls, tools)
}

// executeSequential runs calls one at a time in request order, committing
// each result to the ledger as it lands. A halting call does not skip the
// calls after it; the first halt in request order wins.
func (c *Coordinator) executeSequential(ctx context.Context, calls []core.ToolCall, tools map[string]tool.Tool) (*core.Halt, error) {
	var firstHalt *core.Halt

	for i := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.bus.Emit(bus.Event{Kind: bus.NewMessage})

		res := c.runCall(ctx, calls[i], tools)

		msg := res.Message()
		c.ledger.Append(msg)
		c.bus.Emit(bus.Event{Kind: bus.EndMessage, Message: &msg})

		if res.Halt != nil && firstHalt == nil {
			firstHalt = res.Halt
		}
	}

	return firstHalt, nil
}

// executeConcurrent hands the batch to a strategy, then commits all results
// to the ledger in request order in a single batch append.
func (c *Coordinator) executeConcurrent(ctx context.Context, strat Strategy, calls []core.ToolCall, tools map[string]tool.Tool) (*core.Halt, error) {
	start := time.Now()

	run := func(ctx context.Context, call core.ToolCall) core.ToolResult {
		return c.runCall(ctx, call, tools)
	}

	results, err := strat(ctx, calls, c.maxConcurrency, run)
	if err != nil {
		c.logger.Warn("executor.batch.aborted", "strategy", c.strategy, "calls", len(calls), "error", err.Error())
		return nil, err
	}

	msgs := make([]core.Message, 0, len(calls))
	for _, call := range calls {
		res, ok := results[call.ID]
		if !ok {
			return nil, fmt.Errorf("executor: strategy %q returned no result for call %s", c.strategy, call.ID)
		}
		msgs = append(msgs, res.Message())
	}

	c.ledger.AppendBatch(msgs)
	for i := range msgs {
		c.bus.Emit(bus.Event{Kind: bus.EndMessage, Message: &msgs[i]})
	}

	c.logger.Debug("executor.batch.executed",
		"strategy", c.strategy,
		"calls", len(calls),
		"max_concurrency", c.maxConcurrency,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	for _, call := range calls {
		if res := results[call.ID]; res.Halt != nil {
			halt := *res.Halt
			return &halt, nil
		}
	}

	return nil, nil
}

// runCall executes one call end to end: tool-invoked event, hook-wrapped
// invocation, error conversion, tool-result event. Invocation failures
// (returned errors and recovered panics) become error-shaped results that
// the model sees on the next request; they never abort sibling calls.
func (c *Coordinator) runCall(ctx context.Context, call core.ToolCall, tools map[string]tool.Tool) core.ToolResult {
	c.bus.Emit(bus.Event{Kind: bus.ToolCall, Call: &call})

	start := time.Now()
	value, err := c.invoke(ctx, call, tools)

	res := core.ToolResult{ToolCallID: call.ID}

	switch {
	case err != nil:
		res.Content = fmt.Sprintf("Error executing tool %s: %s", call.Name, err.Error())
		res.IsError = true

		c.logger.Warn("executor.call.failed",
			"tool", call.Name,
			"tool_call_id", call.ID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
	default:
		if halt, ok := core.AsHalt(value); ok {
			res.Halt = &halt
		} else {
			res.Content = value
		}

		c.logger.Debug("executor.call.executed",
			"tool", call.Name,
			"tool_call_id", call.ID,
			"duration_ms", time.Since(start).Milliseconds(),
			"halted", res.Halt != nil,
		)
	}

	c.bus.Emit(bus.Event{Kind: bus.ToolResult, Result: &res})

	return res
}

// invoke resolves the tool and runs it through the tool-execution hook.
// Panics raised by the tool are recovered here; panics raised by an
// installed hook unwind to the caller.
func (c *Coordinator) invoke(ctx context.Context, call core.ToolCall, tools map[string]tool.Tool) (any, error) {
	t, ok := tools[call.Name]
	if !ok {
		return nil, fmt.Errorf("tool %q not found", call.Name)
	}

	proceed := func(ctx context.Context) (value any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tool %q panicked: %v", call.Name, r)
			}
		}()
		return t.Invoke(ctx, call.Arguments)
	}

	return c.hooks.ToolExecution(ctx, call, t, proceed)
}
