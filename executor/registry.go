// Package executor dispatches batches of tool calls through pluggable
// concurrency strategies and reconciles the results back into the message
// ledger as one atomic unit, while still emitting live progress events per
// call. Two bounded strategies ship built in (a cooperative-task strategy
// and a worker-pool strategy); sequential execution is implicit and needs no
// strategy at all.
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/chatloop/core"
)

// Built-in strategy names.
const (
	// StrategySequential runs calls one at a time in request order with no
	// locking overhead. It is the default and is not looked up in a registry.
	StrategySequential = "sequential"
	// StrategyPool runs calls on a fixed set of worker goroutines consuming
	// a job channel.
	StrategyPool = "pool"
	// StrategyTask runs each call on its own goroutine bounded by a
	// semaphore, relying on context propagation for cancellation.
	StrategyTask = "task"
)

// RunFunc executes one tool call completely — hook wrapping, progress
// events, error conversion — and returns its reconciled result. Strategies
// never inspect results; they only schedule RunFunc invocations.
type RunFunc func(ctx context.Context, call core.ToolCall) core.ToolResult

// Strategy runs a batch of tool calls with bounded parallelism and returns
// the results keyed by call id. A non-nil error means the batch did not
// complete (cancellation); the caller treats any returned partial results as
// unusable and rolls back.
type Strategy func(ctx context.Context, calls []core.ToolCall, maxConcurrency int, run RunFunc) (map[string]core.ToolResult, error)

// UnknownStrategyError reports a strategy name with no registration. It is
// raised before any tool in the batch executes.
type UnknownStrategyError struct {
	Name string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("executor: unknown strategy %q", e.Name)
}

// Registry is a lock-protected map from strategy name to implementation.
// The package-level DefaultRegistry is pre-populated with the built-ins;
// embedders extend it (or supply their own registry to the coordinator) to
// plug custom scheduling policies.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds or replaces a named strategy.
func (r *Registry) Register(name string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = s
}

// Lookup returns the strategy registered under name.
func (r *Registry) Lookup(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// Names returns the registered strategy names (unordered).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry holds the built-in strategies and serves as the default
// for coordinators constructed without an explicit registry.
var DefaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register(StrategyTask, TaskStrategy)
	r.Register(StrategyPool, NewPoolStrategy(defaultDrainGrace))
	return r
}()
