package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingRun returns a RunFunc that records peak concurrency and completes
// after the given delay.
func trackingRun(delay time.Duration) (RunFunc, func() int) {
	var (
		mu      sync.Mutex
		current int
		peak    int
	)

	run := func(ctx context.Context, call core.ToolCall) core.ToolResult {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}

		mu.Lock()
		current--
		mu.Unlock()

		return core.ToolResult{ToolCallID: call.ID, Content: "ok"}
	}

	return run, func() int {
		mu.Lock()
		defer mu.Unlock()
		return peak
	}
}

func TestTaskStrategyBoundsConcurrency(t *testing.T) {
	run, peak := trackingRun(30 * time.Millisecond)

	results, err := TaskStrategy(context.Background(), testutil.Calls(6, "x"), 2, run)
	require.NoError(t, err)

	assert.Len(t, results, 6)
	assert.LessOrEqual(t, peak(), 2)
}

func TestTaskStrategyUnboundedByDefault(t *testing.T) {
	run, peak := trackingRun(40 * time.Millisecond)

	start := time.Now()
	results, err := TaskStrategy(context.Background(), testutil.Calls(4, "x"), 0, run)
	require.NoError(t, err)

	assert.Len(t, results, 4)
	assert.Equal(t, 4, peak())
	assert.Less(t, time.Since(start), 120*time.Millisecond)
}

func TestTaskStrategyCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := func(ctx context.Context, call core.ToolCall) core.ToolResult {
		return core.ToolResult{ToolCallID: call.ID}
	}

	results, err := TaskStrategy(ctx, testutil.Calls(3, "x"), 2, run)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestPoolStrategyBoundsConcurrency(t *testing.T) {
	run, peak := trackingRun(30 * time.Millisecond)
	pool := NewPoolStrategy(time.Second)

	results, err := pool(context.Background(), testutil.Calls(6, "x"), 2, run)
	require.NoError(t, err)

	assert.Len(t, results, 6)
	assert.LessOrEqual(t, peak(), 2)
}

func TestPoolStrategyDrainsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	run := func(ctx context.Context, call core.ToolCall) core.ToolResult {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return core.ToolResult{ToolCallID: call.ID, IsError: true}
	}

	pool := NewPoolStrategy(time.Second)

	errCh := make(chan error, 1)
	go func() {
		_, err := pool(ctx, testutil.Calls(4, "x"), 2, run)
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not drain after cancellation")
	}
}

func TestPoolStrategyAbandonsStuckWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	run := func(ctx context.Context, call core.ToolCall) core.ToolResult {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release // ignores cancellation on purpose
		return core.ToolResult{ToolCallID: call.ID}
	}

	pool := NewPoolStrategy(50 * time.Millisecond)

	errCh := make(chan error, 1)
	var results map[string]core.ToolResult
	go func() {
		var err error
		results, err = pool(ctx, testutil.Calls(1, "x"), 1, run)
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, results)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not give up on a stuck worker")
	}

	close(release)
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Lookup("custom")
	assert.False(t, ok)

	r.Register("custom", TaskStrategy)
	_, ok = r.Lookup("custom")
	assert.True(t, ok)
	assert.Contains(t, r.Names(), "custom")
}

func TestDefaultRegistryBuiltins(t *testing.T) {
	for _, name := range []string{StrategyTask, StrategyPool} {
		_, ok := DefaultRegistry.Lookup(name)
		assert.True(t, ok, "built-in strategy %q missing", name)
	}
}
