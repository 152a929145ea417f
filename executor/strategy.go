package executor

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/chatloop/core"
)

// defaultDrainGrace bounds how long the pool strategy waits for in-flight
// workers after cancellation before abandoning them.
const defaultDrainGrace = 2 * time.Second

// TaskStrategy runs every call on its own goroutine, bounded by a semaphore
// channel of maxConcurrency slots. Cancellation propagates through the
// context: calls that have not acquired a slot yet are skipped, in-flight
// calls observe ctx through the tool itself. maxConcurrency <= 0 means
// unbounded.
func TaskStrategy(ctx context.Context, calls []core.ToolCall, maxConcurrency int, run RunFunc) (map[string]core.ToolResult, error) {
	limit := maxConcurrency
	if limit <= 0 || limit > len(calls) {
		limit = len(calls)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, limit)
		results = make(map[string]core.ToolResult, len(calls))
	)

	for i := range calls {
		call := calls[i]

		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			res := run(ctx, call)

			mu.Lock()
			results[call.ID] = res
			mu.Unlock()
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// NewPoolStrategy returns a strategy that runs calls on a fixed set of
// worker goroutines consuming a shared job channel. On cancellation the
// feeder stops, idle workers exit, and in-flight workers get drainGrace to
// unwind; workers still blocked past the grace window are abandoned (their
// goroutines leak until the tool returns, since a goroutine cannot be
// killed from outside).
func NewPoolStrategy(drainGrace time.Duration) Strategy {
	return func(ctx context.Context, calls []core.ToolCall, maxConcurrency int, run RunFunc) (map[string]core.ToolResult, error) {
		workers := maxConcurrency
		if workers <= 0 || workers > len(calls) {
			workers = len(calls)
		}

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			jobs    = make(chan core.ToolCall)
			results = make(map[string]core.ToolResult, len(calls))
		)

		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-ctx.Done():
						return
					case call, ok := <-jobs:
						if !ok {
							return
						}
						res := run(ctx, call)

						mu.Lock()
						results[call.ID] = res
						mu.Unlock()
					}
				}
			}()
		}

	feed:
		for _, call := range calls {
			select {
			case jobs <- call:
			case <-ctx.Done():
				break feed
			}
		}
		close(jobs)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			select {
			case <-done:
			case <-time.After(drainGrace):
				// Abandoned workers may still write to results; hand back
				// nothing rather than a map under concurrent mutation.
				return nil, ctx.Err()
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return results, nil
	}
}
