// Package bus implements the event-notification fan-out used by the
// conversation loop: four event kinds, each with an ordered list of
// independently registered subscribers. Emission snapshots the subscriber
// list under the lock and invokes callbacks outside of it, so a callback may
// safely unsubscribe itself, register new subscribers, or trigger a nested
// Emit without deadlocking.
package bus

import (
	"fmt"
	"sync"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/logging"
)

// Kind identifies one of the four recognized event kinds. The string values
// are stable identifiers subscribers key on.
type Kind string

const (
	// NewMessage fires when a new turn starts (before a model request or a
	// sequential tool invocation).
	NewMessage Kind = "new_message"
	// EndMessage fires when a message has been committed to the ledger.
	EndMessage Kind = "end_message"
	// ToolCall fires immediately before a tool invocation begins.
	ToolCall Kind = "tool_call"
	// ToolResult fires as soon as a tool invocation completes, in completion
	// order under concurrent execution.
	ToolResult Kind = "tool_result"
)

func knownKind(k Kind) bool {
	switch k {
	case NewMessage, EndMessage, ToolCall, ToolResult:
		return true
	}
	return false
}

// UnknownEventError reports a subscribe attempt on an unrecognized event
// kind. It is a programmer error surfaced synchronously at the call site.
type UnknownEventError struct {
	Kind Kind
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("bus: unknown event kind %q", string(e.Kind))
}

// Event is the payload delivered to subscribers. Only the fields relevant to
// the kind are populated: Message for end_message, Call for tool_call,
// Result for tool_result. new_message carries the kind alone.
type Event struct {
	Kind    Kind
	Message *core.Message
	Call    *core.ToolCall
	Result  *core.ToolResult
}

// Handler is a subscriber callback. Handlers run outside the bus lock, in
// FIFO registration order, on the goroutine calling Emit.
type Handler func(Event)

// Subscription identifies one registered callback for one event kind. Its
// active flag is guarded by the owning bus's lock.
type Subscription struct {
	id     string
	kind   Kind
	tag    string
	active bool
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Kind returns the event kind this subscription listens on.
func (s *Subscription) Kind() Kind { return s.kind }

// Tag returns the optional debug tag supplied at registration.
func (s *Subscription) Tag() string { return s.tag }

type entry struct {
	sub *Subscription
	fn  Handler
}

// Options configures a Bus.
type Options struct {
	// Logger receives subscriber panic reports when no error hook is set.
	Logger logging.Logger
	// OnCallbackError overrides the default panic report. It is invoked with
	// the failing subscription and the recovered value; remaining callbacks
	// still run.
	OnCallbackError func(sub *Subscription, recovered any)
}

// Bus fans out notifications to an unbounded number of subscribers per event
// kind. The zero value is not usable; construct with New.
type Bus struct {
	mu      sync.Mutex
	entries map[Kind][]entry

	logger  logging.Logger
	onError func(sub *Subscription, recovered any)
}

// New constructs an empty Bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	b := &Bus{
		entries: make(map[Kind][]entry),
		logger:  opts.Logger,
		onError: opts.OnCallbackError,
	}
	if b.onError == nil {
		b.onError = func(sub *Subscription, recovered any) {
			b.logger.Error("bus.callback.panic", "kind", string(sub.kind), "tag", sub.tag, "recover", recovered)
		}
	}

	return b
}

// Subscribe registers fn for the given event kind. Registration order is
// preserved for emission. An optional tag aids debugging. Subscribing to an
// unrecognized kind fails with *UnknownEventError.
func (b *Bus) Subscribe(kind Kind, fn Handler, tag ...string) (*Subscription, error) {
	if !knownKind(kind) {
		return nil, &UnknownEventError{Kind: kind}
	}

	sub := &Subscription{id: core.NewID(), kind: kind, active: true}
	if len(tag) > 0 {
		sub.tag = tag[0]
	}

	b.mu.Lock()
	b.entries[kind] = append(b.entries[kind], entry{sub: sub, fn: fn})
	b.mu.Unlock()

	return sub, nil
}

// Once registers fn to run on the first matching Emit only. The subscription
// auto-deactivates before fn is invoked, so it is safe to Unsubscribe it at
// any point, including before it ever fires.
func (b *Bus) Once(kind Kind, fn Handler, tag ...string) (*Subscription, error) {
	if !knownKind(kind) {
		return nil, &UnknownEventError{Kind: kind}
	}

	sub := &Subscription{id: core.NewID(), kind: kind, active: true}
	if len(tag) > 0 {
		sub.tag = tag[0]
	}

	// Unsubscribe doubles as the exactly-once gate: only the emit that flips
	// the active flag wins, even when two emits snapshot concurrently.
	wrapped := func(ev Event) {
		if b.Unsubscribe(sub) {
			fn(ev)
		}
	}

	b.mu.Lock()
	b.entries[kind] = append(b.entries[kind], entry{sub: sub, fn: wrapped})
	b.mu.Unlock()

	return sub, nil
}

// Unsubscribe deactivates a subscription. It is idempotent and returns false
// if the subscription was already inactive, nil, or registered on a
// different bus. A foreign subscription is never mutated.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !sub.active {
		return false
	}

	list := b.entries[sub.kind]
	for i := range list {
		if list[i].sub == sub {
			sub.active = false
			b.entries[sub.kind] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}

	return false
}

// Active reports whether the subscription is still registered.
func (b *Bus) Active(sub *Subscription) bool {
	if sub == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return sub.active
}

// Emit delivers ev to every subscriber registered for ev.Kind at the moment
// of the call. The lock is held only long enough to copy the subscriber
// list; callbacks then run outside the lock in FIFO registration order. The
// snapshot is the commit set: subscriptions added or removed by a callback
// take effect for subsequent emits only, except that a subscriber
// deactivated mid-emit is skipped. A panicking callback is reported via the
// error hook and never prevents the remaining callbacks from running.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	list := b.entries[ev.Kind]
	snapshot := make([]entry, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	for _, e := range snapshot {
		b.mu.Lock()
		active := e.sub.active
		b.mu.Unlock()
		if !active {
			continue
		}
		b.invoke(e, ev)
	}
}

func (b *Bus) invoke(e entry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.onError(e.sub, r)
		}
	}()
	e.fn(ev)
}

// SubscriberCount returns the number of active subscriptions for a kind.
// Primarily useful in tests and diagnostics.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries[kind])
}
