// Package ledger holds the canonical, ordered sequence of conversation
// messages behind a single mutex and supports transactional multi-step
// updates. The transaction mechanism is what guarantees the conversation is
// never observable with an assistant tool request lacking its tool results:
// the assistant message and all of its tool-result messages are committed
// inside one transaction, and any failure or cancellation mid-way rolls the
// sequence back to where the transaction began.
package ledger

import (
	"sync"

	"github.com/hupe1980/chatloop/core"
)

// Ledger is an append-only, thread-safe message sequence with index-based
// transactional rollback. The backing slice is the only shared mutable
// resource and is mutated exclusively while holding the ledger's lock.
type Ledger struct {
	mu       sync.Mutex
	messages []core.Message
	replaced map[string]struct{}
}

// New constructs an empty ledger, optionally pre-seeded with messages (e.g.
// restored history).
func New(seed ...core.Message) *Ledger {
	l := &Ledger{}
	if len(seed) > 0 {
		l.messages = core.CloneMessages(seed)
	}
	return l
}

// Append adds a message to the end of the sequence and returns it.
func (l *Ledger) Append(msg core.Message) core.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
	return msg
}

// AppendBatch adds all messages in order under a single lock acquisition, so
// no reader can observe a partially committed batch.
func (l *Ledger) AppendBatch(msgs []core.Message) {
	if len(msgs) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msgs...)
}

// Len returns the current number of messages.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Snapshot returns a deep copy of the current sequence. The returned slice
// is owned by the caller; mutating it never affects the ledger.
func (l *Ledger) Snapshot() []core.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.CloneMessages(l.messages)
}

// ReplaceAll swaps the entire sequence for a deep copy of msgs.
func (l *Ledger) ReplaceAll(msgs []core.Message) {
	cloned := core.CloneMessages(msgs)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = cloned
	l.replaced = nil
}

// Reset clears the conversation. With preserveSystem true, system-role
// messages keep their relative order at the head of the sequence.
func (l *Ledger) Reset(preserveSystem bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !preserveSystem {
		l.messages = nil
		l.replaced = nil
		return
	}

	kept := l.messages[:0]
	for _, m := range l.messages {
		if m.Role == core.RoleSystem {
			kept = append(kept, m)
		}
	}
	l.messages = kept
}

// DropRole removes every message with the given role, preserving the order
// of the remainder, and returns the number of messages removed.
func (l *Ledger) DropRole(role core.Role) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.messages[:0]
	for _, m := range l.messages {
		if m.Role != role {
			kept = append(kept, m)
		}
	}
	dropped := len(l.messages) - len(kept)
	l.messages = kept
	return dropped
}

// Checkpoint captures the current sequence for a later Restore. Intended for
// caller-level rollback scenarios such as retrying a whole exchange.
func (l *Ledger) Checkpoint() []core.Message {
	return l.Snapshot()
}

// Restore replaces the sequence with a previously captured checkpoint.
func (l *Ledger) Restore(saved []core.Message) {
	l.ReplaceAll(saved)
}

// ReplaceContent swaps the content of the message with the given id. This is
// the single documented exception to message immutability: a
// schema-constrained final reply has its textual content replaced once by
// the decoded structured value. A message's content may be replaced at most
// once; ReplaceContent returns false if no message matches or the message was
// already replaced.
func (l *Ledger) ReplaceContent(messageID string, content any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, done := l.replaced[messageID]; done {
		return false
	}

	for i := range l.messages {
		if l.messages[i].ID == messageID {
			l.messages[i].Content = content
			if l.replaced == nil {
				l.replaced = make(map[string]struct{})
			}
			l.replaced[messageID] = struct{}{}
			return true
		}
	}
	return false
}

// Transaction records the current length, runs fn, and truncates the
// sequence back to the recorded length if fn returns an error or panics (the
// panic is re-raised after rollback). On success fn's error (nil) is
// returned unchanged. Truncation is a reslice, so rollback is O(1) and never
// copies the surviving prefix.
//
// Nested transactions compose naturally: each call captures its own starting
// index, so an inner rollback only discards the inner suffix.
func (l *Ledger) Transaction(fn func() error) (err error) {
	l.mu.Lock()
	start := len(l.messages)
	l.mu.Unlock()

	rollback := func() {
		l.mu.Lock()
		if len(l.messages) > start {
			l.messages = l.messages[:start]
		}
		l.mu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
		if err != nil {
			rollback()
		}
	}()

	return fn()
}
