// Package chatloop provides the execution core of a conversational-AI
// client: an event bus with four conversation event kinds, a thread-safe
// transactional message ledger, a tool-execution coordinator with pluggable
// concurrency strategies, single-slot execution hooks, and the conversation
// loop tying them together. Most applications interact with this package by:
//  1. Creating a chat via NewChat() with a provider adapter
//  2. Registering tools and event callbacks through the fluent configuration
//  3. Driving turns with Ask / AskStreaming
//
// The façade delegates to the chat package while keeping setup ergonomics
// concise. Defaults are safe for local development and testing; production
// deployments typically supply a structured logger and a real provider.
package chatloop

import (
	"github.com/hupe1980/chatloop/chat"
	"github.com/hupe1980/chatloop/provider"
)

// Version is the library version, set at release time.
const Version = "0.1.0"

// NewChat creates a conversation bound to the given provider. It is sugar
// for chat.New.
func NewChat(p provider.Provider, optFns ...func(o *chat.Options)) *chat.Chat {
	return chat.New(p, optFns...)
}
