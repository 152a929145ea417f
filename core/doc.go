// Package core defines the shared data model of the chatloop execution core:
// conversation messages, tool calls, tool results and the Halt sentinel.
// These types carry no behavior beyond construction and inspection; the
// concurrency and consistency guarantees around them live in the ledger,
// bus, executor and chat packages.
package core
