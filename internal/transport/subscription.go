package transport

import "holdem/broker/internal/envelope"

// Predicate decides whether a subscriber wants a given message delivered.
type Predicate func(envelope.Message) bool

// All matches every message.
func All() Predicate {
	return func(envelope.Message) bool { return true }
}

// ByType matches messages whose MessageType equals messageType.
func ByType(messageType string) Predicate {
	return func(m envelope.Message) bool { return m.MessageType == messageType }
}

// BySource matches messages whose Source equals source.
func BySource(source string) Predicate {
	return func(m envelope.Message) bool { return m.Source == source }
}

// Handler processes a delivered message. Handlers run concurrently with
// their siblings for the same message; a handler that panics is recovered by
// the transport and reported as a delivery failure rather than crashing the
// process.
type Handler func(envelope.Message)

type subscription struct {
	id        string
	predicate Predicate
	handler   Handler
}
