// Package envelope defines the wire-level message shape shared by every
// transport and the helpers used to build and inspect it.
package envelope

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyMessageType is returned when a builder is asked to build a message
// with no message type set.
var ErrEmptyMessageType = errors.New("envelope: message type must not be empty")

// Message is the canonical envelope carried across every transport in the
// system. It never changes shape once built: callers mutate state through a
// Builder, not by assigning fields directly.
type Message struct {
	MessageID              string            `json:"messageId"`
	CorrelationID          string            `json:"correlationId"`
	MessageType            string            `json:"messageType"`
	Source                 string            `json:"senderId"`
	Destination            string            `json:"destination,omitempty"`
	ReplyTo                string            `json:"replyTo"`
	ContentType            string            `json:"contentType"`
	RequireAcknowledgement bool              `json:"requireAcknowledgement"`
	Timestamp              time.Time         `json:"timestamp"`
	Headers                map[string]string `json:"headers"`
	Payload                []byte            `json:"content"`
}

// Builder assembles a Message field by field. It exists so construction
// never relies on reflection-based field setting: every field is set through
// an explicit method call.
type Builder struct {
	msg Message
	err error
}

// NewBuilder starts a new envelope with a generated message id and the
// current timestamp.
func NewBuilder() *Builder {
	return &Builder{
		msg: Message{
			MessageID:   uuid.NewString(),
			Timestamp:   time.Now().UTC(),
			ContentType: "application/json",
		},
	}
}

// WithMessageID overrides the generated message id.
func (b *Builder) WithMessageID(id string) *Builder {
	if id != "" {
		b.msg.MessageID = id
	}
	return b
}

// WithCorrelationID sets the identifier this message is replying to.
func (b *Builder) WithCorrelationID(id string) *Builder {
	b.msg.CorrelationID = id
	return b
}

// WithType sets the message type discriminator.
func (b *Builder) WithType(messageType string) *Builder {
	b.msg.MessageType = messageType
	return b
}

// WithSource records the originating transport id.
func (b *Builder) WithSource(source string) *Builder {
	b.msg.Source = source
	return b
}

// WithDestination records the addressed transport id, when known.
func (b *Builder) WithDestination(destination string) *Builder {
	b.msg.Destination = destination
	return b
}

// WithReplyTo records the transport id a recipient should reply to, when it
// differs from Source.
func (b *Builder) WithReplyTo(replyTo string) *Builder {
	b.msg.ReplyTo = replyTo
	return b
}

// WithContentType overrides the default "application/json" content type.
func (b *Builder) WithContentType(contentType string) *Builder {
	b.msg.ContentType = contentType
	return b
}

// WithRequireAcknowledgement marks whether Send should block for this
// message's acknowledgement, as opposed to returning once delivery is
// dispatched.
func (b *Builder) WithRequireAcknowledgement(require bool) *Builder {
	b.msg.RequireAcknowledgement = require
	return b
}

// WithHeader sets a single header key/value pair.
func (b *Builder) WithHeader(key, value string) *Builder {
	if b.msg.Headers == nil {
		b.msg.Headers = make(map[string]string)
	}
	b.msg.Headers[key] = value
	return b
}

// WithPayload marshals v as JSON and attaches it as the message payload. A
// marshal failure is deferred until Build so callers can chain freely.
func (b *Builder) WithPayload(v any) *Builder {
	raw, err := json.Marshal(v)
	if err != nil {
		b.err = err
		return b
	}
	b.msg.Payload = raw
	return b
}

// Build validates and returns the assembled message.
func (b *Builder) Build() (Message, error) {
	if b.err != nil {
		return Message{}, b.err
	}
	if b.msg.MessageType == "" {
		return Message{}, ErrEmptyMessageType
	}
	return b.msg, nil
}

// DecodePayload unmarshals the message payload into v. Malformed or absent
// payloads return an error rather than panicking; v is left at its zero
// value in that case.
func (m Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return errors.New("envelope: message has no payload")
	}
	return json.Unmarshal(m.Payload, v)
}

// WithCorrelation returns a copy of m with CorrelationID set, used by
// transports replying to an inbound message without mutating the original.
func (m Message) WithCorrelation(id string) Message {
	clone := m
	clone.CorrelationID = id
	return clone
}
