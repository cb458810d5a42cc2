// Package transport implements the in-process publish/subscribe fabric every
// service in the system talks through: a Transport registers subscriptions
// keyed by predicate, dispatches matching messages to handlers concurrently,
// and optionally blocks a publisher until the recipient acknowledges
// delivery.
package transport

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"holdem/broker/internal/envelope"
	"holdem/broker/internal/logging"
)

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithAckTimeout overrides the default duration Send waits for an
// acknowledgement before reporting an ack timeout.
func WithAckTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.ackTimeout = d
		}
	}
}

// WithLogger attaches a structured logger used for handler-failure
// diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

const defaultAckTimeout = 2 * time.Second

// Transport is a single named endpoint in the pub/sub fabric.
type Transport struct {
	id  string
	dir *Directory

	mu      sync.RWMutex
	subs    map[string]*subscription
	nextSub uint64

	pendingMu sync.Mutex
	pending   map[string]chan struct{}

	ackTimeout time.Duration
	logger     *logging.Logger

	closedMu sync.RWMutex
	closed   bool
}

// New constructs a transport identified by id and, when dir is non-nil,
// registers it in that directory.
func New(id string, dir *Directory, opts ...Option) *Transport {
	t := &Transport{
		id:         id,
		dir:        dir,
		subs:       make(map[string]*subscription),
		pending:    make(map[string]chan struct{}),
		ackTimeout: defaultAckTimeout,
		logger:     logging.L(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if dir != nil {
		dir.Register(t)
	}
	return t
}

// ID returns the transport_id this transport is registered under.
func (t *Transport) ID() string { return t.id }

// Subscribe registers a handler invoked for every message matching
// predicate, returning a subscription id that Unsubscribe accepts.
func (t *Transport) Subscribe(predicate Predicate, handler Handler) string {
	if predicate == nil {
		predicate = All()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextSub++
	id := subscriptionID(t.id, t.nextSub)
	t.subs[id] = &subscription{id: id, predicate: predicate, handler: handler}
	return id
}

// Unsubscribe removes a previously registered subscription. It is a no-op if
// the id is unknown.
func (t *Transport) Unsubscribe(id string) {
	t.mu.Lock()
	delete(t.subs, id)
	t.mu.Unlock()
}

// Publish dispatches msg to every locally matching subscription concurrently
// and returns once every matching handler has returned; it never waits for
// an acknowledgement. It reports false only when the transport has been
// closed.
func (t *Transport) Publish(ctx context.Context, msg envelope.Message) bool {
	if t.isClosed() {
		return false
	}
	t.deliverLocal(ctx, msg)
	return true
}

// Send delivers msg to the sibling transport registered under destination,
// looked up in this transport's directory. Destination is a sibling
// transport's transport_id, not a local subscriber address; an unknown
// destination reports false without attempting delivery.
//
// Delivery to the destination's handlers runs on its own goroutine. If
// msg.RequireAcknowledgement is false, Send returns true as soon as delivery
// has been dispatched, without waiting for the handlers. If it is true, Send
// blocks until the destination's auto-ack protocol resolves the waiter it
// registers here, the context is cancelled, or the ack timeout elapses, and
// reports whether the acknowledgement arrived in time.
func (t *Transport) Send(ctx context.Context, destination string, msg envelope.Message) bool {
	if t.isClosed() || t.dir == nil {
		return false
	}
	dest, ok := t.dir.Lookup(destination)
	if !ok {
		return false
	}
	msg.Destination = destination

	if !msg.RequireAcknowledgement {
		go dest.deliverLocal(ctx, msg)
		return true
	}

	ackCh := make(chan struct{})
	t.pendingMu.Lock()
	t.pending[msg.MessageID] = ackCh
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, msg.MessageID)
		t.pendingMu.Unlock()
	}()

	go dest.deliverLocal(ctx, msg)

	timer := time.NewTimer(t.ackTimeout)
	defer timer.Stop()
	select {
	case <-ackCh:
		// Close also releases waiters, after marking the transport closed.
		return !t.isClosed()
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Acknowledge signals that messageID has been processed, unblocking any
// Send call waiting on it. It reports whether a waiter was found; the ack
// protocol has exactly one consumer per message id, so a second call for the
// same id reports false.
func (t *Transport) Acknowledge(messageID string) bool {
	t.pendingMu.Lock()
	ch, ok := t.pending[messageID]
	if ok {
		delete(t.pending, messageID)
	}
	t.pendingMu.Unlock()
	if !ok {
		return false
	}
	close(ch)
	return true
}

// Broadcast publishes msg to every other transport registered in this
// transport's directory, excluding itself, and reports whether the call
// completed. Broadcast delivery is not acknowledged per sibling: the caller
// learns only that dispatch was attempted, matching the fire-and-forget
// nature of a broadcast.
func (t *Transport) Broadcast(ctx context.Context, msg envelope.Message) bool {
	if t.dir == nil || t.isClosed() {
		return false
	}
	siblings := t.dir.Siblings(t.id)
	group, gctx := errgroup.WithContext(ctx)
	for _, sibling := range siblings {
		sibling := sibling
		group.Go(func() error {
			sibling.deliverLocal(gctx, msg)
			return nil
		})
	}
	_ = group.Wait()
	return true
}

// Close marks the transport closed and unregisters it from its directory.
// Pending Send calls are released with a failed acknowledgement.
func (t *Transport) Close() {
	t.closedMu.Lock()
	t.closed = true
	t.closedMu.Unlock()

	if t.dir != nil {
		t.dir.Unregister(t.id)
	}

	t.pendingMu.Lock()
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
	t.pendingMu.Unlock()
}

func (t *Transport) isClosed() bool {
	t.closedMu.RLock()
	defer t.closedMu.RUnlock()
	return t.closed
}

// deliverLocal fans the message out to every matching subscription
// concurrently, waits for all of them to complete, and then auto-acks: the
// receiver acks positively once every handler has returned. A handler panic
// is recovered and logged, and then no acknowledgement is sent at all, so a
// waiting Send reports false only when its ack timeout elapses; no negative
// acknowledgement or error text reaches the sender.
func (t *Transport) deliverLocal(ctx context.Context, msg envelope.Message) {
	t.mu.RLock()
	matching := make([]*subscription, 0, len(t.subs))
	for _, sub := range t.subs {
		if sub.predicate(msg) {
			matching = append(matching, sub)
		}
	}
	t.mu.RUnlock()

	if len(matching) == 0 {
		t.autoAcknowledge(msg)
		return
	}

	var failedMu sync.Mutex
	failed := false

	group, _ := errgroup.WithContext(ctx)
	for _, sub := range matching {
		sub := sub
		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					failedMu.Lock()
					failed = true
					failedMu.Unlock()
					if t.logger != nil {
						t.logger.Error("handler panicked",
							logging.String("transport_id", t.id),
							logging.String("subscription_id", sub.id),
							logging.String("message_type", msg.MessageType),
						)
					}
				}
			}()
			if sub.handler != nil {
				sub.handler(msg)
			}
			return nil
		})
	}
	_ = group.Wait()

	if !failed {
		t.autoAcknowledge(msg)
	}
}

// autoAcknowledge implements the receiver side of the ack protocol: it finds
// the sending transport (msg.Source) in the shared directory and signals its
// waiter, falling back to acknowledging on itself when no directory is
// configured or the sender cannot be found (e.g. self-addressed delivery).
func (t *Transport) autoAcknowledge(msg envelope.Message) {
	if msg.MessageID == "" {
		return
	}
	if t.dir != nil {
		if sender, ok := t.dir.Lookup(msg.Source); ok {
			sender.Acknowledge(msg.MessageID)
			return
		}
	}
	t.Acknowledge(msg.MessageID)
}
