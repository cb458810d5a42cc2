// Package lifecycle coordinates graceful shutdown across every participant
// registered with it: messaging transports, the game engine's façade, and
// anything else that needs a chance to drain before the process exits.
package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Priority buckets participants so shutdown happens in a sensible order:
// messaging participants drain first so no new work arrives, then
// transports themselves are torn down.
const (
	PriorityMessaging = 100
	PriorityTransport = 200
)

// ShutdownFunc performs a participant's teardown. It should honour ctx's
// deadline and return promptly when it expires.
type ShutdownFunc func(ctx context.Context) error

type participant struct {
	id       string
	priority int
	fn       ShutdownFunc
}

// Coordinator is the process-wide registry of shutdown participants, keyed
// by participant_id. Like Directory in the transport package, it is an
// explicit context object; Default lazily constructs a process-scoped
// instance for callers that do not need an isolated one.
type Coordinator struct {
	mu           sync.Mutex
	participants map[string]*participant
	shuttingDown bool
}

// NewCoordinator constructs an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{participants: make(map[string]*participant)}
}

var (
	defaultMu   sync.Mutex
	defaultCoor *Coordinator
)

// Default returns the process-scoped coordinator, constructing it on first use.
func Default() *Coordinator {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultCoor == nil {
		defaultCoor = NewCoordinator()
	}
	return defaultCoor
}

// Register adds a participant at the given priority. Re-registering the
// same participant_id replaces its previous entry, making the call
// idempotent and safe to retry.
func (c *Coordinator) Register(participantID string, priority int, fn ShutdownFunc) {
	if c == nil || fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.participants[participantID] = &participant{id: participantID, priority: priority, fn: fn}
}

// Unregister removes a participant without invoking its shutdown function.
func (c *Coordinator) Unregister(participantID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.participants, participantID)
	c.mu.Unlock()
}

// ShutdownAll tears down every registered participant in ascending priority
// order, lowest first. Each participant's ShutdownFunc is invoked with ctx
// directly, so callers should attach a deadline to ctx to bound total
// shutdown time. Errors from individual participants are collected and
// returned together; a failing participant does not stop later participants
// from being given a chance to shut down. Reentrant calls — concurrent or
// sequential, once a first call has started — return nil immediately rather
// than running every participant's ShutdownFunc again.
func (c *Coordinator) ShutdownAll(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return nil
	}
	c.shuttingDown = true
	ordered := make([]*participant, 0, len(c.participants))
	for _, p := range c.participants {
		ordered = append(ordered, p)
	}
	c.mu.Unlock()

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].priority != ordered[j].priority {
			return ordered[i].priority < ordered[j].priority
		}
		return ordered[i].id < ordered[j].id
	})

	var errs []error
	for _, p := range ordered {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("participant %s: deadline exceeded before shutdown: %w", p.id, err))
			continue
		}
		if err := p.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("participant %s: %w", p.id, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := "shutdown errors:"
	for _, err := range errs {
		msg += " " + err.Error() + ";"
	}
	return fmt.Errorf("%s", msg)
}
