package facade

import "sync"

// actionGate enforces that inbound PlayerAction commands arrive in the
// order a connection actually sent them, independent of the engine's turn
// order (which is checked separately). It is grounded in the same
// sequence/freshness idea as a client-input gate: each connection's
// commands must carry a strictly increasing counter, or they are dropped as
// stale/duplicate before ever reaching the engine.
type actionGate struct {
	mu   sync.Mutex
	last map[string]uint64
}

func newActionGate() *actionGate {
	return &actionGate{last: make(map[string]uint64)}
}

// Admit reports whether sequence is acceptable for connectionID: strictly
// greater than the last admitted sequence for that connection. Admitting it
// records the new high-water mark.
func (g *actionGate) Admit(connectionID string, sequence uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sequence <= g.last[connectionID] {
		return false
	}
	g.last[connectionID] = sequence
	return true
}

// Forget drops tracked state for a connection, e.g. on disconnect.
func (g *actionGate) Forget(connectionID string) {
	g.mu.Lock()
	delete(g.last, connectionID)
	g.mu.Unlock()
}
