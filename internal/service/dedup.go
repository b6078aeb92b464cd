package service

import "sync"

// Guard is the authoritative identifier-admission table for one open room.
// Every insertion path (polling, realtime, optimistic reconciliation) shares
// the same guard, so the first arrival of a permanent identifier wins and any
// later arrival of the same identifier is silently dropped.
//
// The guard lives exactly as long as the room session, so there is no
// eviction policy.
type Guard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewGuard creates an empty admission table.
func NewGuard() *Guard {
	return &Guard{seen: make(map[string]struct{})}
}

// Admit records the identifier and returns true if it has not been seen
// before; it returns false without any state change when the identifier was
// already admitted. Check and record are one step: there is deliberately no
// separate lookup method.
func (g *Guard) Admit(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.seen[id]; exists {
		return false
	}
	g.seen[id] = struct{}{}
	return true
}

// Len returns the number of admitted identifiers.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
