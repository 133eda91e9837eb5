package catalog

import "sync"

// Ticket identifies one fetch started through a Guard.
type Ticket struct {
	key string
	seq uint64
}

// Guard keeps a view from applying responses that arrived too late: only the
// most recent fetch for a key is applied, and nothing is applied once the
// view is closed.
type Guard struct {
	mu     sync.Mutex
	latest map[string]uint64
	seq    uint64
	closed bool
}

func NewGuard() *Guard {
	return &Guard{latest: map[string]uint64{}}
}

func (g *Guard) Begin(key string) Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	g.latest[key] = g.seq
	return Ticket{key: key, seq: g.seq}
}

// Apply runs fn if t is still the latest fetch for its key. fn runs under the
// guard's lock, so it must not call back into the guard.
func (g *Guard) Apply(t Ticket, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || g.latest[t.key] != t.seq {
		return false
	}
	fn()
	return true
}

// Current reports whether t is still the latest fetch for its key.
func (g *Guard) Current(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.closed && g.latest[t.key] == t.seq
}

func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}
