// Package risk holds the guard-rails consulted before any position is opened.
package risk

import "sync"

// Limits caps how much exposure a single entry may take on. A zero cap
// disables that check.
type Limits struct {
	MaxNotionalPerTrade float64
}

// Allow reports whether a new hedged entry with the combined two-leg notional
// fits the limits.
func (l Limits) Allow(notional float64) bool {
	if l.MaxNotionalPerTrade <= 0 {
		return true
	}
	return notional <= l.MaxNotionalPerTrade
}

// Gate caps how many positions the whole fleet may hold at once. A zero or
// negative max disables the cap.
type Gate struct {
	mu   sync.Mutex
	open int
	max  int
}

// NewGate creates a gate admitting up to max concurrent positions.
func NewGate(max int) *Gate {
	return &Gate{max: max}
}

// TryAcquire claims a position slot, reporting false when the fleet is full.
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.max > 0 && g.open >= g.max {
		return false
	}
	g.open++
	return true
}

// Release returns a slot claimed by TryAcquire.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open > 0 {
		g.open--
	}
}

// Open returns the number of currently held slots.
func (g *Gate) Open() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}
