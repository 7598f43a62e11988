// Package quote maintains the latest best bid/ask for the spot and futures
// legs of one symbol, fed by streaming subscriptions or REST polling.
package quote

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/haykdb/blacksmith/internal/metrics"
)

// Leg names the two venue sides of a symbol.
type Leg string

const (
	LegSpot    Leg = "spot"
	LegFutures Leg = "futures"
)

// Quote is a point-in-time copy of the four tracked values. Zero means the
// leg has not ticked yet. There is no cross-field consistency guarantee: a
// reader may observe a spot update slightly ahead of the matching futures
// update.
type Quote struct {
	SpotBid float64
	SpotAsk float64
	FutBid  float64
	FutAsk  float64
}

// Cache is the per-symbol latest-value quote store. Each field is replaced
// atomically and independently, so the two engine loops read it without a
// lock. It never terminates on feed errors; it reconnects and keeps serving
// the last known values.
type Cache struct {
	symbol string
	log    zerolog.Logger

	spotBid atomic.Uint64
	spotAsk atomic.Uint64
	futBid  atomic.Uint64
	futAsk  atomic.Uint64

	mu   sync.Mutex
	subs []chan struct{}
}

// NewCache creates an empty cache for one symbol.
func NewCache(symbol string, log zerolog.Logger) *Cache {
	return &Cache{symbol: symbol, log: log}
}

// Symbol returns the symbol this cache tracks.
func (c *Cache) Symbol() string { return c.symbol }

// Subscribe registers a change notification channel. The channel has
// capacity one and is signaled only when a tracked value actually changes;
// receiving from it is the acknowledgement that arms the next notification.
func (c *Cache) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

func (c *Cache) notify() {
	c.mu.Lock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	c.mu.Unlock()
}

func load(cell *atomic.Uint64) float64 {
	return math.Float64frombits(cell.Load())
}

// store replaces one field and reports whether the value changed.
func store(cell *atomic.Uint64, v float64) bool {
	old := cell.Swap(math.Float64bits(v))
	return math.Float64frombits(old) != v
}

// SetLeg stores a leg's bid/ask and fires the change notification if either
// value differs from what was cached. Duplicate ticks never re-fire it.
func (c *Cache) SetLeg(leg Leg, bid, ask float64) {
	var changed bool
	switch leg {
	case LegSpot:
		changed = store(&c.spotBid, bid)
		changed = store(&c.spotAsk, ask) || changed
	case LegFutures:
		changed = store(&c.futBid, bid)
		changed = store(&c.futAsk, ask) || changed
	default:
		return
	}
	if changed {
		metrics.QuoteUpdatesTotal.WithLabelValues(c.symbol, string(leg)).Inc()
		c.notify()
	}
}

// Snapshot copies the four tracked values.
func (c *Cache) Snapshot() Quote {
	return Quote{
		SpotBid: load(&c.spotBid),
		SpotAsk: load(&c.spotAsk),
		FutBid:  load(&c.futBid),
		FutAsk:  load(&c.futAsk),
	}
}

// Mids returns the two leg midpoints. ok is false until both legs have a
// full book, which callers treat as "no decision this cycle".
func (c *Cache) Mids() (spotMid, futMid float64, ok bool) {
	q := c.Snapshot()
	if !q.Ready() {
		return 0, 0, false
	}
	return (q.SpotBid + q.SpotAsk) / 2, (q.FutBid + q.FutAsk) / 2, true
}

// Ready reports whether both legs have a non-zero bid and ask.
func (c *Cache) Ready() bool {
	return c.Snapshot().Ready()
}

// Ready reports whether all four values are present.
func (q Quote) Ready() bool {
	return q.SpotBid > 0 && q.SpotAsk > 0 && q.FutBid > 0 && q.FutAsk > 0
}
