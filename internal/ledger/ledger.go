// Package ledger tracks the single hedged position an engine may hold and its
// realized/unrealized PnL.
package ledger

import (
	"errors"
	"math"
	"sync"
	"time"
)

// Side is the direction of the hedged spread position.
type Side string

const (
	// Long spread: long spot, short futures.
	Long Side = "LONG"
	// Short spread: short spot (margin), long futures.
	Short Side = "SHORT"
)

// Invariant violations. These indicate a logic defect in the caller, not a
// runtime condition, and must never be swallowed.
var (
	ErrAlreadyOpen = errors.New("ledger: position already open")
	ErrNotOpen     = errors.New("ledger: no open position")
)

const timeLayout = "2006-01-02 15:04:05"

// Position is the open hedged position snapshot.
type Position struct {
	Symbol       string
	Side         Side
	SpotEntry    float64
	FuturesEntry float64
	Size         float64
	EntryTime    time.Time
	Open         bool
}

// Result is the realized outcome of one closed round trip, shaped for the
// trade log and the close notification.
type Result struct {
	Side        Side
	Symbol      string
	Size        float64
	SpotEntry   float64
	SpotExit    float64
	FutEntry    float64
	FutExit     float64
	EntryTime   string // UTC, YYYY-MM-DD HH:MM:SS
	ExitTime    string
	SpotPnL     float64
	FutPnL      float64
	NetPnL      float64
	HoldMinutes float64
}

// OpenRow shapes the freshly opened position for the trade log: entry fields
// populated, exit fields left zero.
func (p Position) OpenRow() Result {
	return Result{
		Side:      p.Side,
		Symbol:    p.Symbol,
		Size:      p.Size,
		SpotEntry: p.SpotEntry,
		FutEntry:  p.FuturesEntry,
		EntryTime: p.EntryTime.Format(timeLayout),
	}
}

// Book holds at most one open position per symbol. It is mutated only by the
// owning engine's signal loop; the mutex guards incidental reads from the
// metrics and diagnostics paths.
type Book struct {
	mu      sync.Mutex
	symbol  string
	feeRate float64
	pos     Position
	now     func() time.Time
}

// NewBook creates an empty book for one symbol with the round-trip fee rate.
func NewBook(symbol string, feeRate float64) *Book {
	return &Book{symbol: symbol, feeRate: feeRate, now: time.Now}
}

// Open records a new hedged position. Opening while already open is an
// invariant violation.
func (b *Book) Open(side Side, spotPrice, futPrice, size float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pos.Open {
		return ErrAlreadyOpen
	}
	b.pos = Position{
		Symbol:       b.symbol,
		Side:         side,
		SpotEntry:    spotPrice,
		FuturesEntry: futPrice,
		Size:         size,
		EntryTime:    b.now().UTC(),
		Open:         true,
	}
	return nil
}

// Close realizes the position at the supplied exit prices, resets the book,
// and returns the round-trip result. Closing with nothing open is an
// invariant violation.
func (b *Book) Close(spotExit, futExit float64) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.pos.Open {
		return Result{}, ErrNotOpen
	}

	now := b.now().UTC()
	spotPnL, futPnL, net := pnl(b.pos.Side, b.pos.SpotEntry, spotExit, b.pos.FuturesEntry, futExit, b.pos.Size, b.feeRate)
	holdMin := round2(now.Sub(b.pos.EntryTime).Minutes())

	res := Result{
		Side:        b.pos.Side,
		Symbol:      b.symbol,
		Size:        b.pos.Size,
		SpotEntry:   b.pos.SpotEntry,
		SpotExit:    spotExit,
		FutEntry:    b.pos.FuturesEntry,
		FutExit:     futExit,
		EntryTime:   b.pos.EntryTime.Format(timeLayout),
		ExitTime:    now.Format(timeLayout),
		SpotPnL:     spotPnL,
		FutPnL:      futPnL,
		NetPnL:      net,
		HoldMinutes: holdMin,
	}
	b.pos = Position{}
	return res, nil
}

// MarkPnL is the mark-to-market net PnL at the supplied prices without
// closing. Returns 0 when flat.
func (b *Book) MarkPnL(spotPx, futPx float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.pos.Open {
		return 0
	}
	_, _, net := pnl(b.pos.Side, b.pos.SpotEntry, spotPx, b.pos.FuturesEntry, futPx, b.pos.Size, b.feeRate)
	return net
}

// IsOpen reports whether a position is currently held.
func (b *Book) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pos.Open
}

// Position returns a copy of the current position.
func (b *Book) Position() Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pos
}

// pnl computes the side-dependent per-leg PnL and the net after the
// simplified round-trip fee approximation over both legs' entry and exit
// notionals.
func pnl(side Side, spotEntry, spotExit, futEntry, futExit, size, feeRate float64) (spotPnL, futPnL, net float64) {
	if side == Long {
		spotPnL = (spotExit - spotEntry) * size
		futPnL = (futEntry - futExit) * size
	} else {
		spotPnL = (spotEntry - spotExit) * size
		futPnL = (futExit - futEntry) * size
	}
	gross := spotPnL + futPnL
	fees := feeRate * (spotEntry + spotExit + futEntry + futExit) * size
	return spotPnL, futPnL, gross - fees
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
