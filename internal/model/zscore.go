package model

import (
	"math"
	"sync"
)

// ZScore is the classical rolling-window spread model: a fixed-length ring
// buffer of spread observations scored against the window mean and population
// standard deviation. The mutex makes it safe to share between the model and
// signal loops, which call Update and Signal concurrently.
type ZScore struct {
	mu         sync.Mutex
	lookback   int
	history    []float64
	ptr        int
	filled     bool
	lastEntry  int
	entryZ     float64
	exitZ      float64
	feeRate    float64
	allowShort bool
}

// NewZScore builds the rolling-window model with the supplied parameters.
func NewZScore(p Params) *ZScore {
	lookback := p.Lookback
	if lookback <= 0 {
		lookback = 120
	}
	return &ZScore{
		lookback:   lookback,
		history:    make([]float64, lookback),
		entryZ:     p.EntryZ,
		exitZ:      p.ExitZ,
		feeRate:    p.FeeRate,
		allowShort: p.AllowShort,
	}
}

// Update pushes spot-futures into the ring buffer. The filled latch is set
// once and only once, when the write pointer completes its first revolution.
func (m *ZScore) Update(spot, fut float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[m.ptr] = spot - fut
	m.ptr = (m.ptr + 1) % m.lookback
	if m.ptr == 0 {
		m.filled = true
	}
}

// Ready reports whether the window has been filled once since start.
func (m *ZScore) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filled
}

// window returns the observations to score against: the full buffer once
// filled, otherwise the prefix written so far.
func (m *ZScore) window() []float64 {
	if m.filled {
		return m.history
	}
	return m.history[:m.ptr]
}

func stats(arr []float64) (mean, std float64) {
	if len(arr) == 0 {
		return 0, 0
	}
	for _, v := range arr {
		mean += v
	}
	mean /= float64(len(arr))
	var variance float64
	for _, v := range arr {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(arr))
	return mean, math.Sqrt(variance)
}

func zscore(current, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (current - mean) / std
}

// Signal scores the live spread against the window and applies the hysteresis
// state machine.
func (m *ZScore) Signal(spot, fut float64) Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.filled {
		return Exit
	}
	mean, std := stats(m.window())
	z := zscore(spot-fut, mean, std)
	sig, next := decide(z, m.entryZ, m.exitZ, m.allowShort, m.lastEntry)
	m.lastEntry = next
	return sig
}

// EconomicViable requires the expected reversion profit to cover round-trip
// fees on both legs in both directions.
func (m *ZScore) EconomicViable(spotAsk, futBid float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.filled {
		return false
	}
	mean, _ := stats(m.window())
	expectedProfit := math.Abs((spotAsk - futBid) - mean)
	expectedCost := 2 * (spotAsk + futBid) * m.feeRate
	return expectedProfit >= expectedCost
}
