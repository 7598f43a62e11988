package model

import (
	"math"
	"sync"
)

// Kalman is the adaptive-noise scalar filter variant. Process noise grows with
// the absolute residual (q = qBase + qBeta*|residual|), so the mean estimate
// tracks structural shifts faster than the rolling window at the cost of
// tuning sensitivity. The mutex makes it safe to share between the model and
// signal loops, which call Update and Signal concurrently.
type Kalman struct {
	mtx   sync.Mutex
	mu    float64 // spread mean estimate
	p     float64 // estimate variance
	r     float64 // observation noise
	qBase float64
	qBeta float64
	ready bool

	lastEntry  int
	entryZ     float64
	exitZ      float64
	feeRate    float64
	allowShort bool
}

// NewKalman builds the adaptive filter with the supplied parameters.
func NewKalman(p Params) *Kalman {
	return &Kalman{
		r:          p.R,
		qBase:      p.QBase,
		qBeta:      p.QBeta,
		entryZ:     p.EntryZ,
		exitZ:      p.ExitZ,
		feeRate:    p.FeeRate,
		allowShort: p.AllowShort,
	}
}

// Update folds one observation into the filter. The first observation seeds
// the state and latches readiness.
func (m *Kalman) Update(spot, fut float64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	y := spot - fut
	if !m.ready {
		m.mu = y
		m.p = 1e-8
		m.ready = true
		return
	}

	residual := y - m.mu
	q := m.qBase + m.qBeta*math.Abs(residual)
	pPred := m.p + q
	k := pPred / (pPred + m.r)
	m.mu += k * (y - m.mu)
	m.p = (1 - k) * pPred
}

// Ready reports whether the filter has been seeded.
func (m *Kalman) Ready() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.ready
}

// Signal scores the live spread against the filter state.
func (m *Kalman) Signal(spot, fut float64) Signal {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if !m.ready {
		return Exit
	}
	y := spot - fut
	var z float64
	if m.p != 0 {
		z = (y - m.mu) / math.Sqrt(m.p)
	}
	sig, next := decide(z, m.entryZ, m.exitZ, m.allowShort, m.lastEntry)
	m.lastEntry = next
	return sig
}

// EconomicViable uses the filter mean as the reversion target.
func (m *Kalman) EconomicViable(spotAsk, futBid float64) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if !m.ready {
		return false
	}
	expectedProfit := math.Abs((spotAsk - futBid) - m.mu)
	expectedCost := 2 * (spotAsk + futBid) * m.feeRate
	return expectedProfit >= expectedCost
}

// Mean exposes the current spread mean estimate (used by diagnostics).
func (m *Kalman) Mean() float64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.mu
}

// Variance exposes the current estimate variance (used by diagnostics).
func (m *Kalman) Variance() float64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.p
}
