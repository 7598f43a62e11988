// Package model contains the statistical spread models that turn price pairs
// into directional trading signals.
package model

import "strings"

// Signal expresses what the model wants the engine to do with the spread.
// The numeric values match the wire/log convention: +1 long spread, -1 short
// spread, 0 exit or hold, 2 no confident change.
type Signal int

const (
	Exit       Signal = 0
	EnterLong  Signal = 1
	EnterShort Signal = -1
	NoAction   Signal = 2
)

// String returns the log-friendly name for a signal.
func (s Signal) String() string {
	switch s {
	case Exit:
		return "EXIT"
	case EnterLong:
		return "ENTER_LONG"
	case EnterShort:
		return "ENTER_SHORT"
	case NoAction:
		return "NO_ACTION"
	default:
		return "UNKNOWN"
	}
}

// Entry reports whether the signal opens a position.
func (s Signal) Entry() bool { return s == EnterLong || s == EnterShort }

// Model is the capability shared by the interchangeable spread models.
type Model interface {
	// Update feeds one (spot, futures) observation into the estimator.
	Update(spot, fut float64)
	// Ready reports whether the estimator has seen enough data to signal.
	Ready() bool
	// Signal converts the live spread into a directional signal with
	// hysteresis around the remembered entry direction.
	Signal(spot, fut float64) Signal
	// EconomicViable checks that the expected reversion profit covers the
	// round-trip fees on both legs.
	EconomicViable(spotAsk, futBid float64) bool
}

// Params carries the tunables required by the model constructors.
type Params struct {
	Lookback   int
	EntryZ     float64
	ExitZ      float64
	FeeRate    float64
	AllowShort bool
	QBase      float64
	QBeta      float64
	R          float64
}

// Build returns the model implementation matching the configured mode.
func Build(mode string, p Params) Model {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "kalman", "adaptive", "adaptive_kalman":
		return NewKalman(p)
	default:
		return NewZScore(p)
	}
}

// EntryViable is the basic executability gate on opening either side of the
// spread: the hedge must not be immediately unprofitable to cross.
func EntryViable(spotAsk, futBid float64) bool {
	return futBid > spotAsk
}

// decide implements the shared hysteresis state machine. lastEntry is the
// remembered direction of the open entry (+1, -1, or 0 when flat). It returns
// the signal and the new direction state.
func decide(z, entryZ, exitZ float64, allowShort bool, lastEntry int) (Signal, int) {
	if lastEntry == 1 && z >= exitZ {
		return Exit, 0
	}
	if lastEntry == -1 && z <= -exitZ {
		return Exit, 0
	}
	if abs(z) < exitZ {
		return Exit, lastEntry
	}
	if z > entryZ && allowShort {
		return EnterShort, -1
	}
	if z < -entryZ {
		return EnterLong, 1
	}
	return NoAction, lastEntry
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
