package model

import "testing"

func fillConstant(m Model, spread float64, n int) {
	for i := 0; i < n; i++ {
		m.Update(spread, 0)
	}
}

func TestZScoreReadyLatch(t *testing.T) {
	m := NewZScore(Params{Lookback: 10, EntryZ: 1.5, ExitZ: 0.5})
	for i := 0; i < 9; i++ {
		m.Update(10, 0)
		if m.Ready() {
			t.Fatalf("ready after %d updates, want 10", i+1)
		}
	}
	m.Update(10, 0)
	if !m.Ready() {
		t.Fatalf("expected ready after full revolution")
	}
	// Latch stays set as the pointer keeps wrapping.
	for i := 0; i < 25; i++ {
		m.Update(9, 0)
		if !m.Ready() {
			t.Fatalf("ready latch cleared after wrap")
		}
	}
}

func TestZScoreConstantSpreadNoSignal(t *testing.T) {
	m := NewZScore(Params{Lookback: 120, EntryZ: 1.5, ExitZ: 0.5})
	fillConstant(m, 10, 120)

	// sigma is zero, so z must be exactly zero and no entry fires.
	if sig := m.Signal(10, 0); sig != Exit {
		t.Fatalf("expected hold signal 0, got %d", sig)
	}
}

func TestZScoreEntrySignals(t *testing.T) {
	// Alternating -1/+1 gives mean 0 and population std 1 exactly.
	fill := func(m Model) {
		for i := 0; i < 60; i++ {
			m.Update(-1, 0)
			m.Update(1, 0)
		}
	}

	short := NewZScore(Params{Lookback: 120, EntryZ: 1.5, ExitZ: 0.5, AllowShort: true})
	fill(short)
	if sig := short.Signal(5, 0); sig != EnterShort {
		t.Fatalf("z=5 with shorts allowed: expected ENTER_SHORT, got %s", sig)
	}

	noShort := NewZScore(Params{Lookback: 120, EntryZ: 1.5, ExitZ: 0.5})
	fill(noShort)
	if sig := noShort.Signal(5, 0); sig != NoAction {
		t.Fatalf("z=5 with shorts disabled: expected NO_ACTION, got %s", sig)
	}

	long := NewZScore(Params{Lookback: 120, EntryZ: 1.5, ExitZ: 0.5})
	fill(long)
	if sig := long.Signal(-5, 0); sig != EnterLong {
		t.Fatalf("z=-5: expected ENTER_LONG, got %s", sig)
	}
}

func TestZScoreHysteresis(t *testing.T) {
	m := NewZScore(Params{Lookback: 120, EntryZ: 1.5, ExitZ: 0.5, AllowShort: true})
	for i := 0; i < 60; i++ {
		m.Update(-1, 0)
		m.Update(1, 0)
	}

	if sig := m.Signal(-5, 0); sig != EnterLong {
		t.Fatalf("expected ENTER_LONG, got %s", sig)
	}
	// While long, a rich z must fire EXIT before any short entry is possible.
	if sig := m.Signal(5, 0); sig != Exit {
		t.Fatalf("expected EXIT on reversion past exit band, got %s", sig)
	}
	// Direction cleared: the same rich z now signals a short entry.
	if sig := m.Signal(5, 0); sig != EnterShort {
		t.Fatalf("expected ENTER_SHORT after exit cleared direction, got %s", sig)
	}
}

func TestZScoreHoldBand(t *testing.T) {
	m := NewZScore(Params{Lookback: 120, EntryZ: 1.5, ExitZ: 0.5})
	for i := 0; i < 60; i++ {
		m.Update(-1, 0)
		m.Update(1, 0)
	}
	// |z| inside the exit band with no directional state held always yields 0.
	for _, spread := range []float64{0, 0.2, -0.3, 0.49, -0.49} {
		if sig := m.Signal(spread, 0); sig != Exit {
			t.Fatalf("spread %.2f: expected 0, got %s", spread, sig)
		}
	}
}

func TestZScoreNotReadyBeforeFill(t *testing.T) {
	m := NewZScore(Params{Lookback: 120, EntryZ: 1.5, ExitZ: 0.5})
	m.Update(1, 0)
	if m.Ready() {
		t.Fatalf("ready with one observation")
	}
	if m.EconomicViable(100, 101) {
		t.Fatalf("economic filter must reject before ready")
	}
}

func TestEconomicFilter(t *testing.T) {
	m := NewZScore(Params{Lookback: 10, EntryZ: 1.5, ExitZ: 0.5, FeeRate: 0.0008})
	fillConstant(m, 0, 10)

	// Spread exactly at the mean: expected profit 0, never viable with fees.
	if m.EconomicViable(100, 100) {
		t.Fatalf("zero expected profit must not be viable")
	}

	free := NewZScore(Params{Lookback: 10, EntryZ: 1.5, ExitZ: 0.5, FeeRate: 0})
	fillConstant(free, 0, 10)
	if !free.EconomicViable(100, 100) {
		t.Fatalf("zero fee rate makes any spread viable")
	}

	// Wide mispricing against tiny fees passes.
	if !m.EconomicViable(100, 95) {
		t.Fatalf("expected wide spread to clear the fee hurdle")
	}
}

func TestEntryViable(t *testing.T) {
	if !EntryViable(100, 100.5) {
		t.Fatalf("futures bid above spot ask must be executable")
	}
	if EntryViable(100.5, 100) {
		t.Fatalf("futures bid below spot ask must not be executable")
	}
}

func TestBuildSelectsVariant(t *testing.T) {
	if _, ok := Build("zscore", Params{Lookback: 5}).(*ZScore); !ok {
		t.Fatalf("expected ZScore for zscore mode")
	}
	if _, ok := Build("kalman", Params{}).(*Kalman); !ok {
		t.Fatalf("expected Kalman for kalman mode")
	}
	if _, ok := Build("", Params{Lookback: 5}).(*ZScore); !ok {
		t.Fatalf("expected ZScore fallback for empty mode")
	}
}
