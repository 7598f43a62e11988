package risk

import "testing"

func TestAllow(t *testing.T) {
	limits := Limits{MaxNotionalPerTrade: 50}
	if !limits.Allow(49.9) {
		t.Fatalf("expected notional under limit to pass")
	}
	if limits.Allow(50.1) {
		t.Fatalf("expected notional above limit to fail")
	}
}

func TestZeroCapDisablesCheck(t *testing.T) {
	if !(Limits{}).Allow(1e9) {
		t.Fatalf("zero cap must allow any notional")
	}
}

func TestGateCapsOpenPositions(t *testing.T) {
	g := NewGate(2)
	if !g.TryAcquire() || !g.TryAcquire() {
		t.Fatalf("expected two slots")
	}
	if g.TryAcquire() {
		t.Fatalf("expected third acquire to fail")
	}
	g.Release()
	if !g.TryAcquire() {
		t.Fatalf("expected slot after release")
	}
	if g.Open() != 2 {
		t.Fatalf("expected 2 open, got %d", g.Open())
	}
}

func TestGateZeroMaxIsUnlimited(t *testing.T) {
	g := NewGate(0)
	for i := 0; i < 100; i++ {
		if !g.TryAcquire() {
			t.Fatalf("unlimited gate refused at %d", i)
		}
	}
}

func TestGateReleaseNeverGoesNegative(t *testing.T) {
	g := NewGate(1)
	g.Release()
	if g.Open() != 0 {
		t.Fatalf("expected 0 open, got %d", g.Open())
	}
	if !g.TryAcquire() {
		t.Fatalf("expected acquire after spurious release")
	}
}
