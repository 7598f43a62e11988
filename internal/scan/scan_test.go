package scan

import (
	"context"
	"testing"

	"github.com/haykdb/blacksmith/internal/broker"
)

type stubSource struct {
	tickers []broker.Ticker24
	funding map[string]float64
}

func (s *stubSource) Day24Tickers(context.Context) ([]broker.Ticker24, error) {
	return s.tickers, nil
}

func (s *stubSource) FundingRates(context.Context) (map[string]float64, error) {
	return s.funding, nil
}

func ticker(symbol, last, high, low, volume string) broker.Ticker24 {
	return broker.Ticker24{
		Symbol:      symbol,
		LastPrice:   last,
		HighPrice:   high,
		LowPrice:    low,
		QuoteVolume: volume,
	}
}

func TestTopFiltersAndRanks(t *testing.T) {
	src := &stubSource{
		tickers: []broker.Ticker24{
			// 10% range, big funding: should win.
			ticker("FLMUSDT", "1.00", "1.05", "0.95", "90000000"),
			// 5% range, no funding edge.
			ticker("CHRUSDT", "2.00", "2.05", "1.95", "90000000"),
			// Excluded stable pair despite huge numbers.
			ticker("USDCUSDT", "1.00", "1.10", "0.90", "900000000"),
			// Excluded major.
			ticker("BTCUSDT", "50000", "55000", "45000", "900000000"),
			// Below the volume floor.
			ticker("OGNUSDT", "0.5", "0.6", "0.4", "1000000"),
			// Not a USDT pair.
			ticker("ETHBTC", "0.05", "0.06", "0.04", "900000000"),
			// No perpetual listed.
			ticker("NOPERPUSDT", "1.0", "1.1", "0.9", "90000000"),
		},
		funding: map[string]float64{
			"FLMUSDT":  0.01,
			"CHRUSDT":  0,
			"USDCUSDT": 0,
			"BTCUSDT":  0.001,
			"OGNUSDT":  0.02,
		},
	}

	got, err := Top(context.Background(), src, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %v", got)
	}
	if got[0].Symbol != "FLMUSDT" || got[1].Symbol != "CHRUSDT" {
		t.Fatalf("unexpected order %v", got)
	}
	// volume * ((high-low)/last) * (1 + |funding|*10)
	want := 90000000 * ((1.05 - 0.95) / 1.00) * (1 + 0.01*10)
	if diff := got[0].Score - want; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("score %v, want %v", got[0].Score, want)
	}
}

func TestTopTruncatesToN(t *testing.T) {
	src := &stubSource{
		tickers: []broker.Ticker24{
			ticker("AUSDT", "1", "1.1", "0.9", "60000000"),
			ticker("BUSDT", "1", "1.2", "0.8", "60000000"),
			ticker("CUSDT", "1", "1.3", "0.7", "60000000"),
		},
		funding: map[string]float64{"AUSDT": 0, "BUSDT": 0, "CUSDT": 0},
	}

	got, err := Top(context.Background(), src, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
	if got[0].Symbol != "CUSDT" {
		t.Fatalf("expected widest range first, got %v", got[0].Symbol)
	}
}
