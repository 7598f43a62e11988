// Package scan ranks USDT pairs by how attractive they look for spread
// trading: deep volume, intraday movement, and a funding rate that pays the
// hedge.
package scan

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/haykdb/blacksmith/internal/broker"
)

// minQuoteVolume filters out pairs too thin to trade both legs of.
const minQuoteVolume = 50_000_000

// excluded holds stablecoin pairs and the majors, which never dislocate
// enough to pay fees.
var excluded = map[string]struct{}{
	"USDCUSDT": {},
	"BUSDUSDT": {},
	"TUSDUSDT": {},
	"BTCUSDT":  {},
	"ETHUSDT":  {},
}

// Source provides the market statistics the scanner scores.
type Source interface {
	Day24Tickers(ctx context.Context) ([]broker.Ticker24, error)
	FundingRates(ctx context.Context) (map[string]float64, error)
}

// Candidate is one scored pair.
type Candidate struct {
	Symbol      string
	QuoteVolume float64
	Volatility  float64
	FundingRate float64
	Score       float64
}

// Top returns the n highest-scoring USDT pairs, descending by score.
func Top(ctx context.Context, src Source, n int) ([]Candidate, error) {
	tickers, err := src.Day24Tickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch 24h tickers: %w", err)
	}
	funding, err := src.FundingRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch funding rates: %w", err)
	}

	var out []Candidate
	for _, t := range tickers {
		c, ok := score(t, funding)
		if ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// score converts one ticker into a candidate, dropping pairs that fail the
// eligibility gates.
func score(t broker.Ticker24, funding map[string]float64) (Candidate, bool) {
	if !strings.HasSuffix(t.Symbol, "USDT") {
		return Candidate{}, false
	}
	if _, skip := excluded[t.Symbol]; skip {
		return Candidate{}, false
	}
	rate, listed := funding[t.Symbol]
	if !listed {
		// No perpetual: nothing to hedge against.
		return Candidate{}, false
	}

	volume := parse(t.QuoteVolume)
	last := parse(t.LastPrice)
	high := parse(t.HighPrice)
	low := parse(t.LowPrice)
	if volume < minQuoteVolume || last <= 0 {
		return Candidate{}, false
	}

	vol := (high - low) / last
	if vol <= 0 {
		return Candidate{}, false
	}

	rateAbs := rate
	if rateAbs < 0 {
		rateAbs = -rateAbs
	}
	return Candidate{
		Symbol:      t.Symbol,
		QuoteVolume: volume,
		Volatility:  vol,
		FundingRate: rate,
		Score:       volume * vol * (1 + rateAbs*10),
	}, true
}

func parse(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
