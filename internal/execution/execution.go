// Package execution handles order lifecycle against venue quantity and
// notional constraints, with shrinking-size retries on transient rejections.
package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/haykdb/blacksmith/internal/broker"
	"github.com/haykdb/blacksmith/internal/metrics"
)

// Side enumerates order directions.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Venue is one order book an executor can place market orders on. The broker
// package provides spot, margin, and futures adapters.
type Venue interface {
	Name() string
	Filters(ctx context.Context, symbol string) (broker.Filters, error)
	PlaceMarket(ctx context.Context, symbol, side string, qty float64, reduceOnly bool) error
}

// FuturesAccount reads the live futures position for the close helper.
type FuturesAccount interface {
	FuturesPositionAmt(ctx context.Context, symbol string) (float64, error)
}

// SpotAccount reads spot balances and marks for the close helper.
type SpotAccount interface {
	SpotBaseBalance(ctx context.Context, asset string) (float64, error)
	SpotBidPrice(ctx context.Context, symbol string) (float64, error)
}

// AdjustQuantity rounds a requested quantity down to the nearest multiple of
// the venue step size, never up, with display precision derived from the
// step's order of magnitude. The small epsilon keeps exact multiples from
// being floored away by float division noise.
func AdjustQuantity(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	r := qty / step
	steps := math.Floor(r + 1e-9 + math.Abs(r)*1e-12)
	if steps <= 0 {
		return 0
	}
	adj := steps * step
	prec := 0
	if e := math.Floor(math.Log10(step)); e < 0 {
		prec = int(-e)
	}
	pow := math.Pow(10, float64(prec))
	return math.Round(adj*pow) / pow
}

// Executor submits market orders, adapting quantity to venue filters and
// retrying with halved size on quantity/price filter rejections.
type Executor struct {
	log     zerolog.Logger
	retries int

	mu      sync.Mutex
	filters map[string]broker.Filters

	// wait is swappable in tests to avoid real backoff sleeps.
	wait func(ctx context.Context, d time.Duration)
}

// NewExecutor builds an executor with the given retry budget per submit.
func NewExecutor(log zerolog.Logger, retries int) *Executor {
	if retries <= 0 {
		retries = 3
	}
	return &Executor{
		log:     log,
		retries: retries,
		filters: make(map[string]broker.Filters),
		wait:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// filtersFor fetches and caches the symbol filters per venue.
func (e *Executor) filtersFor(ctx context.Context, venue Venue, symbol string) (broker.Filters, error) {
	key := venue.Name() + ":" + symbol
	e.mu.Lock()
	if f, ok := e.filters[key]; ok {
		e.mu.Unlock()
		return f, nil
	}
	e.mu.Unlock()

	f, err := venue.Filters(ctx, symbol)
	if err != nil {
		return broker.Filters{}, fmt.Errorf("fetch %s filters: %w", venue.Name(), err)
	}
	e.mu.Lock()
	e.filters[key] = f
	e.mu.Unlock()
	return f, nil
}

// Submit places one market order on the venue. On quantity/price filter
// rejections the quantity is halved and the order retried with backoff, up to
// the retry budget. A reduce-only rejection with nothing to reduce counts as
// success. Any other rejection fails immediately.
func (e *Executor) Submit(ctx context.Context, venue Venue, symbol string, side Side, qty float64, reduceOnly bool) error {
	flt, err := e.filtersFor(ctx, venue, symbol)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < e.retries; attempt++ {
		adj := AdjustQuantity(qty, flt.StepSize)
		if adj < flt.MinQty {
			metrics.OrderFailuresTotal.WithLabelValues(symbol, venue.Name()).Inc()
			return fmt.Errorf("quantity %v below venue minimum %v on %s", adj, flt.MinQty, venue.Name())
		}

		err := venue.PlaceMarket(ctx, symbol, string(side), adj, reduceOnly)
		if err == nil {
			metrics.OrdersTotal.WithLabelValues(symbol, venue.Name(), string(side)).Inc()
			e.log.Info().
				Str("venue", venue.Name()).
				Str("side", string(side)).
				Float64("qty", adj).
				Bool("reduce_only", reduceOnly).
				Msg("order filled")
			return nil
		}

		var apiErr *broker.APIError
		if errors.As(err, &apiErr) {
			if apiErr.IsReduceOnlyReject() {
				// Nothing left to reduce: an idempotent close.
				e.log.Info().Str("venue", venue.Name()).Msg("reduce-only no-op, treating as closed")
				return nil
			}
			if apiErr.IsFilterViolation() {
				metrics.OrderRetriesTotal.WithLabelValues(symbol, venue.Name()).Inc()
				e.log.Warn().
					Str("venue", venue.Name()).
					Int("code", apiErr.Code).
					Float64("qty", adj).
					Int("attempt", attempt+1).
					Msg("filter rejection, halving quantity")
				qty = adj / 2
				e.wait(ctx, time.Duration(math.Pow(1.5, float64(attempt))*float64(time.Second)))
				continue
			}
		}

		// Hard rejection: retrying blind is unsafe.
		metrics.OrderFailuresTotal.WithLabelValues(symbol, venue.Name()).Inc()
		return fmt.Errorf("place %s %s order: %w", venue.Name(), side, err)
	}

	metrics.OrderFailuresTotal.WithLabelValues(symbol, venue.Name()).Inc()
	return fmt.Errorf("order retry budget exhausted after %d attempts on %s", e.retries, venue.Name())
}
