// Package engine runs the per-symbol trading loops: a model loop that feeds
// quote midpoints into the spread estimator, and a signal loop that turns
// signals into hedged entries and exits.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/haykdb/blacksmith/internal/broker"
	"github.com/haykdb/blacksmith/internal/config"
	"github.com/haykdb/blacksmith/internal/execution"
	"github.com/haykdb/blacksmith/internal/ledger"
	"github.com/haykdb/blacksmith/internal/metrics"
	"github.com/haykdb/blacksmith/internal/model"
	"github.com/haykdb/blacksmith/internal/quote"
	"github.com/haykdb/blacksmith/internal/risk"
)

const (
	// quoteRetryDelay spaces retries while a leg's book is still empty.
	quoteRetryDelay = 300 * time.Millisecond
	// modelWaitTimeout bounds how long the streaming model loop waits for a
	// tick before re-checking for shutdown.
	modelWaitTimeout = 2 * time.Second
	sweepBase        = time.Second
	sweepCap         = 30 * time.Second
	dust             = 1e-6
)

// Recorder receives position events for persistence: one row per open and
// one per close.
type Recorder interface {
	RecordOpen(pos ledger.Position)
	Record(res ledger.Result)
}

// Notifier receives position events for operator alerts.
type Notifier interface {
	NotifyOpen(ctx context.Context, pos ledger.Position)
	NotifyClose(ctx context.Context, res ledger.Result)
}

// MarginFunder manages the borrow backing a short spot leg.
type MarginFunder interface {
	MarginLoan(ctx context.Context, asset string, amount float64) error
	MarginRepay(ctx context.Context, asset string, amount float64) error
	MarginBorrowed(ctx context.Context, asset string) (float64, error)
}

// Venues groups the three order books one hedge can touch.
type Venues struct {
	Spot    execution.Venue
	Margin  execution.Venue
	Futures execution.Venue
}

// Accounts groups the account read/funding surfaces the engine needs beyond
// order placement. Margin may be nil when short spreads are disabled.
type Accounts struct {
	Spot    execution.SpotAccount
	Futures execution.FuturesAccount
	Margin  MarginFunder
}

// Options wires one engine.
type Options struct {
	Symbol    string
	Capital   float64
	Strategy  config.Strategy
	Execution config.Execution
	Streaming bool

	Cache    *quote.Cache
	Model    model.Model
	Executor *execution.Executor
	Venues   Venues
	Accounts Accounts
	Limits   risk.Limits
	Gate     *risk.Gate
	Recorder Recorder
	Notifier Notifier
	Log      zerolog.Logger
}

// Engine trades one symbol. All position state is owned by the signal loop;
// the model loop only feeds the estimator.
type Engine struct {
	log     zerolog.Logger
	symbol  string
	capital float64

	strat     config.Strategy
	execCfg   config.Execution
	streaming bool

	cache    *quote.Cache
	mdl      model.Model
	book     *ledger.Book
	exec     *execution.Executor
	venues   Venues
	accounts Accounts
	limits   risk.Limits
	gate     *risk.Gate
	rec      Recorder
	notifier Notifier

	lastEntryAt time.Time
	openedAt    time.Time
	realized    float64
	warmedUp    bool

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) bool
}

// New builds an engine from its wiring.
func New(o Options) *Engine {
	return &Engine{
		log:       o.Log.With().Str("symbol", o.Symbol).Logger(),
		symbol:    o.Symbol,
		capital:   o.Capital,
		strat:     o.Strategy,
		execCfg:   o.Execution,
		streaming: o.Streaming,
		cache:     o.Cache,
		mdl:       o.Model,
		book:      ledger.NewBook(o.Symbol, o.Strategy.FeeRate),
		exec:      o.Executor,
		venues:    o.Venues,
		accounts:  o.Accounts,
		limits:    o.Limits,
		gate:      o.Gate,
		rec:       o.Recorder,
		notifier:  o.Notifier,
		now:       time.Now,
		wait:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run starts both loops and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info().
		Str("model", e.strat.Model).
		Float64("capital", e.capital).
		Bool("streaming", e.streaming).
		Msg("engine starting")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.modelLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.signalLoop(ctx)
	}()
	wg.Wait()
	e.log.Info().Msg("engine stopped")
}

// modelLoop feeds midpoints into the estimator. In streaming mode it wakes on
// cache changes so the lookback window is tick-based; in polling mode it
// samples on the configured cadence.
func (e *Engine) modelLoop(ctx context.Context) {
	var sub <-chan struct{}
	if e.streaming {
		sub = e.cache.Subscribe()
	}
	for {
		if e.streaming {
			t := time.NewTimer(modelWaitTimeout)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-sub:
				t.Stop()
			case <-t.C:
			}
		} else if !e.wait(ctx, e.strat.ModelSleep()) {
			return
		}
		if spotMid, futMid, ok := e.cache.Mids(); ok {
			e.mdl.Update(spotMid, futMid)
		}
	}
}

// signalLoop evaluates the model and acts on its signal. In streaming mode
// it also wakes early on quote changes so exits react to the book, not just
// the cadence.
func (e *Engine) signalLoop(ctx context.Context) {
	var sub <-chan struct{}
	if e.streaming {
		sub = e.cache.Subscribe()
	}
	for {
		d := e.step(ctx)
		if !e.waitTick(ctx, sub, d) {
			return
		}
	}
}

func (e *Engine) waitTick(ctx context.Context, sub <-chan struct{}, d time.Duration) bool {
	if sub == nil {
		return e.wait(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-sub:
		return true
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// step runs one evaluation cycle and returns the delay before the next.
func (e *Engine) step(ctx context.Context) time.Duration {
	if !e.mdl.Ready() {
		return e.strat.TradeSleep()
	}
	if !e.warmedUp {
		e.warmedUp = true
		e.log.Info().Msg("model warmed up, trading enabled")
	}

	q := e.cache.Snapshot()
	if !q.Ready() {
		return quoteRetryDelay
	}
	spotMid := (q.SpotBid + q.SpotAsk) / 2
	futMid := (q.FutBid + q.FutAsk) / 2
	sig := e.mdl.Signal(spotMid, futMid)

	if e.book.IsOpen() {
		if sig == model.Exit {
			e.maybeExit(ctx, q)
		}
		return e.strat.TradeSleep()
	}
	if sig.Entry() {
		e.maybeEnter(ctx, sig, q, futMid, spotMid)
	}
	return e.strat.TradeSleep()
}

func (e *Engine) maybeEnter(ctx context.Context, sig model.Signal, q quote.Quote, futMid, spotMid float64) {
	if !e.lastEntryAt.IsZero() && e.now().Sub(e.lastEntryAt) < e.execCfg.MinTradeInterval() {
		return
	}
	if !e.mdl.EconomicViable(q.SpotAsk, q.FutBid) {
		e.log.Debug().Str("signal", sig.String()).Msg("spread does not cover fees, skipping entry")
		return
	}
	if !model.EntryViable(q.SpotAsk, q.FutBid) {
		e.log.Debug().Msg("futures bid not above spot ask, skipping entry")
		return
	}
	if sig == model.EnterShort && e.accounts.Margin == nil {
		e.log.Warn().Msg("short signal without margin account, skipping")
		return
	}

	qty := execution.AdjustQuantity(e.capital/futMid, 1e-6)
	if qty <= 0 {
		return
	}
	if notional := qty * (spotMid + futMid); !e.limits.Allow(notional) {
		e.log.Warn().Float64("notional", notional).Msg("entry blocked by notional cap")
		return
	}
	if e.gate != nil && !e.gate.TryAcquire() {
		e.log.Debug().Msg("entry blocked, fleet position cap reached")
		return
	}

	side := ledger.Long
	spotPx, futPx := q.SpotAsk, q.FutBid
	if sig == model.EnterShort {
		side = ledger.Short
		spotPx, futPx = q.SpotBid, q.FutAsk
	}

	// Throttle re-attempts from the moment we commit to sending orders.
	e.lastEntryAt = e.now()

	spotErr, futErr := e.placeEntryLegs(ctx, side, qty)
	if spotErr != nil || futErr != nil {
		e.log.Error().
			AnErr("spot", spotErr).
			AnErr("futures", futErr).
			Msg("entry legs incomplete, flattening")
		if spotErr == nil || futErr == nil {
			e.liquidate(ctx, side)
		}
		e.releaseGate()
		return
	}

	if err := e.book.Open(side, spotPx, futPx, qty); err != nil {
		e.log.Error().Err(err).Msg("ledger open failed")
		e.releaseGate()
		return
	}
	e.openedAt = e.now()
	metrics.PositionsOpen.WithLabelValues(e.symbol).Set(1)
	e.log.Info().
		Str("side", string(side)).
		Float64("qty", qty).
		Float64("spot", spotPx).
		Float64("futures", futPx).
		Msg("position opened")
	if e.rec != nil {
		e.rec.RecordOpen(e.book.Position())
	}
	if e.notifier != nil {
		e.notifier.NotifyOpen(ctx, e.book.Position())
	}
}

// placeEntryLegs sends both entry orders concurrently so the hedge legs fill
// as close together as the venue allows.
func (e *Engine) placeEntryLegs(ctx context.Context, side ledger.Side, qty float64) (spotErr, futErr error) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if side == ledger.Long {
			spotErr = e.exec.Submit(ctx, e.venues.Spot, e.symbol, execution.Buy, qty, false)
			return
		}
		asset := broker.BaseAsset(e.symbol)
		if err := e.accounts.Margin.MarginLoan(ctx, asset, qty); err != nil {
			spotErr = err
			return
		}
		spotErr = e.exec.Submit(ctx, e.venues.Margin, e.symbol, execution.Sell, qty, false)
	}()
	go func() {
		defer wg.Done()
		futSide := execution.Sell
		if side == ledger.Short {
			futSide = execution.Buy
		}
		futErr = e.exec.Submit(ctx, e.venues.Futures, e.symbol, futSide, qty, false)
	}()
	wg.Wait()
	return spotErr, futErr
}

func (e *Engine) maybeExit(ctx context.Context, q quote.Quote) {
	held := e.now().Sub(e.openedAt)
	if held < e.execCfg.MinHolding() {
		return
	}
	pos := e.book.Position()
	if e.execCfg.UseBookBasedExit {
		spotPx, futPx := exitPrices(pos.Side, q)
		if e.book.MarkPnL(spotPx, futPx) < 0 && held < e.execCfg.ExitTimeout() {
			return
		}
	}
	e.closePosition(ctx)
}

// exitPrices returns the crossing prices for unwinding each leg.
func exitPrices(side ledger.Side, q quote.Quote) (spotPx, futPx float64) {
	if side == ledger.Long {
		return q.SpotBid, q.FutAsk
	}
	return q.SpotAsk, q.FutBid
}

func (e *Engine) closePosition(ctx context.Context) {
	pos := e.book.Position()

	spotErr, futErr := e.closeLegs(ctx, pos.Side)
	if spotErr != nil || futErr != nil {
		e.log.Error().
			AnErr("spot", spotErr).
			AnErr("futures", futErr).
			Msg("close legs incomplete, entering liquidation sweep")
		if !e.liquidate(ctx, pos.Side) {
			return
		}
	}

	spotPx, futPx := exitPrices(pos.Side, e.cache.Snapshot())
	res, err := e.book.Close(spotPx, futPx)
	if err != nil {
		e.log.Error().Err(err).Msg("ledger close failed")
		return
	}

	e.realized += res.NetPnL
	e.releaseGate()
	metrics.PositionsOpen.WithLabelValues(e.symbol).Set(0)
	metrics.TradesClosedTotal.WithLabelValues(e.symbol, string(res.Side)).Inc()
	metrics.RealizedPnL.WithLabelValues(e.symbol).Set(e.realized)
	e.log.Info().
		Str("side", string(res.Side)).
		Float64("net_pnl", res.NetPnL).
		Float64("hold_min", res.HoldMinutes).
		Msg("position closed")

	if e.rec != nil {
		e.rec.Record(res)
	}
	if e.notifier != nil {
		e.notifier.NotifyClose(ctx, res)
	}
}

// closeLegs unwinds both legs concurrently.
func (e *Engine) closeLegs(ctx context.Context, side ledger.Side) (spotErr, futErr error) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		spotErr = e.closeSpotLeg(ctx, side)
	}()
	go func() {
		defer wg.Done()
		futErr = e.exec.CloseFutures(ctx, e.venues.Futures, e.accounts.Futures, e.symbol)
	}()
	wg.Wait()
	return spotErr, futErr
}

// closeSpotLeg unwinds the cash leg. A long spread sells the held balance; a
// short spread buys back the borrow and repays the loan.
func (e *Engine) closeSpotLeg(ctx context.Context, side ledger.Side) error {
	if side == ledger.Long {
		return e.exec.CloseSpot(ctx, e.venues.Spot, e.accounts.Spot, e.symbol)
	}
	asset := broker.BaseAsset(e.symbol)
	borrowed, err := e.accounts.Margin.MarginBorrowed(ctx, asset)
	if err != nil {
		return err
	}
	if borrowed < dust {
		return nil
	}
	if err := e.exec.Submit(ctx, e.venues.Margin, e.symbol, execution.Buy, borrowed, false); err != nil {
		return err
	}
	return e.accounts.Margin.MarginRepay(ctx, asset, borrowed)
}

// liquidate retries both leg closes until the book is flat or ctx ends. A
// half-open hedge is directional exposure, so this never gives up on its own.
func (e *Engine) liquidate(ctx context.Context, side ledger.Side) bool {
	backoff := sweepBase
	for attempt := 1; ; attempt++ {
		spotErr, futErr := e.closeLegs(ctx, side)
		if spotErr == nil && futErr == nil {
			e.log.Info().Int("attempts", attempt).Msg("liquidation sweep flattened position")
			return true
		}
		e.log.Warn().
			Int("attempt", attempt).
			AnErr("spot", spotErr).
			AnErr("futures", futErr).
			Msg("liquidation sweep retrying")
		if !e.wait(ctx, backoff) {
			return false
		}
		backoff *= 2
		if backoff > sweepCap {
			backoff = sweepCap
		}
	}
}

func (e *Engine) releaseGate() {
	if e.gate != nil {
		e.gate.Release()
	}
}

// Book exposes the position ledger for diagnostics and tests.
func (e *Engine) Book() *ledger.Book { return e.book }
