// Package fleet supervises one trading engine per configured symbol. Each
// symbol gets its own broker client, quote cache, and model so that a wedged
// feed or a venue error on one pair never stalls the others.
package fleet

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/haykdb/blacksmith/internal/broker"
	"github.com/haykdb/blacksmith/internal/config"
	"github.com/haykdb/blacksmith/internal/engine"
	"github.com/haykdb/blacksmith/internal/execution"
	"github.com/haykdb/blacksmith/internal/model"
	"github.com/haykdb/blacksmith/internal/quote"
	"github.com/haykdb/blacksmith/internal/risk"
	"github.com/haykdb/blacksmith/internal/util"
)

// ErrNoSymbols means the config has an empty fleet.
var ErrNoSymbols = errors.New("fleet: no symbols configured")

// Supervisor builds and runs the engines.
type Supervisor struct {
	cfg   *config.Config
	creds broker.Credentials
	log   zerolog.Logger
	rec   engine.Recorder
	ntf   engine.Notifier
	gate  *risk.Gate
}

// New wires a supervisor. Recorder and notifier may be nil.
func New(cfg *config.Config, creds broker.Credentials, log zerolog.Logger, rec engine.Recorder, ntf engine.Notifier) *Supervisor {
	return &Supervisor{
		cfg:   cfg,
		creds: creds,
		log:   log,
		rec:   rec,
		ntf:   ntf,
		gate:  risk.NewGate(cfg.Risk.MaxOpenPositions),
	}
}

// Run starts every engine and blocks until ctx cancels and all have stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.cfg.Symbols) == 0 {
		return ErrNoSymbols
	}
	s.log.Info().Int("symbols", len(s.cfg.Symbols)).Msg("fleet starting")

	var wg sync.WaitGroup
	for _, sym := range s.cfg.Symbols {
		wg.Add(1)
		go func(sym config.Symbol) {
			defer wg.Done()
			s.runSymbol(ctx, sym)
		}(sym)
	}
	wg.Wait()
	s.log.Info().Msg("fleet stopped")
	return nil
}

func (s *Supervisor) runSymbol(ctx context.Context, sym config.Symbol) {
	log := util.SymbolLogger(s.log, sym.Name)
	client := broker.New(s.cfg.Exchange, s.creds, log)
	cache := quote.NewCache(sym.Name, log)

	if s.cfg.Feed.UseWebsocket {
		go cache.RunStream(ctx, quote.StreamURLs{
			Spot:    s.cfg.Exchange.SpotWSURL,
			Futures: s.cfg.Exchange.FuturesWSURL,
		})
	} else {
		go cache.RunPolling(ctx, client, s.cfg.Feed.PollInterval(), s.cfg.Feed.UseMidPrice)
	}

	strat := s.cfg.StrategyFor(sym)
	mdl := model.Build(strat.Model, model.Params{
		Lookback:   strat.Lookback,
		EntryZ:     strat.EntryZ,
		ExitZ:      strat.ExitZ,
		FeeRate:    strat.FeeRate,
		AllowShort: strat.AllowShortSpread,
		QBase:      strat.KalmanQBase,
		QBeta:      strat.KalmanQBeta,
		R:          strat.KalmanR,
	})

	eng := engine.New(engine.Options{
		Symbol:    sym.Name,
		Capital:   sym.Capital,
		Strategy:  strat,
		Execution: s.cfg.Execution,
		Streaming: s.cfg.Feed.UseWebsocket,
		Cache:     cache,
		Model:     mdl,
		Executor:  execution.NewExecutor(log, s.cfg.Execution.OrderRetries),
		Venues: engine.Venues{
			Spot:    broker.SpotVenue{C: client},
			Margin:  broker.MarginVenue{C: client},
			Futures: broker.FuturesVenue{C: client},
		},
		Accounts: engine.Accounts{
			Spot:    client,
			Futures: client,
			Margin:  client,
		},
		Limits:   risk.Limits{MaxNotionalPerTrade: s.cfg.Risk.MaxNotionalPerTrade},
		Gate:     s.gate,
		Recorder: s.rec,
		Notifier: s.ntf,
		Log:      log,
	})
	eng.Run(ctx)
}
