package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"time"

	"github.com/haykdb/blacksmith/internal/config"
	"github.com/haykdb/blacksmith/internal/quote"
	"github.com/haykdb/blacksmith/internal/util"
)

// tickvar streams live quotes for one symbol and estimates the tick-level
// spread noise, which is what the Kalman measurement variance should be
// calibrated against.
func main() {
	cfgPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	symbol := flag.String("symbol", "", "symbol to sample, e.g. FLMUSDT")
	duration := flag.Duration("duration", 5*time.Minute, "how long to sample")
	flag.Parse()

	log := util.NewLogger("info")
	if *symbol == "" {
		log.Fatal().Msg("-symbol is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	cache := quote.NewCache(*symbol, log)
	go cache.RunStream(ctx, quote.StreamURLs{
		Spot:    cfg.Exchange.SpotWSURL,
		Futures: cfg.Exchange.FuturesWSURL,
	})

	sub := cache.Subscribe()
	var (
		spreads  []float64
		last     float64
		haveLast bool
	)
	log.Info().Str("symbol", *symbol).Dur("duration", *duration).Msg("sampling tick spread")

	for {
		select {
		case <-ctx.Done():
			report(spreads)
			return
		case <-sub:
			spotMid, futMid, ok := cache.Mids()
			if !ok {
				continue
			}
			s := futMid - spotMid
			if haveLast && s == last {
				continue
			}
			spreads = append(spreads, s)
			last = s
			haveLast = true
		}
	}
}

// report prints the variance of tick-to-tick spread changes, ignoring moves
// too small to be real repricings.
func report(spreads []float64) {
	var diffs []float64
	for i := 1; i < len(spreads); i++ {
		d := spreads[i] - spreads[i-1]
		if math.Abs(d) >= 1e-5 {
			diffs = append(diffs, d)
		}
	}
	if len(diffs) < 2 {
		fmt.Println("not enough spread changes sampled")
		return
	}

	var mean float64
	for _, d := range diffs {
		mean += d
	}
	mean /= float64(len(diffs))

	var variance float64
	for _, d := range diffs {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(diffs) - 1)

	fmt.Printf("samples:        %d spreads, %d qualifying diffs\n", len(spreads), len(diffs))
	fmt.Printf("tick sigma:     %.8f\n", math.Sqrt(variance))
	fmt.Printf("suggested R:    %.10f\n", variance)
}
