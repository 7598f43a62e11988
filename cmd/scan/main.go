package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/haykdb/blacksmith/internal/broker"
	"github.com/haykdb/blacksmith/internal/config"
	"github.com/haykdb/blacksmith/internal/scan"
	"github.com/haykdb/blacksmith/internal/util"
)

func main() {
	cfgPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	top := flag.Int("top", 10, "number of candidates to print")
	flag.Parse()

	_ = godotenv.Load()
	log := util.NewLogger("info")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Scanner endpoints are public; no credentials needed.
	client := broker.New(cfg.Exchange, broker.Credentials{}, log)
	candidates, err := scan.Top(ctx, client, *top)
	if err != nil {
		log.Fatal().Err(err).Msg("scan failed")
	}

	fmt.Printf("%-12s %14s %8s %9s %16s\n", "SYMBOL", "VOLUME(USDT)", "RANGE%", "FUNDING%", "SCORE")
	for _, c := range candidates {
		fmt.Printf("%-12s %14.0f %8.2f %9.4f %16.0f\n",
			c.Symbol, c.QuoteVolume, c.Volatility*100, c.FundingRate*100, c.Score)
	}
}
