package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/haykdb/blacksmith/internal/broker"
	"github.com/haykdb/blacksmith/internal/config"
	"github.com/haykdb/blacksmith/internal/engine"
	"github.com/haykdb/blacksmith/internal/fleet"
	"github.com/haykdb/blacksmith/internal/history"
	"github.com/haykdb/blacksmith/internal/metrics"
	"github.com/haykdb/blacksmith/internal/notify"
	"github.com/haykdb/blacksmith/internal/util"
)

func main() {
	cfgPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		bootLog := util.NewLogger("info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	creds := broker.Credentials{
		Key:    os.Getenv("BINANCE_API_KEY"),
		Secret: os.Getenv("BINANCE_API_SECRET"),
	}
	if creds.Key == "" || creds.Secret == "" {
		log.Fatal().Msg("BINANCE_API_KEY and BINANCE_API_SECRET must be set")
	}

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var sinks []history.Sink
	if cfg.History.CSVPathTemplate != "" {
		sinks = append(sinks, history.NewCSVSink(cfg.History.CSVPathTemplate))
	}
	if cfg.History.PostgresDSN != "" {
		pg, err := history.NewPostgresSink(cfg.History.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open trade history database")
		}
		sinks = append(sinks, pg)
	}
	rec := history.NewRecorder(cfg.History, log, sinks...)
	recDone := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(recDone)
	}()

	var notifier engine.Notifier
	if cfg.Telegram.Enabled {
		token := os.Getenv("TELEGRAM_BOT_TOKEN")
		chatID := os.Getenv("TELEGRAM_CHAT_ID")
		if token == "" || chatID == "" {
			log.Fatal().Msg("telegram enabled but TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID missing")
		}
		notifier = notify.TradeAlerts{T: notify.NewTelegram(token, chatID, log)}
	}

	sup := fleet.New(cfg, creds, log, rec, notifier)
	if err := sup.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("fleet failed")
	}

	// Engines are down; let the recorder flush the remaining rows.
	<-recDone
	log.Info().Msg("shutdown complete")
}
