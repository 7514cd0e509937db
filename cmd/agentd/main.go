// courtside-agentd runs the in-game basketball trading agent against the
// paper venue. Play-by-play and market data arrive over a websocket feed,
// an HTTP poll feed, or POST /ingest.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phenomenon0/courtside/config"
	"github.com/phenomenon0/courtside/pkg/logger"

	"github.com/sirupsen/logrus"
)

var (
	// Flags override the config file.
	configPath = flag.String("config", "", "Path to YAML config (defaults only when empty)")
	httpAddr   = flag.String("http", "", "HTTP server address")
	wsURL      = flag.String("feed-ws", "", "Websocket feed URL")
	pollURL    = flag.String("feed-poll", "", "HTTP poll feed URL")
	journalDSN = flag.String("journal", "", "Journal SQLite path")
	noJournal  = flag.Bool("no-journal", false, "Disable the journal")
	balance    = flag.Float64("balance", 0, "Initial paper balance")
	verbose    = flag.Bool("verbose", false, "Debug logging")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	root, err := logger.Init(cfg.Log.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Component(root, "agentd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newAgent(cfg, root)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize agent")
	}
	defer a.close()

	log.WithField("http", cfg.HTTP.Addr).Info("starting courtside agent")
	if err := a.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("agent stopped")
	}

	stats := a.paper.GetStats()
	log.WithFields(logrus.Fields{
		"pnl":      stats.TotalPnL.StringFixed(2),
		"trades":   stats.TotalTrades,
		"win_rate": stats.WinRate.StringFixed(3),
		"game_id":  a.strategy.GameID(),
	}).Info("shutdown complete")
}

func applyFlags(cfg *config.Config) {
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}
	if *wsURL != "" {
		cfg.Feed.WSURL = *wsURL
	}
	if *pollURL != "" {
		cfg.Feed.PollURL = *pollURL
	}
	if *journalDSN != "" {
		cfg.Journal.DSN = *journalDSN
	}
	if *noJournal {
		cfg.Journal.DSN = ""
	}
	if *balance > 0 {
		cfg.Paper.InitialBalance = *balance
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
}
