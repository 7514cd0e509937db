package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/phenomenon0/courtside/config"
	"github.com/phenomenon0/courtside/pkg/feed"
	"github.com/phenomenon0/courtside/pkg/hoops"
	"github.com/phenomenon0/courtside/pkg/logger"
	"github.com/phenomenon0/courtside/pkg/trader/journal"
	"github.com/phenomenon0/courtside/pkg/trader/metrics"
	"github.com/phenomenon0/courtside/pkg/trader/paper"
	"github.com/phenomenon0/courtside/pkg/trader/policy"
	"github.com/phenomenon0/courtside/pkg/trader/session"
	"github.com/phenomenon0/courtside/pkg/trader/streaming"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const venueMetricsInterval = 5 * time.Second

type tradingAgent struct {
	cfg *config.Config
	log *logrus.Entry

	strategy *hoops.Strategy
	policy   *policy.PolicyEngine
	paper    *paper.Engine
	runner   *session.Runner
	metrics  *metrics.TradingMetrics
	hub      *streaming.Hub
	journal  *journal.Journal // nil when disabled

	wsSource *feed.WSSource
	poller   *feed.Poller
}

func newAgent(cfg *config.Config, root *logrus.Logger) (*tradingAgent, error) {
	a := &tradingAgent{
		cfg:     cfg,
		log:     logger.Component(root, "agentd"),
		metrics: metrics.NewTradingMetrics(),
		hub:     streaming.NewHub(logger.Component(root, "streaming")),
	}

	a.policy = policy.NewPolicyEngine(cfg.Policy.Limits())
	a.paper = paper.NewEngine(cfg.Paper.Simulation(), a.policy)

	strategyCfg := cfg.Strategy
	a.strategy = hoops.NewStrategy(&strategyCfg, a.paper, hoops.WithLogger(logger.Component(root, "strategy")))

	opts := []session.Option{
		session.WithTicks(a.paper),
		session.WithObserver(a.metrics),
		session.WithObserver(a.hub),
		session.WithLogger(logger.Component(root, "session")),
	}
	if cfg.Journal.DSN != "" {
		j, err := journal.Open(cfg.Journal.DSN, logger.Component(root, "journal"))
		if err != nil {
			return nil, err
		}
		a.journal = j
		opts = append(opts, session.WithObserver(j))
	}
	a.runner = session.NewRunner(a.strategy, opts...)

	// Venue callbacks run under the engine lock, so they only queue.
	a.paper.OnFill(func(f paper.Fill) {
		a.runner.Submit(session.FillReport{
			Ticker:           f.Ticker,
			Side:             f.Side,
			Price:            f.Price.InexactFloat64(),
			Quantity:         f.Size.InexactFloat64(),
			CapitalRemaining: f.CapitalRemaining.InexactFloat64(),
		})
	})
	a.paper.OnTrade(func(t paper.Trade) {
		a.runner.Submit(session.TradePrint{
			Ticker:   t.Ticker,
			Side:     t.Side,
			Quantity: t.Size.InexactFloat64(),
			Price:    t.Price.InexactFloat64(),
		})
	})
	a.paper.OnOrder(func(o *paper.Order) {
		if o.Status == paper.OrderStatusRejected {
			a.metrics.RecordPolicyViolation(o.Reason)
		}
	})

	if cfg.Feed.WSURL != "" {
		wsCfg := feed.DefaultWSConfig(cfg.Feed.WSURL)
		if len(cfg.Feed.Subscribe) > 0 {
			wsCfg.SubscribeMessage = cfg.Feed.Subscribe
		}
		a.wsSource = feed.NewWSSource(wsCfg, a.runner, logger.Component(root, "feed"))
	}
	if cfg.Feed.PollURL != "" {
		pollCfg := feed.DefaultPollerConfig(cfg.Feed.PollURL)
		pollCfg.Interval = cfg.PollInterval()
		p, err := feed.NewPoller(pollCfg, a.runner, logger.Component(root, "feed"))
		if err != nil {
			a.close()
			return nil, err
		}
		a.poller = p
	}

	return a, nil
}

// run starts every component and blocks until ctx is done or the HTTP
// server fails.
func (a *tradingAgent) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	goRun := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.WithError(err).WithField("task", name).Error("task stopped")
				a.hub.BroadcastError(err, name)
			}
		}()
	}

	goRun("stream", func(ctx context.Context) error {
		a.hub.Run(ctx)
		return nil
	})
	goRun("runner", a.runner.Run)
	goRun("venue-metrics", a.reportVenue)
	if a.wsSource != nil {
		goRun("feed-ws", a.wsSource.Run)
	}
	if a.poller != nil {
		goRun("feed-poll", a.poller.Run)
	}

	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("http server: %w", err)
		}
		close(serverErr)
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case e, ok := <-serverErr:
		if ok {
			err = e
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if e := server.Shutdown(shutdownCtx); e != nil {
		a.log.WithError(e).Warn("HTTP shutdown")
	}

	cancel()
	wg.Wait()
	return err
}

// reportVenue refreshes the venue gauges until ctx is done.
func (a *tradingAgent) reportVenue(ctx context.Context) error {
	ticker := time.NewTicker(venueMetricsInterval)
	defer ticker.Stop()

	for {
		a.updateVenueMetrics()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *tradingAgent) updateVenueMetrics() {
	status := a.policy.Status()
	volume, err := decimal.NewFromString(status.DailyVolume)
	if err != nil {
		volume = decimal.Zero
	}
	a.metrics.UpdateVenue(a.paper.GetBalance(), status.OpenOrders, status.DailyOrders, volume)
}

func (a *tradingAgent) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.WithError(err).Warn("closing journal")
		}
	}
}
