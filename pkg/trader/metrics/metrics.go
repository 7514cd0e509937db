// Package metrics provides Prometheus metrics for the trading agent.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/phenomenon0/courtside/pkg/hoops"
	"github.com/phenomenon0/courtside/pkg/trader/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// TradingMetrics collects and exposes strategy and venue metrics. It
// implements session.Observer and session.EventObserver.
type TradingMetrics struct {
	registry *prometheus.Registry

	// Order metrics
	OrdersTotal   *prometheus.CounterVec
	OrderNotional *prometheus.HistogramVec

	// Signal metrics
	SignalsTotal *prometheus.CounterVec
	SignalEdge   *prometheus.HistogramVec

	// Fill metrics
	FillsTotal *prometheus.CounterVec
	FillVolume *prometheus.CounterVec

	// Game metrics
	ExitsTotal  *prometheus.CounterVec
	GamesTotal  prometheus.Counter
	GamePnL     prometheus.Histogram
	ModelProb   prometheus.Gauge
	MarketProb  prometheus.Gauge
	MarketPrice prometheus.Gauge
	Momentum    *prometheus.GaugeVec
	TimeLeft    prometheus.Gauge

	// Portfolio metrics
	Position       prometheus.Gauge
	Cash           prometheus.Gauge
	PortfolioValue prometheus.Gauge
	PnL            prometheus.Gauge

	// Pipeline metrics
	EventsTotal  *prometheus.CounterVec
	EventLatency *prometheus.HistogramVec

	// Venue metrics
	PolicyViolations *prometheus.CounterVec
	OpenOrders       prometheus.Gauge
	DailyOrdersUsed  prometheus.Gauge
	DailyVolumeUsed  prometheus.Gauge
	VenueBalance     prometheus.Gauge
}

var (
	_ session.Observer      = (*TradingMetrics)(nil)
	_ session.EventObserver = (*TradingMetrics)(nil)
)

// NewTradingMetrics creates a new metrics collector on its own registry.
func NewTradingMetrics() *TradingMetrics {
	registry := prometheus.NewRegistry()

	tm := &TradingMetrics{
		registry: registry,

		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_orders_total",
				Help: "Orders sent to the venue",
			},
			[]string{"side", "type", "status"},
		),
		OrderNotional: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtside_order_notional",
				Help:    "Order notional (quantity x price)",
				Buckets: []float64{100, 500, 1000, 2500, 5000, 10000, 20000, 50000, 100000},
			},
			[]string{"side"},
		),

		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_signals_total",
				Help: "Edges found by the decision logic",
			},
			[]string{"side", "placed"},
		),
		SignalEdge: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtside_signal_edge",
				Help:    "Probability edge of each signal",
				Buckets: []float64{0.03, 0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 1},
			},
			[]string{"side"},
		),

		FillsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_fills_total",
				Help: "Fills applied to the portfolio",
			},
			[]string{"side"},
		),
		FillVolume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_fill_volume",
				Help: "Filled notional",
			},
			[]string{"side"},
		),

		ExitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_exits_total",
				Help: "Liquidations by reason",
			},
			[]string{"reason"},
		),
		GamesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtside_games_total",
			Help: "Games completed",
		}),
		GamePnL: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "courtside_game_pnl",
			Help:    "PnL at exit per game",
			Buckets: []float64{-50000, -20000, -5000, -1000, 0, 1000, 5000, 20000, 55000, 80000},
		}),
		ModelProb: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_model_probability",
			Help: "Model probability of a home win",
		}),
		MarketProb: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_market_probability",
			Help: "Market-implied probability of a home win",
		}),
		MarketPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_market_price",
			Help: "Last observed market price",
		}),
		Momentum: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "courtside_momentum",
				Help: "Decayed momentum per team",
			},
			[]string{"team"},
		),
		TimeLeft: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_time_remaining_seconds",
			Help: "Game seconds remaining",
		}),

		Position: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_position",
			Help: "Current position in shares",
		}),
		Cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_cash",
			Help: "Strategy cash",
		}),
		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_portfolio_value",
			Help: "Cash plus marked position",
		}),
		PnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_pnl",
			Help: "Portfolio value minus baseline capital",
		}),

		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_events_total",
				Help: "Events processed by kind",
			},
			[]string{"kind"},
		),
		EventLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtside_event_latency_seconds",
				Help:    "Strategy time spent per event",
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15), // 10us to ~160ms
			},
			[]string{"kind"},
		),

		PolicyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_policy_violations_total",
				Help: "Orders refused by the venue",
			},
			[]string{"reason"},
		),
		OpenOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_open_orders",
			Help: "Resting orders at the venue",
		}),
		DailyOrdersUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_daily_orders_used",
			Help: "Orders placed today",
		}),
		DailyVolumeUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_daily_volume_used",
			Help: "Notional traded today",
		}),
		VenueBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_venue_balance",
			Help: "Cash balance held at the venue",
		}),
	}

	tm.registerAll()

	return tm
}

func (tm *TradingMetrics) registerAll() {
	tm.registry.MustRegister(
		tm.OrdersTotal,
		tm.OrderNotional,
		tm.SignalsTotal,
		tm.SignalEdge,
		tm.FillsTotal,
		tm.FillVolume,
		tm.ExitsTotal,
		tm.GamesTotal,
		tm.GamePnL,
		tm.ModelProb,
		tm.MarketProb,
		tm.MarketPrice,
		tm.Momentum,
		tm.TimeLeft,
		tm.Position,
		tm.Cash,
		tm.PortfolioValue,
		tm.PnL,
		tm.EventsTotal,
		tm.EventLatency,
		tm.PolicyViolations,
		tm.OpenOrders,
		tm.DailyOrdersUsed,
		tm.DailyVolumeUsed,
		tm.VenueBalance,
	)
}

// Registry returns the prometheus registry.
func (tm *TradingMetrics) Registry() *prometheus.Registry {
	return tm.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (tm *TradingMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(tm.registry, promhttp.HandlerOpts{Registry: tm.registry})
}

// --- session.Observer ---

// OnSignal records a signal and its edge.
func (tm *TradingMetrics) OnSignal(s hoops.Signal) {
	placed := "false"
	if s.Placed {
		placed = "true"
	}
	tm.SignalsTotal.WithLabelValues(s.Side.String(), placed).Inc()
	tm.SignalEdge.WithLabelValues(s.Side.String()).Observe(s.Edge)
}

// OnOrder records an order attempt.
func (tm *TradingMetrics) OnOrder(o hoops.Order) {
	status := "accepted"
	if !o.Accepted {
		status = "rejected"
	}
	tm.RecordOrder(o.Side.String(), o.Kind.String(), status, o.Quantity*o.Price)
}

// OnFill records a fill.
func (tm *TradingMetrics) OnFill(f hoops.Fill) {
	side := f.Side.String()
	tm.FillsTotal.WithLabelValues(side).Inc()
	tm.FillVolume.WithLabelValues(side).Add(f.Quantity * f.Price)
}

// OnExit records a liquidation and the end of a game.
func (tm *TradingMetrics) OnExit(x hoops.Exit) {
	tm.ExitsTotal.WithLabelValues(x.Reason.String()).Inc()
	tm.GamesTotal.Inc()
	tm.GamePnL.Observe(x.PnL)
}

// OnSnapshot updates the state gauges.
func (tm *TradingMetrics) OnSnapshot(s hoops.Snapshot) {
	tm.ModelProb.Set(s.ModelProb)
	tm.MarketProb.Set(s.MarketProb)
	tm.MarketPrice.Set(s.Portfolio.MarketPrice)
	tm.Momentum.WithLabelValues(hoops.TeamHome.String()).Set(s.Game.HomeMomentum)
	tm.Momentum.WithLabelValues(hoops.TeamAway.String()).Set(s.Game.AwayMomentum)
	tm.TimeLeft.Set(s.Game.TimeRemaining)
	tm.Position.Set(s.Portfolio.Position)
	tm.Cash.Set(s.Portfolio.Cash)
	tm.PortfolioValue.Set(s.Portfolio.PortfolioValue)
	tm.PnL.Set(s.PnL)
}

// OnEvent records per-event counts and latency.
func (tm *TradingMetrics) OnEvent(ev session.Event, took time.Duration) {
	kind := ev.Kind()
	tm.EventsTotal.WithLabelValues(kind).Inc()
	tm.EventLatency.WithLabelValues(kind).Observe(took.Seconds())
}

// --- Helper methods for recording metrics ---

// RecordOrder records an order placement.
func (tm *TradingMetrics) RecordOrder(side, orderType, status string, notional float64) {
	tm.OrdersTotal.WithLabelValues(side, orderType, status).Inc()
	if notional > 0 {
		tm.OrderNotional.WithLabelValues(side).Observe(notional)
	}
}

// RecordPolicyViolation records an order the venue refused.
func (tm *TradingMetrics) RecordPolicyViolation(reason string) {
	tm.PolicyViolations.WithLabelValues(reason).Inc()
}

// UpdateVenue updates the venue gauges.
func (tm *TradingMetrics) UpdateVenue(balance decimal.Decimal, openOrders, dailyOrders int, dailyVolume decimal.Decimal) {
	tm.VenueBalance.Set(DecimalToFloat64(balance))
	tm.OpenOrders.Set(float64(openOrders))
	tm.DailyOrdersUsed.Set(float64(dailyOrders))
	tm.DailyVolumeUsed.Set(DecimalToFloat64(dailyVolume))
}

// --- Decimal helpers ---

// DecimalToFloat64 converts decimal.Decimal to float64 for metrics.
func DecimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Global instance for convenience
var defaultMetrics *TradingMetrics
var once sync.Once

// Default returns the default global metrics instance.
func Default() *TradingMetrics {
	once.Do(func() {
		defaultMetrics = NewTradingMetrics()
	})
	return defaultMetrics
}
