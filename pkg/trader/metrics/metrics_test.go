package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phenomenon0/courtside/pkg/hoops"
	"github.com/phenomenon0/courtside/pkg/trader/session"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, tm *TradingMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	tm.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserverMetrics(t *testing.T) {
	tm := NewTradingMetrics()

	tm.OnSignal(hoops.Signal{Side: hoops.SideBuy, Edge: 0.05, Placed: true})
	tm.OnOrder(hoops.Order{Kind: hoops.OrderLimit, Side: hoops.SideBuy, Quantity: 100, Price: 55, Accepted: true})
	tm.OnOrder(hoops.Order{Kind: hoops.OrderMarket, Side: hoops.SideSell, Quantity: 100, Accepted: false})
	tm.OnFill(hoops.Fill{Side: hoops.SideBuy, Quantity: 100, Price: 55})
	tm.OnExit(hoops.Exit{Reason: hoops.ExitGameEnd, PnL: 1200})
	tm.OnEvent(session.BookUpdate{}, 3*time.Millisecond)
	tm.OnSnapshot(hoops.Snapshot{
		ModelProb:  0.57,
		MarketProb: 0.05,
		PnL:        -20,
		Game:       hoops.GameState{TimeRemaining: 2870, HomeMomentum: 4},
		Portfolio:  hoops.Portfolio{Position: 100, Cash: 94500, PortfolioValue: 100000, MarketPrice: 55},
	})

	body := scrape(t, tm)

	for _, want := range []string{
		`courtside_signals_total{placed="true",side="BUY"} 1`,
		`courtside_orders_total{side="BUY",status="accepted",type="LIMIT"} 1`,
		`courtside_orders_total{side="SELL",status="rejected",type="MARKET"} 1`,
		`courtside_fills_total{side="BUY"} 1`,
		`courtside_fill_volume{side="BUY"} 5500`,
		`courtside_exits_total{reason="game_end"} 1`,
		`courtside_games_total 1`,
		`courtside_events_total{kind="orderbook"} 1`,
		`courtside_model_probability 0.57`,
		`courtside_momentum{team="home"} 4`,
		`courtside_position 100`,
		`courtside_pnl -20`,
		`courtside_time_remaining_seconds 2870`,
	} {
		assert.True(t, strings.Contains(body, want), "missing %s", want)
	}
}

func TestVenueMetrics(t *testing.T) {
	tm := NewTradingMetrics()
	tm.RecordPolicyViolation("order too large")
	tm.UpdateVenue(decimal.NewFromInt(94500), 2, 7, decimal.RequireFromString("5500.50"))

	body := scrape(t, tm)
	assert.Contains(t, body, `courtside_policy_violations_total{reason="order too large"} 1`)
	assert.Contains(t, body, `courtside_venue_balance 94500`)
	assert.Contains(t, body, `courtside_open_orders 2`)
	assert.Contains(t, body, `courtside_daily_orders_used 7`)
	assert.Contains(t, body, `courtside_daily_volume_used 5500.5`)
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestDecimalToFloat64(t *testing.T) {
	assert.Equal(t, 55.25, DecimalToFloat64(decimal.RequireFromString("55.25")))
}
