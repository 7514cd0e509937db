package session_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/phenomenon0/courtside/pkg/hoops"
	"github.com/phenomenon0/courtside/pkg/trader/paper"
	"github.com/phenomenon0/courtside/pkg/trader/session"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// recordingObserver stores everything it is handed.
type recordingObserver struct {
	mu        sync.Mutex
	signals   []hoops.Signal
	orders    []hoops.Order
	fills     []hoops.Fill
	exits     []hoops.Exit
	snapshots []hoops.Snapshot
	events    []string
}

func (o *recordingObserver) OnSignal(s hoops.Signal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.signals = append(o.signals, s)
}

func (o *recordingObserver) OnOrder(ord hoops.Order) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.orders = append(o.orders, ord)
}

func (o *recordingObserver) OnFill(f hoops.Fill) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fills = append(o.fills, f)
}

func (o *recordingObserver) OnExit(x hoops.Exit) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exits = append(o.exits, x)
}

func (o *recordingObserver) OnSnapshot(s hoops.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshots = append(o.snapshots, s)
}

func (o *recordingObserver) OnEvent(ev session.Event, took time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev.Kind())
}

// loopbackVenue reports a fill for every limit order straight back into the
// runner, the way a real venue callback would.
type loopbackVenue struct {
	runner *session.Runner
	nextID int64
	market int
}

func (v *loopbackVenue) PlaceMarketOrder(side hoops.Side, ticker hoops.Ticker, qty float64) {
	v.market++
}

func (v *loopbackVenue) PlaceLimitOrder(side hoops.Side, ticker hoops.Ticker, qty, price float64, ioc bool) int64 {
	v.nextID++
	v.runner.Submit(session.FillReport{
		Ticker:           ticker,
		Side:             side,
		Price:            price,
		Quantity:         qty,
		CapitalRemaining: 100000 - qty*price,
	})
	return v.nextID
}

func (v *loopbackVenue) CancelOrder(ticker hoops.Ticker, orderID int64) bool { return true }

func homeThree(t float64) session.GameEventMsg {
	return session.GameEventMsg{Event: hoops.GameEvent{
		Type:        hoops.EventScore,
		Team:        hoops.TeamHome,
		Shot:        hoops.ShotThreePoint,
		TimeSeconds: hoops.Seconds(t),
	}}
}

func TestRunner_FlushProcessesInOrder(t *testing.T) {
	strategy := hoops.NewStrategy(nil, &loopbackVenue{}, hoops.WithLogger(quietLogger()))
	obs := &recordingObserver{}
	runner := session.NewRunner(strategy, session.WithObserver(obs), session.WithLogger(quietLogger()))

	prices := []float64{60, 61, 62, 63, 64}
	for _, p := range prices {
		runner.Submit(session.BookUpdate{Ticker: hoops.TickerHome, Side: hoops.SideBuy, Quantity: 10, Price: p})
	}
	assert.Equal(t, len(prices), runner.Stats().Pending)

	assert.Equal(t, len(prices), runner.Flush())

	require.Len(t, obs.snapshots, len(prices))
	for i, p := range prices {
		assert.Equal(t, p, obs.snapshots[i].Portfolio.MarketPrice)
	}

	stats := runner.Stats()
	assert.Equal(t, uint64(len(prices)), stats.Processed)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, uint64(len(prices)), stats.ByKind[session.KindOrderbook])
}

func TestRunner_VenueCallbackSubmitsFromInsideLoop(t *testing.T) {
	venue := &loopbackVenue{}
	strategy := hoops.NewStrategy(nil, venue, hoops.WithLogger(quietLogger()))
	obs := &recordingObserver{}
	runner := session.NewRunner(strategy, session.WithObserver(obs), session.WithLogger(quietLogger()))
	venue.runner = runner

	runner.Submit(homeThree(2870))

	// The game event places an order whose fill is queued behind it.
	assert.Equal(t, 2, runner.Flush())

	require.Len(t, obs.signals, 1)
	assert.True(t, obs.signals[0].Placed)
	require.Len(t, obs.orders, 1)
	assert.True(t, obs.orders[0].Accepted)
	require.Len(t, obs.fills, 1)
	assert.InDelta(t, 20000/55.0, obs.fills[0].Position, 1e-9)
	assert.Equal(t, []string{session.KindGameEvent, session.KindFill}, obs.events)

	snap := strategy.Snapshot()
	assert.InDelta(t, 80000, snap.Portfolio.Cash, 1e-6)
	assert.InDelta(t, 80000, snap.Portfolio.Capital, 1e-6)
}

func TestRunner_OutputDeliveredAfterStrategyCall(t *testing.T) {
	venue := &loopbackVenue{}
	strategy := hoops.NewStrategy(nil, venue, hoops.WithLogger(quietLogger()))

	var runner *session.Runner
	reentered := make(chan struct{}, 1)
	obs := &snapshotProbe{strategy: strategy, done: reentered}
	runner = session.NewRunner(strategy, session.WithObserver(obs), session.WithLogger(quietLogger()))
	venue.runner = runner

	runner.Submit(homeThree(2870))
	runner.Flush()

	select {
	case <-reentered:
	default:
		t.Fatal("observer was never called")
	}
}

// snapshotProbe reads the strategy from inside an observer callback, which
// deadlocks if output is delivered while the strategy lock is held.
type snapshotProbe struct {
	session.NopObserver
	strategy *hoops.Strategy
	done     chan struct{}
}

func (p *snapshotProbe) OnSignal(hoops.Signal) {
	_ = p.strategy.Snapshot()
	select {
	case p.done <- struct{}{}:
	default:
	}
}

func TestRunner_RunWithPaperVenue(t *testing.T) {
	engine := paper.NewEngine(nil, nil)
	strategy := hoops.NewStrategy(nil, engine, hoops.WithLogger(quietLogger()))
	obs := &recordingObserver{}
	runner := session.NewRunner(strategy,
		session.WithTicks(engine),
		session.WithObserver(obs),
		session.WithLogger(quietLogger()),
	)
	engine.OnFill(func(f paper.Fill) {
		runner.Submit(session.FillReport{
			Ticker:           f.Ticker,
			Side:             f.Side,
			Price:            f.Price.InexactFloat64(),
			Quantity:         f.Size.InexactFloat64(),
			CapitalRemaining: f.CapitalRemaining.InexactFloat64(),
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	runner.Submit(session.BookUpdate{Ticker: hoops.TickerHome, Side: hoops.SideBuy, Quantity: 1000, Price: 55})
	runner.Submit(homeThree(2870))

	require.Eventually(t, func() bool {
		return runner.Stats().Processed == 3
	}, 2*time.Second, 5*time.Millisecond)

	snap := strategy.Snapshot()
	assert.InDelta(t, 20000/55.0, snap.Portfolio.Position, 1e-6)
	assert.InDelta(t, 80000, snap.Portfolio.Cash, 1e-6)

	pos, _ := engine.GetPosition()
	assert.InDelta(t, 20000/55.0, pos.InexactFloat64(), 1e-6)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunner_RunReturnsOnCancel(t *testing.T) {
	strategy := hoops.NewStrategy(nil, &loopbackVenue{}, hoops.WithLogger(quietLogger()))
	runner := session.NewRunner(strategy, session.WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	runner.Submit(homeThree(2870))
	assert.Equal(t, 1, runner.Stats().Pending)
}

func TestRunner_ExitReachesObservers(t *testing.T) {
	venue := &loopbackVenue{}
	strategy := hoops.NewStrategy(nil, venue, hoops.WithLogger(quietLogger()))
	obs := &recordingObserver{}
	runner := session.NewRunner(strategy, session.WithObserver(obs), session.WithLogger(quietLogger()))
	venue.runner = runner

	runner.Submit(homeThree(2870))
	runner.Flush()
	runner.Submit(session.GameEventMsg{Event: hoops.GameEvent{Type: hoops.EventEndGame}})
	runner.Flush()

	require.Len(t, obs.exits, 1)
	assert.Equal(t, hoops.ExitGameEnd, obs.exits[0].Reason)
	assert.Equal(t, 1, venue.market)

	last := obs.snapshots[len(obs.snapshots)-1]
	assert.Equal(t, hoops.GameLength, last.Game.TimeRemaining)
	assert.NotEqual(t, obs.exits[0].GameID, last.GameID)
}

// paperSession wires a paper engine to a runner the way the daemon does.
func paperSession(t *testing.T) (*paper.Engine, *hoops.Strategy, *session.Runner, *recordingObserver) {
	t.Helper()
	engine := paper.NewEngine(nil, nil)
	strategy := hoops.NewStrategy(nil, engine, hoops.WithLogger(quietLogger()))
	obs := &recordingObserver{}
	runner := session.NewRunner(strategy,
		session.WithTicks(engine),
		session.WithObserver(obs),
		session.WithLogger(quietLogger()),
	)
	engine.OnFill(func(f paper.Fill) {
		runner.Submit(session.FillReport{
			Ticker:           f.Ticker,
			Side:             f.Side,
			Price:            f.Price.InexactFloat64(),
			Quantity:         f.Size.InexactFloat64(),
			CapitalRemaining: f.CapitalRemaining.InexactFloat64(),
		})
	})
	engine.OnTrade(func(tr paper.Trade) {
		runner.Submit(session.TradePrint{
			Ticker:   tr.Ticker,
			Side:     tr.Side,
			Quantity: tr.Size.InexactFloat64(),
			Price:    tr.Price.InexactFloat64(),
		})
	})
	return engine, strategy, runner, obs
}

func TestRunner_LiquidationFillStaysWithFinishedGame(t *testing.T) {
	engine, strategy, runner, obs := paperSession(t)
	endGame := session.GameEventMsg{Event: hoops.GameEvent{Type: hoops.EventEndGame}}

	runner.Submit(session.BookUpdate{Ticker: hoops.TickerHome, Side: hoops.SideBuy, Quantity: 1000, Price: 55})
	runner.Submit(homeThree(2870))
	runner.Flush()

	pos, _ := engine.GetPosition()
	require.InDelta(t, 20000/55.0, pos.InexactFloat64(), 1e-6)
	require.InDelta(t, 20000/55.0, strategy.Snapshot().Portfolio.Position, 1e-6)
	firstGame := strategy.GameID()

	runner.Submit(session.BookUpdate{Ticker: hoops.TickerHome, Side: hoops.SideBuy, Quantity: 1000, Price: 107})
	runner.Submit(endGame)
	runner.Flush()

	require.Len(t, obs.exits, 1)
	assert.Equal(t, firstGame, obs.exits[0].GameID)
	assert.NotEqual(t, firstGame, strategy.GameID())

	pos, _ = engine.GetPosition()
	assert.True(t, pos.IsZero(), "venue position %s", pos)

	snap := strategy.Snapshot()
	assert.Equal(t, 0.0, snap.Portfolio.Position)
	assert.Equal(t, 100000.0, snap.Portfolio.Cash)
	assert.Equal(t, 0.0, snap.PnL)
	assert.Equal(t, uint64(1), runner.Stats().StaleFills)

	// A second game end has nothing to flatten on either side.
	runner.Submit(endGame)
	runner.Flush()

	pos, _ = engine.GetPosition()
	assert.True(t, pos.IsZero(), "venue position %s", pos)
	assert.Equal(t, 0.0, strategy.Snapshot().Portfolio.Position)
	assert.Len(t, engine.GetAccount().TradeHistory, 2)

	var market int
	for _, o := range obs.orders {
		if o.Kind == hoops.OrderMarket {
			market++
		}
	}
	assert.Equal(t, 1, market)
}

func TestRunner_StampsFillsWithHandledGame(t *testing.T) {
	venue := &loopbackVenue{}
	strategy := hoops.NewStrategy(nil, venue, hoops.WithLogger(quietLogger()))
	runner := session.NewRunner(strategy, session.WithLogger(quietLogger()))
	venue.runner = runner

	// Reports from outside event handling carry no game and always apply.
	runner.Submit(session.FillReport{Ticker: hoops.TickerHome, Side: hoops.SideBuy, Price: 60, Quantity: 10, CapitalRemaining: 99400})
	runner.Flush()
	assert.Equal(t, 10.0, strategy.Snapshot().Portfolio.Position)

	// A report tagged with another game is dropped.
	runner.Submit(session.FillReport{GameID: "finished", Ticker: hoops.TickerHome, Side: hoops.SideSell, Price: 60, Quantity: 10})
	runner.Flush()
	assert.Equal(t, 10.0, strategy.Snapshot().Portfolio.Position)
	assert.Equal(t, uint64(1), runner.Stats().StaleFills)

	// A fill raised inside the strategy call belongs to the live game.
	runner.Submit(homeThree(2870))
	assert.Equal(t, 2, runner.Flush())
	assert.Greater(t, strategy.Snapshot().Portfolio.Position, 10.0)
	assert.Equal(t, uint64(1), runner.Stats().StaleFills)
}
