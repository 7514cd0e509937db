// Package session serializes every input to a Strategy through one
// goroutine and fans the strategy's output out to observers.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/phenomenon0/courtside/pkg/hoops"

	"github.com/sirupsen/logrus"
)

// Option configures a Runner.
type Option func(*Runner)

// WithTicks forwards book updates to a venue after the strategy has seen them.
func WithTicks(tp TickProcessor) Option {
	return func(r *Runner) {
		r.ticks = tp
	}
}

// WithObserver adds an observer.
func WithObserver(obs Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, obs)
	}
}

// WithLogger sets the log entry used by the runner.
func WithLogger(entry *logrus.Entry) Option {
	return func(r *Runner) {
		r.log = entry
	}
}

// Stats reports runner progress.
type Stats struct {
	Processed   uint64            `json:"processed"`
	Pending     int               `json:"pending"`
	StaleFills  uint64            `json:"stale_fills"`
	ByKind      map[string]uint64 `json:"by_kind"`
	LastEventAt time.Time         `json:"last_event_at,omitempty"`
}

// Runner owns an unbounded FIFO of events and applies them to the strategy
// one at a time. Submit never blocks, so venue callbacks that fire inside a
// strategy call can safely enqueue their reports.
type Runner struct {
	strategy  *hoops.Strategy
	ticks     TickProcessor
	observers []Observer
	log       *logrus.Entry

	mu        sync.Mutex
	queue     []Event
	processed uint64
	byKind    map[string]uint64
	lastAt    time.Time
	wake      chan struct{}

	// Game of the event being handled, stamped on fills submitted meanwhile.
	handling   string
	staleFills uint64

	// Strategy output collected during one event, dispatched after it.
	outMu sync.Mutex
	out   []func(Observer)
}

// NewRunner creates a runner for strategy and installs its output hooks.
func NewRunner(strategy *hoops.Strategy, opts ...Option) *Runner {
	r := &Runner{
		strategy: strategy,
		log:      logrus.WithField("component", "session"),
		byKind:   make(map[string]uint64),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}

	strategy.OnSignal(func(s hoops.Signal) {
		r.collect(func(o Observer) { o.OnSignal(s) })
	})
	strategy.OnOrder(func(ord hoops.Order) {
		r.collect(func(o Observer) { o.OnOrder(ord) })
	})
	strategy.OnFill(func(f hoops.Fill) {
		r.collect(func(o Observer) { o.OnFill(f) })
	})
	strategy.OnExit(func(x hoops.Exit) {
		r.collect(func(o Observer) { o.OnExit(x) })
	})
	return r
}

// Submit enqueues an event. It never blocks. A FillReport without a game
// ID submitted while an event is being handled belongs to that event's game.
func (r *Runner) Submit(ev Event) {
	if ev == nil {
		return
	}
	r.mu.Lock()
	if fill, ok := ev.(FillReport); ok && fill.GameID == "" && r.handling != "" {
		fill.GameID = r.handling
		ev = fill
	}
	r.queue = append(r.queue, ev)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run processes events until ctx is cancelled, then returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("session runner started")
	defer r.log.Info("session runner stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, ok := r.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.wake:
			}
			continue
		}
		r.process(ev)
	}
}

// Flush processes queued events on the caller's goroutine until the queue
// is empty, including events submitted while flushing. It returns how many
// events it processed. It must not be used while Run is active.
func (r *Runner) Flush() int {
	n := 0
	for {
		ev, ok := r.pop()
		if !ok {
			return n
		}
		r.process(ev)
		n++
	}
}

// Stats returns processed and pending counts.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKind := make(map[string]uint64, len(r.byKind))
	for k, v := range r.byKind {
		byKind[k] = v
	}
	return Stats{
		Processed:   r.processed,
		Pending:     len(r.queue),
		StaleFills:  r.staleFills,
		ByKind:      byKind,
		LastEventAt: r.lastAt,
	}
}

func (r *Runner) pop() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		return nil, false
	}
	ev := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	return ev, true
}

func (r *Runner) process(ev Event) {
	start := time.Now()

	// Orders sent while handling ev belong to the game that was live before
	// it, including a liquidation sent just before a reset.
	game := r.strategy.GameID()
	r.mu.Lock()
	r.handling = game
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.handling = ""
		r.mu.Unlock()
	}()

	switch e := ev.(type) {
	case GameEventMsg:
		r.strategy.OnGameEventUpdate(e.Event)
	case BookUpdate:
		r.strategy.OnOrderbookUpdate(e.Ticker, e.Side, e.Quantity, e.Price)
		if r.ticks != nil {
			r.ticks.ProcessTick(e.Side, e.Quantity, e.Price)
		}
	case TradePrint:
		r.strategy.OnTradeUpdate(e.Ticker, e.Side, e.Quantity, e.Price)
	case FillReport:
		if e.GameID != "" && e.GameID != game {
			r.dropStale(e, game)
			break
		}
		r.strategy.OnAccountUpdate(e.Ticker, e.Side, e.Price, e.Quantity, e.CapitalRemaining)
	default:
		r.log.WithField("kind", ev.Kind()).Warn("unhandled event")
		return
	}

	took := time.Since(start)

	r.mu.Lock()
	r.processed++
	r.byKind[ev.Kind()]++
	r.lastAt = start
	r.mu.Unlock()

	r.dispatch(ev, took)
}

// dropStale discards a fill for a game that has already been flattened and
// reset; the liquidation that caused it was settled by the reset.
func (r *Runner) dropStale(fill FillReport, current string) {
	r.mu.Lock()
	r.staleFills++
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"fill_game": fill.GameID,
		"game_id":   current,
		"side":      fill.Side,
		"qty":       fill.Quantity,
		"price":     fill.Price,
	}).Info("dropping fill from a finished game")
}

func (r *Runner) collect(fn func(Observer)) {
	r.outMu.Lock()
	r.out = append(r.out, fn)
	r.outMu.Unlock()
}

func (r *Runner) dispatch(ev Event, took time.Duration) {
	r.outMu.Lock()
	out := r.out
	r.out = nil
	r.outMu.Unlock()

	if len(r.observers) == 0 {
		return
	}

	snap := r.strategy.Snapshot()
	for _, obs := range r.observers {
		if eo, ok := obs.(EventObserver); ok {
			eo.OnEvent(ev, took)
		}
		for _, fn := range out {
			fn(obs)
		}
		obs.OnSnapshot(snap)
	}
}
