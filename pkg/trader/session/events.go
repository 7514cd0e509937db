package session

import (
	"time"

	"github.com/phenomenon0/courtside/pkg/hoops"
)

// Event is one input to the strategy. The concrete types are GameEventMsg,
// BookUpdate, TradePrint and FillReport.
type Event interface {
	// Kind names the event on the wire and in metrics.
	Kind() string
}

const (
	KindGameEvent = "game_event"
	KindOrderbook = "orderbook"
	KindTrade     = "trade"
	KindFill      = "fill"
)

// GameEventMsg carries a play-by-play event.
type GameEventMsg struct {
	Event hoops.GameEvent
}

func (GameEventMsg) Kind() string { return KindGameEvent }

// BookUpdate is a change at one level of the market's book.
type BookUpdate struct {
	Ticker   hoops.Ticker
	Side     hoops.Side
	Quantity float64
	Price    float64
}

func (BookUpdate) Kind() string { return KindOrderbook }

// TradePrint is a match between any two orders on the venue.
type TradePrint struct {
	Ticker   hoops.Ticker
	Side     hoops.Side
	Quantity float64
	Price    float64
}

func (TradePrint) Kind() string { return KindTrade }

// FillReport is an execution of one of our own orders. GameID names the
// game the order was sent in; the runner fills it in for reports submitted
// while it is handling an event. Reports for a finished game are dropped.
type FillReport struct {
	GameID           string
	Ticker           hoops.Ticker
	Side             hoops.Side
	Price            float64
	Quantity         float64
	CapitalRemaining float64
}

func (FillReport) Kind() string { return KindFill }

// TickProcessor is implemented by venues that match resting orders on book
// updates.
type TickProcessor interface {
	ProcessTick(side hoops.Side, qty, price float64)
}

// Observer receives strategy output after each event has been handled.
// Methods are called from the runner goroutine, outside the strategy lock.
type Observer interface {
	OnSignal(hoops.Signal)
	OnOrder(hoops.Order)
	OnFill(hoops.Fill)
	OnExit(hoops.Exit)
	OnSnapshot(hoops.Snapshot)
}

// EventObserver is optionally implemented by observers that also want the
// raw input events and how long each took to process.
type EventObserver interface {
	OnEvent(ev Event, took time.Duration)
}

// NopObserver implements Observer with no-ops. Embed it to implement only
// the methods you need.
type NopObserver struct{}

func (NopObserver) OnSignal(hoops.Signal)     {}
func (NopObserver) OnOrder(hoops.Order)       {}
func (NopObserver) OnFill(hoops.Fill)         {}
func (NopObserver) OnExit(hoops.Exit)         {}
func (NopObserver) OnSnapshot(hoops.Snapshot) {}
