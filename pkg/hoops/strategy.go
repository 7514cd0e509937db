package hoops

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Venue is the execution collaborator. Calls are fire-and-forget: the
// strategy learns about fills only through OnAccountUpdate. Implementations
// must not call back into the Strategy from inside these methods.
type Venue interface {
	PlaceMarketOrder(side Side, ticker Ticker, qty float64)
	// PlaceLimitOrder returns the venue order ID, or 0 if the order was not accepted.
	PlaceLimitOrder(side Side, ticker Ticker, qty, price float64, ioc bool) int64
	CancelOrder(ticker Ticker, orderID int64) bool
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithLogger sets the log entry used by the strategy.
func WithLogger(entry *logrus.Entry) Option {
	return func(s *Strategy) {
		s.log = entry
	}
}

// WithClock overrides the time source used for hook timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Strategy) {
		s.now = now
	}
}

// Strategy trades the home-team contract against a live game model.
// All callbacks serialize on one mutex; hooks run with that mutex held and
// must not call back into the Strategy.
type Strategy struct {
	cfg   Config
	venue Venue
	log   *logrus.Entry
	now   func() time.Time

	mu           sync.Mutex
	gameID       string
	game         GameState
	portfolio    Portfolio
	modelProb    float64
	activeOrders []int64
	events       int

	onSignal func(Signal)
	onOrder  func(Order)
	onFill   func(Fill)
	onExit   func(Exit)
}

// NewStrategy creates a strategy in the start-of-game state.
func NewStrategy(cfg *Config, venue Venue, opts ...Option) *Strategy {
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}

	s := &Strategy{
		cfg:   *cfg,
		venue: venue,
		log:   logrus.WithField("component", "strategy"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s
}

// OnSignal sets a callback for trade decisions.
func (s *Strategy) OnSignal(fn func(Signal)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSignal = fn
}

// OnOrder sets a callback for orders sent to the venue.
func (s *Strategy) OnOrder(fn func(Order)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOrder = fn
}

// OnFill sets a callback for applied fills.
func (s *Strategy) OnFill(fn func(Fill)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFill = fn
}

// OnExit sets a callback for liquidations and game ends.
func (s *Strategy) OnExit(fn func(Exit)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExit = fn
}

// Config returns the strategy parameters.
func (s *Strategy) Config() Config {
	return s.cfg
}

// GameID returns the identifier of the current game.
func (s *Strategy) GameID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameID
}

// Reset returns the strategy to the start-of-game state.
func (s *Strategy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Strategy) reset() {
	s.gameID = uuid.New().String()
	s.game = GameState{TimeRemaining: GameLength}
	s.portfolio = Portfolio{
		Cash:           s.cfg.BaselineCapital,
		Capital:        s.cfg.BaselineCapital,
		PortfolioValue: s.cfg.BaselineCapital,
		MarketPrice:    initialPrice,
	}
	s.modelProb = initialModelProb
	s.activeOrders = nil
	s.events = 0
}

// Snapshot returns a copy of the current state.
func (s *Strategy) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Strategy) snapshot() Snapshot {
	game := s.game
	if game.LastEventTime != nil {
		t := *game.LastEventTime
		game.LastEventTime = &t
	}
	orders := make([]int64, len(s.activeOrders))
	copy(orders, s.activeOrders)

	return Snapshot{
		GameID:       s.gameID,
		Game:         game,
		Portfolio:    s.portfolio,
		ModelProb:    s.modelProb,
		MarketProb:   MarketPriceToProbability(s.portfolio.MarketPrice),
		PnL:          s.portfolio.PortfolioValue - s.cfg.BaselineCapital,
		ActiveOrders: orders,
		Events:       s.events,
		Config:       s.cfg,
	}
}

// --- Venue callbacks ---

// OnTradeUpdate is called when any two orders match on the venue.
func (s *Strategy) OnTradeUpdate(ticker Ticker, side Side, qty, price float64) {
	s.log.WithFields(logrus.Fields{
		"ticker": ticker,
		"side":   side,
		"qty":    qty,
		"price":  price,
	}).Debug("trade print")
}

// OnOrderbookUpdate records the latest market price.
func (s *Strategy) OnOrderbookUpdate(ticker Ticker, side Side, qty, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.portfolio.MarketPrice = price
	s.portfolio.Revalue()
}

// OnAccountUpdate applies one of our fills.
func (s *Strategy) OnAccountUpdate(ticker Ticker, side Side, price, qty, capitalRemaining float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := qty * price
	if side == SideBuy {
		s.portfolio.Position += qty
		s.portfolio.Cash -= value
	} else {
		s.portfolio.Position -= qty
		s.portfolio.Cash += value
	}
	s.portfolio.Capital = capitalRemaining
	s.portfolio.Revalue()

	s.log.WithFields(logrus.Fields{
		"game_id":   s.gameID,
		"side":      side,
		"qty":       qty,
		"price":     price,
		"position":  s.portfolio.Position,
		"cash":      s.portfolio.Cash,
		"portfolio": s.portfolio.PortfolioValue,
	}).Info("filled")

	if s.onFill != nil {
		s.onFill(Fill{
			GameID:           s.gameID,
			Side:             side,
			Quantity:         qty,
			Price:            price,
			CapitalRemaining: capitalRemaining,
			Position:         s.portfolio.Position,
			Cash:             s.portfolio.Cash,
			Timestamp:        s.now(),
		})
	}
}

// OnGameEventUpdate runs the full decision cycle for one game event.
func (s *Strategy) OnGameEventUpdate(ev GameEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events++
	s.game.Apply(ev, s.cfg.MomentumTau)
	s.modelProb = s.game.TrueProbability()

	if ok, side, edge := ShouldTrade(s.modelProb, s.portfolio.MarketPrice); ok {
		s.trade(side, edge)
	}

	s.portfolio.Revalue()

	exited := false
	if reason := CheckRisk(s.cfg, s.portfolio.PortfolioValue, s.game); reason != ExitNone {
		s.exit(reason)
		exited = true
	}

	s.log.WithFields(logrus.Fields{
		"game_id":     s.gameID,
		"event":       ev.Type,
		"team":        ev.Team,
		"score":       []int{ev.HomeScore, ev.AwayScore},
		"time":        s.game.TimeRemaining,
		"model_prob":  s.modelProb,
		"market_prob": MarketPriceToProbability(s.portfolio.MarketPrice),
		"position":    s.portfolio.Position,
		"portfolio":   s.portfolio.PortfolioValue,
	}).Debug("game event")

	// A risk exit has already flattened and reset the game.
	if !exited && IsGameOver(ev.Type, s.game.TimeRemaining) {
		s.exit(ExitGameEnd)
	}
}

func (s *Strategy) trade(side Side, edge float64) {
	for _, id := range s.activeOrders {
		s.venue.CancelOrder(TickerHome, id)
	}
	s.activeOrders = nil

	price := s.portfolio.MarketPrice
	qty := PositionSize(s.cfg, s.portfolio, edge, side, price)
	sig := Signal{
		GameID:      s.gameID,
		Side:        side,
		Edge:        edge,
		ModelProb:   s.modelProb,
		MarketProb:  MarketPriceToProbability(price),
		MarketPrice: price,
		Quantity:    qty,
		Timestamp:   s.now(),
	}

	entry := s.log.WithFields(logrus.Fields{
		"game_id":     s.gameID,
		"side":        side,
		"qty":         qty,
		"price":       price,
		"edge":        edge,
		"model_prob":  s.modelProb,
		"model_price": ProbabilityToPrice(s.modelProb),
		"market_prob": sig.MarketProb,
	})

	if !CanAfford(s.cfg, s.portfolio, side, qty, price) {
		entry.WithField("cash", s.portfolio.Cash).Info("trade skipped: risk limits or zero quantity")
		if s.onSignal != nil {
			s.onSignal(sig)
		}
		return
	}

	id := s.venue.PlaceLimitOrder(side, TickerHome, qty, price, false)
	if id != 0 {
		s.activeOrders = append(s.activeOrders, id)
	}
	sig.Placed = true

	if side == SideBuy {
		entry.Info("market undervalues home team")
	} else {
		entry.Info("market overvalues home team")
	}

	if s.onSignal != nil {
		s.onSignal(sig)
	}
	if s.onOrder != nil {
		s.onOrder(Order{
			GameID:    s.gameID,
			ID:        id,
			Kind:      OrderLimit,
			Side:      side,
			Quantity:  qty,
			Price:     price,
			Accepted:  id != 0,
			Timestamp: sig.Timestamp,
		})
	}
}

// exit flattens the position at market, reports the game result and resets.
func (s *Strategy) exit(reason ExitReason) {
	pnl := s.portfolio.PortfolioValue - s.cfg.BaselineCapital
	now := s.now()

	// Nothing from this game may rest at the venue after the reset.
	for _, id := range s.activeOrders {
		s.venue.CancelOrder(TickerHome, id)
	}
	s.activeOrders = nil

	if side, qty, ok := Liquidation(s.portfolio.Position); ok {
		s.venue.PlaceMarketOrder(side, TickerHome, qty)
		if s.onOrder != nil {
			s.onOrder(Order{
				GameID:    s.gameID,
				Kind:      OrderMarket,
				Side:      side,
				Quantity:  qty,
				Price:     s.portfolio.MarketPrice,
				Accepted:  true,
				Timestamp: now,
			})
		}
	}

	entry := s.log.WithFields(logrus.Fields{
		"game_id":   s.gameID,
		"reason":    reason,
		"pnl":       pnl,
		"position":  s.portfolio.Position,
		"score":     []int{s.game.HomeScore, s.game.AwayScore},
		"time":      s.game.TimeRemaining,
		"portfolio": s.portfolio.PortfolioValue,
	})
	switch reason {
	case ExitTakeProfit:
		entry.WithField("level", s.cfg.TakeProfitLevel()).Warn("take profit triggered")
	case ExitStopLoss:
		entry.WithField("level", s.cfg.StopLossLevel()).Warn("stop loss triggered")
	case ExitLateGame:
		entry.Warn("late-game safety exit triggered")
	default:
		entry.WithField("pnl_pct", pnl/s.cfg.BaselineCapital*100).Info("final pnl")
	}

	if s.onExit != nil {
		s.onExit(Exit{
			GameID:         s.gameID,
			Reason:         reason,
			PnL:            pnl,
			PortfolioValue: s.portfolio.PortfolioValue,
			Position:       s.portfolio.Position,
			HomeScore:      s.game.HomeScore,
			AwayScore:      s.game.AwayScore,
			TimeRemaining:  s.game.TimeRemaining,
			Events:         s.events,
			Timestamp:      now,
		})
	}

	s.reset()
}
