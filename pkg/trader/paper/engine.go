package paper

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/phenomenon0/courtside/pkg/hoops"
	"github.com/phenomenon0/courtside/pkg/market/book"
	"github.com/phenomenon0/courtside/pkg/trader/policy"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var bps = decimal.NewFromInt(10000)

// Engine is the paper venue. It implements hoops.Venue.
//
// Callbacks run while the engine lock is held. Consumers that feed results
// back into the strategy must queue them rather than call in directly.
type Engine struct {
	config *SimulationConfig
	policy *policy.PolicyEngine
	book   *book.OrderBook
	log    *logrus.Entry
	now    func() time.Time

	mu        sync.Mutex
	account   *Account
	lastPrice decimal.Decimal
	orderSeq  int64
	tradeSeq  int64

	onOrder func(*Order)
	onTrade func(Trade)
	onFill  func(Fill)
}

var _ hoops.Venue = (*Engine)(nil)

// NewEngine creates a new paper venue. A nil config or policy uses defaults.
func NewEngine(config *SimulationConfig, pol *policy.PolicyEngine) *Engine {
	if config == nil {
		config = DefaultSimulationConfig()
	}
	if pol == nil {
		pol = policy.NewPolicyEngine(nil)
	}

	e := &Engine{
		config: config,
		policy: pol,
		book:   book.NewOrderBook(config.Ticker),
		log:    logrus.WithField("component", "paper"),
		now:    time.Now,
	}
	e.account = e.newAccount()
	return e
}

func (e *Engine) newAccount() *Account {
	now := e.now()
	return &Account{
		ID:             uuid.New().String(),
		InitialBalance: e.config.InitialBalance,
		Balance:        e.config.InitialBalance,
		OpenOrders:     make(map[int64]*Order),
		TradeHistory:   make([]Trade, 0),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// OnOrder sets a callback for order state changes.
func (e *Engine) OnOrder(fn func(*Order)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onOrder = fn
}

// OnTrade sets a callback for executed trades.
func (e *Engine) OnTrade(fn func(Trade)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTrade = fn
}

// OnFill sets a callback for fills of our orders.
func (e *Engine) OnFill(fn func(Fill)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFill = fn
}

// Book returns the simulated orderbook.
func (e *Engine) Book() *book.OrderBook {
	return e.book
}

// Policy returns the venue policy engine.
func (e *Engine) Policy() *policy.PolicyEngine {
	return e.policy
}

// --- hoops.Venue ---

// PlaceLimitOrder places a limit order and returns its ID, or 0 if rejected.
// The order fills immediately when the last price already satisfies it.
// An IOC order that does not fill completely is cancelled.
func (e *Engine) PlaceLimitOrder(side hoops.Side, ticker hoops.Ticker, qty, price float64, ioc bool) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	size := decimal.NewFromFloat(qty)
	px := decimal.NewFromFloat(price)

	if err := e.validateLimit(side, ticker, size, px); err != nil {
		e.reject(side, OrderTypeLimit, size, px, err)
		return 0
	}

	order := e.newOrder(side, OrderTypeLimit, size, px, ioc)
	e.account.OpenOrders[order.ID] = order
	e.policy.RecordOrder()
	e.notifyOrder(order)

	if e.crosses(order, e.lastPrice) {
		e.executeFill(order, order.Price, order.Remaining(), e.config.TakerFeeBps)
	}
	if ioc && !order.Status.Closed() {
		e.closeOrder(order, OrderStatusCanceled, "ioc remainder")
	}

	e.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"side":     side,
		"size":     size,
		"price":    px,
		"status":   order.Status,
	}).Debug("limit order placed")

	return order.ID
}

func (e *Engine) validateLimit(side hoops.Side, ticker hoops.Ticker, size, price decimal.Decimal) error {
	if ticker != e.config.Ticker {
		return fmt.Errorf("unknown ticker %s", ticker)
	}
	if err := e.policy.CheckOrder(size, price); err != nil {
		return err
	}
	if side == hoops.SideBuy {
		cost := size.Mul(price)
		cost = cost.Add(fee(cost, e.config.TakerFeeBps))
		if cost.GreaterThan(e.account.Balance) {
			return fmt.Errorf("insufficient balance: have %s, need %s", e.account.Balance.StringFixed(2), cost.StringFixed(2))
		}
	}
	return nil
}

// PlaceMarketOrder walks the simulated book and fills any remainder at the
// last traded price. It is rejected when neither is available.
func (e *Engine) PlaceMarketOrder(side hoops.Side, ticker hoops.Ticker, qty float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	size := decimal.NewFromFloat(qty)
	if ticker != e.config.Ticker {
		e.reject(side, OrderTypeMarket, size, decimal.Zero, fmt.Errorf("unknown ticker %s", ticker))
		return
	}
	if !size.IsPositive() {
		e.reject(side, OrderTypeMarket, size, decimal.Zero, fmt.Errorf("order size must be positive"))
		return
	}

	match := e.book.SimulateMarketOrder(side, size)
	if match.TotalSize.IsZero() && !e.lastPrice.IsPositive() {
		e.reject(side, OrderTypeMarket, size, decimal.Zero, fmt.Errorf("no price for %s", ticker))
		return
	}

	order := e.newOrder(side, OrderTypeMarket, size, decimal.Zero, true)
	e.notifyOrder(order)

	for _, f := range match.Fills {
		e.executeFill(order, f.Price, f.Size, e.config.TakerFeeBps)
	}
	if rem := order.Remaining(); rem.IsPositive() && e.lastPrice.IsPositive() {
		e.executeFill(order, e.slipped(side, e.lastPrice), rem, e.config.TakerFeeBps)
	}
	if !order.Status.Closed() {
		e.closeOrder(order, OrderStatusCanceled, "no liquidity")
	}

	e.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"side":     side,
		"size":     size,
		"avg":      order.AvgFillPrice,
	}).Debug("market order executed")
}

// CancelOrder cancels an open order. It returns false for unknown or
// already closed orders.
func (e *Engine) CancelOrder(ticker hoops.Ticker, orderID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.account.OpenOrders[orderID]
	if !ok || order.Ticker != ticker {
		return false
	}
	e.closeOrder(order, OrderStatusCanceled, "")
	return true
}

// CancelAllOrders cancels all open orders and returns how many were cancelled.
func (e *Engine) CancelAllOrders() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, order := range e.account.OpenOrders {
		e.closeOrder(order, OrderStatusCanceled, "")
		count++
	}
	return count
}

// ProcessTick applies a book update at price and matches resting limit
// orders against it as the new last price.
func (e *Engine) ProcessTick(side hoops.Side, qty, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	px := decimal.NewFromFloat(price)
	if !px.IsPositive() {
		return
	}
	e.book.UpdateLevel(side, px, decimal.NewFromFloat(qty))
	e.lastPrice = px

	for _, order := range e.sortedOpenOrders() {
		if order.OrderType != OrderTypeLimit || !e.crosses(order, px) {
			continue
		}
		e.executeFill(order, order.Price, order.Remaining(), e.config.MakerFeeBps)
	}
}

// --- Queries ---

// LastPrice returns the last traded price, zero before the first tick.
func (e *Engine) LastPrice() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastPrice
}

// GetOrder returns an open order by ID.
func (e *Engine) GetOrder(orderID int64) (*Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.account.OpenOrders[orderID]
	if !ok {
		return nil, false
	}
	cp := *order
	return &cp, true
}

// GetOpenOrders returns copies of all open orders, oldest first.
func (e *Engine) GetOpenOrders() []Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	open := e.sortedOpenOrders()
	orders := make([]Order, 0, len(open))
	for _, order := range open {
		orders = append(orders, *order)
	}
	return orders
}

// GetBalance returns the current cash balance.
func (e *Engine) GetBalance() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account.Balance
}

// GetPosition returns the signed position and its average entry price.
func (e *Engine) GetPosition() (size, avgEntry decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account.Position, e.account.AvgEntry
}

// GetAccount returns a copy of the account.
func (e *Engine) GetAccount() Account {
	e.mu.Lock()
	defer e.mu.Unlock()

	acc := *e.account
	acc.OpenOrders = make(map[int64]*Order, len(e.account.OpenOrders))
	for id, order := range e.account.OpenOrders {
		cp := *order
		acc.OpenOrders[id] = &cp
	}
	acc.TradeHistory = append([]Trade(nil), e.account.TradeHistory...)
	return acc
}

// GetStats calculates account statistics.
func (e *Engine) GetStats() AccountStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := AccountStats{LastPrice: e.lastPrice}

	var totalWins, totalLosses decimal.Decimal
	for _, trade := range e.account.TradeHistory {
		stats.TotalTrades++
		stats.TotalVolume = stats.TotalVolume.Add(trade.Price.Mul(trade.Size))
		stats.TotalFees = stats.TotalFees.Add(trade.Fee)

		switch {
		case trade.PnL.IsPositive():
			stats.WinningTrades++
			totalWins = totalWins.Add(trade.PnL)
			stats.LargestWin = decimal.Max(stats.LargestWin, trade.PnL)
		case trade.PnL.IsNegative():
			stats.LosingTrades++
			totalLosses = totalLosses.Add(trade.PnL.Abs())
			stats.LargestLoss = decimal.Max(stats.LargestLoss, trade.PnL.Abs())
		}
	}

	stats.RealizedPnL = e.account.RealizedPnL
	if !e.account.Position.IsZero() && e.lastPrice.IsPositive() {
		stats.UnrealizedPnL = e.lastPrice.Sub(e.account.AvgEntry).Mul(e.account.Position)
	}
	stats.TotalPnL = stats.RealizedPnL.Add(stats.UnrealizedPnL)

	// Win rate counts only trades that closed risk.
	if closed := stats.WinningTrades + stats.LosingTrades; closed > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.WinningTrades)).Div(decimal.NewFromInt(int64(closed)))
	}
	if stats.WinningTrades > 0 {
		stats.AvgWin = totalWins.Div(decimal.NewFromInt(int64(stats.WinningTrades)))
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = totalLosses.Div(decimal.NewFromInt(int64(stats.LosingTrades)))
	}

	return stats
}

// Reset resets the account, book and policy counters.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.account = e.newAccount()
	e.book.Clear()
	e.policy.Reset()
	e.lastPrice = decimal.Zero
	e.orderSeq = 0
	e.tradeSeq = 0
}

// --- Fill Logic ---

func (e *Engine) newOrder(side hoops.Side, kind OrderType, size, price decimal.Decimal, ioc bool) *Order {
	e.orderSeq++
	now := e.now()
	return &Order{
		ID:        e.orderSeq,
		Ticker:    e.config.Ticker,
		Side:      side,
		OrderType: kind,
		IOC:       ioc,
		Price:     price,
		Size:      size,
		Status:    OrderStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (e *Engine) reject(side hoops.Side, kind OrderType, size, price decimal.Decimal, err error) {
	now := e.now()
	order := &Order{
		Ticker:    e.config.Ticker,
		Side:      side,
		OrderType: kind,
		Price:     price,
		Size:      size,
		Status:    OrderStatusRejected,
		Reason:    err.Error(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	e.log.WithFields(logrus.Fields{
		"side":  side,
		"type":  kind,
		"size":  size,
		"price": price,
	}).WithError(err).Warn("order rejected")

	e.notifyOrder(order)
}

// crosses reports whether a limit order is marketable at price.
func (e *Engine) crosses(order *Order, price decimal.Decimal) bool {
	if !price.IsPositive() {
		return false
	}
	if order.Side == hoops.SideBuy {
		return price.LessThanOrEqual(order.Price)
	}
	return price.GreaterThanOrEqual(order.Price)
}

func (e *Engine) slipped(side hoops.Side, price decimal.Decimal) decimal.Decimal {
	slip := price.Mul(e.config.SlippageBps).Div(bps)
	if side == hoops.SideBuy {
		return price.Add(slip)
	}
	return price.Sub(slip)
}

func fee(notional, feeBps decimal.Decimal) decimal.Decimal {
	return notional.Mul(feeBps).Div(bps)
}

func (e *Engine) closeOrder(order *Order, status OrderStatus, reason string) {
	order.Status = status
	order.Reason = reason
	order.UpdatedAt = e.now()
	if _, resting := e.account.OpenOrders[order.ID]; resting {
		delete(e.account.OpenOrders, order.ID)
		e.policy.RecordOrderClosed()
	}
	e.notifyOrder(order)
}

func (e *Engine) executeFill(order *Order, price, size decimal.Decimal, feeBps decimal.Decimal) {
	if !size.IsPositive() {
		return
	}

	notional := price.Mul(size)
	cost := fee(notional, feeBps)
	now := e.now()

	if order.Side == hoops.SideBuy {
		e.account.Balance = e.account.Balance.Sub(notional).Sub(cost)
	} else {
		e.account.Balance = e.account.Balance.Add(notional).Sub(cost)
	}

	fill := Fill{
		OrderID:          order.ID,
		Ticker:           order.Ticker,
		Side:             order.Side,
		Price:            price,
		Size:             size,
		Fee:              cost,
		CapitalRemaining: e.account.Balance,
		Timestamp:        now,
	}
	order.Fills = append(order.Fills, fill)

	filledCost := order.AvgFillPrice.Mul(order.FilledSize).Add(notional)
	order.FilledSize = order.FilledSize.Add(size)
	order.AvgFillPrice = filledCost.Div(order.FilledSize)
	order.UpdatedAt = now
	if order.FilledSize.GreaterThanOrEqual(order.Size) {
		order.Status = OrderStatusFilled
	} else {
		order.Status = OrderStatusPartiallyFilled
	}

	pnl := e.updatePosition(order.Side, size, price)
	e.account.RealizedPnL = e.account.RealizedPnL.Add(pnl)

	e.tradeSeq++
	trade := Trade{
		ID:        e.tradeSeq,
		OrderID:   order.ID,
		Ticker:    order.Ticker,
		Side:      order.Side,
		Price:     price,
		Size:      size,
		Fee:       cost,
		PnL:       pnl,
		Timestamp: now,
	}
	e.account.TradeHistory = append(e.account.TradeHistory, trade)
	e.account.UpdatedAt = now
	e.policy.RecordFill(size, price)

	if e.onFill != nil {
		e.onFill(fill)
	}
	if e.onTrade != nil {
		e.onTrade(trade)
	}

	if order.Status == OrderStatusFilled {
		e.closeOrder(order, OrderStatusFilled, "")
		return
	}
	e.notifyOrder(order)
}

// updatePosition applies a fill to the signed position and returns the PnL
// realized by the part of the fill that reduced it.
func (e *Engine) updatePosition(side hoops.Side, size, price decimal.Decimal) decimal.Decimal {
	delta := size
	if side == hoops.SideSell {
		delta = size.Neg()
	}

	pos := e.account.Position
	if pos.IsZero() || pos.Sign() == delta.Sign() {
		// Opening or adding - no PnL
		total := pos.Add(delta)
		e.account.AvgEntry = e.account.AvgEntry.Mul(pos.Abs()).Add(price.Mul(size)).Div(total.Abs())
		e.account.Position = total
		return decimal.Zero
	}

	closing := decimal.Min(size, pos.Abs())
	pnl := price.Sub(e.account.AvgEntry).Mul(closing)
	if pos.IsNegative() {
		pnl = pnl.Neg()
	}

	e.account.Position = pos.Add(delta)
	switch {
	case e.account.Position.IsZero():
		e.account.AvgEntry = decimal.Zero
	case e.account.Position.Sign() != pos.Sign():
		// Reversed through flat
		e.account.AvgEntry = price
	}
	return pnl
}

func (e *Engine) notifyOrder(order *Order) {
	if e.onOrder != nil {
		cp := *order
		e.onOrder(&cp)
	}
}

func (e *Engine) sortedOpenOrders() []*Order {
	orders := make([]*Order, 0, len(e.account.OpenOrders))
	for _, order := range e.account.OpenOrders {
		orders = append(orders, order)
	}
	// IDs are sequential, so this is time priority.
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}
