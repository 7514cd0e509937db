// Package paper provides a simulated single-instrument venue for the home-win
// contract. Orders fill against the last traded price and a simulated L2 book,
// and fills are reported back through callbacks.
package paper

import (
	"time"

	"github.com/phenomenon0/courtside/pkg/hoops"

	"github.com/shopspring/decimal"
)

// OrderType represents order type.
type OrderType int

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
)

func (t OrderType) String() string {
	if t == OrderTypeMarket {
		return "MARKET"
	}
	return "LIMIT"
}

// OrderStatus represents order status.
type OrderStatus int

const (
	OrderStatusOpen OrderStatus = iota
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusOpen:
		return "OPEN"
	case OrderStatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCanceled:
		return "CANCELED"
	case OrderStatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Closed reports whether the order can no longer fill.
func (s OrderStatus) Closed() bool {
	return s == OrderStatusFilled || s == OrderStatusCanceled || s == OrderStatusRejected
}

// Order represents a paper order.
type Order struct {
	ID           int64           `json:"id"`
	Ticker       hoops.Ticker    `json:"ticker"`
	Side         hoops.Side      `json:"side"`
	OrderType    OrderType       `json:"order_type"`
	IOC          bool            `json:"ioc"`
	Price        decimal.Decimal `json:"price"`
	Size         decimal.Decimal `json:"size"`
	FilledSize   decimal.Decimal `json:"filled_size"`
	AvgFillPrice decimal.Decimal `json:"avg_fill_price"`
	Status       OrderStatus     `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Fills        []Fill          `json:"fills,omitempty"`
}

// Remaining returns the unfilled size.
func (o *Order) Remaining() decimal.Decimal {
	return o.Size.Sub(o.FilledSize)
}

// Fill represents a single execution of one of our orders.
type Fill struct {
	OrderID          int64           `json:"order_id"`
	Ticker           hoops.Ticker    `json:"ticker"`
	Side             hoops.Side      `json:"side"`
	Price            decimal.Decimal `json:"price"`
	Size             decimal.Decimal `json:"size"`
	Fee              decimal.Decimal `json:"fee"`
	CapitalRemaining decimal.Decimal `json:"capital_remaining"`
	Timestamp        time.Time       `json:"timestamp"`
}

// Trade represents a completed trade in the account history.
type Trade struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	Ticker    hoops.Ticker    `json:"ticker"`
	Side      hoops.Side      `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Fee       decimal.Decimal `json:"fee"`
	PnL       decimal.Decimal `json:"pnl"`
	Timestamp time.Time       `json:"timestamp"`
}

// Account represents the paper trading account. Position is signed:
// positive is long the home team, negative is short.
type Account struct {
	ID             string           `json:"id"`
	InitialBalance decimal.Decimal  `json:"initial_balance"`
	Balance        decimal.Decimal  `json:"balance"`
	Position       decimal.Decimal  `json:"position"`
	AvgEntry       decimal.Decimal  `json:"avg_entry"`
	RealizedPnL    decimal.Decimal  `json:"realized_pnl"`
	OpenOrders     map[int64]*Order `json:"open_orders"`
	TradeHistory   []Trade          `json:"trade_history"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// AccountStats provides account statistics.
type AccountStats struct {
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       decimal.Decimal `json:"win_rate"`
	AvgWin        decimal.Decimal `json:"avg_win"`
	AvgLoss       decimal.Decimal `json:"avg_loss"`
	LargestWin    decimal.Decimal `json:"largest_win"`
	LargestLoss   decimal.Decimal `json:"largest_loss"`
	TotalVolume   decimal.Decimal `json:"total_volume"`
	TotalFees     decimal.Decimal `json:"total_fees"`
	LastPrice     decimal.Decimal `json:"last_price"`
}

// SimulationConfig configures the paper venue.
type SimulationConfig struct {
	Ticker         hoops.Ticker    `json:"ticker" yaml:"ticker"`
	InitialBalance decimal.Decimal `json:"initial_balance" yaml:"initial_balance"`

	// Fees in basis points of notional. Resting fills pay maker, immediate
	// fills pay taker.
	MakerFeeBps decimal.Decimal `json:"maker_fee_bps" yaml:"maker_fee_bps"`
	TakerFeeBps decimal.Decimal `json:"taker_fee_bps" yaml:"taker_fee_bps"`

	// SlippageBps is charged on market orders that fall back to the last
	// price because the book had no liquidity.
	SlippageBps decimal.Decimal `json:"slippage_bps" yaml:"slippage_bps"`
}

// DefaultSimulationConfig returns a fee-free venue funded like the strategy.
func DefaultSimulationConfig() *SimulationConfig {
	return &SimulationConfig{
		Ticker:         hoops.TickerHome,
		InitialBalance: decimal.NewFromInt(100000),
		MakerFeeBps:    decimal.Zero,
		TakerFeeBps:    decimal.Zero,
		SlippageBps:    decimal.Zero,
	}
}

// RealisticSimulationConfig returns a config with fees and slippage.
func RealisticSimulationConfig() *SimulationConfig {
	return &SimulationConfig{
		Ticker:         hoops.TickerHome,
		InitialBalance: decimal.NewFromInt(100000),
		MakerFeeBps:    decimal.Zero,
		TakerFeeBps:    decimal.NewFromInt(5),
		SlippageBps:    decimal.NewFromInt(10),
	}
}
