// Package book provides the L2 orderbook the paper venue matches against.
// Levels are quoted on the contract's 50-150 price scale.
package book

import (
	"fmt"
	"sort"
	"sync"

	"github.com/phenomenon0/courtside/pkg/hoops"

	"github.com/shopspring/decimal"
)

// PriceLevel represents an aggregated price level in the orderbook.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBook is an L2 orderbook with aggregated price levels.
type OrderBook struct {
	Ticker hoops.Ticker

	bids []PriceLevel // best (highest) first
	asks []PriceLevel // best (lowest) first
	mu   sync.RWMutex
}

// NewOrderBook creates a new empty orderbook.
func NewOrderBook(ticker hoops.Ticker) *OrderBook {
	return &OrderBook{Ticker: ticker}
}

// --- Read Operations ---

// BestBid returns the best bid price and size, or zeros if there are no bids.
func (ob *OrderBook) BestBid() (price, size decimal.Decimal) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	if len(ob.bids) == 0 {
		return decimal.Zero, decimal.Zero
	}
	return ob.bids[0].Price, ob.bids[0].Size
}

// BestAsk returns the best ask price and size, or zeros if there are no asks.
func (ob *OrderBook) BestAsk() (price, size decimal.Decimal) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	if len(ob.asks) == 0 {
		return decimal.Zero, decimal.Zero
	}
	return ob.asks[0].Price, ob.asks[0].Size
}

// Midpoint returns the midpoint between best bid and ask.
// Returns zero if either side is empty.
func (ob *OrderBook) Midpoint() decimal.Decimal {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	if len(ob.bids) == 0 || len(ob.asks) == 0 {
		return decimal.Zero
	}
	return ob.bids[0].Price.Add(ob.asks[0].Price).Div(decimal.NewFromInt(2))
}

// Spread returns the bid-ask spread, or zero if either side is empty.
func (ob *OrderBook) Spread() decimal.Decimal {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	if len(ob.bids) == 0 || len(ob.asks) == 0 {
		return decimal.Zero
	}
	return ob.asks[0].Price.Sub(ob.bids[0].Price)
}

// Bids returns a copy of the bid levels.
func (ob *OrderBook) Bids() []PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return append([]PriceLevel(nil), ob.bids...)
}

// Asks returns a copy of the ask levels.
func (ob *OrderBook) Asks() []PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return append([]PriceLevel(nil), ob.asks...)
}

// Depth returns the number of bid and ask levels.
func (ob *OrderBook) Depth() (bids, asks int) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return len(ob.bids), len(ob.asks)
}

// VolumeWeightedPrice returns the average price to fill size by taking
// liquidity on the side opposite to side.
func (ob *OrderBook) VolumeWeightedPrice(side hoops.Side, size decimal.Decimal) (decimal.Decimal, error) {
	result := ob.SimulateMarketOrder(side, size)
	if result.TotalSize.IsZero() {
		return decimal.Zero, fmt.Errorf("no liquidity for %s", side)
	}
	if result.Unfilled.GreaterThan(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("insufficient liquidity: needed %s, missing %s", size, result.Unfilled)
	}
	return result.AvgPrice, nil
}

// --- Write Operations ---

// SetBids replaces all bid levels.
func (ob *OrderBook) SetBids(levels []PriceLevel) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.bids = append([]PriceLevel(nil), levels...)
	sort.Slice(ob.bids, func(i, j int) bool {
		return ob.bids[i].Price.GreaterThan(ob.bids[j].Price)
	})
}

// SetAsks replaces all ask levels.
func (ob *OrderBook) SetAsks(levels []PriceLevel) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.asks = append([]PriceLevel(nil), levels...)
	sort.Slice(ob.asks, func(i, j int) bool {
		return ob.asks[i].Price.LessThan(ob.asks[j].Price)
	})
}

// UpdateLevel sets the size at a price level; zero size removes it.
// A BUY side update is a bid, SELL an ask. Levels on the other side that the
// new quote crosses are dropped, so the book never stays locked on stale quotes.
func (ob *OrderBook) UpdateLevel(side hoops.Side, price, size decimal.Decimal) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if side == hoops.SideBuy {
		ob.bids = upsertLevel(ob.bids, price, size, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
		if size.IsPositive() {
			for len(ob.asks) > 0 && ob.asks[0].Price.LessThanOrEqual(price) {
				ob.asks = ob.asks[1:]
			}
		}
		return
	}

	ob.asks = upsertLevel(ob.asks, price, size, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
	if size.IsPositive() {
		for len(ob.bids) > 0 && ob.bids[0].Price.GreaterThanOrEqual(price) {
			ob.bids = ob.bids[1:]
		}
	}
}

// upsertLevel keeps levels sorted with better(a, b) meaning a sorts before b.
func upsertLevel(levels []PriceLevel, price, size decimal.Decimal, better func(a, b decimal.Decimal) bool) []PriceLevel {
	idx := sort.Search(len(levels), func(i int) bool {
		return !better(levels[i].Price, price)
	})

	exists := idx < len(levels) && levels[idx].Price.Equal(price)
	if !size.IsPositive() {
		if exists {
			levels = append(levels[:idx], levels[idx+1:]...)
		}
		return levels
	}
	if exists {
		levels[idx].Size = size
		return levels
	}

	levels = append(levels, PriceLevel{})
	copy(levels[idx+1:], levels[idx:])
	levels[idx] = PriceLevel{Price: price, Size: size}
	return levels
}

// Clear removes all levels from the orderbook.
func (ob *OrderBook) Clear() {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.bids = nil
	ob.asks = nil
}

// --- Matching Simulation ---

// MatchResult represents the result of simulating a trade.
type MatchResult struct {
	Side        hoops.Side
	TotalSize   decimal.Decimal
	TotalCost   decimal.Decimal
	AvgPrice    decimal.Decimal
	Fills       []Fill
	Unfilled    decimal.Decimal
	PriceImpact decimal.Decimal // percent of the first fill price
}

// Fill represents a single fill against a price level.
type Fill struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// SimulateMarketOrder walks the book for a market order of the given side.
// It does not modify the book.
func (ob *OrderBook) SimulateMarketOrder(side hoops.Side, size decimal.Decimal) MatchResult {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	levels := ob.bids
	if side == hoops.SideBuy {
		levels = ob.asks
	}

	result := MatchResult{Side: side}
	remaining := size

	for _, level := range levels {
		if !remaining.IsPositive() {
			break
		}
		fillSize := decimal.Min(level.Size, remaining)
		result.Fills = append(result.Fills, Fill{Price: level.Price, Size: fillSize})
		result.TotalCost = result.TotalCost.Add(level.Price.Mul(fillSize))
		result.TotalSize = result.TotalSize.Add(fillSize)
		remaining = remaining.Sub(fillSize)
	}
	result.Unfilled = remaining

	if result.TotalSize.IsPositive() {
		result.AvgPrice = result.TotalCost.Div(result.TotalSize)
		first := result.Fills[0].Price
		if !first.IsZero() {
			result.PriceImpact = result.AvgPrice.Sub(first).Abs().Div(first).Mul(decimal.NewFromInt(100))
		}
	}
	return result
}

func (ob *OrderBook) String() string {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	var bid, ask decimal.Decimal
	if len(ob.bids) > 0 {
		bid = ob.bids[0].Price
	}
	if len(ob.asks) > 0 {
		ask = ob.asks[0].Price
	}
	return fmt.Sprintf("OrderBook{ticker=%s, bids=%d, asks=%d, bid=%s, ask=%s}",
		ob.Ticker, len(ob.bids), len(ob.asks), bid, ask)
}
