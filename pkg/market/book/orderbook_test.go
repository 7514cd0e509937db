package book

import (
	"testing"

	"github.com/phenomenon0/courtside/pkg/hoops"

	"github.com/shopspring/decimal"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestNewOrderBook(t *testing.T) {
	ob := NewOrderBook(hoops.TickerHome)

	if ob.Ticker != hoops.TickerHome {
		t.Errorf("Wrong ticker: %s", ob.Ticker)
	}
	bids, asks := ob.Depth()
	if bids != 0 || asks != 0 {
		t.Errorf("New orderbook should be empty, got %d bids %d asks", bids, asks)
	}
	if !ob.Midpoint().IsZero() {
		t.Error("Empty book should have zero midpoint")
	}
}

func TestSetBidsAsks(t *testing.T) {
	ob := NewOrderBook(hoops.TickerHome)

	ob.SetBids([]PriceLevel{
		{Price: d(98), Size: d(100)},
		{Price: d(99), Size: d(200)}, // best bid
		{Price: d(97), Size: d(150)},
	})
	ob.SetAsks([]PriceLevel{
		{Price: d(102), Size: d(180)},
		{Price: d(101), Size: d(120)}, // best ask
		{Price: d(103), Size: d(250)},
	})

	price, size := ob.BestBid()
	if !price.Equal(d(99)) || !size.Equal(d(200)) {
		t.Errorf("Wrong best bid: %s @ %s", size, price)
	}
	price, size = ob.BestAsk()
	if !price.Equal(d(101)) || !size.Equal(d(120)) {
		t.Errorf("Wrong best ask: %s @ %s", size, price)
	}
	if !ob.Midpoint().Equal(d(100)) {
		t.Errorf("Wrong midpoint: %s", ob.Midpoint())
	}
	if !ob.Spread().Equal(d(2)) {
		t.Errorf("Wrong spread: %s", ob.Spread())
	}
}

func TestUpdateLevel(t *testing.T) {
	ob := NewOrderBook(hoops.TickerHome)

	ob.UpdateLevel(hoops.SideBuy, d(90), d(10))
	ob.UpdateLevel(hoops.SideBuy, d(92), d(5))
	ob.UpdateLevel(hoops.SideBuy, d(91), d(7))

	bids := ob.Bids()
	if len(bids) != 3 {
		t.Fatalf("Expected 3 bids, got %d", len(bids))
	}
	for i, want := range []float64{92, 91, 90} {
		if !bids[i].Price.Equal(d(want)) {
			t.Errorf("bid[%d] = %s, want %v", i, bids[i].Price, want)
		}
	}

	// Resize existing level
	ob.UpdateLevel(hoops.SideBuy, d(91), d(20))
	if got := ob.Bids()[1].Size; !got.Equal(d(20)) {
		t.Errorf("Level not resized: %s", got)
	}

	// Remove level
	ob.UpdateLevel(hoops.SideBuy, d(92), decimal.Zero)
	price, _ := ob.BestBid()
	if !price.Equal(d(91)) {
		t.Errorf("Best bid after removal = %s, want 91", price)
	}

	// Removing a missing level is a no-op
	ob.UpdateLevel(hoops.SideSell, d(120), decimal.Zero)
	if _, asks := ob.Depth(); asks != 0 {
		t.Errorf("Expected no asks, got %d", asks)
	}
}

func TestUpdateLevel_UncrossesBook(t *testing.T) {
	ob := NewOrderBook(hoops.TickerHome)
	ob.SetAsks([]PriceLevel{
		{Price: d(100), Size: d(10)},
		{Price: d(101), Size: d(10)},
		{Price: d(105), Size: d(10)},
	})

	ob.UpdateLevel(hoops.SideBuy, d(101), d(3))

	price, _ := ob.BestAsk()
	if !price.Equal(d(105)) {
		t.Errorf("Crossed asks should be dropped, best ask = %s", price)
	}

	ob.UpdateLevel(hoops.SideSell, d(99), d(4))
	if bids, _ := ob.Depth(); bids != 0 {
		t.Errorf("Crossed bid should be dropped, %d bids left", bids)
	}
}

func TestSimulateMarketOrder(t *testing.T) {
	ob := NewOrderBook(hoops.TickerHome)
	ob.SetAsks([]PriceLevel{
		{Price: d(100), Size: d(10)},
		{Price: d(110), Size: d(10)},
	})

	result := ob.SimulateMarketOrder(hoops.SideBuy, d(15))
	if !result.TotalSize.Equal(d(15)) {
		t.Errorf("TotalSize = %s, want 15", result.TotalSize)
	}
	if !result.TotalCost.Equal(d(1550)) {
		t.Errorf("TotalCost = %s, want 1550", result.TotalCost)
	}
	if len(result.Fills) != 2 {
		t.Errorf("Expected 2 fills, got %d", len(result.Fills))
	}
	if !result.Unfilled.IsZero() {
		t.Errorf("Unfilled = %s, want 0", result.Unfilled)
	}
	if result.PriceImpact.LessThanOrEqual(decimal.Zero) {
		t.Error("Walking two levels should show price impact")
	}

	// Book is untouched
	_, size := ob.BestAsk()
	if !size.Equal(d(10)) {
		t.Errorf("Simulation modified the book: %s", size)
	}

	// Sells hit empty bids
	result = ob.SimulateMarketOrder(hoops.SideSell, d(5))
	if !result.TotalSize.IsZero() || !result.Unfilled.Equal(d(5)) {
		t.Errorf("Expected no fill against empty bids, got %s filled", result.TotalSize)
	}
}

func TestVolumeWeightedPrice(t *testing.T) {
	ob := NewOrderBook(hoops.TickerHome)
	ob.SetBids([]PriceLevel{
		{Price: d(90), Size: d(10)},
		{Price: d(80), Size: d(10)},
	})

	vwap, err := ob.VolumeWeightedPrice(hoops.SideSell, d(20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !vwap.Equal(d(85)) {
		t.Errorf("VWAP = %s, want 85", vwap)
	}

	if _, err := ob.VolumeWeightedPrice(hoops.SideSell, d(25)); err == nil {
		t.Error("Expected insufficient liquidity error")
	}
	if _, err := ob.VolumeWeightedPrice(hoops.SideBuy, d(1)); err == nil {
		t.Error("Expected no liquidity error")
	}
}

func TestClear(t *testing.T) {
	ob := NewOrderBook(hoops.TickerHome)
	ob.UpdateLevel(hoops.SideBuy, d(90), d(1))
	ob.UpdateLevel(hoops.SideSell, d(95), d(1))
	ob.Clear()

	if bids, asks := ob.Depth(); bids != 0 || asks != 0 {
		t.Errorf("Clear left %d bids, %d asks", bids, asks)
	}
}
