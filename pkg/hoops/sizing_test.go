package hoops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func startPortfolio() Portfolio {
	return Portfolio{Cash: 100000, Capital: 100000, PortfolioValue: 100000, MarketPrice: 55}
}

func TestShouldTrade(t *testing.T) {
	tests := []struct {
		name     string
		model    float64
		price    float64
		wantOK   bool
		wantSide Side
		wantEdge float64
	}{
		{"market far below model", 0.57, 55, true, SideBuy, 0.52},
		{"market far above model", 0.40, 120, true, SideSell, 0.30},
		{"inside threshold", 0.55, 103, false, SideBuy, 0},
		{"exactly at threshold", 0.58, 105, false, SideBuy, 0},
		{"just past threshold", 0.5801, 105, true, SideBuy, 0.0301},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, side, edge := ShouldTrade(tt.model, tt.price)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantSide, side)
			}
			assert.InDelta(t, tt.wantEdge, edge, 1e-9)
		})
	}
}

func TestShouldTrade_Symmetric(t *testing.T) {
	// model 0.70 vs market 0.50 and model 0.50 vs market 0.70
	okBuy, sideBuy, edgeBuy := ShouldTrade(0.70, ProbabilityToPrice(0.50))
	okSell, sideSell, edgeSell := ShouldTrade(0.50, ProbabilityToPrice(0.70))

	assert.True(t, okBuy)
	assert.True(t, okSell)
	assert.Equal(t, SideBuy, sideBuy)
	assert.Equal(t, SideSell, sideSell)
	assert.InDelta(t, edgeBuy, edgeSell, 1e-12)
}

func TestPositionSize_OpeningBuy(t *testing.T) {
	cfg := DefaultConfig()
	qty := PositionSize(cfg, startPortfolio(), 0.52, SideBuy, 55)

	// Kelly stake ~0.947 of capital is capped at the $20k position limit.
	assert.InDelta(t, 20000.0/55.0, qty, 1e-9)
	assert.True(t, CanAfford(cfg, startPortfolio(), SideBuy, qty, 55))
}

func TestPositionSize_OutsideBand(t *testing.T) {
	cfg := DefaultConfig()
	for _, price := range []float64{50, 150, 20, 175} {
		assert.Equal(t, 0.0, PositionSize(cfg, startPortfolio(), 0.2, SideBuy, price), "price %v", price)
		assert.Equal(t, 0.0, PositionSize(cfg, startPortfolio(), 0.2, SideSell, price), "price %v", price)
	}
}

func TestPositionSize_Floors(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("flat book sells the minimum trade", func(t *testing.T) {
		qty := PositionSize(cfg, startPortfolio(), 0.3, SideSell, 60)
		assert.InDelta(t, 100.0/60.0, qty, 1e-9)
	})

	t.Run("at least one share", func(t *testing.T) {
		p := startPortfolio()
		p.Cash = 0
		qty := PositionSize(cfg, p, 0.3, SideBuy, 140)
		assert.Equal(t, 1.0, qty)
	})

	t.Run("zero kelly falls back to minimum size", func(t *testing.T) {
		// 1% edge on a rich price: win 0.52 at odds 1:9 has negative Kelly.
		assert.Equal(t, 0.0, KellyFraction(0.01, SideBuy, 140))

		big := cfg
		big.MinTradeSize = 1000
		qty := PositionSize(big, startPortfolio(), 0.01, SideBuy, 140)
		assert.InDelta(t, 1000.0/140.0, qty, 1e-9)
	})
}

func TestPositionSize_SellCappedByPosition(t *testing.T) {
	cfg := DefaultConfig()
	p := startPortfolio()
	p.Position = 50
	// 50 shares at 120 is $6000, under both the Kelly stake and position cap.
	qty := PositionSize(cfg, p, 0.3, SideSell, 120)
	assert.InDelta(t, 50.0, qty, 1e-9)
}

func TestPositionSize_KellyMultiplier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KellyFraction = 0.01
	qty := PositionSize(cfg, startPortfolio(), 0.52, SideBuy, 55)
	f := KellyFraction(0.52, SideBuy, 55)
	assert.InDelta(t, 100000*f*0.01/55, qty, 1e-9)
}

func TestCanAfford(t *testing.T) {
	cfg := DefaultConfig()
	p := startPortfolio()
	p.Cash = 1000

	tests := []struct {
		name  string
		side  Side
		qty   float64
		price float64
		want  bool
	}{
		{"buy within cash", SideBuy, 10, 100, true},
		{"buy over cash", SideBuy, 11, 100, false},
		{"zero quantity", SideBuy, 0, 100, false},
		{"negative quantity", SideSell, -1, 100, false},
		{"sell ignores cash", SideSell, 500, 100, true},
		{"sell over share cap", SideSell, 20001, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAfford(cfg, p, tt.side, tt.qty, tt.price))
		})
	}
}
