package hoops

import "math"

// ShouldTrade compares the model probability with the probability implied
// by the market price. It reports a BUY when the market undervalues the home
// team by more than EdgeThreshold, a SELL when it overvalues it, and the
// absolute probability gap as the edge.
func ShouldTrade(modelProb, marketPrice float64) (bool, Side, float64) {
	marketProb := MarketPriceToProbability(marketPrice)
	switch {
	case modelProb > marketProb+EdgeThreshold:
		return true, SideBuy, modelProb - marketProb
	case modelProb < marketProb-EdgeThreshold:
		return true, SideSell, marketProb - modelProb
	default:
		return false, SideBuy, 0
	}
}

// KellyFraction is the capped Kelly stake for a trade at price, before the
// configured Kelly multiplier. Zero when the price leaves no room on either
// side of the 50-150 band.
func KellyFraction(edge float64, side Side, price float64) float64 {
	upside := PriceCeiling - price
	downside := price - PriceFloor
	if side == SideSell {
		upside, downside = downside, upside
	}
	if upside <= 0 || downside <= 0 {
		return 0
	}

	winProb := clamp(0.5+edge*2, 0.51, 0.95)
	loseProb := 1.0 - winProb
	b := upside / downside

	return math.Max(0, (winProb*b-loseProb)/b)
}

// PositionSize converts an edge into a share quantity. BUY notional is capped
// by cash; SELL notional by the value of the current position, so a flat
// book sells only the MinTradeSize floor.
func PositionSize(cfg Config, p Portfolio, edge float64, side Side, price float64) float64 {
	if price <= PriceFloor || price >= PriceCeiling {
		return 0
	}
	f := KellyFraction(edge, side, price) * cfg.KellyFraction

	limit := math.Abs(p.Position) * price
	if side == SideBuy {
		limit = p.Cash
	}
	dollars := math.Min(math.Min(p.Capital*f, cfg.MaxPositionSize), limit)
	dollars = math.Max(cfg.MinTradeSize, dollars)

	return math.Max(1.0, dollars/price)
}

// CanAfford applies the pre-trade checks. BUY must fit in cash and under the
// position cap; SELL is only held to the position cap.
func CanAfford(cfg Config, p Portfolio, side Side, qty, price float64) bool {
	if qty <= 0 {
		return false
	}
	if side == SideBuy {
		return qty*price <= p.Cash && qty <= cfg.MaxPositionSize
	}
	return qty <= cfg.MaxPositionSize
}
