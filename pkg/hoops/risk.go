package hoops

import "math"

// CheckRisk evaluates the exit rules in priority order: take-profit,
// stop-loss, then the late-game safety exit. PnL is measured against the
// configured baseline capital.
func CheckRisk(cfg Config, portfolioValue float64, g GameState) ExitReason {
	pnl := portfolioValue - cfg.BaselineCapital

	if pnl >= cfg.TakeProfitLevel() {
		return ExitTakeProfit
	}
	if pnl <= cfg.StopLossLevel() {
		return ExitStopLoss
	}

	diff := int(math.Abs(float64(g.ScoreDiff())))
	if g.TimeRemaining < LateGameSeconds && diff < LateGameMaxDiff && pnl > lateGameMinPnL {
		return ExitLateGame
	}
	return ExitNone
}

// IsGameOver reports whether the event ends the game, either explicitly or
// because the clock is inside the final seconds.
func IsGameOver(et EventType, timeRemaining float64) bool {
	return et == EventEndGame || timeRemaining < GameEndSeconds
}

// Liquidation returns the market order that flattens position, or false when
// already flat.
func Liquidation(position float64) (Side, float64, bool) {
	switch {
	case position > 0:
		return SideSell, position, true
	case position < 0:
		return SideBuy, -position, true
	default:
		return SideBuy, 0, false
	}
}
