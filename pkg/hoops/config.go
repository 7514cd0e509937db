package hoops

import (
	"errors"
	"fmt"
)

// Game clock and pricing constants.
const (
	GameLength       = 2880.0 // regulation seconds
	BaseHomeProb     = 0.55
	MinProb          = 0.05
	MaxProb          = 0.95
	PriceFloor       = 50.0
	PriceCeiling     = 150.0
	EdgeThreshold    = 0.03
	LateGameSeconds  = 600.0
	LateGameMaxDiff  = 5
	GameEndSeconds   = 3.0
	takeProfitPerKF  = 80000.0
	stopLossPerKF    = 50000.0
	lateGameMinPnL   = 55000.0
	initialModelProb = BaseHomeProb
	initialPrice     = 55.0
)

// Config holds the per-game strategy parameters. It is fixed for the life of
// a Strategy and restored on every reset.
type Config struct {
	BaselineCapital  float64 `json:"baseline_capital" yaml:"baseline_capital"`
	MaxPositionSize  float64 `json:"max_position_size" yaml:"max_position_size"`
	MaxPortfolioRisk float64 `json:"max_portfolio_risk" yaml:"max_portfolio_risk"`
	KellyFraction    float64 `json:"kelly_fraction" yaml:"kelly_fraction"`
	MinTradeSize     float64 `json:"min_trade_size" yaml:"min_trade_size"`
	MomentumTau      float64 `json:"momentum_tau" yaml:"momentum_tau"`
}

// DefaultConfig returns the standard parameters: $100k bankroll, $20k max
// position, full Kelly, $100 minimum trade and a 180s momentum decay constant.
func DefaultConfig() Config {
	return Config{
		BaselineCapital:  100000,
		MaxPositionSize:  20000,
		MaxPortfolioRisk: 0.1, // reported only
		KellyFraction:    1.0,
		MinTradeSize:     100,
		MomentumTau:      180,
	}
}

// Validate checks that every parameter is usable.
func (c Config) Validate() error {
	var errs []error
	if c.BaselineCapital <= 0 {
		errs = append(errs, fmt.Errorf("baseline_capital must be positive, got %v", c.BaselineCapital))
	}
	if c.MaxPositionSize <= 0 {
		errs = append(errs, fmt.Errorf("max_position_size must be positive, got %v", c.MaxPositionSize))
	}
	if c.MaxPortfolioRisk <= 0 || c.MaxPortfolioRisk > 1 {
		errs = append(errs, fmt.Errorf("max_portfolio_risk must be in (0, 1], got %v", c.MaxPortfolioRisk))
	}
	if c.KellyFraction <= 0 {
		errs = append(errs, fmt.Errorf("kelly_fraction must be positive, got %v", c.KellyFraction))
	}
	if c.MinTradeSize <= 0 {
		errs = append(errs, fmt.Errorf("min_trade_size must be positive, got %v", c.MinTradeSize))
	}
	if c.MomentumTau <= 0 {
		errs = append(errs, fmt.Errorf("momentum_tau must be positive, got %v", c.MomentumTau))
	}
	return errors.Join(errs...)
}

// TakeProfitLevel is the PnL at or above which positions are closed.
func (c Config) TakeProfitLevel() float64 {
	return c.KellyFraction * takeProfitPerKF
}

// StopLossLevel is the PnL at or below which positions are closed.
func (c Config) StopLossLevel() float64 {
	return -c.KellyFraction * stopLossPerKF
}
