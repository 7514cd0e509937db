// Package policy enforces venue-side pre-trade limits for the paper venue.
// These sit outside the strategy's own sizing and affordability rules.
package policy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOrder     = errors.New("invalid order")
	ErrOrderTooLarge    = errors.New("order notional over limit")
	ErrTooManyOpen      = errors.New("too many open orders")
	ErrDailyOrderLimit  = errors.New("daily order limit reached")
	ErrDailyVolumeLimit = errors.New("daily volume limit reached")
)

// VenueLimits defines the limits a venue account is held to.
type VenueLimits struct {
	MaxOrderNotional decimal.Decimal `json:"max_order_notional" yaml:"max_order_notional"`
	MaxOpenOrders    int             `json:"max_open_orders" yaml:"max_open_orders"`
	MaxDailyOrders   int             `json:"max_daily_orders" yaml:"max_daily_orders"`
	MaxDailyVolume   decimal.Decimal `json:"max_daily_volume" yaml:"max_daily_volume"`
}

// DefaultVenueLimits returns limits loose enough that the strategy's own
// position cap is always the binding constraint.
func DefaultVenueLimits() *VenueLimits {
	return &VenueLimits{
		MaxOrderNotional: decimal.NewFromInt(250000),
		MaxOpenOrders:    50,
		MaxDailyOrders:   10000,
		MaxDailyVolume:   decimal.NewFromInt(50000000),
	}
}

// TightVenueLimits returns small limits for exercising rejections.
func TightVenueLimits() *VenueLimits {
	return &VenueLimits{
		MaxOrderNotional: decimal.NewFromInt(5000),
		MaxOpenOrders:    2,
		MaxDailyOrders:   20,
		MaxDailyVolume:   decimal.NewFromInt(20000),
	}
}

// PolicyEngine enforces venue limits and tracks daily usage.
type PolicyEngine struct {
	limits *VenueLimits
	now    func() time.Time

	mu           sync.RWMutex
	openOrders   int
	dailyOrders  int
	dailyVolume  decimal.Decimal
	rejected     int
	lastTradeDay int
}

// NewPolicyEngine creates a new policy engine with the given limits.
func NewPolicyEngine(limits *VenueLimits) *PolicyEngine {
	if limits == nil {
		limits = DefaultVenueLimits()
	}
	p := &PolicyEngine{
		limits: limits,
		now:    time.Now,
	}
	p.lastTradeDay = p.now().YearDay()
	return p
}

// Limits returns the configured limits.
func (p *PolicyEngine) Limits() VenueLimits {
	return *p.limits
}

// CheckOrder validates an order of size shares at price. A rejection is
// counted and returned as a wrapped sentinel error.
func (p *PolicyEngine) CheckOrder(size, price decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resetDailyIfNeeded()

	err := p.check(size, price)
	if err != nil {
		p.rejected++
	}
	return err
}

func (p *PolicyEngine) check(size, price decimal.Decimal) error {
	if !size.IsPositive() || !price.IsPositive() {
		return fmt.Errorf("%w: size %s price %s", ErrInvalidOrder, size, price)
	}

	notional := size.Mul(price)
	if notional.GreaterThan(p.limits.MaxOrderNotional) {
		return fmt.Errorf("%w: $%s > $%s", ErrOrderTooLarge, notional.StringFixed(2), p.limits.MaxOrderNotional)
	}
	if p.openOrders >= p.limits.MaxOpenOrders {
		return fmt.Errorf("%w: %d >= %d", ErrTooManyOpen, p.openOrders, p.limits.MaxOpenOrders)
	}
	if p.dailyOrders >= p.limits.MaxDailyOrders {
		return fmt.Errorf("%w: %d", ErrDailyOrderLimit, p.limits.MaxDailyOrders)
	}
	if p.dailyVolume.Add(notional).GreaterThan(p.limits.MaxDailyVolume) {
		return fmt.Errorf("%w: $%s", ErrDailyVolumeLimit, p.limits.MaxDailyVolume)
	}
	return nil
}

// RecordOrder records an accepted order that is now resting.
func (p *PolicyEngine) RecordOrder() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetDailyIfNeeded()
	p.openOrders++
	p.dailyOrders++
}

// RecordOrderClosed records a resting order leaving the book, whether
// filled, cancelled or expired.
func (p *PolicyEngine) RecordOrderClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openOrders > 0 {
		p.openOrders--
	}
}

// RecordFill adds a fill to the daily traded volume.
func (p *PolicyEngine) RecordFill(size, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetDailyIfNeeded()
	p.dailyVolume = p.dailyVolume.Add(size.Mul(price))
}

// Reset clears all usage counters.
func (p *PolicyEngine) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openOrders = 0
	p.dailyOrders = 0
	p.dailyVolume = decimal.Zero
	p.rejected = 0
	p.lastTradeDay = p.now().YearDay()
}

func (p *PolicyEngine) resetDailyIfNeeded() {
	day := p.now().YearDay()
	if p.lastTradeDay != day {
		p.dailyVolume = decimal.Zero
		p.dailyOrders = 0
		p.lastTradeDay = day
	}
}

// PolicyStatus returns a summary of the current policy state.
type PolicyStatus struct {
	OpenOrders       int    `json:"open_orders"`
	MaxOpenOrders    int    `json:"max_open_orders"`
	DailyOrders      int    `json:"daily_orders"`
	MaxDailyOrders   int    `json:"max_daily_orders"`
	DailyVolume      string `json:"daily_volume"`
	MaxDailyVolume   string `json:"max_daily_volume"`
	MaxOrderNotional string `json:"max_order_notional"`
	Rejected         int    `json:"rejected"`
}

// Status returns the current policy status.
func (p *PolicyEngine) Status() PolicyStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PolicyStatus{
		OpenOrders:       p.openOrders,
		MaxOpenOrders:    p.limits.MaxOpenOrders,
		DailyOrders:      p.dailyOrders,
		MaxDailyOrders:   p.limits.MaxDailyOrders,
		DailyVolume:      p.dailyVolume.StringFixed(2),
		MaxDailyVolume:   p.limits.MaxDailyVolume.String(),
		MaxOrderNotional: p.limits.MaxOrderNotional.String(),
		Rejected:         p.rejected,
	}
}
