// Package hoops implements the home-win probability arbitrage strategy for a
// single basketball proposition market quoted on a 50-150 price scale.
package hoops

import (
	"fmt"
	"time"
)

// Side represents order side.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the side that closes a position opened on s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// MarshalText encodes the side as BUY or SELL.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseSide parses BUY/SELL in any case.
func ParseSide(s string) (Side, error) {
	switch normalizeToken(s) {
	case "BUY", "B", "BID":
		return SideBuy, nil
	case "SELL", "S", "ASK", "OFFER":
		return SideSell, nil
	default:
		return SideBuy, fmt.Errorf("unknown side %q", s)
	}
}

// Ticker identifies the traded instrument. Only the home-team contract exists.
type Ticker int

const (
	TickerHome Ticker = iota
)

func (t Ticker) String() string {
	if t == TickerHome {
		return "TEAM_A"
	}
	return "UNKNOWN"
}

// MarshalText encodes the ticker symbol.
func (t Ticker) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// TeamSide is the team an event is attributed to.
type TeamSide int

const (
	TeamHome TeamSide = iota
	TeamAway
)

func (t TeamSide) String() string {
	if t == TeamHome {
		return "home"
	}
	return "away"
}

// MarshalText encodes the team side as home or away.
func (t TeamSide) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// EventType is the kind of play-by-play event.
type EventType int

const (
	EventOther EventType = iota
	EventScore
	EventMissed
	EventTurnover
	EventSteal
	EventBlock
	EventFoul
	EventEndGame
)

func (e EventType) String() string {
	switch e {
	case EventScore:
		return "SCORE"
	case EventMissed:
		return "MISSED"
	case EventTurnover:
		return "TURNOVER"
	case EventSteal:
		return "STEAL"
	case EventBlock:
		return "BLOCK"
	case EventFoul:
		return "FOUL"
	case EventEndGame:
		return "END_GAME"
	default:
		return "OTHER"
	}
}

// MarshalText encodes the event type name.
func (e EventType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// ShotType qualifies scoring and missed-shot events.
type ShotType int

const (
	ShotNone ShotType = iota
	ShotThreePoint
	ShotDunk
	ShotLayup
	ShotJumpShot
	ShotFreeThrow
	ShotOther
)

func (s ShotType) String() string {
	switch s {
	case ShotNone:
		return ""
	case ShotThreePoint:
		return "THREE_POINT"
	case ShotDunk:
		return "DUNK"
	case ShotLayup:
		return "LAYUP"
	case ShotJumpShot:
		return "JUMP_SHOT"
	case ShotFreeThrow:
		return "FREE_THROW"
	default:
		return "OTHER"
	}
}

// MarshalText encodes the shot type name.
func (s ShotType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// GameEvent is a single play-by-play update for the tracked game.
// Only Type, Team, scores, Shot and TimeSeconds drive the strategy; the rest
// is carried for logging and the journal.
type GameEvent struct {
	Type                  EventType `json:"event_type"`
	RawType               string    `json:"raw_event_type,omitempty"`
	Team                  TeamSide  `json:"home_away"`
	HomeScore             int       `json:"home_score"`
	AwayScore             int       `json:"away_score"`
	PlayerName            string    `json:"player_name,omitempty"`
	SubstitutedPlayerName string    `json:"substituted_player_name,omitempty"`
	Shot                  ShotType  `json:"shot_type,omitempty"`
	AssistPlayer          string    `json:"assist_player,omitempty"`
	ReboundType           string    `json:"rebound_type,omitempty"`
	CoordinateX           *float64  `json:"coordinate_x,omitempty"`
	CoordinateY           *float64  `json:"coordinate_y,omitempty"`
	TimeSeconds           *float64  `json:"time_seconds,omitempty"`
}

// Seconds returns a pointer to v, for populating optional event fields.
func Seconds(v float64) *float64 {
	return &v
}

// GameState is the tracked state of the game.
type GameState struct {
	HomeScore     int      `json:"home_score"`
	AwayScore     int      `json:"away_score"`
	TimeRemaining float64  `json:"time_remaining"`
	HomeMomentum  float64  `json:"home_momentum"`
	AwayMomentum  float64  `json:"away_momentum"`
	LastEventTime *float64 `json:"last_event_time,omitempty"`
}

// ScoreDiff returns home minus away.
func (g GameState) ScoreDiff() int {
	return g.HomeScore - g.AwayScore
}

// Portfolio is the strategy's view of its own holdings.
type Portfolio struct {
	Position       float64 `json:"position"`
	Cash           float64 `json:"cash"`
	Capital        float64 `json:"capital"`
	PortfolioValue float64 `json:"portfolio_value"`
	MarketPrice    float64 `json:"market_price"`
}

// Revalue recomputes PortfolioValue from cash, position and the last price.
func (p *Portfolio) Revalue() {
	p.PortfolioValue = p.Cash + p.Position*p.MarketPrice
}

// ExitReason names why a position was flattened.
type ExitReason int

const (
	ExitNone ExitReason = iota
	ExitTakeProfit
	ExitStopLoss
	ExitLateGame
	ExitGameEnd
)

func (r ExitReason) String() string {
	switch r {
	case ExitTakeProfit:
		return "take_profit"
	case ExitStopLoss:
		return "stop_loss"
	case ExitLateGame:
		return "late_game"
	case ExitGameEnd:
		return "game_end"
	default:
		return "none"
	}
}

// MarshalText encodes the exit reason.
func (r ExitReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Signal is emitted whenever the decision logic finds an edge.
type Signal struct {
	GameID      string    `json:"game_id"`
	Side        Side      `json:"side"`
	Edge        float64   `json:"edge"`
	ModelProb   float64   `json:"model_prob"`
	MarketProb  float64   `json:"market_prob"`
	MarketPrice float64   `json:"market_price"`
	Quantity    float64   `json:"quantity"`
	Placed      bool      `json:"placed"`
	Timestamp   time.Time `json:"timestamp"`
}

// OrderKind distinguishes resting limit orders from liquidation market orders.
type OrderKind int

const (
	OrderLimit OrderKind = iota
	OrderMarket
)

func (k OrderKind) String() string {
	if k == OrderMarket {
		return "MARKET"
	}
	return "LIMIT"
}

// MarshalText encodes the order kind.
func (k OrderKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Order records an order the strategy sent to the venue.
type Order struct {
	GameID    string    `json:"game_id"`
	ID        int64     `json:"id"`
	Kind      OrderKind `json:"kind"`
	Side      Side      `json:"side"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Accepted  bool      `json:"accepted"`
	Timestamp time.Time `json:"timestamp"`
}

// Fill is a fill reported by the venue, as applied to the portfolio.
type Fill struct {
	GameID           string    `json:"game_id"`
	Side             Side      `json:"side"`
	Quantity         float64   `json:"quantity"`
	Price            float64   `json:"price"`
	CapitalRemaining float64   `json:"capital_remaining"`
	Position         float64   `json:"position"`
	Cash             float64   `json:"cash"`
	Timestamp        time.Time `json:"timestamp"`
}

// Exit records a liquidation and the end of a game's state.
type Exit struct {
	GameID         string     `json:"game_id"`
	Reason         ExitReason `json:"reason"`
	PnL            float64    `json:"pnl"`
	PortfolioValue float64    `json:"portfolio_value"`
	Position       float64    `json:"position"`
	HomeScore      int        `json:"home_score"`
	AwayScore      int        `json:"away_score"`
	TimeRemaining  float64    `json:"time_remaining"`
	Events         int        `json:"events"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Snapshot is a read-only copy of the strategy state.
type Snapshot struct {
	GameID       string    `json:"game_id"`
	Game         GameState `json:"game"`
	Portfolio    Portfolio `json:"portfolio"`
	ModelProb    float64   `json:"model_prob"`
	MarketProb   float64   `json:"market_prob"`
	PnL          float64   `json:"pnl"`
	ActiveOrders []int64   `json:"active_orders"`
	Events       int       `json:"events"`
	Config       Config    `json:"config"`
}
