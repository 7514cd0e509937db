// Package feed turns live play-by-play and market data into session events.
// Messages arrive as JSON over a websocket stream or an HTTP poll endpoint.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/phenomenon0/courtside/pkg/hoops"
	"github.com/phenomenon0/courtside/pkg/trader/session"
)

// Message types on the wire.
const (
	TypeGameEvent = session.KindGameEvent
	TypeOrderbook = session.KindOrderbook
	TypeTrade     = session.KindTrade
	TypeFill      = session.KindFill
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrInvalid     = errors.New("invalid message")
)

// Message is the JSON envelope shared by every feed. Fields that do not
// apply to a message type are omitted.
type Message struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq,omitempty"`

	// game_event
	EventType             string   `json:"event_type,omitempty"`
	HomeAway              string   `json:"home_away,omitempty"`
	HomeScore             int      `json:"home_score,omitempty"`
	AwayScore             int      `json:"away_score,omitempty"`
	PlayerName            string   `json:"player_name,omitempty"`
	SubstitutedPlayerName string   `json:"substituted_player_name,omitempty"`
	ShotType              string   `json:"shot_type,omitempty"`
	AssistPlayer          string   `json:"assist_player,omitempty"`
	ReboundType           string   `json:"rebound_type,omitempty"`
	CoordinateX           *float64 `json:"coordinate_x,omitempty"`
	CoordinateY           *float64 `json:"coordinate_y,omitempty"`
	TimeSeconds           *float64 `json:"time_seconds,omitempty"`

	// orderbook, trade, fill
	Ticker           string  `json:"ticker,omitempty"`
	Side             string  `json:"side,omitempty"`
	Quantity         float64 `json:"quantity,omitempty"`
	Price            float64 `json:"price,omitempty"`
	CapitalRemaining float64 `json:"capital_remaining,omitempty"`

	// fill: game the order belonged to, if known
	GameID string `json:"game_id,omitempty"`
}

// Decode parses one JSON message into a session event.
func Decode(data []byte) (session.Event, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("feed.Decode: %w", err)
	}
	return m.Event()
}

// DecodeBatch parses a frame holding either one message or a JSON array of
// messages. Messages that fail validation are reported in errs and skipped.
func DecodeBatch(data []byte) (events []session.Event, errs []error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		ev, err := Decode(trimmed)
		if err != nil {
			return nil, []error{err}
		}
		return []session.Event{ev}, nil
	}

	var msgs []Message
	if err := json.Unmarshal(trimmed, &msgs); err != nil {
		return nil, []error{fmt.Errorf("feed.DecodeBatch: %w", err)}
	}
	for i, m := range msgs {
		ev, err := m.Event()
		if err != nil {
			errs = append(errs, fmt.Errorf("message %d: %w", i, err))
			continue
		}
		events = append(events, ev)
	}
	return events, errs
}

// Event validates the message and converts it to a session event.
// Unknown event types become hoops.EventOther; unknown teams, sides and
// message types are errors.
func (m Message) Event() (session.Event, error) {
	switch strings.ToLower(strings.TrimSpace(m.Type)) {
	case TypeGameEvent:
		return m.gameEvent()
	case TypeOrderbook:
		ticker, side, err := m.market()
		if err != nil {
			return nil, err
		}
		return session.BookUpdate{Ticker: ticker, Side: side, Quantity: m.Quantity, Price: m.Price}, nil
	case TypeTrade:
		ticker, side, err := m.market()
		if err != nil {
			return nil, err
		}
		return session.TradePrint{Ticker: ticker, Side: side, Quantity: m.Quantity, Price: m.Price}, nil
	case TypeFill:
		ticker, side, err := m.market()
		if err != nil {
			return nil, err
		}
		if m.Quantity <= 0 {
			return nil, fmt.Errorf("%w: fill quantity %v", ErrInvalid, m.Quantity)
		}
		return session.FillReport{
			GameID:           strings.TrimSpace(m.GameID),
			Ticker:           ticker,
			Side:             side,
			Price:            m.Price,
			Quantity:         m.Quantity,
			CapitalRemaining: m.CapitalRemaining,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}

func (m Message) gameEvent() (session.Event, error) {
	et := hoops.ParseEventType(m.EventType)

	team := hoops.TeamHome
	if strings.TrimSpace(m.HomeAway) != "" {
		t, err := hoops.ParseTeamSide(m.HomeAway)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		team = t
	} else if et != hoops.EventEndGame && et != hoops.EventOther {
		// Only team-neutral events may omit the side.
		return nil, fmt.Errorf("%w: %s event without home_away", ErrInvalid, et)
	}

	if m.HomeScore < 0 || m.AwayScore < 0 {
		return nil, fmt.Errorf("%w: negative score %d-%d", ErrInvalid, m.HomeScore, m.AwayScore)
	}

	return session.GameEventMsg{Event: hoops.GameEvent{
		Type:                  et,
		RawType:               m.EventType,
		Team:                  team,
		HomeScore:             m.HomeScore,
		AwayScore:             m.AwayScore,
		PlayerName:            m.PlayerName,
		SubstitutedPlayerName: m.SubstitutedPlayerName,
		Shot:                  hoops.ParseShotType(m.ShotType),
		AssistPlayer:          m.AssistPlayer,
		ReboundType:           m.ReboundType,
		CoordinateX:           m.CoordinateX,
		CoordinateY:           m.CoordinateY,
		TimeSeconds:           m.TimeSeconds,
	}}, nil
}

func (m Message) market() (hoops.Ticker, hoops.Side, error) {
	ticker := hoops.TickerHome
	if strings.TrimSpace(m.Ticker) != "" {
		t, err := hoops.ParseTicker(m.Ticker)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		ticker = t
	}
	side, err := hoops.ParseSide(m.Side)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if m.Price < 0 || m.Quantity < 0 {
		return 0, 0, fmt.Errorf("%w: negative price or quantity", ErrInvalid)
	}
	return ticker, side, nil
}

// Encode converts a session event back to its wire message.
func Encode(ev session.Event) (Message, error) {
	switch e := ev.(type) {
	case session.GameEventMsg:
		g := e.Event
		raw := g.RawType
		if raw == "" {
			raw = g.Type.String()
		}
		m := Message{
			Type:                  TypeGameEvent,
			EventType:             raw,
			HomeAway:              g.Team.String(),
			HomeScore:             g.HomeScore,
			AwayScore:             g.AwayScore,
			PlayerName:            g.PlayerName,
			SubstitutedPlayerName: g.SubstitutedPlayerName,
			AssistPlayer:          g.AssistPlayer,
			ReboundType:           g.ReboundType,
			CoordinateX:           g.CoordinateX,
			CoordinateY:           g.CoordinateY,
			TimeSeconds:           g.TimeSeconds,
		}
		if g.Shot != hoops.ShotNone {
			m.ShotType = g.Shot.String()
		}
		return m, nil
	case session.BookUpdate:
		return marketMessage(TypeOrderbook, e.Ticker, e.Side, e.Quantity, e.Price), nil
	case session.TradePrint:
		return marketMessage(TypeTrade, e.Ticker, e.Side, e.Quantity, e.Price), nil
	case session.FillReport:
		m := marketMessage(TypeFill, e.Ticker, e.Side, e.Quantity, e.Price)
		m.CapitalRemaining = e.CapitalRemaining
		m.GameID = e.GameID
		return m, nil
	default:
		return Message{}, fmt.Errorf("%w: %T", ErrUnknownType, ev)
	}
}

func marketMessage(kind string, ticker hoops.Ticker, side hoops.Side, qty, price float64) Message {
	return Message{
		Type:     kind,
		Ticker:   ticker.String(),
		Side:     side.String(),
		Quantity: qty,
		Price:    price,
	}
}
