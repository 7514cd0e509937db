package hoops

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizeToken folds feed strings to a canonical enum spelling:
// accents stripped, upper case, spaces and dashes as underscores.
func normalizeToken(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, s)
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return s
}

var eventTypes = map[string]EventType{
	"SCORE":        EventScore,
	"MADE":         EventScore,
	"MISSED":       EventMissed,
	"MISS":         EventMissed,
	"TURNOVER":     EventTurnover,
	"STEAL":        EventSteal,
	"BLOCK":        EventBlock,
	"FOUL":         EventFoul,
	"END_GAME":     EventEndGame,
	"GAME_END":     EventEndGame,
	"ENDGAME":      EventEndGame,
	"FINAL":        EventEndGame,
	"OTHER":        EventOther,
	"UNKNOWN":      EventOther,
	"REBOUND":      EventOther,
	"TIMEOUT":      EventOther,
	"SUBSTITUTION": EventOther,
}

// ParseEventType maps a feed event name to an EventType. Names it does not
// recognise map to EventOther, which carries no momentum impact.
func ParseEventType(s string) EventType {
	if et, ok := eventTypes[normalizeToken(s)]; ok {
		return et
	}
	return EventOther
}

// ParseTeamSide maps "home"/"away" to a TeamSide. Anything else is an error
// so a typo can never be silently credited to the away side.
func ParseTeamSide(s string) (TeamSide, error) {
	switch normalizeToken(s) {
	case "HOME", "H":
		return TeamHome, nil
	case "AWAY", "A", "VISITOR", "VISITORS":
		return TeamAway, nil
	default:
		return TeamHome, fmt.Errorf("unknown team side %q", s)
	}
}

var shotTypes = map[string]ShotType{
	"":            ShotNone,
	"NONE":        ShotNone,
	"THREE_POINT": ShotThreePoint,
	"THREE":       ShotThreePoint,
	"3PT":         ShotThreePoint,
	"DUNK":        ShotDunk,
	"LAYUP":       ShotLayup,
	"JUMP_SHOT":   ShotJumpShot,
	"JUMPER":      ShotJumpShot,
	"FREE_THROW":  ShotFreeThrow,
	"FT":          ShotFreeThrow,
}

// ParseShotType maps a feed shot name to a ShotType. Empty input is ShotNone;
// unrecognised names are ShotOther.
func ParseShotType(s string) ShotType {
	if st, ok := shotTypes[normalizeToken(s)]; ok {
		return st
	}
	return ShotOther
}

// ParseTicker maps a ticker symbol to a Ticker.
func ParseTicker(s string) (Ticker, error) {
	switch normalizeToken(s) {
	case "TEAM_A", "HOME":
		return TickerHome, nil
	default:
		return TickerHome, fmt.Errorf("unknown ticker %q", s)
	}
}
