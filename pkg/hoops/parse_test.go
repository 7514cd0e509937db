package hoops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	tests := []struct {
		in   string
		want EventType
	}{
		{"SCORE", EventScore},
		{"score", EventScore},
		{" Score ", EventScore},
		{"MISSED", EventMissed},
		{"turnover", EventTurnover},
		{"STEAL", EventSteal},
		{"BLOCK", EventBlock},
		{"FOUL", EventFoul},
		{"END_GAME", EventEndGame},
		{"end-game", EventEndGame},
		{"End Game", EventEndGame},
		{"REBOUND", EventOther},
		{"SCOER", EventOther},
		{"", EventOther},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEventType(tt.in))
		})
	}
}

func TestParseTeamSide(t *testing.T) {
	home, err := ParseTeamSide("home")
	require.NoError(t, err)
	assert.Equal(t, TeamHome, home)

	away, err := ParseTeamSide(" AWAY")
	require.NoError(t, err)
	assert.Equal(t, TeamAway, away)

	for _, bad := range []string{"", "hmoe", "neutral"} {
		_, err := ParseTeamSide(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseShotType(t *testing.T) {
	tests := []struct {
		in   string
		want ShotType
	}{
		{"", ShotNone},
		{"THREE_POINT", ShotThreePoint},
		{"three-point", ShotThreePoint},
		{"Three Point", ShotThreePoint},
		{"DUNK", ShotDunk},
		{"layup", ShotLayup},
		{"JUMP_SHOT", ShotJumpShot},
		{"free throw", ShotFreeThrow},
		{"HOOK_SHOT", ShotOther},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseShotType(tt.in))
		})
	}
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("buy")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, s)

	s, err = ParseSide("SELL")
	require.NoError(t, err)
	assert.Equal(t, SideSell, s)
	assert.Equal(t, SideBuy, s.Opposite())

	_, err = ParseSide("hold")
	assert.Error(t, err)
}

func TestParseTicker(t *testing.T) {
	for _, in := range []string{"TEAM_A", "team-a", "home"} {
		tk, err := ParseTicker(in)
		require.NoError(t, err, in)
		assert.Equal(t, TickerHome, tk)
	}

	_, err := ParseTicker("TEAM_B")
	assert.Error(t, err)
}

func TestNormalizeToken_StripsAccents(t *testing.T) {
	assert.Equal(t, "DOMICILE", normalizeToken("domicilé"))
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "TEAM_A", TickerHome.String())
	assert.Equal(t, "END_GAME", EventEndGame.String())
	assert.Equal(t, "away", TeamAway.String())
	assert.Equal(t, "THREE_POINT", ShotThreePoint.String())
	assert.Equal(t, "take_profit", ExitTakeProfit.String())
	assert.Equal(t, "MARKET", OrderMarket.String())
}
