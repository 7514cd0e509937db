package hoops

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventImpact(t *testing.T) {
	tests := []struct {
		name  string
		event EventType
		team  TeamSide
		shot  ShotType
		want  float64
	}{
		{"plain score", EventScore, TeamHome, ShotLayup, 3.0},
		{"score no shot", EventScore, TeamHome, ShotNone, 3.0},
		{"three pointer", EventScore, TeamHome, ShotThreePoint, 4.0},
		{"dunk", EventScore, TeamHome, ShotDunk, 5.0},
		{"away dunk", EventScore, TeamAway, ShotDunk, -5.0},
		{"missed", EventMissed, TeamHome, ShotThreePoint, -1.0},
		{"turnover", EventTurnover, TeamHome, ShotNone, -2.0},
		{"away turnover", EventTurnover, TeamAway, ShotNone, 2.0},
		{"steal", EventSteal, TeamHome, ShotNone, 2.0},
		{"block", EventBlock, TeamHome, ShotNone, 1.5},
		{"foul", EventFoul, TeamHome, ShotNone, -1.0},
		{"end game", EventEndGame, TeamHome, ShotNone, 0},
		{"other", EventOther, TeamAway, ShotNone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EventImpact(tt.event, tt.team, tt.shot))
		})
	}
}

func TestTrueProbability_Bounds(t *testing.T) {
	for _, diff := range []int{-60, -20, -5, 0, 5, 20, 60} {
		for _, tr := range []float64{2880, 1440, 600, 60, 1} {
			for _, mom := range []float64{-200, -10, 0, 10, 200} {
				g := GameState{
					HomeScore:     50 + diff,
					AwayScore:     50,
					TimeRemaining: tr,
					HomeMomentum:  mom,
				}
				p := g.TrueProbability()
				assert.GreaterOrEqual(t, p, MinProb)
				assert.LessOrEqual(t, p, MaxProb)
			}
		}
	}
}

func TestTrueProbability_Terminal(t *testing.T) {
	tests := []struct {
		name       string
		home, away int
		clock      float64
		want       float64
	}{
		{"home wins", 101, 99, 0, 1.0},
		{"away wins", 88, 90, 0, 0.0},
		{"tied", 90, 90, 0, 0.5},
		{"negative clock", 70, 60, -1, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := GameState{
				HomeScore:     tt.home,
				AwayScore:     tt.away,
				TimeRemaining: tt.clock,
				HomeMomentum:  500, // ignored at the buzzer
			}
			assert.Equal(t, tt.want, g.TrueProbability())
		})
	}
}

func TestTrueProbability_Formula(t *testing.T) {
	g := GameState{HomeScore: 10, AwayScore: 6, TimeRemaining: 1440, HomeMomentum: 3, AwayMomentum: 1}
	// 0.55 + 4*0.02*(1+2*0.5) + 2*0.005
	assert.InDelta(t, 0.55+0.16+0.01, g.TrueProbability(), 1e-12)

	start := GameState{TimeRemaining: GameLength}
	assert.InDelta(t, 0.55, start.TrueProbability(), 1e-12)
}

func TestPriceProbabilityRoundTrip(t *testing.T) {
	for _, p := range []float64{0, 37.5, 50, 55, 99.99, 150, 212} {
		assert.InDelta(t, p, ProbabilityToPrice(MarketPriceToProbability(p)), 1e-9)
	}
	assert.InDelta(t, 0.05, MarketPriceToProbability(55), 1e-12)
	assert.InDelta(t, -0.1, MarketPriceToProbability(40), 1e-12)
	assert.InDelta(t, 107, ProbabilityToPrice(0.57), 1e-9)
}

func TestDecayFactor(t *testing.T) {
	assert.Equal(t, 1.0, DecayFactor(0, 180))
	assert.Equal(t, 1.0, DecayFactor(-30, 180))
	assert.InDelta(t, math.Exp(-1), DecayFactor(180, 180), 1e-12)
	assert.Less(t, DecayFactor(1e6, 180), 1e-9)

	prev := 1.0
	for dt := 0.0; dt <= 1000; dt += 25 {
		f := DecayFactor(dt, 180)
		assert.LessOrEqual(t, f, prev)
		prev = f
	}
}

func TestGameState_Apply(t *testing.T) {
	g := GameState{TimeRemaining: GameLength}

	g.Apply(GameEvent{Type: EventScore, Team: TeamHome, Shot: ShotThreePoint, HomeScore: 3, TimeSeconds: Seconds(2870)}, 180)
	assert.Equal(t, 4.0, g.HomeMomentum, "first timed event seeds the clock without decay")
	assert.Equal(t, 2870.0, g.TimeRemaining)
	assert.Equal(t, 3, g.HomeScore)

	g.Apply(GameEvent{Type: EventSteal, Team: TeamAway, HomeScore: 3, TimeSeconds: Seconds(2690)}, 180)
	assert.InDelta(t, 4*math.Exp(-1), g.HomeMomentum, 1e-12)
	assert.Equal(t, -2.0, g.AwayMomentum, "away impact lands negated on the away counter")

	g.Apply(GameEvent{Type: EventFoul, Team: TeamHome, HomeScore: 5, AwayScore: 2}, 180)
	assert.InDelta(t, 4*math.Exp(-1)-1, g.HomeMomentum, 1e-12)
	assert.Equal(t, 2690.0, g.TimeRemaining, "untimed event keeps the clock")
	assert.Equal(t, 5, g.HomeScore)
	assert.Equal(t, 2, g.AwayScore)
	assert.Equal(t, 2690.0, *g.LastEventTime)
}

func TestGameState_DecayClockGoingBackwards(t *testing.T) {
	g := GameState{HomeMomentum: 10, LastEventTime: Seconds(100)}
	g.Decay(150, 180)
	assert.Equal(t, 10.0, g.HomeMomentum)
	assert.Equal(t, 150.0, *g.LastEventTime)
}

func TestGameState_LateEventMovesClockBack(t *testing.T) {
	g := GameState{TimeRemaining: GameLength}

	g.Apply(GameEvent{Type: EventScore, Team: TeamHome, HomeScore: 2, TimeSeconds: Seconds(2690)}, 180)
	// An event delivered late carries an earlier game moment.
	g.Apply(GameEvent{Type: EventOther, Team: TeamHome, HomeScore: 2, TimeSeconds: Seconds(2800)}, 180)

	assert.Equal(t, 2800.0, g.TimeRemaining, "the event clock is taken as given")
	assert.Equal(t, 2800.0, *g.LastEventTime)
	assert.Equal(t, 3.0, g.HomeMomentum, "negative elapsed time does not decay")
}
