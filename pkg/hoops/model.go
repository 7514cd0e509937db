package hoops

import "math"

// EventImpact returns the momentum contribution of an event for the acting
// team. Away events are negated.
func EventImpact(et EventType, team TeamSide, shot ShotType) float64 {
	var impact float64
	switch et {
	case EventScore:
		impact = 3.0
		switch shot {
		case ShotThreePoint:
			impact = 4.0
		case ShotDunk:
			impact = 5.0
		}
	case EventMissed:
		impact = -1.0
	case EventTurnover:
		impact = -2.0
	case EventSteal:
		impact = 2.0
	case EventBlock:
		impact = 1.5
	case EventFoul:
		impact = -1.0
	}
	if team == TeamAway {
		impact = -impact
	}
	return impact
}

// DecayFactor is exp(-dt/tau) for dt clamped at zero.
func DecayFactor(dt, tau float64) float64 {
	if dt < 0 {
		dt = 0
	}
	return math.Exp(-dt / tau)
}

// Decay advances momentum to the event clock t. The first timed event only
// seeds the clock.
func (g *GameState) Decay(t, tau float64) {
	last := t
	if g.LastEventTime != nil {
		last = *g.LastEventTime
	}
	f := DecayFactor(last-t, tau)
	g.HomeMomentum *= f
	g.AwayMomentum *= f
	g.LastEventTime = &t
}

// Apply folds an event into the game state: decay, scores, clock, then
// the momentum impact on the acting team's own counter.
func (g *GameState) Apply(ev GameEvent, tau float64) {
	if ev.TimeSeconds != nil {
		g.Decay(*ev.TimeSeconds, tau)
	}
	g.HomeScore = ev.HomeScore
	g.AwayScore = ev.AwayScore
	if ev.TimeSeconds != nil {
		g.TimeRemaining = *ev.TimeSeconds
	}

	impact := EventImpact(ev.Type, ev.Team, ev.Shot)
	if ev.Team == TeamHome {
		g.HomeMomentum += impact
	} else {
		g.AwayMomentum += impact
	}
}

// TrueProbability estimates the probability the home team wins.
func (g GameState) TrueProbability() float64 {
	if g.TimeRemaining <= 0 {
		switch {
		case g.HomeScore > g.AwayScore:
			return 1.0
		case g.HomeScore < g.AwayScore:
			return 0.0
		default:
			return 0.5
		}
	}

	timeFactor := 1.0 - g.TimeRemaining/GameLength
	scoreImpact := float64(g.ScoreDiff()) * 0.02 * (1.0 + timeFactor*2.0)
	momentumImpact := (g.HomeMomentum - g.AwayMomentum) * 0.005

	return clamp(BaseHomeProb+scoreImpact+momentumImpact, MinProb, MaxProb)
}

// MarketPriceToProbability converts a 50-150 scale price to a probability.
// The result is not clamped.
func MarketPriceToProbability(price float64) float64 {
	return (price - PriceFloor) / 100.0
}

// ProbabilityToPrice is the inverse of MarketPriceToProbability.
func ProbabilityToPrice(prob float64) float64 {
	return PriceFloor + prob*100.0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
