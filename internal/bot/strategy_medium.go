package bot

import (
	"math/rand"

	"gridlords/pkg/conquest"
)

// tacticalBranch is how many candidates the tactical layer simulates.
const tacticalBranch = 10

// TacticalStrategy looks exactly one move ahead: it simulates the
// top-ranked candidates through the real resolution rules and keeps the
// one whose resulting position evaluates best. No opponent reply is
// considered.
type TacticalStrategy struct {
	rng     *rand.Rand
	scratch *conquest.GameState
}

func NewTacticalStrategy(seed int64) *TacticalStrategy {
	return &TacticalStrategy{rng: newRng(seed)}
}

func (s *TacticalStrategy) Name() string { return "tactical" }

func (s *TacticalStrategy) ChooseMove(gs *conquest.GameState, player int) *conquest.Move {
	ranked := TopKMoves(gs, player, tacticalBranch)
	if len(ranked) == 0 {
		return nil
	}
	opponent := MostThreatening(gs, player)

	best := -1
	bestScore := 0.0
	for i := range ranked {
		s.scratch = gs.CloneInto(s.scratch)
		if !conquest.Resolve(s.scratch, player, ranked[i].Move) {
			continue
		}
		score := moveOutcome(s.scratch, player, opponent)
		if best == -1 || score > bestScore {
			best, bestScore = i, score
		}
	}
	if best == -1 {
		return randomMove(gs, player, s.rng)
	}
	return &ranked[best].Move
}

// moveOutcome scores a simulated position, promoting terminal wins and
// losses outside the heuristic range.
func moveOutcome(gs *conquest.GameState, player, opponent int) float64 {
	if gs.GameOver {
		if gs.Winner == player {
			return winScore
		}
		return -winScore
	}
	return Evaluate(BuildContextVs(gs, player, opponent))
}
