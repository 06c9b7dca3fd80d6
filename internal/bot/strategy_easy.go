package bot

import (
	"math/rand"

	"gridlords/pkg/conquest"
)

// jitterSpan keeps tie-breaking noise well under the smallest ordering
// score gap so it only reorders genuinely equal moves.
const jitterSpan = 0.25

// GreedyStrategy plays the move with the best static ordering score. It
// never simulates, so it is cheap and exploitable in equal measure.
type GreedyStrategy struct {
	rng *rand.Rand
}

func NewGreedyStrategy(seed int64) *GreedyStrategy {
	return &GreedyStrategy{rng: newRng(seed)}
}

func (s *GreedyStrategy) Name() string { return "greedy" }

func (s *GreedyStrategy) ChooseMove(gs *conquest.GameState, player int) *conquest.Move {
	moves := gs.LegalMoves(player)
	if len(moves) == 0 {
		return nil
	}
	best := -1
	bestScore := 0.0
	for i := range moves {
		score := ScoreMove(gs, player, moves[i]) + s.rng.Float64()*jitterSpan
		if best == -1 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return &moves[best]
}
