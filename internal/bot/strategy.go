package bot

import (
	"math/rand"

	"gridlords/pkg/conquest"
)

// Strategy decides one move for one seat each turn. It is the bot-side
// name for conquest.Controller; every strategy registers on an engine
// seat directly. Implementations treat the passed state as read-only and
// clone before simulating. Returning nil passes the turn.
type Strategy interface {
	Name() string
	ChooseMove(gs *conquest.GameState, player int) *conquest.Move
}

// StrategyForDifficulty returns the strategy for a difficulty level. The
// seed flows into the strategy's private random source so that a game
// configured with fixed seeds replays move for move.
func StrategyForDifficulty(difficulty string, seed int64) Strategy {
	switch difficulty {
	case "random":
		return NewRandomStrategy(seed)
	case "easy":
		return NewGreedyStrategy(seed)
	case "hard":
		return NewSearchStrategy(DefaultSearchConfig(), seed)
	case "hard-gonnx":
		return newGonnxOrFallback(seed)
	default:
		return NewTacticalStrategy(seed)
	}
}

// Difficulties lists the accepted difficulty names in ladder order.
func Difficulties() []string {
	return []string{"random", "easy", "medium", "hard", "hard-gonnx"}
}

// ValidDifficulty reports whether name is an accepted difficulty.
func ValidDifficulty(name string) bool {
	for _, d := range Difficulties() {
		if d == name {
			return true
		}
	}
	return false
}

// --- PassStrategy ---

// PassStrategy never moves. Useful as an inert opponent in tests.
type PassStrategy struct{}

func (PassStrategy) Name() string { return "pass" }

func (PassStrategy) ChooseMove(*conquest.GameState, int) *conquest.Move { return nil }

// --- RandomStrategy ---

// RandomStrategy plays a uniformly random legal move, passing only when
// nothing can move. The weakest rung of the ladder and the baseline other
// difficulties are measured against.
type RandomStrategy struct {
	rng *rand.Rand
}

func NewRandomStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{rng: newRng(seed)}
}

func (s *RandomStrategy) Name() string { return "random" }

func (s *RandomStrategy) ChooseMove(gs *conquest.GameState, player int) *conquest.Move {
	return randomMove(gs, player, s.rng)
}
