package bot

import (
	"math/rand"
	"time"

	"gridlords/pkg/conquest"
)

// newRng builds the random source a strategy owns. Every strategy takes
// its source at construction so a fixed seed replays a game exactly;
// seed 0 asks for a time-seeded, non-reproducible source.
func newRng(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(seed))
}

// randomMove picks a uniformly random legal move for the player, or nil
// when the player has none. This is the shared fallback for failed and
// depth-zero searches.
func randomMove(gs *conquest.GameState, player int, rng *rand.Rand) *conquest.Move {
	moves := gs.LegalMoves(player)
	if len(moves) == 0 {
		return nil
	}
	m := moves[rng.Intn(len(moves))]
	return &m
}
