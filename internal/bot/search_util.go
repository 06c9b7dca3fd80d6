package bot

import (
	"container/heap"
	"sort"

	"gridlords/pkg/conquest"
)

// Fast move-ordering scores. These rank raw candidate moves without any
// simulation: capital attacks above stronghold attacks, any enemy contact
// above neutral stronghold unlocks, unlocks above plain expansion, merges
// last, with a term for how many units the move commits.
const (
	scoreAttackCapital    = 1000.0
	scoreAttackStronghold = 500.0
	scoreAttackTile       = 250.0
	scoreUnlockStronghold = 150.0
	scoreUnlockComplete   = 50.0
	scoreExpandBlank      = 100.0
	scoreReinforceOwn     = 10.0
	scoreSurplusPerUnit   = 2.0
	scoreMovedPerUnit     = 0.5
)

// RankedMove pairs a candidate move with its ordering score.
type RankedMove struct {
	Move  conquest.Move
	Score float64
}

// moveHeap is a min-heap of RankedMove by Score, used to retain the best
// K candidates while scanning the full move list.
type moveHeap []RankedMove

func (h moveHeap) Len() int           { return len(h) }
func (h moveHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h moveHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *moveHeap) Push(x any)        { *h = append(*h, x.(RankedMove)) }
func (h *moveHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// movedUnits mirrors the resolution arithmetic: Half sends floor(units/2),
// Max sends all but one.
func movedUnits(units int, mt conquest.MoveType) int {
	if mt == conquest.MoveMax {
		return units - 1
	}
	return units / 2
}

// ScoreMove ranks a single legal move with the fast heuristic. It never
// simulates; it only inspects source, target, and the capital registry.
func ScoreMove(gs *conquest.GameState, player int, m conquest.Move) float64 {
	src := gs.Map.At(m.FromX, m.FromY)
	dst := gs.Map.At(m.ToX, m.ToY)
	sent := movedUnits(src.Units, m.Type)
	score := float64(sent) * scoreMovedPerUnit

	switch {
	case dst.Owner == player:
		score += scoreReinforceOwn
	case dst.Owner == conquest.Neutral:
		if dst.Type == conquest.Stronghold && dst.CaptureCost > 0 {
			score += scoreUnlockStronghold
			if sent >= dst.CaptureCost {
				score += scoreUnlockComplete
			}
		} else {
			score += scoreExpandBlank
		}
	default:
		if reg, ok := gs.Map.CapitalOf(dst.Owner); ok && reg.X == m.ToX && reg.Y == m.ToY {
			score += scoreAttackCapital
		} else if dst.Type == conquest.Stronghold || dst.Type == conquest.Capital {
			score += scoreAttackStronghold
		} else {
			score += scoreAttackTile
		}
		if surplus := sent - dst.Units; surplus > 0 {
			score += float64(surplus) * scoreSurplusPerUnit
		}
	}
	return score
}

// TopKMoves generates the player's full move list, scores it with
// ScoreMove, and keeps the best k, returned in descending score order.
// Capping the branch factor trades optimality for tractable search trees;
// a winning move outside the top k is invisible to the search above.
func TopKMoves(gs *conquest.GameState, player, k int) []RankedMove {
	moves := gs.LegalMoves(player)
	if len(moves) == 0 || k <= 0 {
		return nil
	}

	h := make(moveHeap, 0, k)
	for _, m := range moves {
		rm := RankedMove{Move: m, Score: ScoreMove(gs, player, m)}
		if len(h) < k {
			heap.Push(&h, rm)
		} else if rm.Score > h[0].Score {
			h[0] = rm
			heap.Fix(&h, 0)
		}
	}

	ranked := []RankedMove(h)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}
