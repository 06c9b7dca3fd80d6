package bot

import (
	"math"
	"math/rand"
	"time"

	"gridlords/pkg/conquest"
)

const (
	defaultSearchDepth  = 2
	defaultBranchCap    = 10
	defaultSearchBudget = 150 * time.Millisecond
)

// SearchConfig shapes the minimax search. Depth counts own-move plies, so
// depth 2 looks at move, reply, move, reply. A zero Depth is taken
// literally and degrades the searcher to a random player. Budget 0 picks
// the default; a negative Budget disables the deadline.
type SearchConfig struct {
	Depth     int
	BranchCap int
	Budget    time.Duration
}

// DefaultSearchConfig is the ladder's hard setting.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Depth:     defaultSearchDepth,
		BranchCap: defaultBranchCap,
		Budget:    defaultSearchBudget,
	}
}

func (c SearchConfig) normalized() SearchConfig {
	if c.BranchCap <= 0 {
		c.BranchCap = defaultBranchCap
	}
	if c.Budget == 0 {
		c.Budget = defaultSearchBudget
	}
	return c
}

// SearchStrategy plays alpha-beta minimax against the single most
// threatening opponent. Plies alternate own move and opponent reply
// through the real resolution rules, so anything the search believes
// about a line is exactly what the engine would do. Growth between turns
// is not simulated; the evaluator's projections account for it.
type SearchStrategy struct {
	cfg      SearchConfig
	rng      *rand.Rand
	deadline time.Time
	levels   []*conquest.GameState
}

func NewSearchStrategy(cfg SearchConfig, seed int64) *SearchStrategy {
	return &SearchStrategy{cfg: cfg.normalized(), rng: newRng(seed)}
}

func (s *SearchStrategy) Name() string { return "search" }

// ChooseMove runs the search and returns the best root candidate. Any
// panic inside the tree is masked with a random legal move, and a
// non-positive depth skips the tree entirely.
func (s *SearchStrategy) ChooseMove(gs *conquest.GameState, player int) (mv *conquest.Move) {
	defer func() {
		if r := recover(); r != nil {
			mv = randomMove(gs, player, s.rng)
		}
	}()
	if s.cfg.Depth <= 0 {
		return randomMove(gs, player, s.rng)
	}
	ranked := TopKMoves(gs, player, s.cfg.BranchCap)
	if len(ranked) == 0 {
		return nil
	}
	if s.cfg.Budget > 0 {
		s.deadline = time.Now().Add(s.cfg.Budget)
	} else {
		s.deadline = time.Time{}
	}
	opponent := MostThreatening(gs, player)

	best := -1
	alpha := math.Inf(-1)
	beta := math.Inf(1)
	for i := range ranked {
		if best >= 0 && s.expired() {
			break
		}
		child := s.cloneAt(0, gs)
		if !conquest.Resolve(child, player, ranked[i].Move) {
			continue
		}
		v := s.minNode(child, player, opponent, s.cfg.Depth, 1, alpha, beta)
		if best == -1 || v > alpha {
			best, alpha = i, v
		}
	}
	if best == -1 {
		return randomMove(gs, player, s.rng)
	}
	return &ranked[best].Move
}

func (s *SearchStrategy) expired() bool {
	return !s.deadline.IsZero() && time.Now().After(s.deadline)
}

// cloneAt reuses one scratch state per tree level so the whole search
// allocates only on its first run at each depth.
func (s *SearchStrategy) cloneAt(level int, src *conquest.GameState) *conquest.GameState {
	for len(s.levels) <= level {
		s.levels = append(s.levels, nil)
	}
	s.levels[level] = src.CloneInto(s.levels[level])
	return s.levels[level]
}

func (s *SearchStrategy) leafScore(gs *conquest.GameState, player, opponent int) float64 {
	return Evaluate(BuildContextVs(gs, player, opponent))
}

func terminalScore(gs *conquest.GameState, player int) float64 {
	if gs.Winner == player {
		return winScore
	}
	if gs.Winner == 0 {
		return 0
	}
	return -winScore
}

func (s *SearchStrategy) maxNode(gs *conquest.GameState, player, opponent, depth, level int, alpha, beta float64) float64 {
	if gs.GameOver {
		return terminalScore(gs, player)
	}
	if depth <= 0 || s.expired() {
		return s.leafScore(gs, player, opponent)
	}
	ranked := TopKMoves(gs, player, s.cfg.BranchCap)
	if len(ranked) == 0 {
		// No mobility: the ply passes to the opponent.
		return s.minNode(gs, player, opponent, depth, level, alpha, beta)
	}
	best := math.Inf(-1)
	for i := range ranked {
		child := s.cloneAt(level, gs)
		if !conquest.Resolve(child, player, ranked[i].Move) {
			continue
		}
		v := s.minNode(child, player, opponent, depth, level+1, alpha, beta)
		if v > best {
			best = v
		}
		if best > alpha {
			alpha = best
		}
		if alpha >= beta {
			break
		}
	}
	if math.IsInf(best, -1) {
		return s.minNode(gs, player, opponent, depth, level, alpha, beta)
	}
	return best
}

func (s *SearchStrategy) minNode(gs *conquest.GameState, player, opponent, depth, level int, alpha, beta float64) float64 {
	if gs.GameOver {
		return terminalScore(gs, player)
	}
	if s.expired() {
		return s.leafScore(gs, player, opponent)
	}
	if opponent == 0 {
		return s.maxNode(gs, player, opponent, depth-1, level, alpha, beta)
	}
	ranked := TopKMoves(gs, opponent, s.cfg.BranchCap)
	if len(ranked) == 0 {
		return s.maxNode(gs, player, opponent, depth-1, level, alpha, beta)
	}
	best := math.Inf(1)
	for i := range ranked {
		child := s.cloneAt(level, gs)
		if !conquest.Resolve(child, opponent, ranked[i].Move) {
			continue
		}
		v := s.maxNode(child, player, opponent, depth-1, level+1, alpha, beta)
		if v < best {
			best = v
		}
		if best < beta {
			beta = best
		}
		if alpha >= beta {
			break
		}
	}
	if math.IsInf(best, 1) {
		return s.maxNode(gs, player, opponent, depth-1, level, alpha, beta)
	}
	return best
}
