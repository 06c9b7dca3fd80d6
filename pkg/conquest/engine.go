package conquest

import (
	"fmt"
	"math/rand"
	"time"
)

// Controller decides one move for one seat. Implementations treat the
// passed state as read-only and clone it before any speculative mutation;
// the engine hands each controller a private snapshot regardless.
// Returning nil passes the turn.
type Controller interface {
	Name() string
	ChooseMove(gs *GameState, player int) *Move
}

// Engine owns the canonical state of one game and is its only writer.
// It is not safe for concurrent use; callers serialize access.
type Engine struct {
	gs          *GameState
	controllers map[int]Controller
	rng         *rand.Rand
}

// NewEngine wraps a starting state. rng drives the random-move fallback
// used when a controller fails; pass a seeded source for reproducible
// games, or nil for a time-seeded one.
func NewEngine(gs *GameState, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		gs:          gs,
		controllers: make(map[int]Controller),
		rng:         rng,
	}
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() *GameState { return e.gs.Clone() }

// CurrentPlayer returns the seat to move.
func (e *Engine) CurrentPlayer() int { return e.gs.CurrentPlayer }

// Turn returns the full-rotation counter.
func (e *Engine) Turn() int { return e.gs.Turn }

// Round returns the growth-cycle counter.
func (e *Engine) Round() int { return e.gs.Round }

// GameOver reports whether a winner has been decided.
func (e *Engine) GameOver() bool { return e.gs.GameOver }

// Winner returns the winning seat, or 0 while the game is running.
func (e *Engine) Winner() int { return e.gs.Winner }

// Alive reports whether a seat still holds its registered capital.
func (e *Engine) Alive(player int) bool { return e.gs.Alive(player) }

// SetController registers a controller for a seat. Human seats simply have
// no controller registered.
func (e *Engine) SetController(player int, c Controller) error {
	if player <= 0 || player > e.gs.PlayerCount {
		return fmt.Errorf("player %d out of range 1..%d", player, e.gs.PlayerCount)
	}
	e.controllers[player] = c
	return nil
}

// RemoveController unregisters a seat's controller.
func (e *Engine) RemoveController(player int) {
	delete(e.controllers, player)
}

// Controlled reports whether the seat to move has a controller registered.
func (e *Engine) Controlled() bool {
	return e.Controls(e.gs.CurrentPlayer)
}

// Controls reports whether a specific seat has a controller registered.
func (e *Engine) Controls(player int) bool {
	_, ok := e.controllers[player]
	return ok
}

// MakeMove applies a move for the seat to move. Out-of-turn callers and
// illegal moves are rejected with false and zero state change.
func (e *Engine) MakeMove(player int, m Move) bool {
	if e.gs.GameOver || player != e.gs.CurrentPlayer {
		return false
	}
	return Resolve(e.gs, player, m)
}

// NextTurn advances to the next seat, applying rotation growth on wrap.
func (e *Engine) NextTurn() {
	e.gs.NextTurn()
}

// AdvanceAI runs the registered controller for the seat to move, applies
// its decision, and advances the turn. A panicking controller or an
// illegal decision is masked by a uniformly random legal move so a faulty
// bot can never crash or stall the game. Returns the move actually played
// (nil for a pass) and whether a controller was registered at all.
func (e *Engine) AdvanceAI() (*Move, bool) {
	if e.gs.GameOver {
		return nil, false
	}
	player := e.gs.CurrentPlayer
	c, ok := e.controllers[player]
	if !ok {
		return nil, false
	}

	mv, failed := decide(c, e.gs.Clone(), player)
	if failed || (mv != nil && !e.MakeMove(player, *mv)) {
		mv = e.randomMove(player)
		if mv != nil {
			e.MakeMove(player, *mv)
		}
	}
	e.NextTurn()
	return mv, true
}

// decide isolates a controller call so a panic inside bot code surfaces
// as an ordinary failure.
func decide(c Controller, gs *GameState, player int) (mv *Move, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			mv = nil
			failed = true
		}
	}()
	return c.ChooseMove(gs, player), false
}

// randomMove picks a uniformly random legal move, or nil if none exist.
func (e *Engine) randomMove(player int) *Move {
	moves := e.gs.LegalMoves(player)
	if len(moves) == 0 {
		return nil
	}
	m := moves[e.rng.Intn(len(moves))]
	return &m
}
