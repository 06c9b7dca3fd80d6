package conquest

import (
	"encoding/json"
	"fmt"
)

// MoveType selects how many units leave the source tile.
type MoveType int

const (
	// MoveHalf sends floor(units/2), keeping the rest behind.
	MoveHalf MoveType = iota
	// MoveMax sends all but one.
	MoveMax
)

func (mt MoveType) String() string {
	if mt == MoveMax {
		return "max"
	}
	return "half"
}

// ParseMoveType maps the wire names "half" and "max" back to a MoveType.
func ParseMoveType(s string) (MoveType, error) {
	switch s {
	case "half":
		return MoveHalf, nil
	case "max":
		return MoveMax, nil
	}
	return MoveHalf, fmt.Errorf("invalid move type %q", s)
}

func (mt MoveType) MarshalJSON() ([]byte, error) {
	return json.Marshal(mt.String())
}

func (mt *MoveType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMoveType(s)
	if err != nil {
		return err
	}
	*mt = parsed
	return nil
}

// Move orders units from one tile to an orthogonally adjacent tile.
type Move struct {
	FromX int      `json:"fromX"`
	FromY int      `json:"fromY"`
	ToX   int      `json:"toX"`
	ToY   int      `json:"toY"`
	Type  MoveType `json:"type"`
}

func (m Move) String() string {
	return fmt.Sprintf("%d,%d>%d,%d %s", m.FromX, m.FromY, m.ToX, m.ToY, m.Type)
}

// unitsSent returns how many units the move takes from a source holding
// the given units. Callers have already checked units >= 2.
func (mt MoveType) unitsSent(units int) int {
	if mt == MoveMax {
		return units - 1
	}
	return units / 2
}

// ValidMove reports whether player may execute m on the current board:
// both squares in bounds, source owned by player with at least 2 units,
// target not a Mountain, and the squares orthogonally adjacent. Invalid
// moves are ordinary rejections, never errors.
func (gs *GameState) ValidMove(player int, m Move) bool {
	if player <= 0 || player > gs.PlayerCount {
		return false
	}
	if !gs.Map.InBounds(m.FromX, m.FromY) || !gs.Map.InBounds(m.ToX, m.ToY) {
		return false
	}
	src := gs.Map.At(m.FromX, m.FromY)
	if src.Owner != player || src.Units < 2 {
		return false
	}
	if gs.Map.At(m.ToX, m.ToY).Type == Mountain {
		return false
	}
	return Adjacent(m.FromX, m.FromY, m.ToX, m.ToY)
}

// LegalMoves enumerates every move the player could make: each owned tile
// with at least 2 units emits a Half and a Max variant toward each
// orthogonal non-Mountain neighbor. Order is deterministic: the ownership
// index order, neighbors N/E/S/W, Half before Max. This is the one move
// generator; the engine's random fallback and the bots both draw from it.
func (gs *GameState) LegalMoves(player int) []Move {
	var moves []Move
	for _, c := range gs.playerTiles[player] {
		if gs.Map.At(c.X, c.Y).Units < 2 {
			continue
		}
		for _, d := range neighborOffsets {
			nx, ny := c.X+d[0], c.Y+d[1]
			if !gs.Map.InBounds(nx, ny) || gs.Map.At(nx, ny).Type == Mountain {
				continue
			}
			moves = append(moves,
				Move{FromX: c.X, FromY: c.Y, ToX: nx, ToY: ny, Type: MoveHalf},
				Move{FromX: c.X, FromY: c.Y, ToX: nx, ToY: ny, Type: MoveMax})
		}
	}
	return moves
}
