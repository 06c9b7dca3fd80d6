package bot

import (
	"gridlords/pkg/conquest"
)

// Stance classifies an opponent's posture toward one player.
type Stance string

const (
	StanceAggressive Stance = "aggressive" // units massed on our border
	StanceNeutral    Stance = "neutral"    // some border contact
	StanceDistant    Stance = "distant"    // no units near our territory
)

// ClassifyStances reads each opponent's posture toward the given player
// off the board. The game keeps no move history, so this is a proximity
// heuristic: the share of an opponent's units standing in our border
// zone, the ring of tiles orthogonally adjacent to our territory. Half
// or more reads as aggressive, none as distant. Opponents with no units
// on the board are omitted.
func ClassifyStances(gs *conquest.GameState, player int) map[int]Stance {
	zone := borderZone(gs, player)

	type presence struct {
		near  int
		total int
	}
	stats := make(map[int]*presence)
	for y := 0; y < gs.Map.Height; y++ {
		for x := 0; x < gs.Map.Width; x++ {
			t := gs.Map.At(x, y)
			if t.Owner == player || t.Owner == conquest.Neutral || t.Units == 0 {
				continue
			}
			p, ok := stats[t.Owner]
			if !ok {
				p = &presence{}
				stats[t.Owner] = p
			}
			p.total += t.Units
			if zone[conquest.Coord{X: x, Y: y}] {
				p.near += t.Units
			}
		}
	}

	result := make(map[int]Stance)
	for opp, p := range stats {
		ratio := float64(p.near) / float64(p.total)
		switch {
		case ratio >= 0.5:
			result[opp] = StanceAggressive
		case ratio == 0:
			result[opp] = StanceDistant
		default:
			result[opp] = StanceNeutral
		}
	}
	return result
}

// borderZone collects the tiles orthogonally adjacent to the player's
// territory that the player does not own.
func borderZone(gs *conquest.GameState, player int) map[conquest.Coord]bool {
	zone := make(map[conquest.Coord]bool)
	for _, c := range gs.TilesOf(player) {
		for _, d := range orthogonal {
			nx, ny := c.X+d[0], c.Y+d[1]
			if !gs.Map.InBounds(nx, ny) {
				continue
			}
			if gs.Map.At(nx, ny).Owner != player {
				zone[conquest.Coord{X: nx, Y: ny}] = true
			}
		}
	}
	return zone
}
