package bot

import (
	"gridlords/pkg/conquest"
)

// Sector names a strategic region of the board.
type Sector string

const (
	SectorNorthwest Sector = "northwest"
	SectorNortheast Sector = "northeast"
	SectorSouthwest Sector = "southwest"
	SectorSoutheast Sector = "southeast"
	SectorCenter    Sector = "center"
)

// sectorOrder fixes the scan order so ties resolve the same way on every
// run.
var sectorOrder = [...]Sector{
	SectorNorthwest,
	SectorNortheast,
	SectorSouthwest,
	SectorSoutheast,
	SectorCenter,
}

// SectorOf places a tile in one of five regions: a center block inset a
// quarter of each axis from the edges, and the four corner quadrants
// around it. Boards are generated per game, so regions are cut from the
// geometry rather than named locations.
func SectorOf(m *conquest.Map, x, y int) Sector {
	mx, my := m.Width/4, m.Height/4
	if x >= mx && x < m.Width-mx && y >= my && y < m.Height-my {
		return SectorCenter
	}
	if x < m.Width/2 {
		if y < m.Height/2 {
			return SectorNorthwest
		}
		return SectorSouthwest
	}
	if y < m.Height/2 {
		return SectorNortheast
	}
	return SectorSoutheast
}

// SectorPresence counts units per sector for a given player.
func SectorPresence(gs *conquest.GameState, player int) map[Sector]int {
	counts := make(map[Sector]int)
	for _, c := range gs.TilesOf(player) {
		if u := gs.Map.At(c.X, c.Y).Units; u > 0 {
			counts[SectorOf(gs.Map, c.X, c.Y)] += u
		}
	}
	return counts
}

// DominantSector returns the sector holding the largest share of the
// player's units, and that share. A player with no units on the board
// has no dominant sector.
func DominantSector(gs *conquest.GameState, player int) (Sector, float64) {
	counts := SectorPresence(gs, player)
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return "", 0
	}
	var best Sector
	bestUnits := 0
	for _, sec := range sectorOrder {
		if counts[sec] > bestUnits {
			best, bestUnits = sec, counts[sec]
		}
	}
	return best, float64(bestUnits) / float64(total)
}
