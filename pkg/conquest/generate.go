package conquest

import (
	"fmt"
	"math/rand"
)

// Balance thresholds for generated maps.
const (
	// minCapitalSpacingFrac scales map width into the minimum pairwise
	// Manhattan distance between capitals.
	minCapitalSpacingFrac = 0.4
	// minConnectedFrac is the share of open tiles that must be reachable
	// from every capital.
	minConnectedFrac = 0.8
	// maxRegionImbalance caps the relative size difference between
	// nearest-capital regions.
	maxRegionImbalance = 0.2

	capitalStartUnits = 1
)

// GenerateConfig controls balanced map generation.
type GenerateConfig struct {
	Width          int
	Height         int
	Players        int
	MountainFrac   float64
	StrongholdFrac float64
	CostMin        int
	CostMax        int
	MaxAttempts    int
}

// DefaultGenerateConfig returns the standard board for the given seat count.
func DefaultGenerateConfig(players int) GenerateConfig {
	return GenerateConfig{
		Width:          20,
		Height:         20,
		Players:        players,
		MountainFrac:   0.12,
		StrongholdFrac: 0.05,
		CostMin:        35,
		CostMax:        50,
		MaxAttempts:    120,
	}
}

// Generate builds a starting map that passes the balance checks: exactly
// one capital per player, pairwise capital distance at least 0.4x width,
// all capitals in one connected region covering at least 80% of the open
// tiles, and nearest-capital regions within 20% of each other in size.
// Terrain is random per attempt, so generation retries until a candidate
// passes or MaxAttempts runs out.
func Generate(cfg GenerateConfig, rng *rand.Rand) (*Map, error) {
	if cfg.Players < 2 {
		return nil, fmt.Errorf("generate: need at least 2 players, got %d", cfg.Players)
	}
	if cfg.Width < 4 || cfg.Height < 4 {
		return nil, fmt.Errorf("generate: board %dx%d too small", cfg.Width, cfg.Height)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if m, ok := buildCandidate(cfg, rng); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("generate: no balanced %dx%d map for %d players after %d attempts",
		cfg.Width, cfg.Height, cfg.Players, cfg.MaxAttempts)
}

func buildCandidate(cfg GenerateConfig, rng *rand.Rand) (*Map, bool) {
	m := NewMap(cfg.Width, cfg.Height)

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if rng.Float64() < cfg.MountainFrac {
				m.Tiles[y][x].Type = Mountain
			}
		}
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			t := &m.Tiles[y][x]
			if t.Type == Blank && rng.Float64() < cfg.StrongholdFrac {
				t.Type = Stronghold
				t.CaptureCost = cfg.CostMin + rng.Intn(cfg.CostMax-cfg.CostMin+1)
			}
		}
	}

	if !placeCapitals(m, cfg, rng) {
		return nil, false
	}
	if !balanced(m) {
		return nil, false
	}
	return m, true
}

// placeCapitals drops one capital per player on open Blank tiles,
// enforcing the pairwise spacing floor.
func placeCapitals(m *Map, cfg GenerateConfig, rng *rand.Rand) bool {
	minDist := int(minCapitalSpacingFrac * float64(m.Width))
	for player := 1; player <= cfg.Players; player++ {
		placed := false
		for try := 0; try < 200; try++ {
			x, y := rng.Intn(m.Width), rng.Intn(m.Height)
			t := m.At(x, y)
			if t.Type != Blank || t.Owner != Neutral {
				continue
			}
			ok := true
			for _, e := range m.Capitals {
				if ManhattanDistance(x, y, e.X, e.Y) < minDist {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			t.Type = Capital
			t.Owner = player
			t.Units = capitalStartUnits
			m.Capitals = append(m.Capitals, CapitalEntry{X: x, Y: y, Player: player})
			placed = true
			break
		}
		if !placed {
			return false
		}
	}
	return true
}

// balanced checks connectivity and region fairness: every capital must sit
// in one flood-fill component covering at least minConnectedFrac of the
// open tiles, and the open area split by nearest capital must be within
// maxRegionImbalance between the largest and smallest region.
func balanced(m *Map) bool {
	open := 0
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Tiles[y][x].Passable() {
				open++
			}
		}
	}

	dists := make([][]int, len(m.Capitals))
	for i, e := range m.Capitals {
		dists[i] = bfsDistances(m, Coord{X: e.X, Y: e.Y})
	}

	reached := 0
	for _, d := range dists[0] {
		if d >= 0 {
			reached++
		}
	}
	if float64(reached) < minConnectedFrac*float64(open) {
		return false
	}
	for i := 1; i < len(m.Capitals); i++ {
		e := m.Capitals[i]
		if dists[0][e.Y*m.Width+e.X] < 0 {
			return false
		}
	}

	regions := make([]int, len(m.Capitals))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			idx := y*m.Width + x
			best, bestDist := -1, -1
			for i := range dists {
				d := dists[i][idx]
				if d < 0 {
					continue
				}
				if best == -1 || d < bestDist {
					best, bestDist = i, d
				}
			}
			if best >= 0 {
				regions[best]++
			}
		}
	}
	minRegion, maxRegion := regions[0], regions[0]
	for _, r := range regions[1:] {
		if r < minRegion {
			minRegion = r
		}
		if r > maxRegion {
			maxRegion = r
		}
	}
	return float64(maxRegion-minRegion) <= maxRegionImbalance*float64(maxRegion)
}

// bfsDistances returns step distances through passable tiles from the
// given square, flat row-major, -1 for unreachable.
func bfsDistances(m *Map, from Coord) []int {
	dist := make([]int, m.Width*m.Height)
	for i := range dist {
		dist[i] = -1
	}
	if !m.InBounds(from.X, from.Y) || !m.At(from.X, from.Y).Passable() {
		return dist
	}
	queue := make([]Coord, 0, m.Width*m.Height)
	dist[from.Y*m.Width+from.X] = 0
	queue = append(queue, from)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		d := dist[c.Y*m.Width+c.X]
		for _, off := range neighborOffsets {
			nx, ny := c.X+off[0], c.Y+off[1]
			if !m.InBounds(nx, ny) || !m.At(nx, ny).Passable() {
				continue
			}
			if idx := ny*m.Width + nx; dist[idx] < 0 {
				dist[idx] = d + 1
				queue = append(queue, Coord{X: nx, Y: ny})
			}
		}
	}
	return dist
}
