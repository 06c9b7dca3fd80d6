package conquest

// Coord identifies a board square.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// CapitalEntry pins one player's capital location in the registry.
// Entries are stable identities: when a player conquers an enemy capital
// the conqueror's entry relocates to the captured coordinates, and the
// defeated player's entry stays behind so the elimination check can see
// that the tile there is no longer theirs. Entries are never removed.
type CapitalEntry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Player int `json:"playerId"`
}

// neighborOffsets is the orthogonal adjacency used for movement,
// in deterministic N, E, S, W order.
var neighborOffsets = [4][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// Map is the board: a dense Tiles[y][x] grid plus the capital registry.
type Map struct {
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Tiles    [][]Tile       `json:"tiles"`
	Capitals []CapitalEntry `json:"capitals"`
}

// NewMap returns an all-Blank neutral map of the given dimensions.
func NewMap(width, height int) *Map {
	tiles := make([][]Tile, height)
	for y := range tiles {
		tiles[y] = make([]Tile, width)
	}
	return &Map{Width: width, Height: height, Tiles: tiles}
}

// InBounds reports whether (x, y) is on the board.
func (m *Map) InBounds(x, y int) bool {
	return x >= 0 && x < m.Width && y >= 0 && y < m.Height
}

// At returns the tile at (x, y). Callers must bounds-check first.
func (m *Map) At(x, y int) *Tile { return &m.Tiles[y][x] }

// ManhattanDistance returns |x1-x2| + |y1-y2|.
func ManhattanDistance(x1, y1, x2, y2 int) int {
	dx := x1 - x2
	if dx < 0 {
		dx = -dx
	}
	dy := y1 - y2
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Adjacent reports whether the two squares are orthogonal neighbors.
func Adjacent(x1, y1, x2, y2 int) bool {
	return ManhattanDistance(x1, y1, x2, y2) == 1
}

// CapitalOf returns the registered capital coordinates for a player.
func (m *Map) CapitalOf(player int) (Coord, bool) {
	for _, e := range m.Capitals {
		if e.Player == player {
			return Coord{X: e.X, Y: e.Y}, true
		}
	}
	return Coord{}, false
}

// relocateCapital moves a player's registry entry to new coordinates.
func (m *Map) relocateCapital(player, x, y int) {
	for i := range m.Capitals {
		if m.Capitals[i].Player == player {
			m.Capitals[i].X = x
			m.Capitals[i].Y = y
			return
		}
	}
}

// Clone returns a deep copy of the map.
func (m *Map) Clone() *Map {
	c := &Map{Width: m.Width, Height: m.Height}
	c.Tiles = make([][]Tile, len(m.Tiles))
	for y := range m.Tiles {
		row := make([]Tile, len(m.Tiles[y]))
		copy(row, m.Tiles[y])
		c.Tiles[y] = row
	}
	if m.Capitals != nil {
		c.Capitals = make([]CapitalEntry, len(m.Capitals))
		copy(c.Capitals, m.Capitals)
	}
	return c
}
