package conquest

// TileType classifies a board tile.
type TileType int

const (
	Blank TileType = iota
	Mountain
	Stronghold
	Capital
)

// Neutral is the owner value for tiles not held by any player.
// Player seats are numbered 1..PlayerCount.
const Neutral = 0

// Tile is a single cell on the board. CaptureCost is only meaningful on
// neutral Strongholds, where it counts attacker units still needed to
// unlock the tile; it is ignored everywhere else.
type Tile struct {
	Type        TileType `json:"type"`
	Owner       int      `json:"owner"`
	Units       int      `json:"units"`
	CaptureCost int      `json:"captureCost,omitempty"`
}

// IsNeutral reports whether no player holds the tile.
func (t *Tile) IsNeutral() bool { return t.Owner == Neutral }

// Passable reports whether units can ever enter the tile.
func (t *Tile) Passable() bool { return t.Type != Mountain }

// Important reports whether the tile is a Capital or Stronghold.
// Both grow one unit per full rotation.
func (t *Tile) Important() bool { return t.Type == Capital || t.Type == Stronghold }

func (tt TileType) String() string {
	switch tt {
	case Blank:
		return "blank"
	case Mountain:
		return "mountain"
	case Stronghold:
		return "stronghold"
	case Capital:
		return "capital"
	}
	return "unknown"
}
