package conquest

// GameState is a complete snapshot of a game in progress.
//
// playerTiles mirrors tile ownership: playerTiles[p] holds exactly the
// coordinates of tiles with Owner == p, for every p >= 1. All ownership
// changes go through setOwner so the grid and the index can never drift.
type GameState struct {
	Map           *Map `json:"map"`
	PlayerCount   int  `json:"playerCount"`
	CurrentPlayer int  `json:"currentPlayer"`
	Turn          int  `json:"turn"`
	Round         int  `json:"round"`
	GameOver      bool `json:"gameOver"`
	Winner        int  `json:"winner,omitempty"`

	playerTiles map[int][]Coord
}

// NewGameState wraps a starting map for the given number of seats.
// The ownership index is built by scanning the grid.
func NewGameState(m *Map, playerCount int) *GameState {
	gs := &GameState{
		Map:           m,
		PlayerCount:   playerCount,
		CurrentPlayer: 1,
		Turn:          1,
		Round:         1,
	}
	gs.rebuildIndex()
	return gs
}

// rebuildIndex recomputes playerTiles from the grid.
func (gs *GameState) rebuildIndex() {
	gs.playerTiles = make(map[int][]Coord, gs.PlayerCount)
	for y := 0; y < gs.Map.Height; y++ {
		for x := 0; x < gs.Map.Width; x++ {
			if owner := gs.Map.Tiles[y][x].Owner; owner != Neutral {
				gs.playerTiles[owner] = append(gs.playerTiles[owner], Coord{X: x, Y: y})
			}
		}
	}
}

// TilesOf returns the coordinates of every tile the player owns.
// The returned slice is the live index; callers must not mutate it.
// Order is deterministic for a given move history.
func (gs *GameState) TilesOf(player int) []Coord {
	return gs.playerTiles[player]
}

// TileCount returns the number of tiles the player owns.
func (gs *GameState) TileCount(player int) int {
	return len(gs.playerTiles[player])
}

// UnitCount returns the total units across the player's tiles.
func (gs *GameState) UnitCount(player int) int {
	total := 0
	for _, c := range gs.playerTiles[player] {
		total += gs.Map.Tiles[c.Y][c.X].Units
	}
	return total
}

// ImportantCount returns how many Capital or Stronghold tiles the player owns.
func (gs *GameState) ImportantCount(player int) int {
	count := 0
	for _, c := range gs.playerTiles[player] {
		if gs.Map.Tiles[c.Y][c.X].Important() {
			count++
		}
	}
	return count
}

// Alive reports whether the player still owns the tile at their registered
// capital coordinates. Capital identity lives in the registry, not in tile
// types, so this stays correct after capital relocation.
func (gs *GameState) Alive(player int) bool {
	c, ok := gs.Map.CapitalOf(player)
	if !ok {
		return false
	}
	return gs.Map.At(c.X, c.Y).Owner == player
}

// AliveCount returns the number of players still owning their capital.
func (gs *GameState) AliveCount() int {
	count := 0
	for p := 1; p <= gs.PlayerCount; p++ {
		if gs.Alive(p) {
			count++
		}
	}
	return count
}

// isCapitalOf reports whether (x, y) is the player's registered capital.
func (gs *GameState) isCapitalOf(player, x, y int) bool {
	c, ok := gs.Map.CapitalOf(player)
	return ok && c.X == x && c.Y == y
}

// addTile and removeTile maintain the ownership index. removeTile uses
// swap-removal, which scrambles order deterministically.
func (gs *GameState) addTile(player int, c Coord) {
	gs.playerTiles[player] = append(gs.playerTiles[player], c)
}

func (gs *GameState) removeTile(player int, c Coord) {
	tiles := gs.playerTiles[player]
	for i := range tiles {
		if tiles[i] == c {
			tiles[i] = tiles[len(tiles)-1]
			gs.playerTiles[player] = tiles[:len(tiles)-1]
			return
		}
	}
}

// setOwner is the single ownership mutation point for grid and index.
func (gs *GameState) setOwner(x, y, owner int) {
	t := gs.Map.At(x, y)
	if t.Owner == owner {
		return
	}
	if t.Owner != Neutral {
		gs.removeTile(t.Owner, Coord{X: x, Y: y})
	}
	if owner != Neutral {
		gs.addTile(owner, Coord{X: x, Y: y})
	}
	t.Owner = owner
}

// Clone returns a deep copy of the GameState. Mutations to the clone do not
// affect the original, which is what search bots rely on when they resolve
// speculative moves.
func (gs *GameState) Clone() *GameState {
	c := &GameState{
		Map:           gs.Map.Clone(),
		PlayerCount:   gs.PlayerCount,
		CurrentPlayer: gs.CurrentPlayer,
		Turn:          gs.Turn,
		Round:         gs.Round,
		GameOver:      gs.GameOver,
		Winner:        gs.Winner,
	}
	c.playerTiles = make(map[int][]Coord, len(gs.playerTiles))
	for p, tiles := range gs.playerTiles {
		cp := make([]Coord, len(tiles))
		copy(cp, tiles)
		c.playerTiles[p] = cp
	}
	return c
}

// CloneInto copies gs into dst, reusing dst's allocated rows and index
// slices where possible, and returns dst. A nil dst allocates a fresh
// clone, so search loops can lazily grow a pool of scratch states and
// reuse them on every later iteration.
func (gs *GameState) CloneInto(dst *GameState) *GameState {
	if dst == nil {
		return gs.Clone()
	}
	if dst.Map == nil || dst.Map.Width != gs.Map.Width || dst.Map.Height != gs.Map.Height {
		dst.Map = gs.Map.Clone()
	} else {
		dst.Map.Width = gs.Map.Width
		dst.Map.Height = gs.Map.Height
		for y := range gs.Map.Tiles {
			copy(dst.Map.Tiles[y], gs.Map.Tiles[y])
		}
		if cap(dst.Map.Capitals) >= len(gs.Map.Capitals) {
			dst.Map.Capitals = dst.Map.Capitals[:len(gs.Map.Capitals)]
		} else {
			dst.Map.Capitals = make([]CapitalEntry, len(gs.Map.Capitals))
		}
		copy(dst.Map.Capitals, gs.Map.Capitals)
	}

	dst.PlayerCount = gs.PlayerCount
	dst.CurrentPlayer = gs.CurrentPlayer
	dst.Turn = gs.Turn
	dst.Round = gs.Round
	dst.GameOver = gs.GameOver
	dst.Winner = gs.Winner

	if dst.playerTiles == nil {
		dst.playerTiles = make(map[int][]Coord, len(gs.playerTiles))
	}
	for p := range dst.playerTiles {
		if _, ok := gs.playerTiles[p]; !ok {
			delete(dst.playerTiles, p)
		}
	}
	for p, tiles := range gs.playerTiles {
		dstTiles := dst.playerTiles[p]
		if cap(dstTiles) >= len(tiles) {
			dstTiles = dstTiles[:len(tiles)]
		} else {
			dstTiles = make([]Coord, len(tiles))
		}
		copy(dstTiles, tiles)
		dst.playerTiles[p] = dstTiles
	}
	return dst
}

// NextTurn hands play to the next seat. Completing a full rotation
// increments Turn and applies growth: every owned Capital and Stronghold
// tile gains one unit per rotation, and every 25 turns a new Round begins
// and every owned Blank tile gains one unit as well. Neutral tiles never
// grow. Eliminated seats still occupy a slot in the rotation; they simply
// have no tiles to move.
func (gs *GameState) NextTurn() {
	if gs.GameOver {
		return
	}
	gs.CurrentPlayer++
	if gs.CurrentPlayer > gs.PlayerCount {
		gs.CurrentPlayer = 1
		gs.Turn++
		gs.applyGrowth()
	}
}

func (gs *GameState) applyGrowth() {
	newRound := gs.Turn%25 == 0
	if newRound {
		gs.Round++
	}
	for p := 1; p <= gs.PlayerCount; p++ {
		for _, c := range gs.playerTiles[p] {
			t := gs.Map.At(c.X, c.Y)
			switch t.Type {
			case Capital, Stronghold:
				t.Units++
			case Blank:
				if newRound {
					t.Units++
				}
			}
		}
	}
}
