package conquest

import (
	"fmt"
	"strconv"
	"strings"
)

// BFEN is a compact single-line board notation, used by tests and by game
// rows at rest. Four sections separated by '/':
//
//	dims / rows / capitals / meta
//
// dims is "WxH". Rows are separated by '|', tiles within a row by ','.
// Tile tokens: '#' mountain, '.' empty neutral blank, 's<cost>' neutral
// stronghold, otherwise '<owner><t><units>' with t one of b/s/c
// (blank/stronghold/capital), e.g. "1c5". The capitals section lists
// registry entries as '<player>@<x>.<y>' (or '-' when empty). meta is
// '<currentPlayer>.<turn>.<round>' with a trailing '.w<winner>' once the
// game is over.

// typeToChar maps an owned tile's type to its BFEN letter.
var typeToChar = map[TileType]byte{
	Blank:      'b',
	Stronghold: 's',
	Capital:    'c',
}

// charToType maps a BFEN type letter back to a TileType.
var charToType = map[byte]TileType{
	'b': Blank,
	's': Stronghold,
	'c': Capital,
}

// EncodeBFEN serializes a GameState to a BFEN string. Output is
// deterministic: tiles in row order, capitals in registry order.
func EncodeBFEN(gs *GameState) string {
	var b strings.Builder
	b.Grow(gs.Map.Width * gs.Map.Height * 3)

	fmt.Fprintf(&b, "%dx%d", gs.Map.Width, gs.Map.Height)
	b.WriteByte('/')
	encodeRows(&b, gs.Map)
	b.WriteByte('/')
	encodeCapitals(&b, gs.Map)
	b.WriteByte('/')
	encodeMeta(&b, gs)

	return b.String()
}

func encodeRows(b *strings.Builder, m *Map) {
	for y := 0; y < m.Height; y++ {
		if y > 0 {
			b.WriteByte('|')
		}
		for x := 0; x < m.Width; x++ {
			if x > 0 {
				b.WriteByte(',')
			}
			encodeTile(b, &m.Tiles[y][x])
		}
	}
}

func encodeTile(b *strings.Builder, t *Tile) {
	switch {
	case t.Type == Mountain:
		b.WriteByte('#')
	case t.Owner == Neutral && t.Type == Stronghold:
		b.WriteByte('s')
		b.WriteString(strconv.Itoa(t.CaptureCost))
	case t.Owner == Neutral && t.Type == Blank && t.Units == 0:
		b.WriteByte('.')
	default:
		b.WriteString(strconv.Itoa(t.Owner))
		b.WriteByte(typeToChar[t.Type])
		b.WriteString(strconv.Itoa(t.Units))
	}
}

func encodeCapitals(b *strings.Builder, m *Map) {
	if len(m.Capitals) == 0 {
		b.WriteByte('-')
		return
	}
	for i, e := range m.Capitals {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%d@%d.%d", e.Player, e.X, e.Y)
	}
}

func encodeMeta(b *strings.Builder, gs *GameState) {
	fmt.Fprintf(b, "%d.%d.%d", gs.CurrentPlayer, gs.Turn, gs.Round)
	if gs.GameOver {
		fmt.Fprintf(b, ".w%d", gs.Winner)
	}
}

// DecodeBFEN parses a BFEN string back into a GameState. The ownership
// index is rebuilt from the grid and the seat count is taken from the
// capital registry, which keeps an entry per original seat for the whole
// game.
func DecodeBFEN(s string) (*GameState, error) {
	parts := strings.SplitN(s, "/", 4)
	if len(parts) != 4 {
		return nil, fmt.Errorf("bfen: expected 4 sections separated by '/', got %d", len(parts))
	}

	width, height, err := decodeDims(parts[0])
	if err != nil {
		return nil, err
	}
	m := NewMap(width, height)
	if err := decodeRows(parts[1], m); err != nil {
		return nil, err
	}
	if err := decodeCapitals(parts[2], m); err != nil {
		return nil, err
	}

	gs := &GameState{Map: m, PlayerCount: len(m.Capitals)}
	if err := decodeMeta(parts[3], gs); err != nil {
		return nil, err
	}
	gs.rebuildIndex()
	return gs, nil
}

func decodeDims(s string) (int, int, error) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("bfen: dims %q missing 'x'", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width < 1 {
		return 0, 0, fmt.Errorf("bfen: invalid width %q", w)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height < 1 {
		return 0, 0, fmt.Errorf("bfen: invalid height %q", h)
	}
	return width, height, nil
}

func decodeRows(s string, m *Map) error {
	rows := strings.Split(s, "|")
	if len(rows) != m.Height {
		return fmt.Errorf("bfen: expected %d rows, got %d", m.Height, len(rows))
	}
	for y, row := range rows {
		tokens := strings.Split(row, ",")
		if len(tokens) != m.Width {
			return fmt.Errorf("bfen: row %d: expected %d tiles, got %d", y, m.Width, len(tokens))
		}
		for x, token := range tokens {
			tile, err := decodeTile(token)
			if err != nil {
				return fmt.Errorf("bfen: row %d col %d: %w", y, x, err)
			}
			m.Tiles[y][x] = tile
		}
	}
	return nil
}

func decodeTile(token string) (Tile, error) {
	switch {
	case token == "#":
		return Tile{Type: Mountain}, nil
	case token == ".":
		return Tile{}, nil
	case len(token) > 1 && token[0] == 's':
		cost, err := strconv.Atoi(token[1:])
		if err != nil || cost < 0 {
			return Tile{}, fmt.Errorf("invalid stronghold cost %q", token)
		}
		return Tile{Type: Stronghold, CaptureCost: cost}, nil
	}

	split := strings.IndexFunc(token, func(r rune) bool { return r < '0' || r > '9' })
	if split < 1 || split == len(token)-1 {
		return Tile{}, fmt.Errorf("invalid tile token %q", token)
	}
	owner, err := strconv.Atoi(token[:split])
	if err != nil {
		return Tile{}, fmt.Errorf("invalid owner in %q", token)
	}
	tileType, ok := charToType[token[split]]
	if !ok {
		return Tile{}, fmt.Errorf("invalid tile type %q", string(token[split]))
	}
	units, err := strconv.Atoi(token[split+1:])
	if err != nil || units < 0 {
		return Tile{}, fmt.Errorf("invalid units in %q", token)
	}
	return Tile{Type: tileType, Owner: owner, Units: units}, nil
}

func decodeCapitals(s string, m *Map) error {
	if s == "-" {
		return nil
	}
	for _, entry := range strings.Split(s, ",") {
		playerStr, coords, ok := strings.Cut(entry, "@")
		if !ok {
			return fmt.Errorf("bfen: capital entry %q missing '@'", entry)
		}
		player, err := strconv.Atoi(playerStr)
		if err != nil || player < 1 {
			return fmt.Errorf("bfen: invalid capital player %q", entry)
		}
		xStr, yStr, ok := strings.Cut(coords, ".")
		if !ok {
			return fmt.Errorf("bfen: capital entry %q missing coordinates", entry)
		}
		x, err := strconv.Atoi(xStr)
		if err != nil {
			return fmt.Errorf("bfen: invalid capital x in %q", entry)
		}
		y, err := strconv.Atoi(yStr)
		if err != nil {
			return fmt.Errorf("bfen: invalid capital y in %q", entry)
		}
		if !m.InBounds(x, y) {
			return fmt.Errorf("bfen: capital %q out of bounds", entry)
		}
		m.Capitals = append(m.Capitals, CapitalEntry{X: x, Y: y, Player: player})
	}
	return nil
}

func decodeMeta(s string, gs *GameState) error {
	fields := strings.Split(s, ".")
	if len(fields) != 3 && len(fields) != 4 {
		return fmt.Errorf("bfen: meta %q: expected 3 or 4 dot-separated fields", s)
	}
	var err error
	if gs.CurrentPlayer, err = strconv.Atoi(fields[0]); err != nil || gs.CurrentPlayer < 1 {
		return fmt.Errorf("bfen: invalid current player %q", fields[0])
	}
	if gs.Turn, err = strconv.Atoi(fields[1]); err != nil || gs.Turn < 1 {
		return fmt.Errorf("bfen: invalid turn %q", fields[1])
	}
	if gs.Round, err = strconv.Atoi(fields[2]); err != nil || gs.Round < 1 {
		return fmt.Errorf("bfen: invalid round %q", fields[2])
	}
	if len(fields) == 4 {
		if !strings.HasPrefix(fields[3], "w") {
			return fmt.Errorf("bfen: invalid winner field %q", fields[3])
		}
		winner, err := strconv.Atoi(fields[3][1:])
		if err != nil || winner < 1 {
			return fmt.Errorf("bfen: invalid winner %q", fields[3])
		}
		gs.GameOver = true
		gs.Winner = winner
	}
	return nil
}
