package bot

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gridlords/pkg/conquest"
)

const (
	// truceRedirectBranch caps how many ranked alternatives a truce-bound
	// strategy scans when its inner pick would break a truce.
	truceRedirectBranch = 20
	// capitalThreatRange is the Manhattan distance inside which a heavy
	// stack counts as camping an enemy capital.
	capitalThreatRange = 2
	// truceAskFactor: offer a truce to an aggressive neighbor only when
	// their army outweighs ours by this much.
	truceAskFactor = 1.5
	// truceDominanceFactor: accept an offer unless our army dwarfs the
	// asker's by this much.
	truceDominanceFactor = 2.0
	// sectorClaimShare is the army share concentrated in one sector that
	// justifies claiming it at the table.
	sectorClaimShare = 0.5
)

// IntentType enumerates the canned chat lines bots send and understand.
type IntentType int

const (
	IntentTruceOffer IntentType = iota
	IntentTruceAccept
	IntentTruceReject
	IntentBorderWarning
	IntentSectorClaim
	IntentCapitalThreat
	IntentTaunt
)

func (t IntentType) String() string {
	switch t {
	case IntentTruceOffer:
		return "truce_offer"
	case IntentTruceAccept:
		return "truce_accept"
	case IntentTruceReject:
		return "truce_reject"
	case IntentBorderWarning:
		return "border_warning"
	case IntentSectorClaim:
		return "sector_claim"
	case IntentCapitalThreat:
		return "capital_threat"
	case IntentTaunt:
		return "taunt"
	default:
		return "unknown"
	}
}

// ChatIntent is one structured table-talk line. From and To are seat
// numbers; To zero addresses the whole table. The payload fields beyond
// that are filled per intent type.
type ChatIntent struct {
	Type   IntentType
	From   int
	To     int
	X, Y   int
	Sector Sector
	Target int
}

// FormatCannedMessage renders an intent as the chat line bots send and
// ParseCannedMessage reads back.
func FormatCannedMessage(in ChatIntent) string {
	switch in.Type {
	case IntentTruceOffer:
		return "Truce? I stay off your tiles, you stay off mine"
	case IntentTruceAccept:
		return "Truce accepted"
	case IntentTruceReject:
		return "No truce"
	case IntentBorderWarning:
		return fmt.Sprintf("Back off my border at %d,%d", in.X, in.Y)
	case IntentSectorClaim:
		return fmt.Sprintf("The %s is mine, stay clear", in.Sector)
	case IntentCapitalThreat:
		return fmt.Sprintf("Your capital at %d,%d is next", in.X, in.Y)
	case IntentTaunt:
		return fmt.Sprintf("Seat %d is gone. Who's next?", in.Target)
	}
	return ""
}

// CannedMessageTemplates lists the recognized chat lines with their
// placeholders, for clients that surface a quick-chat picker.
func CannedMessageTemplates() []string {
	return []string{
		"Truce? I stay off your tiles, you stay off mine",
		"Truce accepted",
		"No truce",
		"Back off my border at {x},{y}",
		"The {sector} is mine, stay clear",
		"Your capital at {x},{y} is next",
		"Seat {seat} is gone. Who's next?",
	}
}

// ParseCannedMessage recovers the intent behind a chat line. Only the
// type and its payload fields are filled; seat attribution is the
// caller's job. Free-form chatter returns an error.
func ParseCannedMessage(msg string) (ChatIntent, error) {
	s := strings.ToLower(strings.TrimSpace(msg))
	switch s {
	case "truce? i stay off your tiles, you stay off mine", "truce?":
		return ChatIntent{Type: IntentTruceOffer}, nil
	case "truce accepted":
		return ChatIntent{Type: IntentTruceAccept}, nil
	case "no truce":
		return ChatIntent{Type: IntentTruceReject}, nil
	}
	if rest, ok := strings.CutPrefix(s, "back off my border at "); ok {
		if x, y, ok := parseCoordPair(rest); ok {
			return ChatIntent{Type: IntentBorderWarning, X: x, Y: y}, nil
		}
	}
	if rest, ok := strings.CutPrefix(s, "the "); ok {
		if name, ok := strings.CutSuffix(rest, " is mine, stay clear"); ok {
			return ChatIntent{Type: IntentSectorClaim, Sector: Sector(name)}, nil
		}
	}
	if rest, ok := strings.CutPrefix(s, "your capital at "); ok {
		if coords, ok := strings.CutSuffix(rest, " is next"); ok {
			if x, y, ok := parseCoordPair(coords); ok {
				return ChatIntent{Type: IntentCapitalThreat, X: x, Y: y}, nil
			}
		}
	}
	if rest, ok := strings.CutPrefix(s, "seat "); ok {
		if num, _, found := strings.Cut(rest, " is gone"); found {
			if target, err := strconv.Atoi(num); err == nil {
				return ChatIntent{Type: IntentTaunt, Target: target}, nil
			}
		}
	}
	return ChatIntent{}, fmt.Errorf("unrecognized canned message: %s", msg)
}

func parseCoordPair(s string) (int, int, bool) {
	xs, ys, found := strings.Cut(s, ",")
	if !found {
		return 0, 0, false
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return 0, 0, false
	}
	return x, y, true
}

// TruceBook tracks standing truces and open offers between seats. One
// book is shared by every bot in a game; the service owns it and routes
// human-declared truces through the same calls.
type TruceBook struct {
	mu     sync.Mutex
	truces map[int]map[int]bool
	offers map[int]map[int]bool
}

func NewTruceBook() *TruceBook {
	return &TruceBook{
		truces: make(map[int]map[int]bool),
		offers: make(map[int]map[int]bool),
	}
}

// Declare records a truce between two seats in both directions.
func (b *TruceBook) Declare(a, c int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mark(b.truces, a, c)
	mark(b.truces, c, a)
}

// Break dissolves the truce between two seats, if any.
func (b *TruceBook) Break(a, c int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.truces[a], c)
	delete(b.truces[c], a)
}

// Truced reports whether two seats hold a truce.
func (b *TruceBook) Truced(a, c int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truces[a][c]
}

// Offer records a pending truce offer awaiting the recipient's answer.
func (b *TruceBook) Offer(from, to int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mark(b.offers, to, from)
}

// TakeOffer consumes the pending offer from one seat to another,
// reporting whether it existed. Accepting and rejecting both consume.
func (b *TruceBook) TakeOffer(from, to int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.offers[to][from] {
		return false
	}
	delete(b.offers[to], from)
	return true
}

// Violates reports whether a move would land on a tile owned by a seat
// the mover holds a truce with.
func (b *TruceBook) Violates(gs *conquest.GameState, player int, m conquest.Move) bool {
	if !gs.Map.InBounds(m.ToX, m.ToY) {
		return false
	}
	t := gs.Map.At(m.ToX, m.ToY)
	if t.Owner == conquest.Neutral || t.Owner == player {
		return false
	}
	return b.Truced(player, t.Owner)
}

func mark(m map[int]map[int]bool, k, v int) {
	if m[k] == nil {
		m[k] = make(map[int]bool)
	}
	m[k][v] = true
}

// TruceStrategy wraps another strategy and keeps its moves inside the
// truces recorded in a shared book. When the inner pick would land on a
// truced seat's tile it redirects to the best-ranked alternative; if
// every ranked alternative also violates, the truce is broken and the
// original move stands.
type TruceStrategy struct {
	inner Strategy
	book  *TruceBook
}

func NewTruceStrategy(inner Strategy, book *TruceBook) *TruceStrategy {
	return &TruceStrategy{inner: inner, book: book}
}

func (s *TruceStrategy) Name() string { return s.inner.Name() }

func (s *TruceStrategy) ChooseMove(gs *conquest.GameState, player int) *conquest.Move {
	mv := s.inner.ChooseMove(gs, player)
	if mv == nil || !s.book.Violates(gs, player, *mv) {
		return mv
	}
	for _, rm := range TopKMoves(gs, player, truceRedirectBranch) {
		if s.book.Violates(gs, player, rm.Move) {
			continue
		}
		alt := rm.Move
		return &alt
	}
	s.book.Break(player, gs.Map.At(mv.ToX, mv.ToY).Owner)
	return mv
}

// ConsiderTruce decides whether a bot seat accepts a truce offer. A seat
// already under border pressure from the asker refuses; otherwise it
// accepts unless its own army dwarfs the asker's.
func ConsiderTruce(gs *conquest.GameState, seat, from int) bool {
	if !gs.Alive(seat) || !gs.Alive(from) {
		return false
	}
	if ClassifyStances(gs, seat)[from] == StanceAggressive {
		return false
	}
	return float64(gs.UnitCount(seat)) < truceDominanceFactor*float64(gs.UnitCount(from))
}

// TableTalk produces the chat lines a bot seat wants to send this
// round. Deterministic given the state, so seeded games chat the same
// way on replay.
func TableTalk(gs *conquest.GameState, seat int) []ChatIntent {
	if !gs.Alive(seat) {
		return nil
	}
	stances := ClassifyStances(gs, seat)
	var out []ChatIntent
	for p := 1; p <= gs.PlayerCount; p++ {
		if p == seat || !gs.Alive(p) {
			continue
		}
		if x, y, ok := capitalThreatened(gs, seat, p); ok {
			out = append(out, ChatIntent{Type: IntentCapitalThreat, From: seat, To: p, X: x, Y: y})
			continue
		}
		if stances[p] != StanceAggressive {
			continue
		}
		if float64(gs.UnitCount(seat))*truceAskFactor < float64(gs.UnitCount(p)) {
			out = append(out, ChatIntent{Type: IntentTruceOffer, From: seat, To: p})
			continue
		}
		if c, ok := pressedTile(gs, seat, p); ok {
			out = append(out, ChatIntent{Type: IntentBorderWarning, From: seat, To: p, X: c.X, Y: c.Y})
		}
	}
	if len(out) == 0 {
		if sector, share := DominantSector(gs, seat); share >= sectorClaimShare && sector != "" {
			out = append(out, ChatIntent{Type: IntentSectorClaim, From: seat, Sector: sector})
		}
	}
	return out
}

// capitalThreatened reports whether seat has a stack near p's capital
// that outweighs its garrison, returning the capital's coordinates.
func capitalThreatened(gs *conquest.GameState, seat, p int) (int, int, bool) {
	reg, ok := gs.Map.CapitalOf(p)
	if !ok {
		return 0, 0, false
	}
	garrison := gs.Map.At(reg.X, reg.Y).Units
	for _, c := range gs.TilesOf(seat) {
		if conquest.ManhattanDistance(c.X, c.Y, reg.X, reg.Y) > capitalThreatRange {
			continue
		}
		if gs.Map.At(c.X, c.Y).Units > garrison {
			return reg.X, reg.Y, true
		}
	}
	return 0, 0, false
}

// pressedTile finds the seat's tile facing the most of an aggressor's
// units, for pointing at in a border warning.
func pressedTile(gs *conquest.GameState, seat, aggressor int) (conquest.Coord, bool) {
	var best conquest.Coord
	bestUnits := 0
	for y := 0; y < gs.Map.Height; y++ {
		for x := 0; x < gs.Map.Width; x++ {
			if gs.Map.At(x, y).Owner != seat {
				continue
			}
			units := 0
			for _, d := range orthogonal {
				nx, ny := x+d[0], y+d[1]
				if !gs.Map.InBounds(nx, ny) {
					continue
				}
				if n := gs.Map.At(nx, ny); n.Owner == aggressor {
					units += n.Units
				}
			}
			if units > bestUnits {
				best = conquest.Coord{X: x, Y: y}
				bestUnits = units
			}
		}
	}
	return best, bestUnits > 0
}

// EliminationTaunt is the table-wide line a bot sends after taking an
// opponent's capital.
func EliminationTaunt(conqueror, defeated int) ChatIntent {
	return ChatIntent{Type: IntentTaunt, From: conqueror, Target: defeated}
}
