package bot

import (
	"math"
	"sort"

	"gridlords/pkg/conquest"
)

// Component weights. Defense is a liability measure, so it enters the
// combination negatively: the more urgent the defense, the worse the
// position.
const (
	weightBase    = 0.30
	weightAttack  = 0.35
	weightDefense = 0.20
	weightGrowth  = 0.15

	// scoreClamp bounds regular evaluations; terminal results sit far
	// outside it so a found win always dominates heuristics.
	scoreClamp = 10000.0
	winScore   = 1000000.0
)

// Base-advantage constants.
const (
	territoryWeight = 10.0
	armyWeight      = 5.0
	importantWeight = 40.0

	largeArmyFloor     = 30.0
	largeArmyAvgFactor = 1.5
	largeArmyPerUnit   = 0.5
	largeArmyImportant = 0.5

	captureOpportunity   = 8.0
	reinforceOpportunity = 2.0
	expandOpportunity    = 3.0
)

// Attack-potential constants. Growth projection mirrors the engine's
// pacing: important tiles gain 1 per rotation, plain tiles 1 per 25.
const (
	growthImportantPerTurn = 1.0
	growthBlankPerTurn     = 0.04

	strongSourceMin   = 3
	strongSourceCount = 5

	surplusScale        = 2.0
	capitalAttackBonus  = 300.0
	capitalCloseBonus   = 150.0
	capitalCloseTurns   = 3
	largeSourceBonus    = 100.0
	armyLeadBonus       = 100.0
	armyLeadFactor      = 1.2
	desperationBonus    = 200.0
	desperationTurn     = 50
	desperationTrail    = 0.8
	capitalFeasibleMult = 1.5
)

// Defense and growth constants.
const (
	defendCapitalBonus    = 100.0
	defendStrongholdBonus = 50.0
	threatPerUnit         = 3.0
	threatRange           = 3
	reliefRange           = 3
	reliefDiscount        = 0.3

	strongholdPullBonus = 100.0
	frontierPerTile     = 5.0
)

// orthogonal is the four-neighborhood used by evaluation scans.
var orthogonal = [4][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// Context frames a state for evaluation: the controlled player measured
// against the single most threatening opponent.
type Context struct {
	OwnTiles       int
	EnemyTiles     int
	OwnUnits       int
	EnemyUnits     int
	OwnImportant   int
	EnemyImportant int
	OwnCapital     conquest.Coord
	Turn           int

	gs       *conquest.GameState
	player   int
	opponent int
}

// MostThreatening picks the opponent to measure against: strength (total
// units times tile count) scaled by how close their forward line stands
// to our registered capital. Minimaxing against one opponent keeps the
// branching factor flat as the player count grows. Returns 0 when no
// opponent holds a tile.
func MostThreatening(gs *conquest.GameState, player int) int {
	own, _ := gs.Map.CapitalOf(player)
	best := 0
	bestScore := -1.0
	for p := 1; p <= gs.PlayerCount; p++ {
		if p == player || gs.TileCount(p) == 0 {
			continue
		}
		dist := frontLineDistance(gs, own, p)
		score := float64(gs.UnitCount(p)) * float64(gs.TileCount(p)) / float64(dist+1)
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	return best
}

// frontLineDistance is the Manhattan distance from our capital to the
// opponent's nearest owned tile.
func frontLineDistance(gs *conquest.GameState, ownCapital conquest.Coord, opponent int) int {
	min := math.MaxInt32
	for _, c := range gs.TilesOf(opponent) {
		if d := conquest.ManhattanDistance(ownCapital.X, ownCapital.Y, c.X, c.Y); d < min {
			min = d
		}
	}
	return min
}

// BuildContext summarizes gs for the player against the most threatening
// opponent.
func BuildContext(gs *conquest.GameState, player int) *Context {
	return BuildContextVs(gs, player, MostThreatening(gs, player))
}

// BuildContextVs summarizes gs against a fixed opponent. Search uses this
// so every leaf in one tree is measured against the same opponent chosen
// at the root.
func BuildContextVs(gs *conquest.GameState, player, opponent int) *Context {
	capital, _ := gs.Map.CapitalOf(player)
	return &Context{
		OwnTiles:       gs.TileCount(player),
		EnemyTiles:     gs.TileCount(opponent),
		OwnUnits:       gs.UnitCount(player),
		EnemyUnits:     gs.UnitCount(opponent),
		OwnImportant:   gs.ImportantCount(player),
		EnemyImportant: gs.ImportantCount(opponent),
		OwnCapital:     capital,
		Turn:           gs.Turn,
		gs:             gs,
		player:         player,
		opponent:       opponent,
	}
}

// Evaluate scores a Context from the controlled player's point of view,
// clamped to +-scoreClamp. Higher is better. A position where the
// measured opponent holds nothing at all pins to the clamp ceiling:
// without this, losing the attack targets would score worse than merely
// threatening them.
func Evaluate(ctx *Context) float64 {
	if ctx.opponent != 0 && ctx.EnemyTiles == 0 {
		return scoreClamp
	}
	score := weightBase*baseAdvantage(ctx) +
		weightAttack*attackPotential(ctx) -
		weightDefense*defenseNeed(ctx) +
		weightGrowth*growthPotential(ctx)

	if score > scoreClamp {
		return scoreClamp
	}
	if score < -scoreClamp {
		return -scoreClamp
	}
	return score
}

// largeArmyThreshold is the unit count above which a tile counts as a
// concentration worth extra credit.
func (ctx *Context) largeArmyThreshold() float64 {
	avg := 0.0
	if ctx.OwnTiles > 0 {
		avg = float64(ctx.OwnUnits) / float64(ctx.OwnTiles)
	}
	return math.Max(largeArmyAvgFactor*avg, largeArmyFloor)
}

// baseAdvantage compares raw territory, army, and important-tile counts,
// then credits large-army tiles and what their neighborhoods offer.
func baseAdvantage(ctx *Context) float64 {
	score := float64(ctx.OwnTiles-ctx.EnemyTiles)*territoryWeight +
		float64(ctx.OwnUnits-ctx.EnemyUnits)*armyWeight +
		float64(ctx.OwnImportant-ctx.EnemyImportant)*importantWeight

	threshold := ctx.largeArmyThreshold()
	for _, c := range ctx.gs.TilesOf(ctx.player) {
		t := ctx.gs.Map.At(c.X, c.Y)
		if float64(t.Units) <= threshold {
			continue
		}
		score += float64(t.Units) * largeArmyPerUnit
		if t.Important() {
			score += float64(t.Units) * largeArmyImportant
		}
		score += ctx.neighborOpportunities(c, t)
	}
	return score
}

// neighborOpportunities scans the four neighbors of a large-army tile for
// what the army could do from where it stands.
func (ctx *Context) neighborOpportunities(c conquest.Coord, t *conquest.Tile) float64 {
	score := 0.0
	for _, d := range orthogonal {
		nx, ny := c.X+d[0], c.Y+d[1]
		if !ctx.gs.Map.InBounds(nx, ny) {
			continue
		}
		n := ctx.gs.Map.At(nx, ny)
		switch {
		case n.Type == conquest.Mountain:
		case n.Owner == ctx.player:
			score += reinforceOpportunity
		case n.Owner == conquest.Neutral:
			score += expandOpportunity
		default:
			if t.Units-1 > n.Units {
				score += captureOpportunity
			}
		}
	}
	return score
}

// growthRate estimates units per turn a tile will accrue.
func growthRate(tt conquest.TileType) float64 {
	switch tt {
	case conquest.Capital, conquest.Stronghold:
		return growthImportantPerTurn
	case conquest.Blank:
		return growthBlankPerTurn
	}
	return 0
}

func projectUnits(units int, tt conquest.TileType, turns int) float64 {
	return float64(units) + growthRate(tt)*float64(turns)
}

// strongSources returns the player's heaviest tiles, at most
// strongSourceCount of them, each holding at least strongSourceMin units.
func (ctx *Context) strongSources() []conquest.Coord {
	var sources []conquest.Coord
	for _, c := range ctx.gs.TilesOf(ctx.player) {
		if ctx.gs.Map.At(c.X, c.Y).Units >= strongSourceMin {
			sources = append(sources, c)
		}
	}
	sort.SliceStable(sources, func(i, j int) bool {
		return ctx.gs.Map.At(sources[i].X, sources[i].Y).Units > ctx.gs.Map.At(sources[j].X, sources[j].Y).Units
	})
	if len(sources) > strongSourceCount {
		sources = sources[:strongSourceCount]
	}
	return sources
}

// attackPotential projects strikes from our strongest tiles onto the
// opponent's important tiles, growth-adjusted over the travel turns, and
// keeps the best prospect. Capital strikes earn the stacked bonuses and a
// final multiplier once any capital capture projects as feasible.
func attackPotential(ctx *Context) float64 {
	if ctx.opponent == 0 {
		return 0
	}
	sources := ctx.strongSources()
	if len(sources) == 0 {
		return 0
	}
	enemyCapital, hasCapital := ctx.gs.Map.CapitalOf(ctx.opponent)
	threshold := ctx.largeArmyThreshold()

	best := 0.0
	capitalFeasible := false
	for _, tc := range ctx.gs.TilesOf(ctx.opponent) {
		target := ctx.gs.Map.At(tc.X, tc.Y)
		if !target.Important() {
			continue
		}

		srcID := -1
		srcDist := 0
		for i, sc := range sources {
			d := conquest.ManhattanDistance(sc.X, sc.Y, tc.X, tc.Y)
			if srcID == -1 || d < srcDist {
				srcID, srcDist = i, d
			}
		}
		src := ctx.gs.Map.At(sources[srcID].X, sources[srcID].Y)

		attacker := projectUnits(src.Units, src.Type, srcDist)
		defense := projectUnits(target.Units, target.Type, srcDist)
		if attacker <= defense {
			continue
		}
		score := (attacker - defense) * surplusScale

		if hasCapital && tc == enemyCapital {
			score += capitalAttackBonus
			if srcDist <= capitalCloseTurns {
				score += capitalCloseBonus
			}
			if float64(src.Units) > threshold {
				score += largeSourceBonus
			}
			if float64(ctx.OwnUnits) > armyLeadFactor*float64(ctx.EnemyUnits) {
				score += armyLeadBonus
			}
			if ctx.Turn > desperationTurn && float64(ctx.OwnUnits) < desperationTrail*float64(ctx.EnemyUnits) {
				score += desperationBonus
			}
			capitalFeasible = true
		}
		if score > best {
			best = score
		}
	}
	if capitalFeasible {
		best *= capitalFeasibleMult
	}
	return best
}

// defenseNeed totals the urgency of threats against our important tiles.
// A threat is the nearest enemy tile within threatRange; relief from a
// nearby large army with superior force discounts it.
func defenseNeed(ctx *Context) float64 {
	if ctx.opponent == 0 {
		return 0
	}
	threshold := ctx.largeArmyThreshold()
	need := 0.0
	for _, c := range ctx.gs.TilesOf(ctx.player) {
		if !ctx.gs.Map.At(c.X, c.Y).Important() {
			continue
		}

		threatUnits, threatDist := ctx.nearestEnemy(c)
		if threatDist > threatRange {
			continue
		}
		bonus := defendStrongholdBonus
		if c == ctx.OwnCapital {
			bonus = defendCapitalBonus
		}
		item := bonus + float64(threatUnits)*threatPerUnit
		if ctx.reliefAvailable(c, threatUnits, threatDist, threshold) {
			item *= reliefDiscount
		}
		need += item
	}
	return need
}

// nearestEnemy returns the units and distance of the opponent tile
// closest to c, preferring the heavier tile on distance ties.
func (ctx *Context) nearestEnemy(c conquest.Coord) (units, dist int) {
	units, dist = 0, math.MaxInt32
	for _, ec := range ctx.gs.TilesOf(ctx.opponent) {
		d := conquest.ManhattanDistance(c.X, c.Y, ec.X, ec.Y)
		u := ctx.gs.Map.At(ec.X, ec.Y).Units
		if d < dist || (d == dist && u > units) {
			units, dist = u, d
		}
	}
	return units, dist
}

// reliefAvailable reports whether a large own army can reach the
// threatened tile no later than the threat with superior force.
func (ctx *Context) reliefAvailable(c conquest.Coord, threatUnits, threatDist int, threshold float64) bool {
	for _, rc := range ctx.gs.TilesOf(ctx.player) {
		if rc == c {
			continue
		}
		rt := ctx.gs.Map.At(rc.X, rc.Y)
		if float64(rt.Units) <= threshold || rt.Units <= threatUnits {
			continue
		}
		if d := conquest.ManhattanDistance(rc.X, rc.Y, c.X, c.Y); d <= reliefRange && d <= threatDist {
			return true
		}
	}
	return false
}

// growthPotential rewards being near unlockable strongholds and having a
// wide neutral frontier to expand into.
func growthPotential(ctx *Context) float64 {
	minStrongholdDist := -1
	for y := 0; y < ctx.gs.Map.Height; y++ {
		for x := 0; x < ctx.gs.Map.Width; x++ {
			t := ctx.gs.Map.At(x, y)
			if t.Type != conquest.Stronghold || t.Owner != conquest.Neutral {
				continue
			}
			for _, c := range ctx.gs.TilesOf(ctx.player) {
				d := conquest.ManhattanDistance(c.X, c.Y, x, y)
				if minStrongholdDist < 0 || d < minStrongholdDist {
					minStrongholdDist = d
				}
			}
		}
	}

	frontier := make(map[conquest.Coord]bool)
	for _, c := range ctx.gs.TilesOf(ctx.player) {
		for _, d := range orthogonal {
			nx, ny := c.X+d[0], c.Y+d[1]
			if !ctx.gs.Map.InBounds(nx, ny) {
				continue
			}
			n := ctx.gs.Map.At(nx, ny)
			if n.Owner == conquest.Neutral && n.Type == conquest.Blank {
				frontier[conquest.Coord{X: nx, Y: ny}] = true
			}
		}
	}

	score := float64(len(frontier)) * frontierPerTile
	if minStrongholdDist >= 0 {
		score += strongholdPullBonus / float64(minStrongholdDist+1)
	}
	return score
}
