package neural

import "gridlords/pkg/conquest"

// EncodeBoard flattens a game state into a [NumTiles*NumFeatures] float32
// array (row-major) from the acting player's point of view. Coordinates
// beyond the real map are encoded as mountains so padding reads as
// impassable rather than empty ground.
func EncodeBoard(gs *conquest.GameState, player int) []float32 {
	data := make([]float32, NumTiles*NumFeatures)

	ownCapital, hasOwn := gs.Map.CapitalOf(player)
	for y := 0; y < BoardSide; y++ {
		for x := 0; x < BoardSide; x++ {
			base := TileIndex(x, y) * NumFeatures
			if !gs.Map.InBounds(x, y) {
				data[base+FeatType+int(conquest.Mountain)] = 1
				data[base+FeatOwner+2] = 1
				continue
			}
			t := gs.Map.At(x, y)
			data[base+FeatType+int(t.Type)] = 1

			switch {
			case t.Owner == player:
				data[base+FeatOwner] = 1
			case t.Owner != conquest.Neutral:
				data[base+FeatOwner+1] = 1
			default:
				data[base+FeatOwner+2] = 1
			}

			data[base+FeatUnits] = capped(float32(t.Units) / unitScale)
			if t.Type == conquest.Stronghold && t.Owner == conquest.Neutral {
				data[base+FeatCost] = capped(float32(t.CaptureCost) / costScale)
			}

			if hasOwn && ownCapital.X == x && ownCapital.Y == y {
				data[base+FeatOwnCapital] = 1
			}
		}
	}

	// Enemy registered capitals, every live opponent's.
	for p := 1; p <= gs.PlayerCount; p++ {
		if p == player || !gs.Alive(p) {
			continue
		}
		c, ok := gs.Map.CapitalOf(p)
		if !ok || !gs.Map.InBounds(c.X, c.Y) || c.X >= BoardSide || c.Y >= BoardSide {
			continue
		}
		data[TileIndex(c.X, c.Y)*NumFeatures+FeatEnemyCapital] = 1
	}

	return data
}

func capped(v float32) float32 {
	if v > 1 {
		return 1
	}
	return v
}
