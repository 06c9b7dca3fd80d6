package conquest

// Resolve applies player's move to gs in place and reports whether it was
// legal and executed. An illegal move returns false with gs untouched.
//
// This is the only implementation of the movement and combat rules. The
// Engine applies it to the canonical state; search bots apply it to private
// clones. Keeping a single resolution path means the canonical game and any
// speculative simulation can never disagree on an outcome.
func Resolve(gs *GameState, player int, m Move) bool {
	if gs.GameOver {
		return false
	}
	if !gs.ValidMove(player, m) {
		return false
	}

	src := gs.Map.At(m.FromX, m.FromY)
	dst := gs.Map.At(m.ToX, m.ToY)

	moveUnits := m.Type.unitsSent(src.Units)
	src.Units -= moveUnits
	if src.Units < 1 {
		src.Units = 1
	}

	switch {
	case dst.Owner == player:
		dst.Units += moveUnits
	case dst.Owner == Neutral:
		resolveNeutral(gs, player, dst, m.ToX, m.ToY, moveUnits)
	default:
		resolveCombat(gs, player, dst, m.ToX, m.ToY, moveUnits)
	}

	gs.checkVictory()
	return true
}

// resolveNeutral handles entry into unowned territory. Blank tiles change
// hands outright. A Stronghold with remaining CaptureCost absorbs attackers
// into the cost first; the tile is captured the moment the cost reaches
// zero, garrisoned by whatever units were not spent on the unlock. A
// partial unlock leaves the tile neutral and the spent attackers are gone.
func resolveNeutral(gs *GameState, player int, dst *Tile, x, y, moveUnits int) {
	if dst.Type == Stronghold && dst.CaptureCost > 0 {
		used := moveUnits
		if used > dst.CaptureCost {
			used = dst.CaptureCost
		}
		dst.CaptureCost -= used
		if dst.CaptureCost == 0 {
			gs.setOwner(x, y, player)
			dst.Units = moveUnits - used
		}
		return
	}
	gs.setOwner(x, y, player)
	dst.Units = moveUnits
}

// resolveCombat handles an attack on an enemy tile. The attack succeeds iff
// the units sent strictly exceed the defenders; the survivors garrison the
// tile. A failed attack grinds down the defenders and changes nothing else.
// Capturing the tile at the defender's registered capital coordinates
// triggers the capital cascade.
func resolveCombat(gs *GameState, player int, dst *Tile, x, y, moveUnits int) {
	result := moveUnits - dst.Units
	if result < 1 {
		dst.Units -= moveUnits
		if dst.Units < 0 {
			dst.Units = 0
		}
		return
	}

	defender := dst.Owner
	gs.setOwner(x, y, player)
	dst.Units = result

	if gs.isCapitalOf(defender, x, y) {
		gs.cascadeCapture(player, defender, x, y)
	}
}

// cascadeCapture finishes off a player whose capital fell. Every tile the
// defeated player still holds transfers to the conqueror at ceil(units/2).
// The captured tile becomes a Stronghold, the conqueror's previous capital
// tile becomes a Stronghold, and the conqueror's registry entry relocates
// to the captured coordinates. The defeated player's registry entry stays
// as the tombstone the elimination check reads.
func (gs *GameState) cascadeCapture(conqueror, defeated, x, y int) {
	remaining := make([]Coord, len(gs.playerTiles[defeated]))
	copy(remaining, gs.playerTiles[defeated])
	for _, c := range remaining {
		t := gs.Map.At(c.X, c.Y)
		gs.setOwner(c.X, c.Y, conqueror)
		t.Units = (t.Units + 1) / 2
	}

	if prev, ok := gs.Map.CapitalOf(conqueror); ok {
		if pt := gs.Map.At(prev.X, prev.Y); pt.Type == Capital {
			pt.Type = Stronghold
		}
	}
	captured := gs.Map.At(x, y)
	if captured.Type == Capital {
		captured.Type = Stronghold
	}
	gs.Map.relocateCapital(conqueror, x, y)
}

// checkVictory ends the game once exactly one player still owns the tile
// at their registered capital coordinates.
func (gs *GameState) checkVictory() {
	if gs.GameOver {
		return
	}
	alive := 0
	winner := 0
	for p := 1; p <= gs.PlayerCount; p++ {
		if gs.Alive(p) {
			alive++
			winner = p
		}
	}
	if alive == 1 {
		gs.GameOver = true
		gs.Winner = winner
	}
}
