package engine

import "sandfall/internal/material"

// powderPassable reports whether a powder grain can fall into the offset:
// empty space or any gas.
func (a *cellAPI) powderPassable(dx, dy int) bool {
	k, _, ok := a.kind(dx, dy)
	if !ok {
		return false
	}
	return k == material.KindEmpty || k == material.KindGas
}

func (e *Engine) updatePowder(a *cellAPI, def *material.Def) {
	dx := int(a.rnd.dir())

	if a.powderPassable(0, 1) {
		a.swap(0, 1)
		// Occasional lateral jitter while falling breaks up perfect columns.
		if a.rnd.onceIn(5) && a.powderPassable(dx, 0) {
			a.swap(dx, 0)
		}
		return
	}

	if a.powderPassable(dx, 0) && a.powderPassable(dx, 1) {
		a.swap(dx, 1)
		return
	}
	if a.powderPassable(-dx, 0) && a.powderPassable(-dx, 1) {
		a.swap(-dx, 1)
		return
	}

	// Sink through a strictly lighter liquid below.
	if k, bdef, ok := a.kind(0, 1); ok && k == material.KindLiquid && bdef.Density < def.Density {
		a.swap(0, 1)
		if a.rnd.onceIn(15) {
			if k, _, ok := a.kind(dx, 0); ok && k == material.KindLiquid {
				a.swap(dx, 0)
			}
		}
	}
}
