package engine

import (
	"sandfall/internal/material"
	"sandfall/internal/sim/grid"
)

// gasPassable reports whether gas of the given density can move into the
// offset: empty space, or a strictly denser gas it can slip through.
func (a *cellAPI) gasPassable(dx, dy int, def *material.Def) bool {
	p := a.cellAt(dx, dy)
	if p == nil {
		return false
	}
	if p.Empty() {
		return true
	}
	other := a.eng.reg.Get(p.Material)
	return other.Kind == material.KindGas && other.Density > def.Density
}

func (e *Engine) updateGas(a *cellAPI, def *material.Def) {
	self := a.focus()

	if self.Dissipate == 0 {
		*self = grid.EmptyCell
		a.touch()
		return
	}
	if self.Dissipate > 0 {
		// One tick of budget per simulated tick: dissipate N is an exact
		// lifetime, and fill fades linearly with it.
		self.Dissipate--
		if def.Dissipate > 0 {
			self.Fill = float32(self.Dissipate) / float32(def.Dissipate)
		}
		a.touch()
		a.keepAlive(0, 0)
	}

	if self.Dir == 0 {
		self.Dir = a.rnd.dir()
		a.touch()
	}

	// Stay scheduled while there is anywhere to go.
	for _, d := range fourDirs {
		if a.gasPassable(d[0], d[1], def) {
			a.keepAlive(0, 0)
			break
		}
	}

	d := int(self.Dir)
	switch {
	case a.gasPassable(d, 0, def) && a.gasPassable(d, -1, def):
		a.swap(d, 0)
	case a.gasPassable(-d, 0, def) && a.gasPassable(-d, -1, def):
		a.swap(-d, 0)
		p := a.focus()
		p.Dir = -p.Dir
	}

	if a.gasPassable(0, -1, def) {
		a.swap(0, -1)
		return
	}

	// Lateral drift along a ceiling.
	d = int(a.focus().Dir)
	for i := 0; i < 3; i++ {
		if !a.gasPassable(d, 0, def) {
			break
		}
		a.swap(d, 0)
	}
}
