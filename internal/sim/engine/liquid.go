package engine

import (
	"sandfall/internal/material"
	"sandfall/internal/sim/grid"
)

// settleEps is the fill differential below which horizontal flow stops and
// the cell is allowed to settle.
const settleEps = 1.0 / 256

const liquidInertia = 3

// updateLiquid moves liquid by whole-cell falls and fractional fill
// transfers. Every transfer moves fill between exactly two cells, so total
// fill is conserved by construction; the only sink is dry-up of isolated
// sub-threshold remnants.
func (e *Engine) updateLiquid(a *cellAPI, def *material.Def) {
	self := a.focus()
	if self.Dir == 0 {
		self.Dir = a.rnd.dir()
		self.Inertia = liquidInertia
	}

	moved := false

	// Vertical resolution first.
	if below := a.cellAt(0, 1); below != nil {
		bdef := e.reg.Get(below.Material)
		switch {
		case below.Empty() || bdef.Kind == material.KindGas:
			a.swap(0, 1)
			if a.rnd.onceIn(20) {
				p := a.focus()
				p.Dir = a.rnd.dir()
				p.Inertia = liquidInertia
			}
			return

		case below.Material == self.Material:
			// Top off the column below. Columns compress: a fed-from-above
			// cell holds up to 1 + max_compression.
			capacity := 1 + def.MaxCompression
			if below.Fill < capacity-settleEps {
				move := self.Fill
				if space := capacity - below.Fill; move > space {
					move = space
				}
				below.Fill += move
				self.Fill -= move
				a.j.marks = append(a.j.marks, mark{a.fx, a.fy + 1, markSet})
				moved = true
				if self.Fill <= 0 {
					*self = grid.EmptyCell
					a.touch()
					return
				}
			}

		case bdef.Kind == material.KindLiquid && bdef.Density < def.Density:
			// Denser sinks below lighter.
			a.swap(0, 1)
			return
		}
	}

	// Horizontal distribution, biased direction first.
	for i := 0; i < 2; i++ {
		d := int(self.Dir)
		if i == 1 {
			d = -d
		}
		if e.spreadLiquid(a, def, self, d) {
			moved = true
		}
	}

	// Over-compressed cells push excess back up.
	if self.Fill > 1+settleEps {
		if above := a.cellAt(0, -1); above != nil {
			excess := self.Fill - 1
			switch {
			case above.Empty():
				if excess > 1 {
					excess = 1
				}
				up := grid.NewCell(self.Material, def)
				up.Fill = excess
				up.Dir = self.Dir
				up.Clock = a.tickLow
				*above = up
				self.Fill -= excess
				a.j.marks = append(a.j.marks, mark{a.fx, a.fy - 1, markMove})
				moved = true
			case above.Material == self.Material && above.Fill < self.Fill-settleEps:
				move := excess
				if space := self.Fill - above.Fill; move > space/2 {
					move = space / 2
				}
				above.Fill += move
				self.Fill -= move
				a.j.marks = append(a.j.marks, mark{a.fx, a.fy - 1, markSet})
				moved = true
			}
		}
	}

	if moved {
		a.touch()
		a.keepAlive(0, 0)
		return
	}

	// Nothing to push anywhere. Isolated sub-threshold remnants dry up;
	// everything else settles (no keep-alive, chunk may go inactive).
	if self.Fill < def.DryThreshold && !a.hasLiquidNeighbor(self.Material) {
		*self = grid.EmptyCell
		a.touch()
	}
}

// spreadLiquid equalizes fill toward one horizontal neighbor. Reports whether
// any fill moved.
func (e *Engine) spreadLiquid(a *cellAPI, def *material.Def, self *grid.Cell, d int) bool {
	n := a.cellAt(d, 0)
	if n == nil {
		// Blocked by the edge of the safe reach: lose certainty in the
		// current direction.
		a.bumpDirection(self)
		return false
	}

	flowFrac := float32(def.FlowRate) / 8
	if flowFrac > 1 {
		flowFrac = 1
	}

	switch {
	case n.Empty():
		move := self.Fill / 2 * flowFrac
		if move <= settleEps {
			return false
		}
		c := grid.NewCell(self.Material, def)
		c.Fill = move
		c.Dir = int8(d)
		c.Inertia = liquidInertia
		c.Clock = a.tickLow
		*n = c
		self.Fill -= move
		a.j.marks = append(a.j.marks, mark{a.fx + d, a.fy, markMove})
		return true

	case n.Material == self.Material && n.Fill < self.Fill-settleEps && n.Fill < 1:
		move := (self.Fill - n.Fill) / 2 * flowFrac
		if space := 1 - n.Fill; move > space {
			move = space
		}
		if move <= settleEps {
			return false
		}
		n.Fill += move
		self.Fill -= move
		a.j.marks = append(a.j.marks, mark{a.fx + d, a.fy, markSet})
		return true

	default:
		a.bumpDirection(self)
		return false
	}
}

// bumpDirection decays flow inertia and flips the bias once it runs out.
func (a *cellAPI) bumpDirection(self *grid.Cell) {
	if self.Inertia > 0 {
		self.Inertia--
		return
	}
	self.Dir = -self.Dir
	self.Inertia = liquidInertia
}

// hasLiquidNeighbor reports whether any 4-neighbor holds the same liquid.
func (a *cellAPI) hasLiquidNeighbor(id material.ID) bool {
	for _, d := range fourDirs {
		p := a.cellAt(d[0], d[1])
		if p != nil && p.Material == id {
			return true
		}
	}
	return false
}
