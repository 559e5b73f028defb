package engine

import "sandfall/internal/sim/grid"

// updateFire advances the per-cell combustion state machine:
// unburnt -> igniting (probability gate) -> burning (hp countdown) ->
// burned-out conversion. The countdown is deterministic: a burning cell with
// fire_hp N converts exactly N ticks after ignition; only entry into the
// burning state is probabilistic.
func (e *Engine) updateFire(a *cellAPI) {
	self := a.focus()
	if self == nil || self.Empty() {
		return
	}
	def := e.reg.Get(self.Material)
	fire := def.Fire
	if fire == nil {
		// A cell converted by movement or reaction can carry stale flags.
		if self.Flags&(grid.FlagBurning|grid.FlagIgniting) != 0 {
			self.Flags &^= grid.FlagBurning | grid.FlagIgniting
			a.touch()
		}
		return
	}

	if !self.Burning() && self.Flags&grid.FlagIgniting != 0 {
		if !fire.RequiresOxygen || a.hasOxygen() {
			if a.rnd.chance(fire.Probability) {
				self.Flags |= grid.FlagBurning
				self.FireHP = fire.FireHP
			}
		}
		if !fire.TryToIgnite {
			// Neighbor-induced attempts expire; self-igniting materials
			// keep trying.
			self.Flags &^= grid.FlagIgniting
		}
		a.touch()
		a.keepAlive(0, 0)
	}

	if !self.Burning() {
		return
	}
	a.keepAlive(0, 0)

	// Spread before burning down, so a cell that burns out this tick still
	// lights its neighborhood.
	for _, d := range eightDirs {
		n := a.cellAt(d[0], d[1])
		if n == nil || n.Empty() || n.Burning() {
			continue
		}
		if e.reg.Get(n.Material).Fire == nil {
			continue
		}
		if n.Flags&grid.FlagIgniting == 0 {
			n.Flags |= grid.FlagIgniting
			a.j.marks = append(a.j.marks, mark{a.fx + d[0], a.fy + d[1], markSet})
		}
	}

	if fire.RequiresOxygen && !a.hasOxygen() {
		self.Flags &^= grid.FlagBurning
		self.FireHP = 0
		a.touch()
		return
	}

	self.FireHP--
	if self.FireHP <= 0 {
		burned := grid.NewCell(def.BurnsInto, e.reg.Get(def.BurnsInto))
		burned.Clock = a.tickLow
		*self = burned
		a.j.marks = append(a.j.marks, mark{a.fx, a.fy, markMove})
		return
	}
	a.touch()
}

// Ignite forces an ignition attempt at a world cell from outside the
// simulation step (actor abilities, debugging). The probability gate still
// applies on the next tick.
func (e *Engine) Ignite(x, y int) bool {
	c := e.grid.Get(x, y)
	if c.Empty() {
		return false
	}
	if e.reg.Get(c.Material).Fire == nil {
		return false
	}
	if c.Flags&grid.FlagIgniting != 0 {
		return true
	}
	c.Flags |= grid.FlagIgniting
	return e.grid.Set(x, y, c)
}
