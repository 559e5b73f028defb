package engine

import "sandfall/internal/sim/grid"

// updateReactions checks the focus cell against its eight neighbors for a
// qualifying reaction pair and, on a successful roll, converts both cells to
// the reaction outputs in the same tick.
func (e *Engine) updateReactions(a *cellAPI) {
	self := a.focus()
	if self == nil || self.Empty() {
		return
	}
	def := e.reg.Get(self.Material)
	if len(def.Reactions) == 0 {
		return
	}

	for _, d := range eightDirs {
		n := a.cellAt(d[0], d[1])
		if n == nil || n.Empty() || n.Material == self.Material {
			continue
		}
		r := def.ReactionWith(n.Material)
		if r == nil {
			continue
		}
		if !a.rnd.chance(r.Probability) {
			// A potential pair stays scheduled so the roll repeats.
			a.keepAlive(0, 0)
			continue
		}

		selfID, otherID := self.Material, n.Material

		outSelf := grid.NewCell(r.OutSelf, e.reg.Get(r.OutSelf))
		outSelf.Clock = a.tickLow
		*self = outSelf
		a.j.marks = append(a.j.marks, mark{a.fx, a.fy, markMove})

		outOther := grid.NewCell(r.OutOther, e.reg.Get(r.OutOther))
		outOther.Clock = a.tickLow
		*n = outOther
		a.j.marks = append(a.j.marks, mark{a.fx + d[0], a.fy + d[1], markMove})

		a.emit(Event{
			Kind:     EventReaction,
			X:        a.fx,
			Y:        a.fy,
			Material: selfID,
			Other:    otherID,
		})
		return
	}
}
