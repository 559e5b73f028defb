package engine

import (
	"sandfall/internal/material"
	"sandfall/internal/sim/grid"
)

// chunkGroup is the 3x3 chunk window a worker updates through. The center
// chunk is owned exclusively by the worker for the duration of a pass;
// neighbor chunks are reachable only within the one-cell border strip, which
// the checkerboard partition guarantees no other worker touches.
type chunkGroup struct {
	chunks [3][3]*grid.Chunk

	cx, cy int // center chunk coordinate
	ox, oy int // world origin of the center chunk
}

func buildGroup(g *grid.Grid, coord grid.ChunkCoord) chunkGroup {
	gr := chunkGroup{
		cx: coord.X, cy: coord.Y,
		ox: grid.ChunkOrigin(coord.X), oy: grid.ChunkOrigin(coord.Y),
	}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			gr.chunks[dy+1][dx+1] = g.ChunkAt(grid.ChunkCoord{X: coord.X + dx, Y: coord.Y + dy})
		}
	}
	return gr
}

// cellPtr resolves a world coordinate to a cell pointer, or nil when the
// location is outside the group's safe reach (more than one cell beyond the
// center chunk) or the chunk is not loaded. Rules treat nil as blocked, which
// defers the move to a later tick.
func (gr *chunkGroup) cellPtr(wx, wy int) *grid.Cell {
	if wx < gr.ox-1 || wx > gr.ox+grid.ChunkSize || wy < gr.oy-1 || wy > gr.oy+grid.ChunkSize {
		return nil
	}
	ccx, lx := grid.Split(wx)
	ccy, ly := grid.Split(wy)
	ch := gr.chunks[ccy-gr.cy+1][ccx-gr.cx+1]
	if ch == nil {
		return nil
	}
	return ch.CellPtr(lx, ly)
}

type markKind uint8

const (
	// markMove: cell data changed by movement; wakes the 3x3 cell
	// neighborhood for the next tick.
	markMove markKind = iota
	// markSet: cell data changed in place.
	markSet
	// markKeep: no data change, just keep the cell scheduled.
	markKeep
)

type mark struct {
	x, y int
	kind markKind
}

// job is one chunk's worth of work in a pass, plus the worker-local buffers
// that get merged on the scheduler goroutine after the pass barrier. Workers
// never touch chunk metadata directly.
type job struct {
	coord grid.ChunkCoord
	rect  grid.Rect

	marks   []mark
	events  []Event
	visited int
}

// cellAPI is the view a material rule updates one cell through. The focus
// position follows the cell when it moves, exactly like the original cell's
// update cursor, so a powder grain that falls keeps acting from its new spot.
type cellAPI struct {
	eng   *Engine
	group chunkGroup
	j     *job

	fx, fy  int
	rnd     cellRand
	tickLow uint8
}

func (a *cellAPI) reset(wx, wy int, tick uint64) {
	a.fx, a.fy = wx, wy
	a.rnd.state = cellSeed(a.eng.seed, tick, wx, wy)
}

func (a *cellAPI) focus() *grid.Cell { return a.group.cellPtr(a.fx, a.fy) }

func (a *cellAPI) cellAt(dx, dy int) *grid.Cell { return a.group.cellPtr(a.fx+dx, a.fy+dy) }

// get returns a snapshot of the cell at the offset; ok is false when the
// location is out of safe reach.
func (a *cellAPI) get(dx, dy int) (grid.Cell, bool) {
	p := a.cellAt(dx, dy)
	if p == nil {
		return grid.EmptyCell, false
	}
	return *p, true
}

func (a *cellAPI) kind(dx, dy int) (material.PhysicsKind, *material.Def, bool) {
	p := a.cellAt(dx, dy)
	if p == nil {
		return material.KindStatic, nil, false
	}
	def := a.eng.reg.Get(p.Material)
	return def.Kind, def, true
}

// swap exchanges the focus cell with a neighbor and moves the focus. Both
// positions wake their neighborhood next tick.
func (a *cellAPI) swap(dx, dy int) bool {
	q := a.cellAt(dx, dy)
	if q == nil {
		return false
	}
	p := a.focus()
	*p, *q = *q, *p
	a.j.marks = append(a.j.marks,
		mark{a.fx, a.fy, markMove},
		mark{a.fx + dx, a.fy + dy, markMove})
	a.fx += dx
	a.fy += dy
	return true
}

// set overwrites the cell at the offset.
func (a *cellAPI) set(dx, dy int, c grid.Cell) bool {
	q := a.cellAt(dx, dy)
	if q == nil {
		return false
	}
	*q = c
	a.j.marks = append(a.j.marks, mark{a.fx + dx, a.fy + dy, markSet})
	return true
}

// touch records that the focus cell was mutated in place.
func (a *cellAPI) touch() {
	a.j.marks = append(a.j.marks, mark{a.fx, a.fy, markSet})
}

// keepAlive schedules the cell at the offset for the next tick without
// marking a data change.
func (a *cellAPI) keepAlive(dx, dy int) {
	a.j.marks = append(a.j.marks, mark{a.fx + dx, a.fy + dy, markKeep})
}

// stamp writes the anti-double-update clock onto the focus cell.
func (a *cellAPI) stamp() {
	if p := a.focus(); p != nil {
		p.Clock = a.tickLow
	}
}

func (a *cellAPI) emit(ev Event) {
	a.j.events = append(a.j.events, ev)
}

// hasOxygen reports whether any of the eight neighbors is empty or gaseous.
func (a *cellAPI) hasOxygen() bool {
	for _, d := range eightDirs {
		p := a.cellAt(d[0], d[1])
		if p == nil {
			continue
		}
		if p.Empty() {
			return true
		}
		if a.eng.reg.Get(p.Material).Kind == material.KindGas {
			return true
		}
	}
	return false
}

var fourDirs = [4][2]int{{-1, 0}, {0, -1}, {1, 0}, {0, 1}}

var eightDirs = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}
