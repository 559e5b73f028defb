// Package engine advances the cell grid by discrete ticks. One step collects
// the chunks with pending work, partitions them into a 2x2 checkerboard of
// passes, and updates each pass's chunks on a worker pool. Two chunks in the
// same pass are at least two chunks apart on some axis, and a worker may only
// reach one cell beyond its own chunk, so concurrently updated cell sets can
// never overlap: race freedom is by construction, not by locking.
package engine

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"sandfall/internal/material"
	"sandfall/internal/sim/grid"
)

type Engine struct {
	grid *grid.Grid
	reg  *material.Registry
	log  *zap.Logger

	seed    int64
	workers int

	hitboxes map[string]Hitbox

	api []cellAPI // one per worker, reused across steps
}

// StepResult summarizes one completed tick.
type StepResult struct {
	Tick            uint64
	ChunksProcessed int
	CellsVisited    int
	Events          []Event
}

func New(g *grid.Grid, reg *material.Registry, workers int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		grid:     g,
		reg:      reg,
		log:      logger,
		seed:     g.Seed(),
		workers:  workers,
		hitboxes: make(map[string]Hitbox),
		api:      make([]cellAPI, workers),
	}
}

// passParities orders the four checkerboard passes. The order is fixed so a
// step is deterministic regardless of worker count.
var passParities = [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}

// Step advances the world by one tick. It is atomic from the caller's view:
// external reads must happen between calls.
func (e *Engine) Step() StepResult {
	tick := e.grid.AdvanceTick()
	tickLow := uint8(tick)

	active := e.grid.ActiveChunkCoords()

	// Activity propagates one chunk outward: make sure every neighbor of an
	// active chunk exists before workers need to reach into it. Chunk
	// creation is a structural operation and stays on this goroutine.
	for _, c := range active {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				e.grid.EnsureChunk(grid.ChunkCoord{X: c.X + dx, Y: c.Y + dy})
			}
		}
	}

	jobs := make([]job, 0, len(active))
	for _, c := range active {
		ch := e.grid.ChunkAt(c)
		rect := ch.TakeWork()
		if rect.Empty() {
			continue
		}
		jobs = append(jobs, job{coord: c, rect: rect})
	}

	res := StepResult{Tick: tick, ChunksProcessed: len(jobs)}

	for _, parity := range passParities {
		var pass []int
		for i := range jobs {
			if jobs[i].coord.X&1 == parity[0] && jobs[i].coord.Y&1 == parity[1] {
				pass = append(pass, i)
			}
		}
		if len(pass) == 0 {
			continue
		}

		e.runPass(jobs, pass, tick, tickLow)

		// Merge worker buffers in deterministic chunk order. All chunk
		// metadata writes happen here, between passes, on this goroutine.
		for _, i := range pass {
			j := &jobs[i]
			res.CellsVisited += j.visited
			for _, m := range j.marks {
				e.applyMark(m)
			}
			for _, ev := range j.events {
				ev.Tick = tick
				res.Events = append(res.Events, ev)
			}
			j.marks = nil
			j.events = nil
		}
	}

	res.Events = append(res.Events, e.contactScan(tick)...)
	return res
}

func (e *Engine) runPass(jobs []job, pass []int, tick uint64, tickLow uint8) {
	if len(pass) == 1 || e.workers == 1 {
		for _, i := range pass {
			e.runJob(&jobs[i], &e.api[0], tick, tickLow)
		}
		return
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func(api *cellAPI) {
			defer wg.Done()
			for i := range idx {
				e.runJob(&jobs[i], api, tick, tickLow)
			}
		}(&e.api[w])
	}
	for _, i := range pass {
		idx <- i
	}
	close(idx)
	wg.Wait()
}

// runJob updates one chunk's work rect. Rows scan bottom-up so supported
// stacks resolve before the cells above them; the x direction flips
// per-chunk-per-tick to avoid a systematic lean.
func (e *Engine) runJob(j *job, api *cellAPI, tick uint64, tickLow uint8) {
	api.eng = e
	api.j = j
	api.tickLow = tickLow
	api.group = buildGroup(e.grid, j.coord)

	center := api.group.chunks[1][1]
	ox := grid.ChunkOrigin(j.coord.X)
	oy := grid.ChunkOrigin(j.coord.Y)

	xs, xe, xd := j.rect.MinX, j.rect.MaxX+1, 1
	if chunkScanDir(e.seed, tick, j.coord.X, j.coord.Y) < 0 {
		xs, xe, xd = j.rect.MaxX, j.rect.MinX-1, -1
	}

	for ly := j.rect.MaxY; ly >= j.rect.MinY; ly-- {
		for lx := xs; lx != xe; lx += xd {
			cell := center.CellPtr(lx, ly)
			if cell.Empty() {
				continue
			}
			j.visited++

			if !e.reg.Valid(cell.Material) {
				// Unknown id is a programming error; clamp rather than
				// poison the step.
				e.log.Warn("unknown material id, cell reset",
					zap.Uint16("material", uint16(cell.Material)),
					zap.Int("x", ox+lx), zap.Int("y", oy+ly))
				*cell = grid.EmptyCell
				j.marks = append(j.marks, mark{ox + lx, oy + ly, markSet})
				continue
			}
			if cell.Normalize() {
				e.log.Warn("cell invariant clamped",
					zap.Uint16("material", uint16(cell.Material)),
					zap.Int("x", ox+lx), zap.Int("y", oy+ly))
				j.marks = append(j.marks, mark{ox + lx, oy + ly, markSet})
			}

			if cell.Clock == tickLow {
				// Already updated this tick (moved in from another chunk).
				j.marks = append(j.marks, mark{ox + lx, oy + ly, markKeep})
				continue
			}

			api.reset(ox+lx, oy+ly, tick)

			def := e.reg.Get(cell.Material)
			switch def.Kind {
			case material.KindPowder:
				e.updatePowder(api, def)
			case material.KindLiquid:
				e.updateLiquid(api, def)
			case material.KindGas:
				e.updateGas(api, def)
			}

			e.updateFire(api)
			e.updateReactions(api)
			api.stamp()
		}
	}
}

// applyMark folds one worker-recorded change into chunk metadata.
func (e *Engine) applyMark(m mark) {
	switch m.kind {
	case markKeep:
		e.markWork(m.x, m.y)
	case markSet:
		e.markCell(m.x, m.y)
	case markMove:
		e.markCell(m.x, m.y)
		for _, d := range eightDirs {
			e.markWork(m.x+d[0], m.y+d[1])
		}
	}
}

func (e *Engine) markCell(x, y int) {
	cx, lx := grid.Split(x)
	cy, ly := grid.Split(y)
	if ch := e.grid.ChunkAt(grid.ChunkCoord{X: cx, Y: cy}); ch != nil {
		ch.Mark(lx, ly)
	}
}

func (e *Engine) markWork(x, y int) {
	cx, lx := grid.Split(x)
	cy, ly := grid.Split(y)
	if ch := e.grid.ChunkAt(grid.ChunkCoord{X: cx, Y: cy}); ch != nil {
		ch.MarkWork(lx, ly)
	}
}
