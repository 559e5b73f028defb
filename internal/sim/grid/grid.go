package grid

import (
	"sort"

	"go.uber.org/zap"

	"sandfall/internal/material"
)

// Grid owns the sparse chunk collection and is the sole authority for cell
// reads and writes outside a simulation step. World coordinates extend in all
// directions from the origin; chunk (0,0) covers cells [0,ChunkSize).
type Grid struct {
	chunks map[ChunkCoord]*Chunk

	seed int64
	tick uint64

	// boundsR limits the world to chunks with |X|,|Y| <= boundsR; in world
	// cells that is the asymmetric floor-division range
	// [-boundsR*ChunkSize, (boundsR+1)*ChunkSize-1]. 0 means unbounded.
	boundsR int

	log *zap.Logger
}

func New(seed int64, boundsR int, logger *zap.Logger) *Grid {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Grid{
		chunks:  make(map[ChunkCoord]*Chunk),
		seed:    seed,
		boundsR: boundsR,
		log:     logger,
	}
}

func (g *Grid) Seed() int64 { return g.seed }

func (g *Grid) Tick() uint64 { return g.tick }

// AdvanceTick bumps the global step counter and returns the new value.
// Only the scheduler calls this.
func (g *Grid) AdvanceTick() uint64 {
	g.tick++
	return g.tick
}

// SetTick restores the counter when resuming from a snapshot.
func (g *Grid) SetTick(t uint64) { g.tick = t }

func (g *Grid) BoundsR() int { return g.boundsR }

// Split translates a world coordinate into its chunk coordinate and local
// offset. Floor division, so negative coordinates map correctly: world -1 is
// local ChunkSize-1 of chunk -1, not local -1 of chunk 0.
func Split(w int) (chunk, local int) {
	chunk = w >> chunkShift
	local = w & (ChunkSize - 1)
	return chunk, local
}

// ChunkOrigin returns the world coordinate of a chunk's (0,0) cell.
func ChunkOrigin(c int) int { return c * ChunkSize }

func (g *Grid) inBounds(c ChunkCoord) bool {
	if g.boundsR <= 0 {
		return true
	}
	return c.X >= -g.boundsR && c.X <= g.boundsR && c.Y >= -g.boundsR && c.Y <= g.boundsR
}

// ChunkAt returns the chunk at the given chunk coordinate, or nil.
func (g *Grid) ChunkAt(c ChunkCoord) *Chunk { return g.chunks[c] }

// EnsureChunk returns the chunk, creating it lazily. Returns nil outside the
// world bounds.
func (g *Grid) EnsureChunk(c ChunkCoord) *Chunk {
	if ch, ok := g.chunks[c]; ok {
		return ch
	}
	if !g.inBounds(c) {
		return nil
	}
	ch := newChunk(c)
	g.chunks[c] = ch
	return ch
}

// ChunkCount returns the number of loaded chunks.
func (g *Grid) ChunkCount() int { return len(g.chunks) }

// ChunkCoords returns all loaded chunk coordinates in deterministic order.
func (g *Grid) ChunkCoords() []ChunkCoord {
	coords := make([]ChunkCoord, 0, len(g.chunks))
	for c := range g.chunks {
		coords = append(coords, c)
	}
	sortCoords(coords)
	return coords
}

// ActiveChunkCoords returns the coordinates of chunks with pending work, in
// deterministic order.
func (g *Grid) ActiveChunkCoords() []ChunkCoord {
	coords := make([]ChunkCoord, 0, len(g.chunks))
	for c, ch := range g.chunks {
		if ch.active {
			coords = append(coords, c)
		}
	}
	sortCoords(coords)
	return coords
}

func sortCoords(coords []ChunkCoord) {
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Y != coords[j].Y {
			return coords[i].Y < coords[j].Y
		}
		return coords[i].X < coords[j].X
	})
}

// Get returns a snapshot of the cell at world (x, y), or the Empty sentinel
// when the location is outside any loaded chunk. Sparse unloaded regions are
// expected, so this never fails.
func (g *Grid) Get(x, y int) Cell {
	cx, lx := Split(x)
	cy, ly := Split(y)
	ch := g.chunks[ChunkCoord{cx, cy}]
	if ch == nil {
		return EmptyCell
	}
	return ch.At(lx, ly)
}

// Set writes a cell at world (x, y), creating the chunk if needed, and marks
// the owning chunk dirty and active. Returns false outside world bounds.
func (g *Grid) Set(x, y int, cell Cell) bool {
	cx, lx := Split(x)
	cy, ly := Split(y)
	ch := g.EnsureChunk(ChunkCoord{cx, cy})
	if ch == nil {
		return false
	}
	if cell.Normalize() {
		g.log.Warn("cell invariant clamped on set",
			zap.Int("x", x), zap.Int("y", y),
			zap.Uint16("material", uint16(cell.Material)))
	}
	ch.Set(lx, ly, cell)
	return true
}

// SetMaterial places a fresh cell of the given material definition.
func (g *Grid) SetMaterial(x, y int, id material.ID, def *material.Def) bool {
	return g.Set(x, y, NewCell(id, def))
}

// Swap atomically exchanges the cells at two world coordinates. This is the
// movement primitive: no cell state is ever read twice and written once.
// Both locations must be loaded (or loadable); otherwise nothing happens.
func (g *Grid) Swap(ax, ay, bx, by int) bool {
	acx, alx := Split(ax)
	acy, aly := Split(ay)
	bcx, blx := Split(bx)
	bcy, bly := Split(by)
	ac := g.EnsureChunk(ChunkCoord{acx, acy})
	bc := g.EnsureChunk(ChunkCoord{bcx, bcy})
	if ac == nil || bc == nil {
		return false
	}
	pa := ac.CellPtr(alx, aly)
	pb := bc.CellPtr(blx, bly)
	*pa, *pb = *pb, *pa
	ac.Mark(alx, aly)
	bc.Mark(blx, bly)
	return true
}

// ReadRegion copies the cells of the inclusive world rect [x0,x1]x[y0,y1]
// into out in row-major order. Unloaded cells read as Empty. The returned
// slice aliases out when it has sufficient capacity.
func (g *Grid) ReadRegion(x0, y0, x1, y1 int, out []Cell) []Cell {
	w := x1 - x0 + 1
	h := y1 - y0 + 1
	if w <= 0 || h <= 0 {
		return out[:0]
	}
	if cap(out) < w*h {
		out = make([]Cell, w*h)
	}
	out = out[:w*h]
	i := 0
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			out[i] = g.Get(x, y)
			i++
		}
	}
	return out
}

// WakeRegion re-activates every loaded chunk overlapping the world rect, so
// an externally disturbed settled region simulates again.
func (g *Grid) WakeRegion(x0, y0, x1, y1 int) {
	cx0, _ := Split(x0)
	cy0, _ := Split(y0)
	cx1, _ := Split(x1)
	cy1, _ := Split(y1)
	for cy := cy0; cy <= cy1; cy++ {
		for cx := cx0; cx <= cx1; cx++ {
			ch := g.chunks[ChunkCoord{cx, cy}]
			if ch == nil {
				continue
			}
			ox := ChunkOrigin(cx)
			oy := ChunkOrigin(cy)
			r := Rect{
				MinX: max(x0-ox, 0), MinY: max(y0-oy, 0),
				MaxX: min(x1-ox, ChunkSize-1), MaxY: min(y1-oy, ChunkSize-1),
			}
			if r.Empty() {
				continue
			}
			ch.work = ch.work.Union(r)
			ch.active = true
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
