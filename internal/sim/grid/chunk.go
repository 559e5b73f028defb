package grid

// ChunkSize is the side length of a chunk in cells. 64x64 cells keep a whole
// chunk within a few cache pages while leaving the checkerboard partition
// coarse enough to parallelize. Kept a power of two so addressing is a shift
// and a mask.
const (
	chunkShift = 6
	ChunkSize  = 1 << chunkShift
)

type ChunkCoord struct {
	X int
	Y int
}

// Rect is an inclusive cell bounding box in chunk-local coordinates.
// The zero value is not valid; use EmptyRect.
type Rect struct {
	MinX, MinY int
	MaxX, MaxY int
}

// EmptyRect is the "nothing marked" sentinel.
var EmptyRect = Rect{MinX: ChunkSize, MinY: ChunkSize, MaxX: -1, MaxY: -1}

func (r Rect) Empty() bool { return r.MinX > r.MaxX || r.MinY > r.MaxY }

// Add grows the rect to include (x, y).
func (r Rect) Add(x, y int) Rect {
	if x < r.MinX {
		r.MinX = x
	}
	if x > r.MaxX {
		r.MaxX = x
	}
	if y < r.MinY {
		r.MinY = y
	}
	if y > r.MaxY {
		r.MaxY = y
	}
	return r
}

// Union merges two rects.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return r.Add(o.MinX, o.MinY).Add(o.MaxX, o.MaxY)
}

// Clamp restricts the rect to chunk bounds.
func (r Rect) Clamp() Rect {
	if r.MinX < 0 {
		r.MinX = 0
	}
	if r.MinY < 0 {
		r.MinY = 0
	}
	if r.MaxX > ChunkSize-1 {
		r.MaxX = ChunkSize - 1
	}
	if r.MaxY > ChunkSize-1 {
		r.MaxY = ChunkSize - 1
	}
	return r
}

// Chunk is a fixed tile of cells plus the bookkeeping the scheduler and the
// render consumer need. A chunk is owned by its Grid; the engine only touches
// cell data through scheduler-issued views, and all metadata writes happen on
// the scheduler goroutine between passes.
type Chunk struct {
	Coord ChunkCoord
	Cells [ChunkSize * ChunkSize]Cell

	// dirty is the render-facing rect: cells changed since the last
	// TakeDirty. work is the sim-facing rect: cells to visit next step.
	dirty Rect
	work  Rect

	active bool
}

func newChunk(coord ChunkCoord) *Chunk {
	return &Chunk{Coord: coord, dirty: EmptyRect, work: EmptyRect}
}

func cellIndex(lx, ly int) int { return ly*ChunkSize + lx }

func (c *Chunk) At(lx, ly int) Cell { return c.Cells[cellIndex(lx, ly)] }

func (c *Chunk) CellPtr(lx, ly int) *Cell { return &c.Cells[cellIndex(lx, ly)] }

func (c *Chunk) Set(lx, ly int, cell Cell) {
	c.Cells[cellIndex(lx, ly)] = cell
	c.Mark(lx, ly)
}

// Mark records a cell change for both the render rect and the next sim pass,
// and flags the chunk active.
func (c *Chunk) Mark(lx, ly int) {
	c.dirty = c.dirty.Add(lx, ly)
	c.work = c.work.Add(lx, ly)
	c.active = true
}

// MarkWork widens only the sim work rect (keep-alive without a data change).
func (c *Chunk) MarkWork(lx, ly int) {
	c.work = c.work.Add(lx, ly)
	c.active = true
}

func (c *Chunk) Active() bool { return c.active }

// TakeWork returns the pending work rect and resets it. The scheduler calls
// this exactly once per step for each active chunk.
func (c *Chunk) TakeWork() Rect {
	r := c.work.Clamp()
	c.work = EmptyRect
	c.active = false
	return r
}

// DirtyRect returns the render rect without clearing it.
func (c *Chunk) DirtyRect() Rect { return c.dirty.Clamp() }

// TakeDirty returns the render rect and resets it. External consumers call
// this between steps to resynchronize.
func (c *Chunk) TakeDirty() Rect {
	r := c.dirty.Clamp()
	c.dirty = EmptyRect
	return r
}
