package grid

import (
	"testing"

	"sandfall/internal/material"
)

func TestSplitNegativeCoordinates(t *testing.T) {
	cases := []struct {
		w      int
		chunk  int
		local  int
	}{
		{0, 0, 0},
		{63, 0, 63},
		{64, 1, 0},
		{-1, -1, 63},
		{-64, -1, 0},
		{-65, -2, 63},
		{130, 2, 2},
	}
	for _, tc := range cases {
		c, l := Split(tc.w)
		if c != tc.chunk || l != tc.local {
			t.Errorf("Split(%d) = (%d, %d), want (%d, %d)", tc.w, c, l, tc.chunk, tc.local)
		}
	}
}

func TestSetGetAcrossChunks(t *testing.T) {
	g := New(1, 0, nil)
	def := &material.Def{Name: "x", Kind: material.KindStatic}

	coords := [][2]int{{0, 0}, {-1, -1}, {63, 63}, {64, 64}, {-65, 100}}
	for _, p := range coords {
		if !g.SetMaterial(p[0], p[1], material.ID(1), def) {
			t.Fatalf("set at (%d,%d) failed", p[0], p[1])
		}
	}
	for _, p := range coords {
		if c := g.Get(p[0], p[1]); c.Material != material.ID(1) {
			t.Errorf("get at (%d,%d): material %d", p[0], p[1], c.Material)
		}
	}
	// Unloaded regions read as the empty sentinel.
	if c := g.Get(10_000, 10_000); !c.Empty() {
		t.Fatalf("unloaded cell should read empty, got %+v", c)
	}
}

func TestBoundsRejectOutside(t *testing.T) {
	g := New(1, 1, nil)
	def := &material.Def{Name: "x", Kind: material.KindStatic}

	// bounds_r counts chunks: r=1 admits chunks -1..1, so the covered world
	// cells are the asymmetric floor-division range [-64, 127].
	if !g.SetMaterial(-64, 127, 1, def) {
		t.Fatalf("cell inside |cx|,|cy| <= 1 should be settable")
	}
	if g.SetMaterial(-65, 0, 1, def) {
		t.Fatalf("cell in chunk cx=-2 should be rejected at bounds_r=1")
	}
	if g.SetMaterial(128, 0, 1, def) {
		t.Fatalf("cell in chunk cx=2 should be rejected at bounds_r=1")
	}
	if g.EnsureChunk(ChunkCoord{X: 0, Y: 2}) != nil {
		t.Fatalf("chunk outside bounds must not be created")
	}
}

func TestSwapMarksBothChunks(t *testing.T) {
	g := New(1, 0, nil)
	def := &material.Def{Name: "x", Kind: material.KindStatic}
	g.SetMaterial(63, 0, 1, def)

	// Drain the marks from placement.
	for _, c := range g.ChunkCoords() {
		g.ChunkAt(c).TakeDirty()
		g.ChunkAt(c).TakeWork()
	}

	if !g.Swap(63, 0, 64, 0) {
		t.Fatalf("swap failed")
	}
	if c := g.Get(64, 0); c.Material != 1 {
		t.Fatalf("cell did not move: %+v", c)
	}
	if c := g.Get(63, 0); !c.Empty() {
		t.Fatalf("source cell should be empty: %+v", c)
	}
	left := g.ChunkAt(ChunkCoord{X: 0, Y: 0})
	right := g.ChunkAt(ChunkCoord{X: 1, Y: 0})
	if left.DirtyRect().Empty() || right.DirtyRect().Empty() {
		t.Fatalf("both chunks should be dirty after a cross-chunk swap")
	}
	if !left.Active() || !right.Active() {
		t.Fatalf("both chunks should be active after a cross-chunk swap")
	}
}

func TestTakeWorkResets(t *testing.T) {
	g := New(1, 0, nil)
	def := &material.Def{Name: "x", Kind: material.KindStatic}
	g.SetMaterial(5, 7, 1, def)
	g.SetMaterial(20, 30, 1, def)

	ch := g.ChunkAt(ChunkCoord{X: 0, Y: 0})
	r := ch.TakeWork()
	if r.MinX != 5 || r.MinY != 7 || r.MaxX != 20 || r.MaxY != 30 {
		t.Fatalf("work rect %+v", r)
	}
	if ch.Active() {
		t.Fatalf("chunk should be inactive after TakeWork")
	}
	if !ch.TakeWork().Empty() {
		t.Fatalf("second TakeWork should be empty")
	}
	// Render rect is independent and survives TakeWork.
	if ch.DirtyRect().Empty() {
		t.Fatalf("dirty rect should still hold the placements")
	}
	if ch.TakeDirty().Empty() || !ch.TakeDirty().Empty() {
		t.Fatalf("TakeDirty should drain exactly once")
	}
}

func TestReadRegion(t *testing.T) {
	g := New(1, 0, nil)
	def := &material.Def{Name: "x", Kind: material.KindStatic}
	g.SetMaterial(-1, -1, 1, def)
	g.SetMaterial(0, 0, 1, def)

	cells := g.ReadRegion(-2, -2, 1, 1, nil)
	if len(cells) != 16 {
		t.Fatalf("region size %d", len(cells))
	}
	// Row-major: (-1,-1) is row 1, col 1; (0,0) is row 2, col 2.
	if cells[1*4+1].Material != 1 || cells[2*4+2].Material != 1 {
		t.Fatalf("region content wrong: %+v", cells)
	}
	occupied := 0
	for _, c := range cells {
		if !c.Empty() {
			occupied++
		}
	}
	if occupied != 2 {
		t.Fatalf("occupied = %d, want 2", occupied)
	}
}

func TestWakeRegionOnlyLoadedChunks(t *testing.T) {
	g := New(1, 0, nil)
	def := &material.Def{Name: "x", Kind: material.KindStatic}
	g.SetMaterial(10, 10, 1, def)
	g.ChunkAt(ChunkCoord{}).TakeWork()

	// Rect spans the loaded chunk and an unloaded neighbor.
	g.WakeRegion(0, 0, 100, 20)

	if !g.ChunkAt(ChunkCoord{}).Active() {
		t.Fatalf("loaded chunk should be woken")
	}
	if g.ChunkAt(ChunkCoord{X: 1, Y: 0}) != nil {
		t.Fatalf("WakeRegion must not create chunks")
	}
	if g.ChunkCount() != 1 {
		t.Fatalf("chunk count %d", g.ChunkCount())
	}
}

func TestNormalizeClampsInvariants(t *testing.T) {
	c := Cell{Material: material.Empty, Fill: 0.5}
	if !c.Normalize() {
		t.Fatalf("empty cell with fill should be corrected")
	}
	if c != EmptyCell {
		t.Fatalf("normalize should reset to the sentinel: %+v", c)
	}

	c = Cell{Material: 3, Fill: -1, FireHP: -2}
	if !c.Normalize() {
		t.Fatalf("negative fill should be corrected")
	}
	if c.Fill != 0 || c.FireHP != 0 {
		t.Fatalf("clamp failed: %+v", c)
	}

	c = Cell{Material: 3, Fill: 0.5}
	if c.Normalize() {
		t.Fatalf("valid cell reported as corrected")
	}
}
