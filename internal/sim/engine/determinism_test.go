package engine

import (
	"testing"

	"sandfall/internal/sim/grid"
)

// buildScatter spreads mixed materials across many chunks so every
// checkerboard pass has several jobs and the worker pool actually fans out.
func buildScatter(t *testing.T, g *grid.Grid) {
	t.Helper()
	reg := testRegistry(t)
	for i := -2; i <= 2; i++ {
		ox := i * 70
		place(t, g, reg, "stone", ox-8, 40, ox+8, 40)
		place(t, g, reg, "sand", ox-4, 10, ox+4, 14)
		place(t, g, reg, "water", ox-6, 20, ox+6, 22)
		place(t, g, reg, "steam", ox, 35, ox, 35)
	}
	place(t, g, reg, "wood", -3, 39, 3, 39)
}

func TestStepDeterministicAcrossWorkerCounts(t *testing.T) {
	reg := testRegistry(t)

	run := func(workers int) *grid.Grid {
		g := grid.New(42, 4, nil)
		buildScatter(t, g)
		eng := New(g, reg, workers, nil)
		eng.Ignite(0, 39)
		for step := 0; step < 40; step++ {
			eng.Step()
		}
		return g
	}

	single := run(1)
	pooled := run(8)

	coordsA := single.ChunkCoords()
	coordsB := pooled.ChunkCoords()
	if len(coordsA) != len(coordsB) {
		t.Fatalf("chunk counts differ: %d vs %d", len(coordsA), len(coordsB))
	}
	for i := range coordsA {
		if coordsA[i] != coordsB[i] {
			t.Fatalf("chunk sets differ at %d: %v vs %v", i, coordsA[i], coordsB[i])
		}
		ca := single.ChunkAt(coordsA[i])
		cb := pooled.ChunkAt(coordsB[i])
		if ca.Cells != cb.Cells {
			t.Fatalf("chunk %v cell data differs between 1 and 8 workers", coordsA[i])
		}
	}
}

func TestStepEventsDeterministic(t *testing.T) {
	reg := testRegistry(t)

	run := func(workers int) [][]Event {
		g := grid.New(42, 4, nil)
		buildScatter(t, g)
		// Lava columns dropped into the pools guarantee reaction events.
		lava := id(t, reg, "lava")
		for i := -2; i <= 2; i++ {
			g.SetMaterial(i*70, 18, lava, reg.Get(lava))
		}
		eng := New(g, reg, workers, nil)
		var ticks [][]Event
		for step := 0; step < 20; step++ {
			res := eng.Step()
			ticks = append(ticks, res.Events)
		}
		return ticks
	}

	a := run(1)
	b := run(8)
	for tick := range a {
		if len(a[tick]) != len(b[tick]) {
			t.Fatalf("tick %d: event counts differ: %d vs %d", tick, len(a[tick]), len(b[tick]))
		}
		for i := range a[tick] {
			if a[tick][i] != b[tick][i] {
				t.Fatalf("tick %d event %d differs:\n  1 worker: %+v\n  8 workers: %+v",
					tick, i, a[tick][i], b[tick][i])
			}
		}
	}
}

func TestSameSeedSameRun(t *testing.T) {
	reg := testRegistry(t)

	run := func() *grid.Grid {
		g := grid.New(7, 4, nil)
		buildScatter(t, g)
		eng := New(g, reg, 4, nil)
		for step := 0; step < 25; step++ {
			eng.Step()
		}
		return g
	}

	a := run()
	b := run()
	for _, c := range a.ChunkCoords() {
		ca, cb := a.ChunkAt(c), b.ChunkAt(c)
		if cb == nil || ca.Cells != cb.Cells {
			t.Fatalf("repeated run diverged in chunk %v", c)
		}
	}
}

func TestDifferentSeedDiverges(t *testing.T) {
	reg := testRegistry(t)

	run := func(seed int64) *grid.Grid {
		g := grid.New(seed, 4, nil)
		buildScatter(t, g)
		eng := New(g, reg, 1, nil)
		for step := 0; step < 25; step++ {
			eng.Step()
		}
		return g
	}

	a := run(1)
	b := run(2)
	for _, c := range a.ChunkCoords() {
		if cb := b.ChunkAt(c); cb == nil || a.ChunkAt(c).Cells != cb.Cells {
			return
		}
	}
	t.Fatalf("different seeds produced identical worlds")
}
