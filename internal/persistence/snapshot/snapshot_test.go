package snapshot

import (
	"path/filepath"
	"reflect"
	"testing"

	"sandfall/internal/material"
	"sandfall/internal/sim/grid"
)

func testRegistry(t *testing.T) *material.Registry {
	t.Helper()
	reg, err := material.Build([]material.Spec{
		{ID: "stone", Physics: material.PhysicsSpec{Type: "static"}},
		{ID: "sand", Physics: material.PhysicsSpec{Type: "powder", Density: 60}},
		{ID: "water", Physics: material.PhysicsSpec{Type: "liquid", Density: 50}},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func buildGrid(t *testing.T, reg *material.Registry) *grid.Grid {
	t.Helper()
	g := grid.New(1234, 2, nil)
	g.SetTick(77)
	for _, m := range []struct {
		name string
		x, y int
	}{
		{"stone", 0, 0},
		{"sand", 63, 63},
		{"water", -1, -1},
		{"water", 100, -30},
	} {
		id, ok := reg.Lookup(m.name)
		if !ok {
			t.Fatalf("lookup %s", m.name)
		}
		if !g.SetMaterial(m.x, m.y, id, reg.Get(id)) {
			t.Fatalf("place %s", m.name)
		}
	}
	// A cell with non-default dynamics state, to prove every field survives.
	id, _ := reg.Lookup("water")
	g.Set(5, 5, grid.Cell{
		Material: id, Dir: -1, Inertia: 2, Clock: 9, Fill: 0.375,
	})
	return g
}

func TestWriteReadRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	g := buildGrid(t, reg)

	snap := Capture(g, "w_test", reg)
	if snap.Header.Tick != 77 || snap.Header.WorldID != "w_test" || snap.Header.Version != 1 {
		t.Fatalf("header %+v", snap.Header)
	}
	if snap.Seed != 1234 || snap.BoundsR != 2 {
		t.Fatalf("snapshot params %+v", snap)
	}
	if snap.PaletteDigest != reg.PaletteDigest() {
		t.Fatalf("palette digest not captured")
	}

	path := filepath.Join(t.TempDir(), "77.snap.zst")
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(snap, got) {
		t.Fatalf("round trip not lossless")
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if h != snap.Header {
		t.Fatalf("header line %+v, want %+v", h, snap.Header)
	}
}

func TestRestoreReproducesGrid(t *testing.T) {
	reg := testRegistry(t)
	g := buildGrid(t, reg)

	snap := Capture(g, "w_test", reg)
	restored, err := Restore(snap, reg, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	if restored.Tick() != g.Tick() || restored.Seed() != g.Seed() || restored.BoundsR() != g.BoundsR() {
		t.Fatalf("grid params differ")
	}
	coords := g.ChunkCoords()
	if got := restored.ChunkCoords(); len(got) != len(coords) {
		t.Fatalf("chunk counts differ: %d vs %d", len(got), len(coords))
	}
	for _, c := range coords {
		rc := restored.ChunkAt(c)
		if rc == nil {
			t.Fatalf("chunk %v missing after restore", c)
		}
		if rc.Cells != g.ChunkAt(c).Cells {
			t.Fatalf("chunk %v cells differ after restore", c)
		}
		if !rc.Active() {
			t.Fatalf("restored chunk %v should be woken", c)
		}
	}
}

func TestRestoreRemapsByName(t *testing.T) {
	reg := testRegistry(t)
	g := buildGrid(t, reg)
	snap := Capture(g, "w_test", reg)

	// A registry with an extra material shifts every palette id, so restore
	// must go through names rather than raw ids.
	bigger, err := material.Build([]material.Spec{
		{ID: "aardvark_dust", Physics: material.PhysicsSpec{Type: "powder", Density: 1}},
		{ID: "stone", Physics: material.PhysicsSpec{Type: "static"}},
		{ID: "sand", Physics: material.PhysicsSpec{Type: "powder", Density: 60}},
		{ID: "water", Physics: material.PhysicsSpec{Type: "liquid", Density: 50}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	restored, err := Restore(snap, bigger, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	stone, _ := bigger.Lookup("stone")
	if got := restored.Get(0, 0).Material; got != stone {
		t.Fatalf("stone restored as id %d, want %d", got, stone)
	}
	water, _ := bigger.Lookup("water")
	if got := restored.Get(-1, -1).Material; got != water {
		t.Fatalf("water restored as id %d, want %d", got, water)
	}
}

func TestRestoreMissingMaterialBecomesEmpty(t *testing.T) {
	reg := testRegistry(t)
	g := buildGrid(t, reg)
	snap := Capture(g, "w_test", reg)

	smaller, err := material.Build([]material.Spec{
		{ID: "stone", Physics: material.PhysicsSpec{Type: "static"}},
		{ID: "water", Physics: material.PhysicsSpec{Type: "liquid", Density: 50}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	restored, err := Restore(snap, smaller, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !restored.Get(63, 63).Empty() {
		t.Fatalf("sand has no definition anymore and should restore empty")
	}
	stone, _ := smaller.Lookup("stone")
	if restored.Get(0, 0).Material != stone {
		t.Fatalf("stone should survive the smaller registry")
	}
}

func TestRestoreRejectsBadSnapshot(t *testing.T) {
	reg := testRegistry(t)

	if _, err := Restore(SnapshotV1{Header: Header{Version: 9}}, reg, nil); err == nil {
		t.Fatalf("unknown version should fail")
	}

	snap := SnapshotV1{
		Header:  Header{Version: 1},
		Palette: []string{material.EmptyName},
		Chunks:  []ChunkV1{{CX: 0, CY: 0, Cells: make([]CellV1, 7)}},
	}
	if _, err := Restore(snap, reg, nil); err == nil {
		t.Fatalf("truncated chunk should fail")
	}
}
