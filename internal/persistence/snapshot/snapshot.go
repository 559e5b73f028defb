// Package snapshot persists the full world state as a single compressed file:
// a JSON header line followed by a gob body, both inside one zstd stream. The
// header line lets tooling identify a snapshot without decoding the body.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"go.uber.org/zap"

	"sandfall/internal/material"
	"sandfall/internal/sim/grid"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed    int64 `json:"seed"`
	BoundsR int   `json:"bounds_r"`

	// Palette pins material ids to names at capture time. Restore remaps
	// cells through it, so snapshots survive palette reordering across
	// config edits.
	Palette       []string `json:"palette"`
	PaletteDigest string   `json:"palette_digest"`

	Chunks []ChunkV1 `json:"chunks"`
}

type ChunkV1 struct {
	CX    int      `json:"cx"`
	CY    int      `json:"cy"`
	Cells []CellV1 `json:"cells"`
}

// CellV1 mirrors the live cell field for field so a capture/restore cycle is
// lossless.
type CellV1 struct {
	Material uint16
	Flags    uint8
	Dir      int8
	Inertia  uint8
	Clock    uint8
	Fill     float32
	FireHP   float32
	Dissip   int16
}

// Capture serializes every loaded chunk. Must run between steps.
func Capture(g *grid.Grid, worldID string, reg *material.Registry) SnapshotV1 {
	snap := SnapshotV1{
		Header:        Header{Version: 1, WorldID: worldID, Tick: g.Tick()},
		Seed:          g.Seed(),
		BoundsR:       g.BoundsR(),
		Palette:       reg.Palette(),
		PaletteDigest: reg.PaletteDigest(),
	}
	for _, c := range g.ChunkCoords() {
		ch := g.ChunkAt(c)
		cv := ChunkV1{CX: c.X, CY: c.Y, Cells: make([]CellV1, len(ch.Cells))}
		for i := range ch.Cells {
			cell := &ch.Cells[i]
			cv.Cells[i] = CellV1{
				Material: uint16(cell.Material),
				Flags:    uint8(cell.Flags),
				Dir:      cell.Dir,
				Inertia:  cell.Inertia,
				Clock:    cell.Clock,
				Fill:     cell.Fill,
				FireHP:   cell.FireHP,
				Dissip:   cell.Dissipate,
			}
		}
		snap.Chunks = append(snap.Chunks, cv)
	}
	return snap
}

// Restore builds a fresh grid from a snapshot. Materials are remapped by
// name through the captured palette; names missing from the current registry
// restore as empty cells with a warning.
func Restore(snap SnapshotV1, reg *material.Registry, logger *zap.Logger) (*grid.Grid, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if snap.Header.Version != 1 {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}

	remap := make([]material.ID, len(snap.Palette))
	for i, name := range snap.Palette {
		id, ok := reg.Lookup(name)
		if !ok {
			logger.Warn("snapshot material missing from registry, restoring as empty",
				zap.String("material", name))
			id = material.Empty
		}
		remap[i] = id
	}

	g := grid.New(snap.Seed, snap.BoundsR, logger)
	g.SetTick(snap.Header.Tick)

	for _, cv := range snap.Chunks {
		if len(cv.Cells) != grid.ChunkSize*grid.ChunkSize {
			return nil, fmt.Errorf("chunk (%d,%d): %d cells, want %d",
				cv.CX, cv.CY, len(cv.Cells), grid.ChunkSize*grid.ChunkSize)
		}
		ch := g.EnsureChunk(grid.ChunkCoord{X: cv.CX, Y: cv.CY})
		if ch == nil {
			logger.Warn("snapshot chunk outside world bounds, dropped",
				zap.Int("cx", cv.CX), zap.Int("cy", cv.CY))
			continue
		}
		for i := range cv.Cells {
			sc := &cv.Cells[i]
			if int(sc.Material) >= len(remap) {
				return nil, fmt.Errorf("chunk (%d,%d): material id %d outside palette",
					cv.CX, cv.CY, sc.Material)
			}
			id := remap[sc.Material]
			if id == material.Empty && sc.Material != 0 {
				// Material no longer exists in the registry.
				ch.Cells[i] = grid.EmptyCell
				continue
			}
			ch.Cells[i] = grid.Cell{
				Material:  id,
				Flags:     grid.CellFlags(sc.Flags),
				Dir:       sc.Dir,
				Inertia:   sc.Inertia,
				Clock:     sc.Clock,
				Fill:      sc.Fill,
				FireHP:    sc.FireHP,
				Dissipate: sc.Dissip,
			}
		}
	}

	// Everything restored simulates at least once, so unsettled state left
	// mid-fall at capture time resumes.
	for _, cv := range snap.Chunks {
		ox := grid.ChunkOrigin(cv.CX)
		oy := grid.ChunkOrigin(cv.CY)
		g.WakeRegion(ox, oy, ox+grid.ChunkSize-1, oy+grid.ChunkSize-1)
	}
	return g, nil
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; the gob body carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line, for cheap inspection.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReaderSize(dec, 64*1024).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("snapshot header: %w", err)
	}
	return h, nil
}
