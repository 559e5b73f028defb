package indexdb

import (
	"path/filepath"
	"testing"

	"sandfall/internal/persistence/snapshot"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func snapAt(tick uint64) snapshot.SnapshotV1 {
	return snapshot.SnapshotV1{
		Header:        snapshot.Header{Version: 1, WorldID: "w_test", Tick: tick},
		Seed:          9,
		PaletteDigest: "digest",
		Chunks:        []snapshot.ChunkV1{{CX: 0, CY: 0}},
	}
}

func TestRecordAndLatest(t *testing.T) {
	idx := openTestIndex(t)

	if _, ok, err := idx.Latest(); err != nil || ok {
		t.Fatalf("fresh index should be empty: ok=%v err=%v", ok, err)
	}

	if err := idx.RecordSnapshot("/data/100.snap.zst", snapAt(100)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := idx.RecordSnapshot("/data/200.snap.zst", snapAt(200)); err != nil {
		t.Fatalf("record: %v", err)
	}

	latest, ok, err := idx.Latest()
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if latest.Tick != 200 || latest.Path != "/data/200.snap.zst" {
		t.Fatalf("latest %+v", latest)
	}
	if latest.Seed != 9 || latest.Chunks != 1 || latest.Digest != "digest" {
		t.Fatalf("latest row %+v", latest)
	}

	rows, err := idx.Snapshots()
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(rows) != 2 || rows[0].Tick != 100 || rows[1].Tick != 200 {
		t.Fatalf("rows %+v", rows)
	}
}

func TestRecordSameTickReplaces(t *testing.T) {
	idx := openTestIndex(t)

	if err := idx.RecordSnapshot("/a.snap.zst", snapAt(50)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := idx.RecordSnapshot("/b.snap.zst", snapAt(50)); err != nil {
		t.Fatalf("record: %v", err)
	}
	rows, err := idx.Snapshots()
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(rows) != 1 || rows[0].Path != "/b.snap.zst" {
		t.Fatalf("upsert did not replace: %+v", rows)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("empty path should fail")
	}
}
