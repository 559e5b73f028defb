// Package indexdb keeps a small SQLite catalog of the snapshots on disk, so
// tooling can find the latest restore point without scanning and decoding
// snapshot files.
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"sandfall/internal/persistence/snapshot"
)

type SQLiteIndex struct {
	db *sql.DB
}

// SnapshotRow is one recorded snapshot.
type SnapshotRow struct {
	Tick      uint64
	Path      string
	Seed      int64
	Chunks    int
	Digest    string
	CreatedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads. NORMAL is a decent
	// durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			palette_digest TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// RecordSnapshot upserts the row for a freshly written snapshot file.
// Snapshots are infrequent, so this writes synchronously on the caller.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO snapshots(tick,path,seed,chunks,palette_digest,created_at) VALUES(?,?,?,?,?,?)`,
		int64(snap.Header.Tick),
		path,
		snap.Seed,
		len(snap.Chunks),
		snap.PaletteDigest,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Latest returns the highest-tick snapshot row, or ok=false when none exist.
func (s *SQLiteIndex) Latest() (SnapshotRow, bool, error) {
	var r SnapshotRow
	err := s.db.QueryRow(
		`SELECT tick,path,seed,chunks,palette_digest,created_at FROM snapshots ORDER BY tick DESC LIMIT 1`,
	).Scan(&r.Tick, &r.Path, &r.Seed, &r.Chunks, &r.Digest, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	return r, true, nil
}

// Snapshots lists every recorded snapshot, oldest first.
func (s *SQLiteIndex) Snapshots() ([]SnapshotRow, error) {
	rows, err := s.db.Query(
		`SELECT tick,path,seed,chunks,palette_digest,created_at FROM snapshots ORDER BY tick ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		if err := rows.Scan(&r.Tick, &r.Path, &r.Seed, &r.Chunks, &r.Digest, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
