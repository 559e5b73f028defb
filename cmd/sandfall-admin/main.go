// sandfall-admin inspects the persisted artifacts of a world: the sqlite
// snapshot index and individual snapshot files. It never touches a running
// daemon.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"sandfall/internal/persistence/indexdb"
	"sandfall/internal/persistence/snapshot"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		worldID = flag.String("world", "world_1", "world id")
	)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "snapshots":
		err = listSnapshots(*dataDir, *worldID)
	case "inspect":
		if len(args) < 2 {
			err = fmt.Errorf("inspect: snapshot path required")
			break
		}
		err = inspectSnapshot(args[1])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sandfall-admin: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: sandfall-admin [flags] <command>

commands:
  snapshots           list recorded snapshots for the world
  inspect <path>      print the header and stats of one snapshot file`)
	flag.PrintDefaults()
}

func listSnapshots(dataDir, worldID string) error {
	idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "worlds", worldID, "index.db"))
	if err != nil {
		return err
	}
	defer idx.Close()

	rows, err := idx.Snapshots()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("no snapshots recorded")
		return nil
	}
	fmt.Printf("%-12s %-8s %-20s %s\n", "TICK", "CHUNKS", "CREATED", "PATH")
	for _, r := range rows {
		fmt.Printf("%-12d %-8d %-20s %s\n", r.Tick, r.Chunks, r.CreatedAt, r.Path)
	}
	return nil
}

func inspectSnapshot(path string) error {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return err
	}

	cells := 0
	for _, ch := range snap.Chunks {
		for i := range ch.Cells {
			if ch.Cells[i].Material != 0 {
				cells++
			}
		}
	}

	fmt.Printf("world:          %s\n", snap.Header.WorldID)
	fmt.Printf("version:        %d\n", snap.Header.Version)
	fmt.Printf("tick:           %d\n", snap.Header.Tick)
	fmt.Printf("seed:           %d\n", snap.Seed)
	fmt.Printf("bounds_r:       %d\n", snap.BoundsR)
	fmt.Printf("palette:        %d materials (%s)\n", len(snap.Palette), snap.PaletteDigest)
	fmt.Printf("chunks:         %d\n", len(snap.Chunks))
	fmt.Printf("occupied cells: %d\n", cells)
	return nil
}
