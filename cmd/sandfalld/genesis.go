package main

import (
	"fmt"

	"sandfall/internal/material"
	"sandfall/internal/sim/grid"
)

// seedGenesis fills a fresh grid with a starting terrain preset. Presets only
// use the core materials, so a trimmed-down materials.json still boots.
func seedGenesis(g *grid.Grid, reg *material.Registry, preset string) error {
	switch preset {
	case "empty":
		return nil
	case "flat":
		return seedFlat(g, reg)
	case "basin":
		return seedBasin(g, reg)
	default:
		return fmt.Errorf("unknown genesis preset %q", preset)
	}
}

func place(g *grid.Grid, reg *material.Registry, name string, x0, y0, x1, y1 int) error {
	id, ok := reg.Lookup(name)
	if !ok {
		return fmt.Errorf("genesis material %q not in registry", name)
	}
	def := reg.Get(id)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			g.SetMaterial(x, y, id, def)
		}
	}
	return nil
}

// seedFlat lays a stone floor with a dirt topping across the spawn area.
func seedFlat(g *grid.Grid, reg *material.Registry) error {
	if err := place(g, reg, "stone", -160, 40, 159, 63); err != nil {
		return err
	}
	return place(g, reg, "dirt", -160, 36, 159, 39)
}

// seedBasin builds a stone bowl holding water and a sand shore, with a wooden
// platform above it. Enough variety that a fresh world shows powder, liquid
// and fire behavior immediately.
func seedBasin(g *grid.Grid, reg *material.Registry) error {
	// Floor and walls.
	if err := place(g, reg, "stone", -120, 56, 119, 63); err != nil {
		return err
	}
	if err := place(g, reg, "stone", -120, 8, -112, 55); err != nil {
		return err
	}
	if err := place(g, reg, "stone", 111, 8, 119, 55); err != nil {
		return err
	}

	// Water pool in the middle, sand shores on both sides.
	if err := place(g, reg, "water", -40, 44, 39, 55); err != nil {
		return err
	}
	if err := place(g, reg, "sand", -111, 48, -41, 55); err != nil {
		return err
	}
	if err := place(g, reg, "sand", 40, 48, 110, 55); err != nil {
		return err
	}

	// A wooden platform overhanging the pool.
	if err := place(g, reg, "wood", -20, 24, 20, 26); err != nil {
		return err
	}
	return nil
}
