package grid

import "sandfall/internal/material"

type CellFlags uint8

const (
	// FlagBurning marks an actively burning cell.
	FlagBurning CellFlags = 1 << iota
	// FlagIgniting marks a cell a burning neighbor is trying to light.
	FlagIgniting
)

// Cell is the atomic simulation unit. Cells live inside their owning chunk's
// fixed array and are mutated in place; they are never allocated one by one.
type Cell struct {
	Material material.ID
	Flags    CellFlags

	// Dir is the horizontal flow bias of liquids and gases (-1 or 1, 0 when
	// unset). Inertia counts blocked moves before the bias flips.
	Dir     int8
	Inertia uint8

	// Clock is the low byte of the tick this cell was last updated on. It is
	// the anti-double-update stamp for cells migrating between chunks.
	Clock uint8

	// Fill is the fraction of the cell occupied, meaningful for liquids and
	// gases. Solid and powder cells always carry 1.
	Fill float32

	FireHP float32

	// Dissipate is the remaining gas lifetime in ticks; -1 never dissipates.
	Dissipate int16
}

// EmptyCell is the out-of-bounds / vacant sentinel.
var EmptyCell = Cell{Material: material.Empty, Dissipate: -1}

func (c Cell) Empty() bool { return c.Material == material.Empty }

func (c Cell) Burning() bool { return c.Flags&FlagBurning != 0 }

// NewCell builds a freshly placed cell of the given material.
func NewCell(id material.ID, def *material.Def) Cell {
	c := Cell{Material: id, Fill: 1, Dissipate: -1}
	if id == material.Empty {
		return EmptyCell
	}
	if def.Kind == material.KindGas && def.Dissipate >= 0 {
		d := def.Dissipate
		if d > 32767 {
			d = 32767
		}
		c.Dissipate = int16(d)
	}
	if def.Fire != nil && def.Fire.TryToIgnite {
		c.Flags |= FlagIgniting
	}
	return c
}

// Normalize clamps a cell back onto its invariants. It reports whether
// anything had to be corrected, so callers can log the violation.
func (c *Cell) Normalize() bool {
	fixed := false
	if c.Material == material.Empty {
		if c.Fill != 0 || c.Flags != 0 || c.FireHP != 0 {
			*c = EmptyCell
			fixed = true
		}
		return fixed
	}
	if c.Fill < 0 {
		c.Fill = 0
		fixed = true
	}
	if c.FireHP < 0 {
		c.FireHP = 0
		fixed = true
	}
	return fixed
}
