package material

// ID is a palette index into the Registry. 0 is always the empty cell.
// An ID is never reassigned to a different definition within a process.
type ID uint16

const Empty ID = 0

// EmptyName is the reserved id of the empty material.
const EmptyName = "empty"

type PhysicsKind uint8

const (
	KindEmpty PhysicsKind = iota
	KindStatic
	KindPowder
	KindLiquid
	KindGas
)

func (k PhysicsKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindStatic:
		return "static"
	case KindPowder:
		return "powder"
	case KindLiquid:
		return "liquid"
	case KindGas:
		return "gas"
	default:
		return "unknown"
	}
}

// Mobile reports whether cells of this kind can move on their own.
func (k PhysicsKind) Mobile() bool {
	return k == KindPowder || k == KindLiquid || k == KindGas
}

type ContactKind uint8

const (
	ContactNone ContactKind = iota
	ContactDamage
	ContactHeal
	ContactExplode
)

// FireDef holds the combustion parameters of a flammable material.
type FireDef struct {
	Probability    float32
	FireHP         float32
	RequiresOxygen bool
	TryToIgnite    bool
}

// ContactDef describes what happens when an actor hitbox touches the material.
type ContactDef struct {
	Kind   ContactKind
	Amount float32
	Radius float32
	Force  float32
}

// Reaction converts the owning material and a qualifying neighbor into two
// outputs. Any matches every non-empty neighbor of a different material.
type Reaction struct {
	Other       ID
	Any         bool
	Probability float32
	OutSelf     ID
	OutOther    ID
}

// Def is one immutable material definition. Defs are built once at load time
// and only ever read afterwards.
type Def struct {
	Name   string
	UIName string
	Kind   PhysicsKind

	Color       [4]uint8
	ColorOffset uint8
	Lighting    *[4]uint8

	// Density orders displacement between mobile cells: denser sinks.
	Density uint8

	// Liquid tuning.
	FlowRate       uint8
	DryThreshold   float32
	MaxCompression float32

	// Gas tuning. Dissipate is the tick budget before the cell clears;
	// -1 keeps the gas forever.
	Dissipate int

	Durability float32

	Fire      *FireDef
	Contact   *ContactDef
	BurnsInto ID
	Reactions []Reaction
}

// ReactionWith returns the reaction entry matching the given neighbor, if any.
// Exact matches win over the "any" wildcard.
func (d *Def) ReactionWith(other ID) *Reaction {
	var wildcard *Reaction
	for i := range d.Reactions {
		r := &d.Reactions[i]
		if r.Any {
			if wildcard == nil {
				wildcard = r
			}
			continue
		}
		if r.Other == other {
			return r
		}
	}
	if other == Empty {
		return nil
	}
	return wildcard
}

// Registry is the immutable material table. It is constructed once at startup
// and passed by reference to every component that resolves material ids.
type Registry struct {
	defs          []Def
	index         map[string]ID
	palette       []string
	paletteDigest string
}

// Get returns the definition for id. Unknown ids resolve to the empty
// definition so a corrupted cell never crashes a lookup.
func (r *Registry) Get(id ID) *Def {
	if int(id) >= len(r.defs) {
		return &r.defs[0]
	}
	return &r.defs[id]
}

// Valid reports whether id names a loaded definition.
func (r *Registry) Valid(id ID) bool { return int(id) < len(r.defs) }

// Lookup resolves a material name to its palette id.
func (r *Registry) Lookup(name string) (ID, bool) {
	id, ok := r.index[name]
	return id, ok
}

func (r *Registry) Count() int { return len(r.defs) }

// Palette returns the material names in palette order. Callers must not
// mutate the returned slice.
func (r *Registry) Palette() []string { return r.palette }

func (r *Registry) PaletteDigest() string { return r.paletteDigest }
