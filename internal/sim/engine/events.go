package engine

import "sandfall/internal/material"

type EventKind uint8

const (
	EventDamage EventKind = iota + 1
	EventHeal
	EventExplosion
	EventReaction
)

func (k EventKind) String() string {
	switch k {
	case EventDamage:
		return "damage"
	case EventHeal:
		return "heal"
	case EventExplosion:
		return "explosion"
	case EventReaction:
		return "reaction"
	default:
		return "unknown"
	}
}

func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is one engine-emitted occurrence of a tick: a contact effect against
// an actor hitbox, an explosion carving terrain, or a completed reaction.
// Events are ordered deterministically within a tick.
type Event struct {
	Kind EventKind `json:"kind"`
	Tick uint64    `json:"tick"`
	X    int       `json:"x"`
	Y    int       `json:"y"`

	// Actor is the hitbox id for contact events.
	Actor string `json:"actor,omitempty"`

	Material material.ID `json:"material,omitempty"`
	Other    material.ID `json:"other,omitempty"`

	Amount float32 `json:"amount,omitempty"`
	Radius float32 `json:"radius,omitempty"`
	Force  float32 `json:"force,omitempty"`

	// Cells is the number of cells cleared by an explosion.
	Cells int `json:"cells,omitempty"`
}
