package engine

import (
	"sort"

	"sandfall/internal/material"
	"sandfall/internal/sim/grid"
)

// Hitbox is an actor-registered world rect the contact engine checks against
// contact-bearing materials each tick.
type Hitbox struct {
	ID   string
	MinX, MinY, MaxX, MaxY int
}

// SetHitbox registers or replaces an actor hitbox. Must be called between
// steps, like every other external grid access.
func (e *Engine) SetHitbox(h Hitbox) {
	e.hitboxes[h.ID] = h
}

func (e *Engine) RemoveHitbox(id string) {
	delete(e.hitboxes, id)
}

// contactScan runs after movement: for every registered hitbox, cells inside
// or directly adjacent to the box that carry a contact effect report an
// event. Explosive contacts detonate, carving terrain.
func (e *Engine) contactScan(tick uint64) []Event {
	if len(e.hitboxes) == 0 {
		return nil
	}
	ids := make([]string, 0, len(e.hitboxes))
	for id := range e.hitboxes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var events []Event
	for _, id := range ids {
		h := e.hitboxes[id]
		for y := h.MinY - 1; y <= h.MaxY+1; y++ {
			for x := h.MinX - 1; x <= h.MaxX+1; x++ {
				c := e.grid.Get(x, y)
				if c.Empty() {
					continue
				}
				def := e.reg.Get(c.Material)
				contact := def.Contact
				if contact == nil {
					continue
				}
				switch contact.Kind {
				case material.ContactDamage:
					events = append(events, Event{
						Kind: EventDamage, Tick: tick, X: x, Y: y,
						Actor: id, Material: c.Material, Amount: contact.Amount,
					})
				case material.ContactHeal:
					events = append(events, Event{
						Kind: EventHeal, Tick: tick, X: x, Y: y,
						Actor: id, Material: c.Material, Amount: contact.Amount,
					})
				case material.ContactExplode:
					// The explosive cell is consumed by its own blast.
					ev := e.Explode(x, y, contact.Radius, contact.Amount, contact.Force)
					ev.Actor = id
					ev.Material = c.Material
					events = append(events, ev)
				}
			}
		}
	}
	return events
}

// Explode clears a filled circle of cells around (x, y) and returns the blast
// event. Cells whose material durability exceeds the blast damage survive.
// Actor consumers also call this directly for terrain carving.
func (e *Engine) Explode(x, y int, radius, damage, force float32) Event {
	r := int(radius)
	cleared := 0
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if float32(dx*dx+dy*dy) > radius*radius {
				continue
			}
			c := e.grid.Get(x+dx, y+dy)
			if c.Empty() {
				continue
			}
			if e.reg.Get(c.Material).Durability > damage {
				continue
			}
			e.grid.Set(x+dx, y+dy, grid.EmptyCell)
			cleared++
		}
	}
	// Wake the ring around the crater so overhangs start falling.
	e.grid.WakeRegion(x-r-1, y-r-1, x+r+1, y+r+1)
	return Event{
		Kind: EventExplosion, Tick: e.grid.Tick(), X: x, Y: y,
		Radius: radius, Amount: damage, Force: force, Cells: cleared,
	}
}
