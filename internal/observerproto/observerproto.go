// Package observerproto defines the JSON messages spoken between the world
// loop and observer websocket clients (render consumers and actor tooling).
package observerproto

import "sandfall/internal/sim/engine"

const Version = "1.0"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTick      = "TICK"
	TypePaint     = "PAINT"
	TypeCarve     = "CARVE"
	TypeIgnite    = "IGNITE"
	TypeExplode   = "EXPLODE"
)

type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

type MaterialInfo struct {
	ID          uint16    `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Color       [4]uint8  `json:"color"`
	ColorOffset uint8     `json:"color_offset,omitempty"`
	Lighting    *[4]uint8 `json:"lighting,omitempty"`
}

type BootstrapResponse struct {
	ProtocolVersion string         `json:"protocol_version"`
	WorldID         string         `json:"world_id"`
	Tick            uint64         `json:"tick"`
	TickRateHz      int            `json:"tick_rate_hz"`
	ChunkSize       int            `json:"chunk_size"`
	Seed            int64          `json:"seed"`
	BoundsR         int            `json:"bounds_r"`
	Materials       []MaterialInfo `json:"materials"`
}

// CellWire is the per-cell payload inside a delta: material, fill, burning.
type CellWire struct {
	M uint16  `json:"m"`
	F float32 `json:"f,omitempty"`
	B bool    `json:"b,omitempty"`
}

// ChunkDelta carries the cells inside one chunk's dirty rect, row-major.
// Rect is [minX, minY, maxX, maxY] in chunk-local coordinates.
type ChunkDelta struct {
	CX    int        `json:"cx"`
	CY    int        `json:"cy"`
	Rect  [4]int     `json:"rect"`
	Cells []CellWire `json:"cells"`
}

// TickMsg is pushed to every subscriber after each completed step.
type TickMsg struct {
	Type   string         `json:"type"`
	Tick   uint64         `json:"tick"`
	Chunks []ChunkDelta   `json:"chunks,omitempty"`
	Events []engine.Event `json:"events,omitempty"`
}

// CommandMsg is a client request applied between ticks: painting material,
// carving it away, forcing ignition, or detonating a blast.
type CommandMsg struct {
	Type string `json:"type"`

	Material string `json:"material,omitempty"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	W        int    `json:"w,omitempty"`
	H        int    `json:"h,omitempty"`

	Radius float32 `json:"radius,omitempty"`
	Damage float32 `json:"damage,omitempty"`
	Force  float32 `json:"force,omitempty"`
}
