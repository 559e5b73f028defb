// Package world owns the per-world run loop: a single goroutine that steps
// the engine at a fixed tick rate and is the only code allowed to touch the
// grid. Observers and commands reach it through channels, so every external
// mutation lands between ticks.
package world

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"sandfall/internal/material"
	"sandfall/internal/observerproto"
	"sandfall/internal/sim/engine"
	"sandfall/internal/sim/grid"
)

type Config struct {
	ID         string
	TickRateHz int
	Seed       int64
	Workers    int
	BoundsR    int

	// SnapshotEveryTicks triggers the snapshot hook on this cadence.
	// 0 disables periodic snapshots.
	SnapshotEveryTicks int
}

// SnapshotFunc persists the grid. It runs on the world goroutine between
// ticks, so it may read the grid freely but should return quickly.
type SnapshotFunc func(g *grid.Grid, tick uint64) error

// EventsFunc receives the events of each completed tick.
type EventsFunc func(tick uint64, events []engine.Event)

// ObserverJoinRequest subscribes an outbound channel to tick broadcasts.
// Out must be buffered; slow observers drop frames rather than stall the
// loop.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
}

type World struct {
	cfg Config
	log *zap.Logger

	grid *grid.Grid
	eng  *engine.Engine
	reg  *material.Registry

	commands chan observerproto.CommandMsg
	join     chan ObserverJoinRequest
	leave    chan string
	stop     chan struct{}

	subs map[string]chan []byte

	tick atomic.Uint64

	snapshotFn SnapshotFunc
	eventsFn   EventsFunc
}

// New builds a world around g. A nil g starts a fresh empty grid from the
// config seed; a restored grid resumes at its snapshot tick.
func New(cfg Config, reg *material.Registry, g *grid.Grid, logger *zap.Logger) (*World, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, fmt.Errorf("world id must not be empty")
	}
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("world %s: tick rate %d out of range", cfg.ID, cfg.TickRateHz)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if g == nil {
		g = grid.New(cfg.Seed, cfg.BoundsR, logger)
	}
	w := &World{
		cfg:      cfg,
		log:      logger.With(zap.String("world", cfg.ID)),
		grid:     g,
		eng:      engine.New(g, reg, cfg.Workers, logger),
		reg:      reg,
		commands: make(chan observerproto.CommandMsg, 256),
		join:     make(chan ObserverJoinRequest, 16),
		leave:    make(chan string, 16),
		stop:     make(chan struct{}),
		subs:     make(map[string]chan []byte),
	}
	w.tick.Store(g.Tick())
	return w, nil
}

func (w *World) ID() string                { return w.cfg.ID }
func (w *World) TickRateHz() int           { return w.cfg.TickRateHz }
func (w *World) Seed() int64               { return w.cfg.Seed }
func (w *World) BoundsR() int              { return w.cfg.BoundsR }
func (w *World) Tick() uint64              { return w.tick.Load() }
func (w *World) Grid() *grid.Grid          { return w.grid }
func (w *World) Engine() *engine.Engine    { return w.eng }
func (w *World) Registry() *material.Registry { return w.reg }

// OnSnapshot installs the snapshot hook. Must be called before Run.
func (w *World) OnSnapshot(fn SnapshotFunc) { w.snapshotFn = fn }

// OnEvents installs the event sink. Must be called before Run.
func (w *World) OnEvents(fn EventsFunc) { w.eventsFn = fn }

// Enqueue submits a command for the next tick boundary. Returns false when
// the queue is full; the caller decides whether that is an error.
func (w *World) Enqueue(cmd observerproto.CommandMsg) bool {
	select {
	case w.commands <- cmd:
		return true
	default:
		return false
	}
}

func (w *World) Join(req ObserverJoinRequest) {
	select {
	case w.join <- req:
	case <-w.stop:
	}
}

func (w *World) Leave(sessionID string) {
	select {
	case w.leave <- sessionID:
	case <-w.stop:
	}
}

// Run drives the world until ctx is cancelled. Each tick drains the control
// channels, applies queued commands, then steps the engine exactly once.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(w.stop)

	w.log.Info("world loop started",
		zap.Int("tick_rate_hz", w.cfg.TickRateHz),
		zap.Uint64("tick", w.grid.Tick()))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("world loop stopped", zap.Uint64("tick", w.grid.Tick()))
			return ctx.Err()
		case <-ticker.C:
			w.drainControl()
			w.StepOnce()
		}
	}
}

func (w *World) drainControl() {
	for {
		select {
		case req := <-w.join:
			w.subs[req.SessionID] = req.Out
			w.sendBaseline(req)
			w.log.Info("observer joined", zap.String("session", req.SessionID))
		case id := <-w.leave:
			delete(w.subs, id)
			w.log.Info("observer left", zap.String("session", id))
		case cmd := <-w.commands:
			w.applyCommand(cmd)
		default:
			return
		}
	}
}

// StepOnce advances the world one tick and publishes the results. Exposed for
// tests and the admin tooling; Run is the production driver.
func (w *World) StepOnce() engine.StepResult {
	res := w.eng.Step()
	w.tick.Store(res.Tick)

	if w.eventsFn != nil && len(res.Events) > 0 {
		w.eventsFn(res.Tick, res.Events)
	}

	w.broadcast(res)

	if w.cfg.SnapshotEveryTicks > 0 && res.Tick%uint64(w.cfg.SnapshotEveryTicks) == 0 && w.snapshotFn != nil {
		if err := w.snapshotFn(w.grid, res.Tick); err != nil {
			w.log.Error("snapshot failed", zap.Uint64("tick", res.Tick), zap.Error(err))
		}
	}
	return res
}

func (w *World) applyCommand(cmd observerproto.CommandMsg) {
	switch cmd.Type {
	case observerproto.TypePaint:
		id, ok := w.reg.Lookup(cmd.Material)
		if !ok {
			w.log.Warn("paint with unknown material", zap.String("material", cmd.Material))
			return
		}
		def := w.reg.Get(id)
		wd, ht := cmd.W, cmd.H
		if wd <= 0 {
			wd = 1
		}
		if ht <= 0 {
			ht = 1
		}
		for y := cmd.Y; y < cmd.Y+ht; y++ {
			for x := cmd.X; x < cmd.X+wd; x++ {
				w.grid.SetMaterial(x, y, id, def)
			}
		}
		w.grid.WakeRegion(cmd.X-1, cmd.Y-1, cmd.X+wd, cmd.Y+ht)
	case observerproto.TypeCarve:
		wd, ht := cmd.W, cmd.H
		if wd <= 0 {
			wd = 1
		}
		if ht <= 0 {
			ht = 1
		}
		for y := cmd.Y; y < cmd.Y+ht; y++ {
			for x := cmd.X; x < cmd.X+wd; x++ {
				w.grid.Set(x, y, grid.EmptyCell)
			}
		}
		w.grid.WakeRegion(cmd.X-1, cmd.Y-1, cmd.X+wd, cmd.Y+ht)
	case observerproto.TypeIgnite:
		w.eng.Ignite(cmd.X, cmd.Y)
	case observerproto.TypeExplode:
		w.eng.Explode(cmd.X, cmd.Y, cmd.Radius, cmd.Damage, cmd.Force)
	default:
		w.log.Warn("unknown command", zap.String("type", cmd.Type))
	}
}

// sendBaseline pushes a full frame of every loaded chunk to a fresh
// subscriber. Settled terrain never dirties again, so without this a late
// joiner would stream deltas against a world it has never seen.
func (w *World) sendBaseline(req ObserverJoinRequest) {
	msg := observerproto.TickMsg{Type: observerproto.TypeTick, Tick: w.tick.Load()}
	full := grid.Rect{MinX: 0, MinY: 0, MaxX: grid.ChunkSize - 1, MaxY: grid.ChunkSize - 1}
	for _, c := range w.grid.ChunkCoords() {
		msg.Chunks = append(msg.Chunks, w.buildDelta(w.grid.ChunkAt(c), full))
	}
	if len(msg.Chunks) == 0 {
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		w.log.Error("baseline frame encode failed", zap.Error(err))
		return
	}
	select {
	case req.Out <- raw:
	default:
		w.log.Warn("baseline frame dropped, channel full",
			zap.String("session", req.SessionID))
	}
}

// broadcast collects every chunk's dirty rect into deltas and fans the tick
// frame out to subscribers. Sends are non-blocking: an observer that cannot
// keep up misses frames and reconnects for a fresh baseline.
func (w *World) broadcast(res engine.StepResult) {
	if len(w.subs) == 0 {
		// Nobody listening: still consume dirty rects so they don't grow
		// without bound.
		for _, c := range w.grid.ChunkCoords() {
			w.grid.ChunkAt(c).TakeDirty()
		}
		return
	}

	msg := observerproto.TickMsg{
		Type:   observerproto.TypeTick,
		Tick:   res.Tick,
		Events: res.Events,
	}
	for _, c := range w.grid.ChunkCoords() {
		ch := w.grid.ChunkAt(c)
		r := ch.TakeDirty()
		if r.Empty() {
			continue
		}
		msg.Chunks = append(msg.Chunks, w.buildDelta(ch, r))
	}
	if len(msg.Chunks) == 0 && len(msg.Events) == 0 {
		return
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		w.log.Error("tick frame encode failed", zap.Error(err))
		return
	}
	for id, out := range w.subs {
		select {
		case out <- raw:
		default:
			w.log.Debug("observer frame dropped", zap.String("session", id))
		}
	}
}

func (w *World) buildDelta(ch *grid.Chunk, r grid.Rect) observerproto.ChunkDelta {
	d := observerproto.ChunkDelta{
		CX:    ch.Coord.X,
		CY:    ch.Coord.Y,
		Rect:  [4]int{r.MinX, r.MinY, r.MaxX, r.MaxY},
		Cells: make([]observerproto.CellWire, 0, (r.MaxX-r.MinX+1)*(r.MaxY-r.MinY+1)),
	}
	for ly := r.MinY; ly <= r.MaxY; ly++ {
		for lx := r.MinX; lx <= r.MaxX; lx++ {
			c := ch.At(lx, ly)
			d.Cells = append(d.Cells, observerproto.CellWire{
				M: uint16(c.Material),
				F: c.Fill,
				B: c.Burning(),
			})
		}
	}
	return d
}
