package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sandfall/internal/config"
	"sandfall/internal/material"
	"sandfall/internal/persistence/indexdb"
	persistlog "sandfall/internal/persistence/log"
	"sandfall/internal/persistence/snapshot"
	"sandfall/internal/sim/engine"
	"sandfall/internal/sim/grid"
	"sandfall/internal/sim/world"
	"sandfall/internal/transport/observer"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to engine.yaml (empty uses defaults)")
		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "resume from the latest snapshot in the data dir (when -snapshot is empty)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite snapshot index")
		genesis    = flag.String("genesis", "basin", "fresh-world terrain preset (basin, flat, empty)")
		debugLog   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logger := newLogger(*debugLog)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	reg, err := material.Load(cfg.MaterialsDir)
	if err != nil {
		logger.Fatal("load materials", zap.Error(err))
	}
	logger.Info("materials loaded",
		zap.Int("count", reg.Count()),
		zap.String("palette_digest", reg.PaletteDigest()))

	worldDir := filepath.Join(cfg.DataDir, "worlds", cfg.WorldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatal("create world dir", zap.Error(err))
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatal("open snapshot index", zap.Error(err))
		}
		defer idx.Close()
	}

	var g *grid.Grid
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatal("read snapshot", zap.Error(err))
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != cfg.WorldID {
			logger.Fatal("snapshot world id mismatch",
				zap.String("config", cfg.WorldID), zap.String("snapshot", snap.Header.WorldID))
		}
		g, err = snapshot.Restore(snap, reg, logger)
		if err != nil {
			logger.Fatal("restore snapshot", zap.Error(err))
		}
		logger.Info("resumed from snapshot",
			zap.String("file", filepath.Base(snapshotToLoad)),
			zap.Uint64("tick", g.Tick()))
	} else {
		g = grid.New(cfg.Seed, cfg.BoundsR, logger)
		if err := seedGenesis(g, reg, *genesis); err != nil {
			logger.Fatal("seed genesis terrain", zap.Error(err))
		}
		logger.Info("fresh world seeded",
			zap.String("preset", *genesis), zap.Int64("seed", cfg.Seed))
	}

	w, err := world.New(world.Config{
		ID:                 cfg.WorldID,
		TickRateHz:         cfg.TickRateHz,
		Seed:               cfg.Seed,
		Workers:            cfg.Workers,
		BoundsR:            cfg.BoundsR,
		SnapshotEveryTicks: cfg.SnapshotEveryTicks,
	}, reg, g, logger)
	if err != nil {
		logger.Fatal("world", zap.Error(err))
	}

	eventLog := persistlog.NewEventLogger(worldDir)
	defer eventLog.Close()
	w.OnEvents(func(tick uint64, events []engine.Event) {
		if err := eventLog.WriteTick(tick, events); err != nil {
			logger.Warn("event log write", zap.Uint64("tick", tick), zap.Error(err))
		}
	})
	w.OnSnapshot(func(g *grid.Grid, tick uint64) error {
		snap := snapshot.Capture(g, cfg.WorldID, reg)
		path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			return err
		}
		if idx != nil {
			if err := idx.RecordSnapshot(path, snap); err != nil {
				logger.Warn("record snapshot in index", zap.Error(err))
			}
		}
		logger.Info("snapshot written",
			zap.Uint64("tick", tick), zap.Int("chunks", len(snap.Chunks)))
		return nil
	})

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("world stopped", zap.Error(err))
		}
	}()

	obsSrv := observer.NewServer(w, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"world_id": cfg.WorldID,
			"tick":     w.Tick(),
			"chunks":   w.Grid().ChunkCount(),
		})
	})
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", zap.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("ListenAndServe", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
