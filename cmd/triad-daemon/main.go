package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alucardeht/triad/internal/audit"
	"github.com/alucardeht/triad/internal/catalog"
	"github.com/alucardeht/triad/internal/config"
	"github.com/alucardeht/triad/internal/daemon"
	"github.com/alucardeht/triad/internal/executor"
	"github.com/alucardeht/triad/internal/httpapi"
	"github.com/alucardeht/triad/internal/logger"
	"github.com/alucardeht/triad/internal/orchestrator"
	"github.com/alucardeht/triad/internal/provider"
	"github.com/alucardeht/triad/internal/router"
	"github.com/alucardeht/triad/internal/seed"
	"github.com/alucardeht/triad/internal/store"
	"github.com/alucardeht/triad/internal/telemetry"
	"github.com/alucardeht/triad/internal/types"
	"github.com/alucardeht/triad/internal/watcher"
)

var version = "dev"

var log = logger.ForComponent("main")

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "triad-daemon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	logger.Init(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	lifecycle := daemon.NewLifecycle(cfg.Daemon.PIDPath, cfg.Daemon.SocketPath)
	if err := lifecycle.Acquire(); err != nil {
		return err
	}
	defer lifecycle.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing, version, nil)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	importSeed(ctx, cfg, st)

	cache := catalog.New(st, catalog.WithTTL(cfg.Catalog.TTL))
	r := router.NewRouter(cache, st,
		router.WithMemoryLimit(cfg.Catalog.MemoryLimit),
		router.WithTimeouts(router.TimeoutConfig{
			Refresh: router.DefaultTimeoutConfig().Refresh,
			Memory:  cfg.Catalog.MemoryTimeout,
		}),
	)
	dispatcher := provider.FromConfig(cfg.Providers)
	exec := executor.New(r, dispatcher, cfg.Executor.SlotTimeout)

	opts := []orchestrator.Option{
		orchestrator.WithDefaultMode(types.Mode(cfg.Executor.DefaultMode)),
		orchestrator.WithStoreStats(st),
	}
	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		recorder = audit.NewRecorder(st, cfg.Audit.QueueSize)
		opts = append(opts, orchestrator.WithRecorder(recorder))
	}
	orch := orchestrator.New(cache, st, exec, opts...)
	if err := orch.RefreshAllCaches(ctx); err != nil {
		log.Warn("initial cache load incomplete", "error", err)
	}

	var seedWatcher *watcher.Watcher
	if cfg.Catalog.Watch {
		seedWatcher = startWatcher(ctx, cfg, st, orch)
	}

	d := daemon.New(orch, cfg.Daemon.SocketPath)
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	var httpServer *http.Server
	if cfg.HTTP.Enabled {
		httpServer = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpapi.New(orch, cfg.HTTP.CORSOrigins).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("http api listening", "addr", cfg.HTTP.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http api stopped", "error", err)
				stop()
			}
		}()
	}

	log.Info("triad daemon ready", "version", version, "providers", dispatcher.Providers())
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
	}
	d.Shutdown()
	if seedWatcher != nil {
		if err := seedWatcher.Stop(); err != nil {
			log.Warn("watcher stop", "error", err)
		}
	}
	if recorder != nil {
		if err := recorder.Close(shutdownCtx); err != nil {
			log.Warn("audit drain", "error", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", "error", err)
	}
	return nil
}

// importSeed loads the seed directory once at startup. A missing or broken
// seed keeps whatever the database already holds.
func importSeed(ctx context.Context, cfg *config.Config, st *store.Store) {
	if _, err := os.Stat(cfg.Catalog.SeedDir); err != nil {
		log.Info("no seed directory, using stored catalog", "dir", cfg.Catalog.SeedDir)
		return
	}
	bundle, files, err := seed.LoadDir(cfg.Catalog.SeedDir, cfg.Catalog.SeedPatterns, cfg.Catalog.IgnorePatterns)
	if err != nil {
		log.Warn("seed load failed, using stored catalog", "error", err)
		return
	}
	res, err := st.Import(ctx, bundle, true)
	if err != nil {
		log.Warn("seed import failed", "error", err)
		return
	}
	log.Info("seed imported", "files", len(files), "nodes", res.Nodes, "stacks", res.Stacks,
		"domains", res.Domains, "memories", res.Memories, "models", res.Models, "retired", res.Retired)
}

func startWatcher(ctx context.Context, cfg *config.Config, st *store.Store, orch *orchestrator.Orchestrator) *watcher.Watcher {
	wcfg := watcher.DefaultConfig()
	wcfg.DebounceWindow = cfg.Catalog.DebounceWindow
	if len(cfg.Catalog.SeedPatterns) > 0 {
		wcfg.Include = cfg.Catalog.SeedPatterns
	}
	if len(cfg.Catalog.IgnorePatterns) > 0 {
		wcfg.Ignore = cfg.Catalog.IgnorePatterns
	}

	w, err := watcher.New(cfg.Catalog.SeedDir, wcfg, &watcher.SeedReloader{
		Dir:     cfg.Catalog.SeedDir,
		Include: wcfg.Include,
		Ignore:  wcfg.Ignore,
		Store:   st,
		Caches:  orch,
	})
	if err != nil {
		log.Warn("seed watcher unavailable", "error", err)
		return nil
	}
	if err := w.Start(ctx); err != nil {
		log.Warn("seed watcher not started", "dir", cfg.Catalog.SeedDir, "error", err)
		w.Stop()
		return nil
	}
	return w
}
