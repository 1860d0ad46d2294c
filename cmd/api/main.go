package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/chessmirror/chessmirror/internal/cache"
	"github.com/chessmirror/chessmirror/internal/classify"
	"github.com/chessmirror/chessmirror/internal/config"
	"github.com/chessmirror/chessmirror/internal/engine"
	"github.com/chessmirror/chessmirror/internal/gamestore"
	"github.com/chessmirror/chessmirror/internal/httpapi"
	"github.com/chessmirror/chessmirror/internal/logx"
	"github.com/chessmirror/chessmirror/internal/progress"
	"github.com/chessmirror/chessmirror/internal/sched"
	"github.com/chessmirror/chessmirror/internal/traits"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logx.NewLogger("")
		l.Fatal().Err(err).Msg("load config")
	}

	var (
		addr          = flag.String("addr", cfg.Addr, "listen address")
		stockfishPath = flag.String("stockfish", cfg.Engine.Path, "path to engine executable (empty = auto-resolve)")
		depth         = flag.Int("depth", cfg.Engine.Depth, "engine search depth")
		workers       = flag.Int("workers", cfg.Scheduler.Workers, "analysis workers (one engine each)")
		logLevel      = flag.String("log-level", cfg.LogLevel, "log level")
	)
	flag.Parse()
	cfg.Addr = *addr
	cfg.Engine.Path = *stockfishPath
	cfg.Engine.Depth = *depth
	cfg.Scheduler.Workers = *workers
	cfg.LogLevel = *logLevel

	logger := logx.NewLogger(cfg.LogLevel)

	// Resolve the engine binary at boot so a misconfigured path fails fast
	// instead of failing the first job.
	binPath, err := engine.ResolveBinary(cfg.Engine.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("resolve engine binary")
	}
	cfg.Engine.Path = binPath
	logger.Info().Str("engine", binPath).Int("depth", cfg.Engine.Depth).Msg("engine resolved")

	var store gamestore.Store
	switch cfg.Store.Backend {
	case "postgres":
		store, err = gamestore.NewPostgres(cfg.Store.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("open postgres store")
		}
		logger.Info().Msg("using postgres game store")
	default:
		store = gamestore.NewMemory()
		logger.Info().Msg("using in-memory game store")
	}
	defer store.Close()

	var archive *gamestore.Archive
	if cfg.Store.ArchiveDir != "" {
		archive, err = gamestore.NewArchive(cfg.Store.ArchiveDir)
		if err != nil {
			logger.Fatal().Err(err).Str("dir", cfg.Store.ArchiveDir).Msg("open analysis archive")
		}
		logger.Info().Str("dir", cfg.Store.ArchiveDir).Msg("analysis archive enabled")
	}

	classifier, err := classify.New(classify.Bands{
		Good:       cfg.Classify.Good,
		Inaccuracy: cfg.Classify.Inaccuracy,
		Mistake:    cfg.Classify.Mistake,
		Blunder:    cfg.Classify.Blunder,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build classifier")
	}

	resultCache := cache.New(cfg.Cache.MaxEntries)
	tracker := progress.NewTracker(cfg.Progress.Grace(), logger.With().Str("component", "progress").Logger())

	scheduler := sched.New(sched.Config{
		Workers:       cfg.Scheduler.Workers,
		BatchCap:      cfg.Scheduler.BatchCap,
		EngineDepth:   cfg.Engine.Depth,
		EngineRetries: cfg.Scheduler.EngineRetries,
		RetryBackoff:  cfg.Scheduler.RetryBackoff(),
		ResultTTL:     cfg.Cache.TTL(),
	}, sched.Deps{
		Store:   store,
		Cache:   resultCache,
		Tracker: tracker,
		Engines: engine.NewFactory(engine.Config{
			Path:       cfg.Engine.Path,
			Depth:      cfg.Engine.Depth,
			SkillLevel: cfg.Engine.SkillLevel,
			MoveTime:   cfg.Engine.MoveTime(),
			Threads:    cfg.Engine.Threads,
			HashMB:     cfg.Engine.HashMB,
		}, logger.With().Str("component", "engine").Logger()),
		Classifier: classifier,
		Scorer:     traits.NewScorer(),
		Archive:    archive,
		Log:        logger.With().Str("component", "sched").Logger(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := tracker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("progress janitor stopped")
		}
	}()
	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      httpapi.NewRouter(logger, scheduler, tracker, resultCache, store, cfg.Cache.TTL()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Int("workers", cfg.Scheduler.Workers).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("api server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}
	logger.Info().Msg("shutdown complete")
}
