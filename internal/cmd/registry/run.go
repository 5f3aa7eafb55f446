package registryrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cfgpkg "github.com/ersinkoc/DistributedWebSocket/internal/config"
	"github.com/ersinkoc/DistributedWebSocket/internal/registry"
	logpkg "github.com/ersinkoc/DistributedWebSocket/pkg/log"
)

// Options carries the resolved configuration for a registry process.
type Options struct {
	Config cfgpkg.Config
}

// Run starts the registry service and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if err := cfg.ValidateRegistry(); err != nil {
		return err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}

	procLogger, err := logpkg.ApplyConfig(&logpkg.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	if err != nil {
		procLogger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	logpkg.RedirectStdLog(procLogger)

	store, err := registry.OpenStore(filepath.Join(cfg.DataDir, "registry"))
	if err != nil {
		return err
	}
	defer store.Close()

	svc := registry.NewService(store, cfg, procLogger)
	srv := registry.NewServer(svc, cfg.APIKey, procLogger)

	procLogger.Info("registry starting",
		logpkg.Str("addr", cfg.RegistryAddr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("liveness_window", cfg.LivenessWindow.Std().String()),
	)

	if err := srv.ListenAndServe(sctx, cfg.RegistryAddr); err != nil && sctx.Err() == nil {
		return err
	}
	srv.Close()
	return nil
}
