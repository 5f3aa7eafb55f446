package gatewayrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cfgpkg "github.com/ersinkoc/DistributedWebSocket/internal/config"
	"github.com/ersinkoc/DistributedWebSocket/internal/gateway"
	logpkg "github.com/ersinkoc/DistributedWebSocket/pkg/log"
)

// Options carries the resolved configuration for a gateway process.
type Options struct {
	Config cfgpkg.Config
}

// Run starts a gateway node and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers
	// that pass context.Background still get clean shutdown.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	procLogger, err := logpkg.ApplyConfig(&logpkg.Config{
		Level:  opts.Config.LogLevel,
		Format: opts.Config.LogFormat,
	})
	if err != nil {
		procLogger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	logpkg.RedirectStdLog(procLogger)

	gw, err := gateway.New(opts.Config, procLogger)
	if err != nil {
		return err
	}
	if err := gw.Run(sctx); err != nil && sctx.Err() == nil {
		return err
	}
	return nil
}
