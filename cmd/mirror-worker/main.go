// Command mirror-worker drains the Firebase mirror outbox of a persistent
// store. Run it next to a server configured with mirror.delivery=outbox.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/campusbuzz/backend/internal/config"
	"github.com/campusbuzz/backend/internal/logger"
	"github.com/campusbuzz/backend/internal/mirror"
	"github.com/campusbuzz/backend/internal/services"
	"github.com/campusbuzz/backend/internal/storage"
)

func main() {
	fs := pflag.NewFlagSet("mirror-worker", pflag.ContinueOnError)
	once := fs.Bool("once", false, "replay pending tasks once and exit")
	interval := fs.Duration("interval", 30*time.Second, "time between replay passes")
	batch := fs.Int("batch", 100, "maximum tasks per pass")
	configFile := fs.String("config", "", "path to a config.toml file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flags: %v\n", err)
		os.Exit(2)
	}

	var configArgs []string
	if *configFile != "" {
		configArgs = []string{"--config", *configFile}
	}
	cfg, err := config.Load(configArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := storage.RequireShared(cfg.Store.Driver); err != nil {
		zap.L().Fatal("mirror-worker needs a store shared with the server; set store.driver to mongo, postgres or sqlite", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		zap.L().Fatal("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer store.Close(context.Background())

	m := mirror.New(ctx, cfg.MirrorConfig())
	if c, ok := m.(io.Closer); ok {
		defer c.Close()
	}
	if m.Mode() != mirror.ModeConnected {
		zap.L().Warn("Mirror is in demo mode; replayed tasks will only be logged")
	}

	replayer := services.NewMirrorReplayer(store, m, cfg.MirrorTimeout)

	pass := func() {
		res, err := replayer.Replay(ctx, *batch)
		if err != nil {
			zap.L().Error("Replay pass failed", zap.Error(err))
			return
		}
		zap.L().Debug("Replay pass done", zap.Int("replayed", res.Replayed), zap.Int("failed", res.Failed))
	}

	if *once {
		pass()
		return
	}

	zap.L().Info("mirror-worker started", zap.Duration("interval", *interval), zap.Int("batch", *batch))
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		pass()
		select {
		case <-ctx.Done():
			zap.L().Info("mirror-worker stopped")
			return
		case <-ticker.C:
		}
	}
}

