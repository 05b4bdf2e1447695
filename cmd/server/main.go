package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/campusbuzz/backend/internal/config"
	"github.com/campusbuzz/backend/internal/logger"
	appMiddleware "github.com/campusbuzz/backend/internal/middleware"
	"github.com/campusbuzz/backend/internal/mirror"
	"github.com/campusbuzz/backend/internal/router"
	"github.com/campusbuzz/backend/internal/services"
	"github.com/campusbuzz/backend/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
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

	if err := run(cfg); err != nil {
		zap.L().Fatal("Server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer store.Close(context.Background())

	if cfg.Seed {
		if err := storage.Seed(ctx, store, time.Now().UTC()); err != nil {
			return fmt.Errorf("seed store: %w", err)
		}
	}

	m := mirror.New(ctx, cfg.MirrorConfig())
	if c, ok := m.(io.Closer); ok {
		defer c.Close()
	}

	opts := services.LifecycleOptions{
		Admin:         cfg.AdminIdentity,
		Actor:         appMiddleware.GetAdminID,
		MirrorTimeout: cfg.MirrorTimeout,
		Delivery:      services.Delivery(cfg.MirrorDelivery),
	}
	if cfg.SendGridAPIKey != "" {
		opts.Notifier = services.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFromEmail)
	}
	if cfg.SafeSearch && m.Mode() == mirror.ModeConnected {
		screener, err := newScreener(ctx, cfg)
		if err != nil {
			zap.L().Error("SafeSearch disabled", zap.Error(err))
		} else {
			opts.Screener = screener
		}
	}

	var limiter *appMiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = appMiddleware.NewRateLimiter(appMiddleware.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		})
		go limiter.Run(ctx)
	}

	deps := router.Deps{
		Lifecycle:       services.NewLifecycleService(store, m, opts),
		Stats:           services.NewStatsService(store, m, cfg.MirrorTimeout),
		Export:          services.NewExportService(store),
		Replayer:        services.NewMirrorReplayer(store, m, cfg.MirrorTimeout),
		Mirror:          m,
		StoreDriver:     cfg.Store.Driver,
		AdminIdentity:   cfg.AdminIdentity,
		MaxUploadSizeMB: cfg.MaxUploadSizeMB,
		RateLimiter:     limiter,
	}
	if cfg.RecaptchaSecret != "" {
		deps.Captcha = services.NewRecaptchaVerifier(cfg.RecaptchaSecret)
	}
	handler := router.New(deps)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("CampusBuzz admin API starting",
			zap.String("address", cfg.ServerAddress),
			zap.String("store", cfg.Store.Driver),
			zap.String("mirror", string(m.Mode())),
			zap.String("delivery", cfg.MirrorDelivery),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newScreener(ctx context.Context, cfg *config.Config) (*services.VisionScreener, error) {
	opt, err := cfg.MirrorConfig().ClientOption()
	if err != nil {
		return nil, err
	}
	return services.NewVisionScreener(ctx, opt)
}
