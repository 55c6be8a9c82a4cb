package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/klxm/synch/internal/api"
	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/logger"
	"github.com/klxm/synch/internal/sync"
	"github.com/klxm/synch/internal/sync/coordinator"
	"github.com/klxm/synch/internal/telemetry"
)

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 5 * time.Minute
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = serverRequestTimeout + 15*time.Second
	serverIdleTimeout      = 60 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync API and the scheduled auto-sync",
		Long: `Start the HTTP API and a background coordinator that runs an automatic
sync every autoSync.interval while changes are pending.

Requests carrying an X-Synch-Origin header of "frontend" or "backend" trigger
an automatic sync first, mirroring the page-load hooks of the CMS.`,
		RunE: runServe,
	}
	cmd.Flags().String("address", "", "Address to listen on (overrides server.address)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	address := cfg.GetServerAddress()
	if flag, _ := cmd.Flags().GetString("address"); flag != "" {
		address = flag
	}

	e, err := newEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(context.Background()); err != nil {
			logger.Warnf("Failed to close resources: %v", err)
		}
	}()

	httpMetrics, err := telemetry.MetricsMiddleware(e.telemetry.MeterProvider(), sync.KindNames()...)
	if err != nil {
		return fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	router := api.NewServer(e.manager,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
			httpMetrics,
			api.AutoSyncMiddleware(e.manager),
		),
		api.WithMetricsHandler(e.telemetry.Handler()),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	watchConfig(ctx, cmd)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coordinator.New(e.manager, cfg).Start(gctx)
	})
	g.Go(func() error {
		logger.Infof("Starting sync API server on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server shutdown complete")
	return nil
}

// watchConfig reloads the logger when the --config file changes. Other
// settings take effect on the next start.
func watchConfig(ctx context.Context, cmd *cobra.Command) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return
	}

	mgr, err := config.NewManager(path)
	if err != nil {
		logger.Warnf("Configuration reload disabled: %v", err)
		return
	}
	mgr.Subscribe(func(cfg *config.Config) {
		if err := logger.Initialize(cfg.Log); err != nil {
			logger.Warnf("Failed to apply reloaded log settings: %v", err)
			return
		}
		logger.Info("Configuration reloaded; settings other than logging apply after restart")
	})

	go func() {
		defer func() { _ = mgr.Close() }()
		if err := mgr.WatchConfig(ctx); err != nil {
			logger.Warnf("Configuration watcher stopped: %v", err)
		}
	}()
}
