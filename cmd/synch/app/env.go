package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/db"
	"github.com/klxm/synch/internal/logger"
	"github.com/klxm/synch/internal/status"
	"github.com/klxm/synch/internal/store"
	"github.com/klxm/synch/internal/store/postgres"
	"github.com/klxm/synch/internal/store/sqlite"
	"github.com/klxm/synch/internal/sync"
	"github.com/klxm/synch/internal/sync/state"
	"github.com/klxm/synch/internal/telemetry"
	"github.com/klxm/synch/internal/vcs"
	"github.com/klxm/synch/internal/versions"
)

// env holds everything a command needs to talk to the store and the mirror
type env struct {
	cfg       *config.Config
	store     store.RecordStore
	fs        billy.Filesystem
	state     state.StateService
	telemetry *telemetry.Telemetry
	manager   sync.Manager
}

// loadConfig reads --config (optional) and applies --debug
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var opts []config.Option
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}

	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	if err := logger.Initialize(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured record store. The returned key/value store
// is the store's settings table.
func openStore(ctx context.Context, cfg *config.Config) (store.RecordStore, status.KeyValueStore, error) {
	switch cfg.Storage.Type {
	case config.StorageTypePostgres:
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		st := postgres.New(pool)
		return st, st, nil
	case config.StorageTypeSQLite:
		st, err := sqlite.Open(ctx, cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type '%s'", cfg.Storage.Type)
	}
}

// newEnv wires store, state, mirror, metrics and the sync manager for cfg
func newEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	st, kv, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, store: st, fs: osfs.New(cfg.BasePath)}

	e.state, err = state.NewStateService(cfg, kv)
	if err != nil {
		_ = e.Close(ctx)
		return nil, err
	}
	if err := e.state.Initialize(ctx); err != nil {
		_ = e.Close(ctx)
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}

	e.telemetry, err = telemetry.New(ctx,
		telemetry.WithEnabled(cfg.Metrics != nil && cfg.Metrics.Enabled),
		telemetry.WithServiceVersion(versions.GetVersionInfo().Version),
	)
	if err != nil {
		_ = e.Close(ctx)
		return nil, err
	}
	metrics, err := telemetry.NewSyncMetrics(e.telemetry.MeterProvider())
	if err != nil {
		_ = e.Close(ctx)
		return nil, err
	}

	opts := []sync.ManagerOption{sync.WithMetrics(metrics)}
	if cfg.Git != nil && cfg.Git.AutoCommit {
		var paths []string
		for _, k := range sync.Kinds() {
			paths = append(paths, k.Name)
		}
		committer, err := vcs.Open(cfg.BasePath, cfg.Git, paths)
		if err != nil {
			_ = e.Close(ctx)
			return nil, err
		}
		opts = append(opts, sync.WithCommitter(committer))
	}

	e.manager, err = sync.NewManager(cfg, st, e.fs, e.state, opts...)
	if err != nil {
		_ = e.Close(ctx)
		return nil, err
	}
	return e, nil
}

// Close releases the store and flushes telemetry
func (e *env) Close(ctx context.Context) error {
	var errs []error
	if e.telemetry != nil {
		errs = append(errs, e.telemetry.Shutdown(ctx))
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}

// withEnv loads configuration, builds an env and runs fn with it
func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, err := newEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(ctx); err != nil {
			logger.Warnf("Failed to close resources: %v", err)
		}
	}()
	return fn(ctx, e)
}
