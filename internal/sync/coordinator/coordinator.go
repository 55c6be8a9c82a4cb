package coordinator

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/logger"
	pkgsync "github.com/klxm/synch/internal/sync"
)

// Coordinator manages background sync scheduling
type Coordinator interface {
	// Start begins the polling loop. Blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator
	Stop() error
}

type defaultCoordinator struct {
	manager  pkgsync.Manager
	interval time.Duration

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates a new coordinator polling manager at the configured interval
func New(manager pkgsync.Manager, cfg *config.Config) Coordinator {
	return &defaultCoordinator{
		manager:  manager,
		interval: cfg.GetAutoSyncInterval(),
		done:     make(chan struct{}),
	}
}

// pollingInterval returns interval with up to ±10% jitter
func pollingInterval(interval time.Duration) time.Duration {
	jitter := int64(interval / 10)
	if jitter <= 0 {
		return interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	return interval + time.Duration(rand.Int64N(2*jitter)-jitter)
}

// Start begins background sync coordination
func (c *defaultCoordinator) Start(ctx context.Context) error {
	logger.Infof("Starting background sync coordinator (interval: %s)", c.interval)

	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		close(c.done)
		logger.Info("Background sync coordinator shutting down")
	}()

	ticker := time.NewTicker(pollingInterval(c.interval))
	defer ticker.Stop()

	// Sync once on startup
	c.tick(coordCtx)

	for {
		select {
		case <-ticker.C:
			c.tick(coordCtx)
			ticker.Reset(pollingInterval(c.interval))
		case <-coordCtx.Done():
			logger.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		logger.Info("Stopping sync coordinator")
		c.cancelFunc()
		<-c.done
	}
	return nil
}

func (c *defaultCoordinator) tick(ctx context.Context) {
	reason, report := c.manager.AutoSync(ctx, pkgsync.OriginScheduler)
	if report == nil {
		logger.Debugf("Scheduled sync skipped: %s", reason)
		return
	}
	for _, k := range report.Kinds {
		if k.Result == nil {
			continue
		}
		logger.Infof("Scheduled sync of %s: %d written, %d created, %d updated, %d conflicts, %d errors",
			k.Kind, k.Result.Written, k.Result.Created, k.Result.Updated, len(k.Result.Conflicts), len(k.Result.Errors))
	}
}
