package state

import (
	"context"
	"sync"
	"time"

	"github.com/klxm/synch/internal/logger"
	"github.com/klxm/synch/internal/status"
)

type cachedStateService struct {
	statusPersistence status.StatusPersistence

	mu     sync.RWMutex
	cached *status.SyncState
}

// NewCachedStateService creates a state service on top of statusPersistence.
// Reads go to the persistence layer so that changes made by other processes
// (a CLI pause while the server runs) are seen; the cached copy is served
// when the persistence layer fails.
func NewCachedStateService(statusPersistence status.StatusPersistence) StateService {
	return &cachedStateService{
		statusPersistence: statusPersistence,
	}
}

func (c *cachedStateService) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.statusPersistence.LoadState(ctx)
	if err != nil {
		logger.Warnf("Failed to load sync state, initializing with defaults: %v", err)
		state = &status.SyncState{}
	}

	if state.Phase == status.SyncPhaseSyncing {
		// The previous run was interrupted before it could record its outcome
		logger.Warnf("Previous sync was interrupted (status=Syncing), resetting to Failed")
		state.Phase = status.SyncPhaseFailed
		state.Message = "Previous sync was interrupted"
		if err := c.statusPersistence.SaveState(ctx, state); err != nil {
			logger.Warnf("Failed to persist corrected sync state: %v", err)
		}
	}

	if state.LastSyncAt != nil {
		logger.Infof("Loaded sync state: phase=%s, last sync at %s, paused=%t",
			state.Phase, state.LastSyncAt.Format(time.RFC3339), state.Paused)
	} else {
		logger.Infof("Sync state: phase=%s, no previous sync", state.Phase)
	}

	c.cached = state
	return nil
}

func (c *cachedStateService) GetState(ctx context.Context) (*status.SyncState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

func (c *cachedStateService) UpdateState(ctx context.Context, state *status.SyncState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.statusPersistence.SaveState(ctx, state); err != nil {
		return err
	}
	c.cached = state.Clone()
	return nil
}

func (c *cachedStateService) UpdateStateAtomically(
	ctx context.Context,
	testAndUpdateFn func(state *status.SyncState) bool,
) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.loadLocked(ctx)
	if err != nil {
		return false, err
	}

	working := state.Clone()
	if !testAndUpdateFn(working) {
		return false, nil
	}
	if err := c.statusPersistence.SaveState(ctx, working); err != nil {
		return false, err
	}
	c.cached = working
	return true, nil
}

// loadLocked refreshes the cache from persistence. Callers hold mu.
func (c *cachedStateService) loadLocked(ctx context.Context) (*status.SyncState, error) {
	state, err := c.statusPersistence.LoadState(ctx)
	if err != nil {
		if c.cached != nil {
			logger.Warnf("Failed to reload sync state, using cached copy: %v", err)
			return c.cached, nil
		}
		return nil, err
	}
	c.cached = state
	return state, nil
}
