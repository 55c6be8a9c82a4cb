// Package status provides sync state tracking and persistence.
package status

import (
	"context"
	"encoding/json"
	"fmt"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

const (
	// StateName is the key the sync state is stored under
	StateName = "sync_state"
)

// StatusPersistence defines the interface for sync state persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveState saves the sync state to persistent storage
	SaveState(ctx context.Context, state *SyncState) error

	// LoadState loads the sync state from persistent storage.
	// Returns an empty SyncState if nothing was saved yet (first run)
	LoadState(ctx context.Context) (*SyncState, error)
}

// kvStatusPersistence stores the state as JSON in a KeyValueStore
type kvStatusPersistence struct {
	kv KeyValueStore
}

// NewStatusPersistence creates a StatusPersistence on top of kv
func NewStatusPersistence(kv KeyValueStore) StatusPersistence {
	return &kvStatusPersistence{kv: kv}
}

// NewFileStatusPersistence creates a file-based status persistence in dir
func NewFileStatusPersistence(dir string) StatusPersistence {
	return NewStatusPersistence(NewFileKeyValueStore(dir))
}

func (p *kvStatusPersistence) SaveState(ctx context.Context, state *SyncState) error {
	if state == nil {
		state = &SyncState{}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	if err := p.kv.Set(ctx, StateName, string(data)); err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

func (p *kvStatusPersistence) LoadState(ctx context.Context) (*SyncState, error) {
	raw, ok, err := p.kv.Get(ctx, StateName)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	if !ok {
		return &SyncState{}, nil
	}

	var state SyncState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync state: %w", err)
	}
	return &state, nil
}
