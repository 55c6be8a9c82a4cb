// Package state contains logic for managing the sync state which the engine persists.
package state

import (
	"context"

	"github.com/klxm/synch/internal/status"
)

// StateService provides access to the persisted sync state.
//
//go:generate mockgen -destination=mocks/mock_state_service.go -package=mocks github.com/klxm/synch/internal/sync/state StateService
//
//nolint:revive // This name is fine
type StateService interface {
	// Initialize loads the persisted state. A run that was left in the
	// Syncing phase by a crashed process is marked Failed.
	Initialize(ctx context.Context) error
	// GetState returns a copy of the current state.
	GetState(ctx context.Context) (*status.SyncState, error)
	// UpdateState overrides the state.
	UpdateState(ctx context.Context, state *status.SyncState) error
	// UpdateStateAtomically fetches the current state, applies
	// testAndUpdateFn, and saves the state if the function reports a
	// change, all under one lock. The boolean result is the one returned
	// by testAndUpdateFn.
	UpdateStateAtomically(
		ctx context.Context,
		testAndUpdateFn func(state *status.SyncState) bool,
	) (bool, error)
}
