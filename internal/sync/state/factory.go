package state

import (
	"fmt"

	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/status"
)

// NewStateService creates a StateService based on the configured state backend.
//
// For the file backend the state is kept as JSON in the state directory.
// For the store backend it is kept in the record store's settings table,
// which the storeKV parameter must expose. Returns an error if the store
// backend is configured but storeKV is nil.
func NewStateService(cfg *config.Config, storeKV status.KeyValueStore) (StateService, error) {
	switch cfg.State.Backend {
	case config.StateBackendStore:
		if storeKV == nil {
			return nil, fmt.Errorf("record store does not support state storage")
		}
		return NewCachedStateService(status.NewStatusPersistence(storeKV)), nil
	case config.StateBackendFile, "":
		return NewCachedStateService(status.NewFileStatusPersistence(cfg.StateDir)), nil
	default:
		return nil, fmt.Errorf("unknown state backend '%s'", cfg.State.Backend)
	}
}
