package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/klxm/synch/internal/logger"
)

// Manager provides thread-safe, read-only access to a configuration file that
// may be replaced while serve mode runs. Invalid updates are rejected and the
// last good configuration stays active.
type Manager interface {
	// GetConfig returns the current configuration
	GetConfig() *Config

	// ReloadConfig reads the file again and applies it if valid
	ReloadConfig() error

	// WatchConfig reloads on external file changes. Blocks until ctx is cancelled.
	WatchConfig(ctx context.Context) error

	// Subscribe registers fn to be called with every successfully reloaded configuration
	Subscribe(fn func(*Config))

	// Close releases the file watcher
	Close() error
}

type fileManager struct {
	mu          sync.RWMutex
	config      *Config
	configPath  string
	subscribers []func(*Config)

	watcherMu sync.Mutex
	watcher   *fsnotify.Watcher
}

// NewManager loads the configuration at configPath and returns a Manager for it
func NewManager(configPath string) (Manager, error) {
	m := &fileManager{configPath: configPath}
	if err := m.ReloadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load initial configuration: %w", err)
	}
	return m, nil
}

func (m *fileManager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	configCopy := *m.config
	return &configCopy
}

func (m *fileManager) ReloadConfig() error {
	newConfig, err := LoadConfig(WithConfigPath(m.configPath))
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = newConfig
	subscribers := append([]func(*Config){}, m.subscribers...)
	m.mu.Unlock()

	for _, fn := range subscribers {
		fn(newConfig)
	}

	logger.Infof("Configuration reloaded from %s", m.configPath)
	return nil
}

func (m *fileManager) Subscribe(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

func (m *fileManager) WatchConfig(ctx context.Context) error {
	m.watcherMu.Lock()
	if m.watcher != nil {
		m.watcherMu.Unlock()
		return fmt.Errorf("config watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.watcherMu.Unlock()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	m.watcher = watcher
	m.watcherMu.Unlock()

	if err := watcher.Add(m.configPath); err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", m.configPath, err)
	}

	logger.Infof("Started watching configuration file: %s", m.configPath)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping config file watcher due to context cancellation")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher event channel closed")
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				logger.Infof("External config update detected, reloading")
				if err := m.ReloadConfig(); err != nil {
					logger.Errorf("Failed to reload config: %v", err)
				}
			}

			// editors and config maps replace the file instead of writing it
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				logger.Debugf("Config file replaced, re-watching")
				_ = watcher.Add(m.configPath)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			logger.Errorf("File watcher error: %v", err)
		}
	}
}

func (m *fileManager) Close() error {
	m.watcherMu.Lock()
	defer m.watcherMu.Unlock()

	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			return fmt.Errorf("failed to close file watcher: %w", err)
		}
		m.watcher = nil
		logger.Info("Config watcher closed")
	}

	return nil
}
