package status

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

//go:generate mockgen -destination=mocks/mock_kv.go -package=mocks -source=kv.go KeyValueStore

// KeyValueStore persists small named string values
type KeyValueStore interface {
	// Get returns the value of name and whether it exists
	Get(ctx context.Context, name string) (string, bool, error)

	// Set stores value under name, replacing any previous value
	Set(ctx context.Context, name, value string) error
}

// fileKeyValueStore keeps one file per name below dir
type fileKeyValueStore struct {
	dir string
}

// NewFileKeyValueStore creates a KeyValueStore that writes <dir>/<name>.json.
// Files are replaced atomically.
func NewFileKeyValueStore(dir string) KeyValueStore {
	return &fileKeyValueStore{dir: dir}
}

func (f *fileKeyValueStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || !filepath.IsLocal(name) {
		return "", fmt.Errorf("invalid state name %q", name)
	}
	return filepath.Join(f.dir, name+".json"), nil
}

func (f *fileKeyValueStore) Get(_ context.Context, name string) (string, bool, error) {
	p, err := f.path(name)
	if err != nil {
		return "", false, err
	}
	// #nosec G304 -- name is validated above
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read state file %s: %w", p, err)
	}
	return string(data), true, nil
}

func (f *fileKeyValueStore) Set(_ context.Context, name, value string) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0750); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", f.dir, err)
	}
	if err := atomic.WriteFile(p, bytes.NewReader([]byte(value))); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", p, err)
	}
	return nil
}
