// Package helpers builds synch environments for the integration suite.
package helpers

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/onsi/gomega"

	"github.com/klxm/synch/internal/api"
	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/keys"
	"github.com/klxm/synch/internal/metadata"
	"github.com/klxm/synch/internal/store"
	"github.com/klxm/synch/internal/store/sqlite"
	"github.com/klxm/synch/internal/sync"
	"github.com/klxm/synch/internal/sync/state"
)

// Env is a store, a mirror and a manager sharing one temp directory
type Env struct {
	Config  *config.Config
	Store   *sqlite.Store
	FS      billy.Filesystem
	State   state.StateService
	Manager sync.Manager
}

// NewEnv creates an environment below dir. Extra options are applied to the
// configuration before the manager is built.
func NewEnv(ctx context.Context, dir string, configure ...func(*config.Config)) *Env {
	cfg := &config.Config{
		BasePath: filepath.Join(dir, "mirror"),
		StateDir: filepath.Join(dir, "state"),
		Options: config.SyncOptions{
			AutoGenerateKeys:            ptr(true),
			UpdateExistingOnKeyConflict: ptr(true),
			KeyGenerationStrategy:       config.KeyStrategyNameBased,
		},
		Storage: config.StorageConfig{
			Type:   config.StorageTypeSQLite,
			SQLite: &config.SQLiteConfig{Path: filepath.Join(dir, "cms.db")},
		},
		State:    config.StateConfig{Backend: config.StateBackendFile},
		AutoSync: config.AutoSyncConfig{LockTimeout: "2s"},
	}
	for _, fn := range configure {
		fn(cfg)
	}
	gomega.Expect(os.MkdirAll(cfg.BasePath, 0755)).To(gomega.Succeed())
	gomega.Expect(os.MkdirAll(cfg.StateDir, 0755)).To(gomega.Succeed())

	st, err := sqlite.Open(ctx, cfg.Storage.SQLite.Path)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	stateSvc, err := state.NewStateService(cfg, st)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	gomega.Expect(stateSvc.Initialize(ctx)).To(gomega.Succeed())

	fs := osfs.New(cfg.BasePath)
	manager, err := sync.NewManager(cfg, st, fs, stateSvc)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	return &Env{Config: cfg, Store: st, FS: fs, State: stateSvc, Manager: manager}
}

// Close releases the store
func (e *Env) Close() {
	_ = e.Store.Close()
}

// NewAPIServer serves the manager the way the serve command does
func (e *Env) NewAPIServer() *httptest.Server {
	return httptest.NewServer(api.NewServer(e.Manager,
		api.WithMiddlewares(api.AutoSyncMiddleware(e.Manager)),
	))
}

// SeedRecord inserts a record of kind last updated at updatedAt
func (e *Env) SeedRecord(ctx context.Context, kind sync.Kind, name string, fields map[string]string, updatedAt time.Time) int64 {
	id, err := e.Store.Insert(ctx, kind.Record, &store.Record{
		Name:      name,
		Fields:    fields,
		Active:    true,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
		CreatedBy: "integration",
		UpdatedBy: "integration",
	})
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return id
}

// Record returns the record of kind with key
func (e *Env) Record(ctx context.Context, kind sync.Kind, key string) *store.Record {
	rec, err := e.Store.FindByKey(ctx, kind.Record, key)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return rec
}

// ItemDir is the mirror directory of key relative to the base path
func ItemDir(kind sync.Kind, key string) string {
	return filepath.Join(kind.Name, keys.CleanKey(key))
}

// ReadItemFile reads a content file of an item
func (e *Env) ReadItemFile(kind sync.Kind, key, file string) string {
	data, err := os.ReadFile(filepath.Join(e.Config.BasePath, ItemDir(kind, key), file))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return string(data)
}

// WriteItemFile replaces a content file of an item
func (e *Env) WriteItemFile(kind sync.Kind, key, file, content string) {
	p := filepath.Join(e.Config.BasePath, ItemDir(kind, key), file)
	gomega.Expect(os.MkdirAll(filepath.Dir(p), 0755)).To(gomega.Succeed())
	gomega.Expect(os.WriteFile(p, []byte(content), 0600)).To(gomega.Succeed())
}

// Descriptor reads the metadata.yml of an item
func (e *Env) Descriptor(kind sync.Kind, key string) *metadata.Descriptor {
	desc, err := metadata.Read(e.FS, filepath.ToSlash(ItemDir(kind, key)))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return desc
}

// CreateItem writes a new item directory that only exists on disk
func (e *Env) CreateItem(kind sync.Kind, dirName string, desc *metadata.Descriptor, files map[string]string) {
	dir := filepath.ToSlash(filepath.Join(kind.Name, dirName))
	gomega.Expect(e.FS.MkdirAll(dir, 0755)).To(gomega.Succeed())
	if desc != nil {
		gomega.Expect(metadata.Write(e.FS, dir, desc)).To(gomega.Succeed())
	}
	for name, content := range files {
		gomega.Expect(metadata.WriteFileAtomic(e.FS, dir+"/"+name, []byte(content))).To(gomega.Succeed())
	}
}

func ptr[T any](v T) *T { return &v }
