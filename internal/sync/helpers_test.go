package sync

import (
	"context"
	"os"
	"path"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/klxm/synch/internal/clock"
	"github.com/klxm/synch/internal/keys"
	"github.com/klxm/synch/internal/metadata"
	"github.com/klxm/synch/internal/store"
	"github.com/klxm/synch/internal/store/sqlite"
)

var (
	t0 = time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	t1 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func defaultOptions() Options {
	return Options{
		AutoGenerateKeys: true,
		UpdateExisting:   true,
		KeyStrategy:      keys.NameBased,
	}
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestSynchronizer(
	t *testing.T, kind Kind, st store.RecordStore, fs billy.Filesystem, clk clock.Clock, opts Options, extra ...Option,
) *Synchronizer {
	t.Helper()
	s, err := NewSynchronizer(kind, st, fs, opts, append([]Option{WithClock(clk)}, extra...)...)
	require.NoError(t, err)
	return s
}

func seed(t *testing.T, st store.RecordStore, kind Kind, rec *store.Record) int64 {
	t.Helper()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = t0
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = t0
	}
	if rec.CreatedBy == "" {
		rec.CreatedBy = "admin"
	}
	if rec.UpdatedBy == "" {
		rec.UpdatedBy = "admin"
	}
	id, err := st.Insert(context.Background(), kind.Record, rec)
	require.NoError(t, err)
	return id
}

func findRecord(t *testing.T, st store.RecordStore, kind Kind, key string) *store.Record {
	t.Helper()
	rec, err := st.FindByKey(context.Background(), kind.Record, key)
	require.NoError(t, err)
	return rec
}

// writeTestItem creates an item directory with a descriptor and content files
func writeTestItem(t *testing.T, fs billy.Filesystem, dir string, desc *metadata.Descriptor, files map[string]string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(dir, 0755))
	if desc != nil {
		require.NoError(t, metadata.Write(fs, dir, desc))
	}
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, path.Join(dir, name), []byte(content), 0644))
	}
}

func readTestFile(t *testing.T, fs billy.Filesystem, name string) string {
	t.Helper()
	data, err := util.ReadFile(fs, name)
	require.NoError(t, err)
	return string(data)
}

func readTestDescriptor(t *testing.T, fs billy.Filesystem, dir string) *metadata.Descriptor {
	t.Helper()
	desc, err := metadata.Read(fs, dir)
	require.NoError(t, err)
	return desc
}

var errNotExist = os.ErrNotExist

func boolPtr(b bool) *bool { return &b }

// lockedLocker simulates a lock held by another process
type lockedLocker struct{}

func (lockedLocker) Lock(context.Context, string) (func(), error) {
	return nil, ErrLocked
}
