package sync

import (
	"context"
	"errors"
	"os"
	"path"
	stdsync "sync"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/klxm/synch/internal/clock"
	"github.com/klxm/synch/internal/filtering"
	"github.com/klxm/synch/internal/logger"
	"github.com/klxm/synch/internal/store"
	"github.com/klxm/synch/internal/sync/state"
)

// DefaultChangeCacheTTL is how long a HasChanges answer is reused
const DefaultChangeCacheTTL = 60 * time.Second

// ChangeDetector tells whether anything changed since the last completed sync
type ChangeDetector interface {
	// HasChanges reports whether a record or mirror file is newer than the
	// last completed sync. Errors count as changes.
	HasChanges(ctx context.Context) bool

	// Invalidate drops the cached answer
	Invalidate()
}

// changeCache is the last answer of a detector
type changeCache struct {
	checkedAt time.Time
	result    bool
}

type defaultChangeDetector struct {
	store  store.RecordStore
	fs     billy.Filesystem
	state  state.StateService
	kinds  []Kind
	filter filtering.ItemFilter
	clock  clock.Clock
	ttl    time.Duration

	// paused short-circuits HasChanges before the cache is consulted
	paused func(ctx context.Context) bool

	mu    stdsync.Mutex
	cache *changeCache
}

// NewChangeDetector creates a ChangeDetector over the store and the mirror rooted at fs
func NewChangeDetector(
	st store.RecordStore,
	fs billy.Filesystem,
	stateSvc state.StateService,
	kinds []Kind,
	filter filtering.ItemFilter,
	clk clock.Clock,
	paused func(ctx context.Context) bool,
) ChangeDetector {
	if filter == nil {
		filter = filtering.IncludeAll()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &defaultChangeDetector{
		store:  st,
		fs:     fs,
		state:  stateSvc,
		kinds:  kinds,
		filter: filter,
		clock:  clk,
		ttl:    DefaultChangeCacheTTL,
		paused: paused,
	}
}

func (d *defaultChangeDetector) HasChanges(ctx context.Context) bool {
	if d.paused != nil && d.paused(ctx) {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	if d.cache != nil && now.Sub(d.cache.checkedAt) < d.ttl {
		return d.cache.result
	}

	result, err := d.check(ctx)
	if err != nil {
		logger.Warnf("Change detection failed, assuming changes: %v", err)
		result = true
	}
	d.cache = &changeCache{checkedAt: now, result: result}
	return result
}

func (d *defaultChangeDetector) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache = nil
}

func (d *defaultChangeDetector) check(ctx context.Context) (bool, error) {
	st, err := d.state.GetState(ctx)
	if err != nil {
		return false, err
	}
	if st.LastSyncAt == nil {
		return true, nil
	}
	since := *st.LastSyncAt

	for _, kind := range d.kinds {
		newest, err := d.store.MaxUpdatedAt(ctx, kind.Record)
		if err != nil {
			return false, err
		}
		if newest.After(since) {
			logger.Debugf("Detected %s record changes since %s", kind.Name, since.Format(time.RFC3339))
			return true, nil
		}
	}

	newest, err := d.newestModTime()
	if err != nil {
		return false, err
	}
	if newest.After(since) {
		logger.Debugf("Detected file changes since %s", since.Format(time.RFC3339))
		return true, nil
	}
	return false, nil
}

// newestModTime returns the newest mtime of the base directory, the kind
// directories, the item directories and their files
func (d *defaultChangeDetector) newestModTime() (time.Time, error) {
	var newest time.Time
	observe := func(info os.FileInfo) {
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}

	base, err := d.fs.Stat(".")
	if err != nil {
		return newest, err
	}
	observe(base)

	for _, kind := range d.kinds {
		info, err := d.fs.Stat(kind.Name)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return newest, err
		}
		observe(info)

		entries, err := d.fs.ReadDir(kind.Name)
		if err != nil {
			return newest, err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := path.Join(kind.Name, e.Name())
			if ok, _ := d.filter.ShouldInclude(dir); !ok {
				continue
			}
			observe(e)

			files, err := d.fs.ReadDir(dir)
			if err != nil {
				return newest, err
			}
			for _, f := range files {
				observe(f)
			}
		}
	}
	return newest, nil
}
