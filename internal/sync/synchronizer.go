package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-logr/logr"

	"github.com/klxm/synch/internal/clock"
	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/filtering"
	"github.com/klxm/synch/internal/keys"
	"github.com/klxm/synch/internal/logger"
	"github.com/klxm/synch/internal/metadata"
	"github.com/klxm/synch/internal/store"
)

// DefaultUser is recorded as updated_by for changes made by the engine
const DefaultUser = "synch"

// Options are the reconciliation switches of one synchronizer
type Options struct {
	AutoGenerateKeys     bool
	UpdateExisting       bool
	DescriptiveFilenames bool
	KeyStrategy          keys.Strategy
}

// OptionsFromConfig converts configuration values into Options
func OptionsFromConfig(o config.SyncOptions) (Options, error) {
	strategy, err := keys.ParseStrategy(o.KeyGenerationStrategy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		AutoGenerateKeys:     o.ShouldAutoGenerateKeys(),
		UpdateExisting:       o.ShouldUpdateExisting(),
		DescriptiveFilenames: o.DescriptiveFilenames,
		KeyStrategy:          strategy,
	}, nil
}

// Preference names the side that wins when a record and its item directory
// both changed since the last sync
type Preference string

const (
	// PreferNone reports such items as conflicts and leaves both sides alone
	PreferNone Preference = ""

	// PreferStore overwrites the files with the record
	PreferStore Preference = "store"

	// PreferFiles leaves the files in place so Phase B imports them
	PreferFiles Preference = "files"
)

// ParsePreference converts a flag value to a Preference
func ParsePreference(s string) (Preference, error) {
	switch Preference(s) {
	case PreferNone, PreferStore, PreferFiles:
		return Preference(s), nil
	default:
		return "", fmt.Errorf("unknown conflict preference %q, want %q or %q", s, PreferStore, PreferFiles)
	}
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithClock sets the clock used for audit timestamps and key generation
func WithClock(c clock.Clock) Option {
	return func(s *Synchronizer) { s.clock = c }
}

// WithLocker sets the lock taken for the duration of a run
func WithLocker(l Locker) Option {
	return func(s *Synchronizer) { s.locker = l }
}

// WithDryRun makes Sync plan without writing to the store or the filesystem
func WithDryRun(dryRun bool) Option {
	return func(s *Synchronizer) { s.dryRun = dryRun }
}

// WithPreference sets how items changed on both sides are resolved
func WithPreference(p Preference) Option {
	return func(s *Synchronizer) { s.prefer = p }
}

// WithFilter sets the filter deciding which item directories take part
func WithFilter(f filtering.ItemFilter) Option {
	return func(s *Synchronizer) { s.filter = f }
}

// WithUser sets the name recorded as updated_by
func WithUser(user string) Option {
	return func(s *Synchronizer) { s.user = user }
}

// Synchronizer reconciles the records of one kind with their item
// directories under <root>/<kind>/
type Synchronizer struct {
	kind   Kind
	store  store.RecordStore
	fs     billy.Filesystem
	opts   Options
	keys   *keys.Generator
	clock  clock.Clock
	locker Locker
	filter filtering.ItemFilter
	dryRun bool
	prefer Preference
	user   string
}

// NewSynchronizer creates a Synchronizer for kind. fs is rooted at the mirror base path.
func NewSynchronizer(
	kind Kind,
	st store.RecordStore,
	fs billy.Filesystem,
	opts Options,
	options ...Option,
) (*Synchronizer, error) {
	if st == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if fs == nil {
		return nil, fmt.Errorf("filesystem is required")
	}

	s := &Synchronizer{
		kind:   kind,
		store:  st,
		fs:     fs,
		opts:   opts,
		clock:  clock.Real{},
		locker: NopLocker{},
		filter: filtering.IncludeAll(),
		user:   DefaultUser,
	}
	for _, o := range options {
		o(s)
	}

	gen, err := keys.NewGenerator(opts.KeyStrategy, s.clock)
	if err != nil {
		return nil, err
	}
	s.keys = gen
	return s, nil
}

// Kind returns the kind this synchronizer handles
func (s *Synchronizer) Kind() Kind {
	return s.kind
}

// Result summarizes one run. In dry-run the counts describe what would happen.
type Result struct {
	Kind         string
	KeysAssigned int
	Written      int
	Unchanged    int
	Created      int
	Updated      int
	Skipped      int
	Conflicts    []*Error
	Errors       []*Error
	DryRun       bool
}

// Failed reports whether any item failed or conflicted
func (r *Result) Failed() bool {
	return r != nil && (len(r.Errors) > 0 || len(r.Conflicts) > 0)
}

func (r *Result) addError(e *Error) {
	if errors.Is(e, ErrConflict) {
		r.Conflicts = append(r.Conflicts, e)
		return
	}
	r.Errors = append(r.Errors, e)
}

// item is one directory below the kind directory
type item struct {
	dir     string
	name    string
	desc    *metadata.Descriptor
	descErr error
}

// lookupKey is the key an item claims: its descriptor key, else its cleaned directory name
func (it item) lookupKey() string {
	if it.desc != nil && it.desc.Key != "" {
		return it.desc.Key
	}
	return keys.CleanKey(it.name)
}

// run holds the bookkeeping of one Sync call
type run struct {
	result *Result
	log    logr.Logger

	// index maps lookup keys to the item directories claiming them
	index map[string][]string

	// reserved holds keys handed out during this run
	reserved map[string]bool

	// written and conflicted hold directories Phase B must leave alone
	written    map[string]bool
	conflicted map[string]bool
}

// Sync runs Phase A (store to filesystem) and then Phase B (filesystem to
// store). Per-item failures are collected in the result; the returned error
// is set only when the run could not proceed at all.
func (s *Synchronizer) Sync(ctx context.Context) (*Result, error) {
	result := &Result{Kind: s.kind.Name, DryRun: s.dryRun}
	log := logger.FromContext(ctx).WithValues("kind", s.kind.Name)

	unlock, err := s.locker.Lock(ctx, s.kind.Name)
	if err != nil {
		class := ErrFilesystem
		if errors.Is(err, ErrLocked) {
			class = ErrLocked
		}
		return result, newError(class, s.kind, "", "lock", err)
	}
	defer unlock()

	if !s.dryRun {
		if err := s.fs.MkdirAll(s.kind.Name, 0755); err != nil {
			return result, newError(ErrFilesystem, s.kind, "", "create directory", err)
		}
	}

	r := &run{
		result:     result,
		log:        log,
		reserved:   make(map[string]bool),
		written:    make(map[string]bool),
		conflicted: make(map[string]bool),
	}

	items, err := s.scan()
	if err != nil {
		return result, newError(ErrFilesystem, s.kind, "", "scan", err)
	}
	r.index = indexItems(items)

	records, err := s.store.ListAll(ctx, s.kind.Record)
	if err != nil {
		return result, newError(ErrStore, s.kind, "", "list records", err)
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.exportRecord(ctx, r, rec)
	}

	if !s.dryRun {
		if items, err = s.scan(); err != nil {
			return result, newError(ErrFilesystem, s.kind, "", "scan", err)
		}
		r.index = indexItems(items)
	}

	for _, it := range s.claimedItems(r, items) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.importItem(ctx, r, it)
	}

	logger.Infof("Synced %s: %d keys assigned, %d written, %d created, %d updated, %d conflicts, %d errors",
		s.kind.Name, result.KeysAssigned, result.Written, result.Created, result.Updated,
		len(result.Conflicts), len(result.Errors))
	return result, nil
}

// scan lists the item directories of the kind that pass the filter
func (s *Synchronizer) scan() ([]item, error) {
	entries, err := s.fs.ReadDir(s.kind.Name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var items []item
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := path.Join(s.kind.Name, e.Name())
		if ok, reason := s.filter.ShouldInclude(dir); !ok {
			logger.Debugf("Skipping %s: %s", dir, reason)
			continue
		}
		it := item{dir: dir, name: e.Name()}
		it.desc, it.descErr = metadata.Read(s.fs, dir)
		items = append(items, it)
	}
	return items, nil
}

func indexItems(items []item) map[string][]string {
	index := make(map[string][]string)
	for _, it := range items {
		if it.desc == nil {
			continue
		}
		if key := it.lookupKey(); key != "" {
			index[key] = append(index[key], it.dir)
		}
	}
	return index
}

// keyTaken reports whether key is used by a record, an item directory other
// than self, or an earlier assignment in this run
func (s *Synchronizer) keyTaken(r *run, self string) keys.ExistsFunc {
	return func(ctx context.Context, key string) (bool, error) {
		if r.reserved[key] {
			return true, nil
		}
		for _, dir := range r.index[key] {
			if dir != self {
				return true, nil
			}
		}
		return s.store.KeyExists(ctx, s.kind.Record, key)
	}
}

// assignKey generates a unique key from name and reserves it
func (s *Synchronizer) assignKey(ctx context.Context, r *run, name, self string) (string, *Error) {
	base, err := s.keys.Generate(name)
	if err != nil {
		return "", newError(ErrConfiguration, s.kind, "", "generate key", err)
	}
	key, err := keys.EnsureUnique(ctx, base, s.keyTaken(r, self))
	if err != nil {
		return "", newError(ErrStore, s.kind, base, "ensure unique key", err)
	}
	r.reserved[key] = true
	return key, nil
}

// exportRecord is Phase A for one record
func (s *Synchronizer) exportRecord(ctx context.Context, r *run, rec *store.Record) {
	if rec.Key == "" {
		if !s.opts.AutoGenerateKeys {
			r.result.addError(newError(ErrConfiguration, s.kind, "", fmt.Sprintf("record %d", rec.ID),
				fmt.Errorf("record has no key and key generation is disabled")))
			return
		}
		key, kerr := s.assignKey(ctx, r, rec.Name, "")
		if kerr != nil {
			r.result.addError(kerr)
			return
		}
		if !s.dryRun {
			if err := s.store.UpdateKey(ctx, s.kind.Record, rec.ID, key); err != nil {
				r.result.addError(newError(ErrStore, s.kind, key, "assign key", err))
				return
			}
		}
		rec.Key = key
		r.result.KeysAssigned++
		r.log.V(1).Info("assigned key", "id", rec.ID, "key", key)
	}

	dirs := r.index[rec.Key]
	if len(dirs) > 1 {
		for _, d := range dirs {
			r.conflicted[d] = true
		}
		r.result.addError(newError(ErrConflict, s.kind, rec.Key, "export",
			fmt.Errorf("key is claimed by several directories: %v", dirs)))
		return
	}

	var dir string
	if len(dirs) == 1 {
		dir = dirs[0]
	} else {
		clean := keys.CleanKey(rec.Key)
		if clean == "" {
			r.result.addError(newError(ErrConfiguration, s.kind, rec.Key, "export",
				fmt.Errorf("key yields an empty directory name")))
			return
		}
		dir = path.Join(s.kind.Name, clean)
		if ok, _ := s.filter.ShouldInclude(dir); !ok {
			r.result.Skipped++
			return
		}
	}

	action, existing, err := s.needsWrite(rec, dir)
	if err != nil {
		var se *Error
		if errors.As(err, &se) && errors.Is(se, ErrConflict) {
			r.conflicted[dir] = true
			r.result.addError(se)
			return
		}
		r.result.addError(newError(ErrFilesystem, s.kind, rec.Key, "export", err))
		return
	}
	switch action {
	case keepItem:
		r.result.Unchanged++
		return
	case keepFiles:
		r.log.Info("keeping edited files over the newer record", "key", rec.Key, "dir", dir)
		return
	}

	if !s.dryRun {
		if err := s.writeItem(dir, rec, existing); err != nil {
			r.result.addError(newError(ErrFilesystem, s.kind, rec.Key, "write", err))
			return
		}
	}
	r.written[dir] = true
	r.result.Written++
	r.log.V(1).Info("wrote item", "key", rec.Key, "dir", dir)
}

// exportAction is what Phase A does with an existing item directory
type exportAction int

const (
	keepItem exportAction = iota
	writeRecord
	keepFiles
)

// needsWrite decides whether rec must be materialized into dir. It returns
// the existing descriptor, if readable, so its unknown fields survive.
func (s *Synchronizer) needsWrite(rec *store.Record, dir string) (exportAction, *metadata.Descriptor, error) {
	if _, err := s.fs.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return writeRecord, nil, nil
		}
		return keepItem, nil, err
	}

	desc, err := metadata.Read(s.fs, dir)
	if err != nil {
		if !errors.Is(err, metadata.ErrNotFound) {
			logger.Warnf("Rewriting unreadable descriptor in %s: %v", dir, err)
		}
		return writeRecord, nil, nil
	}

	if desc.Key != "" && desc.Key != rec.Key {
		return keepItem, nil, newError(ErrConflict, s.kind, rec.Key, "export",
			fmt.Errorf("directory %s belongs to key %q", dir, desc.Key))
	}

	if !truncate(rec.UpdatedAt).After(truncate(desc.UpdatedAt)) {
		return keepItem, desc, nil
	}

	if desc.Checksum == "" {
		return writeRecord, desc, nil
	}
	content, err := readContent(s.fs, s.kind, dir, rec.Key)
	if err != nil {
		return keepItem, nil, err
	}
	onDisk := checksum(s.kind, desc.Name, activeOf(desc), content.Fields)
	if onDisk == desc.Checksum || onDisk == recordChecksum(s.kind, rec) {
		return writeRecord, desc, nil
	}

	switch s.prefer {
	case PreferStore:
		logger.Warnf("Overwriting edited files in %s with the newer record %q", dir, rec.Key)
		return writeRecord, desc, nil
	case PreferFiles:
		return keepFiles, desc, nil
	}
	return keepItem, nil, newError(ErrConflict, s.kind, rec.Key, "export",
		fmt.Errorf("record and files in %s both changed since the last sync; "+
			"make the files match the record or rerun with prefer %q or %q", dir, PreferStore, PreferFiles))
}

// writeItem writes rec's content files and descriptor into dir
func (s *Synchronizer) writeItem(dir string, rec *store.Record, existing *metadata.Descriptor) error {
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := writeContent(s.fs, s.kind, dir, rec, s.opts.DescriptiveFilenames); err != nil {
		return err
	}

	desc := &metadata.Descriptor{}
	if existing != nil {
		desc.Extra = existing.Extra
	}
	desc.Key = rec.Key
	desc.Name = rec.Name
	if s.kind.HasActive {
		active := rec.Active
		desc.Active = &active
	}
	desc.CreatedAt = rec.CreatedAt
	desc.UpdatedAt = rec.UpdatedAt
	desc.CreatedBy = rec.CreatedBy
	desc.UpdatedBy = rec.UpdatedBy
	desc.Checksum = recordChecksum(s.kind, rec)
	return metadata.Write(s.fs, dir, desc)
}

// claimedItems returns the items Phase B works on: readable descriptors,
// not touched by Phase A and not sharing their key with another directory
func (s *Synchronizer) claimedItems(r *run, items []item) []item {
	var out []item
	for _, it := range items {
		if r.written[it.dir] || r.conflicted[it.dir] {
			continue
		}
		if it.desc == nil {
			if errors.Is(it.descErr, metadata.ErrNotFound) {
				r.log.V(1).Info("ignoring directory without descriptor", "dir", it.dir)
			} else {
				logger.Warnf("Skipping %s: %v", it.dir, it.descErr)
				r.result.Skipped++
			}
			continue
		}
		if key := it.lookupKey(); key != "" && len(r.index[key]) > 1 {
			r.conflicted[it.dir] = true
			r.result.addError(newError(ErrConflict, s.kind, key, "import",
				fmt.Errorf("directory %s shares its key with %v", it.dir, r.index[key])))
			continue
		}
		out = append(out, it)
	}
	return out
}

// importItem is Phase B for one item directory
func (s *Synchronizer) importItem(ctx context.Context, r *run, it item) {
	key := it.lookupKey()
	if key == "" {
		s.insertItem(ctx, r, it)
		return
	}

	rec, err := s.store.FindByKey(ctx, s.kind.Record, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.insertItem(ctx, r, it)
	case err != nil:
		r.result.addError(newError(ErrStore, s.kind, key, "find record", err))
	case !s.opts.UpdateExisting:
		r.result.Skipped++
	default:
		s.updateRecord(ctx, r, it, rec)
	}
}

// updateRecord overwrites rec with the item's values when they differ
func (s *Synchronizer) updateRecord(ctx context.Context, r *run, it item, rec *store.Record) {
	content, err := readContent(s.fs, s.kind, it.dir, rec.Key)
	if err != nil {
		r.result.addError(newError(ErrFilesystem, s.kind, rec.Key, "read item", err))
		return
	}

	updated := *rec
	updated.Fields = make(map[string]string, len(rec.Fields))
	for k, v := range rec.Fields {
		updated.Fields[k] = v
	}

	changed := false
	if it.desc.Name != "" && it.desc.Name != rec.Name {
		updated.Name = it.desc.Name
		changed = true
	}
	if s.kind.HasActive && it.desc.Active != nil && *it.desc.Active != rec.Active {
		updated.Active = *it.desc.Active
		changed = true
	}
	for _, spec := range s.kind.Files {
		for _, field := range spec.Fields {
			if !content.has(field) {
				continue
			}
			value := normalize(spec, content.Fields[field])
			if value != normalize(spec, rec.Field(field)) {
				updated.Fields[field] = value
				changed = true
			}
		}
	}
	if !changed {
		return
	}

	updated.UpdatedAt = truncate(s.clock.Now())
	updated.UpdatedBy = s.user
	if !s.dryRun {
		if err := s.store.Update(ctx, s.kind.Record, &updated); err != nil {
			r.result.addError(newError(ErrStore, s.kind, rec.Key, "update record", err))
			return
		}
		desc := *it.desc
		desc.Key = updated.Key
		desc.Name = updated.Name
		if s.kind.HasActive {
			active := updated.Active
			desc.Active = &active
		}
		desc.UpdatedAt = updated.UpdatedAt
		desc.UpdatedBy = updated.UpdatedBy
		desc.Checksum = recordChecksum(s.kind, &updated)
		if err := metadata.Write(s.fs, it.dir, &desc); err != nil {
			r.result.addError(newError(ErrFilesystem, s.kind, rec.Key, "write descriptor", err))
			return
		}
	}
	r.result.Updated++
	r.log.V(1).Info("updated record", "key", rec.Key, "dir", it.dir)
}

// insertItem creates a record from an item no record claims yet
func (s *Synchronizer) insertItem(ctx context.Context, r *run, it item) {
	key := it.desc.Key
	if key == "" {
		if !s.opts.AutoGenerateKeys {
			r.result.addError(newError(ErrConfiguration, s.kind, "", "import",
				fmt.Errorf("directory %s has no key and key generation is disabled", it.dir)))
			return
		}
		source := it.desc.Name
		if keys.CleanKey(source) == "" {
			source = it.name
		}
		var kerr *Error
		if key, kerr = s.assignKey(ctx, r, source, it.dir); kerr != nil {
			r.result.addError(kerr)
			return
		}
		r.result.KeysAssigned++
	} else if !keys.IsPathSafe(key) {
		r.result.addError(newError(ErrConfiguration, s.kind, key, "import",
			fmt.Errorf("directory %s declares a key that is not usable in file names", it.dir)))
		return
	}

	content, err := readContent(s.fs, s.kind, it.dir, key)
	if err != nil {
		r.result.addError(newError(ErrFilesystem, s.kind, key, "read item", err))
		return
	}

	now := truncate(s.clock.Now())
	rec := &store.Record{
		Key:       key,
		Name:      it.desc.Name,
		Fields:    make(map[string]string),
		Active:    true,
		CreatedAt: it.desc.CreatedAt,
		UpdatedAt: now,
		CreatedBy: it.desc.CreatedBy,
		UpdatedBy: s.user,
	}
	if rec.Name == "" {
		rec.Name = it.name
	}
	if it.desc.Active != nil {
		rec.Active = *it.desc.Active
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.CreatedBy == "" {
		rec.CreatedBy = s.user
	}
	for _, spec := range s.kind.Files {
		for _, field := range spec.Fields {
			rec.Fields[field] = normalize(spec, content.Fields[field])
		}
	}

	if !s.dryRun {
		id, err := s.store.Insert(ctx, s.kind.Record, rec)
		if err != nil {
			class := ErrStore
			if errors.Is(err, store.ErrDuplicateKey) {
				class = ErrConflict
			}
			r.result.addError(newError(class, s.kind, key, "insert record", err))
			return
		}
		rec.ID = id

		desc := *it.desc
		desc.Key = key
		desc.Name = rec.Name
		if s.kind.HasActive {
			active := rec.Active
			desc.Active = &active
		}
		desc.UpdatedAt = rec.UpdatedAt
		desc.UpdatedBy = rec.UpdatedBy
		desc.Checksum = recordChecksum(s.kind, rec)
		if err := metadata.Write(s.fs, it.dir, &desc); err != nil {
			r.result.addError(newError(ErrFilesystem, s.kind, key, "write descriptor", err))
			return
		}
	}
	r.result.Created++
	r.log.V(1).Info("created record", "key", key, "dir", it.dir)
}

// truncate drops precision the stores cannot keep
func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func activeOf(d *metadata.Descriptor) bool {
	if d.Active == nil {
		return true
	}
	return *d.Active
}
