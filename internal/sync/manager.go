package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	stdsync "sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"github.com/klxm/synch/internal/clock"
	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/filtering"
	"github.com/klxm/synch/internal/logger"
	"github.com/klxm/synch/internal/status"
	"github.com/klxm/synch/internal/store"
	"github.com/klxm/synch/internal/sync/state"
	"github.com/klxm/synch/internal/telemetry"
)

// PauseWindow is how long a pause suppresses automatic syncs
const PauseWindow = 30 * time.Minute

// Origin identifies what triggered an automatic sync
type Origin string

const (
	// OriginFrontend is a request to the public site
	OriginFrontend Origin = "frontend"

	// OriginBackend is a request to the administration area
	OriginBackend Origin = "backend"

	// OriginScheduler is the periodic coordinator in serve mode
	OriginScheduler Origin = "scheduler"
)

// Auto-sync reason constants
const (
	ReasonPaused            = "auto-sync-paused"
	ReasonOriginDisabled    = "origin-disabled"
	ReasonNoChanges         = "no-changes-detected"
	ReasonChangesDetected   = "changes-detected"
	ReasonAlreadyInProgress = "sync-already-in-progress"
)

// StartOptions select what a run covers
type StartOptions struct {
	// Only limits the run to these kinds; empty means all kinds
	Only   []Kind
	DryRun bool

	// Prefer resolves items changed on both sides; empty reports a conflict
	Prefer Preference
}

// KindReport is the outcome of one kind within a run
type KindReport struct {
	Kind     string
	Result   *Result
	Err      error
	Duration time.Duration
}

// Failed reports whether the kind could not run or had item failures
func (k KindReport) Failed() bool {
	return k.Err != nil || k.Result.Failed()
}

// Report is the outcome of one run
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Kinds      []KindReport
}

// Failed reports whether any kind failed
func (r *Report) Failed() bool {
	if r == nil {
		return false
	}
	for _, k := range r.Kinds {
		if k.Failed() {
			return true
		}
	}
	return false
}

// Changed reports whether the run wrote to the mirror
func (r *Report) Changed() bool {
	if r == nil || r.DryRun {
		return false
	}
	for _, k := range r.Kinds {
		if k.Result != nil && k.Result.Written+k.Result.Created+k.Result.Updated > 0 {
			return true
		}
	}
	return false
}

// Manager orchestrates runs over every kind and owns the pause state
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/klxm/synch/internal/sync Manager
type Manager interface {
	// Start runs the selected kinds in order. A failing kind does not stop the others.
	Start(ctx context.Context, opts StartOptions) (*Report, error)

	// AutoSync runs a full sync when origin is enabled, auto-sync is not
	// paused and changes were detected. Errors are logged, never returned.
	AutoSync(ctx context.Context, origin Origin) (string, *Report)

	// PauseAutoSync suppresses automatic syncs for PauseWindow
	PauseAutoSync(ctx context.Context) error

	// ResumeAutoSync lifts a pause
	ResumeAutoSync(ctx context.Context) error

	// IsAutoSyncPaused reports whether a pause is in effect, lifting an expired one
	IsAutoSyncPaused(ctx context.Context) bool

	// HasChanges reports whether anything changed since the last completed sync
	HasChanges(ctx context.Context) bool

	// RenameAllFiles converts content file names of every kind
	RenameAllFiles(ctx context.Context, toDescriptive bool) (*RenameResult, error)

	// FindDuplicates lists records sharing a name, per kind
	FindDuplicates(ctx context.Context) ([]DuplicateGroup, error)

	// State returns the persisted sync state
	State(ctx context.Context) (*status.SyncState, error)
}

// Committer records the mirror's state after a run that changed it
type Committer interface {
	Commit(ctx context.Context, message string) error
}

// ManagerOption configures the default Manager
type ManagerOption func(*defaultManager)

// WithManagerClock sets the clock for run times, pauses and synchronizers
func WithManagerClock(c clock.Clock) ManagerOption {
	return func(m *defaultManager) { m.clock = c }
}

// WithManagerLocker replaces the file locker derived from the configuration
func WithManagerLocker(l Locker) ManagerOption {
	return func(m *defaultManager) { m.locker = l }
}

// WithCommitter commits the mirror after runs that changed it
func WithCommitter(c Committer) ManagerOption {
	return func(m *defaultManager) { m.committer = c }
}

// WithMetrics records run durations and item counts
func WithMetrics(metrics *telemetry.SyncMetrics) ManagerOption {
	return func(m *defaultManager) { m.metrics = metrics }
}

type defaultManager struct {
	cfg       *config.Config
	opts      Options
	store     store.RecordStore
	fs        billy.Filesystem
	state     state.StateService
	filter    filtering.ItemFilter
	detector  ChangeDetector
	clock     clock.Clock
	locker    Locker
	committer Committer
	metrics   *telemetry.SyncMetrics

	// mu serializes runs within the process
	mu stdsync.Mutex
}

// NewManager creates the default Manager for the mirror rooted at fs
func NewManager(
	cfg *config.Config,
	st store.RecordStore,
	fs billy.Filesystem,
	stateSvc state.StateService,
	options ...ManagerOption,
) (Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if stateSvc == nil {
		return nil, fmt.Errorf("state service is required")
	}

	opts, err := OptionsFromConfig(cfg.Options)
	if err != nil {
		return nil, err
	}
	filter, err := filtering.NewItemFilter(cfg.Include, cfg.Ignore)
	if err != nil {
		return nil, err
	}

	m := &defaultManager{
		cfg:    cfg,
		opts:   opts,
		store:  st,
		fs:     fs,
		state:  stateSvc,
		filter: filter,
		clock:  clock.Real{},
		locker: NewFileLocker(cfg.StateDir, cfg.GetLockTimeout()),
	}
	for _, o := range options {
		o(m)
	}
	m.detector = NewChangeDetector(st, fs, stateSvc, Kinds(), filter, m.clock, m.IsAutoSyncPaused)
	return m, nil
}

func (m *defaultManager) newSynchronizer(kind Kind, opts StartOptions) (*Synchronizer, error) {
	return NewSynchronizer(kind, m.store, m.fs, m.opts,
		WithClock(m.clock),
		WithLocker(m.locker),
		WithFilter(m.filter),
		WithDryRun(opts.DryRun),
		WithPreference(opts.Prefer),
	)
}

func (m *defaultManager) Start(ctx context.Context, opts StartOptions) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run(ctx, opts)
}

// run executes one sync. Callers hold mu.
func (m *defaultManager) run(ctx context.Context, opts StartOptions) (*Report, error) {
	kinds := opts.Only
	if len(kinds) == 0 {
		kinds = Kinds()
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to create run id: %w", err)
	}
	report := &Report{
		RunID:     runID.String(),
		StartedAt: m.clock.Now().UTC(),
		DryRun:    opts.DryRun,
	}
	ctx = logger.NewContext(ctx, logger.FromContext(ctx).WithValues("run", report.RunID))

	if !opts.DryRun {
		_, err := m.state.UpdateStateAtomically(ctx, func(s *status.SyncState) bool {
			startedAt := report.StartedAt
			s.Phase = status.SyncPhaseSyncing
			s.LastAttempt = &startedAt
			s.LastRunID = report.RunID
			s.Message = ""
			return true
		})
		if err != nil {
			logger.Warnf("Failed to record sync start: %v", err)
		}
	}

	logger.Infof("Starting sync run %s (dry-run: %t)", report.RunID, opts.DryRun)
	for _, kind := range kinds {
		report.Kinds = append(report.Kinds, m.runKind(ctx, kind, opts))
	}
	report.FinishedAt = m.clock.Now().UTC()

	m.detector.Invalidate()
	if opts.DryRun {
		return report, nil
	}

	if err := m.recordOutcome(ctx, report); err != nil {
		return report, fmt.Errorf("failed to record sync outcome: %w", err)
	}

	if m.committer != nil && report.Changed() {
		if err := m.committer.Commit(ctx, commitMessage(report)); err != nil {
			logger.Warnf("Failed to commit mirror after run %s: %v", report.RunID, err)
		}
	}
	return report, nil
}

func (m *defaultManager) runKind(ctx context.Context, kind Kind, opts StartOptions) KindReport {
	started := m.clock.Now()
	kr := KindReport{Kind: kind.Name}

	syncer, err := m.newSynchronizer(kind, opts)
	if err != nil {
		kr.Err = err
	} else {
		kr.Result, kr.Err = syncer.Sync(ctx)
	}
	kr.Duration = m.clock.Now().Sub(started)

	if kr.Err != nil {
		logger.Errorf("Sync of %s failed: %v", kind.Name, kr.Err)
	}
	for _, e := range resultErrors(kr.Result) {
		logger.Warnf("Sync of %s: %v", kind.Name, e)
	}

	if !opts.DryRun {
		m.metrics.RecordSyncDuration(ctx, kind.Name, kr.Duration, !kr.Failed())
		if r := kr.Result; r != nil {
			m.metrics.RecordItemOperations(ctx, kind.Name, "written", r.Written)
			m.metrics.RecordItemOperations(ctx, kind.Name, "created", r.Created)
			m.metrics.RecordItemOperations(ctx, kind.Name, "updated", r.Updated)
			m.metrics.RecordItemOperations(ctx, kind.Name, "conflict", len(r.Conflicts))
			m.metrics.RecordItemOperations(ctx, kind.Name, "error", len(r.Errors))
		}
	}
	return kr
}

func resultErrors(r *Result) []*Error {
	if r == nil {
		return nil
	}
	return append(append([]*Error{}, r.Conflicts...), r.Errors...)
}

// recordOutcome stores phase, summary and, when no kind failed fatally, the sync time
func (m *defaultManager) recordOutcome(ctx context.Context, report *Report) error {
	fatal := false
	var failed []string
	summaries := make(map[string]status.KindSummary, len(report.Kinds))
	for _, k := range report.Kinds {
		if k.Err != nil {
			fatal = true
		}
		if k.Failed() {
			failed = append(failed, k.Kind)
		}
		if r := k.Result; r != nil {
			summaries[k.Kind] = status.KindSummary{
				Created:   r.Created,
				Updated:   r.Updated,
				Written:   r.Written,
				Skipped:   r.Skipped,
				Conflicts: len(r.Conflicts),
				Errors:    len(r.Errors),
			}
		}
	}

	_, err := m.state.UpdateStateAtomically(ctx, func(s *status.SyncState) bool {
		s.Kinds = summaries
		if len(failed) > 0 {
			s.Phase = status.SyncPhaseFailed
			s.Message = "Sync failed for " + strings.Join(failed, ", ")
		} else {
			s.Phase = status.SyncPhaseComplete
			s.Message = "Sync completed"
		}
		if !fatal {
			finishedAt := report.FinishedAt
			s.LastSyncAt = &finishedAt
		}
		return true
	})
	return err
}

func commitMessage(report *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "synch: run %s\n\n", report.RunID)
	for _, k := range report.Kinds {
		if k.Result == nil {
			fmt.Fprintf(&b, "%s: failed\n", k.Kind)
			continue
		}
		fmt.Fprintf(&b, "%s: %d written, %d created, %d updated\n",
			k.Kind, k.Result.Written, k.Result.Created, k.Result.Updated)
	}
	return b.String()
}

func (m *defaultManager) AutoSync(ctx context.Context, origin Origin) (string, *Report) {
	switch origin {
	case OriginFrontend:
		if !m.cfg.Options.SyncFrontend {
			return ReasonOriginDisabled, nil
		}
	case OriginBackend:
		if !m.cfg.Options.SyncBackend {
			return ReasonOriginDisabled, nil
		}
	}

	if m.IsAutoSyncPaused(ctx) {
		return ReasonPaused, nil
	}
	if !m.detector.HasChanges(ctx) {
		return ReasonNoChanges, nil
	}

	if !m.mu.TryLock() {
		return ReasonAlreadyInProgress, nil
	}
	defer m.mu.Unlock()

	logger.Infof("Auto-sync triggered by %s", origin)
	report, err := m.run(ctx, StartOptions{})
	if err != nil {
		logger.Errorf("Auto-sync failed: %v", err)
	}
	return ReasonChangesDetected, report
}

func (m *defaultManager) PauseAutoSync(ctx context.Context) error {
	now := m.clock.Now().UTC()
	_, err := m.state.UpdateStateAtomically(ctx, func(s *status.SyncState) bool {
		s.Paused = true
		s.PausedAt = &now
		return true
	})
	if err == nil {
		logger.Infof("Auto-sync paused until %s", now.Add(PauseWindow).Format(time.RFC3339))
	}
	return err
}

func (m *defaultManager) ResumeAutoSync(ctx context.Context) error {
	_, err := m.state.UpdateStateAtomically(ctx, func(s *status.SyncState) bool {
		if !s.Paused && s.PausedAt == nil {
			return false
		}
		s.Paused = false
		s.PausedAt = nil
		return true
	})
	if err == nil {
		m.detector.Invalidate()
	}
	return err
}

func (m *defaultManager) IsAutoSyncPaused(ctx context.Context) bool {
	st, err := m.state.GetState(ctx)
	if err != nil {
		logger.Warnf("Failed to read pause state: %v", err)
		return false
	}
	if !st.Paused {
		return false
	}
	if st.PausedAt != nil && m.clock.Now().Sub(*st.PausedAt) >= PauseWindow {
		logger.Infof("Auto-sync pause expired, resuming")
		if err := m.ResumeAutoSync(ctx); err != nil {
			logger.Warnf("Failed to lift expired pause: %v", err)
		}
		return false
	}
	return true
}

func (m *defaultManager) HasChanges(ctx context.Context) bool {
	return m.detector.HasChanges(ctx)
}

func (m *defaultManager) RenameAllFiles(ctx context.Context, toDescriptive bool) (*RenameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &RenameResult{}
	var errs []error
	for _, kind := range Kinds() {
		syncer, err := m.newSynchronizer(kind, StartOptions{})
		if err != nil {
			return nil, err
		}
		r, err := syncer.RenameFiles(ctx, toDescriptive)
		result.merge(r)
		if err != nil {
			errs = append(errs, err)
		}
	}
	m.detector.Invalidate()
	logger.Infof("Renamed %d files (descriptive: %t), %d errors", result.Renamed, toDescriptive, len(result.Errors))
	return result, errors.Join(errs...)
}

func (m *defaultManager) FindDuplicates(ctx context.Context) ([]DuplicateGroup, error) {
	return FindDuplicates(ctx, m.store, Kinds())
}

func (m *defaultManager) State(ctx context.Context) (*status.SyncState, error) {
	return m.state.GetState(ctx)
}
