package status

import "time"

// SyncPhase represents the current phase of a synchronization run
type SyncPhase string

const (
	// SyncPhaseSyncing means a run is in progress
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means the last run finished without item errors
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means the last run reported errors
	SyncPhaseFailed SyncPhase = "Failed"
)

// KindSummary holds the counts of the last run for one kind
type KindSummary struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Written   int `json:"written"`
	Skipped   int `json:"skipped"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
}

// SyncState is the persisted state of the reconciliation engine
type SyncState struct {
	// Paused suppresses automatic syncs until PausedAt + the pause window
	Paused bool `json:"paused"`

	// PausedAt is when the pause was requested
	PausedAt *time.Time `json:"pausedAt,omitempty"`

	// LastSyncAt is when the last non-dry run without a failed kind finished
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`

	// LastAttempt is the start time of the last run of any kind
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// LastRunID identifies the last run in logs
	LastRunID string `json:"lastRunId,omitempty"`

	// Phase of the last run
	Phase SyncPhase `json:"phase,omitempty"`

	// Message provides additional information about the last run
	Message string `json:"message,omitempty"`

	// Kinds holds per-kind counts of the last run
	Kinds map[string]KindSummary `json:"kinds,omitempty"`
}

// Clone returns a deep copy of s
func (s *SyncState) Clone() *SyncState {
	if s == nil {
		return nil
	}
	c := *s
	c.PausedAt = cloneTime(s.PausedAt)
	c.LastSyncAt = cloneTime(s.LastSyncAt)
	c.LastAttempt = cloneTime(s.LastAttempt)
	if s.Kinds != nil {
		c.Kinds = make(map[string]KindSummary, len(s.Kinds))
		for k, v := range s.Kinds {
			c.Kinds[k] = v
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
