package v1

import (
	"time"

	"github.com/klxm/synch/internal/status"
	"github.com/klxm/synch/internal/sync"
)

// StartRequest is the optional body of POST /v1/sync
type StartRequest struct {
	Only   []string `json:"only,omitempty"`
	DryRun bool     `json:"dryRun,omitempty"`

	// Prefer is "store" or "files" and resolves items changed on both sides
	Prefer string `json:"prefer,omitempty"`
}

// StatusResponse is the reply of GET /v1/sync/status
type StatusResponse struct {
	*status.SyncState
	AutoSyncPaused bool `json:"autoSyncPaused"`
	HasChanges     bool `json:"hasChanges"`
}

// ReportResponse is the reply of a run
type ReportResponse struct {
	RunID      string         `json:"runId"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	DryRun     bool           `json:"dryRun"`
	Failed     bool           `json:"failed"`
	Kinds      []KindResponse `json:"kinds"`
}

// KindResponse is the outcome of one kind in a run
type KindResponse struct {
	Kind         string   `json:"kind"`
	Error        string   `json:"error,omitempty"`
	DurationMs   int64    `json:"durationMs"`
	KeysAssigned int      `json:"keysAssigned"`
	Written      int      `json:"written"`
	Unchanged    int      `json:"unchanged"`
	Created      int      `json:"created"`
	Updated      int      `json:"updated"`
	Skipped      int      `json:"skipped"`
	Conflicts    []string `json:"conflicts,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// AutoSyncResponse is the reply of POST /v1/sync/auto
type AutoSyncResponse struct {
	Reason string          `json:"reason"`
	Report *ReportResponse `json:"report,omitempty"`
}

// RenameResponse is the reply of POST /v1/sync/rename
type RenameResponse struct {
	Renamed int      `json:"renamed"`
	Errors  []string `json:"errors,omitempty"`
}

// DuplicateResponse is one group of records sharing a name
type DuplicateResponse struct {
	Kind         string  `json:"kind"`
	Name         string  `json:"name"`
	KeepID       int64   `json:"keepId"`
	KeepKey      string  `json:"keepKey,omitempty"`
	DuplicateIDs []int64 `json:"duplicateIds"`
}

// NewReportResponse converts a run report for the wire
func NewReportResponse(report *sync.Report) *ReportResponse {
	if report == nil {
		return nil
	}
	resp := &ReportResponse{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		DryRun:     report.DryRun,
		Failed:     report.Failed(),
		Kinds:      make([]KindResponse, 0, len(report.Kinds)),
	}
	for _, k := range report.Kinds {
		kr := KindResponse{Kind: k.Kind, DurationMs: k.Duration.Milliseconds()}
		if k.Err != nil {
			kr.Error = k.Err.Error()
		}
		if r := k.Result; r != nil {
			kr.KeysAssigned = r.KeysAssigned
			kr.Written = r.Written
			kr.Unchanged = r.Unchanged
			kr.Created = r.Created
			kr.Updated = r.Updated
			kr.Skipped = r.Skipped
			kr.Conflicts = errorStrings(r.Conflicts)
			kr.Errors = errorStrings(r.Errors)
		}
		resp.Kinds = append(resp.Kinds, kr)
	}
	return resp
}

func errorStrings(errs []*sync.Error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}
