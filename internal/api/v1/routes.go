// Package v1 provides the REST handlers for controlling synchronization.
package v1

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klxm/synch/internal/api/common"
	"github.com/klxm/synch/internal/logger"
	"github.com/klxm/synch/internal/sync"
)

// Routes holds the handlers of the sync API
type Routes struct {
	manager sync.Manager
}

// NewRoutes creates a new Routes instance for manager
func NewRoutes(manager sync.Manager) *Routes {
	return &Routes{manager: manager}
}

// Router creates the router mounted at /v1/sync
func Router(manager sync.Manager) http.Handler {
	routes := NewRoutes(manager)

	r := chi.NewRouter()
	r.Get("/status", routes.getStatus)
	r.Get("/duplicates", routes.getDuplicates)
	r.Post("/", routes.startSync)
	r.Post("/auto", routes.autoSync)
	r.Post("/pause", routes.pause)
	r.Post("/resume", routes.resume)
	r.Post("/rename", routes.rename)
	r.Post("/kinds/{kind}", routes.startKind)

	return r
}

// getStatus handles GET /v1/sync/status
func (rr *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	st, err := rr.manager.State(r.Context())
	if err != nil {
		logger.Errorf("Failed to read sync state: %v", err)
		common.WriteErrorResponse(w, "Failed to read sync state", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, StatusResponse{
		SyncState:      st,
		AutoSyncPaused: rr.manager.IsAutoSyncPaused(r.Context()),
		HasChanges:     rr.manager.HasChanges(r.Context()),
	}, http.StatusOK)
}

// startSync handles POST /v1/sync
func (rr *Routes) startSync(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := common.DecodeJSONBody(r, &req); err != nil {
		common.WriteErrorResponse(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	prefer, err := sync.ParsePreference(req.Prefer)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := sync.StartOptions{DryRun: req.DryRun, Prefer: prefer}
	for _, name := range req.Only {
		kind, err := sync.ParseKind(name)
		if err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts.Only = append(opts.Only, kind)
	}
	rr.run(w, r, opts)
}

// startKind handles POST /v1/sync/kinds/{kind}
func (rr *Routes) startKind(w http.ResponseWriter, r *http.Request) {
	name, err := common.GetAndValidateURLParam(r, "kind")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind, err := sync.ParseKind(name)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	dryRun, err := common.GetBoolQueryParam(r, "dryRun", false)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	rr.run(w, r, sync.StartOptions{Only: []sync.Kind{kind}, DryRun: dryRun})
}

func (rr *Routes) run(w http.ResponseWriter, r *http.Request, opts sync.StartOptions) {
	report, err := rr.manager.Start(r.Context(), opts)
	if err != nil && report == nil {
		logger.Errorf("Sync failed: %v", err)
		common.WriteErrorResponse(w, fmt.Sprintf("Sync failed: %v", err), http.StatusInternalServerError)
		return
	}
	if err != nil {
		logger.Warnf("Sync finished with error: %v", err)
	}

	code := http.StatusOK
	if report.Failed() {
		code = http.StatusMultiStatus
	}
	common.WriteJSONResponse(w, NewReportResponse(report), code)
}

// autoSync handles POST /v1/sync/auto; origin defaults to the scheduler
func (rr *Routes) autoSync(w http.ResponseWriter, r *http.Request) {
	origin := sync.OriginScheduler
	switch o := sync.Origin(r.URL.Query().Get("origin")); o {
	case "":
	case sync.OriginFrontend, sync.OriginBackend, sync.OriginScheduler:
		origin = o
	default:
		common.WriteErrorResponse(w, fmt.Sprintf("unknown origin %q", o), http.StatusBadRequest)
		return
	}

	reason, report := rr.manager.AutoSync(r.Context(), origin)
	common.WriteJSONResponse(w, AutoSyncResponse{Reason: reason, Report: NewReportResponse(report)}, http.StatusOK)
}

// pause handles POST /v1/sync/pause
func (rr *Routes) pause(w http.ResponseWriter, r *http.Request) {
	if err := rr.manager.PauseAutoSync(r.Context()); err != nil {
		logger.Errorf("Failed to pause auto-sync: %v", err)
		common.WriteErrorResponse(w, "Failed to pause auto-sync", http.StatusInternalServerError)
		return
	}
	rr.getStatus(w, r)
}

// resume handles POST /v1/sync/resume
func (rr *Routes) resume(w http.ResponseWriter, r *http.Request) {
	if err := rr.manager.ResumeAutoSync(r.Context()); err != nil {
		logger.Errorf("Failed to resume auto-sync: %v", err)
		common.WriteErrorResponse(w, "Failed to resume auto-sync", http.StatusInternalServerError)
		return
	}
	rr.getStatus(w, r)
}

// rename handles POST /v1/sync/rename?descriptive=true|false
func (rr *Routes) rename(w http.ResponseWriter, r *http.Request) {
	descriptive, err := common.GetBoolQueryParam(r, "descriptive", true)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := rr.manager.RenameAllFiles(r.Context(), descriptive)
	if result == nil {
		logger.Errorf("Failed to rename files: %v", err)
		common.WriteErrorResponse(w, fmt.Sprintf("Failed to rename files: %v", err), http.StatusInternalServerError)
		return
	}

	resp := RenameResponse{Renamed: result.Renamed, Errors: result.Errors}
	if err != nil {
		resp.Errors = append(resp.Errors, err.Error())
	}
	code := http.StatusOK
	if len(resp.Errors) > 0 {
		code = http.StatusMultiStatus
	}
	common.WriteJSONResponse(w, resp, code)
}

// getDuplicates handles GET /v1/sync/duplicates
func (rr *Routes) getDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := rr.manager.FindDuplicates(r.Context())
	if err != nil {
		logger.Errorf("Failed to find duplicates: %v", err)
		common.WriteErrorResponse(w, "Failed to find duplicates", http.StatusInternalServerError)
		return
	}

	resp := make([]DuplicateResponse, 0, len(groups))
	for _, g := range groups {
		d := DuplicateResponse{Kind: g.Kind, Name: g.Name, KeepID: g.Keep.ID, KeepKey: g.Keep.Key}
		for _, rec := range g.Duplicates {
			d.DuplicateIDs = append(d.DuplicateIDs, rec.ID)
		}
		resp = append(resp, d)
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}
