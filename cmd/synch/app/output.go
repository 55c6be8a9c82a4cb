package app

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/klxm/synch/internal/status"
	"github.com/klxm/synch/internal/sync"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#50C878"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	detailsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// renderReport prints one row per kind followed by every conflict and error
func renderReport(w io.Writer, report *sync.Report) error {
	title := "Sync run " + report.RunID
	if report.DryRun {
		title += " (dry run)"
	}
	_, _ = fmt.Fprintln(w, titleStyle.Render(title))

	table := tablewriter.NewWriter(w)
	table.Header("Kind", "Keys", "Written", "Created", "Updated", "Unchanged", "Skipped", "Conflicts", "Errors", "Duration")
	for _, k := range report.Kinds {
		r := k.Result
		if r == nil {
			r = &sync.Result{Kind: k.Kind}
		}
		row := []string{
			k.Kind,
			strconv.Itoa(r.KeysAssigned),
			strconv.Itoa(r.Written),
			strconv.Itoa(r.Created),
			strconv.Itoa(r.Updated),
			strconv.Itoa(r.Unchanged),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(len(r.Conflicts)),
			strconv.Itoa(len(r.Errors)),
			k.Duration.Round(time.Millisecond).String(),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, k := range report.Kinds {
		if k.Err != nil {
			_, _ = fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("%s: %v", k.Kind, k.Err)))
		}
		if k.Result == nil {
			continue
		}
		for _, c := range k.Result.Conflicts {
			_, _ = fmt.Fprintln(w, warnStyle.Render("conflict: "+c.Error()))
		}
		for _, e := range k.Result.Errors {
			_, _ = fmt.Fprintln(w, failStyle.Render("error: "+e.Error()))
		}
	}

	if report.Failed() {
		_, _ = fmt.Fprintln(w, failStyle.Render("Sync finished with failures"))
	} else {
		_, _ = fmt.Fprintln(w, okStyle.Render("Sync finished"))
	}
	return nil
}

// renderState prints the persisted engine state
func renderState(w io.Writer, st *status.SyncState, paused bool) error {
	_, _ = fmt.Fprintln(w, titleStyle.Render("Sync state"))

	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	rows := [][]string{
		{"Auto-sync paused", strconv.FormatBool(paused)},
		{"Paused at", formatTime(st.PausedAt)},
		{"Last sync", formatTime(st.LastSyncAt)},
		{"Last attempt", formatTime(st.LastAttempt)},
		{"Last run", st.LastRunID},
		{"Phase", string(st.Phase)},
		{"Message", st.Message},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	if len(st.Kinds) == 0 {
		return nil
	}
	kinds := tablewriter.NewWriter(w)
	kinds.Header("Kind", "Written", "Created", "Updated", "Skipped", "Conflicts", "Errors")
	for _, k := range sync.Kinds() {
		s, ok := st.Kinds[k.Name]
		if !ok {
			continue
		}
		row := []string{
			k.Name,
			strconv.Itoa(s.Written),
			strconv.Itoa(s.Created),
			strconv.Itoa(s.Updated),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Conflicts),
			strconv.Itoa(s.Errors),
		}
		if err := kinds.Append(row); err != nil {
			return err
		}
	}
	return kinds.Render()
}

// renderDuplicates prints one row per record that shares its name with an older one
func renderDuplicates(w io.Writer, groups []sync.DuplicateGroup) error {
	if len(groups) == 0 {
		_, _ = fmt.Fprintln(w, okStyle.Render("No duplicate names found"))
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Kind", "Name", "Keep", "Duplicate")
	for _, g := range groups {
		for _, d := range g.Duplicates {
			row := []string{g.Kind, g.Name, recordLabel(g.Keep.ID, g.Keep.Key), recordLabel(d.ID, d.Key)}
			if err := table.Append(row); err != nil {
				return err
			}
		}
	}
	return table.Render()
}

func recordLabel(id int64, key string) string {
	if key == "" {
		return fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("#%d (%s)", id, key)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return detailsStyle.Render("never")
	}
	return t.Local().Format(time.RFC3339)
}
