package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klxm/synch/internal/sync"
)

// errSyncFailed makes the process exit non-zero after the report was printed
var errSyncFailed = errors.New("sync finished with failures")

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the store with the mirror directory",
		Long: `Run one synchronization of modules, templates and actions.

Each kind is written from the store to disk first, then every directory that
was not just written is imported back into the store. Without a selection
flag all kinds are synchronized in order.

Examples:
  # Synchronize everything
  synch sync --config synch.yaml

  # Only templates, without touching store or disk
  synch sync --config synch.yaml -t --dry-run

  # Resolve items edited on both sides by keeping the edited files
  synch sync --config synch.yaml --prefer files`,
		RunE: runSync,
	}
	cmd.Flags().BoolP("modules-only", "m", false, "Only synchronize modules")
	cmd.Flags().BoolP("templates-only", "t", false, "Only synchronize templates")
	cmd.Flags().BoolP("actions-only", "a", false, "Only synchronize actions")
	cmd.Flags().BoolP("dry-run", "d", false, "Report what would change without writing")
	cmd.Flags().String("prefer", "", `Resolve items changed on both sides: "store" or "files"`)
	return cmd
}

// selectedKinds maps the *-only flags to kinds; none set means all
func selectedKinds(cmd *cobra.Command) ([]sync.Kind, error) {
	flags := []struct {
		name string
		kind sync.Kind
	}{
		{"modules-only", sync.Modules},
		{"templates-only", sync.Templates},
		{"actions-only", sync.Actions},
	}

	var kinds []sync.Kind
	for _, f := range flags {
		set, err := cmd.Flags().GetBool(f.name)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s flag: %w", f.name, err)
		}
		if set {
			kinds = append(kinds, f.kind)
		}
	}
	return kinds, nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	kinds, err := selectedKinds(cmd)
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("failed to get dry-run flag: %w", err)
	}
	preferFlag, err := cmd.Flags().GetString("prefer")
	if err != nil {
		return fmt.Errorf("failed to get prefer flag: %w", err)
	}
	prefer, err := sync.ParsePreference(preferFlag)
	if err != nil {
		return err
	}

	return withEnv(cmd, func(ctx context.Context, e *env) error {
		report, err := e.manager.Start(ctx, sync.StartOptions{Only: kinds, DryRun: dryRun, Prefer: prefer})
		if err != nil {
			return err
		}
		if err := renderReport(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		if report.Failed() {
			return errSyncFailed
		}
		return nil
	})
}
