package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klxm/synch/internal/sync"
)

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Suspend automatic syncs",
		Long: fmt.Sprintf(`Suspend automatic syncs for %s. Manual syncs still run.
The pause ends on its own once the window has passed.`, sync.PauseWindow),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				if err := e.manager.PauseAutoSync(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Automatic sync paused for "+sync.PauseWindow.String()))
				return nil
			})
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume automatic syncs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				if err := e.manager.ResumeAutoSync(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Automatic sync resumed"))
				return nil
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last run and the pause state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				st, err := e.manager.State(ctx)
				if err != nil {
					return err
				}
				if err := renderState(cmd.OutOrStdout(), st, e.manager.IsAutoSyncPaused(ctx)); err != nil {
					return err
				}
				if e.manager.HasChanges(ctx) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render("Changes pending since the last sync"))
				}
				return nil
			})
		},
	}
}

func newDuplicatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates",
		Short: "List records of one kind that share a name",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				groups, err := e.manager.FindDuplicates(ctx)
				if err != nil {
					return err
				}
				return renderDuplicates(cmd.OutOrStdout(), groups)
			})
		},
	}
}

func newRenameFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename-files",
		Short: "Convert content file names between naming conventions",
		Long: `Rename the content files of every item between the plain convention
("input.php") and the descriptive one ("<key> input.php").`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			descriptive, _ := cmd.Flags().GetBool("descriptive")
			plain, _ := cmd.Flags().GetBool("legacy")
			if descriptive == plain {
				return fmt.Errorf("exactly one of --descriptive or --legacy is required")
			}

			return withEnv(cmd, func(ctx context.Context, e *env) error {
				res, err := e.manager.RenameAllFiles(ctx, descriptive)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Renamed %d file(s)", res.Renamed)))
				for _, msg := range res.Errors {
					_, _ = fmt.Fprintln(out, failStyle.Render("error: "+msg))
				}
				if len(res.Errors) > 0 {
					return fmt.Errorf("%d file(s) could not be renamed", len(res.Errors))
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("descriptive", false, "Rename to \"<key> <file>\"")
	cmd.Flags().Bool("legacy", false, "Rename to the plain file names")
	cmd.MarkFlagsMutuallyExclusive("descriptive", "legacy")
	return cmd
}
