// Package app provides the commands of the synch binary.
package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klxm/synch/internal/versions"
)

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "synch",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Mirror CMS modules, templates and actions to disk",
		Long: `synch keeps the modules, templates and actions of a CMS database in sync
with a directory tree of per-item folders, so they can be edited with any
editor and versioned with git.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newSyncCmd(),
		newServeCmd(),
		newMigrateCmd(),
		newPauseCmd(),
		newResumeCmd(),
		newStatusCmd(),
		newRenameFilesCmd(),
		newImportLegacyCmd(),
		newDuplicatesCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
