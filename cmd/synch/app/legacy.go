package app

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/klxm/synch/internal/legacy"
	"github.com/klxm/synch/internal/sync"
)

func newImportLegacyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Import items exported by the developer addon",
		Long: `Copy the "<name> [<id>]" directories written by the developer addon into the
mirror, one kind at a time. Existing mirror directories are left untouched.
Run a sync afterwards to reconcile the imported items with the store.

Examples:
  synch import-legacy --config synch.yaml --kind modules --from ./developer/modules`,
		RunE: runImportLegacy,
	}
	cmd.Flags().String("from", "", "Directory holding the developer addon export of one kind")
	cmd.Flags().String("kind", "", "Kind to import (modules or templates)")
	cmd.Flags().BoolP("dry-run", "d", false, "Report what would be imported without copying")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func runImportLegacy(cmd *cobra.Command, _ []string) error {
	from, _ := cmd.Flags().GetString("from")
	kindName, _ := cmd.Flags().GetString("kind")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	kind, err := sync.ParseKind(kindName)
	if err != nil {
		return err
	}

	return withEnv(cmd, func(ctx context.Context, e *env) error {
		importer, err := legacy.NewImporter(kind, osfs.New(from), e.fs, dryRun)
		if err != nil {
			return err
		}
		res, err := importer.Import(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		verb := "Imported"
		if dryRun {
			verb = "Would import"
		}
		_, _ = fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("%s %d %s, skipped %d", verb, res.Imported, kind.Name, res.Skipped)))
		for _, msg := range res.Errors {
			_, _ = fmt.Fprintln(out, failStyle.Render("error: "+msg))
		}
		if len(res.Errors) > 0 {
			return fmt.Errorf("%d director(ies) could not be imported", len(res.Errors))
		}
		return nil
	})
}
