package app

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/klxm/synch/database"
	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long: `Manage the schema of the PostgreSQL store. Use with 'up' or 'down' subcommands.
The SQLite store creates its schema on open and needs no migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate (0 = all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		RunE:  runMigrateUp,
	}, &cobra.Command{
		Use:   "down",
		Short: "Migrate the database down",
		Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  synch migrate down --config synch.yaml --num-steps 1 --yes`,
		RunE: runMigrateDown,
	})
	return cmd
}

// newMigrator builds a migrator for the configured PostgreSQL database
func newMigrator(cmd *cobra.Command) (*config.Config, database.Migrator, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.Type != config.StorageTypePostgres || cfg.Database == nil {
		return nil, nil, fmt.Errorf("migrations require storage.type %q with a database section", config.StorageTypePostgres)
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build connection string: %w", err)
	}
	m, err := database.NewFromConnectionString(connString)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return cfg, m, nil
}

func closeMigrator(m database.Migrator) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		logger.Errorf("Error closing migrator: %v", err)
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, m, err := newMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	prompt := fmt.Sprintf("About to apply migrations to database %s@%s:%d/%s. Continue?",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	if err := confirmOrYes(cmd, prompt); err != nil {
		return err
	}

	logger.Info("Applying database migrations...")
	if numSteps == 0 {
		err = m.Up()
	} else {
		if numSteps > math.MaxInt {
			return fmt.Errorf("number of steps exceeds maximum allowed value")
		}
		err = m.Steps(int(numSteps)) // #nosec G115 -- overflow checked above
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No migrations to apply - database is up to date")
		} else {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	displayMigrationVersion(m, numSteps)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	_, m, err := newMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	prompt := fmt.Sprintf("WARNING: This will migrate down %d step(s) and may result in data loss. Continue?", numSteps)
	if numSteps == 0 {
		prompt = "WARNING: This will migrate down ALL steps and may result in complete data loss. Continue?"
	}
	if err := confirmOrYes(cmd, prompt); err != nil {
		return err
	}

	if err := executeMigrateDown(m, numSteps); err != nil {
		return err
	}
	displayMigrationVersion(m, numSteps)
	return nil
}

func executeMigrateDown(m database.Migrator, numSteps uint) error {
	var err error
	if numSteps == 0 {
		logger.Warn("Migrating down all steps - this will remove all schema!")
		err = m.Down()
	} else {
		logger.Infof("Migrating down %d step(s)...", numSteps)
		if numSteps > math.MaxInt {
			return fmt.Errorf("number of steps exceeds maximum allowed value")
		}
		err = m.Steps(-1 * int(numSteps)) // #nosec G115 -- overflow checked above
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No migrations to revert - database is already at the oldest version")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Migration completed successfully")
	return nil
}

func displayMigrationVersion(m database.Migrator, numSteps uint) {
	version, dirty, err := m.Version()
	if err != nil {
		if numSteps == 0 && errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("Database schema has been completely removed")
		} else {
			logger.Warnf("Failed to get migration version: %v", err)
		}
		return
	}

	if dirty {
		logger.Warnf("Current migration version: %d (dirty - manual intervention may be required)", version)
	} else {
		logger.Infof("Current migration version: %d", version)
	}
}

// confirmOrYes returns nil when --yes is set or the user agrees to prompt
func confirmOrYes(cmd *cobra.Command, prompt string) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return nil
	}

	if f, ok := cmd.InOrStdin().(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return fmt.Errorf("stdin is not a terminal; pass --yes to confirm")
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (yes/no): ", prompt)
	response, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && response == "" {
		return fmt.Errorf("failed to read user input: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "yes", "y":
		return nil
	default:
		logger.Info("Migration cancelled")
		return fmt.Errorf("migration cancelled by user")
	}
}
