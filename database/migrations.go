// Package database provides the PostgreSQL schema and migration tooling.
package database

import (
	"embed"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5 scheme
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsFromSource returns a migration source driver from the embedded migrations.
func migrationsFromSource() (source.Driver, error) {
	return iofs.New(migrationsFS, "migrations")
}

// Migrator is the interface for the migration tooling.
type Migrator interface {
	Up() error
	Down() error
	Steps(int) error
	Version() (uint, bool, error)
	Close() (error, error)
}

// NewFromConnectionString returns a new migration instance from the given connection string.
// postgres:// and postgresql:// URLs are routed to the pgx driver.
func NewFromConnectionString(connString string) (Migrator, error) {
	d, err := migrationsFromSource()
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", d, migrationURL(connString))
}

func migrationURL(connString string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(connString, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return connString
}
