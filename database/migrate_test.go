package database

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		expected string
	}{
		{in: "postgres://u:p@db:5432/synch?sslmode=disable", expected: "pgx5://u:p@db:5432/synch?sslmode=disable"},
		{in: "postgresql://u@db/synch", expected: "pgx5://u@db/synch"},
		{in: "pgx5://u@db/synch", expected: "pgx5://u@db/synch"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, migrationURL(tt.in))
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	t.Parallel()

	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))

	_, err = migrationsFromSource()
	assert.NoError(t, err)
}

func TestMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, cleanupFunc := SetupTestDBContainer(t, ctx)
	t.Cleanup(cleanupFunc)

	connString := db.Config().ConnString()

	m, err := NewFromConnectionString(connString)
	require.NoError(t, err)
	defer func() { _, _ = m.Close() }()

	fnames, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)

	for i := 1; i <= len(fnames); i++ {
		assert.NoError(t, m.Steps(i))
		assert.NoError(t, m.Steps(-i))
		assert.NoError(t, m.Steps(i))
	}
}
