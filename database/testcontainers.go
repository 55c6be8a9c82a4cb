package database

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// IntegrationEnv enables tests that need a container runtime
const IntegrationEnv = "SYNCH_INTEGRATION"

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

var (
	dbName = "testdb"
	dbUser = "testuser"
	dbPass = "testpass"
)

// SkipUnlessIntegration skips t when container tests are not enabled
func SkipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv(IntegrationEnv) == "" {
		t.Skipf("set %s=1 to run tests against a Postgres container", IntegrationEnv)
	}
}

// SetupTestDBContainer starts a Postgres container and returns a pool
// connected to it. No migrations are applied.
func SetupTestDBContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()
	SkipUnlessIntegration(t)

	postgresContainer, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	require.NoError(t, err)

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanupFunc := func() {
		pool.Close()
		tc.CleanupContainer(t, postgresContainer)
	}

	return pool, cleanupFunc
}

// SetupTestDB starts a Postgres container with the schema migrated up
func SetupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	ctx := context.Background()
	pool, cleanup := SetupTestDBContainer(t, ctx)

	m, err := NewFromConnectionString(pool.Config().ConnString())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	_, _ = m.Close()

	return pool, cleanup
}
