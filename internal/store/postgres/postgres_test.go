package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klxm/synch/database"
	"github.com/klxm/synch/internal/store"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	dup := mapError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolation}))
	assert.ErrorIs(t, dup, store.ErrDuplicateKey)

	other := mapError(errors.New("connection reset"))
	assert.NotErrorIs(t, other, store.ErrDuplicateKey)
}

func TestStore_Postgres(t *testing.T) {
	t.Parallel()

	pool, cleanup := database.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	s := New(pool)

	// Postgres keeps microseconds
	ts := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)

	id, err := s.Insert(ctx, store.KindAction, &store.Record{
		Key:       "save_news",
		Name:      "Save News",
		Fields:    map[string]string{"preview": "echo 1;", "presave": "", "postsave": "echo 3;"},
		CreatedAt: ts,
		UpdatedAt: ts,
		CreatedBy: "admin",
	})
	require.NoError(t, err)

	rec, err := s.FindByKey(ctx, store.KindAction, "save_news")
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "echo 3;", rec.Field("postsave"))
	assert.Equal(t, ts, rec.UpdatedAt)

	rec.Fields["presave"] = "echo 2;"
	rec.UpdatedAt = ts.Add(time.Minute)
	require.NoError(t, s.Update(ctx, store.KindAction, rec))

	latest, err := s.MaxUpdatedAt(ctx, store.KindAction)
	require.NoError(t, err)
	assert.Equal(t, ts.Add(time.Minute), latest)

	_, err = s.Insert(ctx, store.KindAction, &store.Record{Key: "save_news", Name: "Copy", CreatedAt: ts, UpdatedAt: ts})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	keyless, err := s.Insert(ctx, store.KindModule, &store.Record{Name: "Header", CreatedAt: ts, UpdatedAt: ts})
	require.NoError(t, err)
	require.NoError(t, s.UpdateKey(ctx, store.KindModule, keyless, "header"))
	exists, err := s.KeyExists(ctx, store.KindModule, "header")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Set(ctx, "sync_state", "{}"))
	v, ok, err := s.Get(ctx, "sync_state")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "{}", v)

	_, err = s.FindByKey(ctx, store.KindTemplate, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
