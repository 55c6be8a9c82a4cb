package status_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/klxm/synch/internal/status"
	"github.com/klxm/synch/internal/status/mocks"
)

func TestFileStatusPersistence_SaveAndLoad(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	persistence := status.NewFileStatusPersistence(tmpDir)
	require.NotNil(t, persistence)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	testState := &status.SyncState{
		Paused:     true,
		PausedAt:   &now,
		LastSyncAt: &now,
		LastRunID:  "run-1",
		Phase:      status.SyncPhaseComplete,
		Message:    "Sync completed",
		Kinds:      map[string]status.KindSummary{"module": {Created: 2, Written: 1}},
	}

	ctx := context.Background()
	require.NoError(t, persistence.SaveState(ctx, testState))

	_, err := os.Stat(filepath.Join(tmpDir, status.StateName+".json"))
	require.NoError(t, err)

	loaded, err := persistence.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, testState, loaded)
}

func TestFileStatusPersistence_LoadNonExistent(t *testing.T) {
	t.Parallel()

	persistence := status.NewFileStatusPersistence(filepath.Join(t.TempDir(), "missing"))

	loaded, err := persistence.LoadState(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.False(t, loaded.Paused)
	assert.Nil(t, loaded.LastSyncAt)
}

func TestFileStatusPersistence_Corrupt(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, status.StateName+".json"), []byte("{not json"), 0600))

	_, err := status.NewFileStatusPersistence(tmpDir).LoadState(context.Background())
	assert.Error(t, err)
}

func TestFileStatusPersistence_Overwrite(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	persistence := status.NewFileStatusPersistence(tmpDir)
	ctx := context.Background()

	require.NoError(t, persistence.SaveState(ctx, &status.SyncState{Phase: status.SyncPhaseSyncing}))
	require.NoError(t, persistence.SaveState(ctx, &status.SyncState{Phase: status.SyncPhaseFailed, Message: "boom"}))

	loaded, err := persistence.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, status.SyncPhaseFailed, loaded.Phase)
	assert.Equal(t, "boom", loaded.Message)

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestStatusPersistence_KVErrors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	kv := mocks.NewMockKeyValueStore(ctrl)
	kv.EXPECT().Get(gomock.Any(), status.StateName).Return("", false, errors.New("db down"))
	kv.EXPECT().Set(gomock.Any(), status.StateName, gomock.Any()).Return(errors.New("read only"))

	persistence := status.NewStatusPersistence(kv)
	_, err := persistence.LoadState(context.Background())
	assert.ErrorContains(t, err, "db down")

	err = persistence.SaveState(context.Background(), nil)
	assert.ErrorContains(t, err, "read only")
}

func TestFileKeyValueStore_InvalidNames(t *testing.T) {
	t.Parallel()

	kv := status.NewFileKeyValueStore(t.TempDir())
	for _, name := range []string{"", "../escape", "a/b", `a\b`} {
		_, _, err := kv.Get(context.Background(), name)
		assert.Error(t, err, name)
		assert.Error(t, kv.Set(context.Background(), name, "x"), name)
	}
}

func TestSyncState_Clone(t *testing.T) {
	t.Parallel()

	now := time.Now()
	orig := &status.SyncState{PausedAt: &now, Kinds: map[string]status.KindSummary{"action": {Errors: 1}}}
	c := orig.Clone()
	require.Equal(t, orig, c)

	*c.PausedAt = now.Add(time.Hour)
	c.Kinds["action"] = status.KindSummary{}
	assert.Equal(t, now, *orig.PausedAt)
	assert.Equal(t, 1, orig.Kinds["action"].Errors)

	var nilState *status.SyncState
	assert.Nil(t, nilState.Clone())
}
