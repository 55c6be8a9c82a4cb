package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/status"
	statusmocks "github.com/klxm/synch/internal/status/mocks"
)

const testMessageModified = "Modified"

func TestCachedStateService_Initialize(t *testing.T) {
	t.Parallel()

	syncTime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		setupMocks    func(*statusmocks.MockStatusPersistence)
		expectedPhase status.SyncPhase
		expectedMsg   string
	}{
		{
			name: "existing state is kept",
			setupMocks: func(m *statusmocks.MockStatusPersistence) {
				m.EXPECT().LoadState(gomock.Any()).Return(&status.SyncState{
					Phase:      status.SyncPhaseComplete,
					LastSyncAt: &syncTime,
				}, nil)
			},
			expectedPhase: status.SyncPhaseComplete,
		},
		{
			name: "interrupted run is reset to failed",
			setupMocks: func(m *statusmocks.MockStatusPersistence) {
				m.EXPECT().LoadState(gomock.Any()).Return(&status.SyncState{Phase: status.SyncPhaseSyncing}, nil)
				m.EXPECT().SaveState(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, s *status.SyncState) error {
						assert.Equal(t, status.SyncPhaseFailed, s.Phase)
						return nil
					})
			},
			expectedPhase: status.SyncPhaseFailed,
			expectedMsg:   "Previous sync was interrupted",
		},
		{
			name: "load error falls back to defaults",
			setupMocks: func(m *statusmocks.MockStatusPersistence) {
				m.EXPECT().LoadState(gomock.Any()).Return(nil, errors.New("corrupt"))
			},
			expectedPhase: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockPersistence := statusmocks.NewMockStatusPersistence(ctrl)
			tt.setupMocks(mockPersistence)

			svc := NewCachedStateService(mockPersistence).(*cachedStateService)
			require.NoError(t, svc.Initialize(context.Background()))
			require.NotNil(t, svc.cached)
			assert.Equal(t, tt.expectedPhase, svc.cached.Phase)
			assert.Equal(t, tt.expectedMsg, svc.cached.Message)
		})
	}
}

func TestCachedStateService_GetState_FallsBackToCache(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPersistence := statusmocks.NewMockStatusPersistence(ctrl)
	gomock.InOrder(
		mockPersistence.EXPECT().LoadState(gomock.Any()).Return(&status.SyncState{Paused: true}, nil),
		mockPersistence.EXPECT().LoadState(gomock.Any()).Return(nil, errors.New("disk gone")),
	)

	svc := NewCachedStateService(mockPersistence)

	got, err := svc.GetState(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Paused)

	// mutating the copy does not touch the cache
	got.Paused = false

	got, err = svc.GetState(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Paused)
}

func TestCachedStateService_GetState_NoCache(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPersistence := statusmocks.NewMockStatusPersistence(ctrl)
	mockPersistence.EXPECT().LoadState(gomock.Any()).Return(nil, errors.New("disk gone"))

	_, err := NewCachedStateService(mockPersistence).GetState(context.Background())
	assert.Error(t, err)
}

func TestCachedStateService_UpdateStateAtomically(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		modify      bool
		saveErr     error
		wantUpdated bool
		wantErr     bool
	}{
		{name: "modified state is saved", modify: true, wantUpdated: true},
		{name: "unchanged state is not saved", modify: false},
		{name: "save error", modify: true, saveErr: errors.New("read only"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockPersistence := statusmocks.NewMockStatusPersistence(ctrl)
			mockPersistence.EXPECT().LoadState(gomock.Any()).Return(&status.SyncState{Message: "Original"}, nil)
			if tt.modify {
				mockPersistence.EXPECT().SaveState(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, s *status.SyncState) error {
						assert.Equal(t, testMessageModified, s.Message)
						return tt.saveErr
					})
			}

			svc := NewCachedStateService(mockPersistence)
			updated, err := svc.UpdateStateAtomically(context.Background(), func(s *status.SyncState) bool {
				if !tt.modify {
					return false
				}
				s.Message = testMessageModified
				return true
			})

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, "Original", svc.(*cachedStateService).cached.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUpdated, updated)
		})
	}
}

func TestCachedStateService_FileRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	writer := NewCachedStateService(status.NewFileStatusPersistence(dir))
	require.NoError(t, writer.Initialize(ctx))
	require.NoError(t, writer.UpdateState(ctx, &status.SyncState{Paused: true, LastRunID: "r1"}))

	// a second service over the same directory sees the change
	reader := NewCachedStateService(status.NewFileStatusPersistence(dir))
	got, err := reader.GetState(ctx)
	require.NoError(t, err)
	assert.True(t, got.Paused)
	assert.Equal(t, "r1", got.LastRunID)
}

func TestNewStateService(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	kv := statusmocks.NewMockKeyValueStore(ctrl)

	tests := []struct {
		name    string
		backend string
		kv      status.KeyValueStore
		wantErr bool
	}{
		{name: "file backend", backend: config.StateBackendFile},
		{name: "default backend", backend: ""},
		{name: "store backend", backend: config.StateBackendStore, kv: kv},
		{name: "store backend without kv", backend: config.StateBackendStore, wantErr: true},
		{name: "unknown backend", backend: "etcd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &config.Config{StateDir: t.TempDir(), State: config.StateConfig{Backend: tt.backend}}
			svc, err := NewStateService(cfg, tt.kv)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}
