package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "debug console", cfg: Config{Level: "debug"}},
		{name: "explicit json", cfg: Config{Level: "warn", Format: "json"}},
		{name: "invalid level", cfg: Config{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNew_WithFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "synch.log")
	l, err := New(Config{File: path})
	require.NoError(t, err)
	l.Info("hello")
	require.NoError(t, l.Sync())
	assert.FileExists(t, path)
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	//nolint:staticcheck // nil context is handled explicitly
	assert.NotNil(t, FromContext(nil).GetSink())

	discard := logr.Discard()
	ctx := NewContext(context.Background(), discard)
	assert.Equal(t, discard, FromContext(ctx))
}
