package versions

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfoWithValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		version       string
		commit        string
		buildDate     string
		wantVersion   string
		wantBuildDate string
	}{
		{
			name:          "release build",
			version:       "v1.2.0",
			commit:        "0123456789abcdef",
			buildDate:     "2024-05-01T12:00:00Z",
			wantVersion:   "v1.2.0",
			wantBuildDate: "2024-05-01 12:00:00 UTC",
		},
		{
			name:          "dev build is named after the commit",
			version:       "dev",
			commit:        "0123456789abcdef",
			buildDate:     "yesterday",
			wantVersion:   "build-01234567",
			wantBuildDate: "yesterday",
		},
		{
			name:          "short commit",
			version:       "dev",
			commit:        "abc",
			buildDate:     "2024-05-01T12:00:00Z",
			wantVersion:   "build-abc",
			wantBuildDate: "2024-05-01 12:00:00 UTC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			info := getVersionInfoWithValues(tt.version, tt.commit, tt.buildDate)
			assert.Equal(t, tt.wantVersion, info.Version)
			assert.Equal(t, tt.commit, info.Commit)
			assert.Equal(t, tt.wantBuildDate, info.BuildDate)
			assert.Equal(t, runtime.Version(), info.GoVersion)
			assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
		})
	}
}

func TestVersionInfoString(t *testing.T) {
	t.Parallel()

	info := VersionInfo{Version: "v1.0.0", Commit: "abc", BuildDate: "today", GoVersion: "go1.25", Platform: "linux/amd64"}
	assert.Equal(t, "synch v1.0.0 (commit abc, built today, go1.25 linux/amd64)", info.String())
}
