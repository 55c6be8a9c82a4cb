package filtering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemFilter_ShouldInclude(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		include  []string
		exclude  []string
		path     string
		expected bool
	}{
		{name: "no filters - should include", path: "modules/news", expected: true},
		{name: "hidden directory", path: "modules/.git", expected: false},
		{name: "hidden state dir at root", path: ".synch", expected: false},
		{name: "exclude by full path", exclude: []string{"modules/news"}, path: "modules/news", expected: false},
		{name: "exclude by base name", exclude: []string{"draft_*"}, path: "templates/draft_home", expected: false},
		{name: "star stays in segment", exclude: []string{"modules/*"}, path: "modules/news/sub", expected: true},
		{name: "double star crosses segments", exclude: []string{"**/tmp_*"}, path: "actions/tmp_save", expected: false},
		{name: "question mark", exclude: []string{"legacy?"}, path: "modules/legacy1", expected: false},
		{name: "include match", include: []string{"templates/*"}, path: "templates/home", expected: true},
		{name: "include miss", include: []string{"templates/*"}, path: "modules/home", expected: false},
		{
			name:     "exclude wins over include",
			include:  []string{"templates/*"},
			exclude:  []string{"templates/old_*"},
			path:     "templates/old_home",
			expected: false,
		},
		{name: "trailing slash cleaned", exclude: []string{"modules/news"}, path: "modules/news/", expected: false},
		{name: "blank patterns ignored", exclude: []string{"  "}, path: "modules/news", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := NewItemFilter(tt.include, tt.exclude)
			require.NoError(t, err)

			got, reason := f.ShouldInclude(tt.path)
			assert.Equal(t, tt.expected, got, reason)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestNewItemFilter_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := NewItemFilter(nil, []string{"modules/[abc"})
	assert.ErrorContains(t, err, "exclude")

	_, err = NewItemFilter([]string{"{a,b"}, nil)
	assert.ErrorContains(t, err, "include")
}

func TestIncludeAll(t *testing.T) {
	t.Parallel()

	f := IncludeAll()
	ok, _ := f.ShouldInclude("actions/save")
	assert.True(t, ok)
	ok, _ = f.ShouldInclude("actions/.hidden")
	assert.False(t, ok)
}
