package keys

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klxm/synch/internal/clock"
)

func TestCleanKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "umlauts and punctuation", input: "Büro News!!", expected: "buero_news"},
		{name: "surrounding underscores", input: "___a___", expected: "a"},
		{name: "empty", input: "", expected: ""},
		{name: "only symbols", input: "!!! ???", expected: ""},
		{name: "capital umlauts", input: "Ärger Öl Übung", expected: "aerger_oel_uebung"},
		{name: "sharp s", input: "Straße", expected: "strasse"},
		{name: "other accents folded", input: "Café Crème", expected: "cafe_creme"},
		{name: "digits kept", input: "Teaser 2 Spalten", expected: "teaser_2_spalten"},
		{name: "already clean", input: "start_page", expected: "start_page"},
		{name: "runs collapse", input: "a - - b", expected: "a_b"},
		{name: "non latin dropped", input: "日本 news", expected: "news"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, CleanKey(tt.input))
		})
	}
}

func TestCleanKey_Idempotent(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"Büro News!!", "Café Crème", "x__y", "Straße 12"} {
		once := CleanKey(in)
		assert.Equal(t, once, CleanKey(once), in)
	}
}

func TestGenerator_Generate(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		strategy Strategy
		input    string
		expected string
		wantErr  error
	}{
		{name: "name based", strategy: NameBased, input: "Büro News!!", expected: "buero_news"},
		{name: "date name", strategy: DateName, input: "Büro News!!", expected: "20240501_buero_news"},
		{name: "hash based", strategy: HashBased, input: "Büro News!!", expected: "05f8ac1e_buero_news"},
		{name: "default strategy", strategy: "", input: "Header", expected: "header"},
		{name: "empty name", strategy: NameBased, input: "", wantErr: ErrEmptyKey},
		{name: "empty name with date", strategy: DateName, input: "???", wantErr: ErrEmptyKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := NewGenerator(tt.strategy, clock.NewFake(now))
			require.NoError(t, err)

			key, err := g.Generate(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, key)
		})
	}
}

func TestNewGenerator_UnknownStrategy(t *testing.T) {
	t.Parallel()

	_, err := NewGenerator("random", nil)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestIsPathSafe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		safe bool
	}{
		{key: "start_page", safe: true},
		{key: "Header", safe: true},
		{key: "news 2024", safe: true},
		{key: "", safe: false},
		{key: "a/b", safe: false},
		{key: `a\b`, safe: false},
		{key: "..", safe: false},
		{key: "../../../escaped", safe: false},
		{key: "x\ny", safe: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.safe, IsPathSafe(tt.key), tt.key)
	}
}

func TestFilePrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Header", FilePrefix("Header"))
	assert.Equal(t, "a_b", FilePrefix("a/b"))
	assert.Equal(t, "news_x", FilePrefix("../news/x"))
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, NameBased, s)

	s, err = ParseStrategy("hash_based")
	require.NoError(t, err)
	assert.Equal(t, HashBased, s)

	_, err = ParseStrategy("uuid")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestEnsureUnique(t *testing.T) {
	t.Parallel()

	taken := func(keys ...string) ExistsFunc {
		set := make(map[string]bool, len(keys))
		for _, k := range keys {
			set[k] = true
		}
		return func(_ context.Context, key string) (bool, error) {
			return set[key], nil
		}
	}

	tests := []struct {
		name     string
		base     string
		exists   ExistsFunc
		expected string
		wantErr  bool
	}{
		{name: "free", base: "news", exists: taken(), expected: "news"},
		{name: "first suffix", base: "news", exists: taken("news"), expected: "news_1"},
		{name: "skips taken suffixes", base: "news", exists: taken("news", "news_1", "news_2"), expected: "news_3"},
		{name: "empty base", base: "", exists: taken(), wantErr: true},
		{
			name: "lookup error",
			base: "news",
			exists: func(context.Context, string) (bool, error) {
				return false, errors.New("db down")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			key, err := EnsureUnique(context.Background(), tt.base, tt.exists)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, key)
		})
	}
}

func TestEnsureUnique_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := EnsureUnique(ctx, "news", func(context.Context, string) (bool, error) {
		return true, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
