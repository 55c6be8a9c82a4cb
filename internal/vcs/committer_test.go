package vcs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klxm/synch/internal/clock"
	"github.com/klxm/synch/internal/config"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	p := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func commitCount(t *testing.T, repo *git.Repository) int {
	t.Helper()
	head, err := repo.Head()
	if err != nil {
		return 0
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	require.NoError(t, err)
	n := 0
	for {
		if _, err := iter.Next(); err != nil {
			break
		}
		n++
	}
	return n
}

func TestGitCommitter_Commit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cfg := &config.GitConfig{AutoCommit: true, AuthorName: "Jo", AuthorEmail: "jo@example.com"}

	g, err := Open(root, cfg, []string{"modules", "templates", "actions"}, WithClock(clock.NewFake(when)))
	require.NoError(t, err)

	writeFile(t, root, "modules/news/metadata.yml", "key: news\n")
	writeFile(t, root, "modules/news/input.php", "in")
	writeFile(t, root, ".synch/state.json", "{}")

	require.NoError(t, g.Commit(ctx, "synch: run 1"))

	head, err := g.repo.Head()
	require.NoError(t, err)
	commit, err := g.repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "synch: run 1", commit.Message)
	assert.Equal(t, "Jo", commit.Author.Name)
	assert.Equal(t, "jo@example.com", commit.Author.Email)
	assert.True(t, when.Equal(commit.Author.When))

	tree, err := commit.Tree()
	require.NoError(t, err)
	_, err = tree.File("modules/news/input.php")
	assert.NoError(t, err)
	_, err = tree.File(".synch/state.json")
	assert.Error(t, err, "the state directory is never committed")

	// unchanged mirror
	require.NoError(t, g.Commit(ctx, "synch: run 2"))
	assert.Equal(t, 1, commitCount(t, g.repo))

	writeFile(t, root, "modules/news/input.php", "edited")
	require.NoError(t, g.Commit(ctx, "synch: run 3"))
	assert.Equal(t, 2, commitCount(t, g.repo))
}

func TestOpen_ExistingRepositoryAndDefaults(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	g, err := Open(root, nil, []string{"templates"})
	require.NoError(t, err)
	assert.Equal(t, defaultAuthorName, g.authorName)
	assert.Equal(t, defaultAuthorEmail, g.authorEmail)

	// nothing to stage yet
	require.NoError(t, g.Commit(context.Background(), "empty"))
	assert.Equal(t, 0, commitCount(t, g.repo))
}

func TestGitCommitter_CancelledContext(t *testing.T) {
	t.Parallel()

	g, err := Open(t.TempDir(), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.Commit(ctx, "x"), context.Canceled)
}
