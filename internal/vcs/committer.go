// Package vcs versions the mirror with git after runs that changed it.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/klxm/synch/internal/clock"
	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/logger"
)

const (
	defaultAuthorName  = "synch"
	defaultAuthorEmail = "synch@localhost"
)

// GitCommitter commits the item directories of the mirror to a git
// repository rooted at the mirror's base path
type GitCommitter struct {
	repo        *git.Repository
	root        string
	paths       []string
	authorName  string
	authorEmail string
	clock       clock.Clock
}

// Option configures a GitCommitter
type Option func(*GitCommitter)

// WithClock sets the clock used for commit timestamps
func WithClock(c clock.Clock) Option {
	return func(g *GitCommitter) { g.clock = c }
}

// Open opens the repository at root, initializing one when root is not yet
// a repository. Only paths (relative to root) are ever staged.
func Open(root string, cfg *config.GitConfig, paths []string, opts ...Option) (*GitCommitter, error) {
	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		logger.Infof("Initializing git repository in %s", root)
		repo, err = git.PlainInit(root, false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository in %s: %w", root, err)
	}

	g := &GitCommitter{
		repo:        repo,
		root:        root,
		paths:       paths,
		authorName:  defaultAuthorName,
		authorEmail: defaultAuthorEmail,
		clock:       clock.Real{},
	}
	if cfg != nil {
		if cfg.AuthorName != "" {
			g.authorName = cfg.AuthorName
		}
		if cfg.AuthorEmail != "" {
			g.authorEmail = cfg.AuthorEmail
		}
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Commit stages the configured paths and commits them with message. It is a
// no-op when nothing is staged.
func (g *GitCommitter) Commit(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wt, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	for _, p := range g.paths {
		if _, err := os.Stat(filepath.Join(g.root, p)); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := wt.AddWithOptions(&git.AddOptions{Path: p}); err != nil {
			return fmt.Errorf("failed to stage %s: %w", p, err)
		}
	}

	st, err := wt.Status()
	if err != nil {
		return fmt.Errorf("failed to read worktree status: %w", err)
	}
	if !hasStaged(st) {
		logger.Debugf("Nothing to commit in %s", g.root)
		return nil
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  g.authorName,
			Email: g.authorEmail,
			When:  g.clock.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	logger.Infof("Committed mirror as %s", hash.String()[:8])
	return nil
}

func hasStaged(st git.Status) bool {
	for _, fs := range st {
		if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			return true
		}
	}
	return false
}
