// Package gitops wraps the go-git operations the fork manager delegates:
// cloning forks, checking for upstream commits and fast-forwarding a
// working copy. It owns error classification so callers can distinguish
// transient network failures from permanent ones without string parsing.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	git "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// Client performs git operations on fork working copies.
type Client struct {
	log      *slog.Logger
	progress io.Writer
}

// NewClient creates a git client. progress may be nil to silence clone output.
func NewClient(log *slog.Logger, progress io.Writer) *Client {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{log: log, progress: progress}
}

// Clone clones url into dest, optionally restricted to branch. A single
// attempt; callers own the retry budget.
func (c *Client) Clone(ctx context.Context, url, branch, dest string) error {
	opts := &git.CloneOptions{URL: url, Progress: c.progress}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}
	repo, err := git.PlainCloneContext(ctx, dest, false, opts)
	if err != nil {
		return classifyCloneError(url, err)
	}
	if ref, herr := repo.Head(); herr == nil {
		c.log.Info("repository cloned",
			"url", url,
			"branch", branch,
			"commit", shortHash(ref.Hash()),
			"path", dest)
	} else {
		c.log.Info("repository cloned", "url", url, "branch", branch, "path", dest)
	}
	return nil
}

// HasUpdate fetches origin and reports whether the remote tracking commit of
// the current branch differs from the local HEAD. It never merges.
func (c *Client) HasUpdate(ctx context.Context, repoPath string) (bool, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return false, fmt.Errorf("open repo: %w", err)
	}
	if err := c.fetchOrigin(ctx, repo); err != nil {
		return false, err
	}
	local, remote, err := trackingRefs(repo)
	if err != nil {
		return false, err
	}
	differs := local.Hash() != remote.Hash()
	c.log.Debug("update check",
		"path", repoPath,
		"local", shortHash(local.Hash()),
		"remote", shortHash(remote.Hash()),
		"update_available", differs)
	return differs, nil
}

// FastForward advances the working copy to the remote tracking commit. It
// fetches first, and refuses with a RemoteDivergedError when the local
// branch holds commits the remote does not have.
func (c *Client) FastForward(ctx context.Context, repoPath string) error {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	if err := c.fetchOrigin(ctx, repo); err != nil {
		return err
	}
	local, remote, err := trackingRefs(repo)
	if err != nil {
		return err
	}
	if local.Hash() == remote.Hash() {
		c.log.Info("repository already up-to-date", "path", repoPath, "commit", shortHash(local.Hash()))
		return nil
	}
	ok, err := isAncestor(repo, local.Hash(), remote.Hash())
	if err != nil {
		return fmt.Errorf("ancestor check: %w", err)
	}
	if !ok {
		return &RemoteDivergedError{Op: "update", Path: repoPath, Err: errors.New("local branch has commits the remote does not")}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: remote.Hash(), Mode: git.HardReset}); err != nil {
		return fmt.Errorf("fast-forward reset: %w", err)
	}
	c.log.Info("fast-forwarded repository",
		"path", repoPath,
		"from", shortHash(local.Hash()),
		"to", shortHash(remote.Hash()))
	return nil
}

func (c *Client) fetchOrigin(ctx context.Context, repo *git.Repository) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.NoTags,
		RefSpecs:   []gitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classifyFetchError(err)
	}
	return nil
}

// trackingRefs resolves the local HEAD branch and its origin tracking ref.
func trackingRefs(repo *git.Repository) (local, remote *plumbing.Reference, err error) {
	head, err := repo.Head()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return nil, nil, fmt.Errorf("HEAD is not on a branch: %s", head.Name())
	}
	branch := head.Name().Short()
	remote, err = repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return nil, nil, fmt.Errorf("remote tracking ref for %s: %w", branch, err)
	}
	return head, remote, nil
}

// isAncestor walks the parents of b looking for a.
func isAncestor(repo *git.Repository, a, b plumbing.Hash) (bool, error) {
	if a == b {
		return true, nil
	}
	seen := map[plumbing.Hash]struct{}{}
	queue := []plumbing.Hash{b}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == a {
			return true, nil
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		commit, err := repo.CommitObject(h)
		if err != nil {
			return false, err
		}
		queue = append(queue, commit.ParentHashes...)
	}
	return false, nil
}

func shortHash(h plumbing.Hash) string {
	return h.String()[:8]
}
