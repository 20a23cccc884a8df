package gitops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func testSignature() *object.Signature {
	return &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()}
}

// initUpstream creates a bare-like upstream working repo with one commit.
func initUpstream(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	commitFile(t, repo, dir, "README.md", "hello", "initial commit")
	return dir, repo
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content, msg string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit(msg, &git.CommitOptions{Author: testSignature()})
	require.NoError(t, err)
}

func TestClone_ThenNoUpdateAvailable(t *testing.T) {
	upstream, _ := initUpstream(t)
	dest := filepath.Join(t.TempDir(), "clone")
	c := testClient()

	require.NoError(t, c.Clone(context.Background(), upstream, "", dest))
	require.DirExists(t, filepath.Join(dest, ".git"))

	has, err := c.HasUpdate(context.Background(), dest)
	require.NoError(t, err)
	assert.False(t, has, "fresh clone must not report an update")
}

func TestHasUpdate_AfterUpstreamCommit(t *testing.T) {
	upstream, upstreamRepo := initUpstream(t)
	dest := filepath.Join(t.TempDir(), "clone")
	c := testClient()
	require.NoError(t, c.Clone(context.Background(), upstream, "", dest))

	commitFile(t, upstreamRepo, upstream, "new.txt", "v2", "remote-only commit")

	has, err := c.HasUpdate(context.Background(), dest)
	require.NoError(t, err)
	assert.True(t, has, "remote-only commit must be reported")
}

func TestFastForward_AdvancesToRemote(t *testing.T) {
	upstream, upstreamRepo := initUpstream(t)
	dest := filepath.Join(t.TempDir(), "clone")
	c := testClient()
	require.NoError(t, c.Clone(context.Background(), upstream, "", dest))

	commitFile(t, upstreamRepo, upstream, "new.txt", "v2", "remote-only commit")

	require.NoError(t, c.FastForward(context.Background(), dest))
	assert.FileExists(t, filepath.Join(dest, "new.txt"))

	has, err := c.HasUpdate(context.Background(), dest)
	require.NoError(t, err)
	assert.False(t, has, "no update expected after fast-forward")
}

func TestFastForward_AlreadyUpToDate(t *testing.T) {
	upstream, _ := initUpstream(t)
	dest := filepath.Join(t.TempDir(), "clone")
	c := testClient()
	require.NoError(t, c.Clone(context.Background(), upstream, "", dest))

	require.NoError(t, c.FastForward(context.Background(), dest))
}

func TestFastForward_RefusesDivergence(t *testing.T) {
	upstream, upstreamRepo := initUpstream(t)
	dest := filepath.Join(t.TempDir(), "clone")
	c := testClient()
	require.NoError(t, c.Clone(context.Background(), upstream, "", dest))

	// Diverge: one commit locally, a different one upstream.
	localRepo, err := git.PlainOpen(dest)
	require.NoError(t, err)
	commitFile(t, localRepo, dest, "local.txt", "local", "local commit")
	commitFile(t, upstreamRepo, upstream, "remote.txt", "remote", "remote commit")

	err = c.FastForward(context.Background(), dest)
	require.Error(t, err)
	var diverged *RemoteDivergedError
	assert.True(t, errors.As(err, &diverged), "expected RemoteDivergedError, got %v", err)
}

func TestClone_MissingRemote(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "clone")
	c := testClient()

	err := c.Clone(context.Background(), filepath.Join(t.TempDir(), "nope"), "", dest)
	require.Error(t, err)
}

func TestHasUpdate_NotARepo(t *testing.T) {
	c := testClient()
	_, err := c.HasUpdate(context.Background(), t.TempDir())
	require.Error(t, err)
}

func TestIsPermanent(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"auth", &AuthError{Op: "clone", Err: errors.New("authentication required")}, true},
		{"not found", &NotFoundError{Op: "clone", Err: errors.New("repository not found")}, true},
		{"timeout", &NetworkTimeoutError{Op: "clone", Err: errors.New("i/o timeout")}, false},
		{"plain", fmt.Errorf("clone: %w", errors.New("connection reset")), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsPermanent(tc.err))
		})
	}
}

func TestClassifyCloneError(t *testing.T) {
	err := classifyCloneError("https://github.com/a/b.git", errors.New("authentication required"))
	var auth *AuthError
	assert.True(t, errors.As(err, &auth))

	err = classifyCloneError("https://github.com/a/b.git", errors.New("repository not found"))
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))

	err = classifyCloneError("https://github.com/a/b.git", errors.New("dial tcp: i/o timeout"))
	var to *NetworkTimeoutError
	assert.True(t, errors.As(err, &to))
}
