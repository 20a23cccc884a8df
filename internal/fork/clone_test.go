package fork

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/commatools/forkswitch/internal/gitops"
)

const cloneURL = "https://github.com/commaai/openpilot.git"

func TestClone_SucceedsAndSwitches(t *testing.T) {
	env := newTestEnv(t)
	env.seedActive(t, "stock")

	journal, err := env.svc.Clone(context.Background(), "new-fork", cloneURL, "release3")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if failed := journal.Failed(); len(failed) != 0 {
		t.Fatalf("expected no failed steps, got %+v", failed)
	}

	active, _, _ := env.svc.ActiveFork()
	if active != "new-fork" {
		t.Errorf("expected active fork new-fork, got %q", active)
	}
	if got := env.mustRead(t, "/data/openpilot/README.md"); got != "cloned from "+cloneURL+"@release3" {
		t.Errorf("live copy should hold the clone, got %q", got)
	}
	// Previous live copy was archived under its name.
	if got := env.mustRead(t, "/data/forks/stock/openpilot/version.txt"); got != "stock" {
		t.Errorf("previous fork should be archived, got %q", got)
	}
	if env.sys.reboots != 1 {
		t.Errorf("expected reboot after clone, got %d", env.sys.reboots)
	}
	// Staging dir must be gone.
	if exists, _ := afero.DirExists(env.fs, "/data/forks/.clone-staging"); exists {
		t.Error("clone staging dir should not remain")
	}
}

func TestClone_RetriesTransientFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seedActive(t, "stock")
	env.git.cloneErrs = []error{errNetwork, errNetwork}

	_, err := env.svc.Clone(context.Background(), "new-fork", cloneURL, "")
	if err != nil {
		t.Fatalf("Clone should succeed on the third attempt: %v", err)
	}
	if env.git.clones != 3 {
		t.Errorf("expected 3 clone attempts, got %d", env.git.clones)
	}
}

func TestClone_PermanentFailureAbortsWithoutRetry(t *testing.T) {
	env := newTestEnv(t)
	env.seedActive(t, "stock")
	authErr := &gitops.AuthError{Op: "clone", URL: cloneURL, Err: errors.New("authentication required")}
	env.git.cloneErrs = []error{authErr, authErr, authErr}

	_, err := env.svc.Clone(context.Background(), "new-fork", cloneURL, "")
	if err == nil {
		t.Fatal("expected error for a permanent clone failure")
	}
	var wantErr *gitops.AuthError
	if !errors.As(err, &wantErr) {
		t.Errorf("error should carry the auth failure, got %v", err)
	}
	if env.git.clones != 1 {
		t.Errorf("permanent failure should abort after 1 attempt, got %d", env.git.clones)
	}

	active, _, _ := env.svc.ActiveFork()
	if active != "stock" {
		t.Errorf("active fork should remain stock, got %q", active)
	}
}

func TestClone_RetryExhaustionLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.seedActive(t, "stock")
	env.git.cloneErrs = []error{errNetwork, errNetwork, errNetwork}

	_, err := env.svc.Clone(context.Background(), "new-fork", cloneURL, "")
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if env.git.clones != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", env.git.clones)
	}

	// Pointer unchanged, live copy unchanged, no partial archive.
	active, _, _ := env.svc.ActiveFork()
	if active != "stock" {
		t.Errorf("active fork should remain stock, got %q", active)
	}
	if got := env.mustRead(t, "/data/openpilot/version.txt"); got != "stock" {
		t.Errorf("live copy should be untouched, got %q", got)
	}
	if exists, _ := afero.DirExists(env.fs, "/data/forks/new-fork/openpilot"); exists {
		t.Error("no partial archive should remain for the failed clone")
	}
	if exists, _ := afero.DirExists(env.fs, "/data/forks/.clone-staging"); exists {
		t.Error("cleanup should remove the staging dir")
	}
	if env.sys.reboots != 0 {
		t.Error("no reboot should happen on a failed clone")
	}
}

func TestClone_RejectsBadURL(t *testing.T) {
	env := newTestEnv(t)
	env.seedActive(t, "stock")

	_, err := env.svc.Clone(context.Background(), "new-fork", "git@github.com:a/b.git", "")
	if err == nil {
		t.Fatal("expected URL validation error")
	}
	if env.git.clones != 0 {
		t.Error("no clone attempt should be made for an invalid URL")
	}
}

func TestClone_RejectsActiveName(t *testing.T) {
	env := newTestEnv(t)
	env.seedActive(t, "stock")

	if _, err := env.svc.Clone(context.Background(), "stock", cloneURL, ""); err == nil {
		t.Error("expected error when cloning over the active fork's name")
	}
}

func TestClone_OverwritesStaleSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.seedActive(t, "stock")
	env.seedArchived(t, "new-fork", false)
	env.write(t, "/data/forks/new-fork/openpilot/stale.txt", "old clone")

	_, err := env.svc.Clone(context.Background(), "new-fork", cloneURL, "")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if exists, _ := afero.Exists(env.fs, "/data/openpilot/stale.txt"); exists {
		t.Error("stale snapshot content must not survive the re-clone")
	}
}

func TestClone_FirstForkOnBlankDevice(t *testing.T) {
	env := newTestEnv(t)

	journal, err := env.svc.Clone(context.Background(), "first", cloneURL, "")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if failed := journal.Failed(); len(failed) != 0 {
		t.Fatalf("expected no failures, got %+v", failed)
	}
	active, ok, _ := env.svc.ActiveFork()
	if !ok || active != "first" {
		t.Errorf("expected first to be active, got %q ok=%v", active, ok)
	}
	if exists, _ := afero.DirExists(env.fs, "/data/openpilot"); !exists {
		t.Error("live path should hold the first clone")
	}
}
