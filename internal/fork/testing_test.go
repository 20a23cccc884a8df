package fork

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// fakeGit scripts the version-control collaborator. cloneErrs is consumed
// one per attempt; once exhausted, clones succeed by materializing a file
// tree at the destination.
type fakeGit struct {
	fs        afero.Fs
	cloneErrs []error
	clones    int
	hasUpdate bool
	updateErr error
	ffCalls   []string
	ffErr     error
}

func (g *fakeGit) Clone(_ context.Context, url, branch, dest string) error {
	g.clones++
	if len(g.cloneErrs) > 0 {
		err := g.cloneErrs[0]
		g.cloneErrs = g.cloneErrs[1:]
		if err != nil {
			return err
		}
	}
	if err := g.fs.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return afero.WriteFile(g.fs, dest+"/README.md", []byte("cloned from "+url+"@"+branch), 0o644)
}

func (g *fakeGit) HasUpdate(context.Context, string) (bool, error) {
	return g.hasUpdate, g.updateErr
}

func (g *fakeGit) FastForward(_ context.Context, repoPath string) error {
	g.ffCalls = append(g.ffCalls, repoPath)
	return g.ffErr
}

// fakeSystem records permission repairs and reboots instead of touching the OS.
type fakeSystem struct {
	owned    []string
	execs    []string
	reboots  int
	ownErr   error
	rebootEr error
}

func (s *fakeSystem) FixOwnership(path string) error {
	s.owned = append(s.owned, path)
	return s.ownErr
}

func (s *fakeSystem) MarkExecutable(path string) error {
	s.execs = append(s.execs, path)
	return nil
}

func (s *fakeSystem) Reboot() error {
	s.reboots++
	return s.rebootEr
}

type testEnv struct {
	fs  afero.Fs
	svc *Service
	git *fakeGit
	sys *fakeSystem
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fs := afero.NewMemMapFs()
	git := &fakeGit{fs: fs}
	sys := &fakeSystem{}
	svc, err := NewService(Options{
		Fs:          fs,
		Paths:       NewPaths("/data", "", ""),
		Git:         git,
		System:      sys,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		RetryDelay:  time.Millisecond,
		InstallPath: "/data/forkswitch/forkswitch",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	svc.sleep = func(time.Duration) {}
	return &testEnv{fs: fs, svc: svc, git: git, sys: sys}
}

func (e *testEnv) write(t *testing.T, path, content string) {
	t.Helper()
	if err := afero.WriteFile(e.fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func (e *testEnv) mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// seedActive installs a live working copy and pointer for the named fork.
func (e *testEnv) seedActive(t *testing.T, name string) {
	t.Helper()
	e.write(t, "/data/openpilot/version.txt", name)
	e.write(t, "/data/params/d/DongleId", "abc123")
	if err := e.svc.Store().Set(name); err != nil {
		t.Fatalf("seed pointer: %v", err)
	}
}

// seedArchived installs an archived working copy (and optional params) for a fork.
func (e *testEnv) seedArchived(t *testing.T, name string, withParams bool) {
	t.Helper()
	e.write(t, "/data/forks/"+name+"/openpilot/version.txt", name)
	if withParams {
		e.write(t, "/data/forks/"+name+"/params/d/DongleId", name+"-dongle")
	}
}

var errNetwork = errors.New("dial tcp: connection refused")
