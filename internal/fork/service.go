// Package fork implements the fork-swap state machine: a persisted active
// fork pointer, an archive tree of inactive forks with optional params
// snapshots, and the switch/clone/delete/update operations over them.
package fork

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/commatools/forkswitch/internal/fork/storage"
)

// Git abstracts the version-control operations the manager delegates.
type Git interface {
	// Clone clones url (optionally at branch, empty for default) into dest.
	Clone(ctx context.Context, url, branch, dest string) error
	// HasUpdate fetches remote refs and reports whether the local HEAD
	// differs from the remote tracking commit. It never merges.
	HasUpdate(ctx context.Context, repoPath string) (bool, error)
	// FastForward advances the working copy to the remote tracking commit.
	FastForward(ctx context.Context, repoPath string) error
}

// System abstracts the OS-level operations a switch finishes with.
type System interface {
	// FixOwnership recursively restores device-user ownership of path.
	FixOwnership(path string) error
	// MarkExecutable sets the execute bit on path.
	MarkExecutable(path string) error
	// Reboot restarts the device. On success it does not return.
	Reboot() error
}

// Service coordinates all fork-swap operations. Filesystem access goes
// through an afero-backed Storage so the full state machine runs against an
// in-memory tree in tests.
type Service struct {
	storage *storage.Storage
	paths   *Paths
	store   *Store
	urls    *URLValidator
	git     Git
	sys     System
	log     *slog.Logger

	cloneRetries int
	cloneDelay   time.Duration
	sleep        func(time.Duration)
	installPath  string
}

// Options configures a Service.
type Options struct {
	Fs          afero.Fs
	Paths       *Paths
	Git         Git
	System      System
	Logger      *slog.Logger
	GitHost     string
	Retries     int
	RetryDelay  time.Duration
	InstallPath string
}

// NewService wires a Service from its collaborators. Zero retry settings
// fall back to the 3-attempt, 2-second defaults.
func NewService(opts Options) (*Service, error) {
	if opts.Fs == nil {
		return nil, errors.New("filesystem cannot be nil")
	}
	if opts.Paths == nil {
		return nil, errors.New("paths cannot be nil")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	host := opts.GitHost
	if host == "" {
		host = "github.com"
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = 3
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	st := storage.New(opts.Fs)
	return &Service{
		storage:      st,
		paths:        opts.Paths,
		store:        NewStore(st, opts.Paths.PointerPath(), log),
		urls:         NewURLValidator(host),
		git:          opts.Git,
		sys:          opts.System,
		log:          log,
		cloneRetries: retries,
		cloneDelay:   delay,
		sleep:        time.Sleep,
		installPath:  opts.InstallPath,
	}, nil
}

// Paths returns the path layout the service operates on.
func (s *Service) Paths() *Paths { return s.paths }

// Store returns the active fork pointer store.
func (s *Service) Store() *Store { return s.store }

// InitInfra ensures the forks root exists.
func (s *Service) InitInfra() error {
	return s.storage.MkdirAll(s.paths.ForksRoot())
}

// ActiveFork returns the active fork name, or ok=false when none is recorded.
func (s *Service) ActiveFork() (string, bool, error) {
	return s.store.Get()
}

// ListArchived returns the sorted names of every fork with an archive
// directory, active or not.
func (s *Service) ListArchived() ([]string, error) {
	if err := s.InitInfra(); err != nil {
		return nil, err
	}
	entries, err := s.storage.ReadDir(s.paths.ForksRoot())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if entry.Name() == CloneStagingName {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// SwitchTargets returns archived forks eligible for switching: those with a
// working-copy snapshot, excluding the active fork.
func (s *Service) SwitchTargets() ([]string, error) {
	names, err := s.ListArchived()
	if err != nil {
		return nil, err
	}
	active, _, err := s.ActiveFork()
	if err != nil {
		return nil, err
	}
	targets := make([]string, 0, len(names))
	for _, name := range names {
		if name == active {
			continue
		}
		hasCopy, err := s.storage.DirExists(s.paths.ArchivedCopy(name))
		if err != nil {
			return nil, err
		}
		if hasCopy {
			targets = append(targets, name)
		}
	}
	return targets, nil
}

// resolveForkDir returns the directory a fork's working copy lives in: the
// live path for the active fork, its archive snapshot otherwise.
func (s *Service) resolveForkDir(name string) (string, error) {
	active, ok, err := s.ActiveFork()
	if err != nil {
		return "", err
	}
	if ok && name == active {
		return s.paths.LivePath(), nil
	}
	path := s.paths.ArchivedCopy(name)
	exists, err := s.storage.DirExists(path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", ErrNoSnapshot
	}
	return path, nil
}

// backupParamsInto copies the live params directory into the named fork's
// archive. Merge semantics: the destination is overwritten file by file,
// never cleared, and the live directory is left in place.
func (s *Service) backupParamsInto(name string) error {
	live := s.paths.LiveParamsPath()
	exists, err := s.storage.DirExists(live)
	if err != nil {
		return err
	}
	if !exists {
		s.log.Warn("live params directory missing, nothing to back up", "path", live)
		return nil
	}
	return s.storage.CopyDir(live, s.paths.ArchivedParams(name))
}

// restoreParamsFrom overwrites the live params directory with the named
// fork's snapshot, when one exists.
func (s *Service) restoreParamsFrom(name string) error {
	snap := s.paths.ArchivedParams(name)
	exists, err := s.storage.DirExists(snap)
	if err != nil {
		return err
	}
	if !exists {
		s.log.Info("no params snapshot to restore", "fork", name)
		return nil
	}
	return s.storage.CopyDir(snap, s.paths.LiveParamsPath())
}

// fixLivePermissions restores ownership of the live copy and the execute
// bit on the installed forkswitch binary.
func (s *Service) fixLivePermissions() error {
	if s.sys == nil {
		return nil
	}
	if err := s.sys.FixOwnership(s.paths.LivePath()); err != nil {
		return err
	}
	if s.installPath == "" {
		return nil
	}
	if err := s.sys.FixOwnership(s.installPath); err != nil {
		return err
	}
	return s.sys.MarkExecutable(s.installPath)
}
