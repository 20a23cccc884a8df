package fork

import (
	"context"
	"fmt"

	"github.com/commatools/forkswitch/internal/gitops"
)

var cloneSteps = []string{
	"clone",
	"own-clone",
	stepBackupParams,
	stepArchiveLive,
	stepActivateCopy,
	stepWritePointer,
	stepRestoreParams,
	stepFixPerms,
	stepReboot,
}

// Clone clones a new fork from url (optionally at branch) and switches to
// it. The clone itself is retried with a fixed delay; exhaustion runs
// best-effort cleanup and returns an error without touching the previously
// active fork. Once the clone has landed, the swap tail follows the same
// best-effort policy as Switch and ends in a reboot.
func (s *Service) Clone(ctx context.Context, name, url, branch string) (*Journal, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if err := s.urls.Validate(url); err != nil {
		return nil, err
	}
	if err := s.InitInfra(); err != nil {
		return nil, err
	}

	active, hasActive, err := s.ActiveFork()
	if err != nil {
		return nil, err
	}
	if hasActive && active == name {
		return nil, fmt.Errorf("fork %q is currently active, clone it under another name", name)
	}

	journal, err := NewJournal(s.storage, s.paths.JournalPath(), "clone", active, name, cloneSteps)
	if err != nil {
		return nil, err
	}

	// Any stale snapshot under the target name is discarded before cloning.
	if err := s.storage.RemoveAll(s.paths.ArchivedCopy(name)); err != nil {
		journal.Record("clone", err)
		return journal, fmt.Errorf("remove stale snapshot: %w", err)
	}

	cloneErr := s.cloneWithRetry(ctx, url, branch, name)
	journal.Record("clone", cloneErr)
	if cloneErr != nil {
		s.log.Error("clone failed after retries", "fork", name, "url", url, "error", cloneErr)
		s.Cleanup()
		return journal, cloneErr
	}
	s.log.Info("fork cloned", "fork", name, "url", url, "branch", branch)

	ownErr := func() error {
		if s.sys == nil {
			return nil
		}
		return s.sys.FixOwnership(s.paths.ArchivedCopy(name))
	}()
	journal.Record("own-clone", ownErr)
	if ownErr != nil {
		s.log.Error("ownership repair on clone failed", "fork", name, "error", ownErr)
	}

	if hasActive {
		s.runSwapSequence(journal, active, name)
		return journal, journal.Close()
	}

	// First fork on a blank device: nothing to archive, just activate.
	journal.Skip(stepBackupParams)
	journal.Skip(stepArchiveLive)
	s.activateFirstFork(journal, name)
	return journal, journal.Close()
}

// cloneWithRetry clones into the staging directory and moves the result into
// the fork's archive. Each failed attempt clears the staging directory and
// sleeps a fixed delay before the next; errors that retrying cannot help
// (bad credentials, missing repository) abort immediately.
func (s *Service) cloneWithRetry(ctx context.Context, url, branch, name string) error {
	staging := s.paths.CloneStagingDir()
	var lastErr error
	for attempt := 1; attempt <= s.cloneRetries; attempt++ {
		if err := s.storage.RemoveAll(staging); err != nil {
			return fmt.Errorf("clear staging dir: %w", err)
		}
		if attempt > 1 {
			s.log.Warn("retrying clone", "attempt", attempt, "of", s.cloneRetries, "url", url)
			s.sleep(s.cloneDelay)
		}
		if err := s.git.Clone(ctx, url, branch, staging); err != nil {
			if gitops.IsPermanent(err) {
				s.log.Error("clone failed permanently, not retrying", "attempt", attempt, "error", err)
				return fmt.Errorf("clone %s: %w", url, err)
			}
			lastErr = err
			s.log.Error("clone attempt failed", "attempt", attempt, "error", err)
			continue
		}
		if err := s.storage.MoveDir(staging, s.paths.ArchivedCopy(name)); err != nil {
			return fmt.Errorf("move clone into archive: %w", err)
		}
		return nil
	}
	return fmt.Errorf("clone %s failed after %d attempts: %w", url, s.cloneRetries, lastErr)
}

func (s *Service) activateFirstFork(journal *Journal, name string) {
	step := func(stepName string, fn func() error) {
		err := fn()
		journal.Record(stepName, err)
		if err != nil {
			s.log.Error("swap step failed", "step", stepName, "error", err)
		}
	}
	step(stepActivateCopy, func() error {
		return s.storage.MoveDir(s.paths.ArchivedCopy(name), s.paths.LivePath())
	})
	step(stepWritePointer, func() error {
		return s.store.Set(name)
	})
	step(stepRestoreParams, func() error {
		return s.restoreParamsFrom(name)
	})
	step(stepFixPerms, func() error {
		return s.fixLivePermissions()
	})
	step(stepReboot, func() error {
		if s.sys == nil {
			return nil
		}
		return s.sys.Reboot()
	})
}
