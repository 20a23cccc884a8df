package fork

import (
	"fmt"
)

// Step names shared by Switch and the tail of Clone. The order is the order
// they execute in.
const (
	stepBackupParams  = "backup-params"
	stepArchiveLive   = "archive-live-copy"
	stepActivateCopy  = "activate-target-copy"
	stepWritePointer  = "write-pointer"
	stepRestoreParams = "restore-params"
	stepFixPerms      = "fix-permissions"
	stepReboot        = "reboot"
)

var switchSteps = []string{
	stepBackupParams,
	stepArchiveLive,
	stepActivateCopy,
	stepWritePointer,
	stepRestoreParams,
	stepFixPerms,
	stepReboot,
}

// Switch swaps the live working copy for the named archived fork.
//
// The sequence is deliberately best-effort, not transactional: each step is
// journaled and logged individually, and a failed step does not abort the
// remaining steps. The returned journal tells the caller which steps failed.
// On full success the device reboots and this call does not return.
func (s *Service) Switch(target string) (*Journal, error) {
	target, err := NormalizeName(target)
	if err != nil {
		return nil, err
	}
	if err := s.InitInfra(); err != nil {
		return nil, err
	}

	hasCopy, err := s.storage.DirExists(s.paths.ArchivedCopy(target))
	if err != nil {
		return nil, err
	}
	if !hasCopy {
		return nil, fmt.Errorf("switch to %q: %w", target, ErrNoSnapshot)
	}

	active, hasActive, err := s.ActiveFork()
	if err != nil {
		return nil, err
	}
	if !hasActive {
		return nil, ErrNoActiveFork
	}
	if active == target {
		return nil, fmt.Errorf("fork %q is already active", target)
	}

	journal, err := NewJournal(s.storage, s.paths.JournalPath(), "switch", active, target, switchSteps)
	if err != nil {
		return nil, err
	}

	s.log.Info("switching fork", "from", active, "to", target)
	s.runSwapSequence(journal, active, target)
	return journal, journal.Close()
}

// runSwapSequence executes the archive-previous/activate-target tail shared
// by Switch and Clone. Errors are journaled and logged per step; execution
// always continues to the next step.
func (s *Service) runSwapSequence(journal *Journal, previous, target string) {
	step := func(name string, fn func() error) {
		err := fn()
		journal.Record(name, err)
		if err != nil {
			s.log.Error("swap step failed", "step", name, "error", err)
		} else {
			s.log.Info("swap step done", "step", name)
		}
	}

	step(stepBackupParams, func() error {
		return s.backupParamsInto(previous)
	})

	step(stepArchiveLive, func() error {
		live := s.paths.LivePath()
		exists, err := s.storage.DirExists(live)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("live working copy missing: %s", live)
		}
		dest := s.paths.ArchivedCopy(previous)
		// MoveDir refuses a pre-existing destination; a stale snapshot of
		// the active fork violates the layout invariant and is cleared.
		if stale, err := s.storage.DirExists(dest); err != nil {
			return err
		} else if stale {
			s.log.Warn("clearing stale snapshot of active fork", "fork", previous)
			if err := s.storage.RemoveAll(dest); err != nil {
				return err
			}
		}
		return s.storage.MoveDir(live, dest)
	})

	step(stepActivateCopy, func() error {
		return s.storage.MoveDir(s.paths.ArchivedCopy(target), s.paths.LivePath())
	})

	step(stepWritePointer, func() error {
		return s.store.Set(target)
	})

	step(stepRestoreParams, func() error {
		return s.restoreParamsFrom(target)
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
