package fork

import (
	"errors"
	"os"
)

// Cleanup is the best-effort rollback run on interrupt, fatal error or clone
// exhaustion. When the live working copy is missing it restores the active
// fork's archived copy and params snapshot, and it always removes the
// clone-staging directory. It does not attempt to reverse steps that already
// completed.
func (s *Service) Cleanup() {
	if err := s.storage.RemoveAll(s.paths.CloneStagingDir()); err != nil {
		s.log.Error("cleanup: remove clone staging failed", "error", err)
	}

	active, ok, err := s.ActiveFork()
	if err != nil {
		s.log.Error("cleanup: read active fork failed", "error", err)
		return
	}
	if !ok {
		return
	}

	liveExists, err := s.storage.DirExists(s.paths.LivePath())
	if err != nil {
		s.log.Error("cleanup: stat live path failed", "error", err)
		return
	}
	if liveExists {
		return
	}

	s.log.Warn("cleanup: live working copy missing, restoring from archive", "fork", active)
	archived := s.paths.ArchivedCopy(active)
	if exists, err := s.storage.DirExists(archived); err != nil || !exists {
		if err != nil {
			s.log.Error("cleanup: stat archived copy failed", "error", err)
		} else {
			s.log.Error("cleanup: no archived copy to restore", "fork", active)
		}
		return
	}
	if err := s.storage.MoveDir(archived, s.paths.LivePath()); err != nil {
		s.log.Error("cleanup: restore working copy failed", "fork", active, "error", err)
		return
	}
	if err := s.restoreParamsFrom(active); err != nil {
		s.log.Error("cleanup: restore params failed", "fork", active, "error", err)
	}
	s.log.Info("cleanup: restored active fork from archive", "fork", active)
}

// PendingJournal reports a swap journal left behind by a previous run, or
// nil when the last operation completed cleanly.
func (s *Service) PendingJournal() (*Journal, error) {
	j, err := LoadJournal(s.storage, s.paths.JournalPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return j, nil
}

// ClearJournal discards a leftover journal after the operator has reviewed it.
func (s *Service) ClearJournal() error {
	j, err := s.PendingJournal()
	if err != nil || j == nil {
		return err
	}
	return j.Close()
}
