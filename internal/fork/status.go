package fork

import (
	"context"
	"fmt"
)

// Entry describes one fork for the status screen.
type Entry struct {
	Name            string
	Active          bool
	HasCopy         bool
	HasParams       bool
	UpdateAvailable bool
}

// Display renders the entry the way the status screen lists forks.
func (e Entry) Display() string {
	line := "  " + e.Name
	if e.Active {
		line = "* " + e.Name + " (active)"
	}
	if e.UpdateAvailable {
		line += " (update available)"
	}
	return line
}

// Status lists every known fork with its archive state. When checkUpdates is
// true each fork's remote is fetched to annotate pending upstream commits;
// fetch failures degrade to an unannotated entry rather than failing the
// whole listing.
func (s *Service) Status(ctx context.Context, checkUpdates bool) ([]Entry, error) {
	names, err := s.ListArchived()
	if err != nil {
		return nil, err
	}
	active, hasActive, err := s.ActiveFork()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names)+1)
	seenActive := false
	for _, name := range names {
		entry := Entry{Name: name, Active: hasActive && name == active}
		seenActive = seenActive || entry.Active
		if entry.HasCopy, err = s.storage.DirExists(s.paths.ArchivedCopy(name)); err != nil {
			return nil, err
		}
		if entry.HasParams, err = s.storage.DirExists(s.paths.ArchivedParams(name)); err != nil {
			return nil, err
		}
		if checkUpdates {
			entry.UpdateAvailable = s.updateFlag(ctx, name)
		}
		entries = append(entries, entry)
	}

	// The active fork normally has an archive dir holding only params, but a
	// freshly provisioned device may not; surface it anyway.
	if hasActive && !seenActive {
		entry := Entry{Name: active, Active: true}
		if checkUpdates {
			entry.UpdateAvailable = s.updateFlag(ctx, active)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Service) updateFlag(ctx context.Context, name string) bool {
	has, err := s.CheckUpdate(ctx, name)
	if err != nil {
		s.log.Warn("update check failed", "fork", name, "error", err)
		return false
	}
	return has
}

// ArchiveExists reports whether the named fork has an archive directory.
func (s *Service) ArchiveExists(name string) (bool, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return false, err
	}
	return s.storage.DirExists(s.paths.ArchiveDir(name))
}

// Describe returns a one-line summary used by confirmation prompts.
func (s *Service) Describe(name string) (string, error) {
	entry := Entry{Name: name}
	var err error
	if entry.HasCopy, err = s.storage.DirExists(s.paths.ArchivedCopy(name)); err != nil {
		return "", err
	}
	if entry.HasParams, err = s.storage.DirExists(s.paths.ArchivedParams(name)); err != nil {
		return "", err
	}
	switch {
	case entry.HasCopy && entry.HasParams:
		return fmt.Sprintf("%s (working copy + params snapshot)", name), nil
	case entry.HasCopy:
		return fmt.Sprintf("%s (working copy)", name), nil
	case entry.HasParams:
		return fmt.Sprintf("%s (params snapshot only)", name), nil
	default:
		return fmt.Sprintf("%s (empty archive)", name), nil
	}
}
