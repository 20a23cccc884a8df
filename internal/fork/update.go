package fork

import (
	"context"
	"fmt"
)

// CheckUpdate fetches remote refs for the named fork and reports whether an
// upstream commit exists that the local copy does not have. Pure query, no
// merge.
func (s *Service) CheckUpdate(ctx context.Context, name string) (bool, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return false, err
	}
	dir, err := s.resolveForkDir(name)
	if err != nil {
		return false, fmt.Errorf("check update for %q: %w", name, err)
	}
	return s.git.HasUpdate(ctx, dir)
}

// Update fast-forwards the named fork's working copy to its remote tracking
// commit. Callers gate this behind CheckUpdate and user confirmation.
func (s *Service) Update(ctx context.Context, name string) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	dir, err := s.resolveForkDir(name)
	if err != nil {
		return fmt.Errorf("update %q: %w", name, err)
	}
	if err := s.git.FastForward(ctx, dir); err != nil {
		return fmt.Errorf("update %q: %w", name, err)
	}
	s.log.Info("fork updated", "fork", name, "path", dir)
	return nil
}
