package fork

import "fmt"

// Delete removes the named fork's archive directory. The pointer is never
// touched: deleting the active fork's archive entry leaves the live copy in
// place, since an active fork keeps no snapshot under its own name.
func (s *Service) Delete(name string) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	dir := s.paths.ArchiveDir(name)
	exists, err := s.storage.DirExists(dir)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %q", ErrForkNotFound, name)
	}
	if err := s.storage.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete fork %q: %w", name, err)
	}
	s.log.Info("fork deleted", "fork", name)
	return nil
}
