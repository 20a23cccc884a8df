package fork

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/commatools/forkswitch/internal/fork/storage"
)

// Store persists the active fork pointer in a one-line file. All reads of
// the pointer go through here rather than ad hoc file access.
type Store struct {
	storage *storage.Storage
	path    string
	log     *slog.Logger
}

// NewStore creates a pointer store backed by the given file path.
func NewStore(st *storage.Storage, path string, log *slog.Logger) *Store {
	return &Store{storage: st, path: path, log: log}
}

// Get returns the active fork name. ok is false when no pointer has ever
// been written.
func (s *Store) Get() (name string, ok bool, err error) {
	data, err := s.storage.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read pointer file: %w", err)
	}
	name = strings.TrimSpace(string(data))
	if name == "" {
		return "", false, nil
	}
	return name, true, nil
}

// Set writes the pointer and verifies it by re-reading the file. A mismatch
// is logged as an error and reported; the write itself is not trusted.
func (s *Store) Set(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := s.storage.WriteFile(s.path, []byte(name+"\n")); err != nil {
		return fmt.Errorf("write pointer file: %w", err)
	}
	readBack, ok, err := s.Get()
	if err != nil {
		return fmt.Errorf("verify pointer file: %w", err)
	}
	if !ok || readBack != name {
		s.log.Error("active fork pointer verification failed",
			"expected", name,
			"actual", readBack)
		return fmt.Errorf("%w: wrote %q, read back %q", ErrPointerMismatch, name, readBack)
	}
	s.log.Info("active fork updated", "name", name)
	return nil
}
