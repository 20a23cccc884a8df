package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// DefaultMaxBytes is the rotation threshold for the log file.
const DefaultMaxBytes = 1 << 20 // 1 MiB

// RotatingWriter appends to a single log file and rotates it aside to a
// ".old" sibling once it reaches the size threshold. Rotation replaces any
// previous ".old" file and starts the fresh file with a marker line.
type RotatingWriter struct {
	mu       sync.Mutex
	fs       afero.Fs
	path     string
	maxBytes int64
	file     afero.File
	size     int64
	now      func() time.Time
}

// NewRotatingWriter opens (or creates) the log file at path. maxBytes <= 0
// selects the 1 MiB default.
func NewRotatingWriter(fs afero.Fs, path string, maxBytes int64) (*RotatingWriter, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	w := &RotatingWriter{fs: fs, path: path, maxBytes: maxBytes, now: time.Now}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) open() error {
	if err := w.fs.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := w.fs.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// Write appends p, rotating first when the file has already reached the
// threshold.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size >= w.maxBytes {
		if err := w.rotate(); err != nil {
			// Rotation failure must not lose the entry; keep appending.
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// rotate moves the current file aside to ".old" and starts a fresh one. The
// open handle is replaced only once the fresh file exists, so a failed
// rotation leaves the writer appending to the original file.
func (w *RotatingWriter) rotate() error {
	oldPath := w.path + ".old"
	if err := w.fs.Remove(oldPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove previous rotation: %w", err)
	}
	if err := w.fs.Rename(w.path, oldPath); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	fresh, err := w.fs.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// Put the file back so the current handle keeps matching w.path.
		_ = w.fs.Rename(oldPath, w.path)
		return fmt.Errorf("open rotated log file: %w", err)
	}
	w.file.Close()
	w.file = fresh
	w.size = 0

	marker := fmt.Sprintf("log rotated at %s\n", w.now().UTC().Format(time.RFC3339))
	n, err := w.file.Write([]byte(marker))
	w.size += int64(n)
	return err
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
