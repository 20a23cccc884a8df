// Package logging wires slog to the device log file with size-based
// rotation, mirroring every entry to the console.
package logging

import (
	"io"
	"log/slog"

	"github.com/spf13/afero"
)

// Setup returns a logger writing human-readable lines to both console and
// the rotating log file at path. The returned closer flushes the file.
func Setup(fs afero.Fs, path string, maxBytes int64, console io.Writer, debug bool) (*slog.Logger, io.Closer, error) {
	rotating, err := NewRotatingWriter(fs, path, maxBytes)
	if err != nil {
		return nil, nil, err
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	var out io.Writer = rotating
	if console != nil {
		out = io.MultiWriter(console, rotating)
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), rotating, nil
}
