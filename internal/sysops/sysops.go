// Package sysops holds the OS-level operations the manager needs on the
// device: privilege checks, disk usage, ownership and permission repair,
// and the reboot that finishes a switch.
package sysops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// ErrNotRoot indicates the process lacks the privileges the device
// operations require.
var ErrNotRoot = errors.New("forkswitch must run as root")

// RequireRoot aborts startup when not running with elevated privileges.
func RequireRoot() error {
	if os.Geteuid() != 0 {
		return ErrNotRoot
	}
	return nil
}

// Ops performs privileged filesystem and device operations.
type Ops struct {
	deviceUser string
	rebootCmd  string
	log        *slog.Logger
}

// New creates an Ops targeting the given device user for ownership repair
// and the given command for reboots.
func New(deviceUser, rebootCmd string, log *slog.Logger) *Ops {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ops{deviceUser: deviceUser, rebootCmd: rebootCmd, log: log}
}

// FixOwnership recursively restores device-user ownership of path. A
// missing path is not an error; switches call this best-effort.
func (o *Ops) FixOwnership(path string) error {
	u, err := user.Lookup(o.deviceUser)
	if err != nil {
		return fmt.Errorf("lookup user %s: %w", o.deviceUser, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("parse uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("parse gid %q: %w", u.Gid, err)
	}

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return os.Lchown(path, uid, gid)
	}
	return filepath.WalkDir(path, func(p string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Lchown(p, uid, gid)
	})
}

// MarkExecutable sets the execute bits on path.
func (o *Ops) MarkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode().Perm()|0o111)
}

// Reboot restarts the device. On success the process does not survive it.
func (o *Ops) Reboot() error {
	o.log.Info("rebooting device", "command", o.rebootCmd)
	cmd := exec.Command(o.rebootCmd)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("reboot command %q: %w", o.rebootCmd, err)
	}
	return nil
}

// DiskFree reports free and total bytes of the filesystem holding path.
func DiskFree(path string) (free, total uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	return st.Bavail * bsize, st.Blocks * bsize, nil
}

// HumanBytes formats a byte count for the status screen.
func HumanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
