// Package selfupdate keeps the installed forkswitch binary in sync with its
// upstream repository: fetch the upstream copy, compare content hashes,
// atomically replace the installed file and hand the process over to the
// new binary.
package selfupdate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// repoSyncer is the subset of git operations needed to mirror the upstream
// repository locally.
type repoSyncer interface {
	Clone(ctx context.Context, url, branch, dest string) error
	FastForward(ctx context.Context, repoPath string) error
}

// Updater checks and applies updates to the installed binary.
type Updater struct {
	git         repoSyncer
	log         *slog.Logger
	installPath string
	upstreamURL string
	cacheDir    string
	repoFile    string // path of the binary inside the upstream repo

	execFunc func(argv0 string, argv []string, envv []string) error
}

// New creates an Updater. repoFile defaults to the install path's base name.
func New(git repoSyncer, installPath, upstreamURL, cacheDir, repoFile string, log *slog.Logger) *Updater {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if repoFile == "" {
		repoFile = filepath.Base(installPath)
	}
	return &Updater{
		git:         git,
		log:         log,
		installPath: installPath,
		upstreamURL: upstreamURL,
		cacheDir:    cacheDir,
		repoFile:    repoFile,
		execFunc:    unix.Exec,
	}
}

// Check mirrors the upstream repository and reports whether the upstream
// copy of the binary differs from the installed one.
func (u *Updater) Check(ctx context.Context) (bool, error) {
	if err := u.syncCache(ctx); err != nil {
		return false, err
	}
	upstream, err := fileHash(u.candidatePath())
	if err != nil {
		return false, fmt.Errorf("hash upstream copy: %w", err)
	}
	installed, err := fileHash(u.installPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("hash installed copy: %w", err)
	}
	differs := upstream != installed
	u.log.Debug("self-update check", "installed", installed[:8], "upstream", upstream[:8], "differs", differs)
	return differs, nil
}

// Apply replaces the installed binary with the upstream copy (temp file +
// rename, never in-place mutation of the running image) and hands execution
// over to it. On success this call does not return.
func (u *Updater) Apply(ctx context.Context) error {
	differs, err := u.Check(ctx)
	if err != nil {
		return err
	}
	if !differs {
		u.log.Info("already running the upstream version")
		return nil
	}
	if err := u.replaceInstalled(); err != nil {
		return err
	}
	u.log.Info("handing over to updated binary", "path", u.installPath)
	return u.execFunc(u.installPath, os.Args, os.Environ())
}

func (u *Updater) replaceInstalled() error {
	src, err := os.Open(u.candidatePath())
	if err != nil {
		return fmt.Errorf("open upstream copy: %w", err)
	}
	defer src.Close()

	dir := filepath.Dir(u.installPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create install dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".forkswitch-update-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if copyErr != nil {
			return fmt.Errorf("copy update: %w", copyErr)
		}
		return fmt.Errorf("close temp file: %w", closeErr)
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("mark executable: %w", err)
	}
	if err := os.Rename(tmpPath, u.installPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace installed binary: %w", err)
	}
	return nil
}

func (u *Updater) syncCache(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(u.cacheDir, ".git")); err == nil {
		if ffErr := u.git.FastForward(ctx, u.cacheDir); ffErr != nil {
			// A corrupted or diverged cache is rebuilt from scratch.
			u.log.Warn("upstream cache update failed, recloning", "error", ffErr)
			if rmErr := os.RemoveAll(u.cacheDir); rmErr != nil {
				return fmt.Errorf("remove stale cache: %w", rmErr)
			}
			return u.git.Clone(ctx, u.upstreamURL, "", u.cacheDir)
		}
		return nil
	}
	return u.git.Clone(ctx, u.upstreamURL, "", u.cacheDir)
}

func (u *Updater) candidatePath() string {
	return filepath.Join(u.cacheDir, u.repoFile)
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
