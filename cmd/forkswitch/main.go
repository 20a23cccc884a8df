// Command forkswitch manages openpilot forks on a comma device: switching
// the live installation between archived working copies, cloning new forks,
// and keeping both the forks and the tool itself up to date.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/commatools/forkswitch/internal/cli"
	"github.com/commatools/forkswitch/internal/config"
	"github.com/commatools/forkswitch/internal/fork"
	"github.com/commatools/forkswitch/internal/gitops"
	"github.com/commatools/forkswitch/internal/logging"
	"github.com/commatools/forkswitch/internal/selfupdate"
	"github.com/commatools/forkswitch/internal/sysops"
)

const (
	lockFileName   = ".forkswitch.lock"
	updateCacheDir = ".update-cache"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, cli.ErrPromptCancelled) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := afero.NewOsFs()

	cfg, err := config.Load(fs, "")
	if err != nil {
		return err
	}
	if err := sysops.RequireRoot(); err != nil {
		return err
	}

	lock, err := sysops.AcquireLock(filepath.Join(cfg.DataRoot, lockFileName))
	if err != nil {
		return err
	}
	defer lock.Release()

	log, logCloser, err := logging.Setup(fs, cfg.LogPath, cfg.LogMaxBytes, os.Stderr, cfg.Debug)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	paths := fork.NewPaths(cfg.DataRoot, cfg.LivePath, cfg.ParamsPath)
	git := gitops.NewClient(log, os.Stdout)
	ops := sysops.New(cfg.DeviceUser, cfg.RebootCmd, log)

	svc, err := fork.NewService(fork.Options{
		Fs:          fs,
		Paths:       paths,
		Git:         git,
		System:      ops,
		Logger:      log,
		GitHost:     cfg.GitHost,
		Retries:     cfg.CloneRetries,
		RetryDelay:  time.Duration(cfg.CloneRetryDelay),
		InstallPath: cfg.InstallPath,
	})
	if err != nil {
		return err
	}
	if err := svc.InitInfra(); err != nil {
		return err
	}

	// A leftover journal means a previous switch or clone died mid-flight.
	// Report it, repair what the staging cleanup can, and clear it.
	if journal, err := svc.PendingJournal(); err != nil {
		log.Warn("could not read leftover journal", "error", err)
	} else if journal != nil {
		log.Warn("previous operation did not complete",
			"op", journal.Op, "target", journal.Target, "failed_steps", len(journal.Failed()))
		svc.Cleanup()
		if err := svc.ClearJournal(); err != nil {
			log.Warn("could not clear journal", "error", err)
		}
	}

	updater := selfupdate.New(git, cfg.InstallPath, cfg.UpstreamURL,
		filepath.Join(filepath.Dir(cfg.InstallPath), updateCacheDir), "", log)

	app := &cli.App{
		Service:  svc,
		Updater:  updater,
		Prompter: cli.NewPromptUI(),
		Stdout:   os.Stdout,
		Log:      log,
		DiskFree: sysops.DiskFree,
		DataRoot: cfg.DataRoot,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = cli.NewRootCommand(app).ExecuteContext(ctx)
	if ctx.Err() != nil {
		// An interrupted clone may leave a staging directory behind.
		svc.Cleanup()
	}
	return err
}
