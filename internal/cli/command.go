// Package cli wires the fork manager operations to a cobra command tree and
// the interactive device menu.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/commatools/forkswitch/internal/fork"
	"github.com/commatools/forkswitch/internal/selfupdate"
	"github.com/commatools/forkswitch/internal/sysops"
)

// App bundles the collaborators every command needs.
type App struct {
	Service  *fork.Service
	Updater  *selfupdate.Updater
	Prompter Prompter
	Stdout   io.Writer
	Log      *slog.Logger

	// DiskFree reports free/total bytes for the status screen; nil skips
	// the disk line (tests).
	DiskFree func(path string) (free, total uint64, err error)
	DataRoot string
}

// NewRootCommand constructs the root cobra command. Running it without a
// subcommand enters the interactive menu.
func NewRootCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forkswitch",
		Short: "Openpilot fork manager",
		Long:  "forkswitch switches, clones, deletes and updates openpilot forks on the device.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runMenu(cmd.Context())
		},
		SilenceUsage: true,
	}
	cmd.SetOut(app.Stdout)

	cmd.AddCommand(newStatusCommand(app))
	cmd.AddCommand(newSwitchCommand(app))
	cmd.AddCommand(newCloneCommand(app))
	cmd.AddCommand(newDeleteCommand(app))
	cmd.AddCommand(newUpdateCommand(app))
	cmd.AddCommand(newSelfUpdateCommand(app))

	return cmd
}

func newStatusCommand(app *App) *cobra.Command {
	var checkUpdates bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active fork and available forks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.printStatus(cmd.Context(), checkUpdates)
		},
	}
	cmd.Flags().BoolVar(&checkUpdates, "check-updates", false, "Fetch each fork's remote and annotate pending updates")
	return cmd
}

func newSwitchCommand(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "switch [name]",
		Short: "Switch the live installation to an archived fork and reboot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			} else {
				targets, err := app.Service.SwitchTargets()
				if err != nil {
					return err
				}
				if len(targets) == 0 {
					return fmt.Errorf("no archived forks available to switch to")
				}
				_, name, err = app.Prompter.Select("Select fork to switch to", targets, "")
				if err != nil {
					return err
				}
			}
			return app.doSwitch(name, yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newCloneCommand(app *App) *cobra.Command {
	var branch string
	var yes bool
	cmd := &cobra.Command{
		Use:   "clone [name] [url]",
		Short: "Clone a new fork and switch to it",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name, url string
			var err error
			switch len(args) {
			case 2:
				name, url = args[0], args[1]
			case 0:
				if name, url, branch, err = app.promptCloneDetails(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("provide both name and url, or neither")
			}
			return app.doClone(cmd.Context(), name, url, branch, yes)
		},
	}
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch to clone (default: repository default)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newDeleteCommand(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a fork's archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			} else {
				names, err := app.Service.ListArchived()
				if err != nil {
					return err
				}
				if len(names) == 0 {
					return fmt.Errorf("no forks to delete")
				}
				_, name, err = app.Prompter.Select("Select fork to delete", names, "")
				if err != nil {
					return err
				}
			}
			return app.doDelete(name, yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newUpdateCommand(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Fast-forward a fork to its upstream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.doUpdate(cmd.Context(), args[0], yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newSelfUpdateCommand(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Update forkswitch itself from upstream and re-exec",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.doSelfUpdate(cmd.Context(), yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func (a *App) printStatus(ctx context.Context, checkUpdates bool) error {
	entries, err := a.Service.Status(ctx, checkUpdates)
	if err != nil {
		return err
	}
	return a.renderStatus(entries)
}

func (a *App) renderStatus(entries []fork.Entry) error {
	active, ok, err := a.Service.ActiveFork()
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(a.Stdout, "Active fork: %s\n", active)
	} else {
		fmt.Fprintln(a.Stdout, "Active fork: <none>")
	}

	if a.DiskFree != nil && a.DataRoot != "" {
		if free, total, err := a.DiskFree(a.DataRoot); err == nil {
			fmt.Fprintf(a.Stdout, "Disk: %s free of %s\n", sysops.HumanBytes(free), sysops.HumanBytes(total))
		} else {
			a.Log.Warn("disk usage unavailable", "error", err)
		}
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.Stdout, "No forks yet. Use 'forkswitch clone' to add one.")
		return nil
	}
	fmt.Fprintln(a.Stdout, "Forks:")
	for _, e := range entries {
		fmt.Fprintln(a.Stdout, e.Display())
	}
	return nil
}

func (a *App) doSwitch(name string, yes bool) error {
	if !yes {
		ok, err := a.Prompter.Confirm(fmt.Sprintf("Switch to %s and reboot", name), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.Stdout, "Switch cancelled.")
			return nil
		}
	}
	journal, err := a.Service.Switch(name)
	if err != nil {
		return err
	}
	a.reportJournal(journal)
	return nil
}

func (a *App) doClone(ctx context.Context, name, url, branch string, yes bool) error {
	if err := fork.ValidateName(name); err != nil {
		return err
	}
	exists, err := a.Service.ArchiveExists(name)
	if err != nil {
		return err
	}
	if exists && !yes {
		desc, err := a.Service.Describe(name)
		if err != nil {
			return err
		}
		ok, err := a.Prompter.Confirm(fmt.Sprintf("Fork %s exists, overwrite", desc), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.Stdout, "Clone cancelled.")
			return nil
		}
	}
	if !yes {
		ok, err := a.Prompter.Confirm(fmt.Sprintf("Clone %s as %s and reboot", url, name), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.Stdout, "Clone cancelled.")
			return nil
		}
	}
	journal, err := a.Service.Clone(ctx, name, url, branch)
	if err != nil {
		return err
	}
	a.reportJournal(journal)
	return nil
}

func (a *App) doDelete(name string, yes bool) error {
	active, hasActive, err := a.Service.ActiveFork()
	if err != nil {
		return err
	}
	label := fmt.Sprintf("Delete fork %s", name)
	if hasActive && name == active {
		label = fmt.Sprintf("Fork %s is ACTIVE; its live copy stays but its archive is removed. Delete", name)
	}
	if !yes {
		ok, err := a.Prompter.Confirm(label, false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.Stdout, "Delete cancelled.")
			return nil
		}
	}
	if err := a.Service.Delete(name); err != nil {
		return err
	}
	fmt.Fprintf(a.Stdout, "Deleted fork: %s\n", name)
	return nil
}

func (a *App) doUpdate(ctx context.Context, name string, yes bool) error {
	has, err := a.Service.CheckUpdate(ctx, name)
	if err != nil {
		return err
	}
	if !has {
		fmt.Fprintf(a.Stdout, "Fork %s is up to date.\n", name)
		return nil
	}
	if !yes {
		ok, err := a.Prompter.Confirm(fmt.Sprintf("Update %s to upstream", name), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.Stdout, "Update cancelled.")
			return nil
		}
	}
	if err := a.Service.Update(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(a.Stdout, "Updated fork: %s\n", name)
	return nil
}

func (a *App) doSelfUpdate(ctx context.Context, yes bool) error {
	differs, err := a.Updater.Check(ctx)
	if err != nil {
		return err
	}
	if !differs {
		fmt.Fprintln(a.Stdout, "forkswitch is up to date.")
		return nil
	}
	if !yes {
		ok, err := a.Prompter.Confirm("A new forkswitch version is available. Install and restart", true)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.Stdout, "Self-update cancelled.")
			return nil
		}
	}
	// On success Apply execs the new binary and never returns.
	return a.Updater.Apply(ctx)
}

func (a *App) promptCloneDetails() (name, url, branch string, err error) {
	if name, err = a.Prompter.Prompt("Fork name"); err != nil {
		return "", "", "", err
	}
	name = strings.TrimSpace(name)
	if err = fork.ValidateName(name); err != nil {
		return "", "", "", err
	}
	if url, err = a.Prompter.Prompt("Repository URL (https://<host>/<owner>/<repo>.git)"); err != nil {
		return "", "", "", err
	}
	if branch, err = a.Prompter.Prompt("Branch (empty for default)"); err != nil {
		return "", "", "", err
	}
	return name, strings.TrimSpace(url), strings.TrimSpace(branch), nil
}

// reportJournal surfaces per-step results after a swap that did not end in
// a reboot (some step failed, or the reboot was a no-op under test).
func (a *App) reportJournal(j *fork.Journal) {
	failed := j.Failed()
	if len(failed) == 0 {
		fmt.Fprintln(a.Stdout, "All steps completed.")
		return
	}
	fmt.Fprintln(a.Stdout, "Completed with failed steps:")
	for _, step := range failed {
		fmt.Fprintf(a.Stdout, "  %s: %s\n", step.Name, step.Error)
	}
}
