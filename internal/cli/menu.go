package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/commatools/forkswitch/internal/fork"
)

const (
	menuClone  = "Clone a new fork"
	menuDelete = "Delete a fork"
	menuCheck  = "Check forks for updates"
	menuSelf   = "Update forkswitch"
	menuExit   = "Exit"

	switchPrefix = "Switch to "
	updatePrefix = "Update fork "
)

// runMenu is the interactive loop shown when forkswitch runs without a
// subcommand. Each iteration fetches the fork list once and renders the
// status screen and the menu items from it. Action errors are printed and
// the loop continues; only a cancelled prompt at the top level exits.
func (a *App) runMenu(ctx context.Context) error {
	checkUpdates := false
	for {
		fmt.Fprintln(a.Stdout)
		entries, err := a.Service.Status(ctx, checkUpdates)
		if err != nil {
			return err
		}
		// One annotated render per request; the next iteration goes back
		// to the offline listing.
		checkUpdates = false
		if err := a.renderStatus(entries); err != nil {
			return err
		}

		_, choice, err := a.Prompter.Select("Choose an action", menuItems(entries), "")
		if err != nil {
			if errors.Is(err, ErrPromptCancelled) {
				return nil
			}
			return err
		}

		switch {
		case choice == menuExit:
			return nil
		case choice == menuCheck:
			checkUpdates = true
			continue
		case choice == menuClone:
			err = a.menuClone(ctx)
		case choice == menuDelete:
			err = a.menuDelete()
		case choice == menuSelf:
			err = a.doSelfUpdate(ctx, false)
		case strings.HasPrefix(choice, switchPrefix):
			err = a.doSwitch(strings.TrimPrefix(choice, switchPrefix), false)
		case strings.HasPrefix(choice, updatePrefix):
			err = a.doUpdate(ctx, strings.TrimPrefix(choice, updatePrefix), false)
		default:
			fmt.Fprintf(a.Stdout, "Invalid choice: %s\n", choice)
			continue
		}
		if err != nil {
			if errors.Is(err, ErrPromptCancelled) {
				continue
			}
			a.Log.Error("menu action failed", "action", choice, "error", err)
			fmt.Fprintf(a.Stdout, "Error: %v\n", err)
		}
	}
}

func menuItems(entries []fork.Entry) []string {
	var items []string
	for _, e := range entries {
		if !e.Active && e.HasCopy {
			items = append(items, switchPrefix+e.Name)
		}
	}
	for _, e := range entries {
		if e.UpdateAvailable {
			items = append(items, updatePrefix+e.Name)
		}
	}
	return append(items, menuClone, menuDelete, menuCheck, menuSelf, menuExit)
}

func (a *App) menuClone(ctx context.Context) error {
	name, url, branch, err := a.promptCloneDetails()
	if err != nil {
		return err
	}
	return a.doClone(ctx, name, url, branch, false)
}

func (a *App) menuDelete() error {
	names, err := a.Service.ListArchived()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(a.Stdout, "No forks to delete.")
		return nil
	}
	_, name, err := a.Prompter.Select("Select fork to delete", names, "")
	if err != nil {
		return err
	}
	return a.doDelete(name, false)
}
