package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mlukins/keyfob/internal/session"
)

// List prints the vault entries with their current codes and countdowns,
// followed by any pending notices.
func (a *App) List(ctx context.Context) error {
	snap, ok := a.snapshot(ctx)
	if !ok {
		return nil
	}
	if snap.Kind != session.StateUnlocked {
		printlnFn("Vault is locked.")
		return nil
	}

	if len(snap.Entries) == 0 {
		printlnFn("Vault is empty, type 'add' to create an entry.")
	}
	a.printEntries(snap)
	a.printNotices(snap)
	return nil
}

// Dismiss removes one pending notice by number.
func (a *App) Dismiss(ctx context.Context) error {
	snap, ok := a.snapshot(ctx)
	if !ok {
		return nil
	}
	if len(snap.Notices) == 0 {
		printlnFn("No notices.")
		return nil
	}

	a.printNotices(snap)

	text, err := GetSimpleText(a.reader, "Enter notice number", a.out)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > len(snap.Notices) {
		printlnFn("No such notice:", text)
		return nil
	}

	if _, err := a.sess.Apply(ctx, session.DismissNotice{ID: snap.Notices[n-1].ID}); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	return nil
}

func (a *App) printEntries(snap session.Snapshot) {
	for i, e := range snap.Entries {
		name := e.Label
		if e.Issuer != "" {
			name = fmt.Sprintf("%s (%s)", e.Label, e.Issuer)
		}
		printlnFn(fmt.Sprintf("%2d. [%-2s] %s  %s  %ds", i+1, e.Icon.Initials, e.Pretty, name, e.Remaining))
	}
}

func (a *App) printNotices(snap session.Snapshot) {
	for i, n := range snap.Notices {
		printlnFn(fmt.Sprintf(" !%d. %s", i+1, n.Text))
	}
}
