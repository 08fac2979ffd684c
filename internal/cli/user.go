package cli

import (
	"context"
	"time"

	"github.com/mlukins/keyfob/internal/session"
)

// User selects the active identity and waits for its vault to load.
func (a *App) User(ctx context.Context) error {
	identity, err := GetSimpleText(a.reader, "Enter identity name", a.out)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	if _, err := a.sess.Apply(ctx, session.SelectIdentity{Identity: identity}); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	snap := a.waitSettled(ctx)
	switch {
	case snap.Kind == session.StateUnlocked:
		printlnFn("Vault unlocked.")
	case snap.AwaitingPassphrase:
		printlnFn("Vault is locked, type 'unlock' to open it.")
	}
	return nil
}

// Unlock prompts for the passphrase and opens the pending vault.
func (a *App) Unlock(ctx context.Context) error {
	passphrase, err := GetPassword("Enter passphrase", a.out)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	if _, err := a.sess.Apply(ctx, session.Unlock{Passphrase: passphrase}); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	snap := a.waitSettled(ctx)
	if snap.Kind == session.StateUnlocked {
		printlnFn("Vault unlocked.")
	} else {
		// The failure reason arrived as a notice.
		a.printNotices(snap)
	}
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if _, err := a.sess.Apply(ctx, session.Logout{}); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Logged out.")
	return nil
}

// waitSettled polls until no background load or unlock is pending, so the
// handler can report the outcome instead of an intermediate state.
func (a *App) waitSettled(ctx context.Context) session.Snapshot {
	deadline := time.Now().Add(30 * time.Second)
	for {
		snap, ok := a.snapshot(ctx)
		if !ok {
			return session.Snapshot{}
		}
		if !snap.LoadPending || time.Now().After(deadline) {
			return snap
		}
		select {
		case <-ctx.Done():
			return snap
		case <-time.After(50 * time.Millisecond):
		}
	}
}
