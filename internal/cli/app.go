// Package cli implements the interactive shell over the session core.
// Handlers prompt for their inputs, submit intents and print outcomes; all
// vault state stays inside the session.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mlukins/keyfob/internal/config"
	"github.com/mlukins/keyfob/internal/logging"
	"github.com/mlukins/keyfob/internal/session"
)

type App struct {
	state  *config.Statefile
	sess   *session.Session
	log    logging.Logger
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(state *config.Statefile, sess *session.Session, log logging.Logger) *App {
	if log == nil {
		log = logging.NewDiscard()
	}
	return &App{
		state:  state,
		sess:   sess,
		log:    log.With("component", "cli"),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

// Run restores the previously selected identity, then hands control to the
// shell until EOF or exit.
func (a *App) Run(ctx context.Context) {
	printlnFn("keyfob (type 'help' for commands)")

	if last := a.state.LastUser(); last != "" {
		if _, err := a.sess.Apply(ctx, session.SelectIdentity{Identity: last}); err == nil {
			printlnFn("Restored identity:", last)
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)
}

func (a *App) snapshot(ctx context.Context) (session.Snapshot, bool) {
	snap, err := a.sess.Snapshot(ctx)
	if err != nil {
		printlnFn("Error:", err.Error())
		return session.Snapshot{}, false
	}
	return snap, true
}

func (a *App) isUnlocked() bool {
	snap, ok := a.snapshot(context.Background())
	return ok && snap.Kind == session.StateUnlocked
}

func (a *App) status() string {
	snap, ok := a.snapshot(context.Background())
	if !ok {
		return ""
	}

	s := ""
	switch snap.Kind {
	case session.StateAwaitingUnlock:
		s = snap.Identity + " locked"
	case session.StateUnlocked:
		s = snap.Identity
	}
	if n := len(snap.Notices); n > 0 {
		s = fmt.Sprintf("%s !%d", s, n)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}
