package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/mlukins/keyfob/internal/cli"
	"github.com/mlukins/keyfob/internal/config"
	"github.com/mlukins/keyfob/internal/logging"
	"github.com/mlukins/keyfob/internal/scheduler"
	"github.com/mlukins/keyfob/internal/session"
	"github.com/mlukins/keyfob/internal/store"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Without a usable state directory nothing can persist, so this is the
	// one failure that aborts startup.
	state, err := config.OpenStatefile(cfg.StateDir)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Warnings and errors only: the shell owns stdout.
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	var st store.Store
	switch cfg.Backend {
	case config.BackendKeyring:
		st = store.NewKeyringStore(cfg.AppID, logger)
	default:
		st = store.NewEnvelopeStore(state, logger)
	}

	sched := scheduler.New(cfg.FrameInterval, logger)
	defer sched.Close()

	sess := session.New(cfg, state, st, sched, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	app := cli.NewApp(state, sess, logger)
	app.Run(ctx)
}
