// Package logging defines the minimal structured-logging interface used
// across keyfob. The production implementation wraps slog; tests can plug
// in a recording stub.
package logging

import "context"

// Logger is a context-aware, structured logger. Variadic args are
// interpreted as key-value pairs:
//
//	log.Info(ctx, "vault saved", "identity", id, "entries", n)
type Logger interface {
	// Debug logs fine-grained diagnostics (timer firings, save generations).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs normal lifecycle events.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs unusual but recoverable conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always carries the given pairs.
	With(args ...any) Logger
}
