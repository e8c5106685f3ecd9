// Package corelog provides the structured-event logging surface the spec
// requires (timeouts, breaker transitions, failover activations,
// reconciliation summaries all need to be "logged as a structured event").
// It wraps log/slog rather than introducing a third-party logging
// dependency: none of the retrieved examples standardize on one, and slog
// already gives leveled, structured, concurrency-safe logging. ERROR-level
// events are additionally mirrored to Sentry when a DSN has been
// configured via EnableSentry, matching the conexus sibling example's
// pattern of routing only warnings/errors to Sentry while the info stream
// stays local.
package corelog

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/getsentry/sentry-go"
)

var (
	mu       sync.RWMutex
	current  = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	sentryOn bool
)

// Default returns the process-wide logger.
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetDefault replaces the process-wide logger, e.g. so an external
// collaborator can redirect structured events into its own sink.
func SetDefault(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// EnableSentry wires ERROR-level structured events (such as red-zone
// memory refusals) to Sentry. Callers that never configure a
// DSN keep the pure-slog behavior; this is optional ambient
// observability, never a correctness dependency.
func EnableSentry(dsn string) error {
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
		return err
	}
	mu.Lock()
	sentryOn = true
	mu.Unlock()
	return nil
}

// Event logs a structured event at the given level with a stable "event"
// field, the shape every §4/§7 "log a structured event" requirement uses.
func Event(level slog.Level, event string, args ...any) {
	l := Default()
	l.Log(context.Background(), level, event, args...)

	mu.RLock()
	on := sentryOn
	mu.RUnlock()
	if on && level >= slog.LevelError {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetExtras(fieldsToMap(args))
			sentry.CaptureMessage(event)
		})
	}
}

func fieldsToMap(args []any) map[string]any {
	out := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		out[key] = args[i+1]
	}
	return out
}
