package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes cycle events to an slog.Logger.
// Useful for development when you want to see cycles in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Failures are logged at Warn,
// everything else at Debug.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("cycle_id", event.ID),
		slog.String("scope", event.Scope),
		slog.String("direction", event.Direction.String()),
		slog.String("outcome", event.Outcome.String()),
		slog.Int("nodes", event.NodeCount),
		slog.Duration("duration", event.Duration),
	}
	if event.LinkCount > 0 {
		attrs = append(attrs, slog.Int("links", event.LinkCount))
	}
	if event.CallbackCount > 0 {
		attrs = append(attrs, slog.Int("callbacks", event.CallbackCount))
	}

	level := slog.LevelDebug
	if event.Outcome == OutcomeFailure {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", event.Error))
	}

	a.logger.LogAttrs(context.Background(), level, "cycle", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
