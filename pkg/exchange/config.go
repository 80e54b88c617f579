package exchange

import (
	"context"
	"log/slog"
	"time"

	"github.com/mash-protocol/mash-exchange/pkg/log"
	"github.com/mash-protocol/mash-exchange/pkg/node"
	"github.com/mash-protocol/mash-exchange/pkg/store"
)

// Config configures a Downloader or Uploader.
type Config struct {
	// Reader performs batched reads. Required by NewDownloader.
	Reader node.BatchReader

	// Writer performs batched writes. Required by NewUploader.
	Writer node.BatchWriter

	// Store is the shared value store. A new store is created if nil.
	// A Downloader and an Uploader may share one store.
	Store *store.Store

	// Logger is the optional logger for debug output.
	// If nil, no logging is performed.
	Logger *slog.Logger

	// EventLogger receives one event per executed cycle.
	// If nil, no events are recorded.
	EventLogger log.Logger
}

// RunOptions configures Run.
type RunOptions struct {
	// Period is the target interval between cycle starts. A cycle that takes
	// longer than Period is followed immediately by the next one.
	Period time.Duration

	// Stop is checked before every cycle. Run returns nil once it reports true.
	Stop func() bool

	// Sleep waits between cycles. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRunOptions returns run options with a 1s period.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Period: time.Second,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
