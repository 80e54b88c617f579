package exchange

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mash-protocol/mash-exchange/pkg/log"
	"github.com/mash-protocol/mash-exchange/pkg/node"
	"github.com/mash-protocol/mash-exchange/pkg/store"
	"github.com/mash-protocol/mash-exchange/pkg/subscription"
)

// coordinator holds what the Connections of one Downloader or Uploader share.
type coordinator struct {
	dir      subscription.Direction
	registry *subscription.Registry
	tokens   *subscription.TokenGenerator
	store    *store.Store
	reader   node.BatchReader
	writer   node.BatchWriter
	events   log.Logger
	logger   *slog.Logger

	root *Connection
}

func newCoordinator(dir subscription.Direction, cfg Config) (*coordinator, error) {
	st := cfg.Store
	if st == nil {
		st = store.New()
	}
	co := &coordinator{
		dir:      dir,
		registry: subscription.NewRegistry(),
		tokens:   subscription.NewTokenGenerator(),
		store:    st,
		reader:   cfg.Reader,
		writer:   cfg.Writer,
		events:   cfg.EventLogger,
		logger:   cfg.Logger,
	}
	root, err := newConnection(co, nil, subscription.RootToken)
	if err != nil {
		return nil, err
	}
	co.root = root

	co.debugLog("coordinator created",
		"direction", dir.String(),
		"owner", co.tokens.Owner().String())

	return co, nil
}

func (co *coordinator) env(token subscription.Token) subscription.Env {
	return subscription.Env{
		Store:  co.store,
		Reader: co.reader,
		Writer: co.writer,
		Events: co.events,
		Scope:  token.String(),
	}
}

// debugLog logs a debug message if logging is enabled.
func (co *coordinator) debugLog(msg string, args ...any) {
	if co.logger != nil {
		co.logger.Debug(msg, args...)
	}
}

// Store returns the shared value store.
func (co *coordinator) Store() *store.Store {
	return co.store
}

// DataView returns a view of the store restricted to keys starting with
// prefix. Its membership covers every currently subscribed node and every
// stored node with a matching key.
func (co *coordinator) DataView(prefix string) *store.DataView {
	return co.store.View(prefix, co.root.nodes)
}

// CleanData deletes stored values whose node no Connection subscribes to and
// returns the number of deleted values.
func (co *coordinator) CleanData() int {
	removed := co.store.Retain(co.root.nodes)
	if removed > 0 {
		co.debugLog("store cleaned", "removed", removed, "remaining", co.store.Len())
	}
	return removed
}

// Registered returns the number of live tokens, the root included.
func (co *coordinator) Registered() int {
	return co.registry.Len()
}

func (co *coordinator) run(ctx context.Context, opts RunOptions, cycle func(context.Context) error) error {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	co.debugLog("run started", "direction", co.dir.String(), "period", opts.Period)

	for {
		if ctx.Err() != nil {
			co.debugLog("run stopped", "reason", "context done")
			return nil
		}
		if opts.Stop != nil && opts.Stop() {
			co.debugLog("run stopped", "reason", "stop requested")
			return nil
		}

		start := time.Now()
		if err := cycle(ctx); err != nil {
			if errors.Is(err, ErrStop) {
				co.debugLog("run stopped", "reason", "callback requested stop")
				return nil
			}
			if ctx.Err() != nil {
				co.debugLog("run stopped", "reason", "context done")
				return nil
			}
			return err
		}

		wait := opts.Period - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		if err := sleep(ctx, wait); err != nil {
			if ctx.Err() != nil {
				co.debugLog("run stopped", "reason", "context done")
				return nil
			}
			return err
		}
	}
}

// DownloadConnection is a Connection of a Downloader.
type DownloadConnection struct {
	*Connection
}

// NewConnection creates a child connection.
func (c *DownloadConnection) NewConnection() (*DownloadConnection, error) {
	child, err := c.newChild()
	if err != nil {
		return nil, err
	}
	return &DownloadConnection{Connection: child}, nil
}

// Download executes the connection's compiled cycle: one batched read of its
// aggregated nodes, then data link population and callbacks.
func (c *DownloadConnection) Download(ctx context.Context) error {
	return c.execute(ctx)
}

// UploadConnection is a Connection of an Uploader.
type UploadConnection struct {
	*Connection
}

// NewConnection creates a child connection.
func (c *UploadConnection) NewConnection() (*UploadConnection, error) {
	child, err := c.newChild()
	if err != nil {
		return nil, err
	}
	return &UploadConnection{Connection: child}, nil
}

// Upload executes the connection's compiled cycle: one batched write of the
// stored values of its aggregated nodes and of its data links' writes, then
// callbacks.
func (c *UploadConnection) Upload(ctx context.Context) error {
	return c.execute(ctx)
}

// Downloader coordinates a shared periodic batched read.
//
// The Downloader is itself the root Connection of its tree. Nodes and
// callbacks added to it directly belong to the root token.
type Downloader struct {
	*DownloadConnection
	*coordinator
}

// NewDownloader creates a Downloader. cfg.Reader is required.
func NewDownloader(cfg Config) (*Downloader, error) {
	if cfg.Reader == nil {
		return nil, ErrNoReader
	}
	co, err := newCoordinator(subscription.Download, cfg)
	if err != nil {
		return nil, err
	}
	return &Downloader{
		DownloadConnection: &DownloadConnection{Connection: co.root},
		coordinator:        co,
	}, nil
}

// Run downloads once per period until the context is done, opts.Stop
// reports true, or a callback returns ErrStop. Any other cycle error is
// returned.
func (d *Downloader) Run(ctx context.Context, opts RunOptions) error {
	return d.run(ctx, opts, d.Download)
}

// Uploader coordinates a shared periodic batched write.
//
// The Uploader is itself the root Connection of its tree.
type Uploader struct {
	*UploadConnection
	*coordinator
}

// NewUploader creates an Uploader. cfg.Writer is required.
func NewUploader(cfg Config) (*Uploader, error) {
	if cfg.Writer == nil {
		return nil, ErrNoWriter
	}
	co, err := newCoordinator(subscription.Upload, cfg)
	if err != nil {
		return nil, err
	}
	return &Uploader{
		UploadConnection: &UploadConnection{Connection: co.root},
		coordinator:      co,
	}, nil
}

// Run uploads once per period until the context is done, opts.Stop reports
// true, or a callback returns ErrStop. Any other cycle error is returned.
func (u *Uploader) Run(ctx context.Context, opts RunOptions) error {
	return u.run(ctx, opts, u.Upload)
}
