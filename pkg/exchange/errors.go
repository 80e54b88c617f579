package exchange

import (
	"errors"

	"github.com/mash-protocol/mash-exchange/pkg/subscription"
)

// Exchange errors.
var (
	// ErrDisconnected is returned by operations on a torn-down Connection.
	ErrDisconnected = errors.New("connection is disconnected")

	// ErrRootConnection is returned when disconnecting a coordinator's root.
	ErrRootConnection = errors.New("root connection cannot be disconnected")

	// ErrNoReader is returned by NewDownloader without a reader.
	ErrNoReader = errors.New("downloader requires a batch reader")

	// ErrNoWriter is returned by NewUploader without a writer.
	ErrNoWriter = errors.New("uploader requires a batch writer")
)

// ErrStop is returned by a callback to end Run after the current cycle.
var ErrStop = subscription.ErrStop

// ErrUnknownToken reports a registry lookup miss. It indicates a bug and is
// always returned to the caller.
var ErrUnknownToken = subscription.ErrUnknownToken

// BatchIOError reports a failed batch read or write.
type BatchIOError = subscription.BatchIOError
