package subscription

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	ErrUnknownToken     = errors.New("unknown subscription token")
	ErrDuplicateToken   = errors.New("subscription token already registered")
	ErrCallbackNotFound = errors.New("callback not found")
)

// ErrStop is returned by a callback to stop the coordinator's run loop.
// The remaining callbacks of the current cycle still run.
var ErrStop = errors.New("stop coordinator")

// BatchIOError reports a failed batch read or write.
type BatchIOError struct {
	Direction Direction
	Err       error
}

func (e *BatchIOError) Error() string {
	op := "read"
	if e.Direction == Upload {
		op = "write"
	}
	return fmt.Sprintf("batch %s failed: %v", op, e.Err)
}

func (e *BatchIOError) Unwrap() error {
	return e.Err
}
