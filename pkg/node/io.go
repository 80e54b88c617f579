package node

import (
	"context"
	"errors"
	"sync"
)

// BatchReader reads a set of nodes in one round trip.
type BatchReader interface {
	// Read fills out with a value for every node in nodes.
	Read(ctx context.Context, nodes Set, out Values) error
}

// BatchWriter writes node/value pairs in one round trip.
type BatchWriter interface {
	Write(ctx context.Context, values Values) error
}

// ReaderFunc adapts a function to BatchReader.
type ReaderFunc func(ctx context.Context, nodes Set, out Values) error

// Read implements BatchReader.
func (f ReaderFunc) Read(ctx context.Context, nodes Set, out Values) error {
	return f(ctx, nodes, out)
}

// WriterFunc adapts a function to BatchWriter.
type WriterFunc func(ctx context.Context, values Values) error

// Write implements BatchWriter.
func (f WriterFunc) Write(ctx context.Context, values Values) error {
	return f(ctx, values)
}

// Backend errors.
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrNotReadable  = errors.New("node is not readable")
	ErrNotWritable  = errors.New("node is not writable")
)

// MemoryBackend is an in-memory BatchReader and BatchWriter.
// It is safe for concurrent use.
type MemoryBackend struct {
	mu     sync.RWMutex
	values Values

	// failure, if set, is returned by every Read and Write.
	failure error

	reads  int
	writes int
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(Values)}
}

// Set stores a value for a node.
func (b *MemoryBackend) Set(n Node, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[n] = value
}

// Get returns the stored value of a node.
func (b *MemoryBackend) Get(n Node) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[n]
	return v, ok
}

// SetFailure makes every following Read and Write fail with err.
// Pass nil to clear.
func (b *MemoryBackend) SetFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failure = err
}

// Counts returns how many Read and Write calls were made.
func (b *MemoryBackend) Counts() (reads, writes int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reads, b.writes
}

// Read implements BatchReader.
func (b *MemoryBackend) Read(ctx context.Context, nodes Set, out Values) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++

	if b.failure != nil {
		return b.failure
	}

	for n := range nodes {
		if p, ok := n.(*Point); ok && !p.Access().CanRead() {
			return &Error{Node: n, Err: ErrNotReadable}
		}
		v, ok := b.values[n]
		if !ok {
			return &Error{Node: n, Err: ErrNodeNotFound}
		}
		out[n] = v
	}
	return nil
}

// Write implements BatchWriter.
func (b *MemoryBackend) Write(ctx context.Context, values Values) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++

	if b.failure != nil {
		return b.failure
	}

	for n := range values {
		if p, ok := n.(*Point); ok && !p.Access().CanWrite() {
			return &Error{Node: n, Err: ErrNotWritable}
		}
	}
	for n, v := range values {
		b.values[n] = v
	}
	return nil
}

// Error ties a backend error to the node that caused it.
type Error struct {
	Node Node
	Err  error
}

func (e *Error) Error() string {
	return e.Node.Key() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Compile-time interface satisfaction checks.
var (
	_ BatchReader = (*MemoryBackend)(nil)
	_ BatchWriter = (*MemoryBackend)(nil)
)
