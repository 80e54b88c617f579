package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/mash-protocol/mash-exchange/pkg/log"
	"github.com/mash-protocol/mash-exchange/pkg/node"
	"github.com/mash-protocol/mash-exchange/pkg/store"
)

// Direction selects between a download (batched read) and an upload
// (batched write) cycle.
type Direction uint8

const (
	// Download reads the aggregated nodes into the store.
	Download Direction = iota

	// Upload writes store and data link values to the aggregated nodes.
	Upload
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Download:
		return "download"
	case Upload:
		return "upload"
	default:
		return "unknown"
	}
}

func (d Direction) logDirection() log.Direction {
	if d == Upload {
		return log.DirectionUpload
	}
	return log.DirectionDownload
}

// CycleInfo describes the most recent cycle of a scope.
type CycleInfo struct {
	// Err is the batch I/O error of the cycle, if it failed.
	Err error

	// Start and End bracket the cycle, callbacks included.
	Start time.Time
	End   time.Time

	// NodeCount is the number of aggregated nodes.
	NodeCount int
}

// Duration returns the wall time of the cycle.
func (i CycleInfo) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// CycleFunc executes one compiled cycle and records it in info.
type CycleFunc func(ctx context.Context, info *CycleInfo) error

// Env is what a compiled cycle runs against.
type Env struct {
	// Store is the shared value store.
	Store *store.Store

	// Reader performs download cycles.
	Reader node.BatchReader

	// Writer performs upload cycles.
	Writer node.BatchWriter

	// Events receives one event per cycle. May be nil.
	Events log.Logger

	// Scope names the cycle's owner in events.
	Scope string
}

// State is the failure memory of one scope. It outlives the cycles built
// for that scope, so a rebuild keeps a pending recovery notification.
type State struct {
	failed bool
}

// Failed reports whether the scope's most recent cycle failed.
func (s *State) Failed() bool {
	return s.failed
}

// Plan is an aggregate of the interest of a set of tokens.
type Plan struct {
	Nodes            node.Set
	DataLinks        []node.DataLink
	Callbacks        []Callback
	FailureCallbacks []FailureCallback
}

// BuildCycle compiles the interest of tokens into a cycle. A nil slice
// selects every token. If state is nil, the cycle keeps its own failure
// memory.
func (r *Registry) BuildCycle(tokens []Token, dir Direction, env Env, state *State) (node.Set, CycleFunc, error) {
	plan, err := r.BuildPlan(tokens)
	if err != nil {
		return nil, nil, err
	}
	if state == nil {
		state = &State{}
	}
	nodes := plan.Nodes.Clone()
	return nodes, func(ctx context.Context, info *CycleInfo) error {
		return plan.execute(ctx, dir, env, state, info)
	}, nil
}

func (p *Plan) execute(ctx context.Context, dir Direction, env Env, state *State, info *CycleInfo) error {
	*info = CycleInfo{Start: time.Now(), NodeCount: len(p.Nodes)}

	event := log.Event{
		ID:        log.NewEventID(),
		Timestamp: info.Start,
		Scope:     env.Scope,
		Direction: dir.logDirection(),
		NodeCount: len(p.Nodes),
		LinkCount: len(p.DataLinks),
	}
	defer func() {
		info.End = time.Now()
		if env.Events != nil {
			event.Duration = info.End.Sub(info.Start)
			env.Events.Log(event)
		}
	}()

	var ioErr error
	if dir == Upload {
		ioErr = p.upload(ctx, env)
	} else {
		ioErr = p.download(ctx, env)
	}

	if ioErr != nil {
		batchErr := &BatchIOError{Direction: dir, Err: ioErr}
		info.Err = batchErr
		state.failed = true
		event.Outcome = log.OutcomeFailure
		event.Error = batchErr.Error()

		if len(p.FailureCallbacks) == 0 {
			return batchErr
		}
		event.CallbackCount = len(p.FailureCallbacks)
		return dispatchFailure(p.FailureCallbacks, batchErr)
	}

	var stopped bool
	if state.failed {
		state.failed = false
		event.Outcome = log.OutcomeRecovered
		event.CallbackCount += len(p.FailureCallbacks)
		if err := dispatchFailure(p.FailureCallbacks, nil); err != nil {
			if !errors.Is(err, ErrStop) {
				return err
			}
			stopped = true
		}
	}

	event.CallbackCount += len(p.Callbacks)
	if err := dispatch(p.Callbacks); err != nil {
		return err
	}
	if stopped {
		return ErrStop
	}
	return nil
}

func (p *Plan) download(ctx context.Context, env Env) error {
	if len(p.Nodes) == 0 && len(p.DataLinks) == 0 {
		return nil
	}

	values := make(node.Values, len(p.Nodes))
	if err := env.Reader.Read(ctx, p.Nodes, values); err != nil {
		return err
	}

	env.Store.Merge(values)
	for _, dl := range p.DataLinks {
		dl.PopulateFrom(values)
	}
	return nil
}

func (p *Plan) upload(ctx context.Context, env Env) error {
	values := env.Store.Snapshot(p.Nodes)
	for _, dl := range p.DataLinks {
		values.Merge(dl.ProduceWrites())
	}
	if len(values) == 0 {
		return nil
	}

	if err := env.Writer.Write(ctx, values); err != nil {
		return err
	}

	env.Store.Merge(values)
	return nil
}

// dispatch runs callbacks in order. ErrStop is remembered and returned after
// the last callback; any other error is returned at once.
func dispatch(callbacks []Callback) error {
	var stopped bool
	for _, fn := range callbacks {
		if err := fn(); err != nil {
			if !errors.Is(err, ErrStop) {
				return err
			}
			stopped = true
		}
	}
	if stopped {
		return ErrStop
	}
	return nil
}

func dispatchFailure(callbacks []FailureCallback, cause error) error {
	var stopped bool
	for _, fn := range callbacks {
		if err := fn(cause); err != nil {
			if !errors.Is(err, ErrStop) {
				return err
			}
			stopped = true
		}
	}
	if stopped {
		return ErrStop
	}
	return nil
}
