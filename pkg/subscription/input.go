package subscription

import (
	"github.com/mash-protocol/mash-exchange/pkg/node"
)

// Callback runs after a successful cycle.
// Returning ErrStop stops the run loop once the cycle completes; any other
// error aborts the cycle and is returned to its caller.
type Callback func() error

// FailureCallback runs after a failed cycle with the *BatchIOError, and once
// with a nil error on the first successful cycle after a failure.
type FailureCallback func(err error) error

// CallbackID identifies a registered callback for removal.
// IDs are unique within a Registry and increase with registration order.
type CallbackID uint64

type entry[F any] struct {
	id       CallbackID
	priority int
	fn       F
}

// Input is one subscriber's registered interest.
type Input struct {
	nodes            node.Set
	links            []node.DataLink
	callbacks        []entry[Callback]
	failureCallbacks []entry[FailureCallback]
}

func newInput() *Input {
	return &Input{nodes: make(node.Set)}
}

// Nodes returns the input's own nodes (not including data link requirements).
func (in *Input) Nodes() node.Set {
	return in.nodes.Clone()
}

// DataLinks returns the input's data links in registration order.
func (in *Input) DataLinks() []node.DataLink {
	return append([]node.DataLink(nil), in.links...)
}

// CallbackCount returns the number of success callbacks.
func (in *Input) CallbackCount() int {
	return len(in.callbacks)
}

// FailureCallbackCount returns the number of failure callbacks.
func (in *Input) FailureCallbackCount() int {
	return len(in.failureCallbacks)
}

// AddNodes adds nodes to the input.
func (in *Input) AddNodes(nodes ...node.Node) {
	in.nodes.Add(nodes...)
}

// RemoveNode removes a node. Removing an absent node is a no-op.
func (in *Input) RemoveNode(n node.Node) {
	in.nodes.Remove(n)
}

// AddDataLink adds a data link. Adding a link twice is a no-op.
func (in *Input) AddDataLink(dl node.DataLink) {
	for _, l := range in.links {
		if l == dl {
			return
		}
	}
	in.links = append(in.links, dl)
}

// RemoveDataLink removes a data link. Removing an absent link is a no-op.
func (in *Input) RemoveDataLink(dl node.DataLink) {
	for i, l := range in.links {
		if l == dl {
			in.links = append(in.links[:i:i], in.links[i+1:]...)
			return
		}
	}
}

func removeEntry[F any](entries []entry[F], id CallbackID) ([]entry[F], bool) {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i:i], entries[i+1:]...), true
		}
	}
	return entries, false
}
