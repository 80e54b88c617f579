// Package store holds the shared value store of a coordinator.
//
// The Store maps nodes to their last known value. It is written by the
// coordinator's cycles and read by consumers, either directly or through a
// DataView restricted to a key prefix.
//
// The Store is not synchronized. A coordinator and every view of its store
// must be driven from a single goroutine, or the caller must serialize
// access.
package store

import (
	"errors"
	"sort"
	"strings"

	"github.com/mash-protocol/mash-exchange/pkg/node"
)

// View errors.
var (
	ErrKeyNotInView = errors.New("key not in view")
)

// Store maps nodes to their last known value.
type Store struct {
	values node.Values
}

// New creates an empty store.
func New() *Store {
	return &Store{values: make(node.Values)}
}

// Get returns the value of n.
func (s *Store) Get(n node.Node) (any, bool) {
	v, ok := s.values[n]
	return v, ok
}

// Set stores a value for n.
func (s *Store) Set(n node.Node, v any) {
	s.values[n] = v
}

// Delete removes n from the store.
func (s *Store) Delete(n node.Node) {
	delete(s.values, n)
}

// Merge stores every pair of values.
func (s *Store) Merge(values node.Values) {
	s.values.Merge(values)
}

// Len returns the number of stored values.
func (s *Store) Len() int {
	return len(s.values)
}

// Nodes returns the set of nodes with a stored value.
func (s *Store) Nodes() node.Set {
	set := make(node.Set, len(s.values))
	for n := range s.values {
		set.Add(n)
	}
	return set
}

// Snapshot returns a copy of the stored values restricted to nodes.
// A nil set returns everything.
func (s *Store) Snapshot(nodes node.Set) node.Values {
	if nodes == nil {
		out := make(node.Values, len(s.values))
		out.Merge(s.values)
		return out
	}
	return s.values.Restrict(nodes)
}

// Retain deletes every value whose node is not in keep and returns the
// number of deleted values.
func (s *Store) Retain(keep node.Set) int {
	removed := 0
	for n := range s.values {
		if !keep.Has(n) {
			delete(s.values, n)
			removed++
		}
	}
	return removed
}

// View returns a DataView over the nodes whose key starts with prefix.
// The view's membership is fixed from candidates and the store's current
// nodes at the time of the call.
func (s *Store) View(prefix string, candidates node.Set) *DataView {
	v := &DataView{
		store:  s,
		prefix: prefix,
		nodes:  make(map[string]node.Node),
	}
	add := func(n node.Node) {
		if strings.HasPrefix(n.Key(), prefix) {
			v.nodes[n.Key()] = n
		}
	}
	for n := range candidates {
		add(n)
	}
	for n := range s.values {
		add(n)
	}
	return v
}

// DataView is a read/write projection of a Store restricted to a key prefix.
type DataView struct {
	store  *Store
	prefix string
	nodes  map[string]node.Node
}

// Prefix returns the view's key prefix.
func (v *DataView) Prefix() string {
	return v.prefix
}

// Keys returns the keys in the view, sorted.
func (v *DataView) Keys() []string {
	keys := make([]string, 0, len(v.nodes))
	for k := range v.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Node returns the node registered under key.
func (v *DataView) Node(key string) (node.Node, bool) {
	n, ok := v.nodes[key]
	return n, ok
}

// Get returns the stored value under key. ok is false when the key is not
// in the view or has no value yet.
func (v *DataView) Get(key string) (any, bool) {
	n, ok := v.nodes[key]
	if !ok {
		return nil, false
	}
	return v.store.Get(n)
}

// Set stores a value under key.
func (v *DataView) Set(key string, value any) error {
	n, ok := v.nodes[key]
	if !ok {
		return ErrKeyNotInView
	}
	v.store.Set(n, value)
	return nil
}

// Items returns every key/value pair in the view that has a stored value.
func (v *DataView) Items() map[string]any {
	out := make(map[string]any, len(v.nodes))
	for k, n := range v.nodes {
		if val, ok := v.store.Get(n); ok {
			out[k] = val
		}
	}
	return out
}

// Len returns the number of keys in the view.
func (v *DataView) Len() int {
	return len(v.nodes)
}
