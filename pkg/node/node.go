package node

import (
	"fmt"
	"sort"
)

// Node is an addressable remote data point.
//
// Key returns a stable string used for display and prefix matching. It is
// not the node's identity: equality is by identity, so implementations
// must be pointer types.
type Node interface {
	Key() string
}

// Access flags for a point.
type Access uint8

const (
	// AccessRead allows reading the point.
	AccessRead Access = 1 << iota

	// AccessWrite allows writing the point.
	AccessWrite

	// AccessReadWrite allows both.
	AccessReadWrite = AccessRead | AccessWrite
)

// CanRead returns true if reading is allowed.
func (a Access) CanRead() bool { return a&AccessRead != 0 }

// CanWrite returns true if writing is allowed.
func (a Access) CanWrite() bool { return a&AccessWrite != 0 }

// String returns the access flags as a string.
func (a Access) String() string {
	var s string
	if a.CanRead() {
		s += "R"
	}
	if a.CanWrite() {
		s += "W"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Address locates a point on a MASH device.
type Address struct {
	// DeviceID is the device identifier (empty for the local device).
	DeviceID string

	// EndpointID is the endpoint number.
	EndpointID uint8

	// FeatureID is the feature type ID.
	FeatureID uint8

	// AttributeID is the attribute ID within the feature.
	AttributeID uint16
}

// String returns the address in path form: [device/]endpoint/feature/attribute.
func (a Address) String() string {
	if a.DeviceID != "" {
		return fmt.Sprintf("%s/%d/%d/%d", a.DeviceID, a.EndpointID, a.FeatureID, a.AttributeID)
	}
	return fmt.Sprintf("%d/%d/%d", a.EndpointID, a.FeatureID, a.AttributeID)
}

// Point is the concrete Node.
type Point struct {
	key     string
	access  Access
	address *Address
}

// NewPoint creates a read/write point with the given key and no device address.
func NewPoint(key string) *Point {
	return &Point{key: key, access: AccessReadWrite}
}

// NewAttributePoint creates a point bound to a MASH attribute address.
// If key is empty, the address path is used as the key.
func NewAttributePoint(key string, addr Address, access Access) *Point {
	if key == "" {
		key = addr.String()
	}
	a := addr
	return &Point{key: key, access: access, address: &a}
}

// Key implements Node.
func (p *Point) Key() string { return p.key }

// Access returns the point's access flags.
func (p *Point) Access() Access { return p.access }

// Address returns the point's device address, if it has one.
func (p *Point) Address() (Address, bool) {
	if p.address == nil {
		return Address{}, false
	}
	return *p.address, true
}

// String returns the point's key.
func (p *Point) String() string { return p.key }

// Compile-time interface satisfaction check.
var _ Node = (*Point)(nil)

// Set is a set of nodes.
type Set map[Node]struct{}

// NewSet creates a set holding the given nodes.
func NewSet(nodes ...Node) Set {
	s := make(Set, len(nodes))
	for _, n := range nodes {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts nodes into the set.
func (s Set) Add(nodes ...Node) {
	for _, n := range nodes {
		s[n] = struct{}{}
	}
}

// Remove deletes a node from the set.
func (s Set) Remove(n Node) {
	delete(s, n)
}

// Has reports whether n is in the set.
func (s Set) Has(n Node) bool {
	_, ok := s[n]
	return ok
}

// Len returns the number of nodes in the set.
func (s Set) Len() int { return len(s) }

// Union adds every node of other to s.
func (s Set) Union(other Set) {
	for n := range other {
		s[n] = struct{}{}
	}
}

// Clone returns a copy of the set.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	c.Union(s)
	return c
}

// Sorted returns the nodes ordered by key.
func (s Set) Sorted() []Node {
	nodes := make([]Node, 0, len(s))
	for n := range s {
		nodes = append(nodes, n)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Key() < nodes[j].Key()
	})
	return nodes
}

// Values maps nodes to values.
type Values map[Node]any

// Merge copies every pair of other into v, overwriting existing entries.
func (v Values) Merge(other Values) {
	for n, val := range other {
		v[n] = val
	}
}

// Restrict returns the pairs of v whose node is in nodes.
func (v Values) Restrict(nodes Set) Values {
	out := make(Values, len(nodes))
	for n, val := range v {
		if nodes.Has(n) {
			out[n] = val
		}
	}
	return out
}
