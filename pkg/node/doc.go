// Package node defines the data points exchanged by a download/upload cycle.
//
// A Node is an addressable remote data point. Nodes are compared by
// identity: implementations are pointer types, so two distinct *Point values
// with the same key are different nodes.
//
// The package also defines the capabilities a coordinator needs from its
// surroundings:
//
//   - BatchReader: reads a set of nodes in one round trip
//   - BatchWriter: writes a set of node/value pairs in one round trip
//   - DataLink: binds a structured object's fields to a set of nodes
//
// MemoryBackend is an in-process BatchReader/BatchWriter used by tests and
// simulations. FieldLink is a DataLink built from per-node getter/setter
// bindings.
package node
