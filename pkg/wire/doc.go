// Package wire defines the CBOR messages exchanged between a batch client
// and a simulated MASH device.
//
// Messages are CBOR (RFC 8949) maps with integer keys. Only the Read and
// Write operations are carried: a batch cycle issues one request per
// (endpoint, feature) pair and expects one response per request.
//
// # Attribute Maps
//
// Read responses, write payloads and write responses are maps from
// attribute ID to value. After a CBOR round trip such a map arrives as
// map[any]any with uint64 keys and integer values widen to uint64 or int64.
// AttributeMap normalizes every decoded form back to map[uint16]any.
//
// # Nullable vs Absent
//
//   - Key absent: attribute not included in this message
//   - Key with value: attribute has this value
//   - Key with null: attribute value is explicitly null
package wire
