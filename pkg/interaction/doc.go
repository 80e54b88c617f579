// Package interaction carries batched node I/O over MASH Read and Write
// requests.
//
// # Server
//
// The Server answers requests against an AttributeTable. Table is an
// in-memory implementation used to simulate a device:
//
//	table := interaction.NewTable()
//	table.Define(1, 4, 1, node.AccessRead, int64(11000000))
//	server := interaction.NewServer(table)
//
//	resp := server.HandleRequest(ctx, request)
//
// # Client
//
// The Client correlates requests with responses:
//
//	client := interaction.NewClient(sender)
//	values, err := client.Read(ctx, endpointID, featureID, []uint16{1, 2, 3})
//	_, err = client.Write(ctx, endpointID, featureID, map[uint16]any{21: 6000000})
//
// NewLoopbackClient connects a Client directly to a local Server, encoding
// both directions through the CBOR codec.
//
// # Batch I/O
//
// BatchIO implements node.BatchReader and node.BatchWriter on top of a
// Client. Each batch is split into one request per (endpoint, feature)
// pair; the requests run concurrently and the batch fails if any of them
// does. A read response that lacks a requested attribute fails the batch
// with ErrAttributeMissing.
package interaction
