package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mash-protocol/mash-exchange/pkg/node"
	"golang.org/x/sync/errgroup"
)

// BatchIO errors.
var (
	ErrNotAddressed     = errors.New("node has no attribute address")
	ErrWrongDevice      = errors.New("node addresses another device")
	ErrAttributeMissing = errors.New("attribute missing from response")
)

// BatchIOConfig configures a BatchIO.
type BatchIOConfig struct {
	// DeviceID, if set, is the only device ID a node address may name.
	// Addresses without a device ID are always accepted.
	DeviceID string

	// MaxInFlight limits concurrent feature requests. Zero means no limit.
	MaxInFlight int

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// BatchIO serves batched node reads and writes through a Client.
//
// Nodes must be *node.Point values carrying an attribute address. A batch
// is split into one request per (endpoint, feature) pair and the requests
// run concurrently. The batch fails if any request fails.
type BatchIO struct {
	client *Client
	config BatchIOConfig
}

// NewBatchIO creates a BatchIO over client.
func NewBatchIO(client *Client, config BatchIOConfig) *BatchIO {
	return &BatchIO{client: client, config: config}
}

type featureKey struct {
	endpointID uint8
	featureID  uint8
}

type featureBatch struct {
	key    featureKey
	points map[uint16]node.Node
}

func (b *featureBatch) attributeIDs() []uint16 {
	ids := make([]uint16, 0, len(b.points))
	for id := range b.points {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// group splits nodes into per-feature batches, ordered by endpoint and
// feature.
func (bio *BatchIO) group(nodes []node.Node) ([]*featureBatch, error) {
	byKey := make(map[featureKey]*featureBatch)
	for _, n := range nodes {
		p, ok := n.(*node.Point)
		if !ok {
			return nil, &node.Error{Node: n, Err: ErrNotAddressed}
		}
		addr, ok := p.Address()
		if !ok {
			return nil, &node.Error{Node: n, Err: ErrNotAddressed}
		}
		if bio.config.DeviceID != "" && addr.DeviceID != "" && addr.DeviceID != bio.config.DeviceID {
			return nil, &node.Error{Node: n, Err: ErrWrongDevice}
		}

		key := featureKey{endpointID: addr.EndpointID, featureID: addr.FeatureID}
		batch, ok := byKey[key]
		if !ok {
			batch = &featureBatch{key: key, points: make(map[uint16]node.Node)}
			byKey[key] = batch
		}
		batch.points[addr.AttributeID] = n
	}

	batches := make([]*featureBatch, 0, len(byKey))
	for _, batch := range byKey {
		batches = append(batches, batch)
	}
	sort.Slice(batches, func(i, j int) bool {
		a, b := batches[i].key, batches[j].key
		if a.endpointID != b.endpointID {
			return a.endpointID < b.endpointID
		}
		return a.featureID < b.featureID
	})
	return batches, nil
}

func (bio *BatchIO) newGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	if bio.config.MaxInFlight > 0 {
		g.SetLimit(bio.config.MaxInFlight)
	}
	return g, gctx
}

// Read implements node.BatchReader.
func (bio *BatchIO) Read(ctx context.Context, nodes node.Set, out node.Values) error {
	batches, err := bio.group(nodes.Sorted())
	if err != nil {
		return err
	}

	var mu sync.Mutex
	g, gctx := bio.newGroup(ctx)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			values, err := bio.client.Read(gctx, batch.key.endpointID, batch.key.featureID, batch.attributeIDs())
			if err != nil {
				return fmt.Errorf("read endpoint %d feature %d: %w", batch.key.endpointID, batch.key.featureID, err)
			}

			mu.Lock()
			defer mu.Unlock()
			for _, id := range batch.attributeIDs() {
				v, ok := values[id]
				if !ok {
					return &node.Error{Node: batch.points[id], Err: ErrAttributeMissing}
				}
				out[batch.points[id]] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	bio.debugLog("batch read", "nodes", len(nodes), "requests", len(batches))
	return nil
}

// Write implements node.BatchWriter.
func (bio *BatchIO) Write(ctx context.Context, values node.Values) error {
	nodes := make(node.Set, len(values))
	for n := range values {
		nodes.Add(n)
	}
	batches, err := bio.group(nodes.Sorted())
	if err != nil {
		return err
	}

	g, gctx := bio.newGroup(ctx)
	for _, batch := range batches {
		batch := batch
		attrs := make(map[uint16]any, len(batch.points))
		for id, n := range batch.points {
			attrs[id] = values[n]
		}
		g.Go(func() error {
			if _, err := bio.client.Write(gctx, batch.key.endpointID, batch.key.featureID, attrs); err != nil {
				return fmt.Errorf("write endpoint %d feature %d: %w", batch.key.endpointID, batch.key.featureID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	bio.debugLog("batch write", "nodes", len(values), "requests", len(batches))
	return nil
}

// debugLog logs a debug message if logging is enabled.
func (bio *BatchIO) debugLog(msg string, args ...any) {
	if bio.config.Logger != nil {
		bio.config.Logger.Debug(msg, args...)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ node.BatchReader = (*BatchIO)(nil)
	_ node.BatchWriter = (*BatchIO)(nil)
)
