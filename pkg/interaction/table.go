package interaction

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mash-protocol/mash-exchange/pkg/node"
)

// Attribute table errors.
var (
	ErrEndpointNotFound  = errors.New("endpoint not found")
	ErrFeatureNotFound   = errors.New("feature not found")
	ErrAttributeNotFound = errors.New("attribute not found")
	ErrReadOnly          = errors.New("attribute is read-only")
	ErrWriteOnly         = errors.New("attribute is write-only")
)

// AttributeTable resolves the features a Server answers for.
type AttributeTable interface {
	// Feature returns the attributes of a feature. It returns
	// ErrEndpointNotFound or ErrFeatureNotFound on a miss.
	Feature(endpointID, featureID uint8) (FeatureAttributes, error)
}

// FeatureAttributes is the attribute access of one feature.
type FeatureAttributes interface {
	ReadAttribute(id uint16) (any, error)
	ReadAllAttributes() map[uint16]any
	WriteAttribute(id uint16, value any) error

	// CheckWrite reports the error WriteAttribute would return for id
	// without writing.
	CheckWrite(id uint16) error
}

// Table is an in-memory AttributeTable. It is safe for concurrent use.
type Table struct {
	mu        sync.RWMutex
	endpoints map[uint8]map[uint8]*tableFeature
}

type tableAttribute struct {
	access node.Access
	value  any
}

type tableFeature struct {
	mu    *sync.RWMutex
	attrs map[uint16]*tableAttribute
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{endpoints: make(map[uint8]map[uint8]*tableFeature)}
}

// Define adds or replaces an attribute, creating its endpoint and feature
// as needed.
func (t *Table) Define(endpointID, featureID uint8, attrID uint16, access node.Access, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	features, ok := t.endpoints[endpointID]
	if !ok {
		features = make(map[uint8]*tableFeature)
		t.endpoints[endpointID] = features
	}
	f, ok := features[featureID]
	if !ok {
		f = &tableFeature{mu: &t.mu, attrs: make(map[uint16]*tableAttribute)}
		features[featureID] = f
	}
	f.attrs[attrID] = &tableAttribute{access: access, value: value}
}

// DefinePoint defines the attribute addressed by p.
func (t *Table) DefinePoint(p *node.Point, value any) error {
	addr, ok := p.Address()
	if !ok {
		return fmt.Errorf("%s: %w", p.Key(), ErrNotAddressed)
	}
	t.Define(addr.EndpointID, addr.FeatureID, addr.AttributeID, p.Access(), value)
	return nil
}

// Value returns an attribute's value regardless of its access.
func (t *Table) Value(endpointID, featureID uint8, attrID uint16) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	attr, ok := t.endpoints[endpointID][featureID].lookup(attrID)
	if !ok {
		return nil, false
	}
	return attr.value, true
}

// Set changes an attribute's value regardless of its access. It simulates
// a change made by the device itself.
func (t *Table) Set(endpointID, featureID uint8, attrID uint16, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	attr, ok := t.endpoints[endpointID][featureID].lookup(attrID)
	if !ok {
		return ErrAttributeNotFound
	}
	attr.value = value
	return nil
}

// Endpoints returns the defined endpoint IDs, sorted.
func (t *Table) Endpoints() []uint8 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]uint8, 0, len(t.endpoints))
	for id := range t.endpoints {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Feature implements AttributeTable.
func (t *Table) Feature(endpointID, featureID uint8) (FeatureAttributes, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	features, ok := t.endpoints[endpointID]
	if !ok {
		return nil, ErrEndpointNotFound
	}
	f, ok := features[featureID]
	if !ok {
		return nil, ErrFeatureNotFound
	}
	return f, nil
}

func (f *tableFeature) lookup(id uint16) (*tableAttribute, bool) {
	if f == nil {
		return nil, false
	}
	attr, ok := f.attrs[id]
	return attr, ok
}

func (f *tableFeature) ReadAttribute(id uint16) (any, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	attr, ok := f.attrs[id]
	if !ok {
		return nil, ErrAttributeNotFound
	}
	if !attr.access.CanRead() {
		return nil, ErrWriteOnly
	}
	return attr.value, nil
}

func (f *tableFeature) ReadAllAttributes() map[uint16]any {
	f.mu.RLock()
	defer f.mu.RUnlock()

	values := make(map[uint16]any, len(f.attrs))
	for id, attr := range f.attrs {
		if attr.access.CanRead() {
			values[id] = attr.value
		}
	}
	return values
}

func (f *tableFeature) WriteAttribute(id uint16, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	attr, err := f.writable(id)
	if err != nil {
		return err
	}
	attr.value = value
	return nil
}

func (f *tableFeature) CheckWrite(id uint16) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, err := f.writable(id)
	return err
}

func (f *tableFeature) writable(id uint16) (*tableAttribute, error) {
	attr, ok := f.attrs[id]
	if !ok {
		return nil, ErrAttributeNotFound
	}
	if !attr.access.CanWrite() {
		return nil, ErrReadOnly
	}
	return attr, nil
}

var _ AttributeTable = (*Table)(nil)
