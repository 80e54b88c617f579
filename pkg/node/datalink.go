package node

// DataLink binds a structured object's fields to a set of nodes.
//
// Implementations must be pointer types; links are compared by identity.
type DataLink interface {
	// RequiredNodes returns the nodes the link needs read.
	RequiredNodes() []Node

	// PopulateFrom updates the object's fields from freshly read values.
	PopulateFrom(values Values)

	// ProduceWrites returns the node/value pairs to write from the
	// object's current fields.
	ProduceWrites() Values
}

// binding connects one node to one field.
type binding struct {
	node Node
	get  func() any
	set  func(any)
}

// FieldLink is a DataLink assembled from per-node field bindings.
//
//	var limit int64
//	link := node.NewFieldLink()
//	link.Bind(limitNode,
//	    func() any { return limit },
//	    func(v any) { limit = v.(int64) })
type FieldLink struct {
	bindings []binding
}

// NewFieldLink creates an empty link.
func NewFieldLink() *FieldLink {
	return &FieldLink{}
}

// Bind adds a binding. A nil get makes the field read-only (never written);
// a nil set makes it write-only (never populated).
func (l *FieldLink) Bind(n Node, get func() any, set func(any)) *FieldLink {
	l.bindings = append(l.bindings, binding{node: n, get: get, set: set})
	return l
}

// RequiredNodes implements DataLink.
func (l *FieldLink) RequiredNodes() []Node {
	nodes := make([]Node, 0, len(l.bindings))
	for _, b := range l.bindings {
		if b.set != nil {
			nodes = append(nodes, b.node)
		}
	}
	return nodes
}

// PopulateFrom implements DataLink. Nodes missing from values leave their
// field untouched.
func (l *FieldLink) PopulateFrom(values Values) {
	for _, b := range l.bindings {
		if b.set == nil {
			continue
		}
		if v, ok := values[b.node]; ok {
			b.set(v)
		}
	}
}

// ProduceWrites implements DataLink.
func (l *FieldLink) ProduceWrites() Values {
	out := make(Values, len(l.bindings))
	for _, b := range l.bindings {
		if b.get != nil {
			out[b.node] = b.get()
		}
	}
	return out
}

// Compile-time interface satisfaction check.
var _ DataLink = (*FieldLink)(nil)
