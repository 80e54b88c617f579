package exchange

import (
	"context"
	"slices"

	"github.com/mash-protocol/mash-exchange/pkg/node"
	"github.com/mash-protocol/mash-exchange/pkg/subscription"
)

// Callback runs after each successful cycle of a scope.
type Callback = subscription.Callback

// FailureCallback runs after each failed cycle of a scope with the
// *BatchIOError, and once with nil on the first success after a failure.
type FailureCallback = subscription.FailureCallback

// CallbackID identifies a registered callback for removal.
type CallbackID = subscription.CallbackID

// CycleInfo describes the most recent cycle of a scope.
type CycleInfo = subscription.CycleInfo

// Connection is one consumer's registration with a coordinator.
//
// Connections form a tree rooted at the coordinator. The compiled cycle of a
// Connection covers its own registration and those of all its descendants.
type Connection struct {
	owner *coordinator

	// parent is nil for the root and for torn-down connections.
	parent   *Connection
	children []*Connection

	token     subscription.Token
	root      bool
	connected bool

	nodes node.Set
	cycle subscription.CycleFunc
	state subscription.State
	info  CycleInfo
}

func newConnection(owner *coordinator, parent *Connection, token subscription.Token) (*Connection, error) {
	if _, err := owner.registry.NewInput(token); err != nil {
		return nil, err
	}
	c := &Connection{
		owner:     owner,
		parent:    parent,
		token:     token,
		root:      parent == nil,
		connected: true,
	}
	if err := c.rebuild(); err != nil {
		return nil, err
	}
	return c, nil
}

// Token returns the connection's token. ok is false once disconnected.
func (c *Connection) Token() (token subscription.Token, ok bool) {
	if !c.connected {
		return subscription.Token{}, false
	}
	return c.token, true
}

// IsConnected reports whether the connection is live and registered.
func (c *Connection) IsConnected() bool {
	return c.connected && c.owner.registry.HasToken(c.token)
}

// Nodes returns the aggregated nodes of the connection's compiled cycle.
func (c *Connection) Nodes() node.Set {
	return c.nodes.Clone()
}

// Info returns the record of the connection's most recent cycle.
func (c *Connection) Info() CycleInfo {
	return c.info
}

// AddNode subscribes the connection to a node.
func (c *Connection) AddNode(n node.Node) error {
	return c.AddNodes(n)
}

// AddNodes subscribes the connection to several nodes.
func (c *Connection) AddNodes(nodes ...node.Node) error {
	in, err := c.input()
	if err != nil {
		return err
	}
	in.AddNodes(nodes...)
	return c.rebuildChain()
}

// RemoveNode unsubscribes the connection from a node.
func (c *Connection) RemoveNode(n node.Node) error {
	in, err := c.input()
	if err != nil {
		return err
	}
	in.RemoveNode(n)
	return c.rebuildChain()
}

// AddDataLink registers a data link with the connection.
func (c *Connection) AddDataLink(dl node.DataLink) error {
	in, err := c.input()
	if err != nil {
		return err
	}
	in.AddDataLink(dl)
	return c.rebuildChain()
}

// RemoveDataLink removes a data link from the connection.
func (c *Connection) RemoveDataLink(dl node.DataLink) error {
	in, err := c.input()
	if err != nil {
		return err
	}
	in.RemoveDataLink(dl)
	return c.rebuildChain()
}

// AddCallback registers a success callback. Lower priorities run first.
func (c *Connection) AddCallback(fn Callback, priority int) (CallbackID, error) {
	if !c.connected {
		return 0, ErrDisconnected
	}
	id, err := c.owner.registry.AddCallback(c.token, fn, priority)
	if err != nil {
		return 0, err
	}
	return id, c.rebuildChain()
}

// RemoveCallback removes a success callback.
func (c *Connection) RemoveCallback(id CallbackID) error {
	if !c.connected {
		return ErrDisconnected
	}
	if err := c.owner.registry.RemoveCallback(c.token, id); err != nil {
		return err
	}
	return c.rebuildChain()
}

// AddFailureCallback registers a failure callback. Lower priorities run first.
func (c *Connection) AddFailureCallback(fn FailureCallback, priority int) (CallbackID, error) {
	if !c.connected {
		return 0, ErrDisconnected
	}
	id, err := c.owner.registry.AddFailureCallback(c.token, fn, priority)
	if err != nil {
		return 0, err
	}
	return id, c.rebuildChain()
}

// RemoveFailureCallback removes a failure callback.
func (c *Connection) RemoveFailureCallback(id CallbackID) error {
	if !c.connected {
		return ErrDisconnected
	}
	if err := c.owner.registry.RemoveFailureCallback(c.token, id); err != nil {
		return err
	}
	return c.rebuildChain()
}

// Disconnect removes the connection and all of its descendants from the
// registry and tears them down. Disconnecting twice is a no-op.
func (c *Connection) Disconnect() error {
	if c.root {
		return ErrRootConnection
	}
	if !c.connected {
		return nil
	}

	subtree := c.subtree()
	for _, x := range subtree {
		if err := c.owner.registry.DelInput(x.token); err != nil {
			return err
		}
	}
	for _, x := range subtree {
		x.teardown()
	}

	parent := c.parent
	c.parent = nil
	parent.children = slices.DeleteFunc(parent.children, func(x *Connection) bool { return x == c })

	c.owner.debugLog("connection disconnected",
		"token", c.token.String(),
		"torn_down", len(subtree),
		"registered", c.owner.registry.Len())

	return parent.rebuildChain()
}

// newChild creates and registers a child connection.
func (c *Connection) newChild() (*Connection, error) {
	if !c.connected {
		return nil, ErrDisconnected
	}
	child, err := newConnection(c.owner, c, c.owner.tokens.Next())
	if err != nil {
		return nil, err
	}
	c.children = append(c.children, child)

	c.owner.debugLog("connection created",
		"token", child.token.String(),
		"parent", c.token.String())

	return child, c.rebuildChain()
}

// execute runs the connection's compiled cycle.
func (c *Connection) execute(ctx context.Context) error {
	err := c.cycle(ctx, &c.info)
	if err != nil {
		c.owner.debugLog("cycle returned error",
			"token", c.token.String(),
			"direction", c.owner.dir.String(),
			"error", err)
	}
	return err
}

func (c *Connection) input() (*subscription.Input, error) {
	if !c.connected {
		return nil, ErrDisconnected
	}
	return c.owner.registry.Input(c.token)
}

// subtree returns the connection and its connected descendants in pre-order.
func (c *Connection) subtree() []*Connection {
	out := []*Connection{c}
	for _, child := range c.children {
		if child.connected {
			out = append(out, child.subtree()...)
		}
	}
	return out
}

func (c *Connection) subtreeTokens() []subscription.Token {
	subtree := c.subtree()
	tokens := make([]subscription.Token, len(subtree))
	for i, x := range subtree {
		tokens[i] = x.token
	}
	return tokens
}

// rebuild recompiles the connection's cycle over its subtree.
func (c *Connection) rebuild() error {
	nodes, cycle, err := c.owner.registry.BuildCycle(c.subtreeTokens(), c.owner.dir, c.owner.env(c.token), &c.state)
	if err != nil {
		return err
	}
	c.nodes = nodes
	c.cycle = cycle
	return nil
}

// rebuildChain recompiles the connection and every ancestor.
func (c *Connection) rebuildChain() error {
	for x := c; x != nil; x = x.parent {
		if err := x.rebuild(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) teardown() {
	c.connected = false
	c.children = nil
	c.nodes = make(node.Set)
	c.cycle = disconnectedCycle
}

func disconnectedCycle(context.Context, *CycleInfo) error {
	return ErrDisconnected
}
