package subscription

import (
	"cmp"
	"slices"

	"github.com/mash-protocol/mash-exchange/pkg/node"
)

// Registry maps tokens to their Input.
//
// The Registry is not synchronized; it is owned by one coordinator and
// driven from that coordinator's goroutine.
type Registry struct {
	inputs map[Token]*Input

	// lastCallbackID is the most recently issued callback ID.
	lastCallbackID CallbackID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{inputs: make(map[Token]*Input)}
}

// NewInput registers an empty Input for token.
func (r *Registry) NewInput(token Token) (*Input, error) {
	if _, exists := r.inputs[token]; exists {
		return nil, ErrDuplicateToken
	}
	in := newInput()
	r.inputs[token] = in
	return in, nil
}

// DelInput removes the Input of token.
func (r *Registry) DelInput(token Token) error {
	if _, exists := r.inputs[token]; !exists {
		return ErrUnknownToken
	}
	delete(r.inputs, token)
	return nil
}

// HasToken reports whether token is registered.
func (r *Registry) HasToken(token Token) bool {
	_, exists := r.inputs[token]
	return exists
}

// Input returns the Input of token.
func (r *Registry) Input(token Token) (*Input, error) {
	in, exists := r.inputs[token]
	if !exists {
		return nil, ErrUnknownToken
	}
	return in, nil
}

// Len returns the number of registered tokens.
func (r *Registry) Len() int {
	return len(r.inputs)
}

// Tokens returns every registered token, ordered by Token.Compare.
func (r *Registry) Tokens() []Token {
	tokens := make([]Token, 0, len(r.inputs))
	for t := range r.inputs {
		tokens = append(tokens, t)
	}
	slices.SortFunc(tokens, Token.Compare)
	return tokens
}

// AddCallback registers a success callback on token's Input.
func (r *Registry) AddCallback(token Token, fn Callback, priority int) (CallbackID, error) {
	in, err := r.Input(token)
	if err != nil {
		return 0, err
	}
	r.lastCallbackID++
	in.callbacks = append(in.callbacks, entry[Callback]{id: r.lastCallbackID, priority: priority, fn: fn})
	return r.lastCallbackID, nil
}

// RemoveCallback removes a success callback from token's Input.
func (r *Registry) RemoveCallback(token Token, id CallbackID) error {
	in, err := r.Input(token)
	if err != nil {
		return err
	}
	var ok bool
	if in.callbacks, ok = removeEntry(in.callbacks, id); !ok {
		return ErrCallbackNotFound
	}
	return nil
}

// AddFailureCallback registers a failure callback on token's Input.
func (r *Registry) AddFailureCallback(token Token, fn FailureCallback, priority int) (CallbackID, error) {
	in, err := r.Input(token)
	if err != nil {
		return 0, err
	}
	r.lastCallbackID++
	in.failureCallbacks = append(in.failureCallbacks, entry[FailureCallback]{id: r.lastCallbackID, priority: priority, fn: fn})
	return r.lastCallbackID, nil
}

// RemoveFailureCallback removes a failure callback from token's Input.
func (r *Registry) RemoveFailureCallback(token Token, id CallbackID) error {
	in, err := r.Input(token)
	if err != nil {
		return err
	}
	var ok bool
	if in.failureCallbacks, ok = removeEntry(in.failureCallbacks, id); !ok {
		return ErrCallbackNotFound
	}
	return nil
}

// resolve maps tokens to their Inputs. A nil slice selects every token.
func (r *Registry) resolve(tokens []Token) ([]*Input, error) {
	if tokens == nil {
		tokens = r.Tokens()
	}
	inputs := make([]*Input, 0, len(tokens))
	for _, t := range tokens {
		in, err := r.Input(t)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// BuildNodes returns the union of the nodes of tokens and of the nodes their
// data links require. A nil slice selects every token.
func (r *Registry) BuildNodes(tokens []Token) (node.Set, error) {
	inputs, err := r.resolve(tokens)
	if err != nil {
		return nil, err
	}
	return buildNodes(inputs), nil
}

// BuildDataLinks returns the data links of tokens, de-duplicated.
func (r *Registry) BuildDataLinks(tokens []Token) ([]node.DataLink, error) {
	inputs, err := r.resolve(tokens)
	if err != nil {
		return nil, err
	}
	return buildDataLinks(inputs), nil
}

// BuildCallbacks returns the success callbacks of tokens in dispatch order.
func (r *Registry) BuildCallbacks(tokens []Token) ([]Callback, error) {
	inputs, err := r.resolve(tokens)
	if err != nil {
		return nil, err
	}
	return sortedCallbacks(inputs, func(in *Input) []entry[Callback] { return in.callbacks }), nil
}

// BuildFailureCallbacks returns the failure callbacks of tokens in dispatch order.
func (r *Registry) BuildFailureCallbacks(tokens []Token) ([]FailureCallback, error) {
	inputs, err := r.resolve(tokens)
	if err != nil {
		return nil, err
	}
	return sortedCallbacks(inputs, func(in *Input) []entry[FailureCallback] { return in.failureCallbacks }), nil
}

// BuildPlan aggregates everything a cycle over tokens needs.
func (r *Registry) BuildPlan(tokens []Token) (*Plan, error) {
	inputs, err := r.resolve(tokens)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Nodes:            buildNodes(inputs),
		DataLinks:        buildDataLinks(inputs),
		Callbacks:        sortedCallbacks(inputs, func(in *Input) []entry[Callback] { return in.callbacks }),
		FailureCallbacks: sortedCallbacks(inputs, func(in *Input) []entry[FailureCallback] { return in.failureCallbacks }),
	}, nil
}

func buildNodes(inputs []*Input) node.Set {
	nodes := make(node.Set)
	for _, in := range inputs {
		nodes.Union(in.nodes)
		for _, dl := range in.links {
			nodes.Add(dl.RequiredNodes()...)
		}
	}
	return nodes
}

func buildDataLinks(inputs []*Input) []node.DataLink {
	var links []node.DataLink
	seen := make(map[node.DataLink]struct{})
	for _, in := range inputs {
		for _, dl := range in.links {
			if _, dup := seen[dl]; dup {
				continue
			}
			seen[dl] = struct{}{}
			links = append(links, dl)
		}
	}
	return links
}

// sortedCallbacks orders the callbacks of inputs by ascending priority.
// Equal priorities keep registration order, which the callback ID encodes.
func sortedCallbacks[F any](inputs []*Input, get func(*Input) []entry[F]) []F {
	var entries []entry[F]
	for _, in := range inputs {
		entries = append(entries, get(in)...)
	}
	slices.SortStableFunc(entries, func(a, b entry[F]) int {
		if c := cmp.Compare(a.priority, b.priority); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	fns := make([]F, len(entries))
	for i, e := range entries {
		fns[i] = e.fn
	}
	return fns
}
