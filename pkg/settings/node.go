package settings

import (
	"fmt"

	"github.com/ajitpratap0/layerconf/internal/merge"
	"github.com/ajitpratap0/layerconf/pkg/alias"
	"github.com/ajitpratap0/layerconf/pkg/inherit"
	"github.com/ajitpratap0/layerconf/pkg/schema"
)

// State is a node's position in the resolution sequence.
type State int

const (
	StateUnresolved State = iota
	StateConfigResolved
	StateSourcesCollected
	StateMerged
	StateValidated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateConfigResolved:
		return "config_resolved"
	case StateSourcesCollected:
		return "sources_collected"
	case StateMerged:
		return "merged"
	case StateValidated:
		return "validated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateValidated || s == StateFailed
}

// Node is one resolved settings node. Its configuration and data are fixed
// once resolution completes; accessors return copies.
type Node struct {
	Type *schema.NodeType
	// Field is the field the node is nested under, empty for the root
	Field string

	state     State
	config    *inherit.Effective
	index     *alias.Index
	tree      [][]string
	collected *Collected
	data      map[string]interface{}
	value     interface{}
	children  map[string]*Node
	order     []string
}

func newNode(nt *schema.NodeType, field string, tree [][]string) *Node {
	return &Node{
		Type:     nt,
		Field:    field,
		tree:     tree,
		children: map[string]*Node{},
	}
}

// advance moves the node one step forward. Steps may not be skipped,
// except that any non-terminal state may fail.
func (n *Node) advance(to State) error {
	ok := to == n.state+1 && to != StateFailed
	if to == StateFailed {
		ok = !n.state.Terminal()
	}
	if !ok {
		return fmt.Errorf("invalid transition %s -> %s", n.state, to)
	}
	n.state = to
	return nil
}

// State returns the node's state
func (n *Node) State() State { return n.state }

// Config returns the effective configuration
func (n *Node) Config() *inherit.Effective { return n.config }

// ModePath returns the composed mode path
func (n *Node) ModePath() string {
	if n.config == nil {
		return ""
	}
	return n.config.ModePath
}

// Inherited returns the configuration keys taken from the parent
func (n *Node) Inherited() []string {
	if n.config == nil {
		return nil
	}
	return append([]string(nil), n.config.Inherited...)
}

// Tree returns the alias tree addressing the node
func (n *Node) Tree() [][]string {
	out := make([][]string, len(n.tree))
	for i, level := range n.tree {
		out[i] = append([]string(nil), level...)
	}
	return out
}

// Index returns the node's alias index
func (n *Node) Index() *alias.Index { return n.index }

// Source returns the field-name-keyed data one source contributed.
func (n *Node) Source(name string) (map[string]interface{}, bool) {
	if n.collected == nil {
		return nil, false
	}
	data, ok := n.collected.Data[name]
	if !ok {
		return nil, false
	}
	return merge.Copy(data), true
}

// Mode returns the MODE value that selected an extra config file, if any.
func (n *Node) Mode() string {
	if n.collected == nil {
		return ""
	}
	return n.collected.Mode
}

// Data returns the merged payload handed to the validator, with each
// nested settings field holding its child's merged payload.
func (n *Node) Data() map[string]interface{} {
	return merge.Copy(n.data)
}

// Value returns the validated value
func (n *Node) Value() interface{} { return n.value }

// Child returns the node resolved for a nested settings field
func (n *Node) Child(field string) *Node {
	return n.children[field]
}

// Children returns the nested nodes in field order
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.children[name])
	}
	return out
}

func (n *Node) addChild(field string, c *Node) {
	if _, ok := n.children[field]; !ok {
		n.order = append(n.order, field)
	}
	n.children[field] = c
}
