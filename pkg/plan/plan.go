// Package plan builds the operator tree of a recorded query execution.
//
// The engine reports its plan as a flat list where every node names its
// parent. Tree stores the nodes in an arena keyed by id and keeps the
// child lists on the tree itself, so nodes never point at each other.
package plan

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned when a node list violates the tree invariants.
var ErrMalformed = errors.New("malformed trace")

// NodeSpec is one raw node descriptor as emitted by the engine.
// ParentID is empty for the root.
type NodeSpec struct {
	ID        string   `json:"id" yaml:"id"`
	ParentID  string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Label     string   `json:"label" yaml:"label"`
	Variables []string `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// Node is an operator of the plan.
type Node struct {
	ID       string
	ParentID string
	Label    string
}

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool { return n.ParentID == "" }

// Tree owns every node of a plan. It is immutable once built.
type Tree struct {
	root     string
	order    []string
	nodes    map[string]Node
	children map[string][]string
}

// Build constructs a Tree from nodes in a single pass. Every non-root node
// must reference a parent that appeared earlier in the list; children are
// kept in input order, which is the engine's evaluation order.
func Build(nodes []NodeSpec) (*Tree, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: empty plan", ErrMalformed)
	}

	t := &Tree{
		order:    make([]string, 0, len(nodes)),
		nodes:    make(map[string]Node, len(nodes)),
		children: make(map[string][]string, len(nodes)),
	}

	for i, ns := range nodes {
		if ns.ID == "" {
			return nil, fmt.Errorf("%w: node %d has no id", ErrMalformed, i)
		}
		if _, dup := t.nodes[ns.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %q", ErrMalformed, ns.ID)
		}

		if ns.ParentID == "" {
			if t.root != "" {
				return nil, fmt.Errorf("%w: second root %q (root is %q)", ErrMalformed, ns.ID, t.root)
			}
			t.root = ns.ID
		} else {
			if _, ok := t.nodes[ns.ParentID]; !ok {
				return nil, fmt.Errorf("%w: node %q references unknown parent %q", ErrMalformed, ns.ID, ns.ParentID)
			}
			t.children[ns.ParentID] = append(t.children[ns.ParentID], ns.ID)
		}

		t.nodes[ns.ID] = Node{ID: ns.ID, ParentID: ns.ParentID, Label: ns.Label}
		t.order = append(t.order, ns.ID)
	}

	if t.root == "" {
		return nil, fmt.Errorf("%w: no root node", ErrMalformed)
	}
	return t, nil
}

// Root returns the root node id.
func (t *Tree) Root() string { return t.root }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.order) }

// Node looks up a node by id.
func (t *Tree) Node(id string) (Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Has reports whether id names a node of the tree.
func (t *Tree) Has(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// Children returns the child ids of id in insertion order.
// The returned slice must not be modified.
func (t *Tree) Children(id string) []string {
	return t.children[id]
}

// IDs returns all node ids in input order.
func (t *Tree) IDs() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Depth returns the distance from the root, or -1 for an unknown id.
func (t *Tree) Depth(id string) int {
	n, ok := t.nodes[id]
	if !ok {
		return -1
	}
	d := 0
	for !n.IsRoot() {
		n = t.nodes[n.ParentID]
		d++
	}
	return d
}

// Path returns the ids from the root down to id, inclusive.
func (t *Tree) Path(id string) []string {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	path := []string{id}
	for !n.IsRoot() {
		path = append(path, n.ParentID)
		n = t.nodes[n.ParentID]
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Walk visits the tree depth-first in pre-order, children in insertion
// order. Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(n Node, depth int) bool) {
	type frame struct {
		id    string
		depth int
	}
	stack := []frame{{t.root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(t.nodes[f.id], f.depth) {
			return
		}
		kids := t.children[f.id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{kids[i], f.depth + 1})
		}
	}
}
