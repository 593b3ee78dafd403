// Package trace holds the in-memory model of one recorded query execution:
// the plan tree, the variables each operator binds, and the ordered steps
// captured while the query ran.
package trace

import (
	"fmt"

	"github.com/ormasoftchile/qtrace/pkg/plan"
)

// ErrMalformedTrace marks structural violations in a trace payload.
// Plan construction errors wrap the same sentinel.
var ErrMalformedTrace = plan.ErrMalformed

// Value is a value bound to a variable at some step: nil, bool, int64,
// float64, string, []any or map[string]any.
type Value = any

// Step is one execution snapshot. It names the active plan node and the
// values bound to that node's variables, in variable order. A step the
// engine reported as failed carries Err instead of values.
type Step struct {
	NodeID string  `yaml:"node" json:"node"`
	Values []Value `yaml:"values,omitempty" json:"values,omitempty"`
	Err    string  `yaml:"error,omitempty" json:"error,omitempty"`
}

// Failed reports whether the engine recorded an error for this step.
func (s Step) Failed() bool { return s.Err != "" }

// Variables maps every plan node to the ordered names its steps bind.
type Variables struct {
	names map[string][]string
}

// AttachVariableNames associates each node of tree with its variable
// names. Nodes missing from perNode bind nothing. The lists are copied;
// the result is immutable.
func AttachVariableNames(tree *plan.Tree, perNode map[string][]string) (*Variables, error) {
	v := &Variables{names: make(map[string][]string, tree.Len())}
	for id, names := range perNode {
		if !tree.Has(id) {
			return nil, fmt.Errorf("%w: variables for unknown node %q", ErrMalformedTrace, id)
		}
		seen := make(map[string]bool, len(names))
		for _, n := range names {
			if seen[n] {
				return nil, fmt.Errorf("%w: node %q declares variable %q twice", ErrMalformedTrace, id, n)
			}
			seen[n] = true
		}
		v.names[id] = append([]string(nil), names...)
	}
	return v, nil
}

// Names returns the variable names of a node. The slice must not be modified.
func (v *Variables) Names(nodeID string) []string {
	if v == nil {
		return nil
	}
	return v.names[nodeID]
}

// Trace is one complete execution record. It is immutable once built.
type Trace struct {
	ID    string
	Query string
	Tree  *plan.Tree
	Vars  *Variables
	Steps []Step
}

// New validates steps against the tree and variable table and returns the
// assembled trace. Every step must reference a known node and may carry
// at most as many values as its node has variables.
func New(query string, tree *plan.Tree, vars *Variables, steps []Step) (*Trace, error) {
	if tree == nil {
		return nil, fmt.Errorf("%w: no plan tree", ErrMalformedTrace)
	}
	if vars == nil {
		vars = &Variables{names: map[string][]string{}}
	}
	for i, s := range steps {
		if !tree.Has(s.NodeID) {
			return nil, fmt.Errorf("%w: step %d references unknown node %q", ErrMalformedTrace, i, s.NodeID)
		}
		if s.Failed() && len(s.Values) > 0 {
			return nil, fmt.Errorf("%w: failed step %d carries values", ErrMalformedTrace, i)
		}
		if n := len(vars.Names(s.NodeID)); len(s.Values) > n {
			return nil, fmt.Errorf("%w: step %d has %d values for %d variables of node %q",
				ErrMalformedTrace, i, len(s.Values), n, s.NodeID)
		}
	}
	return &Trace{Query: query, Tree: tree, Vars: vars, Steps: steps}, nil
}

// FromNodes builds the tree and variable table from raw node descriptors
// and assembles the trace.
func FromNodes(query string, nodes []plan.NodeSpec, steps []Step) (*Trace, error) {
	tree, err := plan.Build(nodes)
	if err != nil {
		return nil, err
	}
	perNode := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		if len(n.Variables) > 0 {
			perNode[n.ID] = n.Variables
		}
	}
	vars, err := AttachVariableNames(tree, perNode)
	if err != nil {
		return nil, err
	}
	return New(query, tree, vars, steps)
}

// Len returns the number of steps.
func (t *Trace) Len() int { return len(t.Steps) }

// Step returns the step at index i.
func (t *Trace) Step(i int) (Step, bool) {
	if i < 0 || i >= len(t.Steps) {
		return Step{}, false
	}
	return t.Steps[i], true
}

// EnvironmentFor zips the step's node variables against its values, left
// to right. Variables without a value yet are left out rather than
// bound to null.
func (t *Trace) EnvironmentFor(s Step) Environment {
	names := t.Vars.Names(s.NodeID)
	n := min(len(names), len(s.Values))
	env := make(Environment, 0, n)
	for i := 0; i < n; i++ {
		env = append(env, Binding{Name: names[i], Value: s.Values[i]})
	}
	return env
}

// Nodes returns the raw node descriptors of the trace in tree input order.
func (t *Trace) Nodes() []plan.NodeSpec {
	ids := t.Tree.IDs()
	out := make([]plan.NodeSpec, 0, len(ids))
	for _, id := range ids {
		n, _ := t.Tree.Node(id)
		out = append(out, plan.NodeSpec{
			ID:        n.ID,
			ParentID:  n.ParentID,
			Label:     n.Label,
			Variables: append([]string(nil), t.Vars.Names(id)...),
		})
	}
	return out
}
