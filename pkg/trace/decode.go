package trace

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/ormasoftchile/qtrace/pkg/plan"
)

// Decode converts a raw GRAPH.RECORD reply into a Trace.
//
// The reply is a two element array: the steps, then the plan nodes.
//
//	step: [nodeID, ok, values]   ok=1: values is an array aligned with the node variables
//	                             ok=0: values is the engine error message
//	node: [id, parentID|nil, label, [variable...]]
//
// The engine replies null for variables that are not bound yet. Trailing
// nulls are dropped so a partially bound step exposes only the variables
// it has reached. The reply cannot tell an unbound variable from one bound
// to null, so a trailing variable bound to null is dropped too: after
// `WITH 1 AS x, null AS y` the environment holds x only, and a predicate
// on y fails as an unknown name. Interior nulls are kept.
func Decode(query string, reply any) (*Trace, error) {
	top, ok := reply.([]any)
	if !ok || len(top) != 2 {
		return nil, fmt.Errorf("%w: reply must be a two element array, got %T", ErrMalformedTrace, reply)
	}
	rawSteps, ok := top[0].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: steps must be an array, got %T", ErrMalformedTrace, top[0])
	}
	rawNodes, ok := top[1].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: nodes must be an array, got %T", ErrMalformedTrace, top[1])
	}

	nodes := make([]plan.NodeSpec, 0, len(rawNodes))
	for i, rn := range rawNodes {
		n, err := decodeNode(rn)
		if err != nil {
			return nil, fmt.Errorf("%w: node %d: %v", ErrMalformedTrace, i, err)
		}
		nodes = append(nodes, n)
	}

	steps := make([]Step, 0, len(rawSteps))
	for i, rs := range rawSteps {
		s, err := decodeStep(rs)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", ErrMalformedTrace, i, err)
		}
		steps = append(steps, s)
	}

	return FromNodes(query, nodes, steps)
}

func decodeNode(raw any) (plan.NodeSpec, error) {
	row, ok := raw.([]any)
	if !ok || len(row) != 4 {
		return plan.NodeSpec{}, fmt.Errorf("expected [id, parent, label, variables], got %v", raw)
	}
	id, ok := asString(row[0])
	if !ok {
		return plan.NodeSpec{}, fmt.Errorf("id is %T", row[0])
	}
	var parent string
	if row[1] != nil {
		if parent, ok = asString(row[1]); !ok {
			return plan.NodeSpec{}, fmt.Errorf("parent is %T", row[1])
		}
	}
	label, ok := asString(row[2])
	if !ok {
		return plan.NodeSpec{}, fmt.Errorf("label is %T", row[2])
	}
	rawVars, ok := row[3].([]any)
	if !ok && row[3] != nil {
		return plan.NodeSpec{}, fmt.Errorf("variables is %T", row[3])
	}
	vars := make([]string, 0, len(rawVars))
	for _, rv := range rawVars {
		name, ok := asString(rv)
		if !ok {
			return plan.NodeSpec{}, fmt.Errorf("variable name is %T", rv)
		}
		vars = append(vars, name)
	}
	return plan.NodeSpec{ID: id, ParentID: parent, Label: label, Variables: vars}, nil
}

func decodeStep(raw any) (Step, error) {
	row, ok := raw.([]any)
	if !ok || len(row) != 3 {
		return Step{}, fmt.Errorf("expected [node, ok, values], got %v", raw)
	}
	id, ok := asString(row[0])
	if !ok {
		return Step{}, fmt.Errorf("node id is %T", row[0])
	}
	flag, ok := row[1].(int64)
	if !ok {
		return Step{}, fmt.Errorf("status flag is %T", row[1])
	}
	switch flag {
	case 0:
		msg, ok := asString(row[2])
		if e, isErr := row[2].(error); isErr {
			// RESP error replies nested in an array arrive as error values.
			msg, ok = e.Error(), true
		}
		if !ok {
			return Step{}, fmt.Errorf("error message is %T", row[2])
		}
		if msg == "" {
			msg = "unknown error"
		}
		return Step{NodeID: id, Err: msg}, nil
	case 1:
		rawVals, ok := row[2].([]any)
		if !ok && row[2] != nil {
			return Step{}, fmt.Errorf("values is %T", row[2])
		}
		vals := make([]Value, len(rawVals))
		for i, v := range rawVals {
			vals[i] = Normalize(v)
		}
		return Step{NodeID: id, Values: trimTrailingNils(vals)}, nil
	default:
		return Step{}, fmt.Errorf("status flag %d", flag)
	}
}

func trimTrailingNils(vals []Value) []Value {
	n := len(vals)
	for n > 0 && vals[n-1] == nil {
		n--
	}
	if n == 0 {
		return nil
	}
	return vals[:n]
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

// Normalize converts decoder-specific representations (RESP bytes, JSON
// numbers, YAML ints) into the Value set documented on Value.
func Normalize(v any) Value {
	switch x := v.(type) {
	case nil, bool, int64, string:
		return x
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return float64(x)
		}
		return int64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = Normalize(el)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = Normalize(el)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[fmt.Sprint(k)] = Normalize(el)
		}
		return out
	default:
		return fmt.Sprint(x)
	}
}
