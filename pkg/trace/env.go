package trace

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Binding is a single variable and its value.
type Binding struct {
	Name  string
	Value Value
}

// Environment is the ordered set of bindings visible at a step.
type Environment []Binding

// Get returns the value bound to name.
func (e Environment) Get(name string) (Value, bool) {
	for _, b := range e {
		if b.Name == name {
			return b.Value, true
		}
	}
	return nil, false
}

// Names returns the bound variable names in binding order.
func (e Environment) Names() []string {
	out := make([]string, len(e))
	for i, b := range e {
		out[i] = b.Name
	}
	return out
}

// Map returns the bindings as a map, suitable for expression evaluation.
func (e Environment) Map() map[string]any {
	m := make(map[string]any, len(e))
	for _, b := range e {
		m[b.Name] = b.Value
	}
	return m
}

// String renders the environment as "x: 1, y: \"a\"".
func (e Environment) String() string {
	parts := make([]string, len(e))
	for i, b := range e {
		parts[i] = b.Name + ": " + FormatValue(b.Value)
	}
	return strings.Join(parts, ", ")
}

// FormatValue renders a value in a compact, query-language-like form.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []any:
		parts := make([]string, len(x))
		for i, el := range x {
			parts[i] = FormatValue(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + FormatValue(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(x)
	}
}
