package explorer

import (
	"github.com/ormasoftchile/qtrace/pkg/predicate"
	"github.com/ormasoftchile/qtrace/pkg/trace"
)

// FindNext returns the first step after the cursor whose environment
// satisfies exprText. Steps where evaluation fails (unknown variable, type
// or syntax error) and failed steps count as non-matching. The cursor is
// not moved.
func FindNext(c *Cursor, t *trace.Trace, exprText string, ev predicate.Evaluator) (int, bool) {
	if t == nil || !c.Valid() {
		return -1, false
	}
	for i := c.Position() + 1; i < t.Len(); i++ {
		if matches(t, i, exprText, ev) {
			return i, true
		}
	}
	return -1, false
}

// FindPrev is FindNext scanning backwards from the step before the cursor.
func FindPrev(c *Cursor, t *trace.Trace, exprText string, ev predicate.Evaluator) (int, bool) {
	if t == nil || !c.Valid() {
		return -1, false
	}
	for i := c.Position() - 1; i >= 0; i-- {
		if matches(t, i, exprText, ev) {
			return i, true
		}
	}
	return -1, false
}

// Matches returns the indices of every step satisfying exprText.
func Matches(t *trace.Trace, exprText string, ev predicate.Evaluator) []int {
	if t == nil {
		return nil
	}
	var out []int
	for i := range t.Steps {
		if matches(t, i, exprText, ev) {
			out = append(out, i)
		}
	}
	return out
}

func matches(t *trace.Trace, i int, exprText string, ev predicate.Evaluator) bool {
	s := t.Steps[i]
	if s.Failed() {
		return false
	}
	ok, err := ev.Evaluate(t.EnvironmentFor(s).Map(), exprText)
	return err == nil && ok
}
