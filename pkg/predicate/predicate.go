// Package predicate evaluates search expressions against a step environment.
package predicate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// ErrEmpty is returned for a blank expression.
var ErrEmpty = errors.New("empty expression")

// Evaluator decides whether an expression holds for a set of bindings.
type Evaluator interface {
	Evaluate(env map[string]any, exprText string) (bool, error)
}

// Error reports an expression that failed to compile or run, or that did
// not produce a boolean.
type Error struct {
	Expr string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("predicate %q: %v", e.Expr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Expr evaluates predicates with expr-lang. Programs are compiled against
// each environment because different plan nodes bind different variables,
// so an unknown variable is a compile error for that step only.
type Expr struct{}

// NewExpr returns the expr-lang evaluator.
func NewExpr() *Expr { return &Expr{} }

// Evaluate compiles and runs exprText against env.
// Supports expr syntax: x > 3 && y == "a", x in [1, 2], len(path) > 1.
func (Expr) Evaluate(env map[string]any, exprText string) (bool, error) {
	exprText = strings.TrimSpace(exprText)
	if exprText == "" {
		return false, &Error{Expr: exprText, Err: ErrEmpty}
	}
	if env == nil {
		env = map[string]any{}
	}

	program, err := expr.Compile(exprText, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, &Error{Expr: exprText, Err: fmt.Errorf("compile: %w", err)}
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, &Error{Expr: exprText, Err: fmt.Errorf("eval: %w", err)}
	}
	result, ok := output.(bool)
	if !ok {
		return false, &Error{Expr: exprText, Err: fmt.Errorf("did not return bool (got %T: %v)", output, output)}
	}
	return result, nil
}

// Check reports whether exprText parses, without binding any variables.
// Used to reject obviously broken input before a scan.
func Check(exprText string) error {
	exprText = strings.TrimSpace(exprText)
	if exprText == "" {
		return &Error{Expr: exprText, Err: ErrEmpty}
	}
	if _, err := expr.Compile(exprText, expr.AllowUndefinedVariables()); err != nil {
		return &Error{Expr: exprText, Err: err}
	}
	return nil
}

// Func adapts a plain function to the Evaluator interface.
type Func func(env map[string]any, exprText string) (bool, error)

// Evaluate calls f.
func (f Func) Evaluate(env map[string]any, exprText string) (bool, error) {
	return f(env, exprText)
}
