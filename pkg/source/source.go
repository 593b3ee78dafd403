// Package source fetches execution traces for a query.
package source

import (
	"context"
	"errors"

	"github.com/ormasoftchile/qtrace/pkg/trace"
)

// ErrEngineUnavailable marks a failure of the engine or its transport.
// Callers keep their current trace and report the error.
var ErrEngineUnavailable = errors.New("engine unavailable")

// Source produces the trace of a query.
type Source interface {
	Fetch(ctx context.Context, query string) (*trace.Trace, error)
}

// Func adapts a function to Source.
type Func func(ctx context.Context, query string) (*trace.Trace, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, query string) (*trace.Trace, error) {
	return f(ctx, query)
}
