// Package explorer is the stepping and search core of the trace explorer.
//
// A Session owns the installed trace, the cursor over its steps and the
// query history. It is driven by one event loop; nothing in it locks.
// Presentation layers read Snapshots, which are built from a single
// (trace, position) pair so the highlighted node and the environment can
// never disagree.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ormasoftchile/qtrace/pkg/history"
	"github.com/ormasoftchile/qtrace/pkg/logging"
	"github.com/ormasoftchile/qtrace/pkg/plan"
	"github.com/ormasoftchile/qtrace/pkg/predicate"
	"github.com/ormasoftchile/qtrace/pkg/source"
	"github.com/ormasoftchile/qtrace/pkg/trace"
)

var (
	// ErrStaleFetch is returned for the result of a fetch that a newer
	// fetch superseded. The result is discarded.
	ErrStaleFetch = errors.New("stale fetch result")

	// ErrNoTrace is returned by operations that need an installed trace.
	ErrNoTrace = errors.New("no trace loaded")
)

// Ticket identifies one fetch request. Only the latest ticket may install
// its result.
type Ticket uint64

// Options configures a Session. Source may be nil when traces are only
// attached directly.
type Options struct {
	Source    source.Source
	Evaluator predicate.Evaluator
	History   *history.History
	Logger    *slog.Logger
}

// Session is one explorer instance.
type Session struct {
	src    source.Source
	eval   predicate.Evaluator
	hist   *history.History
	logger *slog.Logger

	tr  *trace.Trace
	cur *Cursor

	ticket       Ticket
	fetching     bool
	reload       bool
	pendingQuery string
	lastErr      error
}

// New creates a session with no trace installed.
func New(opts Options) *Session {
	s := &Session{
		src:    opts.Source,
		eval:   opts.Evaluator,
		hist:   opts.History,
		logger: logging.Default(opts.Logger).With("component", "explorer"),
		cur:    NewCursor(0),
	}
	if s.eval == nil {
		s.eval = predicate.NewExpr()
	}
	if s.hist == nil {
		s.hist = history.New()
	}
	return s
}

// Attach installs t directly and resets the cursor. The history is not
// touched.
func (s *Session) Attach(t *trace.Trace) error {
	if t == nil || t.Tree == nil {
		return fmt.Errorf("%w: nil trace", trace.ErrMalformedTrace)
	}
	s.install(t)
	return nil
}

func (s *Session) install(t *trace.Trace) {
	s.tr = t
	s.cur = NewCursor(t.Len())
	s.lastErr = nil
	s.logger.Info("trace installed", "trace", t.ID, "steps", t.Len(), "nodes", t.Tree.Len())
}

// BeginFetch registers a new fetch for query and returns its ticket. Any
// fetch still in flight becomes stale. History browsing ends at once; the
// query is appended only when the fetch succeeds.
func (s *Session) BeginFetch(query string) Ticket {
	s.hist.EndBrowse()
	return s.begin(query)
}

func (s *Session) begin(query string) Ticket {
	s.ticket++
	s.fetching = true
	s.reload = false
	s.pendingQuery = query
	return s.ticket
}

// BeginReload registers a fetch that re-installs the current trace's
// query. A successful reload is not recorded in the history. It returns
// false, and leaves the session untouched, while a query fetch is in
// flight so the reload cannot supersede it.
func (s *Session) BeginReload() (Ticket, bool) {
	if s.fetching && !s.reload {
		return 0, false
	}
	var query string
	if s.tr != nil {
		query = s.tr.Query
	}
	tk := s.begin(query)
	s.reload = true
	return tk, true
}

// CompleteFetch applies the outcome of the fetch identified by tk. A
// stale ticket is discarded with ErrStaleFetch. On failure the current
// trace, cursor and history stay as they were and the error is recorded
// for display. On success the trace is installed, the cursor reset and
// the query appended to the history.
func (s *Session) CompleteFetch(tk Ticket, t *trace.Trace, err error) error {
	if tk != s.ticket || !s.fetching {
		s.logger.Debug("stale fetch discarded", "ticket", tk, "latest", s.ticket)
		return ErrStaleFetch
	}
	query, reload := s.pendingQuery, s.reload
	s.fetching = false
	s.reload = false
	s.pendingQuery = ""

	if err == nil && (t == nil || t.Tree == nil) {
		err = fmt.Errorf("%w: empty fetch result", trace.ErrMalformedTrace)
	}
	if err != nil {
		s.lastErr = err
		s.logger.Warn("trace rejected", "query", query, "error", err)
		return err
	}

	s.install(t)
	if !reload {
		s.hist.Submit(query)
	}
	return nil
}

// Submit fetches the trace of query from the session's source and
// installs it. It blocks for the duration of the fetch.
func (s *Session) Submit(ctx context.Context, query string) error {
	if s.src == nil {
		return fmt.Errorf("%w: no trace source configured", source.ErrEngineUnavailable)
	}
	tk := s.BeginFetch(query)
	t, err := s.src.Fetch(ctx, query)
	return s.CompleteFetch(tk, t, err)
}

// Source returns the session's trace source.
func (s *Session) Source() source.Source { return s.src }

// Trace returns the installed trace, or nil.
func (s *Session) Trace() *trace.Trace { return s.tr }

// History returns the query history.
func (s *Session) History() *history.History { return s.hist }

// Position returns the cursor position, -1 without steps.
func (s *Session) Position() int { return s.cur.Position() }

// StepForward moves to the next step; a no-op at the end.
func (s *Session) StepForward() bool { return s.cur.StepForward() }

// StepBackward moves to the previous step; a no-op at the start.
func (s *Session) StepBackward() bool { return s.cur.StepBackward() }

// Reset returns to the first step.
func (s *Session) Reset() { s.cur.Reset() }

// First moves to the first step.
func (s *Session) First() bool { return s.cur.Seek(0) }

// Last moves to the last step.
func (s *Session) Last() bool { return s.cur.Seek(s.cur.Len() - 1) }

// Seek moves to step i; out of range is a no-op.
func (s *Session) Seek(i int) bool { return s.cur.Seek(i) }

// Search moves to the next step after the cursor whose environment
// satisfies exprText. Without a match the cursor stays put.
func (s *Session) Search(exprText string) (int, bool, error) {
	return s.search(exprText, FindNext)
}

// SearchPrev is Search in the backward direction.
func (s *Session) SearchPrev(exprText string) (int, bool, error) {
	return s.search(exprText, FindPrev)
}

func (s *Session) search(exprText string, find func(*Cursor, *trace.Trace, string, predicate.Evaluator) (int, bool)) (int, bool, error) {
	if s.tr == nil {
		s.lastErr = ErrNoTrace
		return -1, false, ErrNoTrace
	}
	i, ok := find(s.cur, s.tr, exprText, s.eval)
	if ok {
		s.cur.Seek(i)
	}
	return i, ok, nil
}

// HistoryUp recalls the previous query.
func (s *Session) HistoryUp() (string, bool) { return s.hist.RecallPrevious() }

// HistoryDown recalls the next query, or the draft past the newest one.
func (s *Session) HistoryDown() (string, bool) { return s.hist.RecallNext() }

// SetDraft records the live input line for history browsing.
func (s *Session) SetDraft(text string) { s.hist.SetDraft(text) }

// LastError returns the most recent fetch or search failure.
func (s *Session) LastError() error { return s.lastErr }

// ClearError forgets the recorded failure.
func (s *Session) ClearError() { s.lastErr = nil }

// Snapshot is a read-only view of the session after an event.
type Snapshot struct {
	TraceID string
	Query   string
	Tree    *plan.Tree

	// Step is the cursor position, -1 when there is no step to show.
	Step    int
	Total   int
	Node    plan.Node
	Env     trace.Environment
	StepErr string

	Fetching     bool
	PendingQuery string
	LastErr      error

	HistoryLen  int
	BrowseIndex int
}

// HasTrace reports whether a trace is installed.
func (s Snapshot) HasTrace() bool { return s.Tree != nil }

// HasStep reports whether the snapshot points at a step.
func (s Snapshot) HasStep() bool { return s.Step >= 0 }

// Snapshot captures the current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Step:         -1,
		Fetching:     s.fetching,
		PendingQuery: s.pendingQuery,
		LastErr:      s.lastErr,
		HistoryLen:   s.hist.Len(),
		BrowseIndex:  s.hist.BrowseIndex(),
	}
	if s.tr == nil {
		return snap
	}
	snap.TraceID = s.tr.ID
	snap.Query = s.tr.Query
	snap.Tree = s.tr.Tree
	snap.Total = s.tr.Len()

	step, ok := s.tr.Step(s.cur.Position())
	if !ok {
		return snap
	}
	snap.Step = s.cur.Position()
	snap.Node, _ = s.tr.Tree.Node(step.NodeID)
	snap.Env = s.tr.EnvironmentFor(step)
	snap.StepErr = step.Err
	return snap
}
