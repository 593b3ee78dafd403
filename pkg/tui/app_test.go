package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ormasoftchile/qtrace/pkg/explorer"
	"github.com/ormasoftchile/qtrace/pkg/plan"
	"github.com/ormasoftchile/qtrace/pkg/source"
	"github.com/ormasoftchile/qtrace/pkg/trace"
)

func pairTrace(t *testing.T, query string, n int) *trace.Trace {
	t.Helper()
	steps := make([]trace.Step, n)
	for i := range steps {
		steps[i] = trace.Step{NodeID: "1", Values: []trace.Value{int64(i)}}
	}
	tr, err := trace.FromNodes(query, []plan.NodeSpec{
		{ID: "0", Label: "Results", Variables: []string{"x"}},
		{ID: "1", ParentID: "0", Label: "Unwind", Variables: []string{"x"}},
	}, steps)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func newTestModel(t *testing.T, src source.Source) Model {
	t.Helper()
	s := explorer.New(explorer.Options{Source: src})
	if err := s.Attach(pairTrace(t, "UNWIND range(0, 3) AS x RETURN x", 4)); err != nil {
		t.Fatal(err)
	}
	return NewModel(Config{Session: s})
}

func press(m Model, k string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch k {
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_Stepping(t *testing.T) {
	m := newTestModel(t, nil)
	if got := stepLabel(m.session.Snapshot()); got != "Step: 1/4" {
		t.Fatalf("initial label = %q", got)
	}

	for i := 0; i < 6; i++ {
		m, _ = press(m, "right")
	}
	if m.session.Position() != 3 {
		t.Errorf("position after stepping past end = %d, want 3", m.session.Position())
	}
	m, _ = press(m, "left")
	if m.session.Position() != 2 {
		t.Errorf("position after left = %d, want 2", m.session.Position())
	}
	m, _ = press(m, "g")
	if m.session.Position() != 0 {
		t.Errorf("position after g = %d, want 0", m.session.Position())
	}
	m, _ = press(m, "G")
	if m.session.Position() != 3 {
		t.Errorf("position after G = %d, want 3", m.session.Position())
	}

	view := m.View()
	if !strings.Contains(view, "Step: 4/4") {
		t.Errorf("view missing step label:\n%s", view)
	}
	if !strings.Contains(view, "Env: (x: 3)") {
		t.Errorf("view missing highlighted env:\n%s", view)
	}
}

func TestModel_Search(t *testing.T) {
	m := newTestModel(t, nil)

	m, _ = press(m, "/")
	if m.focus != focusSearch {
		t.Fatal("search bar did not open")
	}
	m, _ = press(m, "x >= 2")
	m, _ = press(m, "enter")
	if m.focus != focusTree {
		t.Error("search bar still focused after enter")
	}
	if m.session.Position() != 2 {
		t.Fatalf("position after search = %d, want 2", m.session.Position())
	}

	m, _ = press(m, "n")
	if m.session.Position() != 3 {
		t.Errorf("position after n = %d, want 3", m.session.Position())
	}
	m, _ = press(m, "n")
	if m.session.Position() != 3 {
		t.Errorf("failed search moved the cursor to %d", m.session.Position())
	}
	if !strings.Contains(m.search.View(), "no further match") {
		t.Errorf("search view = %q", m.search.View())
	}
	m, _ = press(m, "N")
	if m.session.Position() != 2 {
		t.Errorf("position after N = %d, want 2", m.session.Position())
	}
}

func TestModel_SearchEscKeepsCursor(t *testing.T) {
	m := newTestModel(t, nil)
	m, _ = press(m, "/")
	m, _ = press(m, "x == 3")
	m, _ = press(m, "esc")
	if m.focus != focusTree || m.session.Position() != 0 {
		t.Errorf("esc ran the search: focus=%d pos=%d", m.focus, m.session.Position())
	}
}

func TestModel_SubmitQuery(t *testing.T) {
	var fetched []string
	src := source.Func(func(ctx context.Context, q string) (*trace.Trace, error) {
		fetched = append(fetched, q)
		return pairTrace(t, q, 2), nil
	})
	m := newTestModel(t, src)
	m, _ = press(m, "right")

	m, _ = press(m, "tab")
	if m.focus != focusQuery {
		t.Fatal("query line not focused")
	}
	m, _ = press(m, "RETURN 1")
	m, cmd := press(m, "enter")
	if cmd == nil {
		t.Fatal("submit returned no fetch command")
	}
	if !m.session.Snapshot().Fetching {
		t.Error("session not fetching")
	}

	next, _ := m.Update(cmd())
	m = next.(Model)
	if len(fetched) != 1 || fetched[0] != "RETURN 1" {
		t.Errorf("fetched = %v", fetched)
	}
	snap := m.session.Snapshot()
	if snap.Query != "RETURN 1" || snap.Step != 0 || snap.Total != 2 {
		t.Errorf("snapshot after fetch = %+v", snap)
	}
	if m.query.Value() != "" {
		t.Errorf("query line not cleared: %q", m.query.Value())
	}
	if got := m.session.History().Entries(); len(got) != 1 || got[0] != "RETURN 1" {
		t.Errorf("history = %v", got)
	}
}

func TestModel_StaleFetchIgnored(t *testing.T) {
	src := source.Func(func(ctx context.Context, q string) (*trace.Trace, error) {
		return pairTrace(t, q, 3), nil
	})
	m := newTestModel(t, src)
	m, _ = press(m, "tab")

	m, _ = press(m, "first")
	m, slow := press(m, "enter")
	m.query.SetValue("second")
	m, fast := press(m, "enter")

	next, _ := m.Update(fast())
	m = next.(Model)
	next, _ = m.Update(slow())
	m = next.(Model)

	if q := m.session.Trace().Query; q != "second" {
		t.Errorf("installed query = %q, want second", q)
	}
	if got := m.session.History().Entries(); len(got) != 1 {
		t.Errorf("history = %v", got)
	}
}

func TestModel_FetchErrorKeepsTrace(t *testing.T) {
	src := source.Func(func(ctx context.Context, q string) (*trace.Trace, error) {
		return nil, source.ErrEngineUnavailable
	})
	m := newTestModel(t, src)
	m, _ = press(m, "right")
	before := m.session.Trace()

	m, _ = press(m, "tab")
	m, _ = press(m, "bad")
	m, cmd := press(m, "enter")
	next, _ := m.Update(cmd())
	m = next.(Model)

	if m.session.Trace() != before || m.session.Position() != 1 {
		t.Error("failed fetch replaced the trace or moved the cursor")
	}
	if !errors.Is(m.session.LastError(), source.ErrEngineUnavailable) {
		t.Errorf("LastError = %v", m.session.LastError())
	}
	if !strings.Contains(m.View(), "Error:") {
		t.Error("view does not show the error")
	}
}

func TestModel_HistoryBrowsing(t *testing.T) {
	m := newTestModel(t, nil)
	m.session.History().Submit("q1")
	m.session.History().Submit("q2")

	m, _ = press(m, "tab")
	m, _ = press(m, "dra")
	m, _ = press(m, "up")
	if m.query.Value() != "q2" {
		t.Errorf("after up = %q, want q2", m.query.Value())
	}
	m, _ = press(m, "up")
	m, _ = press(m, "up")
	if m.query.Value() != "q1" {
		t.Errorf("after up x3 = %q, want q1", m.query.Value())
	}
	m, _ = press(m, "down")
	if m.query.Value() != "q2" {
		t.Errorf("after down = %q, want q2", m.query.Value())
	}
	m, _ = press(m, "down")
	if m.query.Value() != "dra" {
		t.Errorf("after leaving history = %q, want draft", m.query.Value())
	}
	m, _ = press(m, "down")
	if m.query.Value() != "dra" {
		t.Errorf("down while not browsing changed input to %q", m.query.Value())
	}
}

func TestModel_QueryLineTakesLetters(t *testing.T) {
	m := newTestModel(t, nil)
	m, _ = press(m, "tab")
	m, _ = press(m, "q")
	if m.focus != focusQuery || m.query.Value() != "q" {
		t.Errorf("query = %q", m.query.Value())
	}
	m, _ = press(m, "esc")
	if m.focus != focusTree {
		t.Error("esc did not leave the query line")
	}
}

func TestModel_Reload(t *testing.T) {
	calls := 0
	src := source.Func(func(ctx context.Context, q string) (*trace.Trace, error) {
		calls++
		return pairTrace(t, q, 5), nil
	})
	m := newTestModel(t, src)
	ch := make(chan struct{}, 1)
	m.watch = ch

	next, cmd := m.Update(reloadMsg{})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("reload returned no command")
	}
	// Run the fetch directly; the batch also holds the blocking watch wait.
	tk, ok := m.session.BeginReload()
	if !ok {
		t.Fatal("reload refused with no fetch in flight")
	}
	next, _ = m.Update(m.fetch(tk, m.session.Trace().Query)())
	m = next.(Model)

	if m.session.Trace().Len() != 5 {
		t.Errorf("reloaded trace has %d steps", m.session.Trace().Len())
	}
	if m.session.History().Len() != 0 {
		t.Errorf("reload recorded history: %v", m.session.History().Entries())
	}
	if calls != 1 {
		t.Errorf("source called %d times", calls)
	}
}

func TestModel_NoTrace(t *testing.T) {
	m := NewModel(Config{Session: explorer.New(explorer.Options{})})
	view := m.View()
	if !strings.Contains(view, "No trace loaded") {
		t.Errorf("view:\n%s", view)
	}
	if !strings.Contains(view, "Step: 0/0") {
		t.Errorf("view missing empty step label:\n%s", view)
	}
	m, _ = press(m, "right")
	m, _ = press(m, "n")
	if m.session.Position() != -1 {
		t.Errorf("position = %d", m.session.Position())
	}
}

func TestModel_Help(t *testing.T) {
	m := newTestModel(t, nil)
	m, _ = press(m, "?")
	if !m.showHelp {
		t.Fatal("help not shown")
	}
	m, _ = press(m, "right")
	if m.session.Position() != 0 {
		t.Error("keys leaked through the help overlay")
	}
	m, _ = press(m, "esc")
	if m.showHelp {
		t.Error("esc did not close help")
	}
}

func TestModel_ReloadWaitsForQueryFetch(t *testing.T) {
	src := source.Func(func(ctx context.Context, q string) (*trace.Trace, error) {
		return pairTrace(t, q, 2), nil
	})
	m := newTestModel(t, src)
	m.watch = make(chan struct{}, 1)

	m, _ = press(m, "tab")
	m, _ = press(m, "RETURN 2")
	m, fetch := press(m, "enter")

	next, _ := m.Update(reloadMsg{})
	m = next.(Model)
	next, _ = m.Update(fetch())
	m = next.(Model)

	if q := m.session.Trace().Query; q != "RETURN 2" {
		t.Errorf("installed query = %q, want RETURN 2", q)
	}
	if got := m.session.History().Entries(); len(got) != 1 || got[0] != "RETURN 2" {
		t.Errorf("history = %v", got)
	}
}
