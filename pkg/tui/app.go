package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/qtrace/pkg/diagram"
	"github.com/ormasoftchile/qtrace/pkg/explorer"
	"github.com/ormasoftchile/qtrace/pkg/logging"
	"github.com/ormasoftchile/qtrace/pkg/source"
	"github.com/ormasoftchile/qtrace/pkg/trace"
)

// --- Tea messages ---

// fetchedMsg carries the outcome of a trace fetch back to the event loop.
type fetchedMsg struct {
	ticket explorer.Ticket
	trace  *trace.Trace
	err    error
}

// reloadMsg signals that the watched trace file changed.
type reloadMsg struct{}

// watchClosedMsg signals the watch channel closed.
type watchClosedMsg struct{}

type focus int

const (
	focusTree focus = iota
	focusQuery
	focusSearch
)

// --- Model ---

// Model is the top-level Bubble Tea model for the explorer.
type Model struct {
	session *explorer.Session
	timeout time.Duration
	logger  *slog.Logger

	// Components
	tree     viewport.Model
	query    textinput.Model
	search   searchBar
	progress progress.Model
	spinner  spinner.Model

	// State
	focus    focus
	showHelp bool
	initial  string
	watch    <-chan struct{}

	// Layout
	width  int
	height int
}

// Config holds the parameters needed to launch the TUI.
type Config struct {
	// Session is required. Its Source serves query fetches.
	Session *explorer.Session
	// Query is fetched on start when non-empty.
	Query string
	// FetchTimeout bounds each fetch; zero means no deadline.
	FetchTimeout time.Duration
	// Watch, when set, triggers a reload of the current query on every
	// signal.
	Watch  <-chan struct{}
	Logger *slog.Logger
}

// NewModel builds the explorer model.
func NewModel(cfg Config) Model {
	ti := textinput.New()
	ti.Placeholder = "Enter query"
	ti.CharLimit = 4096
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		session:  cfg.Session,
		timeout:  cfg.FetchTimeout,
		logger:   logging.Default(cfg.Logger).With("component", "tui"),
		tree:     viewport.New(80, 10),
		query:    ti,
		search:   newSearchBar(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		spinner:  sp,
		initial:  cfg.Query,
		watch:    cfg.Watch,
	}
	m.refreshTree()
	return m
}

// Run starts the TUI on the alternate screen and blocks until it exits.
func Run(cfg Config) error {
	if cfg.Session == nil {
		return errors.New("tui: nil session")
	}
	p := tea.NewProgram(NewModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init returns the initial commands: start spinner, fetch the first query,
// wait for file changes.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.waitForReload()}
	if m.initial != "" {
		cmds = append(cmds, m.startFetch(m.initial))
	}
	return tea.Batch(cmds...)
}

// startFetch registers a fetch with the session and returns the command
// that performs it off the event loop.
func (m Model) startFetch(query string) tea.Cmd {
	return m.fetch(m.session.BeginFetch(query), query)
}

func (m Model) fetch(tk explorer.Ticket, query string) tea.Cmd {
	src := m.session.Source()
	timeout := m.timeout
	return func() tea.Msg {
		if src == nil {
			return fetchedMsg{ticket: tk, err: fmt.Errorf("%w: no trace source configured", source.ErrEngineUnavailable)}
		}
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		t, err := src.Fetch(ctx, query)
		return fetchedMsg{ticket: tk, trace: t, err: err}
	}
}

// waitForReload returns a command that waits for the next watch signal.
func (m Model) waitForReload() tea.Cmd {
	if m.watch == nil {
		return nil
	}
	ch := m.watch
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return watchClosedMsg{}
		}
		return reloadMsg{}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case fetchedMsg:
		err := m.session.CompleteFetch(msg.ticket, msg.trace, msg.err)
		switch {
		case errors.Is(err, explorer.ErrStaleFetch):
			// Superseded by a newer query.
		case err == nil:
			m.query.SetValue("")
			m.search.tried = false
			m.tree.GotoTop()
		}
		m.refreshTree()

	case reloadMsg:
		m.logger.Debug("trace changed on disk")
		if m.session.Trace() != nil {
			if tk, ok := m.session.BeginReload(); ok {
				cmds = append(cmds, m.fetch(tk, m.session.Trace().Query))
			} else {
				m.logger.Debug("reload skipped, query fetch in flight")
			}
		}
		cmds = append(cmds, m.waitForReload())

	case watchClosedMsg:
		m.watch = nil
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		switch {
		case matchKey(msg, keys.Cancel), matchKey(msg, keys.Help):
			m.showHelp = false
		case matchKey(msg, keys.Quit):
			return m, tea.Quit
		}
		return m, nil
	}

	switch m.focus {
	case focusSearch:
		closed, committed, cmd := m.search.Update(msg)
		if closed || committed {
			m.focus = focusTree
		}
		if committed {
			m.runSearch(true)
		}
		return m, cmd

	case focusQuery:
		return m.handleQueryKey(msg)
	}

	switch {
	case matchKey(msg, keys.Quit):
		return m, tea.Quit

	case matchKey(msg, keys.Next):
		m.session.StepForward()

	case matchKey(msg, keys.Prev):
		m.session.StepBackward()

	case matchKey(msg, keys.First):
		m.session.First()

	case matchKey(msg, keys.Last):
		m.session.Last()

	case matchKey(msg, keys.Reset):
		m.session.Reset()

	case matchKey(msg, keys.Search):
		m.focus = focusSearch
		cmd := m.search.Open()
		return m, cmd

	case matchKey(msg, keys.NextMatch):
		m.runSearch(true)

	case matchKey(msg, keys.PrevMatch):
		m.runSearch(false)

	case matchKey(msg, keys.Query):
		m.focus = focusQuery
		cmd := m.query.Focus()
		return m, cmd

	case matchKey(msg, keys.Help):
		m.showHelp = true
		return m, nil

	case matchKey(msg, keys.Cancel):
		m.session.ClearError()

	case matchKey(msg, keys.PgUp):
		m.tree.HalfViewUp()
		return m, nil

	case matchKey(msg, keys.PgDown):
		m.tree.HalfViewDown()
		return m, nil

	default:
		return m, nil
	}

	m.refreshTree()
	return m, nil
}

// handleQueryKey edits the query line and browses the history.
func (m Model) handleQueryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case matchKey(msg, keys.Submit):
		q := strings.TrimSpace(m.query.Value())
		if q == "" {
			return m, nil
		}
		return m, m.startFetch(q)

	case matchKey(msg, keys.HistUp):
		hist := m.session.History()
		if !hist.Browsing() {
			m.session.SetDraft(m.query.Value())
		}
		if q, ok := m.session.HistoryUp(); ok {
			m.query.SetValue(q)
			m.query.CursorEnd()
		}
		return m, nil

	case matchKey(msg, keys.HistDown):
		if !m.session.History().Browsing() {
			return m, nil
		}
		q, _ := m.session.HistoryDown()
		m.query.SetValue(q)
		m.query.CursorEnd()
		return m, nil

	case matchKey(msg, keys.Cancel):
		m.focus = focusTree
		m.query.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.query, cmd = m.query.Update(msg)
	return m, cmd
}

// runSearch moves to the next (or previous) step satisfying the committed
// predicate.
func (m *Model) runSearch(forward bool) {
	expr := m.search.Query()
	if expr == "" {
		return
	}
	var (
		i   int
		ok  bool
		err error
	)
	if forward {
		i, ok, err = m.session.Search(expr)
	} else {
		i, ok, err = m.session.SearchPrev(expr)
	}
	if err != nil {
		return
	}
	m.search.SetResult(i, ok)
	m.refreshTree()
}

// matchKey checks if a key message matches a key.Binding.
func matchKey(msg tea.KeyMsg, binding key.Binding) bool {
	return key.Matches(msg, binding)
}

// layout sizes the panels to the terminal.
func (m *Model) layout() {
	w := m.width - 2
	if w < 20 {
		w = 20
	}
	// header, env, step row, status, search, query, key bar, borders
	h := m.height - 9
	if h < 3 {
		h = 3
	}
	m.tree.Width = w
	m.tree.Height = h
	m.query.Width = w - 4
	m.progress.Width = w / 2
	m.refreshTree()
}

// refreshTree redraws the plan panel from a fresh snapshot and keeps the
// highlighted operator in view.
func (m *Model) refreshTree() {
	snap := m.session.Snapshot()
	if !snap.HasTrace() {
		m.tree.SetContent(keyDescStyle.Render("No trace loaded. Press tab and enter a query."))
		return
	}

	opts := diagram.Options{}
	if snap.HasStep() {
		opts.Highlight = snap.Node.ID
		opts.Env = snap.Env.String()
	}
	lines, hl := diagram.Lines(snap.Tree, opts)
	for i, l := range lines {
		switch {
		case i == hl && snap.StepErr != "":
			lines[i] = nodeFailed.Render(l)
		case i == hl:
			lines[i] = nodeCurrent.Render(l)
		default:
			lines[i] = nodeNormal.Render(l)
		}
	}
	m.tree.SetContent(strings.Join(lines, "\n"))

	if hl >= 0 && (hl < m.tree.YOffset || hl >= m.tree.YOffset+m.tree.Height) {
		m.tree.SetYOffset(hl - m.tree.Height/2)
	}
}

// View renders the full TUI.
func (m Model) View() string {
	snap := m.session.Snapshot()
	if m.showHelp {
		return helpStyle.Render(renderMarkdownWidth(helpMarkdown, m.width-6)) + "\n" +
			keyBarStyle.Render(keyBarText(m.focus, true))
	}

	var b strings.Builder

	// Header: the query of the installed trace.
	if snap.HasTrace() {
		b.WriteString(headerStyle.Render(snap.Query))
	} else {
		b.WriteString(headerStyle.Render("qtrace"))
	}
	b.WriteString("\n")

	b.WriteString(panelBorder.Render(m.tree.View()))
	b.WriteString("\n")

	b.WriteString(m.envLine(snap))
	b.WriteString("\n")
	b.WriteString(m.stepLine(snap))
	b.WriteString("\n")
	b.WriteString(m.statusLine(snap))
	b.WriteString("\n")
	b.WriteString(m.search.View())
	b.WriteString("\n")
	b.WriteString(m.query.View())
	b.WriteString("\n")
	b.WriteString(keyBarStyle.Render(keyBarText(m.focus, false)))
	return b.String()
}

func (m Model) envLine(snap explorer.Snapshot) string {
	switch {
	case !snap.HasStep():
		return labelStyle.Render("Env:")
	case snap.StepErr != "":
		return errorStyle.Render(snap.Node.Label + " failed: " + snap.StepErr)
	}
	return labelStyle.Render("Env:") + " " + valueStyle.Render("("+snap.Env.String()+")")
}

// stepLabel is the "Step: i/N" indicator, 1-based.
func stepLabel(snap explorer.Snapshot) string {
	return fmt.Sprintf("Step: %d/%d", snap.Step+1, snap.Total)
}

func (m Model) stepLine(snap explorer.Snapshot) string {
	pct := 0.0
	if snap.Total > 0 {
		pct = float64(snap.Step+1) / float64(snap.Total)
	}
	return labelStyle.Render(stepLabel(snap)) + "  " + m.progress.ViewAs(pct)
}

func (m Model) statusLine(snap explorer.Snapshot) string {
	switch {
	case snap.Fetching:
		return m.spinner.View() + " " + keyDescStyle.Render("running "+diagram.Truncate(snap.PendingQuery, 60))
	case snap.LastErr != nil:
		return errorStyle.Render("Error: " + snap.LastErr.Error())
	case snap.BrowseIndex >= 0:
		return badgeStyle.Render(fmt.Sprintf("history %d/%d", snap.BrowseIndex+1, snap.HistoryLen))
	}
	return ""
}
