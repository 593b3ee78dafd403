package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// searchBar is the inline predicate prompt opened with '/'.
type searchBar struct {
	active bool
	input  textinput.Model
	query  string // committed predicate
	match  int    // step of the last match, -1 for none
	tried  bool   // whether the committed predicate has been run
}

func newSearchBar() searchBar {
	ti := textinput.New()
	ti.Placeholder = "x == 3 && y > 5"
	ti.CharLimit = 256
	ti.Width = 40
	ti.Prompt = "/ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	return searchBar{input: ti, match: -1}
}

// Open activates the search bar, pre-filled with the last predicate.
func (s *searchBar) Open() tea.Cmd {
	s.active = true
	s.input.SetValue(s.query)
	s.input.CursorEnd()
	return s.input.Focus()
}

// Close deactivates the search bar, keeping the committed predicate.
func (s *searchBar) Close() {
	s.active = false
	s.input.Blur()
}

// Update handles key events when the search bar is active.
// Returns (closed, committed, cmd).
// closed: user pressed Esc to close search.
// committed: user pressed Enter to commit and close.
func (s *searchBar) Update(msg tea.KeyMsg) (closed bool, committed bool, cmd tea.Cmd) {
	switch msg.String() {
	case "esc":
		s.Close()
		return true, false, nil
	case "enter":
		s.query = s.input.Value()
		s.tried = false
		s.Close()
		return false, true, nil
	}

	var c tea.Cmd
	s.input, c = s.input.Update(msg)
	return false, false, c
}

// Query returns the committed predicate.
func (s *searchBar) Query() string {
	return s.query
}

// IsActive returns whether the search bar is accepting input.
func (s *searchBar) IsActive() bool {
	return s.active
}

// HasQuery returns whether a predicate has been committed.
func (s *searchBar) HasQuery() bool {
	return s.query != ""
}

// SetResult records the outcome of running the predicate.
func (s *searchBar) SetResult(step int, found bool) {
	s.tried = true
	if found {
		s.match = step
	} else {
		s.match = -1
	}
}

// View renders the search bar.
func (s *searchBar) View() string {
	if s.active {
		return s.input.View()
	}
	if !s.HasQuery() {
		return ""
	}
	result := keyDescStyle.Render("/" + s.query)
	if !s.tried {
		return result
	}
	if s.match >= 0 {
		return result + "  " + matchStyle.Render(fmt.Sprintf("match at step %d", s.match+1))
	}
	return result + "  " + errorStyle.Render("no further match")
}
