// Package history keeps the queries submitted during a session and lets the
// user browse them shell-style.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// History is an append-only list of submitted queries with a browse
// cursor. While browsing, the cursor walks a snapshot of the entries taken
// when browsing started; Submit ends browsing.
type History struct {
	entries  []string
	browse   []string // snapshot while browsing, nil otherwise
	index    int      // valid only while browse != nil
	draft    string
	browsing bool
}

// New returns an empty history, optionally seeded with entries.
func New(entries ...string) *History {
	return &History{entries: append([]string(nil), entries...)}
}

// Submit appends text unconditionally (duplicates included) and ends browsing.
func (h *History) Submit(text string) {
	h.entries = append(h.entries, text)
	h.EndBrowse()
	h.draft = ""
}

// SetDraft records the live input to restore when browsing runs past the
// newest entry. It is ignored while browsing.
func (h *History) SetDraft(text string) {
	if !h.browsing {
		h.draft = text
	}
}

// Draft returns the saved live input.
func (h *History) Draft() string { return h.draft }

// RecallPrevious moves the browse cursor one entry back, starting at the
// newest entry, and clamps at the oldest. It returns false when there are
// no entries.
func (h *History) RecallPrevious() (string, bool) {
	if !h.browsing {
		if len(h.entries) == 0 {
			return "", false
		}
		h.browse = append([]string(nil), h.entries...)
		h.index = len(h.browse) - 1
		h.browsing = true
		return h.browse[h.index], true
	}
	if h.index > 0 {
		h.index--
	}
	return h.browse[h.index], true
}

// RecallNext moves the browse cursor one entry forward. Past the newest
// entry browsing ends and the draft is returned. When not browsing it is a
// no-op that returns the draft with ok=false.
func (h *History) RecallNext() (string, bool) {
	if !h.browsing {
		return h.draft, false
	}
	if h.index == len(h.browse)-1 {
		h.EndBrowse()
		return h.draft, true
	}
	h.index++
	return h.browse[h.index], true
}

// Browsing reports whether the browse cursor is active.
func (h *History) Browsing() bool { return h.browsing }

// BrowseIndex returns the browse cursor, or -1 when not browsing.
func (h *History) BrowseIndex() int {
	if !h.browsing {
		return -1
	}
	return h.index
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// Entries returns a copy of the entries, oldest first.
func (h *History) Entries() []string {
	return append([]string(nil), h.entries...)
}

// Last returns the newest entry.
func (h *History) Last() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	return h.entries[len(h.entries)-1], true
}

// EndBrowse leaves browse mode without touching the entries. The draft
// is kept.
func (h *History) EndBrowse() {
	h.browsing = false
	h.browse = nil
	h.index = 0
}

// Load reads a history file written by Save. A missing file yields an
// empty history. At most max newest entries are kept (max <= 0: all).
func Load(path string, max int) (*History, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, `"`) {
			if s, err := strconv.Unquote(line); err == nil {
				line = s
			}
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return New(trim(entries, max)...), nil
}

// Save writes the newest max entries to path, one per line. Entries with
// newlines or a leading quote are written quoted.
func (h *History) Save(path string, max int) error {
	var b strings.Builder
	for _, e := range trim(h.entries, max) {
		if strings.ContainsAny(e, "\r\n") || strings.HasPrefix(e, `"`) {
			e = strconv.Quote(e)
		}
		b.WriteString(e)
		b.WriteByte('\n')
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func trim(entries []string, max int) []string {
	if max > 0 && len(entries) > max {
		return entries[len(entries)-max:]
	}
	return entries
}
