package history

import (
	"path/filepath"
	"slices"
	"testing"
)

func TestRecall_RoundTripToDraft(t *testing.T) {
	h := New()
	h.Submit("q1")
	h.Submit("q2")

	steps := []struct {
		call string
		want string
		idx  int
	}{
		{"prev", "q2", 1},
		{"prev", "q1", 0},
		{"next", "q2", 1},
		{"next", "", -1},
	}
	for i, s := range steps {
		var got string
		var ok bool
		if s.call == "prev" {
			got, ok = h.RecallPrevious()
		} else {
			got, ok = h.RecallNext()
		}
		if !ok || got != s.want {
			t.Fatalf("step %d (%s) = %q, %v; want %q", i, s.call, got, ok, s.want)
		}
		if h.BrowseIndex() != s.idx {
			t.Fatalf("step %d browse index = %d, want %d", i, h.BrowseIndex(), s.idx)
		}
	}
	if h.Browsing() {
		t.Error("browsing should have ended")
	}
}

func TestRecallPrevious_ClampsAtOldest(t *testing.T) {
	h := New("a", "b")
	for i := 0; i < 5; i++ {
		h.RecallPrevious()
	}
	if h.BrowseIndex() != 0 {
		t.Errorf("browse index = %d, want 0", h.BrowseIndex())
	}
	got, _ := h.RecallPrevious()
	if got != "a" {
		t.Errorf("got %q, want a", got)
	}
}

func TestRecallPrevious_Empty(t *testing.T) {
	h := New()
	if got, ok := h.RecallPrevious(); ok || got != "" {
		t.Errorf("empty history returned %q, %v", got, ok)
	}
	if h.Browsing() {
		t.Error("empty history must not start browsing")
	}
}

func TestRecallNext_NotBrowsingIsNoop(t *testing.T) {
	h := New("a")
	h.SetDraft("typing")
	got, ok := h.RecallNext()
	if ok || got != "typing" {
		t.Errorf("got %q, %v; want draft unchanged", got, ok)
	}
	if h.Browsing() {
		t.Error("RecallNext must not start browsing")
	}
}

func TestRecallNext_RestoresDraft(t *testing.T) {
	h := New("a")
	h.SetDraft("half typed")
	h.RecallPrevious()
	h.SetDraft("ignored while browsing")
	if got, _ := h.RecallNext(); got != "half typed" {
		t.Errorf("got %q, want saved draft", got)
	}
}

func TestSubmit_DuringBrowsingResets(t *testing.T) {
	h := New()
	h.Submit("q1")
	h.Submit("q2")
	h.RecallPrevious()
	h.RecallPrevious()
	h.Submit("q3")
	if h.Browsing() || h.BrowseIndex() != -1 {
		t.Fatalf("submit must end browsing, index=%d", h.BrowseIndex())
	}
	if got := h.Entries(); !slices.Equal(got, []string{"q1", "q2", "q3"}) {
		t.Errorf("entries = %v", got)
	}
	if got, _ := h.RecallPrevious(); got != "q3" {
		t.Errorf("recall after submit = %q, want q3", got)
	}
}

func TestEndBrowse_KeepsEntries(t *testing.T) {
	h := New("q1", "q2")
	h.RecallPrevious()
	h.RecallPrevious()
	h.EndBrowse()
	if h.Browsing() || h.BrowseIndex() != -1 {
		t.Fatalf("still browsing at %d", h.BrowseIndex())
	}
	if !slices.Equal(h.Entries(), []string{"q1", "q2"}) {
		t.Errorf("entries = %v", h.Entries())
	}
	if q, _ := h.RecallPrevious(); q != "q2" {
		t.Errorf("fresh browse started at %q, want q2", q)
	}
}

func TestSubmit_KeepsDuplicates(t *testing.T) {
	h := New()
	h.Submit("same")
	h.Submit("same")
	if h.Len() != 2 {
		t.Errorf("Len = %d, want 2", h.Len())
	}
}

func TestBrowsing_DoesNotMutateEntries(t *testing.T) {
	h := New("a", "b", "c")
	h.RecallPrevious()
	h.RecallPrevious()
	h.RecallNext()
	if got := h.Entries(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("entries = %v", got)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "history")
	h := New("MATCH (n) RETURN n", "RETURN 1\nRETURN 2", `"quoted"`, "last")
	if err := h.Save(path, 3); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"RETURN 1\nRETURN 2", `"quoted"`, "last"}
	if !slices.Equal(got.Entries(), want) {
		t.Errorf("entries = %q, want %q", got.Entries(), want)
	}

	trimmed, err := Load(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(trimmed.Entries(), []string{"last"}) {
		t.Errorf("trimmed = %q", trimmed.Entries())
	}
}

func TestLoad_Missing(t *testing.T) {
	h, err := Load(filepath.Join(t.TempDir(), "nope"), 10)
	if err != nil || h.Len() != 0 {
		t.Errorf("got %v, %v", h, err)
	}
}

func TestLoad_Unreadable(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir, 0); err == nil {
		t.Error("expected error reading a directory")
	}
}
