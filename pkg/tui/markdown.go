package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# Trace explorer

Each step of the recorded execution highlights the operator that produced
it and shows the variables bound at that point.

## Stepping

| Key | Action |
|-----|--------|
| → / l | next step |
| ← / h | previous step |
| g / G | first / last step |
| r | back to the first step |
| PgUp / PgDn | scroll the plan |

## Search

Press **/** and type an expression over the step variables, for example
` + "`x == 3 && y > 5`" + `. **Enter** jumps to the next step that satisfies it,
**n** repeats forward and **N** backward. Steps where the expression fails
to evaluate are skipped.

## Queries

**tab** moves to the query line. **Enter** runs the query and replaces the
trace once it arrives; **↑** and **↓** browse earlier queries.
`

// renderMarkdownWidth renders markdown constrained to a specific column width.
// Falls back to the raw input if glamour is unavailable or rendering fails.
func renderMarkdownWidth(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	// Glamour adds trailing newlines; trim for inline use
	return strings.TrimRight(out, "\n")
}
