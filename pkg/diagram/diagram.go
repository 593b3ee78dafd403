// Package diagram renders plan trees. Supports an indented ASCII tree,
// Mermaid flowcharts and a Markdown report.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/ormasoftchile/qtrace/pkg/plan"
)

// Format represents the output diagram format.
type Format string

const (
	FormatASCII    Format = "ascii"
	FormatMermaid  Format = "mermaid"
	FormatMarkdown Format = "markdown"
)

// Options controls what is drawn next to the nodes.
type Options struct {
	// Highlight is the id of the active node.
	Highlight string
	// Env is appended to the highlighted node, as "| Env: (...)".
	Env string
	// Variables returns the variable names of a node for the right-hand
	// column. Nil hides the column.
	Variables func(id string) []string
	// Title heads the Markdown report.
	Title string
}

// Generate produces a diagram of tree.
func Generate(tree *plan.Tree, format Format, opts Options) (string, error) {
	if tree == nil {
		return "", fmt.Errorf("nil plan tree")
	}
	switch format {
	case FormatASCII, "":
		return generateASCII(tree, opts), nil
	case FormatMermaid:
		return generateMermaid(tree, opts), nil
	case FormatMarkdown:
		return generateMarkdown(tree, opts), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- ASCII ---

// Marker prefixes the highlighted node in ASCII output.
const Marker = "▸ "

type asciiLine struct {
	prefix string
	label  string
	vars   string
	id     string
}

// Lines returns the ASCII rendering split per node, in pre-order, with the
// index of the highlighted node (-1 when absent). Used by viewers that
// style lines individually.
func Lines(tree *plan.Tree, opts Options) ([]string, int) {
	lines := asciiLines(tree, opts)
	width := 0
	for _, l := range lines {
		if w := runewidth.StringWidth(l.prefix + l.label); w > width {
			width = w
		}
	}

	out := make([]string, len(lines))
	hl := -1
	for i, l := range lines {
		s := l.prefix + l.label
		if l.vars != "" {
			s += strings.Repeat(" ", width-runewidth.StringWidth(s)) + "  " + l.vars
		}
		if l.id == opts.Highlight && opts.Highlight != "" {
			hl = i
			if opts.Env != "" {
				s += " | Env: (" + opts.Env + ")"
			}
		}
		out[i] = s
	}
	return out, hl
}

func generateASCII(tree *plan.Tree, opts Options) string {
	lines, _ := Lines(tree, opts)
	return strings.Join(lines, "\n") + "\n"
}

func asciiLines(tree *plan.Tree, opts Options) []asciiLine {
	var out []asciiLine
	var walk func(id, indent string, last, root bool)
	walk = func(id, indent string, last, root bool) {
		n, _ := tree.Node(id)
		mark := "  "
		if id == opts.Highlight {
			mark = Marker
		}

		prefix := mark
		childIndent := ""
		if !root {
			branch := "├── "
			childIndent = indent + "│   "
			if last {
				branch = "└── "
				childIndent = indent + "    "
			}
			prefix = mark + indent + branch
		}

		var vars string
		if opts.Variables != nil {
			if names := opts.Variables(id); len(names) > 0 {
				vars = "[" + strings.Join(names, ", ") + "]"
			}
		}
		out = append(out, asciiLine{prefix: prefix, label: n.Label, vars: vars, id: id})

		kids := tree.Children(id)
		for i, k := range kids {
			walk(k, childIndent, i == len(kids)-1, false)
		}
	}
	walk(tree.Root(), "", true, true)
	return out
}

// --- Mermaid flowchart ---

func generateMermaid(tree *plan.Tree, opts Options) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	tree.Walk(func(n plan.Node, depth int) bool {
		label := n.Label
		if opts.Variables != nil {
			if names := opts.Variables(n.ID); len(names) > 0 {
				label += "<br/>" + strings.Join(names, ", ")
			}
		}
		if n.ID == opts.Highlight && opts.Env != "" {
			label += "<br/>" + opts.Env
		}
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", safeID(n.ID), escMermaid(label)))
		return true
	})
	tree.Walk(func(n plan.Node, depth int) bool {
		for _, k := range tree.Children(n.ID) {
			b.WriteString(fmt.Sprintf("    %s --> %s\n", safeID(n.ID), safeID(k)))
		}
		return true
	})
	if opts.Highlight != "" && tree.Has(opts.Highlight) {
		b.WriteString(fmt.Sprintf("    style %s fill:#a60,stroke:#fc0,color:#fff\n", safeID(opts.Highlight)))
	}
	return b.String()
}

// --- Markdown ---

func generateMarkdown(tree *plan.Tree, opts Options) string {
	var b strings.Builder
	if opts.Title != "" {
		b.WriteString("# " + opts.Title + "\n\n")
	}
	b.WriteString("```\n")
	b.WriteString(generateASCII(tree, Options{Highlight: opts.Highlight, Variables: opts.Variables}))
	b.WriteString("```\n")
	if n, ok := tree.Node(opts.Highlight); ok {
		b.WriteString("\n**Active operator:** " + n.Label + "\n")
		if opts.Env != "" {
			b.WriteString("\n**Environment:** `" + opts.Env + "`\n")
		}
	}
	return b.String()
}

// --- string helpers ---

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_", ":", "_")
	return "n" + r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

// Truncate shortens s to at most max display columns, marking the cut.
func Truncate(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "...")
}
