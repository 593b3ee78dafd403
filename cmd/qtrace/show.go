package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/ormasoftchile/qtrace/pkg/diagram"
	"github.com/ormasoftchile/qtrace/pkg/explorer"
	"github.com/ormasoftchile/qtrace/pkg/predicate"
	"github.com/ormasoftchile/qtrace/pkg/trace"
	"github.com/spf13/cobra"
)

var (
	showStep   int
	showFormat string
	showRender bool
	searchFrom int
	searchBack bool
	errNoMatch = errors.New("no match")
)

var showCmd = &cobra.Command{
	Use:   "show [trace-file]",
	Short: "Print the plan of a recorded trace, optionally at a step",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var searchCmd = &cobra.Command{
	Use:   "search [trace-file] [expr]",
	Short: "Print the steps of a recorded trace where an expression holds",
	Long: `Evaluate a boolean expression over the variables of each step.

Without --from every matching step number is printed. With --from the
first match after (or, with --reverse, before) that step is printed.
Exits non-zero when nothing matches.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

// openTrace loads a trace file into a session positioned at the 1-based
// step; zero keeps the first step.
func openTrace(path string, step int) (*explorer.Session, error) {
	t, err := trace.Load(path)
	if err != nil {
		return nil, err
	}
	s := explorer.New(explorer.Options{})
	if err := s.Attach(t); err != nil {
		return nil, err
	}
	if step != 0 && !s.Seek(step-1) {
		return nil, fmt.Errorf("step %d out of range (trace has %d steps)", step, t.Len())
	}
	return s, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := openTrace(args[0], showStep)
	if err != nil {
		return err
	}
	snap := s.Snapshot()
	opts := diagram.Options{
		Variables: s.Trace().Vars.Names,
		Title:     snap.Query,
	}
	if showStep != 0 {
		opts.Highlight = snap.Node.ID
		opts.Env = snap.Env.String()
	}
	out, err := diagram.Generate(snap.Tree, diagram.Format(showFormat), opts)
	if err != nil {
		return err
	}

	if showRender && diagram.Format(showFormat) == diagram.FormatMarkdown {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
		if err != nil {
			return err
		}
		if out, err = r.Render(out); err != nil {
			return err
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), out)

	if showStep != 0 && diagram.Format(showFormat) == diagram.FormatASCII {
		fmt.Fprintf(cmd.OutOrStdout(), "\nStep: %d/%d\n", snap.Step+1, snap.Total)
		if snap.StepErr != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", snap.StepErr)
		}
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	expr := strings.TrimSpace(args[1])
	if err := predicate.Check(expr); err != nil {
		return err
	}
	s, err := openTrace(args[0], searchFrom)
	if err != nil {
		return err
	}

	if searchFrom == 0 {
		hits := explorer.Matches(s.Trace(), expr, predicate.NewExpr())
		if len(hits) == 0 {
			return errNoMatch
		}
		for _, h := range hits {
			fmt.Fprintln(cmd.OutOrStdout(), h+1)
		}
		return nil
	}

	var (
		i  int
		ok bool
	)
	if searchBack {
		i, ok, err = s.SearchPrev(expr)
	} else {
		i, ok, err = s.Search(expr)
	}
	if err != nil {
		return err
	}
	if !ok {
		return errNoMatch
	}
	fmt.Fprintln(cmd.OutOrStdout(), i+1)
	return nil
}

func init() {
	showCmd.Flags().IntVar(&showStep, "step", 0, "Highlight the operator of this 1-based step and show its variables")
	showCmd.Flags().StringVar(&showFormat, "format", "ascii", "Output format: ascii, mermaid, or markdown")
	showCmd.Flags().BoolVar(&showRender, "render", false, "Render markdown output for the terminal")

	searchCmd.Flags().IntVar(&searchFrom, "from", 0, "1-based step to search from")
	searchCmd.Flags().BoolVarP(&searchBack, "reverse", "r", false, "Search backwards from --from")
}
