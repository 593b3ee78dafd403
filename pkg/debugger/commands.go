package debugger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ormasoftchile/qtrace/pkg/diagram"
	"github.com/ormasoftchile/qtrace/pkg/explorer"
	"github.com/ormasoftchile/qtrace/pkg/trace"
)

// printStep shows the current step on one line.
func (d *Debugger) printStep() {
	snap := d.session.Snapshot()
	switch {
	case !snap.HasTrace():
		fmt.Fprintf(d.output, "No trace loaded.\n")
		return
	case !snap.HasStep():
		fmt.Fprintf(d.output, "Trace has no steps.\n")
		return
	}
	fmt.Fprintf(d.output, "Step %d/%d  %s [%s]", snap.Step+1, snap.Total, snap.Node.Label, snap.Node.ID)
	if snap.StepErr != "" {
		fmt.Fprintf(d.output, "  ✗ %s\n", snap.StepErr)
		return
	}
	fmt.Fprintf(d.output, "  Env: (%s)\n", snap.Env)
}

// handleMove steps once, or the given count of times.
func (d *Debugger) handleMove(arg string, step func() bool) {
	n := 1
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			fmt.Fprintf(d.output, "Usage: next|prev [count]\n")
			return
		}
		n = v
	}
	moved := false
	for i := 0; i < n; i++ {
		if !step() {
			break
		}
		moved = true
	}
	if !moved && d.session.Trace() != nil && d.session.Position() >= 0 {
		fmt.Fprintf(d.output, "Already at the boundary.\n")
	}
	d.printStep()
}

// handleGoto jumps to a 1-based step number.
func (d *Debugger) handleGoto(arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		fmt.Fprintf(d.output, "Usage: goto <step>\n")
		return
	}
	if !d.session.Seek(n - 1) {
		fmt.Fprintf(d.output, "No step %d.\n", n)
		return
	}
	d.printStep()
}

// handleEnv lists the bindings of the current step, one per line.
func (d *Debugger) handleEnv() {
	snap := d.session.Snapshot()
	if !snap.HasStep() {
		d.printStep()
		return
	}
	if snap.StepErr != "" {
		fmt.Fprintf(d.output, "%s failed: %s\n", snap.Node.Label, snap.StepErr)
		return
	}
	if len(snap.Env) == 0 {
		fmt.Fprintf(d.output, "No variables bound.\n")
		return
	}
	for _, b := range snap.Env {
		fmt.Fprintf(d.output, "  %s = %s\n", b.Name, trace.FormatValue(b.Value))
	}
}

// handleTree draws the plan with the active operator marked.
func (d *Debugger) handleTree() {
	snap := d.session.Snapshot()
	if !snap.HasTrace() {
		fmt.Fprintf(d.output, "No trace loaded.\n")
		return
	}
	opts := diagram.Options{Variables: d.session.Trace().Vars.Names}
	if snap.HasStep() {
		opts.Highlight = snap.Node.ID
		opts.Env = snap.Env.String()
	}
	out, err := diagram.Generate(snap.Tree, diagram.FormatASCII, opts)
	if err != nil {
		fmt.Fprintf(d.output, "Error: %v\n", err)
		return
	}
	fmt.Fprint(d.output, out)
}

// handleSearch moves to the next (or previous) step satisfying expr. An
// empty expression repeats the last one.
func (d *Debugger) handleSearch(expr string, forward bool) {
	if expr == "" {
		expr = d.lastExpr
	}
	if expr == "" {
		fmt.Fprintf(d.output, "Usage: search <expr>\n")
		return
	}
	d.lastExpr = expr

	var (
		ok  bool
		err error
	)
	if forward {
		_, ok, err = d.session.Search(expr)
	} else {
		_, ok, err = d.session.SearchPrev(expr)
	}
	switch {
	case errors.Is(err, explorer.ErrNoTrace):
		fmt.Fprintf(d.output, "No trace loaded.\n")
	case err != nil:
		fmt.Fprintf(d.output, "Error: %v\n", err)
	case !ok:
		fmt.Fprintf(d.output, "No match for %q.\n", expr)
	default:
		d.printStep()
	}
}

// handleQuery fetches and installs the trace of a new query.
func (d *Debugger) handleQuery(ctx context.Context, text string) error {
	if text == "" {
		return errors.New("usage: query <text>")
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.session.Submit(ctx, text); err != nil {
		return err
	}
	if d.rl != nil {
		_ = d.rl.SaveHistory("query " + text)
	}
	d.banner()
	d.printStep()
	return nil
}

// handleHistory lists submitted queries, oldest first.
func (d *Debugger) handleHistory() {
	entries := d.session.History().Entries()
	if len(entries) == 0 {
		fmt.Fprintf(d.output, "No queries submitted yet.\n")
		return
	}
	for i, q := range entries {
		fmt.Fprintf(d.output, "  %d. %s\n", i+1, q)
	}
}

// stepDump is the JSON form of the current step.
type stepDump struct {
	Query string         `json:"query"`
	Step  int            `json:"step"`
	Total int            `json:"total"`
	Node  string         `json:"node"`
	Label string         `json:"label"`
	Env   map[string]any `json:"env,omitempty"`
	Error string         `json:"error,omitempty"`
}

// handleDump outputs the current step as JSON.
func (d *Debugger) handleDump() {
	snap := d.session.Snapshot()
	if !snap.HasStep() {
		d.printStep()
		return
	}
	data, err := json.MarshalIndent(stepDump{
		Query: snap.Query,
		Step:  snap.Step + 1,
		Total: snap.Total,
		Node:  snap.Node.ID,
		Label: snap.Node.Label,
		Env:   snap.Env.Map(),
		Error: snap.StepErr,
	}, "", "  ")
	if err != nil {
		fmt.Fprintf(d.output, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(d.output, string(data))
}

// handleHelp displays available commands.
func (d *Debugger) handleHelp() {
	fmt.Fprintln(d.output, "Available commands:")
	fmt.Fprintln(d.output, "  next (n) [k]       Step forward")
	fmt.Fprintln(d.output, "  prev (p) [k]       Step backward")
	fmt.Fprintln(d.output, "  first, last        Jump to the first or last step")
	fmt.Fprintln(d.output, "  goto (g) <step>    Jump to a step number")
	fmt.Fprintln(d.output, "  env (e)            Show the variables bound at this step")
	fmt.Fprintln(d.output, "  tree (t)           Show the plan with the active operator")
	fmt.Fprintln(d.output, "  search (/) <expr>  Next step where expr holds, e.g. /x == 3")
	fmt.Fprintln(d.output, "  rsearch (?) <expr> Previous step where expr holds")
	fmt.Fprintln(d.output, "  query <text>       Record and load a new query")
	fmt.Fprintln(d.output, "  history (h)        Show submitted queries")
	fmt.Fprintln(d.output, "  dump               Output the current step as JSON")
	fmt.Fprintln(d.output, "  help (?)           Show this help")
	fmt.Fprintln(d.output, "  quit (q)           Exit")
}
