// Package debugger implements the line-oriented trace explorer REPL.
package debugger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/ormasoftchile/qtrace/pkg/explorer"
)

// Debugger provides an interactive REPL for stepping through a recorded
// query execution.
type Debugger struct {
	session  *explorer.Session
	timeout  time.Duration
	output   io.Writer
	rl       *readline.Instance
	lastExpr string
}

// Options configures a Debugger.
type Options struct {
	// FetchTimeout bounds the 'query' command; zero means no deadline.
	FetchTimeout time.Duration
	// Output receives command output; defaults to stdout.
	Output io.Writer
}

// New creates a debugger over s.
func New(s *explorer.Session, opts Options) *Debugger {
	d := &Debugger{
		session: s,
		timeout: opts.FetchTimeout,
		output:  opts.Output,
	}
	if d.output == nil {
		d.output = os.Stdout
	}
	return d
}

var commands = []string{"next", "prev", "first", "last", "goto", "env", "tree",
	"search", "rsearch", "query", "history", "dump", "help", "quit"}

// Run starts the interactive REPL loop.
func (d *Debugger) Run(ctx context.Context) error {
	var completer = readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children,
			readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          d.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          d.output,
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	d.rl = rl
	defer rl.Close()

	// Earlier queries are reachable with the arrow keys.
	for _, q := range d.session.History().Entries() {
		_ = rl.SaveHistory("query " + q)
	}

	d.banner()
	fmt.Fprintf(d.output, "Type 'help' for available commands, 'next' to step.\n\n")

	for {
		rl.SetPrompt(d.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}
		if d.Exec(ctx, line) {
			return nil
		}
	}
}

// Exec runs one command line and reports whether the REPL should exit.
func (d *Debugger) Exec(ctx context.Context, line string) (quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	// Vi-style search shorthands.
	switch line[0] {
	case '/':
		d.handleSearch(strings.TrimSpace(line[1:]), true)
		return false
	case '?':
		if len(line) > 1 {
			d.handleSearch(strings.TrimSpace(line[1:]), false)
			return false
		}
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "next", "n":
		d.handleMove(rest, d.session.StepForward)
	case "prev", "p":
		d.handleMove(rest, d.session.StepBackward)
	case "first", "reset":
		d.session.First()
		d.printStep()
	case "last":
		d.session.Last()
		d.printStep()
	case "goto", "g":
		d.handleGoto(rest)
	case "env", "e":
		d.handleEnv()
	case "tree", "t":
		d.handleTree()
	case "search", "s":
		d.handleSearch(rest, true)
	case "rsearch", "r":
		d.handleSearch(rest, false)
	case "query":
		if err := d.handleQuery(ctx, rest); err != nil {
			fmt.Fprintf(d.output, "Error: %v\n", err)
		}
	case "history", "h":
		d.handleHistory()
	case "dump":
		d.handleDump()
	case "help", "?":
		d.handleHelp()
	case "quit", "q", "exit":
		fmt.Fprintf(d.output, "Exiting.\n")
		return true
	default:
		fmt.Fprintf(d.output, "Unknown command: %q. Type 'help' for available commands.\n", cmd)
	}
	return false
}

func (d *Debugger) banner() {
	snap := d.session.Snapshot()
	if !snap.HasTrace() {
		fmt.Fprintf(d.output, "qtrace: no trace loaded, use 'query <text>'\n")
		return
	}
	fmt.Fprintf(d.output, "qtrace: %d steps over %d operators\n  %s\n", snap.Total, snap.Tree.Len(), snap.Query)
}

// buildPrompt creates the prompt string: qtrace[step N/total | operator]>
func (d *Debugger) buildPrompt() string {
	snap := d.session.Snapshot()
	switch {
	case !snap.HasTrace():
		return "qtrace[no trace]> "
	case !snap.HasStep():
		return "qtrace[0/0]> "
	}
	return fmt.Sprintf("qtrace[%d/%d | %s]> ", snap.Step+1, snap.Total, snap.Node.Label)
}
