package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/ormasoftchile/qtrace/pkg/config"
	"github.com/ormasoftchile/qtrace/pkg/debugger"
	"github.com/ormasoftchile/qtrace/pkg/explorer"
	"github.com/ormasoftchile/qtrace/pkg/source"
	"github.com/ormasoftchile/qtrace/pkg/trace"
	"github.com/ormasoftchile/qtrace/pkg/tui"
	"github.com/spf13/cobra"
)

var (
	exploreFile  string
	exploreWatch bool
	replFile     string
)

var exploreCmd = &cobra.Command{
	Use:   "explore [query]",
	Short: "Explore a query execution in the terminal UI",
	Long: `Run a query with execution recording and step through the trace.

With --file the recorded trace file is explored instead of a live server
and no query may be given; --watch reloads it whenever it changes on disk.`,
	Args: queryArgs(&exploreFile),
	RunE: runExplore,
}

var replCmd = &cobra.Command{
	Use:   "repl [query]",
	Short: "Explore a query execution from a line-oriented prompt",
	Args:  queryArgs(&replFile),
	RunE:  runRepl,
}

// workspace bundles what an interactive command needs.
type workspace struct {
	cfg     config.Config
	logger  *slog.Logger
	session *explorer.Session
	closers []io.Closer
}

func (w *workspace) Close() {
	saveHistory(w.cfg, w.session.History(), w.logger)
	for i := len(w.closers) - 1; i >= 0; i-- {
		w.closers[i].Close()
	}
}

// openWorkspace wires config, logging, history and the trace source. A
// non-empty file replaces the live server with that recorded trace, which
// is attached immediately.
func openWorkspace(cmd *cobra.Command, file string) (*workspace, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := newLogger(cfg, true)
	if err != nil {
		return nil, err
	}
	w := &workspace{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	var src source.Source
	if file != "" {
		src = source.NewFile(file)
	} else {
		db := newEngineSource(cfg, logger)
		w.closers = append(w.closers, db)
		src = db
	}

	w.session = explorer.New(explorer.Options{
		Source:  src,
		History: loadHistory(cfg, logger),
		Logger:  logger,
	})

	if file != "" {
		t, err := trace.Load(file)
		if err == nil {
			err = w.session.Attach(t)
		}
		if err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}

// queryArgs accepts an optional query, or none when *file is set: a
// recorded trace already carries its query.
func queryArgs(file *string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if *file != "" {
			if len(args) > 0 {
				return fmt.Errorf("--file explores a recorded trace; drop the query argument %q", args[0])
			}
			return nil
		}
		return cobra.MaximumNArgs(1)(cmd, args)
	}
}

func initialQuery(cfg config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.DefaultQuery
}

func runExplore(cmd *cobra.Command, args []string) error {
	if exploreWatch && exploreFile == "" {
		return fmt.Errorf("--watch requires --file")
	}
	w, err := openWorkspace(cmd, exploreFile)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	tcfg := tui.Config{
		Session:      w.session,
		FetchTimeout: w.cfg.FetchTimeout.Std(),
		Logger:       w.logger,
	}
	if exploreFile == "" {
		tcfg.Query = initialQuery(w.cfg, args)
	}
	if exploreWatch {
		ch, err := source.Watch(ctx, exploreFile, w.logger)
		if err != nil {
			return err
		}
		tcfg.Watch = ch
	}
	return tui.Run(tcfg)
}

func runRepl(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace(cmd, replFile)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	d := debugger.New(w.session, debugger.Options{
		FetchTimeout: w.cfg.FetchTimeout.Std(),
		Output:       cmd.OutOrStdout(),
	})
	if replFile == "" {
		if d.Exec(ctx, "query "+initialQuery(w.cfg, args)) {
			return nil
		}
	}
	return d.Run(ctx)
}

func init() {
	exploreCmd.Flags().StringVar(&exploreFile, "file", "", "Explore a recorded trace file instead of a live server")
	exploreCmd.Flags().BoolVar(&exploreWatch, "watch", false, "Reload the trace file when it changes (requires --file)")
	replCmd.Flags().StringVar(&replFile, "file", "", "Explore a recorded trace file instead of a live server")
}
