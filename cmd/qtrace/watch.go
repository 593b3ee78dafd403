package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/ormasoftchile/qtrace/pkg/source"
	"github.com/ormasoftchile/qtrace/pkg/trace"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [trace-file]",
	Short: "Print a summary of a trace file each time it changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, logCloser, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	changes, err := source.Watch(ctx, path, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printWatchLine(out, path)
	for range changes {
		printWatchLine(out, path)
	}
	return nil
}

// printWatchLine reloads path and prints one status line.
func printWatchLine(w io.Writer, path string) {
	ts := time.Now().Format("15:04:05")
	t, err := trace.Load(path)
	if err != nil {
		fmt.Fprintf(w, "%s  ! %v\n", ts, err)
		return
	}
	fmt.Fprintf(w, "%s  ✓ %s  %s\n", ts, summarize(t), t.Query)
}
