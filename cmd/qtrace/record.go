package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ormasoftchile/qtrace/pkg/trace"
	"github.com/spf13/cobra"
)

var recordOut string

var recordCmd = &cobra.Command{
	Use:   "record [query]",
	Short: "Run a query with execution recording and save the trace",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecord,
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, logCloser, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	db := newEngineSource(cfg, logger)
	defer db.Close()

	ctx := cmd.Context()
	if d := cfg.FetchTimeout.Std(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	t, err := db.Fetch(ctx, args[0])
	if err != nil {
		return err
	}
	if err := trace.Save(recordOut, t, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ recorded %s\n", summarize(t))
	fmt.Fprintf(cmd.OutOrStdout(), "  saved to %s\n", recordOut)
	return nil
}

// summarize describes a trace in one line.
func summarize(t *trace.Trace) string {
	failed := 0
	for _, s := range t.Steps {
		if s.Failed() {
			failed++
		}
	}
	s := fmt.Sprintf("%d steps over %d operators", t.Len(), t.Tree.Len())
	if failed > 0 {
		s += fmt.Sprintf(", %d failed", failed)
	}
	return s
}

func init() {
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "", "Trace file to write (.yaml or .json)")
	recordCmd.MarkFlagRequired("out")
}
