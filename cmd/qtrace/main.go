package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ormasoftchile/qtrace/pkg/config"
	"github.com/ormasoftchile/qtrace/pkg/history"
	"github.com/ormasoftchile/qtrace/pkg/logging"
	"github.com/ormasoftchile/qtrace/pkg/source"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets
// any variables that aren't already set in the environment.
// Lines are KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file, that's fine
	}
	defer f.Close()
	applyDotEnv(f)
}

func applyDotEnv(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		// Remove surrounding quotes
		val = strings.Trim(val, `"'`)
		// Don't overwrite existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:           "qtrace",
	Short:         "Query execution trace explorer",
	Long:          "qtrace records a query's execution with GRAPH.RECORD and lets you step through it operator by operator, watching variables bind.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Global flags; they override the config file and QTRACE_* variables.
var (
	flagConfig   string
	flagAddr     string
	flagPassword string
	flagDB       int
	flagGraph    string
	flagTimeout  time.Duration
	flagLogLevel string
	flagLogFile  string
)

// loadConfig resolves the effective configuration for cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = flagAddr
	}
	if flags.Changed("password") {
		cfg.Password = flagPassword
	}
	if flags.Changed("db") {
		cfg.DB = flagDB
	}
	if flags.Changed("graph") {
		cfg.Graph = flagGraph
	}
	if flags.Changed("timeout") {
		cfg.FetchTimeout = config.Duration(flagTimeout)
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = flagLogFile
	}
	return cfg, cfg.Validate()
}

// newLogger builds the process logger. Interactive commands own the
// terminal, so they log only to the configured file.
func newLogger(cfg config.Config, interactive bool) (*slog.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if cfg.LogFile != "" || interactive {
		return logging.OpenFile(cfg.LogFile, level)
	}
	return logging.New(os.Stderr, level), io.NopCloser(nil), nil
}

// newEngineSource connects to the FalkorDB server from cfg.
func newEngineSource(cfg config.Config, logger *slog.Logger) *source.FalkorDB {
	return source.NewFalkorDB(source.FalkorDBOptions{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Graph:    cfg.Graph,
		Timeout:  cfg.FetchTimeout.Std(),
		Logger:   logger,
	})
}

// loadHistory reads the persisted query history; failures start empty.
func loadHistory(cfg config.Config, logger *slog.Logger) *history.History {
	h, err := history.Load(cfg.HistoryFile, cfg.HistoryMax)
	if err != nil {
		logger.Warn("history not loaded", "path", cfg.HistoryFile, "error", err)
		return history.New()
	}
	return h
}

func saveHistory(cfg config.Config, h *history.History, logger *slog.Logger) {
	if err := h.Save(cfg.HistoryFile, cfg.HistoryMax); err != nil {
		logger.Warn("history not saved", "path", cfg.HistoryFile, "error", err)
	}
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the qtrace version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "qtrace %s (commit: %s)\n", version, commit)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default ./"+config.FileName+")")
	pf.StringVar(&flagAddr, "addr", "", "FalkorDB address host:port")
	pf.StringVar(&flagPassword, "password", "", "FalkorDB password")
	pf.IntVar(&flagDB, "db", 0, "Redis logical database")
	pf.StringVar(&flagGraph, "graph", "", "Graph key to run queries against")
	pf.DurationVar(&flagTimeout, "timeout", 0, "Per-query fetch timeout (e.g. 10s)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagLogFile, "log-file", "", "Write logs to this file (JSON)")

	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
