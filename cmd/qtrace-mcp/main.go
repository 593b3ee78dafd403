// Package main provides the qtrace-mcp binary, an MCP server over stdio
// for recorded query traces.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ormasoftchile/qtrace/pkg/config"
	"github.com/ormasoftchile/qtrace/pkg/logging"
	qmcp "github.com/ormasoftchile/qtrace/pkg/mcp"
	"github.com/ormasoftchile/qtrace/pkg/source"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Config file (default ./"+config.FileName+")")
	offline := flag.Bool("offline", false, "Serve trace files only; do not register qtrace/record")
	flag.Parse()

	if err := run(*configPath, *offline); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, offline bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs go to the configured file only.
	logger, logCloser, err := logging.OpenFile(cfg.LogFile, level)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	var src source.Source
	if !offline {
		db := source.NewFalkorDB(source.FalkorDBOptions{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			Graph:    cfg.Graph,
			Timeout:  cfg.FetchTimeout.Std(),
			Logger:   logger,
		})
		defer db.Close()
		src = db
	}

	s := qmcp.NewServer(version, src, cfg.FetchTimeout.Std())
	logger.Info("serving MCP over stdio", "version", version, "offline", offline)
	return server.ServeStdio(s)
}
