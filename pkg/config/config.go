// Package config loads qtrace settings from .qtrace.yaml and QTRACE_*
// environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = ".qtrace.yaml"

// DefaultQuery is the query explored when none is given.
const DefaultQuery = "UNWIND range(1, 10) AS x UNWIND range(x, 10) AS y RETURN x, y"

// Config holds every setting. Zero values are filled by Defaults.
type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Graph    string `yaml:"graph"`

	FetchTimeout Duration `yaml:"fetch_timeout,omitempty"`

	HistoryFile string `yaml:"history_file,omitempty"`
	HistoryMax  int    `yaml:"history_max,omitempty"`

	LogFile  string `yaml:"log_file,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`

	DefaultQuery string `yaml:"default_query,omitempty"`
}

// Duration is a time.Duration written as "10s" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Defaults returns the built-in configuration.
func Defaults() Config {
	c := Config{}
	c.fill()
	return c
}

func (c *Config) fill() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.Graph == "" {
		c.Graph = "g"
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = Duration(10 * time.Second)
	}
	if c.HistoryMax == 0 {
		c.HistoryMax = 500
	}
	if c.HistoryFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.HistoryFile = filepath.Join(home, ".qtrace_history")
		}
	}
	if c.DefaultQuery == "" {
		c.DefaultQuery = DefaultQuery
	}
}

// Load reads path (or FileName in the working directory when path is
// empty), applies QTRACE_* overrides and fills defaults. A missing default
// file is not an error; a missing explicit path is.
func Load(path string) (Config, error) {
	var c Config
	explicit := path != ""
	if !explicit {
		path = FileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := c.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	c.fill()
	return c, c.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.DB < 0 {
		return fmt.Errorf("db must be >= 0, got %d", c.DB)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout must be >= 0")
	}
	if c.HistoryMax < 0 {
		return fmt.Errorf("history_max must be >= 0, got %d", c.HistoryMax)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"QTRACE_ADDR":          &c.Addr,
		"QTRACE_PASSWORD":      &c.Password,
		"QTRACE_GRAPH":         &c.Graph,
		"QTRACE_HISTORY_FILE":  &c.HistoryFile,
		"QTRACE_LOG_FILE":      &c.LogFile,
		"QTRACE_LOG_LEVEL":     &c.LogLevel,
		"QTRACE_DEFAULT_QUERY": &c.DefaultQuery,
	}
	for k, p := range str {
		if v, ok := lookup(k); ok && v != "" {
			*p = v
		}
	}
	ints := map[string]*int{
		"QTRACE_DB":          &c.DB,
		"QTRACE_HISTORY_MAX": &c.HistoryMax,
	}
	for k, p := range ints {
		if v, ok := lookup(k); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*p = n
		}
	}
	if v, ok := lookup("QTRACE_FETCH_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QTRACE_FETCH_TIMEOUT: %w", err)
		}
		c.FetchTimeout = Duration(d)
	}
	return nil
}
