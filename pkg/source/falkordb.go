package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ormasoftchile/qtrace/pkg/logging"
	"github.com/ormasoftchile/qtrace/pkg/trace"
	"github.com/redis/go-redis/v9"
)

// RecordCommand is the engine command that executes a query and replies
// with its execution record.
const RecordCommand = "GRAPH.RECORD"

// Doer is the part of a Redis client the FalkorDB source needs.
type Doer interface {
	Do(ctx context.Context, args ...any) *redis.Cmd
}

// FalkorDBOptions configures a FalkorDB source.
type FalkorDBOptions struct {
	Addr     string
	Password string
	DB       int
	Graph    string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// FalkorDB records queries against a FalkorDB server.
type FalkorDB struct {
	client  Doer
	closer  func() error
	graph   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFalkorDB connects lazily to the server described by opts.
func NewFalkorDB(opts FalkorDBOptions) *FalkorDB {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		Protocol: 2,
	})
	f := NewFalkorDBWithClient(client, opts.Graph, opts.Logger)
	f.closer = client.Close
	f.timeout = opts.Timeout
	f.logger = f.logger.With("addr", opts.Addr)
	return f
}

// NewFalkorDBWithClient wraps an existing client.
func NewFalkorDBWithClient(client Doer, graph string, logger *slog.Logger) *FalkorDB {
	return &FalkorDB{
		client: client,
		graph:  graph,
		logger: logging.Default(logger).With("component", "falkordb", "graph", graph),
	}
}

// Fetch runs GRAPH.RECORD for query and decodes the reply.
func (f *FalkorDB) Fetch(ctx context.Context, query string) (*trace.Trace, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	id := uuid.NewString()
	start := time.Now()
	reply, err := f.client.Do(ctx, RecordCommand, f.graph, query).Result()
	if err != nil {
		var rerr redis.Error
		if errors.As(err, &rerr) {
			f.logger.Info("query rejected", "fetch", id, "error", err)
			return nil, fmt.Errorf("%w: %s", ErrEngineUnavailable, rerr.Error())
		}
		f.logger.Warn("record failed", "fetch", id, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	t, err := trace.Decode(query, reply)
	if err != nil {
		f.logger.Warn("malformed record reply", "fetch", id, "error", err)
		return nil, err
	}
	t.ID = id
	f.logger.Info("trace recorded", "fetch", id, "steps", t.Len(), "nodes", t.Tree.Len(),
		"elapsed", time.Since(start))
	return t, nil
}

// Close releases the underlying connection pool, if this source owns one.
func (f *FalkorDB) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer()
}
