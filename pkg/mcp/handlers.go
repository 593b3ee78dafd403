package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ormasoftchile/qtrace/pkg/diagram"
	"github.com/ormasoftchile/qtrace/pkg/explorer"
	"github.com/ormasoftchile/qtrace/pkg/predicate"
	"github.com/ormasoftchile/qtrace/pkg/schema"
	"github.com/ormasoftchile/qtrace/pkg/source"
	"github.com/ormasoftchile/qtrace/pkg/trace"
)

// HandleValidate implements the qtrace/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	t, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d steps, %d operators)", path, t.Len(), t.Tree.Len())
	for _, e := range errs {
		msg += fmt.Sprintf("\n  warning: %s", e.Message)
	}
	return textResult(msg), nil
}

// HandleSchema implements the qtrace/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleTree implements the qtrace/tree MCP tool.
func HandleTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, res := openAt(req, req.GetInt("step", 1))
	if res != nil {
		return res, nil
	}
	snap := s.Snapshot()
	opts := diagram.Options{
		Variables: s.Trace().Vars.Names,
		Title:     snap.Query,
	}
	if snap.HasStep() {
		opts.Highlight = snap.Node.ID
		opts.Env = snap.Env.String()
	}
	out, err := diagram.Generate(snap.Tree, diagram.Format(req.GetString("format", "ascii")), opts)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(out), nil
}

// stepView is the JSON result of qtrace/env.
type stepView struct {
	Step  int            `json:"step"`
	Total int            `json:"total"`
	Node  string         `json:"node"`
	Label string         `json:"label"`
	Path  []string       `json:"path"`
	Env   map[string]any `json:"env"`
	Error string         `json:"error,omitempty"`
}

// HandleEnv implements the qtrace/env MCP tool.
func HandleEnv(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	step := req.GetInt("step", 0)
	if step < 1 {
		return errorResult("step argument must be a positive step number"), nil
	}
	s, res := openAt(req, step)
	if res != nil {
		return res, nil
	}
	snap := s.Snapshot()

	var labels []string
	for _, id := range snap.Tree.Path(snap.Node.ID) {
		n, _ := snap.Tree.Node(id)
		labels = append(labels, n.Label)
	}
	env := snap.Env.Map()
	if env == nil {
		env = map[string]any{}
	}
	data, err := json.MarshalIndent(stepView{
		Step:  snap.Step + 1,
		Total: snap.Total,
		Node:  snap.Node.ID,
		Label: snap.Node.Label,
		Path:  labels,
		Env:   env,
		Error: snap.StepErr,
	}, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleSearch implements the qtrace/search MCP tool.
func HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expr := strings.TrimSpace(req.GetString("expr", ""))
	if expr == "" {
		return errorResult("expr argument is required"), nil
	}
	if err := predicate.Check(expr); err != nil {
		return errorResult(err.Error()), nil
	}

	from := req.GetInt("from", 0)
	if from == 0 {
		s, res := openAt(req, 0)
		if res != nil {
			return res, nil
		}
		hits := explorer.Matches(s.Trace(), expr, predicate.NewExpr())
		if len(hits) == 0 {
			return textResult("no match"), nil
		}
		steps := make([]string, len(hits))
		for i, h := range hits {
			steps[i] = fmt.Sprint(h + 1)
		}
		return textResult(fmt.Sprintf("%d matching steps: %s", len(hits), strings.Join(steps, ", "))), nil
	}

	s, res := openAt(req, from)
	if res != nil {
		return res, nil
	}
	var (
		i  int
		ok bool
	)
	if req.GetBool("reverse", false) {
		i, ok, _ = s.SearchPrev(expr)
	} else {
		i, ok, _ = s.Search(expr)
	}
	if !ok {
		return textResult("no match"), nil
	}
	return textResult(fmt.Sprintf("step %d", i+1)), nil
}

// Recorder serves qtrace/record against a live trace source.
type Recorder struct {
	Source  source.Source
	Timeout time.Duration
}

// HandleRecord implements the qtrace/record MCP tool.
func (r *Recorder) HandleRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return errorResult("query argument is required"), nil
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	t, err := r.Source.Fetch(ctx, query)
	if err != nil {
		return errorResult(fmt.Sprintf("record: %s", err)), nil
	}

	failed := 0
	for _, st := range t.Steps {
		if st.Failed() {
			failed++
		}
	}
	msg := fmt.Sprintf("recorded %d steps over %d operators (%d failed)", t.Len(), t.Tree.Len(), failed)
	if out := req.GetString("output", ""); out != "" {
		if err := trace.Save(out, t, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return errorResult(err.Error()), nil
		}
		msg += "\nsaved to " + out
	}
	return textResult(msg), nil
}

// openAt loads the trace named by the path argument into a session
// positioned at the 1-based step. Zero leaves the cursor on the first step.
func openAt(req mcp.CallToolRequest, step int) (*explorer.Session, *mcp.CallToolResult) {
	path := req.GetString("path", "")
	if path == "" {
		return nil, errorResult("path argument is required")
	}
	t, err := trace.Load(path)
	if err != nil {
		return nil, errorResult(err.Error())
	}
	s := explorer.New(explorer.Options{})
	if err := s.Attach(t); err != nil {
		return nil, errorResult(err.Error())
	}
	if step > 0 && !s.Seek(step-1) {
		return nil, errorResult(fmt.Sprintf("step %d out of range (trace has %d steps)", step, t.Len()))
	}
	return s, nil
}

func formatErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, e.Error())
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
