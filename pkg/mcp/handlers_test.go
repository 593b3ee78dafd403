package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ormasoftchile/qtrace/pkg/plan"
	"github.com/ormasoftchile/qtrace/pkg/source"
	"github.com/ormasoftchile/qtrace/pkg/trace"
)

const traceYAML = `apiVersion: qtrace/v0
query: UNWIND range(1, 2) AS x UNWIND range(x, 2) AS y RETURN x, y
nodes:
  - id: "0"
    label: Results
    variables: [x, y]
  - id: "1"
    parent: "0"
    label: Unwind
    variables: [x, y]
  - id: "2"
    parent: "1"
    label: Unwind
    variables: [x]
steps:
  - node: "2"
    values: [1]
  - node: "1"
    values: [1, 1]
  - node: "0"
    values: [1, 1]
  - node: "1"
    values: [1, 2]
  - node: "0"
    values: [1, 2]
`

func writeTrace(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.yaml")
	if err := os.WriteFile(path, []byte(traceYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := h(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Content) == 0 {
		t.Fatal("empty result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", result.Content[0])
	}
	return text.Text, result.IsError
}

func TestHandleValidate_MissingPath(t *testing.T) {
	if _, isErr := call(t, HandleValidate, map[string]any{}); !isErr {
		t.Error("expected error for missing path")
	}
}

func TestHandleValidate(t *testing.T) {
	path := writeTrace(t)
	text, isErr := call(t, HandleValidate, map[string]any{"path": path})
	if isErr || !strings.Contains(text, "5 steps, 3 operators") {
		t.Errorf("validate = %q (error=%v)", text, isErr)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte(strings.Replace(traceYAML, `- node: "0"`, `- node: "9"`, 1)), 0o644); err != nil {
		t.Fatal(err)
	}
	text, isErr = call(t, HandleValidate, map[string]any{"path": bad})
	if !isErr || !strings.Contains(text, "[domain]") {
		t.Errorf("validate bad = %q (error=%v)", text, isErr)
	}
}

func TestHandleSchema(t *testing.T) {
	text, isErr := call(t, HandleSchema, map[string]any{})
	if isErr {
		t.Fatal(text)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		t.Errorf("schema is not JSON: %v", err)
	}
}

func TestHandleTree(t *testing.T) {
	path := writeTrace(t)
	text, isErr := call(t, HandleTree, map[string]any{"path": path, "step": float64(4)})
	if isErr {
		t.Fatal(text)
	}
	if !strings.Contains(text, "| Env: (x: 1, y: 2)") {
		t.Errorf("tree at step 4:\n%s", text)
	}

	text, isErr = call(t, HandleTree, map[string]any{"path": path, "format": "mermaid"})
	if isErr || !strings.HasPrefix(text, "flowchart TD") {
		t.Errorf("mermaid tree = %q", text)
	}

	if _, isErr := call(t, HandleTree, map[string]any{"path": path, "step": float64(99)}); !isErr {
		t.Error("expected error for out-of-range step")
	}
}

func TestHandleEnv(t *testing.T) {
	path := writeTrace(t)
	text, isErr := call(t, HandleEnv, map[string]any{"path": path, "step": float64(1)})
	if isErr {
		t.Fatal(text)
	}
	var got stepView
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatal(err)
	}
	if got.Label != "Unwind" || got.Node != "2" || len(got.Env) != 1 || got.Env["x"] != float64(1) {
		t.Errorf("env = %+v", got)
	}
	if strings.Join(got.Path, "/") != "Results/Unwind/Unwind" {
		t.Errorf("path = %v", got.Path)
	}
	if _, ok := got.Env["y"]; ok {
		t.Error("unbound y reported")
	}

	if _, isErr := call(t, HandleEnv, map[string]any{"path": path}); !isErr {
		t.Error("expected error without step")
	}
}

func TestHandleSearch(t *testing.T) {
	path := writeTrace(t)
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"all", map[string]any{"expr": "y == 2"}, "2 matching steps: 4, 5"},
		{"forward", map[string]any{"expr": "y == 2", "from": float64(1)}, "step 4"},
		{"forward from match", map[string]any{"expr": "y == 2", "from": float64(4)}, "step 5"},
		{"reverse", map[string]any{"expr": "y == 1", "from": float64(4), "reverse": true}, "step 3"},
		{"none", map[string]any{"expr": "x > 5"}, "no match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["path"] = path
			text, isErr := call(t, HandleSearch, tt.args)
			if isErr || text != tt.want {
				t.Errorf("search = %q (error=%v), want %q", text, isErr, tt.want)
			}
		})
	}

	if _, isErr := call(t, HandleSearch, map[string]any{"path": path, "expr": "x +"}); !isErr {
		t.Error("expected error for unparsable expression")
	}
}

func TestHandleRecord(t *testing.T) {
	var got string
	r := &Recorder{Source: source.Func(func(ctx context.Context, q string) (*trace.Trace, error) {
		got = q
		return trace.FromNodes(q, []plan.NodeSpec{{ID: "0", Label: "Results"}}, []trace.Step{
			{NodeID: "0"},
			{NodeID: "0", Err: "boom"},
		})
	})}
	out := filepath.Join(t.TempDir(), "rec", "t.json")
	text, isErr := call(t, r.HandleRecord, map[string]any{"query": "RETURN 1", "output": out})
	if isErr {
		t.Fatal(text)
	}
	if got != "RETURN 1" || !strings.Contains(text, "recorded 2 steps over 1 operators (1 failed)") {
		t.Errorf("record = %q", text)
	}
	if _, err := trace.Load(out); err != nil {
		t.Errorf("saved trace: %v", err)
	}

	if _, isErr := call(t, r.HandleRecord, map[string]any{}); !isErr {
		t.Error("expected error without query")
	}
}
