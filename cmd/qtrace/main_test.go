package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ormasoftchile/qtrace/pkg/plan"
	"github.com/ormasoftchile/qtrace/pkg/trace"
)

func writeSampleTrace(t *testing.T, name string) string {
	t.Helper()
	tr, err := trace.FromNodes("UNWIND range(1, 3) AS x RETURN x", []plan.NodeSpec{
		{ID: "0", Label: "Results", Variables: []string{"x"}},
		{ID: "1", ParentID: "0", Label: "Unwind", Variables: []string{"x"}},
	}, []trace.Step{
		{NodeID: "1", Values: []trace.Value{int64(1)}},
		{NodeID: "0", Values: []trace.Value{int64(1)}},
		{NodeID: "1", Values: []trace.Value{int64(2)}},
		{NodeID: "0", Values: []trace.Value{int64(2)}},
		{NodeID: "1", Err: "boom"},
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := trace.Save(path, tr, ""); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		showStep, showFormat, showRender = 0, "ascii", false
		searchFrom, searchBack = 0, false
		schemaOut = ""
		exploreFile, exploreWatch, replFile = "", false, ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestApplyDotEnv(t *testing.T) {
	t.Setenv("QTRACE_TEST_KEEP", "original")
	os.Unsetenv("QTRACE_TEST_NEW")
	t.Cleanup(func() { os.Unsetenv("QTRACE_TEST_NEW") })

	applyDotEnv(strings.NewReader(`
# comment
QTRACE_TEST_NEW="from file"
QTRACE_TEST_KEEP=overridden
not a pair
`))
	if got := os.Getenv("QTRACE_TEST_NEW"); got != "from file" {
		t.Errorf("QTRACE_TEST_NEW = %q", got)
	}
	if got := os.Getenv("QTRACE_TEST_KEEP"); got != "original" {
		t.Errorf("existing variable overwritten: %q", got)
	}
}

func TestShowCmd(t *testing.T) {
	path := writeSampleTrace(t, "t.yaml")

	out, err := execute(t, "show", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Results") || !strings.Contains(out, "└── Unwind") {
		t.Errorf("show output:\n%s", out)
	}
	if strings.Contains(out, "Env:") {
		t.Errorf("show without --step highlighted a node:\n%s", out)
	}

	out, err = execute(t, "show", path, "--step", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "| Env: (x: 2)") || !strings.Contains(out, "Step: 3/5") {
		t.Errorf("show --step 3 output:\n%s", out)
	}

	if _, err := execute(t, "show", path, "--step", "9"); err == nil {
		t.Error("expected error for out-of-range step")
	}
}

func TestSearchCmd(t *testing.T) {
	path := writeSampleTrace(t, "t.json")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"search", path, "x == 2"}, "3\n4\n"},
		{[]string{"search", path, "x == 2", "--from", "3"}, "4\n"},
		{[]string{"search", path, "x == 1", "--from", "4", "--reverse"}, "2\n"},
	}
	for _, tt := range tests {
		out, err := execute(t, tt.args...)
		if err != nil {
			t.Errorf("%v: %v", tt.args, err)
			continue
		}
		if out != tt.want {
			t.Errorf("%v = %q, want %q", tt.args, out, tt.want)
		}
	}

	if _, err := execute(t, "search", path, "x == 9"); err != errNoMatch {
		t.Errorf("no match err = %v", err)
	}
	if _, err := execute(t, "search", path, "x =="); err == nil {
		t.Error("expected error for broken expression")
	}
}

func TestInteractiveCmds_RejectQueryWithFile(t *testing.T) {
	for _, name := range []string{"explore", "repl"} {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, name, "--file", "trace.yaml", "RETURN 1")
			if err == nil || !strings.Contains(err.Error(), "drop the query argument") {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestValidateCmd(t *testing.T) {
	path := writeSampleTrace(t, "t.yaml")
	out, err := execute(t, "validate", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "5 steps over 2 operators, 1 failed") {
		t.Errorf("validate output = %q", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("apiVersion: qtrace/v0\nnodes: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "validate", bad); err == nil {
		t.Error("expected validation failure")
	}
}

func TestSchemaCmd(t *testing.T) {
	out, err := execute(t, "schema")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"$id"`) {
		t.Errorf("schema output = %q", out)
	}

	file := filepath.Join(t.TempDir(), "trace.schema.json")
	if _, err := execute(t, "schema", "-o", file); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(file); err != nil {
		t.Error(err)
	}
}

func TestPrintWatchLine(t *testing.T) {
	path := writeSampleTrace(t, "t.yaml")
	var buf bytes.Buffer
	printWatchLine(&buf, path)
	if !strings.Contains(buf.String(), "✓ 5 steps over 2 operators, 1 failed") {
		t.Errorf("watch line = %q", buf.String())
	}

	buf.Reset()
	printWatchLine(&buf, filepath.Join(t.TempDir(), "missing.yaml"))
	if !strings.Contains(buf.String(), "!") {
		t.Errorf("watch line for missing file = %q", buf.String())
	}
}
