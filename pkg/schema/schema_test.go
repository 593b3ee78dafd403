package schema

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ormasoftchile/qtrace/pkg/trace"
)

const validTrace = `apiVersion: qtrace/v0
query: UNWIND [1, 2] AS x RETURN x
nodes:
  - id: "0"
    label: Results
    variables: [x]
  - id: "1"
    parent: "0"
    label: Unwind
    variables: [x]
steps:
  - node: "1"
    values: [1]
  - node: "0"
    values: [1]
`

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if doc["$id"] != SchemaID {
		t.Errorf("$id = %v", doc["$id"])
	}
	if !strings.Contains(string(data), `"apiVersion"`) {
		t.Error("schema does not describe apiVersion")
	}
}

func TestValidate_Valid(t *testing.T) {
	tr, errs := Validate([]byte(validTrace), false)
	if HasErrors(errs) {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if tr == nil || tr.Len() != 2 {
		t.Fatalf("trace = %+v", tr)
	}
	if len(errs) != 0 {
		t.Errorf("unexpected warnings: %v", errs)
	}
}

func TestValidate_Phases(t *testing.T) {
	tests := []struct {
		name  string
		input string
		phase string
	}{
		{
			name:  "unknown field",
			input: validTrace + "extra: true\n",
			phase: "structural",
		},
		{
			name:  "not yaml",
			input: "nodes: [",
			phase: "structural",
		},
		{
			name:  "wrong version",
			input: strings.Replace(validTrace, "qtrace/v0", "qtrace/v9", 1),
			phase: "semantic",
		},
		{
			name:  "unknown step node",
			input: strings.Replace(validTrace, `- node: "0"`, `- node: "7"`, 1),
			phase: "domain",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, errs := Validate([]byte(tt.input), false)
			if tr != nil {
				t.Error("expected no trace")
			}
			if !HasErrors(errs) {
				t.Fatal("expected errors")
			}
			if errs[0].Phase != tt.phase {
				t.Errorf("phase = %s, want %s (%v)", errs[0].Phase, tt.phase, errs)
			}
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	input := `apiVersion: qtrace/v0
query: ""
nodes:
  - id: "0"
    label: Results
steps: []
`
	tr, errs := Validate([]byte(input), false)
	if tr == nil {
		t.Fatalf("expected trace, got %v", errs)
	}
	if HasErrors(errs) {
		t.Fatalf("warnings reported as errors: %v", errs)
	}
	if len(errs) != 2 {
		t.Errorf("got %d warnings, want 2: %v", len(errs), errs)
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.yaml")
	if err := os.WriteFile(path, []byte(validTrace), 0o644); err != nil {
		t.Fatal(err)
	}
	tr, errs := ValidateFile(path)
	if HasErrors(errs) {
		t.Fatalf("unexpected errors: %v", errs)
	}

	out := filepath.Join(dir, "trace.json")
	if err := trace.Save(out, tr, ""); err != nil {
		t.Fatal(err)
	}
	if _, errs := ValidateFile(out); HasErrors(errs) {
		t.Fatalf("saved JSON does not validate: %v", errs)
	}

	_, errs = ValidateFile(filepath.Join(dir, "missing.yaml"))
	if len(errs) != 1 || errs[0].Phase != "structural" {
		t.Errorf("missing file: %v", errs)
	}
}

func TestValidationError_Error(t *testing.T) {
	e := &ValidationError{Phase: "domain", Path: "steps/0", Message: "bad"}
	if e.Error() != "[domain] steps/0: bad" {
		t.Errorf("Error() = %q", e.Error())
	}
	var target *ValidationError
	if !errors.As(error(e), &target) {
		t.Error("errors.As failed")
	}
}
