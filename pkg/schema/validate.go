package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ormasoftchile/qtrace/pkg/trace"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-pointer-like location (e.g., "steps/3/node")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on a trace file.
// Phase 1: Structural (strict YAML/JSON decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (plan tree and step invariants)
func ValidateFile(path string) (*trace.Trace, []*ValidationError) {
	doc, err := trace.LoadDocument(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return ValidateDocument(doc)
}

// ValidateDocument runs the semantic and domain phases on a decoded document.
func ValidateDocument(doc *trace.Document) (*trace.Trace, []*ValidationError) {
	errs := validateSemantic(doc)

	t, err := doc.Trace()
	if err != nil {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Message:  err.Error(),
			Severity: "error",
		})
		return nil, errs
	}

	errs = append(errs, lint(t)...)
	return t, errs
}

// HasErrors reports whether errs contains anything above warning severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

// validateSemantic validates the document against the JSON Schema.
func validateSemantic(doc *trace.Document) []*ValidationError {
	semantic := func(format string, args ...any) []*ValidationError {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		}}
	}

	// An empty step list is valid; keep it an array rather than null.
	d := *doc
	if d.Steps == nil {
		d.Steps = []trace.Step{}
	}
	data, err := json.Marshal(&d)
	if err != nil {
		return semantic("marshal for schema validation: %v", err)
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semantic("generate schema: %v", err)
	}
	schemaDoc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return semantic("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("trace-v0.json", schemaDoc); err != nil {
		return semantic("add schema resource: %v", err)
	}
	sch, err := c.Compile("trace-v0.json")
	if err != nil {
		return semantic("compile schema: %v", err)
	}

	inst, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return semantic("unmarshal document: %v", err)
	}

	if err := sch.Validate(inst); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return semantic("%v", err)
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// lint reports suspicious but valid traces as warnings.
func lint(t *trace.Trace) []*ValidationError {
	var errs []*ValidationError
	if t.Len() == 0 {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "steps",
			Message:  "trace has no steps",
			Severity: "warning",
		})
	}
	if t.Query == "" {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "query",
			Message:  "trace does not record its query",
			Severity: "warning",
		})
	}
	used := make(map[string]bool, t.Tree.Len())
	for _, s := range t.Steps {
		used[s.NodeID] = true
	}
	for _, id := range t.Tree.IDs() {
		if !used[id] && t.Len() > 0 {
			n, _ := t.Tree.Node(id)
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     "nodes/" + id,
				Message:  fmt.Sprintf("operator %q (%s) never appears in a step", n.Label, id),
				Severity: "warning",
			})
		}
	}
	return errs
}

// Validate runs the 3-phase pipeline on in-memory trace bytes.
func Validate(data []byte, asJSON bool) (*trace.Trace, []*ValidationError) {
	doc, err := trace.ParseDocument(data, asJSON)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return ValidateDocument(doc)
}
