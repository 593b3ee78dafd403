// Package schema exports and enforces the JSON Schema of trace files.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/ormasoftchile/qtrace/pkg/trace"
)

// SchemaID is the $id of the trace file schema.
const SchemaID = "https://github.com/ormasoftchile/qtrace/schemas/trace-v0.json"

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from
// the trace.Document struct using invopop/jsonschema.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&trace.Document{})
	s.ID = SchemaID
	s.Title = "Query Execution Trace v0"
	s.Description = "Schema for qtrace trace files (YAML or JSON), as recorded from GRAPH.RECORD"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
