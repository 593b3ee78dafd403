package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ormasoftchile/qtrace/pkg/plan"
	"gopkg.in/yaml.v3"
)

// APIVersion identifies the trace file format.
const APIVersion = "qtrace/v0"

// Document is the on-disk form of a trace.
type Document struct {
	APIVersion string          `yaml:"apiVersion" json:"apiVersion" jsonschema:"enum=qtrace/v0"`
	ID         string          `yaml:"id,omitempty" json:"id,omitempty"`
	Query      string          `yaml:"query" json:"query"`
	RecordedAt string          `yaml:"recordedAt,omitempty" json:"recordedAt,omitempty" jsonschema:"format=date-time"`
	Nodes      []plan.NodeSpec `yaml:"nodes" json:"nodes" jsonschema:"minItems=1"`
	Steps      []Step          `yaml:"steps" json:"steps"`
}

// Document returns the serializable form of the trace.
func (t *Trace) Document() *Document {
	return &Document{
		APIVersion: APIVersion,
		ID:         t.ID,
		Query:      t.Query,
		Nodes:      t.Nodes(),
		Steps:      t.Steps,
	}
}

// Trace validates the document and builds the in-memory trace.
func (d *Document) Trace() (*Trace, error) {
	if d.APIVersion != APIVersion {
		return nil, fmt.Errorf("%w: unsupported apiVersion %q (want %s)", ErrMalformedTrace, d.APIVersion, APIVersion)
	}
	steps := make([]Step, len(d.Steps))
	for i, s := range d.Steps {
		vals := make([]Value, len(s.Values))
		for j, v := range s.Values {
			vals[j] = Normalize(v)
		}
		if len(vals) == 0 {
			vals = nil
		}
		steps[i] = Step{NodeID: s.NodeID, Values: vals, Err: s.Err}
	}
	t, err := FromNodes(d.Query, d.Nodes, steps)
	if err != nil {
		return nil, err
	}
	t.ID = d.ID
	return t, nil
}

// LoadDocument reads a trace document. Files ending in .json are decoded
// as JSON, anything else as YAML. Unknown fields are rejected.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return ParseDocument(data, isJSON(path))
}

// ParseDocument decodes a trace document from JSON or YAML bytes.
func ParseDocument(data []byte, asJSON bool) (*Document, error) {
	var d Document
	if asJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("parse trace: %w", err)
		}
		return &d, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	return &d, nil
}

// Load reads and validates a trace file.
func Load(path string) (*Trace, error) {
	d, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	t, err := d.Trace()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Save writes the trace to path, creating parent directories as needed.
func Save(path string, t *Trace, recordedAt string) error {
	d := t.Document()
	d.RecordedAt = recordedAt

	var data []byte
	var err error
	if isJSON(path) {
		data, err = json.MarshalIndent(d, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(d)
	}
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create trace dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
