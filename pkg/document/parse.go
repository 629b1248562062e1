package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/schema"
)

// Option configures Parse.
type Option func(*parseOptions)

type parseOptions struct {
	schemas *schema.Registry
}

// WithSchemas validates node extension data against the per-kind schemas in reg.
func WithSchemas(reg *schema.Registry) Option {
	return func(o *parseOptions) {
		o.schemas = reg
	}
}

// Read parses a document from r.
func Read(r io.Reader, format Format, opts ...Option) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Parse(data, format, opts...)
}

// Parse decodes and validates a document. Nothing is returned unless the
// whole document is valid.
func Parse(data []byte, format Format, opts ...Option) (*Document, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := decodeRaw(data, format)
	if err != nil {
		return nil, err
	}
	if err := validateRaw(raw); err != nil {
		return nil, err
	}

	var doc Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, &ValidationError{Reason: "cannot decode document", Err: err}
	}
	if err := validateStructure(&doc, o.schemas); err != nil {
		return nil, err
	}
	return &doc, nil
}

func decodeRaw(data []byte, format Format) (any, error) {
	var raw any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &ValidationError{Reason: "malformed YAML", Err: err}
		}
		return normalize(raw), nil
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&raw); err != nil {
			return nil, &ValidationError{Reason: "malformed JSON", Err: err}
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, invalid("", "unexpected trailing data")
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}

// normalize rewrites YAML-decoded values into the shapes encoding/json produces.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}

func validateRaw(raw any) error {
	root, ok := raw.(map[string]any)
	if !ok {
		return invalid("", "document must be an object")
	}
	nodes, ok := root["nodes"].([]any)
	if !ok {
		return invalid("nodes", "must be an array")
	}
	edges, ok := root["edges"].([]any)
	if !ok {
		return invalid("edges", "must be an array")
	}

	for i, item := range nodes {
		node, ok := item.(map[string]any)
		if !ok {
			return invalid(nodePath(i, ""), "must be an object")
		}
		if id, present := node["id"]; present && id != nil {
			if _, ok := id.(string); !ok {
				return invalid(nodePath(i, "id"), "must be a string")
			}
		}
		pos, ok := node["position"].(map[string]any)
		if !ok {
			return invalid(nodePath(i, "position"), "must be an object with numeric x and y")
		}
		for _, axis := range []string{"x", "y"} {
			if _, ok := pos[axis].(float64); !ok {
				return invalid(nodePath(i, "position."+axis), "must be a number")
			}
		}
		if data, present := node["data"]; present && data != nil {
			if _, ok := data.(map[string]any); !ok {
				return invalid(nodePath(i, "data"), "must be an object")
			}
		}
	}

	for i, item := range edges {
		edge, ok := item.(map[string]any)
		if !ok {
			return invalid(edgePath(i, ""), "must be an object")
		}
		for _, end := range []string{"source", "target"} {
			if _, ok := edge[end].(string); !ok {
				return invalid(edgePath(i, end), "must be a string")
			}
		}
	}
	return nil
}

func validateStructure(doc *Document, schemas *schema.Registry) error {
	nodes := make(map[string]bool, len(doc.Nodes))
	for i, n := range doc.Nodes {
		if n.ID != "" {
			if nodes[n.ID] {
				return &ValidationError{Path: nodePath(i, "id"), Reason: fmt.Sprintf("duplicate id %q", n.ID), Err: domain.ErrDuplicateID}
			}
			nodes[n.ID] = true
		}
		data, err := domain.DecodeNodeData(n.Data)
		if err != nil {
			return &ValidationError{Path: nodePath(i, "data"), Reason: "cannot decode node data", Err: err}
		}
		if err := schemas.Validate(n.Kind(), data.Extra); err != nil {
			return &ValidationError{Path: nodePath(i, "data"), Reason: err.Error(), Err: err}
		}
	}

	edges := make(map[string]bool, len(doc.Edges))
	for i, e := range doc.Edges {
		if e.ID != "" {
			if edges[e.ID] {
				return &ValidationError{Path: edgePath(i, "id"), Reason: fmt.Sprintf("duplicate id %q", e.ID), Err: domain.ErrDuplicateID}
			}
			edges[e.ID] = true
		}
		if !nodes[e.Source] {
			return &ValidationError{Path: edgePath(i, "source"), Reason: fmt.Sprintf("unknown node %q", e.Source), Err: domain.ErrDanglingEdge}
		}
		if !nodes[e.Target] {
			return &ValidationError{Path: edgePath(i, "target"), Reason: fmt.Sprintf("unknown node %q", e.Target), Err: domain.ErrDanglingEdge}
		}
	}
	return nil
}

// Marshal encodes doc in the given format.
func Marshal(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON, "":
		return json.MarshalIndent(doc, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}

func nodePath(i int, field string) string {
	if field == "" {
		return fmt.Sprintf("nodes[%d]", i)
	}
	return fmt.Sprintf("nodes[%d].%s", i, field)
}

func edgePath(i int, field string) string {
	if field == "" {
		return fmt.Sprintf("edges[%d]", i)
	}
	return fmt.Sprintf("edges[%d].%s", i, field)
}
