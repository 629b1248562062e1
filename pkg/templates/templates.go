// Package templates loads the sub-graph library offered by InsertSubgraph.
//
// A library file holds one or more template blocks:
//
//	template "fetch-and-parse" {
//	  description = "HTTP request followed by a parser"
//
//	  node "fetch" {
//	    type = "api"
//	    x    = 0
//	    y    = 0
//	    data = { label = "Fetch", url = "https://example.com" }
//	  }
//
//	  node "parse" {
//	    type = "python"
//	    x    = 240
//	    data = { label = "Parse" }
//	  }
//
//	  edge {
//	    source = "fetch"
//	    target = "parse"
//	  }
//	}
//
// Files ending in .json are read with the HCL JSON syntax.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Template is a named, reusable sub-graph.
type Template struct {
	Name        string
	Description string
	Source      string
	Graph       domain.Graph
}

type fileSpec struct {
	Templates []templateSpec `hcl:"template,block"`
}

type templateSpec struct {
	Name        string     `hcl:"name,label"`
	Description string     `hcl:"description,optional"`
	Nodes       []nodeSpec `hcl:"node,block"`
	Edges       []edgeSpec `hcl:"edge,block"`
}

type nodeSpec struct {
	ID   string    `hcl:"id,label"`
	Type string    `hcl:"type"`
	X    float64   `hcl:"x,optional"`
	Y    float64   `hcl:"y,optional"`
	Data cty.Value `hcl:"data,optional"`
}

type edgeSpec struct {
	Source       string `hcl:"source"`
	Target       string `hcl:"target"`
	SourceHandle string `hcl:"source_handle,optional"`
	TargetHandle string `hcl:"target_handle,optional"`
	Label        string `hcl:"label,optional"`
}

// Library is a set of templates indexed by name.
type Library struct {
	mu        sync.RWMutex
	templates map[string]Template
	logger    *slog.Logger
}

// Option configures the Library.
type Option func(*Library)

// WithLogger configures a logger for the Library.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) {
		l.logger = logger
	}
}

// NewLibrary creates an empty library.
func NewLibrary(opts ...Option) *Library {
	l := &Library{
		templates: make(map[string]Template),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadDir reads every .hcl and .json file below dir.
func (l *Library) LoadDir(ctx context.Context, dir string) error {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".hcl", ".json":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk templates directory %s: %w", dir, err)
	}
	if len(paths) == 0 {
		l.logger.Warn("No template files found", "path", dir)
		return nil
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", path, err)
		}
		if err := l.Load(path, src); err != nil {
			return err
		}
	}
	l.logger.Info("Template library loaded", "path", dir, "templates", l.Len())
	return nil
}

// Load parses src (named filename, whose extension selects the syntax)
// and adds its templates. A template with an existing name replaces it.
func (l *Library) Load(filename string, src []byte) error {
	parsed, err := Parse(filename, src)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range parsed {
		if prev, ok := l.templates[t.Name]; ok {
			l.logger.Warn("Template redefined", "name", t.Name, "previous", prev.Source, "source", t.Source)
		}
		l.templates[t.Name] = t
	}
	return nil
}

// Get returns the named template with an independent copy of its graph.
func (l *Library) Get(name string) (Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[name]
	if !ok {
		return Template{}, false
	}
	t.Graph = t.Graph.Clone()
	return t, true
}

// List returns the templates sorted by name.
func (l *Library) List() []Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Template, 0, len(l.templates))
	for _, t := range l.templates {
		t.Graph = t.Graph.Clone()
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of templates.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.templates)
}

// Parse decodes the templates of a single file.
func Parse(filename string, src []byte) ([]Template, error) {
	parser := hclparse.NewParser()
	var (
		file  *hcl.File
		diags hcl.Diagnostics
	)
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		file, diags = parser.ParseJSON(src, filename)
	} else {
		file, diags = parser.ParseHCL(src, filename)
	}
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse template file %s: %s", filename, diags.Error())
	}

	var decoded fileSpec
	if diags := gohcl.DecodeBody(file.Body, nil, &decoded); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode template file %s: %s", filename, diags.Error())
	}

	out := make([]Template, 0, len(decoded.Templates))
	for _, ts := range decoded.Templates {
		t, err := ts.build(filename)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (ts templateSpec) build(source string) (Template, error) {
	t := Template{Name: ts.Name, Description: ts.Description, Source: source}
	for _, ns := range ts.Nodes {
		raw, err := ctyToMap(ns.Data)
		if err != nil {
			return Template{}, fmt.Errorf("template %q node %q: %w", ts.Name, ns.ID, err)
		}
		data, err := domain.DecodeNodeData(raw)
		if err != nil {
			return Template{}, fmt.Errorf("template %q node %q: %w", ts.Name, ns.ID, err)
		}
		t.Graph.Nodes = append(t.Graph.Nodes, domain.Node{
			ID:       ns.ID,
			Kind:     ns.Type,
			Position: domain.Position{X: ns.X, Y: ns.Y},
			Status:   domain.NodeIdle,
			Data:     data,
		})
	}
	for i, es := range ts.Edges {
		t.Graph.Edges = append(t.Graph.Edges, domain.Edge{
			ID:           fmt.Sprintf("%s-edge-%d", ts.Name, i),
			Source:       es.Source,
			Target:       es.Target,
			SourceHandle: es.SourceHandle,
			TargetHandle: es.TargetHandle,
			Label:        es.Label,
		})
	}
	if err := t.Graph.Validate(); err != nil {
		return Template{}, fmt.Errorf("template %q: %w", ts.Name, err)
	}
	return t, nil
}

// ctyToMap converts an HCL object value to plain JSON values.
func ctyToMap(v cty.Value) (map[string]any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("data must be a constant value")
	}
	if t := v.Type(); !t.IsObjectType() && !t.IsMapType() {
		return nil, fmt.Errorf("data must be an object, got %s", t.FriendlyName())
	}
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, fmt.Errorf("failed to convert data: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to convert data: %w", err)
	}
	return out, nil
}
