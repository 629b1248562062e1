// Package compiler turns the canvas graph into the configuration the
// execution engine runs.
package compiler

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/aretw0/weft/pkg/domain"
)

// EngineNode is a step in the compiled graph.
type EngineNode struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Label  string         `json:"label"`
	Config map[string]any `json:"config,omitempty"`
}

// EngineEdge connects two compiled steps.
type EngineEdge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}

// GraphConfig is the graph_config payload of a run_workflow message.
type GraphConfig struct {
	Nodes []EngineNode `json:"nodes"`
	Edges []EngineEdge `json:"edges"`
	// Entry lists the steps with no incoming edge.
	Entry []string `json:"entry"`
}

// Result is the output of Compile.
type Result struct {
	Config GraphConfig
	// GraphToCanvas maps engine step ids back to canvas node ids.
	GraphToCanvas map[string]string
}

// Compiler converts canvas graphs into engine graph configurations.
type Compiler struct{}

// New creates a new compiler instance.
func New() *Compiler {
	return &Compiler{}
}

// Compile validates g and derives engine step ids from node labels.
// Disabled nodes, and edges touching them, are left out.
func (c *Compiler) Compile(g domain.Graph) (*Result, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("failed to compile graph: %w", err)
	}

	res := &Result{
		Config: GraphConfig{
			Nodes: []EngineNode{},
			Edges: []EngineEdge{},
			Entry: []string{},
		},
		GraphToCanvas: make(map[string]string, len(g.Nodes)),
	}
	canvasToGraph := make(map[string]string, len(g.Nodes))

	for i, n := range g.Nodes {
		if n.Data.Disabled {
			continue
		}
		base := n.Data.Label
		if base == "" {
			base = n.Kind
		}
		id := fmt.Sprintf("%s_%d", slug(base), i)
		canvasToGraph[n.ID] = id
		res.GraphToCanvas[id] = n.ID

		cfg := n.Data.Clone().Extra
		res.Config.Nodes = append(res.Config.Nodes, EngineNode{
			ID:     id,
			Type:   n.Kind,
			Label:  n.Label(),
			Config: cfg,
		})
	}

	hasIncoming := make(map[string]bool)
	for _, e := range g.Edges {
		src, okSrc := canvasToGraph[e.Source]
		dst, okDst := canvasToGraph[e.Target]
		if !okSrc || !okDst {
			continue
		}
		hasIncoming[dst] = true
		res.Config.Edges = append(res.Config.Edges, EngineEdge{
			Source:       src,
			Target:       dst,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
		})
	}
	for _, n := range res.Config.Nodes {
		if !hasIncoming[n.ID] {
			res.Config.Entry = append(res.Config.Entry, n.ID)
		}
	}
	return res, nil
}

// slug lowercases s and replaces runs of non-alphanumerics with a single underscore.
func slug(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	if b.Len() == 0 {
		return "node"
	}
	return b.String()
}
