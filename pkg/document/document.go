package document

import (
	"path/filepath"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Document is a persisted workflow.
type Document struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Nodes       []Node `json:"nodes" yaml:"nodes"`
	Edges       []Edge `json:"edges" yaml:"edges"`
}

// Node is the persisted shape of a canvas node.
type Node struct {
	ID       string          `json:"id" yaml:"id" mapstructure:"id"`
	Type     string          `json:"type" yaml:"type" mapstructure:"type"`
	Position domain.Position `json:"position" yaml:"position" mapstructure:"position"`
	Data     map[string]any  `json:"data" yaml:"data" mapstructure:"data"`
}

// Edge is the persisted shape of a canvas edge.
type Edge struct {
	ID           string         `json:"id" yaml:"id" mapstructure:"id"`
	Source       string         `json:"source" yaml:"source" mapstructure:"source"`
	Target       string         `json:"target" yaml:"target" mapstructure:"target"`
	SourceHandle string         `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty" mapstructure:"sourceHandle"`
	TargetHandle string         `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty" mapstructure:"targetHandle"`
	Label        string         `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	Type         string         `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Animated     bool           `json:"animated,omitempty" yaml:"animated,omitempty" mapstructure:"animated"`
	Style        map[string]any `json:"style,omitempty" yaml:"style,omitempty" mapstructure:"style"`
}

// Kind returns the node kind: the node type, or data.type when the type is empty.
func (n *Node) Kind() string {
	if n.Type != "" {
		return n.Type
	}
	if t, ok := n.Data["type"].(string); ok {
		return t
	}
	return ""
}

// Graph projects the document onto a canvas graph. Nodes and edges without
// an id receive one from newID. The status stored in node data seeds the
// runtime status (idle when absent or unknown).
func (d *Document) Graph(newID func() string) (domain.Graph, error) {
	g := domain.Graph{
		Nodes: make([]domain.Node, 0, len(d.Nodes)),
		Edges: make([]domain.Edge, 0, len(d.Edges)),
	}
	for i, dn := range d.Nodes {
		raw := make(map[string]any, len(dn.Data))
		for k, v := range dn.Data {
			if k == "status" {
				continue
			}
			raw[k] = v
		}
		data, err := domain.DecodeNodeData(raw)
		if err != nil {
			return domain.Graph{}, &ValidationError{Path: nodePath(i, "data"), Reason: "cannot decode node data", Err: err}
		}
		status := domain.NodeIdle
		if s, ok := dn.Data["status"].(string); ok && domain.NodeStatus(s).Valid() {
			status = domain.NodeStatus(s)
		}
		id := dn.ID
		if id == "" {
			id = newID()
		}
		g.Nodes = append(g.Nodes, domain.Node{
			ID:       id,
			Kind:     dn.Kind(),
			Position: dn.Position,
			Status:   status,
			Data:     data,
		})
	}
	for _, de := range d.Edges {
		id := de.ID
		if id == "" {
			id = newID()
		}
		g.Edges = append(g.Edges, domain.Edge{
			ID:           id,
			Source:       de.Source,
			Target:       de.Target,
			SourceHandle: de.SourceHandle,
			TargetHandle: de.TargetHandle,
			Label:        de.Label,
			Type:         de.Type,
			Animated:     de.Animated,
			Style:        de.Style,
		})
	}
	return g, nil
}

// FromGraph builds the persisted form of g. Runtime overlays are not persisted;
// a non-idle runtime status is kept in data.status.
func FromGraph(name, description string, g domain.Graph) *Document {
	clone := g.Clone()
	doc := &Document{
		Name:        name,
		Description: description,
		Nodes:       make([]Node, 0, len(clone.Nodes)),
		Edges:       make([]Edge, 0, len(clone.Edges)),
	}
	for _, n := range clone.Nodes {
		data := n.Data.Map()
		if n.Status != "" && n.Status != domain.NodeIdle {
			data["status"] = string(n.Status)
		}
		doc.Nodes = append(doc.Nodes, Node{
			ID:       n.ID,
			Type:     n.Kind,
			Position: n.Position,
			Data:     data,
		})
	}
	for _, e := range clone.Edges {
		doc.Edges = append(doc.Edges, Edge{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
			Label:        e.Label,
			Type:         e.Type,
			Animated:     e.Animated,
			Style:        e.Style,
		})
	}
	return doc
}
