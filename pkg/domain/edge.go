package domain

import "github.com/mohae/deepcopy"

// Edge is a directed connection between two nodes.
type Edge struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	SourceHandle string         `json:"sourceHandle,omitempty"`
	TargetHandle string         `json:"targetHandle,omitempty"`
	Label        string         `json:"label,omitempty"`
	Type         string         `json:"type,omitempty"`
	Animated     bool           `json:"animated,omitempty"`
	Style        map[string]any `json:"style,omitempty"`
}

// Touches reports whether the edge has either endpoint in ids.
func (e *Edge) Touches(ids map[string]bool) bool {
	return ids[e.Source] || ids[e.Target]
}

// Clone returns a deep copy of the edge.
func (e Edge) Clone() Edge {
	out := e
	if e.Style != nil {
		out.Style, _ = deepcopy.Copy(e.Style).(map[string]any)
	}
	return out
}
