package domain

import (
	"fmt"
	"math"
)

// DefaultNodeSize is the footprint assumed for a node when computing bounding boxes.
// The core never sees rendered sizes.
var DefaultNodeSize = Size{Width: 180, Height: 60}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Width of the rectangle.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height of the rectangle.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Graph is the node/edge set edited on the canvas.
// A Graph obtained from Clone is independent of its source and is what
// the history stores as a snapshot.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy of the graph.
func (g Graph) Clone() Graph {
	var out Graph
	if g.Nodes != nil {
		out.Nodes = make([]Node, len(g.Nodes))
		for i, n := range g.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	if g.Edges != nil {
		out.Edges = make([]Edge, len(g.Edges))
		for i, e := range g.Edges {
			out.Edges[i] = e.Clone()
		}
	}
	return out
}

// IsEmpty reports whether the graph has no nodes.
func (g *Graph) IsEmpty() bool {
	return len(g.Nodes) == 0
}

// Node returns a pointer to the node with the given id, or nil.
// The pointer is only valid until the next structural change.
func (g *Graph) Node(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// NodeIDs returns the set of node ids.
func (g *Graph) NodeIDs() map[string]bool {
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	return ids
}

// HasID reports whether any node or edge uses id.
func (g *Graph) HasID(id string) bool {
	for _, n := range g.Nodes {
		if n.ID == id {
			return true
		}
	}
	for _, e := range g.Edges {
		if e.ID == id {
			return true
		}
	}
	return false
}

// RemoveNodes deletes the named nodes and every edge touching them.
// It returns the ids of the removed edges.
func (g *Graph) RemoveNodes(ids map[string]bool) []string {
	nodes := g.Nodes[:0]
	for _, n := range g.Nodes {
		if !ids[n.ID] {
			nodes = append(nodes, n)
		}
	}
	g.Nodes = nodes

	var removed []string
	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Touches(ids) {
			removed = append(removed, e.ID)
			continue
		}
		edges = append(edges, e)
	}
	g.Edges = edges
	return removed
}

// RemoveEdges deletes the named edges.
func (g *Graph) RemoveEdges(ids map[string]bool) {
	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if !ids[e.ID] {
			edges = append(edges, e)
		}
	}
	g.Edges = edges
}

// Validate checks that ids are unique and that every edge endpoint exists.
func (g *Graph) Validate() error {
	nodes := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if nodes[n.ID] {
			return fmt.Errorf("%w: node %q", ErrDuplicateID, n.ID)
		}
		nodes[n.ID] = true
	}
	edges := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if e.ID != "" && edges[e.ID] {
			return fmt.Errorf("%w: edge %q", ErrDuplicateID, e.ID)
		}
		edges[e.ID] = true
		if !nodes[e.Source] {
			return fmt.Errorf("%w: edge %q source %q", ErrDanglingEdge, e.ID, e.Source)
		}
		if !nodes[e.Target] {
			return fmt.Errorf("%w: edge %q target %q", ErrDanglingEdge, e.ID, e.Target)
		}
	}
	return nil
}

// Bounds returns the bounding box of all nodes. ok is false for an empty graph.
func (g *Graph) Bounds() (Rect, bool) {
	return BoundsOf(g.Nodes, nil)
}

// BoundsOf returns the bounding box of the nodes whose id is in ids
// (all nodes when ids is nil).
func BoundsOf(nodes []Node, ids map[string]bool) (Rect, bool) {
	r := Rect{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	found := false
	for _, n := range nodes {
		if ids != nil && !ids[n.ID] {
			continue
		}
		found = true
		r.MinX = math.Min(r.MinX, n.Position.X)
		r.MinY = math.Min(r.MinY, n.Position.Y)
		r.MaxX = math.Max(r.MaxX, n.Position.X+DefaultNodeSize.Width)
		r.MaxY = math.Max(r.MaxY, n.Position.Y+DefaultNodeSize.Height)
	}
	if !found {
		return Rect{}, false
	}
	return r, true
}
