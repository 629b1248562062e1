package domain_test

import (
	"testing"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() domain.Graph {
	return domain.Graph{
		Nodes: []domain.Node{
			{ID: "a", Kind: "trigger", Position: domain.Position{X: 0, Y: 0}, Data: domain.NodeData{Label: "A", Extra: map[string]any{"cfg": map[string]any{"n": 1.0}}}},
			{ID: "b", Kind: "api", Position: domain.Position{X: 200, Y: 100}, Data: domain.NodeData{Label: "B"}},
			{ID: "c", Kind: "python", Position: domain.Position{X: 400, Y: -50}, Data: domain.NodeData{Label: "C"}},
		},
		Edges: []domain.Edge{
			{ID: "e1", Source: "a", Target: "b", Style: map[string]any{"stroke": "red"}},
			{ID: "e2", Source: "b", Target: "c"},
		},
	}
}

func TestGraph_CloneIsIndependent(t *testing.T) {
	g := sampleGraph()
	c := g.Clone()
	require.Equal(t, g, c)

	c.Nodes[0].Data.Label = "changed"
	c.Nodes[0].Data.Extra["cfg"].(map[string]any)["n"] = 2.0
	c.Edges[0].Style["stroke"] = "blue"

	assert.Equal(t, "A", g.Nodes[0].Data.Label)
	assert.Equal(t, 1.0, g.Nodes[0].Data.Extra["cfg"].(map[string]any)["n"])
	assert.Equal(t, "red", g.Edges[0].Style["stroke"])
}

func TestGraph_RemoveNodesPrunesEdges(t *testing.T) {
	g := sampleGraph()
	removed := g.RemoveNodes(map[string]bool{"a": true})

	assert.Equal(t, []string{"e1"}, removed)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "e2", g.Edges[0].ID)
	assert.NoError(t, g.Validate())
}

func TestGraph_Validate(t *testing.T) {
	t.Run("dangling edge", func(t *testing.T) {
		g := sampleGraph()
		g.Edges = append(g.Edges, domain.Edge{ID: "e3", Source: "c", Target: "ghost"})
		assert.ErrorIs(t, g.Validate(), domain.ErrDanglingEdge)
	})

	t.Run("duplicate node", func(t *testing.T) {
		g := sampleGraph()
		g.Nodes = append(g.Nodes, domain.Node{ID: "a"})
		assert.ErrorIs(t, g.Validate(), domain.ErrDuplicateID)
	})
}

func TestGraph_Bounds(t *testing.T) {
	g := sampleGraph()
	r, ok := g.Bounds()
	require.True(t, ok)
	assert.Equal(t, 0.0, r.MinX)
	assert.Equal(t, -50.0, r.MinY)
	assert.Equal(t, 400+domain.DefaultNodeSize.Width, r.MaxX)
	assert.Equal(t, 100+domain.DefaultNodeSize.Height, r.MaxY)

	_, ok = (&domain.Graph{}).Bounds()
	assert.False(t, ok)
}
