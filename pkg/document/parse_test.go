package document_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/pkg/document"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/schema"
)

const twoNodes = `{
  "name": "fetch",
  "description": "fetch and store",
  "nodes": [
    {"id": "a", "type": "trigger", "position": {"x": 0, "y": 10}, "data": {"label": "Start"}},
    {"id": "b", "type": "api", "position": {"x": 200.5, "y": 10}, "data": {"label": "Call", "url": "https://example.com", "status": "success"}}
  ],
  "edges": [
    {"id": "e1", "source": "a", "target": "b", "sourceHandle": "out"}
  ]
}`

func counter() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}

func TestParse_JSON(t *testing.T) {
	doc, err := document.Parse([]byte(twoNodes), document.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "fetch", doc.Name)
	require.Len(t, doc.Nodes, 2)
	require.Len(t, doc.Edges, 1)

	g, err := doc.Graph(counter())
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	assert.Equal(t, "api", g.Nodes[1].Kind)
	assert.Equal(t, domain.Position{X: 200.5, Y: 10}, g.Nodes[1].Position)
	assert.Equal(t, domain.NodeSuccess, g.Nodes[1].Status)
	assert.Equal(t, domain.NodeIdle, g.Nodes[0].Status)
	assert.Equal(t, "Call", g.Nodes[1].Data.Label)
	assert.Equal(t, map[string]any{"url": "https://example.com"}, g.Nodes[1].Data.Extra)
	assert.Equal(t, domain.Edge{ID: "e1", Source: "a", Target: "b", SourceHandle: "out"}, g.Edges[0])
}

func TestParse_YAML(t *testing.T) {
	src := `
name: yaml flow
description: ""
nodes:
  - id: a
    type: python
    position: {x: 1, y: 2}
    data:
      label: Script
      timeout: 30
edges: []
`
	doc, err := document.Parse([]byte(src), document.FormatYAML)
	require.NoError(t, err)

	g, err := doc.Graph(counter())
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, domain.Position{X: 1, Y: 2}, g.Nodes[0].Position)
	assert.Equal(t, float64(30), g.Nodes[0].Data.Extra["timeout"])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		path string
	}{
		{"not an object", `[1,2]`, ""},
		{"nodes not array", `{"nodes": {}, "edges": []}`, "nodes"},
		{"edges missing", `{"nodes": []}`, "edges"},
		{"missing position", `{"nodes": [{"id": "a"}], "edges": []}`, "nodes[0].position"},
		{"string coordinate", `{"nodes": [{"id": "a", "position": {"x": "1", "y": 2}}], "edges": []}`, "nodes[0].position.x"},
		{"missing y", `{"nodes": [{"id": "a", "position": {"x": 1}}], "edges": []}`, "nodes[0].position.y"},
		{"numeric source", `{"nodes": [], "edges": [{"source": 1, "target": "b"}]}`, "edges[0].source"},
		{"missing target", `{"nodes": [], "edges": [{"source": "a"}]}`, "edges[0].target"},
		{"dangling edge", `{"nodes": [{"id": "a", "position": {"x": 0, "y": 0}}], "edges": [{"source": "a", "target": "zz"}]}`, "edges[0].target"},
		{"duplicate node", `{"nodes": [{"id": "a", "position": {"x": 0, "y": 0}}, {"id": "a", "position": {"x": 0, "y": 0}}], "edges": []}`, "nodes[1].id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := document.Parse([]byte(tt.src), document.FormatJSON)
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, document.ErrInvalidDocument)

			var verr *document.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.path, verr.Path)
		})
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := document.Parse([]byte(`{"nodes": [`), document.FormatJSON)
	assert.ErrorIs(t, err, document.ErrInvalidDocument)
	assert.Contains(t, err.Error(), "malformed JSON")
}

func TestParse_DanglingEdgeWrapsDomainError(t *testing.T) {
	src := `{"nodes": [], "edges": [{"source": "a", "target": "b"}]}`
	_, err := document.Parse([]byte(src), document.FormatJSON)
	assert.ErrorIs(t, err, domain.ErrDanglingEdge)
}

func TestParse_Schemas(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Register("api", schema.Schema{"url": schema.Required(schema.String())})

	_, err := document.Parse([]byte(twoNodes), document.FormatJSON, document.WithSchemas(reg))
	require.NoError(t, err)

	bad := strings.Replace(twoNodes, `"url": "https://example.com"`, `"url": 42`, 1)
	_, err = document.Parse([]byte(bad), document.FormatJSON, document.WithSchemas(reg))
	require.Error(t, err)

	var verr *document.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "nodes[1].data", verr.Path)
	assert.Len(t, schema.ValidationErrors(err), 1)
}

func TestGraph_AssignsMissingIDs(t *testing.T) {
	src := `{"nodes": [{"position": {"x": 0, "y": 0}, "data": {"label": "x", "type": "llm"}}], "edges": []}`
	doc, err := document.Parse([]byte(src), document.FormatJSON)
	require.NoError(t, err)

	g, err := doc.Graph(counter())
	require.NoError(t, err)
	assert.Equal(t, "gen-1", g.Nodes[0].ID)
	assert.Equal(t, "llm", g.Nodes[0].Kind, "data.type is the kind fallback")
}

func TestFromGraph_RoundTrip(t *testing.T) {
	doc, err := document.Parse([]byte(twoNodes), document.FormatJSON)
	require.NoError(t, err)
	g, err := doc.Graph(counter())
	require.NoError(t, err)

	for _, format := range []document.Format{document.FormatJSON, document.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			out, err := document.Marshal(document.FromGraph(doc.Name, doc.Description, g), format)
			require.NoError(t, err)

			back, err := document.Parse(out, format)
			require.NoError(t, err)
			g2, err := back.Graph(counter())
			require.NoError(t, err)
			assert.Equal(t, g, g2)
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, document.FormatYAML, document.FormatFromPath("flow.YML"))
	assert.Equal(t, document.FormatYAML, document.FormatFromPath("a/b/flow.yaml"))
	assert.Equal(t, document.FormatJSON, document.FormatFromPath("flow.json"))
	assert.Equal(t, document.FormatJSON, document.FormatFromPath("flow"))
}
