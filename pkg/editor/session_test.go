package editor_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/weft/pkg/document"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/editor"
	"github.com/aretw0/weft/pkg/history"
	"github.com/aretw0/weft/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	s, rec := newSession(t)

	assert.Equal(t, "wf-1", s.WorkflowID())
	assert.Equal(t, []string{"trigger", "fetch", "parse", "out"}, ids(s.Graph().Nodes))
	assert.False(t, s.CanUndo())
	require.NotEmpty(t, rec.graphs)
	assert.Len(t, rec.reloads, 1)
}

func TestOpen_RejectsInvalidGraph(t *testing.T) {
	s := editor.New()
	g := pipeline()
	g.Edges = append(g.Edges, domain.Edge{ID: "bad", Source: "fetch", Target: "ghost"})

	err := s.Open(context.Background(), "wf", g)
	assert.ErrorIs(t, err, domain.ErrDanglingEdge)
}

func TestUndoRedo_InverseLaw(t *testing.T) {
	s, _ := newSession(t)
	before := s.Graph()

	require.NoError(t, s.ApplyNodeChanges([]editor.NodeChange{{
		Type: history.ChangeAdd,
		Node: &domain.Node{ID: "extra", Kind: domain.KindLLM, Data: domain.NodeData{Label: "Summarize"}},
	}}))
	_, err := s.Connect(domain.Edge{Source: "out", Target: "extra"})
	require.NoError(t, err)
	after := s.Graph()
	require.Len(t, after.Nodes, 5)

	require.NoError(t, s.Undo())
	require.NoError(t, s.Undo())
	assert.Equal(t, before, s.Graph())

	require.NoError(t, s.Redo())
	require.NoError(t, s.Redo())
	assert.Equal(t, after, s.Graph())
	assert.False(t, s.CanRedo())
}

func TestUndo_NothingToUndo(t *testing.T) {
	s, _ := newSession(t)
	assert.ErrorIs(t, s.Undo(), domain.ErrNothingToUndo)
	assert.ErrorIs(t, s.Redo(), domain.ErrNothingToRedo)
}

func TestApplyNodeChanges_SnapshotClassification(t *testing.T) {
	s, _ := newSession(t)

	require.NoError(t, s.ApplyNodeChanges([]editor.NodeChange{{Type: history.ChangeSelect, ID: "fetch", Selected: true}}))
	assert.False(t, s.CanUndo(), "selection is not an edit")
	assert.Equal(t, []string{"fetch"}, s.Selection())

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.ApplyNodeChanges([]editor.NodeChange{{
			Type: history.ChangePosition, ID: "fetch",
			Position: domain.Position{X: 200 + float64(i)*10}, Dragging: true,
		}}))
	}
	assert.False(t, s.CanUndo(), "drag updates are not edits")

	require.NoError(t, s.ApplyNodeChanges([]editor.NodeChange{{
		Type: history.ChangePosition, ID: "fetch", Position: domain.Position{X: 300, Y: 50},
	}}))
	assert.True(t, s.CanUndo())

	require.NoError(t, s.Undo())
	// the snapshot was taken just before the settled position, i.e. after dragging
	assert.Equal(t, domain.Position{X: 250}, graphNode(s, "fetch").Position)
	assert.False(t, s.CanUndo())
}

func TestApplyNodeChanges_RejectsBatchAsAWhole(t *testing.T) {
	s, _ := newSession(t)
	before := s.Graph()

	err := s.ApplyNodeChanges([]editor.NodeChange{
		{Type: history.ChangePosition, ID: "fetch", Position: domain.Position{X: 1}},
		{Type: history.ChangeData, ID: "ghost"},
	})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	assert.Equal(t, before, s.Graph())
	assert.False(t, s.CanUndo())

	err = s.ApplyNodeChanges([]editor.NodeChange{{Type: history.ChangeAdd, Node: &domain.Node{ID: "fetch"}}})
	assert.ErrorIs(t, err, domain.ErrDuplicateID)
}

func TestApplyNodeChanges_RemoveDropsEdges(t *testing.T) {
	s, _ := newSession(t)
	require.NoError(t, s.ApplyNodeChanges([]editor.NodeChange{{Type: history.ChangeRemove, ID: "fetch"}}))

	g := s.Graph()
	assert.Nil(t, g.Node("fetch"))
	for _, e := range g.Edges {
		assert.NotEqual(t, "fetch", e.Source)
		assert.NotEqual(t, "fetch", e.Target)
	}
	assert.Len(t, g.Edges, 1)
}

func TestHistoryCap(t *testing.T) {
	s, _ := newSession(t)
	for i := 0; i < 60; i++ {
		require.NoError(t, s.ApplyNodeChanges([]editor.NodeChange{{
			Type: history.ChangePosition, ID: "out", Position: domain.Position{X: float64(i)},
		}}))
	}
	undone := 0
	for s.CanUndo() {
		require.NoError(t, s.Undo())
		undone++
	}
	assert.Equal(t, history.DefaultLimit, undone)
	// the oldest 10 snapshots were evicted; the oldest kept one follows edit 9
	assert.Equal(t, float64(9), graphNode(s, "out").Position.X)
}

func TestWithHistoryLimit(t *testing.T) {
	s, _ := newSession(t, editor.WithHistoryLimit(2))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.ApplyNodeChanges([]editor.NodeChange{{
			Type: history.ChangePosition, ID: "out", Position: domain.Position{X: float64(i)},
		}}))
	}
	require.NoError(t, s.Undo())
	require.NoError(t, s.Undo())
	assert.ErrorIs(t, s.Undo(), domain.ErrNothingToUndo)
}

func TestConnect(t *testing.T) {
	s, _ := newSession(t)

	id, err := s.Connect(domain.Edge{Source: "trigger", Target: "out"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, s.Graph().Edges, 4)

	_, err = s.Connect(domain.Edge{Source: "trigger", Target: "ghost"})
	assert.ErrorIs(t, err, domain.ErrDanglingEdge)
	assert.Len(t, s.Graph().Edges, 4)
}

func TestApplyEdgeChanges(t *testing.T) {
	s, _ := newSession(t)

	require.NoError(t, s.ApplyEdgeChanges([]editor.EdgeChange{{Type: history.ChangeSelect, ID: "e1", Selected: true}}))
	assert.False(t, s.CanUndo())

	require.NoError(t, s.ApplyEdgeChanges([]editor.EdgeChange{{Type: history.ChangeRemove, ID: "e2"}}))
	assert.True(t, s.CanUndo())
	assert.Len(t, s.Graph().Edges, 2)

	err := s.ApplyEdgeChanges([]editor.EdgeChange{{Type: history.ChangeRemove, ID: "e2"}})
	assert.ErrorIs(t, err, editor.ErrInvalidChange)
}

func TestUpdateNodeData_Schema(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Register(domain.KindAPI, schema.Schema{
		"url":    schema.Required(schema.String()),
		"method": schema.Optional(schema.String()),
	})
	s, rec := newSession(t, editor.WithSchemas(reg))

	err := s.UpdateNodeData("fetch", domain.NodeData{Label: "Fetch", Extra: map[string]any{"method": "GET"}})
	require.Error(t, err)
	assert.False(t, s.CanUndo())
	notes := rec.notifications()
	require.NotEmpty(t, notes)
	assert.Equal(t, domain.SeverityError, notes[len(notes)-1].Severity)

	require.NoError(t, s.UpdateNodeData("fetch", domain.NodeData{Label: "Fetch", Extra: map[string]any{"url": "https://x"}}))
	assert.Equal(t, "https://x", graphNode(s, "fetch").Data.Extra["url"])
	assert.True(t, s.CanUndo())

	assert.ErrorIs(t, s.UpdateNodeData("ghost", domain.NodeData{}), domain.ErrNodeNotFound)
}

func TestHistoryNotifications(t *testing.T) {
	s, rec := newSession(t)
	rec.mu.Lock()
	rec.history = nil
	rec.mu.Unlock()

	require.NoError(t, s.ApplyNodeChanges([]editor.NodeChange{{Type: history.ChangePosition, ID: "out"}}))
	require.NoError(t, s.Undo())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, [][2]bool{{true, false}, {false, true}}, rec.history)
}

func TestRestoreVersion(t *testing.T) {
	s, _ := newSession(t)
	require.NoError(t, s.ApplyNodeChanges([]editor.NodeChange{{Type: history.ChangePosition, ID: "out"}}))
	require.True(t, s.CanUndo())

	doc := document.FromGraph("v1", "older", domain.Graph{Nodes: []domain.Node{node("only", "api", "Only", 0, 0)}})
	require.NoError(t, s.RestoreVersion(doc))

	assert.Equal(t, []string{"only"}, ids(s.Graph().Nodes))
	assert.False(t, s.CanUndo())
	assert.Equal(t, "wf-1", s.WorkflowID())
	assert.Equal(t, "v1", s.Name())
}

func TestInspectorClosesWhenNodeIsUndoneAway(t *testing.T) {
	s, rec := newSession(t)
	require.NoError(t, s.ApplyNodeChanges([]editor.NodeChange{{
		Type: history.ChangeAdd, Node: &domain.Node{ID: "new", Kind: "api"},
	}}))
	require.NoError(t, s.OpenInspector("new"))

	require.NoError(t, s.Undo())
	assert.Equal(t, "", s.Inspector())
	assert.Equal(t, []string{"new"}, rec.inspector)
}

func TestExport(t *testing.T) {
	s, _ := newSession(t)
	out, err := s.Export(document.FormatJSON)
	require.NoError(t, err)

	doc, err := document.Parse(out, document.FormatJSON)
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 4)
	assert.Len(t, doc.Edges, 3)
}

func TestClosedSession(t *testing.T) {
	s, _ := newSession(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.ApplyNodeChanges(nil), domain.ErrSessionClosed)
	assert.ErrorIs(t, s.Undo(), domain.ErrSessionClosed)
	assert.ErrorIs(t, s.Open(context.Background(), "wf", domain.Graph{}), domain.ErrSessionClosed)
	_, err := s.Run(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestParseCleanClosePolicy(t *testing.T) {
	for in, want := range map[string]editor.CleanClosePolicy{
		"":        editor.CleanCloseKeep,
		"keep":    editor.CleanCloseKeep,
		"partial": editor.CleanClosePartial,
	} {
		t.Run(fmt.Sprintf("%q", in), func(t *testing.T) {
			got, err := editor.ParseCleanClosePolicy(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
	_, err := editor.ParseCleanClosePolicy("drop")
	assert.Error(t, err)
}
