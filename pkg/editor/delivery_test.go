package editor_test

import (
	"sync"
	"testing"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/editor"
	"github.com/aretw0/weft/pkg/history"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedSink tracks what the view last saw of node "fetch". Once armed, the
// next runtime update is held until release is closed.
type gatedSink struct {
	ports.NopSink

	mu      sync.Mutex
	seen    []string
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func newGatedSink() *gatedSink {
	return &gatedSink{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSink) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
}

func (g *gatedSink) add(entry string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = append(g.seen, entry)
}

func (g *gatedSink) events() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.seen...)
}

func (g *gatedSink) OnGraphChanged(gr domain.Graph) {
	if n := gr.Node("fetch"); n != nil {
		g.add("graph:" + n.Label())
	}
}

func (g *gatedSink) OnRuntimeUpdated(nodes []domain.Node) {
	g.mu.Lock()
	hold := g.armed
	g.armed = false
	g.mu.Unlock()
	if hold {
		close(g.entered)
		<-g.release
	}
	for i := range nodes {
		if nodes[i].ID == "fetch" {
			g.add("runtime:" + nodes[i].Label())
		}
	}
}

func TestSession_DeliversInChangeOrder(t *testing.T) {
	sink := newGatedSink()
	f := newRunFixture(t, editor.WithSink(sink))
	_, pipe := f.start(t)
	before := len(sink.events())

	sink.arm()
	require.NoError(t, pipe.Push(map[string]any{"node": "fetch_1", "status": "success"}))
	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("runtime update was not delivered")
	}

	// the event pump is stuck in the view; the edit must queue behind it
	require.NoError(t, f.s.UpdateNodeData("fetch", domain.NodeData{Label: "Renamed"}))
	require.NoError(t, pipe.Push(map[string]any{"node": "fetch_1", "status": "running"}))
	close(sink.release)

	f.eventually(t, func() bool { return len(sink.events()) == before+3 })
	assert.Equal(t, []string{"runtime:Fetch", "graph:Renamed", "runtime:Renamed"}, sink.events()[before:])
	assert.Equal(t, "Renamed", graphNode(f.s, "fetch").Label())
}

func TestSession_RestoringEndsAfterDelivery(t *testing.T) {
	s, rec := newSession(t)
	require.NoError(t, s.UpdateNodeData("fetch", domain.NodeData{Label: "A"}))

	echoed := false
	var echoErr error
	rec.onGraph = func(g domain.Graph) {
		if echoed {
			return
		}
		echoed = true
		echoErr = s.ApplyNodeChanges([]editor.NodeChange{
			{Type: history.ChangePosition, ID: "fetch", Position: domain.Position{X: 1, Y: 1}},
		})
	}

	require.NoError(t, s.Undo())
	require.True(t, echoed)
	require.NoError(t, echoErr)
	assert.False(t, s.CanUndo(), "the echo did not snapshot")
	assert.True(t, s.CanRedo(), "the echo did not clear the redo stack")

	require.NoError(t, s.UpdateNodeData("fetch", domain.NodeData{Label: "B"}))
	assert.True(t, s.CanUndo(), "edits after the undo snapshot again")
	assert.False(t, s.CanRedo())
}
