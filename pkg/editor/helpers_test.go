package editor_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/editor"
	"github.com/stretchr/testify/require"
)

// recorder is an EventSink keeping everything it is told.
type recorder struct {
	mu        sync.Mutex
	graphs    []domain.Graph
	runtime   [][]domain.Node
	history   [][2]bool
	records   []*domain.ExecutionRecord
	notes     []domain.Notification
	focus     []domain.FocusRequest
	inspector []string
	reloads   [][]*domain.ExecutionRecord

	onGraph func(domain.Graph)
}

func (r *recorder) OnGraphChanged(g domain.Graph) {
	r.mu.Lock()
	r.graphs = append(r.graphs, g)
	hook := r.onGraph
	r.mu.Unlock()
	if hook != nil {
		hook(g)
	}
}

func (r *recorder) OnRuntimeUpdated(nodes []domain.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtime = append(r.runtime, nodes)
}

func (r *recorder) OnHistoryChanged(canUndo, canRedo bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, [2]bool{canUndo, canRedo})
}

func (r *recorder) OnExecutionUpdated(rec *domain.ExecutionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recorder) OnNotify(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) OnFocus(req domain.FocusRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.focus = append(r.focus, req)
}

func (r *recorder) OnInspectorClose(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inspector = append(r.inspector, id)
}

func (r *recorder) OnRecordsReloaded(recs []*domain.ExecutionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloads = append(r.reloads, recs)
}

func (r *recorder) notifications() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.notes...)
}

func (r *recorder) lastRecord() *domain.ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return nil
	}
	return r.records[len(r.records)-1]
}

// sequence returns an id generator yielding id-1, id-2, ...
func sequence() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func node(id, kind, label string, x, y float64) domain.Node {
	return domain.Node{
		ID:       id,
		Kind:     kind,
		Position: domain.Position{X: x, Y: y},
		Status:   domain.NodeIdle,
		Data:     domain.NodeData{Label: label},
	}
}

// pipeline is trigger -> fetch -> parse -> out.
func pipeline() domain.Graph {
	return domain.Graph{
		Nodes: []domain.Node{
			node("trigger", domain.KindTrigger, "Start", 0, 0),
			node("fetch", domain.KindAPI, "Fetch", 200, 0),
			node("parse", domain.KindPython, "Parse", 400, 0),
			node("out", domain.KindOutput, "Output", 600, 0),
		},
		Edges: []domain.Edge{
			{ID: "e1", Source: "trigger", Target: "fetch"},
			{ID: "e2", Source: "fetch", Target: "parse"},
			{ID: "e3", Source: "parse", Target: "out"},
		},
	}
}

func newSession(t *testing.T, opts ...editor.Option) (*editor.Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	base := []editor.Option{
		editor.WithSink(rec),
		editor.WithIDGenerator(sequence()),
		editor.WithClock(fixedClock()),
	}
	s := editor.New(append(base, opts...)...)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Open(context.Background(), "wf-1", pipeline()))
	return s, rec
}

// graphNode returns the node id of a copy of the session graph.
func graphNode(s *editor.Session, id string) *domain.Node {
	g := s.Graph()
	return g.Node(id)
}

func ids(nodes []domain.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
