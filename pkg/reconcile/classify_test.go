package reconcile_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/reconcile"
)

var (
	epoch   = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mapping = map[string]string{"fetch_0": "c1", "store_1": "c2"}
)

func labels(id string) string {
	return map[string]string{"c1": "Fetch", "c2": "Store"}[id]
}

func TestClassify_Level(t *testing.T) {
	tests := []struct {
		name  string
		event map[string]any
		want  domain.LogLevel
	}{
		{"explicit level wins over error", map[string]any{"level": "debug", "error": "boom"}, domain.LevelDebug},
		{"log_level", map[string]any{"log_level": "WARN"}, domain.LevelWarning},
		{"error field", map[string]any{"error": "boom", "status": "success"}, domain.LevelError},
		{"status failed", map[string]any{"status": "failed"}, domain.LevelError},
		{"status error", map[string]any{"status": "ERROR"}, domain.LevelError},
		{"status cancelled", map[string]any{"status": "cancelled"}, domain.LevelWarning},
		{"status partial", map[string]any{"status": "partial"}, domain.LevelWarning},
		{"status debug", map[string]any{"status": "debug"}, domain.LevelDebug},
		{"default", map[string]any{"status": "success"}, domain.LevelInfo},
		{"empty", map[string]any{}, domain.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := reconcile.Classify(tt.event, mapping, labels, epoch)
			assert.Equal(t, tt.want, c.Level)
		})
	}
}

func TestClassify_Message(t *testing.T) {
	tests := []struct {
		name  string
		event map[string]any
		want  string
	}{
		{"error text", map[string]any{"error": "boom", "message": "ignored"}, "boom"},
		{"error object", map[string]any{"error": map[string]any{"message": "nested"}}, "nested"},
		{"message", map[string]any{"message": "hello"}, "hello"},
		{"msg", map[string]any{"msg": "hi"}, "hi"},
		{"node label", map[string]any{"node_id": "fetch_0", "status": "running"}, "Node Fetch running"},
		{"unmapped node", map[string]any{"step": "other", "status": "success"}, "Node other success"},
		{"run status", map[string]any{"status": "success"}, "Run status changed to success"},
		{"raw json", map[string]any{"foo": 1.0}, `{"foo":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := reconcile.Classify(tt.event, mapping, labels, epoch)
			assert.Equal(t, tt.want, c.Message)
		})
	}
}

func TestClassify_Transitions(t *testing.T) {
	c := reconcile.Classify(map[string]any{"status": "completed"}, mapping, nil, epoch)
	assert.Equal(t, domain.RunSuccess, c.RunStatus)
	assert.Empty(t, c.NodeID)

	c = reconcile.Classify(map[string]any{"node": "fetch_0", "status": "failed"}, mapping, nil, epoch)
	assert.Empty(t, c.RunStatus, "node-scoped status never moves the run")
	assert.Equal(t, "c1", c.NodeID)
	assert.Equal(t, domain.NodeError, c.NodeStatus)

	c = reconcile.Classify(map[string]any{"status": "running", "error": "boom"}, mapping, nil, epoch)
	assert.Equal(t, domain.RunFailed, c.RunStatus, "error forces failure")

	c = reconcile.Classify(map[string]any{"node": "fetch_0", "status": "running", "error": "boom"}, mapping, nil, epoch)
	assert.Equal(t, domain.RunFailed, c.RunStatus, "error forces failure on node events too")
	assert.Equal(t, domain.NodeRunning, c.NodeStatus)

	c = reconcile.Classify(map[string]any{"node": "fetch_0", "error": "boom"}, mapping, nil, epoch)
	assert.Equal(t, domain.NodeError, c.NodeStatus)

	c = reconcile.Classify(map[string]any{"node_id": "raw", "status": "success"}, mapping, nil, epoch)
	assert.Equal(t, "raw", c.NodeID, "unmapped ids are kept as is")

	c = reconcile.Classify(map[string]any{"node": map[string]any{"id": "x"}, "status": "success"}, mapping, nil, epoch)
	assert.Empty(t, c.NodeID, "non-scalar references are ignored")
	assert.Equal(t, domain.RunSuccess, c.RunStatus)
}

func TestClassify_Runtime(t *testing.T) {
	event := map[string]any{
		"fetch_0": map[string]any{
			"results": map[string]any{
				"fetch_0": map[string]any{"input": 1.0, "result": "ok"},
			},
		},
		"results": map[string]any{
			"store_1": map[string]any{"outputs": []any{"a"}, "messages": []any{"m"}},
		},
		"unknown": map[string]any{"outputs": 1.0},
		"store_1x": "not an object",
	}
	c := reconcile.Classify(event, mapping, nil, epoch)

	assert.Len(t, c.Runtime, 2)
	assert.Equal(t, domain.RuntimeSnapshot{
		Inputs:    1.0,
		Outputs:   "ok",
		Raw:       map[string]any{"input": 1.0, "result": "ok"},
		UpdatedAt: epoch,
	}, c.Runtime["c1"])
	assert.Equal(t, []any{"a"}, c.Runtime["c2"].Outputs)
	assert.Equal(t, []any{"m"}, c.Runtime["c2"].Messages)
}

func TestClassify_NodeEventPayload(t *testing.T) {
	c := reconcile.Classify(map[string]any{"node_id": "store_1", "status": "success", "outputs": map[string]any{"rows": 3.0}}, mapping, nil, epoch)
	assert.Equal(t, map[string]any{"rows": 3.0}, c.Runtime["c2"].Outputs)
}
