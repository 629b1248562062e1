// Package tests holds reusable contract suites for port implementations.
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

// NewRecord builds a small record for store tests.
func NewRecord(workflowID, id string, start time.Time) *domain.ExecutionRecord {
	g := domain.Graph{
		Nodes: []domain.Node{
			{ID: "a", Kind: "api", Data: domain.NodeData{Label: "A"}},
			{ID: "b", Kind: "python", Data: domain.NodeData{Label: "B"}},
		},
		Edges: []domain.Edge{{ID: "e", Source: "a", Target: "b"}},
	}
	return domain.NewExecutionRecord(id, "run-"+id, workflowID, g, map[string]string{"a_0": "a", "b_1": "b"}, start)
}

// RecordStoreContractTest verifies that a store complies with ports.RecordStore.
func RecordStoreContractTest(t *testing.T, store ports.RecordStore) {
	t.Helper()
	ctx := context.Background()
	workflowID := "contract-" + time.Now().Format("20060102150405.000000")
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		rec := NewRecord(workflowID, "r1", start)
		rec.Append(domain.LogEntry{Timestamp: start, Level: domain.LevelError, Message: "boom"})
		rec.Nodes[0].Runtime = &domain.RuntimeSnapshot{Outputs: map[string]any{"rows": 2.0}, UpdatedAt: start}
		rec.Finish(domain.RunFailed, start.Add(3*time.Second))

		require.NoError(t, store.Save(ctx, rec))

		loaded, err := store.Load(ctx, workflowID, "r1")
		require.NoError(t, err)
		assert.Equal(t, domain.RunFailed, loaded.Status)
		assert.Equal(t, int64(3000), loaded.DurationMs)
		assert.Equal(t, 1, loaded.IssueCount)
		require.NotNil(t, loaded.EndTime)
		assert.True(t, loaded.EndTime.Equal(start.Add(3*time.Second)))
		assert.Equal(t, "a", loaded.Metadata.GraphToCanvas["a_0"])
		require.NotNil(t, loaded.Nodes[0].Runtime)
		assert.Equal(t, map[string]any{"rows": 2.0}, loaded.Nodes[0].Runtime.Outputs)
	})

	t.Run("Saved copy is detached", func(t *testing.T) {
		rec := NewRecord(workflowID, "r-detached", start)
		require.NoError(t, store.Save(ctx, rec))
		rec.Status = domain.RunSuccess

		loaded, err := store.Load(ctx, workflowID, "r-detached")
		require.NoError(t, err)
		assert.Equal(t, domain.RunRunning, loaded.Status)
		_ = store.Delete(ctx, workflowID, "r-detached")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, workflowID, "missing")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)

		_, err = store.Load(ctx, "other-"+workflowID, "r1")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound, "records are scoped by workflow")
	})

	t.Run("List newest first", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, NewRecord(workflowID, "r0", start.Add(-time.Hour))))
		require.NoError(t, store.Save(ctx, NewRecord(workflowID, "r2", start.Add(time.Hour))))

		list, err := store.List(ctx, workflowID)
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, r := range list {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, []string{"r2", "r1", "r0"}, ids)

		empty, err := store.List(ctx, "unknown-"+workflowID)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, workflowID, "r0"))
		_, err := store.Load(ctx, workflowID, "r0")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound, "Load after Delete should return ErrRecordNotFound")

		require.NoError(t, store.Delete(ctx, workflowID, "r0"), "deleting twice is not an error")

		list, err := store.List(ctx, workflowID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("Cleanup", func(t *testing.T) {
		for _, id := range []string{"r1", "r2"} {
			require.NoError(t, store.Delete(ctx, workflowID, id))
		}
		list, err := store.List(ctx, workflowID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
