package observability_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/pkg/observability"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	m.SnapshotRecorded()
	m.SnapshotRecorded()
	m.HistoryApplied("undo")
	m.HistoryDepth(3, 1)
	m.OperatorApplied("duplicate")
	m.RunStarted()
	m.EventReconciled("INFO")
	m.EventReconciled("ERROR")
	m.EventMalformed()
	m.RunFinished("failed", 2*time.Second)
	m.StreamClosed()

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[f.GetName()] += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[f.GetName()] += metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, values["weft_history_snapshots_total"])
	assert.Equal(t, 1.0, values["weft_history_operations_total"])
	assert.Equal(t, 4.0, values["weft_history_depth"])
	assert.Equal(t, 2.0, values["weft_events_total"])
	assert.Equal(t, 1.0, values["weft_events_malformed_total"])
	assert.Equal(t, 1.0, values["weft_runs_finished_total"])
	assert.Equal(t, 0.0, values["weft_streams_active"])
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics(nil)
	m.RunStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "weft_runs_started_total 1")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *observability.Metrics
	assert.NotPanics(t, func() {
		m.SnapshotRecorded()
		m.HistoryApplied("redo")
		m.RunStarted()
		m.RunFinished("success", time.Second)
		m.EventMalformed()
		m.StreamClosed()
	})
}
