package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	weftHttp "github.com/aretw0/weft/pkg/adapters/http"
	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/observability"
	"github.com/aretw0/weft/pkg/ports/tests"
	"github.com/aretw0/weft/pkg/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *records.Manager {
	t.Helper()
	mgr := records.NewManager(memory.NewStore())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, mgr.Save(ctx, tests.NewRecord("wf", "old", base)))
	require.NoError(t, mgr.Save(ctx, tests.NewRecord("wf", "new", base.Add(time.Minute))))
	return mgr
}

func TestHealth(t *testing.T) {
	h := weftHttp.NewHandler(records.NewManager(memory.NewStore()))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListRecords(t *testing.T) {
	h := weftHttp.NewHandler(seeded(t))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/workflows/wf/records", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0]["id"], "newest first")
	assert.Equal(t, "old", got[1]["id"])
	assert.Equal(t, "running", got[0]["status"])
	assert.NotContains(t, got[0], "logs")
}

func TestListRecords_UnknownWorkflowIsEmpty(t *testing.T) {
	h := weftHttp.NewHandler(seeded(t))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/workflows/other/records", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetRecord(t *testing.T) {
	h := weftHttp.NewHandler(seeded(t))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/workflows/wf/records/old", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var rec domain.ExecutionRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "old", rec.ID)
	assert.Len(t, rec.Nodes, 2)
	assert.Equal(t, "a", rec.Metadata.GraphToCanvas["a_0"])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/workflows/wf/records/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteRecord(t *testing.T) {
	mgr := seeded(t)
	h := weftHttp.NewHandler(mgr)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("DELETE", "/workflows/wf/records/old", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := mgr.Load(context.Background(), "wf", "old")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestMetricsRoute(t *testing.T) {
	m := observability.NewMetrics(nil)
	m.RunStarted()

	h := weftHttp.NewHandler(records.NewManager(memory.NewStore()), weftHttp.WithMetrics(m))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "weft_runs_started_total")

	bare := weftHttp.NewHandler(records.NewManager(memory.NewStore()))
	w = httptest.NewRecorder()
	bare.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := weftHttp.NewHandler(records.NewManager(memory.NewStore()))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/workflows/wf/records", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubscribeEvents(t *testing.T) {
	s := weftHttp.NewServer(seeded(t))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/workflows/wf/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	readData := func() string {
		for {
			line, err := rd.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}
	assert.Equal(t, "connected", readData())
	assert.Equal(t, 1, s.Streams.Subscribers("wf"))

	rec := tests.NewRecord("wf", "live", time.Now())
	s.Sink().OnExecutionUpdated(rec)

	var got domain.ExecutionRecord
	require.NoError(t, json.Unmarshal([]byte(readData()), &got))
	assert.Equal(t, "live", got.ID)

	s.Sink().OnExecutionUpdated(tests.NewRecord("other", "x", time.Now()))
	s.Streams.Broadcast("wf", `{"ping":true}`)
	assert.JSONEq(t, `{"ping":true}`, readData(), "updates of other workflows are not delivered")
}
