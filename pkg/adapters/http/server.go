// Package http serves a read-mostly browser over persisted execution
// records, plus a server-sent event feed of live record updates.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/observability"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/records"
	"github.com/go-chi/chi/v5"
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	Records *records.Manager
	Streams *StreamManager
	Metrics *observability.Metrics
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics exposes m on GET /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.Metrics = m
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server browsing the records of recs.
func NewServer(recs *records.Manager, opts ...Option) *Server {
	s := &Server{
		Records: recs,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	return s
}

// NewHandler creates the HTTP handler for recs.
func NewHandler(recs *records.Manager, opts ...Option) http.Handler {
	return NewServer(recs, opts...).Handler()
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Route("/workflows/{workflowID}", func(r chi.Router) {
		r.Get("/records", s.ListRecords)
		r.Get("/records/{recordID}", s.GetRecord)
		r.Delete("/records/{recordID}", s.DeleteRecord)
		r.Get("/events", s.SubscribeEvents)
	})
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler())
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "weft-http",
		"version": strings.TrimSpace(weft.Version),
	})
}

// recordSummary is the list view of a record; logs and node views are
// only returned by GetRecord.
type recordSummary struct {
	ID         string           `json:"id"`
	RunID      string           `json:"runId"`
	Status     domain.RunStatus `json:"status"`
	StartTime  string           `json:"startTime"`
	DurationMs int64            `json:"durationMs"`
	IssueCount int              `json:"issueCount"`
}

// ListRecords handles GET /workflows/{workflowID}/records.
func (s *Server) ListRecords(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	recs, err := s.Records.List(r.Context(), workflowID)
	if err != nil {
		s.writeError(w, "List records", err)
		return
	}
	out := make([]recordSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordSummary{
			ID:         rec.ID,
			RunID:      rec.RunID,
			Status:     rec.Status,
			StartTime:  rec.StartTime.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			DurationMs: rec.DurationMs,
			IssueCount: rec.IssueCount,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetRecord handles GET /workflows/{workflowID}/records/{recordID}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Records.Load(r.Context(), chi.URLParam(r, "workflowID"), chi.URLParam(r, "recordID"))
	if err != nil {
		s.writeError(w, "Load record", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /workflows/{workflowID}/records/{recordID}.
func (s *Server) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	recordID := chi.URLParam(r, "recordID")
	if err := s.Records.Delete(r.Context(), workflowID, recordID); err != nil {
		s.writeError(w, "Delete record", err)
		return
	}
	s.Streams.Broadcast(workflowID, fmt.Sprintf(`{"deleted":%q}`, recordID))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, domain.ErrRecordNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
	s.logger.Error(op+" failed", "error", err)
}

// StreamManager fans record updates out to SSE subscribers per workflow.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(workflowID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[workflowID]; !ok {
		sm.subscribers[workflowID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[workflowID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[workflowID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, workflowID)
			}
		}
	}
}

// Subscribers returns the number of open subscriptions for workflowID.
func (sm *StreamManager) Subscribers(workflowID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[workflowID])
}

func (sm *StreamManager) Broadcast(workflowID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[workflowID] {
		select {
		case ch <- msg:
		default:
			// slow client
			sm.logger.Warn("SSE: Client buffer full, dropping message", "workflow_id", workflowID)
		}
	}
}

// SubscribeEvents handles GET /workflows/{workflowID}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	workflowID := chi.URLParam(r, "workflowID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(workflowID)
	defer cancel()
	s.logger.Info("SSE: Subscribed to record updates", "workflow_id", workflowID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "workflow_id", workflowID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Sink returns an EventSink that publishes execution updates of an editor
// session to the SSE subscribers of the record's workflow.
func (s *Server) Sink() ports.EventSink {
	return recordFeed{streams: s.Streams, logger: s.logger}
}

type recordFeed struct {
	ports.NopSink
	streams *StreamManager
	logger  *slog.Logger
}

func (f recordFeed) OnExecutionUpdated(rec *domain.ExecutionRecord) {
	b, err := json.Marshal(rec)
	if err != nil {
		f.logger.Error("Failed to encode record update", "error", err)
		return
	}
	f.streams.Broadcast(rec.WorkflowID, string(b))
}
