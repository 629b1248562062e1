// Package editor hosts the editing Session of a single workflow canvas.
//
// A Session owns the current graph, its undo history, the search overlay and
// at most one live run. User edits, structural operators and reconciled
// execution events are serialized by the session lock. Observers are told
// about changes through a ports.EventSink, always after the lock has been
// released and in the order the changes were made, so sink callbacks may
// call back into the Session.
//
// Edits are expected from a single caller, the view, which also receives
// the sink callbacks. Changes the view echoes back while the notifications
// of Undo, Redo or an operator are being delivered do not record snapshots;
// an edit made concurrently from another goroutine in that window does not
// either.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/weft/internal/compiler"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/document"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/history"
	"github.com/aretw0/weft/pkg/observability"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/records"
	"github.com/aretw0/weft/pkg/schema"
	"github.com/aretw0/weft/pkg/search"
	"github.com/aretw0/weft/pkg/templates"
	"github.com/google/uuid"
)

// CleanClosePolicy decides what happens to a run whose stream closes
// cleanly before a terminal status arrived.
type CleanClosePolicy int

const (
	// CleanCloseKeep leaves the record and its nodes as they are.
	CleanCloseKeep CleanClosePolicy = iota
	// CleanClosePartial settles the run as partial.
	CleanClosePartial
)

func (p CleanClosePolicy) String() string {
	if p == CleanClosePartial {
		return "partial"
	}
	return "keep"
}

// ParseCleanClosePolicy parses "keep" or "partial".
func ParseCleanClosePolicy(s string) (CleanClosePolicy, error) {
	switch s {
	case "", "keep":
		return CleanCloseKeep, nil
	case "partial":
		return CleanClosePartial, nil
	}
	return CleanCloseKeep, fmt.Errorf("unknown clean close policy %q", s)
}

// DraftWorkflowID scopes the runs of a workflow that has not been saved yet.
const DraftWorkflowID = "draft"

const (
	DefaultFocusMinZoom  = 1.0
	DefaultFocusDuration = 300 * time.Millisecond
	// DefaultPlacementGap separates an inserted sub-graph from the existing graph.
	DefaultPlacementGap = 120.0
)

var (
	DefaultDuplicateOffset = domain.Position{X: 40, Y: 40}
	// DefaultInsertAnchor is where a sub-graph lands on an empty canvas.
	DefaultInsertAnchor = domain.Position{X: 100, Y: 100}
)

// Session is the editing state of one open workflow.
type Session struct {
	mu sync.Mutex

	workflowID  string
	name        string
	description string
	graph       domain.Graph

	selection     map[string]bool
	edgeSelection map[string]bool
	inspector     string

	history      *history.Manager
	restoreDepth int
	search       *search.Index

	run        *activeRun
	lastRun    *activeRun
	starting   bool
	executions []*domain.ExecutionRecord
	pumps      sync.WaitGroup

	closed bool

	// queued while locked, handed to out by unlock
	pending []func()
	out     outbox

	sink            ports.EventSink
	dialer          ports.Dialer
	records         *records.Manager
	compiler        *compiler.Compiler
	schemas         *schema.Registry
	templates       *templates.Library
	metrics         *observability.Metrics
	newID           func() string
	now             func() time.Time
	historyLimit    int
	cleanClose      CleanClosePolicy
	duplicateOffset domain.Position
	focusMinZoom    float64
	focusDuration   time.Duration
	logger          *slog.Logger
}

// Option configures the Session.
type Option func(*Session)

// WithSink registers the observer of session changes.
func WithSink(sink ports.EventSink) Option {
	return func(s *Session) {
		s.sink = sink
	}
}

// WithDialer sets how engine connections are opened for runs.
func WithDialer(d ports.Dialer) Option {
	return func(s *Session) {
		s.dialer = d
	}
}

// WithRecords persists execution records through m.
func WithRecords(m *records.Manager) Option {
	return func(s *Session) {
		s.records = m
	}
}

// WithSchemas validates node data per kind on import and data updates.
func WithSchemas(reg *schema.Registry) Option {
	return func(s *Session) {
		s.schemas = reg
	}
}

// WithTemplates offers the templates of lib to InsertTemplate.
func WithTemplates(lib *templates.Library) Option {
	return func(s *Session) {
		s.templates = lib
	}
}

// WithMetrics records session activity in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithIDGenerator overrides the id source for nodes, edges, runs and records.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) {
		s.newID = fn
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithHistoryLimit caps the undo and redo stacks.
func WithHistoryLimit(n int) Option {
	return func(s *Session) {
		s.historyLimit = n
	}
}

// WithCleanClosePolicy sets the CleanClosePolicy (CleanCloseKeep by default).
func WithCleanClosePolicy(p CleanClosePolicy) Option {
	return func(s *Session) {
		s.cleanClose = p
	}
}

// WithDuplicateOffset sets how far duplicated nodes are moved from their source.
func WithDuplicateOffset(dx, dy float64) Option {
	return func(s *Session) {
		s.duplicateOffset = domain.Position{X: dx, Y: dy}
	}
}

// WithFocus sets the zoom floor and animation length of focus requests.
func WithFocus(minZoom float64, duration time.Duration) Option {
	return func(s *Session) {
		s.focusMinZoom = minZoom
		s.focusDuration = duration
	}
}

// WithLogger configures a logger for the Session.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates a Session with an empty, unsaved graph.
func New(opts ...Option) *Session {
	s := &Session{
		selection:       make(map[string]bool),
		edgeSelection:   make(map[string]bool),
		search:          search.New(),
		sink:            ports.NopSink{},
		compiler:        compiler.New(),
		newID:           uuid.NewString,
		now:             time.Now,
		historyLimit:    history.DefaultLimit,
		duplicateOffset: DefaultDuplicateOffset,
		focusMinZoom:    DefaultFocusMinZoom,
		focusDuration:   DefaultFocusDuration,
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.history = history.New(
		history.WithLimit(s.historyLimit),
		history.WithLogger(s.logger),
		history.WithOnChange(s.historyChanged),
	)
	return s
}

// historyChanged runs under the session lock.
func (s *Session) historyChanged(canUndo, canRedo bool) {
	s.metrics.HistoryDepth(s.history.Depth())
	s.emit(func(sink ports.EventSink) { sink.OnHistoryChanged(canUndo, canRedo) })
}

func (s *Session) emit(note func(ports.EventSink)) {
	s.pending = append(s.pending, func() { note(s.sink) })
}

// saveLocked queues rec for persistence ahead of the notifications that follow.
func (s *Session) saveLocked(rec *domain.ExecutionRecord) {
	s.pending = append(s.pending, func() { s.persist(rec) })
}

// unlock hands the queued work to the outbox while still holding the lock,
// releases it and delivers. It returns the outbox position of the work.
func (s *Session) unlock() uint64 {
	seq := s.out.push(s.pending)
	s.pending = nil
	s.mu.Unlock()

	s.out.drain()
	return seq
}

func (s *Session) persist(rec *domain.ExecutionRecord) {
	if s.records == nil || rec.WorkflowID == "" {
		return
	}
	if err := s.records.Save(context.Background(), rec); err != nil {
		s.logger.Warn("Failed to persist execution record",
			"workflow_id", rec.WorkflowID, "record_id", rec.ID, "error", err)
	}
}

// restoring runs fn under the lock with the history's restoring flag raised.
// The flag is lowered once the notifications queued by fn have been delivered.
func (s *Session) restoring(fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	s.restoreDepth++
	s.history.SetRestoring(true)
	err := fn()
	s.pending = append(s.pending, s.endRestore)
	s.unlock()
	return err
}

func (s *Session) endRestore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreDepth--
	if s.restoreDepth == 0 {
		s.history.SetRestoring(false)
	}
}

// snapshotLocked records the current graph before a user edit.
func (s *Session) snapshotLocked(force bool) {
	if s.history.Record(s.graph, force) {
		s.metrics.SnapshotRecorded()
	}
}

func (s *Session) notifyLocked(severity domain.Severity, title, message string) {
	n := domain.Notification{Severity: severity, Title: title, Message: message}
	s.emit(func(sink ports.EventSink) { sink.OnNotify(n) })
}

func (s *Session) emitGraphLocked() {
	g := s.graph.Clone()
	s.emit(func(sink ports.EventSink) { sink.OnGraphChanged(g) })
}

func (s *Session) emitRuntimeLocked(ids []string) {
	if len(ids) == 0 {
		return
	}
	nodes := make([]domain.Node, 0, len(ids))
	for _, id := range ids {
		if n := s.graph.Node(id); n != nil {
			nodes = append(nodes, n.Clone())
		}
	}
	if len(nodes) == 0 {
		return
	}
	s.emit(func(sink ports.EventSink) { sink.OnRuntimeUpdated(nodes) })
}

func (s *Session) emitRecordsLocked() {
	recs := cloneRecords(s.executions)
	s.emit(func(sink ports.EventSink) { sink.OnRecordsReloaded(recs) })
}

func cloneRecords(in []*domain.ExecutionRecord) []*domain.ExecutionRecord {
	out := make([]*domain.ExecutionRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// normalize gives every node a status.
func normalize(g domain.Graph) domain.Graph {
	out := g.Clone()
	for i := range out.Nodes {
		if out.Nodes[i].Status == "" {
			out.Nodes[i].Status = domain.NodeIdle
		}
	}
	return out
}

// resetViewLocked drops selection, search and inspector state.
func (s *Session) resetViewLocked() {
	clear(s.selection)
	clear(s.edgeSelection)
	s.search.Close()
	if s.inspector != "" {
		id := s.inspector
		s.inspector = ""
		s.emit(func(sink ports.EventSink) { sink.OnInspectorClose(id) })
	}
}

// Open replaces the session content with workflow workflowID. History,
// selection and search are reset, any active run is stopped and the
// persisted records of the workflow are loaded.
func (s *Session) Open(ctx context.Context, workflowID string, g domain.Graph) error {
	return s.open(ctx, workflowID, "", "", g)
}

// LoadWorkflow opens a parsed workflow document.
func (s *Session) LoadWorkflow(ctx context.Context, workflowID string, doc *document.Document) error {
	g, err := doc.Graph(s.newID)
	if err != nil {
		return fmt.Errorf("failed to load workflow: %w", err)
	}
	return s.open(ctx, workflowID, doc.Name, doc.Description, g)
}

func (s *Session) open(ctx context.Context, workflowID, name, description string, g domain.Graph) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("failed to open workflow: %w", err)
	}

	var recs []*domain.ExecutionRecord
	var loadErr error
	if s.records != nil && workflowID != "" {
		recs, loadErr = s.records.List(ctx, workflowID)
	}

	s.mu.Lock()
	defer s.unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	s.stopRunLocked(pauseRun)

	s.workflowID = workflowID
	s.name = name
	s.description = description
	s.graph = normalize(g)
	s.resetViewLocked()
	s.history.Reset()
	s.executions = recs
	if loadErr != nil {
		s.logger.Warn("Failed to load execution records", "workflow_id", workflowID, "error", loadErr)
		s.notifyLocked(domain.SeverityWarning, "Execution history unavailable", loadErr.Error())
	}
	s.logger.Info("Workflow opened", "workflow_id", workflowID, "nodes", len(s.graph.Nodes), "records", len(recs))

	s.emitGraphLocked()
	s.emitRecordsLocked()
	return nil
}

// RestoreVersion replaces the graph with a stored version of the same
// workflow. The undo history is cleared; records and any active run are kept.
func (s *Session) RestoreVersion(doc *document.Document) error {
	g, err := doc.Graph(s.newID)
	if err != nil {
		return fmt.Errorf("failed to restore version: %w", err)
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("failed to restore version: %w", err)
	}
	return s.restoring(func() error {
		s.name = doc.Name
		s.description = doc.Description
		s.graph = normalize(g)
		s.resetViewLocked()
		s.history.Reset()
		s.emitGraphLocked()
		return nil
	})
}

// MarkSaved gives an unsaved workflow its persisted identity.
func (s *Session) MarkSaved(workflowID string) {
	s.mu.Lock()
	defer s.unlock()
	s.workflowID = workflowID
}

// Close stops any active run and waits for its event pump to exit.
// It must not be called from a sink callback.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopRunLocked(incompleteRun)
	s.unlock()

	s.pumps.Wait()
	return nil
}

// WorkflowID returns the identity of the open workflow ("" when unsaved).
func (s *Session) WorkflowID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workflowID
}

// Name returns the workflow name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Graph returns a copy of the current graph.
func (s *Session) Graph() domain.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Clone()
}

// CanUndo reports whether Undo would succeed.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether Redo would succeed.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// Export renders the current graph as a workflow document.
func (s *Session) Export(format document.Format) ([]byte, error) {
	s.mu.Lock()
	doc := document.FromGraph(s.name, s.description, s.graph.Clone())
	s.mu.Unlock()
	return document.Marshal(doc, format)
}
