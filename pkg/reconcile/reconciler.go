package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
)

// Outcome reports what a single reconciliation step changed.
type Outcome struct {
	// Ignored is set when the record was already terminal.
	Ignored bool
	// Entry is the log entry appended to the record.
	Entry domain.LogEntry
	// Nodes lists the canvas ids whose status or runtime changed.
	Nodes []string
	// RunStatus is the record status after the step.
	RunStatus domain.RunStatus
	// Terminal is set when this step moved the record to a terminal status.
	Terminal bool
}

// Reconciler applies the events of one run. It is not safe for concurrent
// use; the owning session serializes calls together with graph edits.
type Reconciler struct {
	record        *domain.ExecutionRecord
	graphToCanvas map[string]string
	pruned        map[string]bool

	now    func() time.Time
	logger *slog.Logger
}

// Option configures the Reconciler.
type Option func(*Reconciler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithLogger configures a logger for the Reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// New creates a Reconciler folding events into record.
// graphToCanvas must not be modified for the lifetime of the run.
func New(record *domain.ExecutionRecord, graphToCanvas map[string]string, opts ...Option) *Reconciler {
	r := &Reconciler{
		record:        record,
		graphToCanvas: graphToCanvas,
		pruned:        make(map[string]bool),
		now:           time.Now,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record returns the record being reconciled.
func (r *Reconciler) Record() *domain.ExecutionRecord {
	return r.record
}

// Prune stops any further updates to the given canvas nodes.
func (r *Reconciler) Prune(ids map[string]bool) {
	for id := range ids {
		r.pruned[id] = true
	}
}

// Decode parses a raw inbound message into an event object.
func Decode(raw []byte) (map[string]any, error) {
	var event map[string]any
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("failed to decode event: not an object")
	}
	return event, nil
}

// Apply folds event into graph and the record.
func (r *Reconciler) Apply(graph *domain.Graph, event map[string]any) Outcome {
	if r.record.Status.IsTerminal() {
		r.logger.Debug("Ignoring event for finished run", "run_id", r.record.RunID)
		return Outcome{Ignored: true, RunStatus: r.record.Status}
	}

	now := r.now()
	labelOf := func(id string) string {
		if n := graph.Node(id); n != nil {
			return n.Label()
		}
		if v := r.record.Node(id); v != nil {
			return v.Label
		}
		return ""
	}
	c := Classify(event, r.graphToCanvas, labelOf, now)

	changed := make(map[string]bool)
	terminal := false

	if c.NodeID != "" && c.NodeStatus != "" {
		if r.setNodeStatus(graph, c.NodeID, c.NodeStatus) {
			changed[c.NodeID] = true
		}
	}
	if c.RunStatus.IsTerminal() && r.record.Finish(c.RunStatus, now) {
		terminal = true
		for _, id := range r.settleRunning(graph, c.RunStatus.NodeStatus()) {
			changed[id] = true
		}
	}

	ids := make([]string, 0, len(c.Runtime))
	for id := range c.Runtime {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if r.mergeRuntime(graph, id, c.Runtime[id]) {
			changed[id] = true
		}
	}

	entry := domain.LogEntry{Timestamp: now, Level: c.Level, Message: c.Message}
	r.record.Append(entry)
	if !terminal {
		r.record.Touch(now)
	}

	return r.outcome(entry, changed, terminal)
}

// Malformed records an event that could not be decoded. The run continues.
func (r *Reconciler) Malformed(raw []byte, err error) Outcome {
	if r.record.Status.IsTerminal() {
		return Outcome{Ignored: true, RunStatus: r.record.Status}
	}
	now := r.now()
	entry := domain.LogEntry{
		Timestamp: now,
		Level:     domain.LevelError,
		Message:   fmt.Sprintf("Malformed event: %v", err),
	}
	r.logger.Warn("Malformed execution event", "run_id", r.record.RunID, "error", err, "size", len(raw))
	r.record.Append(entry)
	r.record.Touch(now)
	return r.outcome(entry, nil, false)
}

// Fail handles a transport error: running nodes become error and the run
// fails unless it already succeeded.
func (r *Reconciler) Fail(graph *domain.Graph, cause error) Outcome {
	msg := "Connection lost"
	if cause != nil {
		msg = fmt.Sprintf("Connection error: %v", cause)
	}
	return r.settle(graph, domain.RunFailed, domain.LevelError, msg)
}

// Pause ends the run at the user's request: running nodes become warning
// and the run is partial.
func (r *Reconciler) Pause(graph *domain.Graph) Outcome {
	return r.settle(graph, domain.RunPartial, domain.LevelWarning, "Run paused by user")
}

// Incomplete resolves a run whose stream closed without a terminal status
// as partial.
func (r *Reconciler) Incomplete(graph *domain.Graph) Outcome {
	return r.settle(graph, domain.RunPartial, domain.LevelWarning, "Stream closed before the run finished")
}

func (r *Reconciler) settle(graph *domain.Graph, status domain.RunStatus, level domain.LogLevel, msg string) Outcome {
	if r.record.Status.IsTerminal() {
		return Outcome{Ignored: true, RunStatus: r.record.Status}
	}
	now := r.now()
	changed := make(map[string]bool)
	for _, id := range r.settleRunning(graph, status.NodeStatus()) {
		changed[id] = true
	}
	entry := domain.LogEntry{Timestamp: now, Level: level, Message: msg}
	r.record.Append(entry)
	r.record.Finish(status, now)
	return r.outcome(entry, changed, true)
}

// settleRunning flips every still-running node to status.
func (r *Reconciler) settleRunning(graph *domain.Graph, status domain.NodeStatus) []string {
	var ids []string
	for i := range graph.Nodes {
		n := &graph.Nodes[i]
		if n.Status != domain.NodeRunning || r.pruned[n.ID] {
			continue
		}
		n.Status = status
		ids = append(ids, n.ID)
	}
	for i := range r.record.Nodes {
		if r.record.Nodes[i].Status == domain.NodeRunning {
			r.record.Nodes[i].Status = status
		}
	}
	return ids
}

func (r *Reconciler) setNodeStatus(graph *domain.Graph, id string, status domain.NodeStatus) bool {
	if r.pruned[id] {
		return false
	}
	if v := r.record.Node(id); v != nil {
		v.Status = status
	}
	n := graph.Node(id)
	if n == nil || n.Status == status {
		return false
	}
	n.Status = status
	return true
}

func (r *Reconciler) mergeRuntime(graph *domain.Graph, id string, snap domain.RuntimeSnapshot) bool {
	if r.pruned[id] {
		return false
	}
	if v := r.record.Node(id); v != nil {
		merged := v.Runtime.Merge(snap).Clone()
		v.Runtime = &merged
	}
	n := graph.Node(id)
	if n == nil {
		return false
	}
	merged := n.Runtime.Merge(snap).Clone()
	n.Runtime = &merged
	return true
}

func (r *Reconciler) outcome(entry domain.LogEntry, changed map[string]bool, terminal bool) Outcome {
	out := Outcome{
		Entry:     entry,
		RunStatus: r.record.Status,
		Terminal:  terminal,
	}
	for id := range changed {
		out.Nodes = append(out.Nodes, id)
	}
	sort.Strings(out.Nodes)
	return out
}
