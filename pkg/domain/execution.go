package domain

import (
	"sort"
	"time"
)

// RunStatus is the lifecycle status of a workflow run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
	RunPartial RunStatus = "partial"
)

// IsTerminal reports whether no further transitions can follow s.
func (s RunStatus) IsTerminal() bool {
	return s == RunSuccess || s == RunFailed || s == RunPartial
}

// NodeStatus returns the status a still-running node settles to once the
// run reaches s.
func (s RunStatus) NodeStatus() NodeStatus {
	switch s {
	case RunFailed:
		return NodeError
	case RunPartial:
		return NodeWarning
	case RunRunning:
		return NodeRunning
	default:
		return NodeSuccess
	}
}

// LogLevel is the severity of an execution log entry.
type LogLevel string

const (
	LevelInfo    LogLevel = "INFO"
	LevelDebug   LogLevel = "DEBUG"
	LevelError   LogLevel = "ERROR"
	LevelWarning LogLevel = "WARNING"
)

// LogEntry is one line of the execution log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// ExecutionNodeView mirrors a canvas node inside an execution record.
type ExecutionNodeView struct {
	ID       string           `json:"id"`
	Kind     string           `json:"kind"`
	Label    string           `json:"label"`
	Position Position         `json:"position"`
	Status   NodeStatus       `json:"status"`
	Runtime  *RuntimeSnapshot `json:"runtime,omitempty"`
}

// ExecutionEdgeView mirrors a canvas edge inside an execution record.
type ExecutionEdgeView struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// ExecutionMetadata carries run-scoped lookup data.
type ExecutionMetadata struct {
	// GraphToCanvas maps engine node ids to canvas node ids.
	// Built once when the run starts and never modified afterwards.
	GraphToCanvas map[string]string `json:"graphToCanvas"`
}

// ExecutionRecord is the persisted account of a single run.
type ExecutionRecord struct {
	ID         string              `json:"id"`
	RunID      string              `json:"runId"`
	WorkflowID string              `json:"workflowId,omitempty"`
	Status     RunStatus           `json:"status"`
	StartTime  time.Time           `json:"startTime"`
	EndTime    *time.Time          `json:"endTime,omitempty"`
	DurationMs int64               `json:"durationMs"`
	IssueCount int                 `json:"issueCount"`
	Nodes      []ExecutionNodeView `json:"nodes"`
	Edges      []ExecutionEdgeView `json:"edges"`
	Logs       []LogEntry          `json:"logs"`
	Metadata   ExecutionMetadata   `json:"metadata"`
	// Sealed holds the encrypted body of a record stored through an
	// encrypting store; the fields above it stay readable for listing.
	Sealed     string              `json:"sealed,omitempty"`
}

// NewExecutionRecord mirrors g into a fresh record with every enabled node
// at running and disabled nodes at idle.
func NewExecutionRecord(id, runID, workflowID string, g Graph, graphToCanvas map[string]string, start time.Time) *ExecutionRecord {
	rec := &ExecutionRecord{
		ID:         id,
		RunID:      runID,
		WorkflowID: workflowID,
		Status:     RunRunning,
		StartTime:  start,
		Nodes:      make([]ExecutionNodeView, 0, len(g.Nodes)),
		Edges:      make([]ExecutionEdgeView, 0, len(g.Edges)),
		Logs:       []LogEntry{},
		Metadata:   ExecutionMetadata{GraphToCanvas: graphToCanvas},
	}
	for _, n := range g.Nodes {
		status := NodeRunning
		if n.Data.Disabled {
			status = NodeIdle
		}
		rec.Nodes = append(rec.Nodes, ExecutionNodeView{
			ID:       n.ID,
			Kind:     n.Kind,
			Label:    n.Label(),
			Position: n.Position,
			Status:   status,
		})
	}
	for _, e := range g.Edges {
		rec.Edges = append(rec.Edges, ExecutionEdgeView{ID: e.ID, Source: e.Source, Target: e.Target})
	}
	return rec
}

// Node returns the view for a canvas node id, or nil.
func (r *ExecutionRecord) Node(id string) *ExecutionNodeView {
	for i := range r.Nodes {
		if r.Nodes[i].ID == id {
			return &r.Nodes[i]
		}
	}
	return nil
}

// Append adds a log entry, counting errors as issues.
func (r *ExecutionRecord) Append(entry LogEntry) {
	r.Logs = append(r.Logs, entry)
	if entry.Level == LevelError {
		r.IssueCount++
	}
}

// Touch recomputes the duration against now.
func (r *ExecutionRecord) Touch(now time.Time) {
	r.DurationMs = now.Sub(r.StartTime).Milliseconds()
}

// Finish moves the record to a terminal status and stamps the end time.
// It does nothing if the record is already terminal.
func (r *ExecutionRecord) Finish(status RunStatus, now time.Time) bool {
	if r.Status.IsTerminal() || !status.IsTerminal() {
		return false
	}
	r.Status = status
	end := now
	r.EndTime = &end
	r.Touch(now)
	return true
}

// Clone returns a deep copy of the record.
func (r *ExecutionRecord) Clone() *ExecutionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Nodes = make([]ExecutionNodeView, len(r.Nodes))
	for i, n := range r.Nodes {
		out.Nodes[i] = n
		if n.Runtime != nil {
			rt := n.Runtime.Clone()
			out.Nodes[i].Runtime = &rt
		}
	}
	out.Edges = append([]ExecutionEdgeView(nil), r.Edges...)
	out.Logs = append([]LogEntry(nil), r.Logs...)
	if r.EndTime != nil {
		end := *r.EndTime
		out.EndTime = &end
	}
	if r.Metadata.GraphToCanvas != nil {
		out.Metadata.GraphToCanvas = make(map[string]string, len(r.Metadata.GraphToCanvas))
		for k, v := range r.Metadata.GraphToCanvas {
			out.Metadata.GraphToCanvas[k] = v
		}
	}
	return &out
}

// SortRecordsNewestFirst orders records by descending start time, then by id.
func SortRecordsNewestFirst(recs []*ExecutionRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].StartTime.Equal(recs[j].StartTime) {
			return recs[i].StartTime.After(recs[j].StartTime)
		}
		return recs[i].ID < recs[j].ID
	})
}
