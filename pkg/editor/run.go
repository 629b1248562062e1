package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/weft/internal/compiler"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/reconcile"
)

// RunRequest is the first message sent on a run's stream.
type RunRequest struct {
	Type        string               `json:"type"`
	GraphConfig compiler.GraphConfig `json:"graph_config"`
	Inputs      map[string]any       `json:"inputs"`
	ExecutionID string               `json:"execution_id"`
}

// RunRequestType is the Type of a RunRequest.
const RunRequestType = "run_workflow"

type activeRun struct {
	id         string
	stream     ports.Stream
	reconciler *reconcile.Reconciler
	cancel     context.CancelFunc
	ctx        context.Context
	done       chan struct{}
	// finished is guarded by the session lock.
	finished bool
}

func (r *activeRun) record() *domain.ExecutionRecord {
	return r.reconciler.Record()
}

type settleFunc func(r *reconcile.Reconciler, g *domain.Graph) reconcile.Outcome

func pauseRun(r *reconcile.Reconciler, g *domain.Graph) reconcile.Outcome { return r.Pause(g) }

func incompleteRun(r *reconcile.Reconciler, g *domain.Graph) reconcile.Outcome {
	return r.Incomplete(g)
}

// Run compiles the graph, opens an engine stream for the workflow, sends
// the run request and starts reconciling its events. A run already in
// progress is paused first. ctx bounds connecting only; the run lives until
// a terminal event, Pause, another Run or Close.
func (s *Session) Run(ctx context.Context, inputs map[string]any) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", domain.ErrSessionClosed
	}
	if s.dialer == nil {
		s.mu.Unlock()
		return "", ErrNoDialer
	}
	if s.starting {
		s.mu.Unlock()
		return "", domain.ErrRunInProgress
	}
	s.stopRunLocked(pauseRun)

	compiled, err := s.compiler.Compile(s.graph)
	if err != nil {
		s.notifyLocked(domain.SeverityError, "Cannot run workflow", err.Error())
		s.unlock()
		return "", err
	}
	workflowID := s.workflowID
	if workflowID == "" {
		workflowID = DraftWorkflowID
	}
	s.starting = true
	s.unlock()

	runID := s.newID()
	logger := s.logger.With("workflow_id", workflowID, "run_id", runID)
	stream, err := s.dialer.Dial(ctx, workflowID)
	if err == nil {
		err = stream.Send(ctx, RunRequest{
			Type:        RunRequestType,
			GraphConfig: compiled.Config,
			Inputs:      inputs,
			ExecutionID: runID,
		})
		if err != nil {
			_ = stream.Close()
		}
	}

	s.mu.Lock()
	defer s.unlock()
	s.starting = false
	if err != nil {
		logger.Error("Failed to start run", "error", err)
		s.notifyLocked(domain.SeverityError, "Failed to start run", err.Error())
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	if s.closed {
		_ = stream.Close()
		return "", domain.ErrSessionClosed
	}

	now := s.now()
	var started []string
	for i := range s.graph.Nodes {
		n := &s.graph.Nodes[i]
		n.Runtime = nil
		if n.Data.Disabled {
			n.Status = domain.NodeIdle
			continue
		}
		n.Status = domain.NodeRunning
		started = append(started, n.ID)
	}
	rec := domain.NewExecutionRecord(s.newID(), runID, workflowID, s.graph, compiled.GraphToCanvas, now)

	runCtx, cancel := context.WithCancel(context.Background())
	run := &activeRun{
		id:     runID,
		stream: stream,
		reconciler: reconcile.New(rec, compiled.GraphToCanvas,
			reconcile.WithClock(s.now),
			reconcile.WithLogger(logger),
		),
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.run = run
	s.lastRun = run
	s.executions = append([]*domain.ExecutionRecord{rec}, s.executions...)

	s.metrics.RunStarted()
	logger.Info("Run started", "steps", len(compiled.Config.Nodes))
	s.saveLocked(rec.Clone())
	s.emitRuntimeLocked(started)
	snapshot := rec.Clone()
	s.emit(func(sink ports.EventSink) { sink.OnExecutionUpdated(snapshot) })

	s.pumps.Add(1)
	go s.pump(run)
	return runID, nil
}

// pump applies the events of run, one at a time, under the session lock.
func (s *Session) pump(run *activeRun) {
	defer s.pumps.Done()
	defer close(run.done)

	for {
		msg, err := run.stream.Receive(run.ctx)

		s.mu.Lock()
		if run.finished {
			s.out.wait(s.unlock())
			return
		}
		if err != nil {
			s.streamEndedLocked(run, err)
			s.out.wait(s.unlock())
			return
		}

		event, derr := reconcile.Decode(msg)
		if derr != nil {
			s.metrics.EventMalformed()
			s.applyOutcomeLocked(run, run.reconciler.Malformed(msg, derr))
			s.notifyLocked(domain.SeverityWarning, "Malformed execution event", derr.Error())
		} else {
			out := run.reconciler.Apply(&s.graph, event)
			if !out.Ignored {
				s.metrics.EventReconciled(string(out.Entry.Level))
			}
			s.applyOutcomeLocked(run, out)
		}
		finished := run.finished
		seq := s.unlock()
		if finished {
			s.out.wait(seq)
			return
		}
	}
}

// streamEndedLocked handles the end of a stream that was not closed by the session.
func (s *Session) streamEndedLocked(run *activeRun, err error) {
	rec := run.record()
	if errors.Is(err, domain.ErrStreamClosed) || errors.Is(err, io.EOF) {
		if s.cleanClose == CleanClosePartial {
			s.applyOutcomeLocked(run, run.reconciler.Incomplete(&s.graph))
		} else {
			s.logger.Warn("Engine closed the stream before the run finished",
				"workflow_id", rec.WorkflowID, "run_id", rec.RunID)
		}
		s.finishRunLocked(run)
		return
	}

	s.logger.Error("Engine connection failed", "workflow_id", rec.WorkflowID, "run_id", rec.RunID, "error", err)
	s.applyOutcomeLocked(run, run.reconciler.Fail(&s.graph, err))
	s.notifyLocked(domain.SeverityError, "Execution connection lost", err.Error())
	s.finishRunLocked(run)
}

// applyOutcomeLocked publishes what a reconciliation step changed and ends
// the run once it reached a terminal status.
func (s *Session) applyOutcomeLocked(run *activeRun, out reconcile.Outcome) {
	if out.Ignored {
		return
	}
	s.emitRuntimeLocked(out.Nodes)
	if out.Terminal {
		s.finishRunLocked(run)
		return
	}
	rec := run.record().Clone()
	s.emit(func(sink ports.EventSink) { sink.OnExecutionUpdated(rec) })
}

// finishRunLocked closes the stream of run, detaches it and persists its record.
func (s *Session) finishRunLocked(run *activeRun) {
	if run.finished {
		return
	}
	run.finished = true
	if s.run == run {
		s.run = nil
	}
	run.cancel()
	if err := run.stream.Close(); err != nil {
		s.logger.Debug("Failed to close engine stream", "run_id", run.id, "error", err)
	}

	rec := run.record()
	s.metrics.RunFinished(string(rec.Status), time.Duration(rec.DurationMs)*time.Millisecond)
	s.metrics.StreamClosed()
	s.logger.Info("Run finished", "workflow_id", rec.WorkflowID, "run_id", rec.RunID,
		"status", rec.Status, "issues", rec.IssueCount)

	snapshot := rec.Clone()
	s.saveLocked(snapshot)
	s.emit(func(sink ports.EventSink) { sink.OnExecutionUpdated(snapshot) })
}

// stopRunLocked settles the active run, if any, and closes its stream.
func (s *Session) stopRunLocked(settle settleFunc) {
	run := s.run
	if run == nil {
		return
	}
	s.applyOutcomeLocked(run, settle(run.reconciler, &s.graph))
	s.finishRunLocked(run)
}

// Pause stops the active run: running nodes become warning and the run is
// partial. A paused run cannot be resumed.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.unlock()
	if s.run == nil {
		return domain.ErrNoActiveRun
	}
	s.stopRunLocked(pauseRun)
	return nil
}

// Running reports whether a run is in progress.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil
}

// WaitRun blocks until the event pump of the most recent run has exited
// and delivered its notifications. It must not be called from a sink callback.
func (s *Session) WaitRun(ctx context.Context) error {
	s.mu.Lock()
	run := s.lastRun
	s.mu.Unlock()
	if run == nil {
		return nil
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Executions returns copies of the workflow's records, newest first.
func (s *Session) Executions() []*domain.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.executions)
}

// HandleBroadcast reacts to application-wide events. On
// domain.BroadcastWorkflowHistoryUpdated the persisted records are reloaded;
// the record of an active run is kept as the live copy. Other names are ignored.
func (s *Session) HandleBroadcast(ctx context.Context, name string) error {
	if name != domain.BroadcastWorkflowHistoryUpdated {
		return nil
	}
	s.mu.Lock()
	workflowID := s.workflowID
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.ErrSessionClosed
	}
	if s.records == nil || workflowID == "" {
		return nil
	}

	loaded, err := s.records.List(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to reload execution records: %w", err)
	}

	s.mu.Lock()
	defer s.unlock()
	if s.workflowID != workflowID {
		return nil
	}
	if s.run != nil {
		live := s.run.record()
		found := false
		for i, r := range loaded {
			if r.ID == live.ID {
				loaded[i] = live
				found = true
			}
		}
		if !found {
			loaded = append([]*domain.ExecutionRecord{live}, loaded...)
		}
	}
	s.executions = loaded
	s.emitRecordsLocked()
	return nil
}

// DeleteRecord removes a finished record from the session and the store.
// The record of the active run cannot be deleted.
func (s *Session) DeleteRecord(ctx context.Context, recordID string) error {
	s.mu.Lock()
	if s.run != nil && s.run.record().ID == recordID {
		s.mu.Unlock()
		return domain.ErrRunInProgress
	}
	workflowID := s.workflowID
	known := false
	for _, r := range s.executions {
		if r.ID == recordID {
			known = true
			workflowID = r.WorkflowID
		}
	}
	s.mu.Unlock()

	if s.records != nil && workflowID != "" {
		if _, err := s.records.Load(ctx, workflowID, recordID); err == nil {
			known = true
		}
		if err := s.records.Delete(ctx, workflowID, recordID); err != nil {
			return fmt.Errorf("failed to delete record %q: %w", recordID, err)
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", domain.ErrRecordNotFound, recordID)
	}

	s.mu.Lock()
	defer s.unlock()
	kept := s.executions[:0]
	for _, r := range s.executions {
		if r.ID != recordID {
			kept = append(kept, r)
		}
	}
	s.executions = kept
	s.emitRecordsLocked()
	return nil
}
