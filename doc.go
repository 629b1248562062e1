/*
Package weft is the editing core of a node-based workflow canvas.

It owns a workflow graph (nodes and directed edges) and everything a
canvas front-end does to it that is not drawing: undoable edits, structural
operators (duplicate, delete, import, sub-graph insertion), live run
status reconciled from an execution engine's event stream, and search with
camera focus. Rendering lives elsewhere; the core talks to it through a
ports.EventSink.

# Concept

A Session (package editor) holds one open workflow. Every change to the
graph flows through it:

  - History records discrete snapshots of the structural graph and
    implements undo and redo (package history).
  - Operators apply whole-selection changes as a single undo step.
  - Run compiles the graph for the engine, streams its events back and
    folds them into node statuses and an ExecutionRecord (package
    reconcile).
  - Search matches node labels and ids, cycling through hits (package
    search).

Execution records can be persisted in memory, on disk or in Redis
(package records and pkg/adapters).

# Usage

	s, err := weft.Open(ctx, "flows/pipeline.yaml", nil,
		editor.WithDialer(websocket.New("ws://localhost:8000/ws/{workflow}")),
		editor.WithSink(mySink),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	// Edit
	if _, err := s.Duplicate([]string{"fetch"}); err != nil {
		log.Println(err)
	}
	_ = s.Undo()

	// Run and wait for the terminal event
	if _, err := s.Run(ctx, map[string]any{"query": "weather"}); err != nil {
		log.Fatal(err)
	}
	if err := s.WaitRun(ctx); err != nil {
		log.Fatal(err)
	}
	rec := s.Executions()[0]
	log.Printf("run %s finished: %s", rec.RunID, rec.Status)

Recorded event streams can be replayed without an engine with Replay.
*/
package weft
