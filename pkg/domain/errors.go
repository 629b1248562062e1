package domain

import "errors"

// ErrNothingToUndo is returned when Undo is called on an empty undo stack.
var ErrNothingToUndo = errors.New("nothing to undo")

// ErrNothingToRedo is returned when Redo is called on an empty redo stack.
var ErrNothingToRedo = errors.New("nothing to redo")

// ErrEmptySelection is returned by operators that require at least one node.
var ErrEmptySelection = errors.New("no nodes selected")

// ErrNodeNotFound is returned when a node id is not present in the graph.
var ErrNodeNotFound = errors.New("node not found")

// ErrDanglingEdge is returned when an edge references a node missing from the graph.
var ErrDanglingEdge = errors.New("edge references a missing node")

// ErrDuplicateID is returned when two nodes or two edges share an id.
var ErrDuplicateID = errors.New("duplicate id")

// ErrRunInProgress is returned when an operation requires no active run.
var ErrRunInProgress = errors.New("a run is already in progress")

// ErrNoActiveRun is returned when an operation requires an active run.
var ErrNoActiveRun = errors.New("no active run")

// ErrRecordNotFound is returned when an execution record cannot be found in the store.
var ErrRecordNotFound = errors.New("execution record not found")

// ErrStreamClosed is returned by a Stream once the remote side closed the connection cleanly.
var ErrStreamClosed = errors.New("stream closed")

// ErrSessionClosed is returned when an editor session is used after Close.
var ErrSessionClosed = errors.New("session closed")
