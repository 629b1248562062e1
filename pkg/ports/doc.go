/*
Package ports defines the driven ports (interfaces) of the weft editing core.

These interfaces decouple the editor session from the outside world, so the
same core runs against a real execution engine, a recorded event log, or an
in-memory pipe in tests.

# Key Interfaces

  - Stream / Dialer: the per-run bidirectional message channel to the execution engine.
  - RecordStore: persists ExecutionRecords per workflow.
  - DistributedLocker: coordinates record access across processes.
  - EventSink: the narrow callback surface a rendering layer implements.
*/
package ports
