// Package reconcile folds execution events into node runtime state and the
// execution record of a run.
//
// Events are loose JSON objects produced by the engine. Classify derives,
// without side effects, everything an event implies (log level, message,
// run transition, node status, runtime payloads). A Reconciler then applies
// that classification to the canvas graph and the run's ExecutionRecord.
//
// Engine nodes are named differently from canvas nodes; every reference is
// translated through the run's graphToCanvas map, falling back to the raw
// identifier when it is not mapped.
package reconcile
