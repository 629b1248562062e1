/*
Package domain contains the core models of the weft editing core.

It defines the canvas graph (Nodes and Edges), the runtime overlay that
live execution attaches to nodes, and the ExecutionRecord that captures a
single run of a workflow. The package is kept free of I/O and persistence.

# Key Entities

  - Node: a typed unit placed on the canvas, with a typed data core and an opaque extension map.
  - Edge: a directed connection between two nodes.
  - Graph: the node/edge set; also the immutable snapshot type used by the history.
  - RuntimeSnapshot: the last reconciled inputs/outputs/messages of a node.
  - ExecutionRecord: the run-level view (status, timing, logs, engine-to-canvas id map).
*/
package domain
