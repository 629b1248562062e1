package domain

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/mohae/deepcopy"
)

// NodeStatus is the runtime status rendered on a canvas node.
type NodeStatus string

const (
	NodeIdle    NodeStatus = "idle"
	NodeRunning NodeStatus = "running"
	NodeSuccess NodeStatus = "success"
	NodeError   NodeStatus = "error"
	NodeWarning NodeStatus = "warning"
)

// Valid reports whether s is one of the known node statuses.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeIdle, NodeRunning, NodeSuccess, NodeError, NodeWarning:
		return true
	}
	return false
}

// Common node kinds. Kinds are open-ended; these are the ones the core
// gives special meaning to (e.g. compiler defaults).
const (
	KindTrigger = "trigger"
	KindAPI     = "api"
	KindPython  = "python"
	KindLLM     = "llm"
	KindOutput  = "output"
)

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns p translated by (dx, dy).
func (p Position) Add(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// NodeData is the typed core of a node's extension data.
// Keys that are not part of the core are kept, untouched, in Extra.
type NodeData struct {
	Label       string `mapstructure:"label"`
	Description string `mapstructure:"description"`
	Disabled    bool   `mapstructure:"isDisabled"`

	// Extra holds kind-specific configuration (JSON values only).
	Extra map[string]any `mapstructure:",remain"`
}

// DecodeNodeData converts a loose data map (as found in a persisted document)
// into a NodeData. Scalars are weakly coerced, so a numeric label becomes a string.
func DecodeNodeData(raw map[string]any) (NodeData, error) {
	var data NodeData
	if raw == nil {
		return data, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &data,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return data, err
	}
	if err := dec.Decode(raw); err != nil {
		return data, fmt.Errorf("failed to decode node data: %w", err)
	}
	if len(data.Extra) == 0 {
		data.Extra = nil
	}
	return data, nil
}

// Map flattens the data back into its persisted shape.
func (d NodeData) Map() map[string]any {
	out := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		out[k] = v
	}
	out["label"] = d.Label
	if d.Description != "" {
		out["description"] = d.Description
	}
	if d.Disabled {
		out["isDisabled"] = true
	}
	return out
}

// Clone returns a deep copy of the data.
func (d NodeData) Clone() NodeData {
	out := d
	if d.Extra != nil {
		out.Extra, _ = deepcopy.Copy(d.Extra).(map[string]any)
	}
	return out
}

// MarshalJSON encodes the data flat, as in the persisted document.
func (d NodeData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Map())
}

// UnmarshalJSON decodes a flat data object.
func (d *NodeData) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	decoded, err := DecodeNodeData(raw)
	if err != nil {
		return err
	}
	*d = decoded
	return nil
}

// Node is a single unit on the canvas.
type Node struct {
	ID       string           `json:"id"`
	Kind     string           `json:"kind"`
	Position Position         `json:"position"`
	Status   NodeStatus       `json:"runtimeStatus"`
	Data     NodeData         `json:"data"`
	Runtime  *RuntimeSnapshot `json:"runtime,omitempty"`
}

// Label returns the node's display label, falling back to its id.
func (n *Node) Label() string {
	if n.Data.Label != "" {
		return n.Data.Label
	}
	return n.ID
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	out.Data = n.Data.Clone()
	if n.Runtime != nil {
		rt := n.Runtime.Clone()
		out.Runtime = &rt
	}
	return out
}
