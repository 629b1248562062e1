package reconcile

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/weft/pkg/domain"
)

// envelope holds the well-known scalar fields of an event.
type envelope struct {
	Level    string `mapstructure:"level"`
	LogLevel string `mapstructure:"log_level"`
	Status   string `mapstructure:"status"`
	Message  string `mapstructure:"message"`
	Msg      string `mapstructure:"msg"`
	NodeID   string `mapstructure:"node_id"`
	Node     string `mapstructure:"node"`
	StepID   string `mapstructure:"step_id"`
	Step     string `mapstructure:"step"`
}

func (e envelope) nodeRef() string {
	for _, ref := range []string{e.NodeID, e.Node, e.StepID, e.Step} {
		if ref != "" {
			return ref
		}
	}
	return ""
}

// Classification is what a single event implies.
type Classification struct {
	Level   domain.LogLevel
	Message string

	// RunStatus is the run transition carried by the event, empty for none.
	RunStatus domain.RunStatus

	// NodeID is the canvas id of the referenced node, empty for run-scoped events.
	NodeID string
	// NodeStatus is the status derived for NodeID, empty for none.
	NodeStatus domain.NodeStatus

	// Runtime holds the payloads extracted per canvas node id.
	Runtime map[string]domain.RuntimeSnapshot
}

// Classify derives the classification of event. labelOf resolves a canvas
// id to a display label and may be nil.
func Classify(event map[string]any, graphToCanvas map[string]string, labelOf func(string) string, now time.Time) Classification {
	env := decodeEnvelope(event)
	errText, hasError := errorText(event["error"])
	ref := env.nodeRef()
	status := strings.ToLower(strings.TrimSpace(env.Status))

	var c Classification
	if ref != "" {
		c.NodeID = translate(graphToCanvas, ref)
	}

	c.Level = classifyLevel(env, hasError, status)

	switch {
	case hasError:
		c.Message = errText
	case env.Message != "":
		c.Message = env.Message
	case env.Msg != "":
		c.Message = env.Msg
	case ref != "":
		label := c.NodeID
		if labelOf != nil {
			if l := labelOf(c.NodeID); l != "" {
				label = l
			}
		}
		c.Message = strings.TrimSpace(fmt.Sprintf("Node %s %s", label, status))
	case status != "":
		c.Message = fmt.Sprintf("Run status changed to %s", status)
	default:
		raw, err := json.Marshal(event)
		if err != nil {
			raw = []byte(fmt.Sprint(event))
		}
		c.Message = string(raw)
	}

	switch {
	case hasError:
		c.RunStatus = domain.RunFailed
	case ref == "":
		c.RunStatus = runStatusOf(status)
	}
	if ref != "" {
		switch {
		case status != "":
			c.NodeStatus = nodeStatusOf(status)
		case hasError:
			c.NodeStatus = domain.NodeError
		}
	}

	c.Runtime = extractRuntime(event, graphToCanvas, c.NodeID, now)
	return c
}

// decodeEnvelope reads the scalar fields of event. Non-scalar values in
// those fields are treated as absent.
func decodeEnvelope(event map[string]any) envelope {
	var env envelope
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &env,
		WeaklyTypedInput: true,
		DecodeHook:       scalarOnly,
	})
	if err != nil {
		return env
	}
	if err := dec.Decode(event); err != nil {
		return envelope{}
	}
	return env
}

func scalarOnly(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return "", nil
	}
	return data, nil
}

func errorText(v any) (string, bool) {
	switch e := v.(type) {
	case nil:
		return "", false
	case string:
		if e == "" {
			return "", false
		}
		return e, true
	case bool:
		if !e {
			return "", false
		}
		return "error", true
	case map[string]any:
		for _, k := range []string{"message", "msg", "detail"} {
			if s, ok := e[k].(string); ok && s != "" {
				return s, true
			}
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v), true
	}
	return string(raw), true
}

func classifyLevel(env envelope, hasError bool, status string) domain.LogLevel {
	explicit := env.Level
	if explicit == "" {
		explicit = env.LogLevel
	}
	if explicit != "" {
		switch strings.ToUpper(strings.TrimSpace(explicit)) {
		case "ERROR", "FATAL", "CRITICAL":
			return domain.LevelError
		case "WARNING", "WARN":
			return domain.LevelWarning
		case "DEBUG", "TRACE":
			return domain.LevelDebug
		default:
			return domain.LevelInfo
		}
	}
	if hasError {
		return domain.LevelError
	}
	switch status {
	case "error", "failed":
		return domain.LevelError
	case "warning", "cancelled", "partial":
		return domain.LevelWarning
	case "debug":
		return domain.LevelDebug
	}
	return domain.LevelInfo
}

func runStatusOf(status string) domain.RunStatus {
	switch status {
	case "running", "started", "pending":
		return domain.RunRunning
	case "success", "completed", "succeeded", "done":
		return domain.RunSuccess
	case "failed", "error":
		return domain.RunFailed
	case "partial", "cancelled", "warning":
		return domain.RunPartial
	}
	return ""
}

func nodeStatusOf(status string) domain.NodeStatus {
	switch status {
	case "running", "started", "pending":
		return domain.NodeRunning
	case "success", "completed", "succeeded", "done":
		return domain.NodeSuccess
	case "failed", "error":
		return domain.NodeError
	case "partial", "cancelled", "warning":
		return domain.NodeWarning
	case "idle":
		return domain.NodeIdle
	}
	return ""
}

func translate(graphToCanvas map[string]string, ref string) string {
	if id, ok := graphToCanvas[ref]; ok {
		return id
	}
	return ref
}

var (
	inputKeys   = []string{"inputs", "input"}
	outputKeys  = []string{"outputs", "output", "result"}
	messageKeys = []string{"messages"}
)

// extractRuntime collects a snapshot for every event key (and every key of a
// top-level results object) naming a mapped engine node with an object value.
// A node-scoped event carrying payload fields itself also yields a snapshot
// for its node.
func extractRuntime(event map[string]any, graphToCanvas map[string]string, nodeID string, now time.Time) map[string]domain.RuntimeSnapshot {
	out := make(map[string]domain.RuntimeSnapshot)

	collect := func(container map[string]any) {
		keys := make([]string, 0, len(container))
		for k := range container {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			canvasID, ok := graphToCanvas[key]
			if !ok {
				continue
			}
			value, ok := container[key].(map[string]any)
			if !ok {
				continue
			}
			payload := value
			if results, ok := value["results"].(map[string]any); ok {
				if nested, ok := results[key].(map[string]any); ok {
					payload = nested
				}
			}
			out[canvasID] = snapshotOf(payload, now)
		}
	}

	collect(event)
	if results, ok := event["results"].(map[string]any); ok {
		collect(results)
	}

	if nodeID != "" {
		if _, done := out[nodeID]; !done && hasAny(event, inputKeys, outputKeys, messageKeys) {
			payload := make(map[string]any)
			for _, keys := range [][]string{inputKeys, outputKeys, messageKeys} {
				for _, k := range keys {
					if v, ok := event[k]; ok {
						payload[k] = v
					}
				}
			}
			out[nodeID] = snapshotOf(payload, now)
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func snapshotOf(payload map[string]any, now time.Time) domain.RuntimeSnapshot {
	return domain.RuntimeSnapshot{
		Inputs:    first(payload, inputKeys),
		Outputs:   first(payload, outputKeys),
		Messages:  first(payload, messageKeys),
		Raw:       payload,
		UpdatedAt: now,
	}
}

func first(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func hasAny(m map[string]any, groups ...[]string) bool {
	for _, keys := range groups {
		if first(m, keys) != nil {
			return true
		}
	}
	return false
}
