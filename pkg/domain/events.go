package domain

import "time"

// BroadcastWorkflowHistoryUpdated is the application-wide event fired when
// stored workflow versions or runs change elsewhere (version browser, refresh).
const BroadcastWorkflowHistoryUpdated = "workflow-history-updated"

// Severity of a user-facing notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a dismissible message for the user.
type Notification struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}

// FocusRequest asks the view to re-center on a node.
type FocusRequest struct {
	NodeID   string        `json:"nodeId"`
	Bounds   Rect          `json:"bounds"`
	MinZoom  float64       `json:"minZoom"`
	Duration time.Duration `json:"duration"`
}
