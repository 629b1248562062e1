package ports

import "github.com/aretw0/weft/pkg/domain"

// EventSink receives the notifications of an editor session.
// Callbacks are invoked outside the session lock, in the order the changes
// happened, and may call back into the session.
type EventSink interface {
	// OnGraphChanged reports a structural or data change of the graph.
	OnGraphChanged(g domain.Graph)
	// OnRuntimeUpdated reports reconciled status or runtime changes of nodes.
	OnRuntimeUpdated(nodes []domain.Node)
	// OnHistoryChanged reports the undo/redo availability.
	OnHistoryChanged(canUndo, canRedo bool)
	// OnExecutionUpdated reports a change to an execution record.
	OnExecutionUpdated(rec *domain.ExecutionRecord)
	// OnNotify shows a dismissible message to the user.
	OnNotify(n domain.Notification)
	// OnFocus asks the view to re-center on a node.
	OnFocus(req domain.FocusRequest)
	// OnInspectorClose asks an open inspector on nodeID to close.
	OnInspectorClose(nodeID string)
	// OnRecordsReloaded delivers the persisted records after a reload.
	OnRecordsReloaded(records []*domain.ExecutionRecord)
}

// NopSink implements EventSink with no-ops. Embed it to implement a subset.
type NopSink struct{}

func (NopSink) OnGraphChanged(domain.Graph) {}
func (NopSink) OnRuntimeUpdated([]domain.Node) {}
func (NopSink) OnHistoryChanged(bool, bool) {}
func (NopSink) OnExecutionUpdated(*domain.ExecutionRecord) {}
func (NopSink) OnNotify(domain.Notification) {}
func (NopSink) OnFocus(domain.FocusRequest) {}
func (NopSink) OnInspectorClose(string) {}
func (NopSink) OnRecordsReloaded([]*domain.ExecutionRecord) {}

var _ EventSink = NopSink{}
