package history

// ChangeType identifies the kind of edit applied to the canvas.
type ChangeType string

const (
	ChangeAdd        ChangeType = "add"
	ChangeRemove     ChangeType = "remove"
	ChangePosition   ChangeType = "position"
	ChangeSelect     ChangeType = "select"
	ChangeData       ChangeType = "data"
	ChangeConnect    ChangeType = "connect"
	ChangeDisconnect ChangeType = "disconnect"
	ChangeReplace    ChangeType = "replace"
)

// Change describes a single edit for classification purposes.
type Change struct {
	Type ChangeType
	// Dragging is set for position updates emitted while a drag is still in progress.
	Dragging bool
}

// IsSnapshotWorthy reports whether c should be preceded by a history snapshot.
// Pure selection changes and in-progress drag updates are not; the settled
// position at the end of a drag is.
func IsSnapshotWorthy(c Change) bool {
	switch c.Type {
	case ChangeSelect:
		return false
	case ChangePosition:
		return !c.Dragging
	default:
		return true
	}
}

// AnySnapshotWorthy reports whether at least one change in the batch is snapshot-worthy.
func AnySnapshotWorthy(changes []Change) bool {
	for _, c := range changes {
		if IsSnapshotWorthy(c) {
			return true
		}
	}
	return false
}
