package editor

import (
	"fmt"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/history"
	"github.com/aretw0/weft/pkg/ports"
)

// NodeChange is one node edit coming from the view.
type NodeChange struct {
	Type history.ChangeType
	ID   string

	// Position and Dragging apply to ChangePosition.
	Position domain.Position
	Dragging bool
	// Selected applies to ChangeSelect.
	Selected bool
	// Data applies to ChangeData.
	Data domain.NodeData
	// Node applies to ChangeAdd and ChangeReplace.
	Node *domain.Node
}

// EdgeChange is one edge edit coming from the view.
type EdgeChange struct {
	Type history.ChangeType
	ID   string

	// Edge applies to ChangeAdd, ChangeConnect and ChangeReplace.
	Edge *domain.Edge
	// Selected applies to ChangeSelect.
	Selected bool
}

// ApplyNodeChanges applies a batch of node edits. A single snapshot is taken
// before the batch when at least one change is snapshot-worthy. The batch
// is validated first and rejected as a whole.
func (s *Session) ApplyNodeChanges(changes []NodeChange) error {
	s.mu.Lock()
	defer s.unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	if err := s.checkNodeChangesLocked(changes); err != nil {
		return err
	}

	kinds := make([]history.Change, len(changes))
	for i, c := range changes {
		kinds[i] = history.Change{Type: c.Type, Dragging: c.Dragging}
	}
	if history.AnySnapshotWorthy(kinds) {
		s.snapshotLocked(false)
	}

	removed := make(map[string]bool)
	graphChanged := false
	for _, c := range changes {
		switch c.Type {
		case history.ChangeAdd:
			n := c.Node.Clone()
			if n.ID == "" {
				n.ID = s.newID()
			}
			if n.Status == "" {
				n.Status = domain.NodeIdle
			}
			s.graph.Nodes = append(s.graph.Nodes, n)
			graphChanged = true
		case history.ChangeRemove:
			removed[c.ID] = true
		case history.ChangePosition:
			s.graph.Node(c.ID).Position = c.Position
			graphChanged = true
		case history.ChangeSelect:
			if c.Selected {
				s.selection[c.ID] = true
			} else {
				delete(s.selection, c.ID)
			}
		case history.ChangeData:
			s.graph.Node(c.ID).Data = c.Data.Clone()
			graphChanged = true
		case history.ChangeReplace:
			n := s.graph.Node(c.ID)
			next := c.Node.Clone()
			next.ID = c.ID
			next.Status = n.Status
			next.Runtime = n.Runtime
			*n = next
			graphChanged = true
		}
	}
	if len(removed) > 0 {
		s.removeNodesLocked(removed)
		graphChanged = true
	}
	if graphChanged {
		s.emitGraphLocked()
	}
	return nil
}

func (s *Session) checkNodeChangesLocked(changes []NodeChange) error {
	added := make(map[string]bool)
	for _, c := range changes {
		switch c.Type {
		case history.ChangeAdd:
			if c.Node == nil {
				return fmt.Errorf("%w: add without a node", ErrInvalidChange)
			}
			if id := c.Node.ID; id != "" {
				if s.graph.HasID(id) || added[id] {
					return fmt.Errorf("%w: node %q", domain.ErrDuplicateID, id)
				}
				added[id] = true
			}
		case history.ChangeRemove, history.ChangePosition, history.ChangeSelect, history.ChangeData, history.ChangeReplace:
			if s.graph.Node(c.ID) == nil {
				return fmt.Errorf("%w: %q", domain.ErrNodeNotFound, c.ID)
			}
			if c.Type == history.ChangeReplace && c.Node == nil {
				return fmt.Errorf("%w: replace without a node", ErrInvalidChange)
			}
		default:
			return fmt.Errorf("%w: %q is not a node change", ErrInvalidChange, c.Type)
		}
	}
	return nil
}

// ApplyEdgeChanges applies a batch of edge edits, snapshotting once when
// the batch is snapshot-worthy.
func (s *Session) ApplyEdgeChanges(changes []EdgeChange) error {
	s.mu.Lock()
	defer s.unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	if err := s.checkEdgeChangesLocked(changes); err != nil {
		return err
	}

	kinds := make([]history.Change, len(changes))
	for i, c := range changes {
		kinds[i] = history.Change{Type: c.Type}
	}
	if history.AnySnapshotWorthy(kinds) {
		s.snapshotLocked(false)
	}

	removed := make(map[string]bool)
	graphChanged := false
	for _, c := range changes {
		switch c.Type {
		case history.ChangeAdd, history.ChangeConnect:
			e := c.Edge.Clone()
			if e.ID == "" {
				e.ID = s.newID()
			}
			s.graph.Edges = append(s.graph.Edges, e)
			graphChanged = true
		case history.ChangeRemove, history.ChangeDisconnect:
			removed[c.ID] = true
		case history.ChangeSelect:
			if c.Selected {
				s.edgeSelection[c.ID] = true
			} else {
				delete(s.edgeSelection, c.ID)
			}
		case history.ChangeReplace:
			for i := range s.graph.Edges {
				if s.graph.Edges[i].ID == c.ID {
					next := c.Edge.Clone()
					next.ID = c.ID
					s.graph.Edges[i] = next
				}
			}
			graphChanged = true
		}
	}
	if len(removed) > 0 {
		s.graph.RemoveEdges(removed)
		for id := range removed {
			delete(s.edgeSelection, id)
		}
		graphChanged = true
	}
	if graphChanged {
		s.emitGraphLocked()
	}
	return nil
}

func (s *Session) checkEdgeChangesLocked(changes []EdgeChange) error {
	edges := make(map[string]bool, len(s.graph.Edges))
	for _, e := range s.graph.Edges {
		edges[e.ID] = true
	}
	for _, c := range changes {
		switch c.Type {
		case history.ChangeAdd, history.ChangeConnect, history.ChangeReplace:
			if c.Edge == nil {
				return fmt.Errorf("%w: %s without an edge", ErrInvalidChange, c.Type)
			}
			if s.graph.Node(c.Edge.Source) == nil {
				return fmt.Errorf("%w: source %q", domain.ErrDanglingEdge, c.Edge.Source)
			}
			if s.graph.Node(c.Edge.Target) == nil {
				return fmt.Errorf("%w: target %q", domain.ErrDanglingEdge, c.Edge.Target)
			}
			if c.Type == history.ChangeReplace {
				if !edges[c.ID] {
					return fmt.Errorf("%w: edge %q not found", ErrInvalidChange, c.ID)
				}
				continue
			}
			if id := c.Edge.ID; id != "" {
				if s.graph.HasID(id) || edges[id] {
					return fmt.Errorf("%w: edge %q", domain.ErrDuplicateID, id)
				}
				edges[id] = true
			}
		case history.ChangeRemove, history.ChangeDisconnect, history.ChangeSelect:
			if !edges[c.ID] {
				return fmt.Errorf("%w: edge %q not found", ErrInvalidChange, c.ID)
			}
		default:
			return fmt.Errorf("%w: %q is not an edge change", ErrInvalidChange, c.Type)
		}
	}
	return nil
}

// Connect adds an edge between two existing nodes and returns its id.
func (s *Session) Connect(e domain.Edge) (string, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if err := s.ApplyEdgeChanges([]EdgeChange{{Type: history.ChangeConnect, Edge: &e}}); err != nil {
		return "", err
	}
	return e.ID, nil
}

// UpdateNodeData replaces the data of a node after checking it against the
// schema registered for the node's kind.
func (s *Session) UpdateNodeData(id string, data domain.NodeData) error {
	s.mu.Lock()
	defer s.unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	n := s.graph.Node(id)
	if n == nil {
		return fmt.Errorf("%w: %q", domain.ErrNodeNotFound, id)
	}
	if err := s.schemas.Validate(n.Kind, data.Map()); err != nil {
		s.notifyLocked(domain.SeverityError, "Invalid node configuration", err.Error())
		return fmt.Errorf("invalid data for node %q: %w", id, err)
	}

	s.snapshotLocked(false)
	s.graph.Node(id).Data = data.Clone()
	s.emitGraphLocked()
	return nil
}

// Select replaces the node selection. Unknown ids are ignored.
func (s *Session) Select(ids ...string) {
	s.mu.Lock()
	defer s.unlock()
	clear(s.selection)
	for _, id := range ids {
		if s.graph.Node(id) != nil {
			s.selection[id] = true
		}
	}
}

// Selection returns the selected node ids in graph order.
func (s *Session) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedLocked()
}

func (s *Session) selectedLocked() []string {
	var out []string
	for _, n := range s.graph.Nodes {
		if s.selection[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

// OpenInspector marks the node whose properties are being edited.
func (s *Session) OpenInspector(id string) error {
	s.mu.Lock()
	defer s.unlock()
	if s.graph.Node(id) == nil {
		return fmt.Errorf("%w: %q", domain.ErrNodeNotFound, id)
	}
	s.inspector = id
	return nil
}

// CloseInspector clears the inspected node.
func (s *Session) CloseInspector() {
	s.mu.Lock()
	defer s.unlock()
	s.inspector = ""
}

// Inspector returns the inspected node id, or "".
func (s *Session) Inspector() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inspector
}

// removeNodesLocked deletes nodes and their edges and drops every reference
// the session holds to them.
func (s *Session) removeNodesLocked(ids map[string]bool) {
	for _, edgeID := range s.graph.RemoveNodes(ids) {
		delete(s.edgeSelection, edgeID)
	}
	s.search.Remove(ids)
	for id := range ids {
		delete(s.selection, id)
	}
	if s.run != nil {
		s.run.reconciler.Prune(ids)
	}
	if s.inspector != "" && ids[s.inspector] {
		id := s.inspector
		s.inspector = ""
		s.emit(func(sink ports.EventSink) { sink.OnInspectorClose(id) })
	}
}
