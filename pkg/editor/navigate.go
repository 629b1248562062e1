package editor

import (
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

// Undo restores the graph as it was before the last recorded edit.
// Node statuses and runtime data are not part of the history: they are
// carried over from the current graph.
func (s *Session) Undo() error {
	return s.step("undo", domain.ErrNothingToUndo, s.history.Undo)
}

// Redo re-applies the last undone edit.
func (s *Session) Redo() error {
	return s.step("redo", domain.ErrNothingToRedo, s.history.Redo)
}

func (s *Session) step(op string, empty error, pop func(domain.Graph) (domain.Graph, bool)) error {
	return s.restoring(func() error {
		restored, ok := pop(s.graph)
		if !ok {
			return empty
		}
		carryOverlay(&restored, &s.graph)

		gone := s.graph.NodeIDs()
		for _, n := range restored.Nodes {
			delete(gone, n.ID)
		}
		s.graph = restored
		s.forgetLocked(gone)

		s.metrics.HistoryApplied(op)
		s.emitGraphLocked()
		return nil
	})
}

// carryOverlay copies the runtime overlay of current onto the nodes of
// restored that still exist.
func carryOverlay(restored, current *domain.Graph) {
	for i := range restored.Nodes {
		n := &restored.Nodes[i]
		cur := current.Node(n.ID)
		if cur == nil {
			continue
		}
		n.Status = cur.Status
		n.Runtime = nil
		if cur.Runtime != nil {
			rt := cur.Runtime.Clone()
			n.Runtime = &rt
		}
	}
}

// forgetLocked drops view references to nodes that are no longer in the
// graph. The active run keeps them: a redo may bring them back.
func (s *Session) forgetLocked(ids map[string]bool) {
	if len(ids) == 0 {
		return
	}
	s.search.Remove(ids)
	for id := range ids {
		delete(s.selection, id)
	}
	edges := make(map[string]bool, len(s.graph.Edges))
	for _, e := range s.graph.Edges {
		edges[e.ID] = true
	}
	for id := range s.edgeSelection {
		if !edges[id] {
			delete(s.edgeSelection, id)
		}
	}
	if s.inspector != "" && ids[s.inspector] {
		id := s.inspector
		s.inspector = ""
		s.emit(func(sink ports.EventSink) { sink.OnInspectorClose(id) })
	}
}

// OpenSearch shows the search overlay.
func (s *Session) OpenSearch() {
	s.mu.Lock()
	defer s.unlock()
	s.search.Open()
}

// Search runs query over the nodes and focuses the first match.
func (s *Session) Search(query string) []string {
	s.mu.Lock()
	defer s.unlock()
	matches := s.search.Search(s.graph.Nodes, query)
	if id, ok := s.search.Current(); ok {
		s.focusLocked(id)
	}
	return matches
}

// SearchNext moves to the next match, wrapping around, and focuses it.
func (s *Session) SearchNext() (string, bool) {
	s.mu.Lock()
	defer s.unlock()
	id, ok := s.search.Next()
	if ok {
		s.focusLocked(id)
	}
	return id, ok
}

// SearchPrevious moves to the previous match, wrapping around, and focuses it.
func (s *Session) SearchPrevious() (string, bool) {
	s.mu.Lock()
	defer s.unlock()
	id, ok := s.search.Previous()
	if ok {
		s.focusLocked(id)
	}
	return id, ok
}

// SearchState returns the matches and the cursor position.
func (s *Session) SearchState() (matches []string, cursor int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search.Matches(), s.search.Cursor()
}

// CloseSearch hides the overlay and clears its matches.
func (s *Session) CloseSearch() {
	s.mu.Lock()
	defer s.unlock()
	s.search.Close()
}

// focusLocked asks the view to center on id while the overlay is open.
func (s *Session) focusLocked(id string) {
	if !s.search.IsOpen() {
		return
	}
	bounds, ok := domain.BoundsOf(s.graph.Nodes, map[string]bool{id: true})
	if !ok {
		return
	}
	req := domain.FocusRequest{
		NodeID:   id,
		Bounds:   bounds,
		MinZoom:  s.focusMinZoom,
		Duration: s.focusDuration,
	}
	s.emit(func(sink ports.EventSink) { sink.OnFocus(req) })
}
