package editor

import (
	"fmt"
	"io"

	"github.com/aretw0/weft/pkg/document"
	"github.com/aretw0/weft/pkg/domain"
)

// InsertResult lists the ids created by a structural operator, nodes in
// source order.
type InsertResult struct {
	NodeIDs []string
	EdgeIDs []string
}

// existingLocked filters ids to nodes present in the graph, in graph order.
func (s *Session) existingLocked(ids []string) map[string]bool {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[string]bool, len(ids))
	for _, n := range s.graph.Nodes {
		if want[n.ID] {
			out[n.ID] = true
		}
	}
	return out
}

// Delete removes the nodes and every edge touching them as one undoable
// step. Unknown ids are ignored; an empty set is a no-op.
func (s *Session) Delete(ids []string) error {
	return s.deleteNodes(ids, nil)
}

// DeleteSelection deletes the selected nodes and edges.
func (s *Session) DeleteSelection() error {
	s.mu.Lock()
	nodes := s.selectedLocked()
	edges := make([]string, 0, len(s.edgeSelection))
	for id := range s.edgeSelection {
		edges = append(edges, id)
	}
	s.mu.Unlock()
	return s.deleteNodes(nodes, edges)
}

func (s *Session) deleteNodes(nodeIDs, edgeIDs []string) error {
	return s.restoring(func() error {
		nodes := s.existingLocked(nodeIDs)
		edges := make(map[string]bool, len(edgeIDs))
		for _, e := range s.graph.Edges {
			for _, id := range edgeIDs {
				if e.ID == id {
					edges[id] = true
				}
			}
		}
		if len(nodes) == 0 && len(edges) == 0 {
			return nil
		}

		s.snapshotLocked(true)
		if len(edges) > 0 {
			s.graph.RemoveEdges(edges)
			for id := range edges {
				delete(s.edgeSelection, id)
			}
		}
		if len(nodes) > 0 {
			s.removeNodesLocked(nodes)
		}
		s.metrics.OperatorApplied("delete")
		s.logger.Debug("Deleted nodes", "workflow_id", s.workflowID, "nodes", len(nodes), "edges", len(edges))
		s.emitGraphLocked()
		return nil
	})
}

// Duplicate copies the nodes with fresh ids, offset from the originals and
// labelled " Copy". Only edges with both endpoints among the copied nodes
// are duplicated. The copies become the selection.
func (s *Session) Duplicate(ids []string) (InsertResult, error) {
	var res InsertResult
	err := s.restoring(func() error {
		src := s.existingLocked(ids)
		if len(src) == 0 {
			s.notifyLocked(domain.SeverityWarning, "Nothing to duplicate", "Select one or more nodes first.")
			return domain.ErrEmptySelection
		}

		s.snapshotLocked(true)
		idMap := make(map[string]string, len(src))
		var nodes []domain.Node
		for _, n := range s.graph.Nodes {
			if !src[n.ID] {
				continue
			}
			dup := n.Clone()
			dup.ID = s.newID()
			dup.Position = n.Position.Add(s.duplicateOffset.X, s.duplicateOffset.Y)
			dup.Data.Label = n.Label() + " Copy"
			dup.Status = domain.NodeIdle
			dup.Runtime = nil
			idMap[n.ID] = dup.ID
			nodes = append(nodes, dup)
			res.NodeIDs = append(res.NodeIDs, dup.ID)
		}
		var edges []domain.Edge
		for _, e := range s.graph.Edges {
			source, okS := idMap[e.Source]
			target, okT := idMap[e.Target]
			if !okS || !okT {
				continue
			}
			dup := e.Clone()
			dup.ID = s.newID()
			dup.Source, dup.Target = source, target
			edges = append(edges, dup)
			res.EdgeIDs = append(res.EdgeIDs, dup.ID)
		}
		s.graph.Nodes = append(s.graph.Nodes, nodes...)
		s.graph.Edges = append(s.graph.Edges, edges...)

		clear(s.selection)
		for _, id := range res.NodeIDs {
			s.selection[id] = true
		}
		s.metrics.OperatorApplied("duplicate")
		s.emitGraphLocked()
		return nil
	})
	return res, err
}

// DuplicateSelection duplicates the selected nodes.
func (s *Session) DuplicateSelection() (InsertResult, error) {
	s.mu.Lock()
	ids := s.selectedLocked()
	s.mu.Unlock()
	return s.Duplicate(ids)
}

// Import replaces the graph with a workflow document read from r. The
// document is fully validated first; on error nothing changes. The result
// is a new, unsaved workflow with an empty history.
func (s *Session) Import(r io.Reader, format document.Format) error {
	doc, err := document.Read(r, format, document.WithSchemas(s.schemas))
	if err == nil {
		var g domain.Graph
		g, err = doc.Graph(s.newID)
		if err == nil {
			return s.importGraph(doc, g)
		}
	}

	s.mu.Lock()
	s.notifyLocked(domain.SeverityError, "Import failed", err.Error())
	s.unlock()
	return fmt.Errorf("failed to import workflow: %w", err)
}

func (s *Session) importGraph(doc *document.Document, g domain.Graph) error {
	return s.restoring(func() error {
		s.stopRunLocked(pauseRun)
		s.workflowID = ""
		s.name = doc.Name
		s.description = doc.Description
		s.graph = normalize(g)
		s.resetViewLocked()
		s.history.Reset()
		s.executions = nil

		s.metrics.OperatorApplied("import")
		s.logger.Info("Workflow imported", "nodes", len(s.graph.Nodes), "edges", len(s.graph.Edges))
		s.emitGraphLocked()
		s.emitRecordsLocked()
		s.notifyLocked(domain.SeverityInfo, "Workflow imported",
			fmt.Sprintf("%d nodes and %d edges loaded.", len(s.graph.Nodes), len(s.graph.Edges)))
		return nil
	})
}

// InsertSubgraph places a copy of tpl to the right of the current graph,
// top-aligned with it, or at DefaultInsertAnchor on an empty canvas. Every
// node gets a fresh id; edges leaving the template are dropped.
func (s *Session) InsertSubgraph(tpl domain.Graph) (InsertResult, error) {
	var res InsertResult
	tplBounds, ok := tpl.Bounds()
	if !ok {
		return res, ErrEmptyTemplate
	}

	err := s.restoring(func() error {
		anchor := DefaultInsertAnchor
		if b, ok := s.graph.Bounds(); ok {
			anchor = domain.Position{X: b.MaxX + DefaultPlacementGap, Y: b.MinY}
		}
		dx := anchor.X - tplBounds.MinX
		dy := anchor.Y - tplBounds.MinY

		s.snapshotLocked(true)
		idMap := make(map[string]string, len(tpl.Nodes))
		for _, n := range tpl.Nodes {
			placed := n.Clone()
			placed.ID = s.newID()
			placed.Position = n.Position.Add(dx, dy)
			placed.Status = domain.NodeIdle
			placed.Runtime = nil
			idMap[n.ID] = placed.ID
			s.graph.Nodes = append(s.graph.Nodes, placed)
			res.NodeIDs = append(res.NodeIDs, placed.ID)
		}
		for _, e := range tpl.Edges {
			source, okS := idMap[e.Source]
			target, okT := idMap[e.Target]
			if !okS || !okT {
				continue
			}
			placed := e.Clone()
			placed.ID = s.newID()
			placed.Source, placed.Target = source, target
			s.graph.Edges = append(s.graph.Edges, placed)
			res.EdgeIDs = append(res.EdgeIDs, placed.ID)
		}

		s.metrics.OperatorApplied("insert_subgraph")
		s.emitGraphLocked()
		return nil
	})
	return res, err
}

// InsertTemplate inserts the named template of the session's library as
// InsertSubgraph does.
func (s *Session) InsertTemplate(name string) (InsertResult, error) {
	if s.templates == nil {
		return InsertResult{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	t, ok := s.templates.Get(name)
	if !ok {
		return InsertResult{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	s.logger.Debug("Inserting template", "template", t.Name, "source", t.Source)
	return s.InsertSubgraph(t.Graph)
}
