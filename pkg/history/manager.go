// Package history keeps the undo/redo stacks of an editing session.
//
// The Manager stores deep copies of the graph only; snapshots handed to or
// returned by it are never shared with the live graph.
package history

import (
	"log/slog"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
)

// DefaultLimit is the number of snapshots kept on each stack.
const DefaultLimit = 50

// Manager is a snapshot-based undo/redo stack.
// It is not safe for concurrent use; the owning session serializes access.
type Manager struct {
	undo      []domain.Graph
	redo      []domain.Graph
	limit     int
	restoring bool

	onChange func(canUndo, canRedo bool)
	logger   *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLimit caps both stacks at n entries (oldest evicted first).
func WithLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithOnChange registers a hook called whenever CanUndo or CanRedo may have changed.
func WithOnChange(fn func(canUndo, canRedo bool)) Option {
	return func(m *Manager) {
		m.onChange = fn
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		limit:  DefaultLimit,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record pushes a copy of current onto the undo stack and clears the redo stack.
// While a restore is in progress it does nothing unless force is set.
// It reports whether a snapshot was taken.
func (m *Manager) Record(current domain.Graph, force bool) bool {
	if m.restoring && !force {
		m.logger.Debug("Skipping snapshot during restore")
		return false
	}
	m.undo = push(m.undo, current.Clone(), m.limit)
	m.redo = nil
	m.changed()
	return true
}

// Undo pops the last snapshot. The current graph is moved to the redo stack.
// ok is false when there is nothing to undo.
func (m *Manager) Undo(current domain.Graph) (domain.Graph, bool) {
	if len(m.undo) == 0 {
		return domain.Graph{}, false
	}
	prev := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = push(m.redo, current.Clone(), m.limit)
	m.changed()
	return prev.Clone(), true
}

// Redo is the inverse of Undo.
func (m *Manager) Redo(current domain.Graph) (domain.Graph, bool) {
	if len(m.redo) == 0 {
		return domain.Graph{}, false
	}
	next := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = push(m.undo, current.Clone(), m.limit)
	m.changed()
	return next.Clone(), true
}

// Reset empties both stacks.
func (m *Manager) Reset() {
	if len(m.undo) == 0 && len(m.redo) == 0 {
		return
	}
	m.undo = nil
	m.redo = nil
	m.changed()
}

// SetRestoring marks a restore (or operator-driven mutation) as in progress.
func (m *Manager) SetRestoring(v bool) {
	m.restoring = v
}

// Restoring reports whether a restore is in progress.
func (m *Manager) Restoring() bool {
	return m.restoring
}

// CanUndo reports whether the undo stack is non-empty.
func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }

// CanRedo reports whether the redo stack is non-empty.
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// Depth returns the sizes of the undo and redo stacks.
func (m *Manager) Depth() (undo, redo int) {
	return len(m.undo), len(m.redo)
}

func (m *Manager) changed() {
	if m.onChange != nil {
		m.onChange(m.CanUndo(), m.CanRedo())
	}
}

func push(stack []domain.Graph, g domain.Graph, limit int) []domain.Graph {
	stack = append(stack, g)
	if over := len(stack) - limit; over > 0 {
		// Drop references to evicted snapshots so they can be collected.
		copy(stack, stack[over:])
		for i := len(stack) - over; i < len(stack); i++ {
			stack[i] = domain.Graph{}
		}
		stack = stack[:len(stack)-over]
	}
	return stack
}
