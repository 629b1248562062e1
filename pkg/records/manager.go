package records

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock is held if never released.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates record access, ensuring safe concurrent operations.
// Unused per-workflow locks are garbage collected by reference counting.
type Manager struct {
	store ports.RecordStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over store.
func NewManager(store ports.RecordStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST lock entry.mu, and call release(workflowID) after unlocking.
func (m *Manager) acquire(workflowID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[workflowID]
	if !exists {
		entry = &lockEntry{}
		m.locks[workflowID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(workflowID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[workflowID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, workflowID)
	}
}

// activeLocks reports the number of live lock entries.
func (m *Manager) activeLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Save persists rec.
func (m *Manager) Save(ctx context.Context, rec *domain.ExecutionRecord) error {
	return m.WithLock(ctx, rec.WorkflowID, func(ctx context.Context) error {
		return m.store.Save(ctx, rec)
	})
}

// Load retrieves a record.
func (m *Manager) Load(ctx context.Context, workflowID, recordID string) (*domain.ExecutionRecord, error) {
	var rec *domain.ExecutionRecord
	err := m.WithLock(ctx, workflowID, func(ctx context.Context) error {
		var err error
		rec, err = m.store.Load(ctx, workflowID, recordID)
		return err
	})
	return rec, err
}

// Update loads a record, applies fn and saves the result, all under the workflow lock.
func (m *Manager) Update(ctx context.Context, workflowID, recordID string, fn func(*domain.ExecutionRecord) error) error {
	return m.WithLock(ctx, workflowID, func(ctx context.Context) error {
		rec, err := m.store.Load(ctx, workflowID, recordID)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		return m.store.Save(ctx, rec)
	})
}

// Delete removes a record.
func (m *Manager) Delete(ctx context.Context, workflowID, recordID string) error {
	return m.WithLock(ctx, workflowID, func(ctx context.Context) error {
		return m.store.Delete(ctx, workflowID, recordID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context, workflowID string) ([]*domain.ExecutionRecord, error) {
	return m.store.List(ctx, workflowID)
}

// Store returns the underlying record store.
func (m *Manager) Store() ports.RecordStore {
	return m.store
}

// WithLock executes fn while holding the lock for the workflow.
// The lock is not reentrant: fn must not call Save, Load, Update, Delete or
// WithLock for the same workflow. Use Store inside fn instead.
func (m *Manager) WithLock(ctx context.Context, workflowID string, fn func(context.Context) error) error {
	entry := m.acquire(workflowID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(workflowID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, workflowID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"workflow_id", workflowID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
