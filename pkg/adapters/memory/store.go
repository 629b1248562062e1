package memory

import (
	"context"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
)

// Store implements ports.RecordStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]map[string]*domain.ExecutionRecord // workflowID -> recordID -> record
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[string]*domain.ExecutionRecord),
	}
}

// Save keeps a deep copy of rec.
func (s *Store) Save(ctx context.Context, rec *domain.ExecutionRecord) error {
	copied := rec.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.data[rec.WorkflowID]
	if !ok {
		byID = make(map[string]*domain.ExecutionRecord)
		s.data[rec.WorkflowID] = byID
	}
	byID[rec.ID] = copied
	return nil
}

// Load returns a copy so callers can't mutate the stored record.
func (s *Store) Load(ctx context.Context, workflowID, recordID string) (*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[workflowID][recordID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// List returns copies of the workflow's records, newest first.
func (s *Store) List(ctx context.Context, workflowID string) ([]*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ExecutionRecord, 0, len(s.data[workflowID]))
	for _, rec := range s.data[workflowID] {
		out = append(out, rec.Clone())
	}
	domain.SortRecordsNewestFirst(out)
	return out, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, workflowID, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[workflowID], recordID)
	if len(s.data[workflowID]) == 0 {
		delete(s.data, workflowID)
	}
	return nil
}
