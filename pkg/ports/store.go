package ports

import (
	"context"

	"github.com/aretw0/weft/pkg/domain"
)

// RecordStore persists execution records, grouped by workflow.
type RecordStore interface {
	// Save creates or replaces the record identified by rec.WorkflowID and rec.ID.
	Save(ctx context.Context, rec *domain.ExecutionRecord) error

	// Load retrieves a single record.
	// Returns domain.ErrRecordNotFound if it does not exist.
	Load(ctx context.Context, workflowID, recordID string) (*domain.ExecutionRecord, error)

	// List returns the records of a workflow, most recent start time first.
	// An unknown workflow yields an empty list.
	List(ctx context.Context, workflowID string) ([]*domain.ExecutionRecord, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, workflowID, recordID string) error
}
