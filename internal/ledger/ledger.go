// Package ledger persists import runs, their per-message outcomes, and the
// continuation queue that resumes checkpointed runs.
package ledger

import (
	"context"

	"github.com/sells-group/intake-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the importer.
type Store interface {
	// Runs
	CreateRun(ctx context.Context) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Messages
	RecordMessage(ctx context.Context, rec model.MessageRecord) error
	ListMessages(ctx context.Context, runID string) ([]model.MessageRecord, error)

	// Continuations
	EnqueueContinuation(ctx context.Context, params model.ContinuationParams) (string, error)
	DequeueContinuation(ctx context.Context) (*model.Continuation, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
