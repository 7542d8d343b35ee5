// Package model holds the shared types for import runs and their outcomes.
package model

import "time"

// RunStatus tracks the lifecycle of an import run.
type RunStatus string

const (
	RunStatusRunning      RunStatus = "running"
	RunStatusComplete     RunStatus = "complete"
	RunStatusCheckpointed RunStatus = "checkpointed"
	RunStatusFailed       RunStatus = "failed"
)

// Run is one execution of the importer, as recorded in the ledger.
type Run struct {
	ID        string      `json:"id"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	StartedAt time.Time   `json:"started_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary is the end-of-run report emitted by the error aggregator.
type RunSummary struct {
	Fetched        int              `json:"fetched"`
	Succeeded      int              `json:"succeeded"`
	Skipped        int              `json:"skipped"`
	Failed         int              `json:"failed"`
	LinesSkipped   int              `json:"lines_skipped"`
	ContinuationID string           `json:"continuation_id,omitempty"`
	Failures       []MessageFailure `json:"failures,omitempty"`
}

// MessageFailure records one message that could not be imported.
type MessageFailure struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// RunResult is what Importer.Run returns to its caller.
type RunResult struct {
	RunID        string     `json:"run_id"`
	Checkpointed bool       `json:"checkpointed"`
	Summary      RunSummary `json:"summary"`
}

// MessageStatus is the per-message outcome within a run.
type MessageStatus string

const (
	MessageSucceeded MessageStatus = "succeeded"
	MessageSkipped   MessageStatus = "skipped"
	MessageFailed    MessageStatus = "failed"
)

// MessageRecord is the ledger row for a single processed message.
type MessageRecord struct {
	RunID       string        `json:"run_id"`
	MessageID   string        `json:"message_id"`
	Status      MessageStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	CustomerID  string        `json:"customer_id,omitempty"`
	ProjectID   string        `json:"project_id,omitempty"`
	EstimateID  string        `json:"estimate_id,omitempty"`
	ProcessedAt time.Time     `json:"processed_at"`
}

// ContinuationParams identify the work a checkpointed run hands to its
// successor. The successor reruns the same query; records already committed
// are deduplicated by the reconciliation engine's idempotency rules.
type ContinuationParams struct {
	Query       string `json:"query"`
	BatchSize   int    `json:"batch_size"`
	ParentRunID string `json:"parent_run_id"`
}

// Continuation is a queued resume job waiting for the daemon to pick it up.
type Continuation struct {
	ID        string             `json:"id"`
	Params    ContinuationParams `json:"params"`
	CreatedAt time.Time          `json:"created_at"`
}
