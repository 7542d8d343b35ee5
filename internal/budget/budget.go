// Package budget enforces the per-run compute allowance the hosting
// environment grants the importer. When the allowance runs low the run
// checkpoints: it queues a continuation job and stops cleanly instead of
// failing mid-batch.
package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/model"
)

// Checkpoint is the control-flow signal raised when a run must stop and
// resume later. It is deliberately a distinct error type so callers can
// separate it from the processing-error taxonomy.
type Checkpoint struct {
	ContinuationID string
	Remaining      int
}

func (c *Checkpoint) Error() string {
	return fmt.Sprintf("budget checkpoint: continuation %s queued with %d units remaining", c.ContinuationID, c.Remaining)
}

// IsCheckpoint reports whether err is (or wraps) a budget checkpoint.
func IsCheckpoint(err error) bool {
	var cp *Checkpoint
	return errors.As(err, &cp)
}

// Meter reports the compute budget still available to the current run. It is
// read fresh on every check rather than cached.
type Meter interface {
	Remaining(ctx context.Context) (int, error)
}

// Scheduler submits a continuation job that resumes the work of a
// checkpointed run.
type Scheduler interface {
	SubmitContinuation(ctx context.Context, params model.ContinuationParams) (string, error)
}

// Checker is the narrow interface handed to code that only needs to pause
// between units of work.
type Checker interface {
	Check(ctx context.Context) error
}

// Governor checks remaining budget between units of work and, when the
// threshold is crossed, submits exactly one continuation and signals a
// checkpoint on every subsequent check.
type Governor struct {
	meter     Meter
	scheduler Scheduler
	threshold int
	params    model.ContinuationParams

	continuationID string
}

// NewGovernor creates a governor for one run. params identify the
// continuation job submitted at checkpoint time.
func NewGovernor(meter Meter, scheduler Scheduler, threshold int, params model.ContinuationParams) *Governor {
	return &Governor{
		meter:     meter,
		scheduler: scheduler,
		threshold: threshold,
		params:    params,
	}
}

// Check reads the remaining budget and returns a *Checkpoint once it is at
// or below the threshold. A meter read failure is logged and treated as
// budget available; the run is not aborted on an unreadable gauge.
func (g *Governor) Check(ctx context.Context) error {
	remaining, err := g.meter.Remaining(ctx)
	if err != nil {
		zap.L().Warn("budget: meter read failed", zap.Error(err))
		return nil
	}
	if remaining > g.threshold {
		return nil
	}

	if g.continuationID == "" {
		id, err := g.scheduler.SubmitContinuation(ctx, g.params)
		if err != nil {
			return eris.Wrap(err, "budget: submit continuation")
		}
		g.continuationID = id
		zap.L().Info("budget: checkpoint reached, continuation submitted",
			zap.String("continuation_id", id),
			zap.Int("remaining", remaining),
			zap.Int("threshold", g.threshold),
		)
	}
	return &Checkpoint{ContinuationID: g.continuationID, Remaining: remaining}
}

// ContinuationID returns the id of the submitted continuation, or "" when no
// checkpoint has fired.
func (g *Governor) ContinuationID() string {
	return g.continuationID
}
