package importer

import (
	"context"

	"github.com/sells-group/intake-cli/internal/ledger"
	"github.com/sells-group/intake-cli/internal/model"
)

// ledgerScheduler queues continuations in the ledger; the daemon drains the
// queue on its next tick.
type ledgerScheduler struct {
	led ledger.Store
}

func (s *ledgerScheduler) SubmitContinuation(ctx context.Context, params model.ContinuationParams) (string, error) {
	return s.led.EnqueueContinuation(ctx, params)
}

// RunUntilDone executes one Run and then drains any continuations it (or
// earlier runs) queued, resuming until the queue is empty. The budget meter
// resets per run, so each resume gets a full allowance.
func (i *Importer) RunUntilDone(ctx context.Context) (*model.RunResult, error) {
	result, err := i.Run(ctx)
	if err != nil {
		return nil, err
	}

	for {
		cont, err := i.led.DequeueContinuation(ctx)
		if err != nil {
			return result, err
		}
		if cont == nil {
			return result, nil
		}
		result, err = i.Resume(ctx, cont.Params)
		if err != nil {
			return nil, err
		}
	}
}
