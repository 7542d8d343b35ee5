// Package reconcile resolves a parsed envelope against the record store,
// applying lookup-or-create semantics at every step so reprocessing the same
// message converges instead of duplicating.
package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/budget"
	"github.com/sells-group/intake-cli/internal/lookup"
	"github.com/sells-group/intake-cli/internal/parse"
	"github.com/sells-group/intake-cli/pkg/recordstore"
)

// Engine runs the Customer → Project → Tasks → Estimate sequence for one
// message. It is constructed per run so the lookup cache stays run-scoped.
type Engine struct {
	store   recordstore.Client
	cache   *lookup.Cache
	pause   budget.Checker
	mapping *Mapping
}

// New creates an engine. pause may be nil when no budget governs the run;
// mapping nil means the built-in mapping.
func New(store recordstore.Client, cache *lookup.Cache, pause budget.Checker, mapping *Mapping) *Engine {
	if mapping == nil {
		mapping = DefaultMapping()
	}
	return &Engine{store: store, cache: cache, pause: pause, mapping: mapping}
}

// Result is the triple of resolved ids for one message, plus per-step
// bookkeeping.
type Result struct {
	CustomerID   string
	ProjectID    string
	EstimateID   string
	TaskIDs      []string
	LinesSkipped int
}

// Process reconciles one envelope. The message fails only when customer
// resolution fails or a budget checkpoint fires; deeper step failures are
// logged and the remaining steps continue.
func (e *Engine) Process(ctx context.Context, env *parse.Envelope) (*Result, error) {
	res := &Result{}

	customerID, err := e.resolveCustomer(ctx, env)
	if err != nil {
		return res, eris.Wrap(err, "reconcile: customer step")
	}
	res.CustomerID = customerID
	if customerID == "" {
		// No customer-identifying field: everything downstream needs a
		// customer id, so there is nothing to do.
		return res, nil
	}

	projectID, err := e.resolveProject(ctx, env, customerID)
	if err != nil {
		if budget.IsCheckpoint(err) {
			return res, err
		}
		zap.L().Warn("reconcile: project step failed", zap.Error(err))
	}
	res.ProjectID = projectID

	if projectID != "" && len(env.Tasks) > 0 {
		taskIDs, err := e.createTasks(ctx, env.Tasks, projectID)
		res.TaskIDs = taskIDs
		if err != nil {
			return res, err // checkpoint only; task failures are handled inside
		}
	}

	if e.hasEstimateData(env) {
		estimateID, skipped, err := e.createEstimate(ctx, env, customerID, projectID)
		res.EstimateID = estimateID
		res.LinesSkipped = skipped
		if err != nil {
			if budget.IsCheckpoint(err) {
				return res, err
			}
			zap.L().Warn("reconcile: estimate step failed", zap.Error(err))
		}
	}

	return res, nil
}

// check pauses between units of work when a budget governs the run.
func (e *Engine) check(ctx context.Context) error {
	if e.pause == nil {
		return nil
	}
	return e.pause.Check(ctx)
}

// first resolves a logical field through its ordered alias list.
func (e *Engine) first(env *parse.Envelope, field string) string {
	return env.First(e.mapping.Keys(field)...)
}

// hasEstimateData reports whether the message carries anything estimate
// shaped, from either the structured payload or tag fields.
func (e *Engine) hasEstimateData(env *parse.Envelope) bool {
	if len(env.LineItems) > 0 {
		return true
	}
	return e.first(env, "estimateStatus") != "" ||
		e.first(env, "estimateDueDate") != "" ||
		e.first(env, "memo") != "" ||
		e.first(env, "idempotencyKey") != ""
}

// setIf stores a field only when the value is non-empty.
func setIf(fields map[string]any, key, value string) {
	if value != "" {
		fields[key] = value
	}
}
