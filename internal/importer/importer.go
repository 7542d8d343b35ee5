// Package importer runs the end-to-end email import: list candidate
// messages, decode and parse each one, reconcile it against the record
// store, and account for the whole run in the ledger.
package importer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/budget"
	"github.com/sells-group/intake-cli/internal/decode"
	"github.com/sells-group/intake-cli/internal/ledger"
	"github.com/sells-group/intake-cli/internal/lookup"
	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/parse"
	"github.com/sells-group/intake-cli/internal/reconcile"
	"github.com/sells-group/intake-cli/internal/report"
	"github.com/sells-group/intake-cli/pkg/gmail"
	"github.com/sells-group/intake-cli/pkg/recordstore"
)

// Config tunes one importer instance. Zero values get defaults in New.
type Config struct {
	Query           string
	BatchSize       int
	BudgetAllowance int
	BudgetThreshold int
	WebhookURL      string
}

// Importer owns the per-run pipeline wiring. The long-lived pieces (mail
// client, record store, ledger) are injected once; everything budget- or
// cache-scoped is rebuilt inside each Run.
type Importer struct {
	mail    gmail.Client
	store   recordstore.Client
	led     ledger.Store
	mapping *reconcile.Mapping
	cfg     Config
}

// New wires an importer. mapping nil means the built-in mapping.
func New(mail gmail.Client, store recordstore.Client, led ledger.Store, mapping *reconcile.Mapping, cfg Config) *Importer {
	if cfg.Query == "" {
		cfg.Query = "label:intake is:unread"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.BudgetAllowance <= 0 {
		cfg.BudgetAllowance = 10000
	}
	if cfg.BudgetThreshold <= 0 {
		cfg.BudgetThreshold = cfg.BudgetAllowance / 10
	}
	return &Importer{mail: mail, store: store, led: led, mapping: mapping, cfg: cfg}
}

// Run executes one import pass over the configured query.
func (i *Importer) Run(ctx context.Context) (*model.RunResult, error) {
	return i.run(ctx, model.ContinuationParams{
		Query:     i.cfg.Query,
		BatchSize: i.cfg.BatchSize,
	})
}

// Resume executes the pass described by a dequeued continuation.
func (i *Importer) Resume(ctx context.Context, params model.ContinuationParams) (*model.RunResult, error) {
	zap.L().Info("importer: resuming checkpointed work",
		zap.String("parent_run_id", params.ParentRunID),
		zap.String("query", params.Query),
	)
	return i.run(ctx, params)
}

func (i *Importer) run(ctx context.Context, params model.ContinuationParams) (*model.RunResult, error) {
	run, err := i.led.CreateRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "importer: create run")
	}
	params.ParentRunID = run.ID

	// Everything below is scoped to this run: the meter starts full, the
	// lookup cache starts empty, and the governor has not checkpointed.
	meter := budget.NewUsageMeter(i.cfg.BudgetAllowance)
	gov := budget.NewGovernor(meter, &ledgerScheduler{led: i.led}, i.cfg.BudgetThreshold, params)
	metered := budget.NewMeteredStore(i.store, meter)
	engine := reconcile.New(metered, lookup.New(metered), gov, i.mapping)

	var opts []report.Option
	if i.cfg.WebhookURL != "" {
		opts = append(opts, report.WithWebhook(i.cfg.WebhookURL))
	}
	agg := report.New(opts...)

	if _, err := i.mail.RefreshAccessToken(ctx); err != nil {
		i.finalize(ctx, run.ID, model.RunStatusFailed, agg)
		return nil, eris.Wrap(err, "importer: refresh access token")
	}

	refs, err := i.mail.ListMessages(ctx, params.Query, params.BatchSize)
	if err != nil {
		i.finalize(ctx, run.ID, model.RunStatusFailed, agg)
		return nil, eris.Wrap(err, "importer: list messages")
	}
	agg.Fetched(len(refs))
	zap.L().Info("importer: run started",
		zap.String("run_id", run.ID),
		zap.String("query", params.Query),
		zap.Int("messages", len(refs)),
	)

	checkpointed := shouldCheckpoint(gov.Check(ctx))
	for _, ref := range refs {
		if checkpointed {
			break
		}
		i.processMessage(ctx, run.ID, ref.ID, engine, agg)
		checkpointed = shouldCheckpoint(gov.Check(ctx))
	}

	status := model.RunStatusComplete
	if checkpointed {
		status = model.RunStatusCheckpointed
	}
	summary := agg.Emit(ctx, run.ID)
	summary.ContinuationID = gov.ContinuationID()
	if err := i.led.CompleteRun(ctx, run.ID, status, &summary); err != nil {
		zap.L().Error("importer: finalize run failed", zap.String("run_id", run.ID), zap.Error(err))
	}

	return &model.RunResult{
		RunID:        run.ID,
		Checkpointed: checkpointed,
		Summary:      summary,
	}, nil
}

// shouldCheckpoint interprets a governor check. A continuation-submit
// failure is not a checkpoint, but it means the run cannot hand off its
// remaining work, so it must not pass silently.
func shouldCheckpoint(err error) bool {
	if err == nil {
		return false
	}
	if budget.IsCheckpoint(err) {
		return true
	}
	zap.L().Error("importer: budget check failed", zap.Error(err))
	return false
}

// processMessage runs the full per-message pipeline under its own recovery:
// any failure lands in the aggregator and the run moves on. A budget
// checkpoint raised mid-message is not a failure; the work already committed
// stays committed and the message is retried by the continuation run.
func (i *Importer) processMessage(ctx context.Context, runID, messageID string, engine *reconcile.Engine, agg *report.Aggregator) {
	rec := model.MessageRecord{RunID: runID, MessageID: messageID}

	msg, err := i.mail.FetchMessage(ctx, messageID)
	if err != nil {
		agg.Failure(messageID, eris.Wrap(err, "fetch"))
		rec.Status = model.MessageFailed
		rec.Error = err.Error()
		i.record(ctx, rec)
		return
	}

	env, err := parse.Parse(decode.PlainText(msg))
	if err != nil {
		if eris.Is(err, parse.ErrNoData) {
			// Nothing importable; label it so the next run skips it.
			agg.Skip(messageID)
			i.markProcessed(ctx, messageID)
			rec.Status = model.MessageSkipped
			i.record(ctx, rec)
			return
		}
		agg.Failure(messageID, eris.Wrap(err, "parse"))
		rec.Status = model.MessageFailed
		rec.Error = err.Error()
		i.record(ctx, rec)
		return
	}

	res, err := engine.Process(ctx, env)
	if res != nil {
		rec.CustomerID = res.CustomerID
		rec.ProjectID = res.ProjectID
		rec.EstimateID = res.EstimateID
	}
	if err != nil {
		if budget.IsCheckpoint(err) {
			// Leave the message unlabelled; the continuation run picks it
			// up and idempotency absorbs the rework.
			return
		}
		agg.Failure(messageID, err)
		rec.Status = model.MessageFailed
		rec.Error = err.Error()
		i.record(ctx, rec)
		return
	}

	agg.Success(messageID, res.LinesSkipped)
	i.markProcessed(ctx, messageID)
	rec.Status = model.MessageSucceeded
	i.record(ctx, rec)
}

func (i *Importer) markProcessed(ctx context.Context, messageID string) {
	if err := i.mail.MarkProcessed(ctx, messageID); err != nil {
		zap.L().Warn("importer: mark processed failed",
			zap.String("message_id", messageID), zap.Error(err))
	}
}

func (i *Importer) record(ctx context.Context, rec model.MessageRecord) {
	if err := i.led.RecordMessage(ctx, rec); err != nil {
		zap.L().Warn("importer: record message failed",
			zap.String("message_id", rec.MessageID), zap.Error(err))
	}
}

// finalize marks a run that failed before its message loop produced a
// summary.
func (i *Importer) finalize(ctx context.Context, runID string, status model.RunStatus, agg *report.Aggregator) {
	summary := agg.Summary()
	if err := i.led.CompleteRun(ctx, runID, status, &summary); err != nil {
		zap.L().Error("importer: finalize run failed", zap.String("run_id", runID), zap.Error(err))
	}
}
