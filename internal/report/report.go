// Package report aggregates per-message outcomes into the end-of-run
// summary. Individual failures never stop a run; they accumulate here and
// surface once, at the end.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/model"
)

// Aggregator collects message outcomes for one run. It is not safe for
// concurrent use; messages are processed one at a time.
type Aggregator struct {
	fetched      int
	succeeded    int
	skipped      int
	linesSkipped int
	failures     []model.MessageFailure

	webhookURL string
	client     *http.Client
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithWebhook sends the end-of-run summary to url when any message failed.
func WithWebhook(url string) Option {
	return func(a *Aggregator) { a.webhookURL = url }
}

// WithHTTPClient overrides the webhook HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Aggregator) { a.client = c }
}

// New creates an empty aggregator for a run.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fetched records how many candidate messages the run listed.
func (a *Aggregator) Fetched(n int) { a.fetched = n }

// Success records a message that imported, along with any lines its
// estimate had to drop.
func (a *Aggregator) Success(messageID string, linesSkipped int) {
	a.succeeded++
	a.linesSkipped += linesSkipped
}

// Skip records a message with no recognizable data.
func (a *Aggregator) Skip(messageID string) {
	a.skipped++
	zap.L().Info("report: message skipped", zap.String("message_id", messageID))
}

// Failure records a message whose pipeline threw.
func (a *Aggregator) Failure(messageID string, err error) {
	a.failures = append(a.failures, model.MessageFailure{
		MessageID: messageID,
		Error:     err.Error(),
	})
	zap.L().Error("report: message failed",
		zap.String("message_id", messageID),
		zap.Error(err),
	)
}

// Summary snapshots the run totals.
func (a *Aggregator) Summary() model.RunSummary {
	return model.RunSummary{
		Fetched:      a.fetched,
		Succeeded:    a.succeeded,
		Skipped:      a.skipped,
		Failed:       len(a.failures),
		LinesSkipped: a.linesSkipped,
		Failures:     append([]model.MessageFailure(nil), a.failures...),
	}
}

// Emit logs the end-of-run summary and, when failures occurred and a webhook
// is configured, posts it onward. Webhook delivery failures are logged, not
// returned; the run outcome does not depend on the report landing.
func (a *Aggregator) Emit(ctx context.Context, runID string) model.RunSummary {
	summary := a.Summary()

	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.Int("fetched", summary.Fetched),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("lines_skipped", summary.LinesSkipped),
	}
	if summary.Failed > 0 {
		zap.L().Warn("report: run finished with failures", fields...)
		for _, f := range summary.Failures {
			zap.L().Warn("report: failure detail",
				zap.String("message_id", f.MessageID),
				zap.String("error", f.Error),
			)
		}
		if a.webhookURL != "" {
			if err := a.post(ctx, runID, summary); err != nil {
				zap.L().Error("report: webhook delivery failed", zap.Error(err))
			}
		}
	} else {
		zap.L().Info("report: run finished", fields...)
	}
	return summary
}

type webhookPayload struct {
	RunID     string           `json:"run_id"`
	Summary   model.RunSummary `json:"summary"`
	Timestamp time.Time        `json:"timestamp"`
}

func (a *Aggregator) post(ctx context.Context, runID string, summary model.RunSummary) error {
	payload, err := json.Marshal(webhookPayload{
		RunID:     runID,
		Summary:   summary,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return eris.Wrap(err, "report: marshal summary")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "report: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "report: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("report: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
