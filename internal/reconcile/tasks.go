package reconcile

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/parse"
	"github.com/sells-group/intake-cli/pkg/recordstore"
)

// createTasks creates one task per draft under the project. Tasks carry no
// idempotency key, so a rerun of the same message creates duplicates; that
// tradeoff is accepted because tasks are cheap to clean up and the estimate
// is the record that must converge. One task's failure does not block its
// siblings; only a budget checkpoint stops the loop.
func (e *Engine) createTasks(ctx context.Context, drafts []parse.TaskDraft, projectID string) ([]string, error) {
	ids := make([]string, 0, len(drafts))
	for _, draft := range drafts {
		if err := e.check(ctx); err != nil {
			return ids, err
		}

		fields := map[string]any{
			"Name":       draft.Name,
			"Project__c": projectID,
		}
		if draft.EstimatedHours != "" {
			if hours, err := decimal.NewFromString(draft.EstimatedHours); err == nil {
				fields["Estimated_Hours__c"], _ = hours.Float64()
			} else {
				zap.L().Warn("reconcile: unparseable task hours",
					zap.String("task", draft.Name),
					zap.String("value", draft.EstimatedHours),
				)
			}
		}
		setIf(fields, "Due_Date__c", draft.DueDate)
		if draft.Assignee != "" {
			if assigneeID, err := e.cache.EmployeeID(ctx, draft.Assignee); err != nil {
				zap.L().Warn("reconcile: assignee lookup failed",
					zap.String("assignee", draft.Assignee), zap.Error(err))
			} else if assigneeID != "" {
				fields["Assignee__c"] = assigneeID
			}
		}

		id, err := e.store.Create(ctx, recordstore.TypeTask, fields)
		if err != nil {
			zap.L().Warn("reconcile: task creation failed",
				zap.String("task", draft.Name),
				zap.String("project_id", projectID),
				zap.Error(err),
			)
			continue
		}
		ids = append(ids, id)
	}
	zap.L().Debug("reconcile: tasks created",
		zap.String("project_id", projectID),
		zap.Int("created", len(ids)),
		zap.Int("drafts", len(drafts)),
	)
	return ids, nil
}
