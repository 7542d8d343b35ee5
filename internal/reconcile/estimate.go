package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/budget"
	"github.com/sells-group/intake-cli/internal/parse"
	"github.com/sells-group/intake-cli/pkg/recordstore"
)

// createEstimate builds the estimate header and its lines. When the message
// carries an idempotency key an existing estimate with that external id is
// reused; without a key every run creates a fresh estimate, which the log
// calls out. Returns the estimate id and how many lines were skipped.
func (e *Engine) createEstimate(ctx context.Context, env *parse.Envelope, customerID, projectID string) (string, int, error) {
	key := e.first(env, "idempotencyKey")

	if key != "" {
		rows, err := e.store.Search(ctx, recordstore.TypeEstimate,
			[]recordstore.Filter{{Field: "External_Id__c", Value: key}},
			[]string{"Id"})
		if err != nil {
			return "", 0, eris.Wrapf(err, "search estimate by key %q", key)
		}
		if len(rows) > 0 {
			id := rows[0].ID()
			zap.L().Info("reconcile: estimate reused",
				zap.String("estimate_id", id),
				zap.String("idempotency_key", key),
			)
			return id, 0, nil
		}
	} else {
		zap.L().Warn("reconcile: no idempotency key, estimate will duplicate on rerun",
			zap.String("customer_id", customerID))
	}

	fields := map[string]any{
		"Account__c": customerID,
	}
	setIf(fields, "Project__c", projectID)
	setIf(fields, "Transaction_Date__c", e.first(env, "transactionDate"))
	setIf(fields, "Due_Date__c", e.first(env, "estimateDueDate"))
	setIf(fields, "Memo__c", e.first(env, "memo"))
	setIf(fields, "External_Id__c", key)
	if raw := e.first(env, "estimateStatus"); raw != "" {
		if status := e.mapping.Status(raw); status != "" {
			fields["Status__c"] = status
		} else {
			zap.L().Warn("reconcile: unknown estimate status", zap.String("status", raw))
		}
	}
	e.applyDimensions(ctx, env, fields)

	estimateID, err := e.store.Create(ctx, recordstore.TypeEstimate, fields)
	if err != nil {
		return "", 0, eris.Wrap(err, "create estimate")
	}
	zap.L().Info("reconcile: estimate created",
		zap.String("estimate_id", estimateID),
		zap.String("customer_id", customerID),
		zap.Int("lines", len(env.LineItems)),
	)

	skipped := 0
	for i, line := range env.LineItems {
		if err := e.check(ctx); err != nil {
			return estimateID, skipped, err
		}
		if err := e.createLine(ctx, estimateID, line); err != nil {
			if budget.IsCheckpoint(err) {
				return estimateID, skipped, err
			}
			skipped++
			zap.L().Warn("reconcile: estimate line skipped",
				zap.String("estimate_id", estimateID),
				zap.Int("line", i+1),
				zap.String("item", line.Name),
				zap.Error(err),
			)
		}
	}
	return estimateID, skipped, nil
}

// applyDimensions resolves class/department/location and billing schedule
// through the cache. Each dimension fails independently: a bad lookup drops
// that one field.
func (e *Engine) applyDimensions(ctx context.Context, env *parse.Envelope, fields map[string]any) {
	type dim struct {
		field   string
		column  string
		resolve func(context.Context, string) (string, error)
	}
	for _, d := range []dim{
		{"class", "Class__c", e.cache.ClassID},
		{"department", "Department__c", e.cache.DepartmentID},
		{"location", "Location__c", e.cache.LocationID},
		{"billingSchedule", "Billing_Schedule__c", e.cache.BillingScheduleID},
	} {
		name := e.first(env, d.field)
		if name == "" {
			continue
		}
		id, err := d.resolve(ctx, name)
		if err != nil {
			zap.L().Warn("reconcile: dimension lookup failed",
				zap.String("dimension", d.field),
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}
		if id != "" {
			fields[d.column] = id
		}
	}
}

// createLine resolves the catalog item for one draft and creates the line
// record under the estimate.
func (e *Engine) createLine(ctx context.Context, estimateID string, line parse.LineItemDraft) error {
	itemID, err := e.resolveLineItem(ctx, line)
	if err != nil {
		return err
	}

	fields := map[string]any{
		"Estimate__c": estimateID,
		"Item__c":     itemID,
	}
	if line.Quantity > 0 {
		fields["Quantity__c"] = line.Quantity
	}
	if !line.Rate.IsZero() {
		fields["Rate__c"], _ = line.Rate.Float64()
	}
	setIf(fields, "Description__c", line.Description)

	if _, err := e.store.Create(ctx, recordstore.TypeEstimateLine, fields); err != nil {
		return eris.Wrapf(err, "create line for item %q", line.Name)
	}
	return nil
}
