package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/parse"
	"github.com/sells-group/intake-cli/pkg/recordstore"
)

// resolveProject finds a project by (code, customer) or creates it. An
// existing project gets its manager and billing schedule backfilled when the
// message newly supplies them; it is never recreated. Returns "" when the
// message has no project-identifying field.
func (e *Engine) resolveProject(ctx context.Context, env *parse.Envelope, customerID string) (string, error) {
	code := e.first(env, "projectCode")
	if code == "" {
		return "", nil
	}

	rows, err := e.store.Search(ctx, recordstore.TypeProject,
		[]recordstore.Filter{
			{Field: "Code__c", Value: code},
			{Field: "Account__c", Value: customerID},
		},
		[]string{"Id", "Manager__c", "Billing_Schedule__c"})
	if err != nil {
		return "", eris.Wrapf(err, "search project %q", code)
	}
	if len(rows) > 0 {
		id := rows[0].ID()
		e.backfillProject(ctx, env, id, rows[0])
		return id, nil
	}

	fields := map[string]any{
		"Code__c":    code,
		"Account__c": customerID,
	}
	if name := e.first(env, "projectName"); name != "" {
		fields["Name"] = name
	} else {
		fields["Name"] = code
	}
	setIf(fields, "Start_Date__c", e.first(env, "startDate"))
	setIf(fields, "End_Date__c", e.first(env, "endDate"))
	setIf(fields, "Status__c", e.first(env, "projectStatus"))
	setIf(fields, "Description__c", e.first(env, "description"))
	if raw := e.first(env, "budgetHours"); raw != "" {
		if hours, err := decimal.NewFromString(raw); err == nil {
			fields["Budget_Hours__c"], _ = hours.Float64()
		} else {
			zap.L().Warn("reconcile: unparseable budget hours", zap.String("value", raw))
		}
	}

	// Manager and billing schedule each resolve independently; a failed
	// lookup drops the field, not the project.
	if mgr := e.first(env, "projectManager"); mgr != "" {
		if mgrID, err := e.cache.EmployeeID(ctx, mgr); err != nil {
			zap.L().Warn("reconcile: manager lookup failed", zap.String("manager", mgr), zap.Error(err))
		} else if mgrID != "" {
			fields["Manager__c"] = mgrID
		}
	}
	if bs := e.first(env, "billingSchedule"); bs != "" {
		if bsID, err := e.cache.BillingScheduleID(ctx, bs); err != nil {
			zap.L().Warn("reconcile: billing schedule lookup failed", zap.String("schedule", bs), zap.Error(err))
		} else if bsID != "" {
			fields["Billing_Schedule__c"] = bsID
		}
	}

	id, err := e.store.Create(ctx, recordstore.TypeProject, fields)
	if err != nil {
		return "", eris.Wrapf(err, "create project %q", code)
	}
	zap.L().Info("reconcile: project created",
		zap.String("project_id", id),
		zap.String("code", code),
	)
	return id, nil
}

// backfillProject updates manager/billing-schedule on an existing project
// when the message supplies a value and the record lacks one. Failures are
// logged; the existing project id is still used.
func (e *Engine) backfillProject(ctx context.Context, env *parse.Envelope, id string, existing recordstore.Record) {
	updates := make(map[string]any)

	if mgr := e.first(env, "projectManager"); mgr != "" && existing.Str("Manager__c") == "" {
		if mgrID, err := e.cache.EmployeeID(ctx, mgr); err != nil {
			zap.L().Warn("reconcile: backfill manager lookup failed", zap.String("manager", mgr), zap.Error(err))
		} else if mgrID != "" {
			updates["Manager__c"] = mgrID
		}
	}
	if bs := e.first(env, "billingSchedule"); bs != "" && existing.Str("Billing_Schedule__c") == "" {
		if bsID, err := e.cache.BillingScheduleID(ctx, bs); err != nil {
			zap.L().Warn("reconcile: backfill billing schedule lookup failed", zap.String("schedule", bs), zap.Error(err))
		} else if bsID != "" {
			updates["Billing_Schedule__c"] = bsID
		}
	}

	if len(updates) == 0 {
		return
	}
	if err := e.store.Save(ctx, recordstore.TypeProject, id, updates); err != nil {
		zap.L().Warn("reconcile: project backfill failed", zap.String("project_id", id), zap.Error(err))
		return
	}
	zap.L().Info("reconcile: project backfilled", zap.String("project_id", id), zap.Int("fields", len(updates)))
}
