package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/parse"
	"github.com/sells-group/intake-cli/pkg/recordstore"
)

// resolveLineItem turns one draft into a catalog item id. The ladder, in
// order: explicit id; renamed derivative (reuse an item already bearing the
// display name, else clone the source item, else bare-create); plain
// lookup-or-create by name; any generic active item. An error means every
// rung failed and the caller should skip the line.
func (e *Engine) resolveLineItem(ctx context.Context, line parse.LineItemDraft) (string, error) {
	if line.ItemID != "" {
		return line.ItemID, nil
	}

	id, err := e.resolveByName(ctx, line)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil {
		zap.L().Warn("reconcile: item resolution failed, trying generic fallback",
			zap.String("item", line.Name), zap.Error(err))
	}

	id, fbErr := e.genericItem(ctx)
	if fbErr != nil || id == "" {
		if err == nil {
			err = eris.New("reconcile: no item resolved")
		}
		return "", eris.Wrapf(err, "resolve item %q", line.Name)
	}
	zap.L().Warn("reconcile: generic item substituted",
		zap.String("item", line.Name), zap.String("item_id", id))
	return id, nil
}

func (e *Engine) resolveByName(ctx context.Context, line parse.LineItemDraft) (string, error) {
	renamed := line.DisplayName != "" && line.DisplayName != line.Name

	if renamed {
		// The display name is checked first so a retried message reuses the
		// clone made last time instead of cloning again.
		id, err := e.cache.ItemID(ctx, line.DisplayName)
		if err != nil {
			return "", eris.Wrapf(err, "lookup display name %q", line.DisplayName)
		}
		if id != "" {
			return id, nil
		}

		sourceID, err := e.cache.ItemID(ctx, line.Name)
		if err != nil {
			return "", eris.Wrapf(err, "lookup source item %q", line.Name)
		}
		if sourceID != "" {
			return e.cloneItem(ctx, sourceID, line)
		}
		return e.createItem(ctx, line.DisplayName, line)
	}

	id, err := e.cache.ItemID(ctx, line.Name)
	if err != nil {
		return "", eris.Wrapf(err, "lookup item %q", line.Name)
	}
	if id != "" {
		return id, nil
	}
	return e.createItem(ctx, line.Name, line)
}

// cloneItem creates a derivative of sourceID under the draft's display name,
// carrying over pricing and account links from the source.
func (e *Engine) cloneItem(ctx context.Context, sourceID string, line parse.LineItemDraft) (string, error) {
	source, err := e.store.Load(ctx, recordstore.TypeCatalogItem, sourceID,
		[]string{"Rate__c", "Income_Account__c", "Expense_Account__c", "Subsidiary__c"})
	if err != nil {
		return "", eris.Wrapf(err, "load source item %s", sourceID)
	}

	fields := map[string]any{
		"Name":     line.DisplayName,
		"IsActive": true,
	}
	for _, col := range []string{"Rate__c", "Income_Account__c", "Expense_Account__c", "Subsidiary__c"} {
		if v, ok := source[col]; ok && v != nil {
			fields[col] = v
		}
	}
	setIf(fields, "Description", line.Description)

	id, err := e.store.Create(ctx, recordstore.TypeCatalogItem, fields)
	if err != nil {
		return "", eris.Wrapf(err, "clone item %q", line.DisplayName)
	}
	zap.L().Info("reconcile: item cloned",
		zap.String("item_id", id),
		zap.String("source_id", sourceID),
		zap.String("name", line.DisplayName),
	)
	return id, nil
}

// createItem creates a bare catalog item with whatever pricing the draft
// supplies.
func (e *Engine) createItem(ctx context.Context, name string, line parse.LineItemDraft) (string, error) {
	fields := map[string]any{
		"Name":     name,
		"IsActive": true,
	}
	if !line.Rate.IsZero() {
		fields["Rate__c"], _ = line.Rate.Float64()
	}
	setIf(fields, "Description", line.Description)

	id, err := e.store.Create(ctx, recordstore.TypeCatalogItem, fields)
	if err != nil {
		return "", eris.Wrapf(err, "create item %q", name)
	}
	zap.L().Info("reconcile: item created",
		zap.String("item_id", id), zap.String("name", name))
	return id, nil
}

// genericItem returns any active catalog item, the last rung before a line
// is dropped.
func (e *Engine) genericItem(ctx context.Context) (string, error) {
	rows, err := e.store.Search(ctx, recordstore.TypeCatalogItem,
		[]recordstore.Filter{{Field: "IsActive", Value: "true", Raw: true}},
		[]string{"Id"})
	if err != nil {
		return "", eris.Wrap(err, "search generic item")
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].ID(), nil
}
