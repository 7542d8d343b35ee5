package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/parse"
	"github.com/sells-group/intake-cli/pkg/recordstore"
)

// resolveCustomer finds or creates the customer. Search order: external
// entity id, then company name. Returns "" when the message carries no
// customer-identifying field at all. Any failure here aborts the message.
func (e *Engine) resolveCustomer(ctx context.Context, env *parse.Envelope) (string, error) {
	entityID := e.first(env, "customerEntity")
	name := e.first(env, "customerName")
	if entityID == "" && name == "" {
		return "", nil
	}

	if entityID != "" {
		rows, err := e.store.Search(ctx, recordstore.TypeCustomer,
			[]recordstore.Filter{{Field: "External_Entity_Id__c", Value: entityID}},
			[]string{"Id"})
		if err != nil {
			return "", eris.Wrapf(err, "search customer by entity id %q", entityID)
		}
		if len(rows) > 0 {
			return rows[0].ID(), nil
		}
	}

	if name != "" {
		rows, err := e.store.Search(ctx, recordstore.TypeCustomer,
			[]recordstore.Filter{{Field: "Name", Value: name}},
			[]string{"Id"})
		if err != nil {
			return "", eris.Wrapf(err, "search customer by name %q", name)
		}
		if len(rows) > 0 {
			return rows[0].ID(), nil
		}
	}

	fields := map[string]any{
		"Subsidiary__c": e.mapping.Defaults.Subsidiary,
	}
	if name != "" {
		fields["Name"] = name
	} else {
		fields["Name"] = entityID
	}
	setIf(fields, "External_Entity_Id__c", entityID)

	id, err := e.store.Create(ctx, recordstore.TypeCustomer, fields)
	if err != nil {
		return "", eris.Wrapf(err, "create customer %q", fields["Name"])
	}
	zap.L().Info("reconcile: customer created",
		zap.String("customer_id", id),
		zap.Any("name", fields["Name"]),
	)
	return id, nil
}
