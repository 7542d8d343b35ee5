// Package lookup memoizes name→id reference lookups for the duration of a
// single import run, bounding the number of remote read calls per run.
package lookup

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/intake-cli/pkg/recordstore"
)

// Cache holds independent per-run memos for each reference dimension. It is
// constructed fresh at run start and passed into every lookup site; it is
// never persisted or shared across runs.
type Cache struct {
	store recordstore.Client

	items       map[string]string
	classes     map[string]string
	departments map[string]string
	locations   map[string]string
	employees   map[string]string
	schedules   map[string]string
}

// New creates an empty cache backed by the given record store.
func New(store recordstore.Client) *Cache {
	return &Cache{
		store:       store,
		items:       make(map[string]string),
		classes:     make(map[string]string),
		departments: make(map[string]string),
		locations:   make(map[string]string),
		employees:   make(map[string]string),
		schedules:   make(map[string]string),
	}
}

// ItemID resolves a catalog item name to its id.
func (c *Cache) ItemID(ctx context.Context, name string) (string, error) {
	return c.resolve(ctx, c.items, recordstore.TypeCatalogItem, name)
}

// ClassID resolves a classification class name to its id.
func (c *Cache) ClassID(ctx context.Context, name string) (string, error) {
	return c.resolve(ctx, c.classes, recordstore.TypeClass, name)
}

// DepartmentID resolves a department name to its id.
func (c *Cache) DepartmentID(ctx context.Context, name string) (string, error) {
	return c.resolve(ctx, c.departments, recordstore.TypeDepartment, name)
}

// LocationID resolves a location name to its id.
func (c *Cache) LocationID(ctx context.Context, name string) (string, error) {
	return c.resolve(ctx, c.locations, recordstore.TypeLocation, name)
}

// EmployeeID resolves an employee name to its id.
func (c *Cache) EmployeeID(ctx context.Context, name string) (string, error) {
	return c.resolve(ctx, c.employees, recordstore.TypeEmployee, name)
}

// BillingScheduleID resolves a billing schedule name to its id.
func (c *Cache) BillingScheduleID(ctx context.Context, name string) (string, error) {
	return c.resolve(ctx, c.schedules, recordstore.TypeBillingSchedule, name)
}

// resolve returns the id for a name, consulting the memo first and querying
// the store on a miss. Numeric-looking input is already an id and
// short-circuits the cache. Not-found is ("", nil); only transport failures
// return an error. Safe to call redundantly.
func (c *Cache) resolve(ctx context.Context, memo map[string]string, recordType, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	if isNumeric(name) {
		return name, nil
	}
	if id, ok := memo[name]; ok {
		return id, nil
	}

	rows, err := c.store.Search(ctx, recordType,
		[]recordstore.Filter{{Field: "Name", Value: name}},
		[]string{"Id"})
	if err != nil {
		return "", eris.Wrapf(err, "lookup: search %s %q", recordType, name)
	}
	if len(rows) == 0 {
		return "", nil
	}

	memo[name] = rows[0].ID()
	return memo[name], nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
