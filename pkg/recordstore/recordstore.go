// Package recordstore provides generic access to the company's
// Salesforce-backed business record store. The importer only ever needs the
// four shapes defined on Client: search, create, load and save are enough to
// resolve-or-create every record type it touches.
package recordstore

import "context"

// Record is a single row returned by the store. Keys are field names as the
// store reports them.
type Record map[string]any

// ID returns the record's identifier, or "" when absent.
func (r Record) ID() string {
	return r.Str("Id")
}

// Str returns the named field as a string, or "" when absent or non-string.
func (r Record) Str(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Filter is an equality predicate on a single field. Raw values are emitted
// unquoted (booleans, numbers); everything else is escaped and quoted.
type Filter struct {
	Field string
	Value string
	Raw   bool
}

// Client defines the record store operations used by the importer.
type Client interface {
	Search(ctx context.Context, recordType string, filters []Filter, columns []string) ([]Record, error)
	Create(ctx context.Context, recordType string, fields map[string]any) (string, error)
	Load(ctx context.Context, recordType, id string, columns []string) (Record, error)
	Save(ctx context.Context, recordType, id string, fields map[string]any) error
}
