package recordstore

import (
	"fmt"
	"strings"
)

// buildSOQL assembles a SELECT over a single record type. Filters are ANDed
// equality predicates; limit <= 0 means no LIMIT clause.
func buildSOQL(recordType string, filters []Filter, columns []string, limit int) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(recordType)

	if len(filters) > 0 {
		b.WriteString(" WHERE ")
		for i, f := range filters {
			if i > 0 {
				b.WriteString(" AND ")
			}
			if f.Raw {
				fmt.Fprintf(&b, "%s = %s", f.Field, f.Value)
			} else {
				fmt.Fprintf(&b, "%s = '%s'", f.Field, escapeSoql(f.Value))
			}
		}
	}

	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	return b.String()
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
