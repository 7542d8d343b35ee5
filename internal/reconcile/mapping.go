package reconcile

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Mapping carries the estimate status table, the ordered tag-field alias
// lists, and record defaults. Deployments can override any of it with a
// small YAML file; everything else falls back to the built-in table.
type Mapping struct {
	StatusCodes map[string]string   `yaml:"status_codes"`
	Aliases     map[string][]string `yaml:"aliases"`
	Defaults    MappingDefaults     `yaml:"defaults"`
}

// MappingDefaults are values applied when a message omits a field.
type MappingDefaults struct {
	Subsidiary string `yaml:"subsidiary"`
}

// DefaultMapping is the built-in status table and alias lists.
func DefaultMapping() *Mapping {
	return &Mapping{
		StatusCodes: map[string]string{
			"open":     "Open",
			"pending":  "Pending Approval",
			"approved": "Approved",
			"closed":   "Closed",
			"expired":  "Expired",
		},
		Aliases: map[string][]string{
			// Ordered candidate sources per field. Precedence is this list,
			// front to back; overlay values already won at parse time.
			"customerEntity":  {"customerEntityId", "entityId", "customerId"},
			"customerName":    {"customerName", "companyName", "customer"},
			"projectCode":     {"projectCode", "projectId", "project"},
			"projectName":     {"projectName"},
			"projectManager":  {"projectManager", "manager"},
			"billingSchedule": {"billingSchedule", "billingScheduleName"},
			"startDate":       {"startDate", "projectStart"},
			"endDate":         {"endDate", "projectEnd"},
			"budgetHours":     {"budgetHours", "budget"},
			"projectStatus":   {"projectStatus"},
			"description":     {"description", "projectDescription"},
			"idempotencyKey":  {"idempotencyKey", "dedupeKey", "externalId", "requestId"},
			"estimateStatus":  {"estimateStatus", "status"},
			"estimateDueDate": {"estimateDueDate", "dueDate"},
			"memo":            {"memo", "estimateMemo", "notes"},
			"transactionDate": {"transactionDate", "txnDate"},
			"class":           {"class", "className"},
			"department":      {"department", "departmentName"},
			"location":        {"location", "locationName"},
		},
		Defaults: MappingDefaults{
			Subsidiary: "Primary",
		},
	}
}

// LoadMapping reads overrides from a YAML file and merges them over the
// defaults. Unknown keys extend the tables rather than replacing them.
func LoadMapping(path string) (*Mapping, error) {
	m := DefaultMapping()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: read mapping %s", path)
	}

	var overrides Mapping
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrap(err, "reconcile: parse mapping")
	}

	for k, v := range overrides.StatusCodes {
		m.StatusCodes[strings.ToLower(k)] = v
	}
	for k, v := range overrides.Aliases {
		m.Aliases[k] = v
	}
	if overrides.Defaults.Subsidiary != "" {
		m.Defaults.Subsidiary = overrides.Defaults.Subsidiary
	}
	return m, nil
}

// Status maps a raw status word through the fixed table, case-insensitively.
// Unknown statuses return "" and the field is omitted from the record.
func (m *Mapping) Status(raw string) string {
	return m.StatusCodes[strings.ToLower(strings.TrimSpace(raw))]
}

// Keys returns the ordered candidate key list for a field, falling back to
// the field name itself when no alias list exists.
func (m *Mapping) Keys(field string) []string {
	if keys, ok := m.Aliases[field]; ok {
		return keys
	}
	return []string{field}
}
