// Package parse implements the line-oriented "#key: value" email grammar and
// its sub-block grammars for tasks, checklists, estimate line items and
// resources.
package parse

import "github.com/shopspring/decimal"

// Envelope is the typed intermediate model produced from one message body.
// It is built once and not mutated after Parse returns.
type Envelope struct {
	Fields     map[string]string
	Tasks      []TaskDraft
	Checklists []ChecklistDraft
	LineItems  []LineItemDraft
	Resources  []ResourceDraft
}

// Field returns the value of a top-level tag field, or "".
func (e *Envelope) Field(key string) string {
	return e.Fields[key]
}

// First returns the first non-empty value among the given candidate keys,
// in order. Every multi-source field resolves through an explicit key list
// so precedence is visible at the call site.
func (e *Envelope) First(keys ...string) string {
	for _, k := range keys {
		if v := e.Fields[k]; v != "" {
			return v
		}
	}
	return ""
}

// TaskDraft is one "Task N:" block. Hours and dates stay as strings; the
// store validates them.
type TaskDraft struct {
	Name           string
	EstimatedHours string
	Assignee       string
	DueDate        string
}

// ChecklistDraft is one "Checklist N:" block with its items.
type ChecklistDraft struct {
	Name  string
	Items []ChecklistItem
}

// ChecklistItem is a single checklist entry.
type ChecklistItem struct {
	Name      string
	Completed bool
}

// LineItemDraft is one estimate line. A DisplayName differing from Name
// means the caller wants a renamed derivative of the catalog item Name.
type LineItemDraft struct {
	ItemID        string
	Name          string
	DisplayName   string
	Description   string
	Quantity      int
	Rate          decimal.Decimal
	PurchasePrice decimal.Decimal
}

// ResourceDraft is one staffing line: hours at an hourly rate.
type ResourceDraft struct {
	Name  string
	Hours decimal.Decimal
	Rate  decimal.Decimal
}
