package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	taskHeader      = regexp.MustCompile(`^Task\s+\d+:\s*(.+)$`)
	checklistHeader = regexp.MustCompile(`^Checklist\s+\d+:\s*(.+)$`)
	lineItemRow     = regexp.MustCompile(`^-\s*(.+?):\s*Qty=(\d+),\s*Rate=([0-9]+(?:\.[0-9]+)?)(?:,\s*Purchase=([0-9]+(?:\.[0-9]+)?))?\s*$`)
	resourceRow     = regexp.MustCompile(`^-\s*(.+?):\s*([0-9]+(?:\.[0-9]+)?)\s*hrs\s*@\s*\$([0-9]+(?:\.[0-9]+)?)/hr\s*$`)
)

// checkedGlyphs and uncheckedGlyphs are the list markers the email composer
// emits for checklist items.
var (
	checkedGlyphs   = []string{"[x]", "[X]", "☑"}
	uncheckedGlyphs = []string{"[ ]", "[]", "☐"}
)

func parseTasks(env *Envelope, lines []string, start int) int {
	i := start
	var cur *TaskDraft
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if isBlockEnd(line) {
			break
		}
		if m := taskHeader.FindStringSubmatch(line); m != nil {
			env.Tasks = append(env.Tasks, TaskDraft{Name: strings.TrimSpace(m[1])})
			cur = &env.Tasks[len(env.Tasks)-1]
			continue
		}
		if cur == nil {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Estimated Hours:"):
			cur.EstimatedHours = strings.TrimSpace(strings.TrimPrefix(line, "Estimated Hours:"))
		case strings.HasPrefix(line, "Assignee:"):
			cur.Assignee = strings.TrimSpace(strings.TrimPrefix(line, "Assignee:"))
		case strings.HasPrefix(line, "Due Date:"):
			cur.DueDate = strings.TrimSpace(strings.TrimPrefix(line, "Due Date:"))
		}
	}
	return i
}

func parseChecklists(env *Envelope, lines []string, start int) int {
	i := start
	var cur *ChecklistDraft
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if isBlockEnd(line) {
			break
		}
		if m := checklistHeader.FindStringSubmatch(line); m != nil {
			env.Checklists = append(env.Checklists, ChecklistDraft{Name: strings.TrimSpace(m[1])})
			cur = &env.Checklists[len(env.Checklists)-1]
			continue
		}
		if cur == nil {
			continue
		}
		if name, completed, ok := checklistItem(line); ok {
			cur.Items = append(cur.Items, ChecklistItem{Name: name, Completed: completed})
		}
	}
	return i
}

func checklistItem(line string) (name string, completed, ok bool) {
	for _, g := range checkedGlyphs {
		if strings.HasPrefix(line, g) {
			return strings.TrimSpace(strings.TrimPrefix(line, g)), true, true
		}
	}
	for _, g := range uncheckedGlyphs {
		if strings.HasPrefix(line, g) {
			return strings.TrimSpace(strings.TrimPrefix(line, g)), false, true
		}
	}
	return "", false, false
}

func parseLineItems(env *Envelope, lines []string, start int) int {
	i := start
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if isBlockEnd(line) {
			break
		}
		m := lineItemRow.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		qty, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		rate, err := decimal.NewFromString(m[3])
		if err != nil {
			continue
		}
		item := LineItemDraft{
			Name:     strings.TrimSpace(m[1]),
			Quantity: qty,
			Rate:     rate,
		}
		if m[4] != "" {
			if pp, err := decimal.NewFromString(m[4]); err == nil {
				item.PurchasePrice = pp
			}
		}
		env.LineItems = append(env.LineItems, item)
	}
	return i
}

func parseResources(env *Envelope, lines []string, start int) int {
	i := start
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if isBlockEnd(line) {
			break
		}
		m := resourceRow.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		hours, err := decimal.NewFromString(m[2])
		if err != nil {
			continue
		}
		rate, err := decimal.NewFromString(m[3])
		if err != nil {
			continue
		}
		env.Resources = append(env.Resources, ResourceDraft{
			Name:  strings.TrimSpace(m[1]),
			Hours: hours,
			Rate:  rate,
		})
	}
	return i
}
