package parse

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// overlayItem is one line item inside the structured-data block.
type overlayItem struct {
	ItemID        string      `json:"itemId"`
	Name          string      `json:"name"`
	DisplayName   string      `json:"displayName"`
	Description   string      `json:"description"`
	Quantity      int         `json:"quantity"`
	Rate          json.Number `json:"rate"`
	PurchasePrice json.Number `json:"purchasePrice"`
}

// applyOverlay parses the structured-data block and merges it over the
// tag-derived fields; overlay values win on key collision. An "items" (or
// "lineItems") array replaces tag-derived line items entirely. Returns true
// when at least one value was applied.
func applyOverlay(env *Envelope, raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}

	// Decode the first JSON value and ignore any trailing text, so a
	// signature under the block does not invalidate it.
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(strings.NewReader(raw)).Decode(&doc); err != nil {
		zap.L().Debug("parse: structured data block is not valid JSON", zap.Error(err))
		return false
	}

	applied := false
	for key, val := range doc {
		if key == "items" || key == "lineItems" {
			if items, ok := decodeItems(val); ok {
				env.LineItems = items
				applied = true
			}
			continue
		}
		if s, ok := scalarString(val); ok {
			env.Fields[key] = s
			applied = true
		}
	}
	return applied
}

func decodeItems(raw json.RawMessage) ([]LineItemDraft, bool) {
	var items []overlayItem
	if err := json.Unmarshal(raw, &items); err != nil {
		zap.L().Debug("parse: structured data items malformed", zap.Error(err))
		return nil, false
	}
	drafts := make([]LineItemDraft, 0, len(items))
	for _, it := range items {
		d := LineItemDraft{
			ItemID:      it.ItemID,
			Name:        it.Name,
			DisplayName: it.DisplayName,
			Description: it.Description,
			Quantity:    it.Quantity,
		}
		if it.Rate != "" {
			if rate, err := decimal.NewFromString(it.Rate.String()); err == nil {
				d.Rate = rate
			}
		}
		if it.PurchasePrice != "" {
			if pp, err := decimal.NewFromString(it.PurchasePrice.String()); err == nil {
				d.PurchasePrice = pp
			}
		}
		drafts = append(drafts, d)
	}
	return drafts, true
}

// scalarString renders a scalar JSON value as a field string. Objects and
// arrays under unknown keys are ignored.
func scalarString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}
