// Package analysis turns a model response into an analysis record.
package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names shared with the analysis prompt.
const (
	FieldCategorizedTransactions = "categorized_transactions"
	FieldCategoryTotals          = "category_totals"
	FieldInsights                = "insights"
	FieldSuggestedBudget         = "suggested_budget"
	FieldTotalSpending           = "total_spending"
	FieldError                   = "error"
	FieldRawResponse             = "raw_response"
)

var (
	errNotObject    = errors.New("analysis: expected a JSON object")
	errTrailingData = errors.New("analysis: unexpected data after JSON object")
)

// Record is the model's analysis, passed through without schema validation.
// A record is either the success shape or the failure shape
// {"error", "raw_response"}; check Failed before reading anything else.
// Accessors return empty or zero values for missing or mistyped fields.
type Record struct {
	fields map[string]any
	// key order of category_totals as it appeared in the source JSON
	totalsOrder []string
}

// CategoryTotal is one entry of category_totals.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
}

// NewRecord wraps already decoded fields.
func NewRecord(fields map[string]any) Record {
	return Record{fields: fields}
}

// Failure builds the failure shape around the untouched model text.
func Failure(message, raw string) Record {
	return Record{fields: map[string]any{
		FieldError:       message,
		FieldRawResponse: raw,
	}}
}

func (r Record) Failed() bool {
	_, ok := r.fields[FieldError]
	return ok
}

func (r Record) ErrorMessage() string {
	s, _ := r.fields[FieldError].(string)
	return s
}

func (r Record) RawResponse() string {
	s, _ := r.fields[FieldRawResponse].(string)
	return s
}

// Get returns a field as decoded from JSON.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// Fields returns the decoded top-level object.
func (r Record) Fields() map[string]any { return r.fields }

// TotalSpending returns total_spending, or zero.
func (r Record) TotalSpending() decimal.Decimal {
	d, _ := toDecimal(r.fields[FieldTotalSpending])
	return d
}

// CategoryTotals returns category_totals in source order. Without a known
// source order the categories are sorted by name.
func (r Record) CategoryTotals() []CategoryTotal {
	totals, ok := r.fields[FieldCategoryTotals].(map[string]any)
	if !ok {
		return nil
	}

	order := r.totalsOrder
	if len(order) != len(totals) {
		order = make([]string, 0, len(totals))
		for k := range totals {
			order = append(order, k)
		}
		sort.Strings(order)
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, name := range order {
		amount, _ := toDecimal(totals[name])
		out = append(out, CategoryTotal{Category: name, Amount: amount})
	}
	return out
}

// Insights returns the insight strings in order.
func (r Record) Insights() []string {
	items, ok := r.fields[FieldInsights].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case nil:
			out = append(out, "")
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.fields)
}

// UnmarshalJSON accepts only a JSON object. Numbers are kept as
// json.Number so their text survives a round trip. It also records the key
// order of category_totals.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	if fields == nil {
		return errNotObject
	}

	var order []string
	if _, ok := fields[FieldCategoryTotals].(map[string]any); ok {
		var top map[string]json.RawMessage
		if err := json.Unmarshal(data, &top); err == nil {
			order, _ = objectKeys(top[FieldCategoryTotals])
		}
	}

	r.fields = fields
	r.totalsOrder = order
	return nil
}

// objectKeys lists the keys of a JSON object in order, first occurrence wins.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}
