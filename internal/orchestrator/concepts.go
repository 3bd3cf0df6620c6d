package orchestrator

import (
	"fmt"
	"strings"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// ColumnRequirement is one column an analytical concept needs, along with
// what to tell the user when the active schema doesn't have it (spec.md
// §4.12 ReplyEducational: "every required column with type + example +
// alternatives").
type ColumnRequirement struct {
	Name         string
	DataType     string
	Example      string
	Alternatives []string
}

// satisfiedBy reports whether any of columns (already lowercased) names or
// matches this requirement, by exact name or by exact match of any listed
// alternative (case-insensitive); substring matches do not count.
func (c ColumnRequirement) satisfiedBy(columns map[string]bool) bool {
	if columns[strings.ToLower(c.Name)] {
		return true
	}
	for _, alt := range c.Alternatives {
		altLower := strings.ToLower(alt)
		if columns[altLower] {
			return true
		}
	}
	return false
}

// concept is a named analytical ask the schema may or may not support.
// Triggers are matched as case-insensitive substrings of the question.
type concept struct {
	Triggers []string
	Requires []ColumnRequirement
}

// conceptTable is the data-driven list DetectMissingColumns walks, in the
// spirit of spec.md §9's "keyword-driven classification as a lookup table"
// design note applied to this pre-planning capability check too.
var conceptTable = []concept{
	{
		Triggers: []string{"profit margin", "profit margins", "margin"},
		Requires: []ColumnRequirement{
			{
				Name:         "cost",
				DataType:     "numeric",
				Example:      "42.50",
				Alternatives: []string{"cost", "expense", "cogs", "profit_margin"},
			},
		},
	},
	{
		Triggers: []string{"churn"},
		Requires: []ColumnRequirement{
			{
				Name:         "cancelled_at",
				DataType:     "date or string",
				Example:      "2026-03-01, or a status value like 'cancelled'",
				Alternatives: []string{"cancelled_at", "canceled_at", "churn_date", "status"},
			},
		},
	},
	{
		Triggers: []string{"conversion rate", "conversion"},
		Requires: []ColumnRequirement{
			{
				Name:         "converted",
				DataType:     "boolean or string",
				Example:      "true, or a status value like 'converted'",
				Alternatives: []string{"converted", "conversion", "is_converted", "status"},
			},
		},
	},
	{
		Triggers: []string{"lifetime value", "ltv"},
		Requires: []ColumnRequirement{
			{
				Name:         "customer_id",
				DataType:     "identifier",
				Example:      "cust_1029",
				Alternatives: []string{"customer_id", "user_id", "client_id"},
			},
			{
				Name:         "revenue",
				DataType:     "numeric",
				Example:      "249.99",
				Alternatives: []string{"revenue", "amount", "total", "order_value"},
			},
		},
	},
}

// combinedColumns lowercases and flattens every column name across handles.
func combinedColumns(handles []domain.TableHandle) map[string]bool {
	out := make(map[string]bool)
	for _, h := range handles {
		for _, c := range h.Columns.ColumnNames() {
			out[strings.ToLower(c)] = true
		}
	}
	return out
}

// DetectMissingColumns checks the question against conceptTable and reports
// any columns a matched concept needs but the active schema doesn't have.
// It runs ahead of planning (spec.md §4.12 DataBranch's first step) so an
// unanswerable question never reaches the LLM or the executor at all.
func DetectMissingColumns(question string, handles []domain.TableHandle) []ColumnRequirement {
	lower := strings.ToLower(question)
	columns := combinedColumns(handles)

	var missing []ColumnRequirement
	seen := make(map[string]bool)

	for _, c := range conceptTable {
		matched := false
		for _, t := range c.Triggers {
			if strings.Contains(lower, t) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, req := range c.Requires {
			if req.satisfiedBy(columns) {
				continue
			}
			if seen[req.Name] {
				continue
			}
			seen[req.Name] = true
			missing = append(missing, req)
		}
	}
	return missing
}

// numericTypeHints identify a column's introspected type as numeric.
var numericTypeHints = []string{"int", "numeric", "float", "double", "decimal", "real", "number", "money"}

func isNumericType(t string) bool {
	lower := strings.ToLower(t)
	for _, h := range numericTypeHints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

var dateTypeHints = []string{"date", "time"}

func isDateType(name, t string) bool {
	lower := strings.ToLower(t)
	for _, h := range dateTypeHints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return looksLikeDateColumnName(name)
}

func looksLikeDateColumnName(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range []string{"date", "time", "created", "updated"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// buildPossibleAnalyses describes what the current schema CAN answer, for
// the "analyses still possible" tail of ReplyEducational (spec.md §4.12,
// scenario S5: "total sales, top performers").
func buildPossibleAnalyses(handles []domain.TableHandle) []string {
	var out []string
	for _, h := range handles {
		var numeric, categorical, date []string
		for _, col := range h.Columns.ColumnNames() {
			t := h.Columns.Types[col].Type
			switch {
			case isDateType(col, t):
				date = append(date, col)
			case isNumericType(t):
				numeric = append(numeric, col)
			default:
				categorical = append(categorical, col)
			}
		}
		for i, n := range numeric {
			if i >= 3 {
				break
			}
			out = append(out, fmt.Sprintf("total %s across %s", n, h.LogicalName))
		}
		if len(numeric) > 0 && len(categorical) > 0 {
			out = append(out, fmt.Sprintf("top performers in %s by %s", h.LogicalName, numeric[0]))
		}
		if len(numeric) > 0 && len(date) > 0 {
			out = append(out, fmt.Sprintf("trend of %s over %s in %s", numeric[0], date[0], h.LogicalName))
		}
	}
	return out
}
