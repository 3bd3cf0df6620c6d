package orchestrator

import (
	"fmt"
	"strings"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// insightKind names the three canonical templates DefaultInsightBranch can
// build (spec.md glossary: "Default insight").
type insightKind string

const (
	insightTopN    insightKind = "top_n"
	insightTrend   insightKind = "trend"
	insightSummary insightKind = "summary"
)

// pickInsightKind reads the vague question's own wording to choose a
// template, per spec.md §4.12's "DefaultInsightBranch (vague queries like
// 'analyze', 'tell me about', 'top …', 'trend …')".
func pickInsightKind(question string) insightKind {
	lower := strings.ToLower(question)
	switch {
	case strings.Contains(lower, "trend"):
		return insightTrend
	case strings.Contains(lower, "top "):
		return insightTopN
	default:
		return insightSummary
	}
}

type columnSet struct {
	numeric     []string
	categorical []string
	date        []string
}

func classifyColumns(h domain.TableHandle) columnSet {
	var cs columnSet
	for _, col := range h.Columns.ColumnNames() {
		t := h.Columns.Types[col].Type
		switch {
		case isDateType(col, t):
			cs.date = append(cs.date, col)
		case isNumericType(t):
			cs.numeric = append(cs.numeric, col)
		default:
			cs.categorical = append(cs.categorical, col)
		}
	}
	return cs
}

// buildDefaultInsightSQL produces a canonical SQL statement for h. ok is
// false when h has no numeric column, or when the template the question's
// wording selects can't be built (top-N without a categorical column, trend
// without a date column), signalling the orchestrator to fall through to
// normal planning (spec.md §4.12: "otherwise falls through to the normal
// branch").
func buildDefaultInsightSQL(question string, h domain.TableHandle, maxRows int) (sql string, ok bool) {
	cs := classifyColumns(h)
	if len(cs.numeric) == 0 {
		return "", false
	}

	limit := 10
	if limit > maxRows {
		limit = maxRows
	}

	switch pickInsightKind(question) {
	case insightTopN:
		if len(cs.categorical) == 0 {
			return "", false
		}
		cat, num := cs.categorical[0], cs.numeric[0]
		return fmt.Sprintf(
			"SELECT %s, SUM(%s) AS total_%s, COUNT(*) AS count FROM %s GROUP BY %s ORDER BY total_%s DESC LIMIT %d",
			cat, num, num, h.LogicalName, cat, num, limit,
		), true

	case insightTrend:
		if len(cs.date) == 0 {
			return "", false
		}
		d, num := cs.date[0], cs.numeric[0]
		return fmt.Sprintf(
			"SELECT %s, SUM(%s) AS total_%s FROM %s GROUP BY %s ORDER BY %s LIMIT %d",
			d, num, num, h.LogicalName, d, d, limit,
		), true

	default: // insightSummary
		var b strings.Builder
		b.WriteString("SELECT COUNT(*) AS count")
		for _, n := range cs.numeric {
			fmt.Fprintf(&b, ", SUM(%s) AS total_%s, AVG(%s) AS avg_%s", n, n, n, n)
		}
		fmt.Fprintf(&b, " FROM %s LIMIT %d", h.LogicalName, limit)
		return b.String(), true
	}
}
