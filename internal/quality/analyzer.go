// Package quality implements C7 DataQualityAnalyzer: six post-query checks
// over a QueryResult's rows, producing a severity-ranked report and a single
// disclosure message the orchestrator must prepend to its answer when
// warning/critical issues are found (spec.md §3 invariant 5).
package quality

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// Analyzer is C7.
type Analyzer struct{}

// New constructs an Analyzer. It holds no state — every check is a pure
// function of the rows given to it.
func New() *Analyzer {
	return &Analyzer{}
}

// dateNameHints flags a column as date-typed by name, per spec.md §4.10.
var dateNameHints = []string{"date", "time", "created", "updated"}

func looksLikeDateColumn(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range dateNameHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// Analyze runs all six checks. columns, if nil, is inferred as the union of
// keys across all rows, sorted for determinism.
func (Analyzer) Analyze(rows []domain.Row, columns []string) domain.DataQualityReport {
	total := len(rows)
	if total == 0 {
		return domain.DataQualityReport{}
	}

	if columns == nil {
		columns = inferColumns(rows)
	}

	var issues []domain.Issue
	problemRows := make(map[int]bool)

	for _, col := range columns {
		colIssues := analyzeColumn(rows, col, total, problemRows)
		issues = append(issues, colIssues...)
	}

	if dup := duplicateRowsIssue(rows, total); dup != nil {
		issues = append(issues, *dup)
	}

	report := domain.DataQualityReport{
		Issues:          issues,
		CompleteRecords: total - len(problemRows),
	}
	report.DisclosureMessage = disclosureMessage(issues)
	return report
}

func inferColumns(rows []domain.Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// analyzeColumn runs the per-column checks (nulls, empty strings, mixed
// types, invalid dates, numeric outliers) for one column. problemRows
// accumulates row indices flagged by any column-level cell check, so
// CompleteRecords below is computed from the union (row-by-row
// intersection of which rows are clean), never by subtracting per-column
// affected counts — subtracting would double-count rows flagged by more
// than one column.
func analyzeColumn(rows []domain.Row, col string, total int, problemRows map[int]bool) []domain.Issue {
	var (
		nullCount, emptyCount, invalidDateCount int
		typeCounts                              = make(map[string]int)
		numericValues                           []float64
	)

	dateColumn := looksLikeDateColumn(col)

	for i, row := range rows {
		v, present := row[col]
		if !present || v == nil {
			nullCount++
			problemRows[i] = true
			continue
		}

		switch t := v.(type) {
		case string:
			if t == "" {
				emptyCount++
				problemRows[i] = true
				continue
			}
			typeCounts["string"]++
			if dateColumn && !looksLikeDate(t) {
				invalidDateCount++
				problemRows[i] = true
			}
		case int, int64, int32:
			typeCounts["number"]++
			numericValues = append(numericValues, toFloat(t))
		case float32, float64:
			typeCounts["number"]++
			numericValues = append(numericValues, toFloat(t))
		case bool:
			typeCounts["bool"]++
		default:
			typeCounts["other"]++
		}
	}

	var issues []domain.Issue

	if nullCount > 0 {
		issues = append(issues, newIssue(domain.IssueNulls, col, nullCount, total,
			fmt.Sprintf("%d of %d values in %q are missing", nullCount, total, col)))
	}
	if emptyCount > 0 {
		issues = append(issues, newIssue(domain.IssueEmptyStrings, col, emptyCount, total,
			fmt.Sprintf("%d of %d values in %q are empty strings", emptyCount, total, col)))
	}
	if minorityTypeCount := minorityCount(typeCounts); minorityTypeCount > 0 {
		issues = append(issues, newIssue(domain.IssueMixedTypes, col, minorityTypeCount, total,
			fmt.Sprintf("%q contains mixed data types", col)))
	}
	if dateColumn && invalidDateCount > 0 {
		issues = append(issues, newIssue(domain.IssueInvalidDates, col, invalidDateCount, total,
			fmt.Sprintf("%d of %d values in %q are not valid dates", invalidDateCount, total, col)))
	}
	if outliers := outlierCount(numericValues); outliers > 0 {
		pct := float64(outliers) / float64(total)
		if pct <= 0.10 {
			issues = append(issues, newIssue(domain.IssueOutliers, col, outliers, total,
				fmt.Sprintf("%d values in %q are statistical outliers", outliers, col)))
		}
	}

	return issues
}

// minorityCount returns how many values belong to non-majority scalar types
// in a column, signalling a mixed-type column. Zero if only one type (or no
// values) is present.
func minorityCount(typeCounts map[string]int) int {
	if len(typeCounts) <= 1 {
		return 0
	}
	total, max := 0, 0
	for _, c := range typeCounts {
		total += c
		if c > max {
			max = c
		}
	}
	return total - max
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	default:
		return 0
	}
}

// outlierCount reports values more than 3 standard deviations from the mean.
// Needs at least 2 values to compute a meaningful standard deviation.
func outlierCount(values []float64) int {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}

	count := 0
	for _, v := range values {
		if math.Abs(v-mean) > 3*stddev {
			count++
		}
	}
	return count
}

// looksLikeDate checks common date/time string shapes without pulling in a
// date-parsing library: a handful of layouts cover the overwhelming majority
// of ingested data.
func looksLikeDate(s string) bool {
	layouts := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		time.RFC3339,
		"01/02/2006",
	}
	for _, layout := range layouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// duplicateRowsIssue flags whole-row duplicates by hashing each row's
// sorted key=value pairs.
func duplicateRowsIssue(rows []domain.Row, total int) *domain.Issue {
	seen := make(map[string]int)
	for _, row := range rows {
		seen[rowKey(row)]++
	}

	duplicateCount := 0
	for _, n := range seen {
		if n > 1 {
			duplicateCount += n
		}
	}
	if duplicateCount == 0 {
		return nil
	}

	issue := newIssue(domain.IssueDuplicates, "", duplicateCount, total,
		fmt.Sprintf("%d of %d rows are exact duplicates", duplicateCount, total))
	return &issue
}

func rowKey(row domain.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fmt.Sprintf("%v", row[k]))
		b.WriteByte('|')
	}
	return b.String()
}

func newIssue(kind domain.QualityIssueKind, col string, affected, total int, desc string) domain.Issue {
	pct := float64(affected) / float64(total) * 100
	return domain.Issue{
		Kind:          kind,
		Severity:      severityFor(kind, pct),
		Column:        col,
		AffectedCount: affected,
		TotalCount:    total,
		Percentage:    pct,
		Description:   desc,
	}
}

// severityFor applies spec.md §4.10's thresholds: nulls/empty strings use
// >50% critical, >20% warning, else info. Other checks are inherently rarer
// and lower-stakes (a handful of outliers or one duplicate row), so they cap
// at warning even at high percentages — a data set that is mostly
// duplicate rows is unusual enough that info/warning framing, not a hard
// critical block, is the honest signal.
func severityFor(kind domain.QualityIssueKind, pct float64) domain.Severity {
	switch kind {
	case domain.IssueNulls, domain.IssueEmptyStrings:
		switch {
		case pct > 50:
			return domain.SeverityCritical
		case pct > 20:
			return domain.SeverityWarning
		default:
			return domain.SeverityInfo
		}
	default:
		if pct > 20 {
			return domain.SeverityWarning
		}
		return domain.SeverityInfo
	}
}

// disclosureMessage summarizes the worst issues into one sentence, for the
// orchestrator to prepend verbatim when severity warrants it.
func disclosureMessage(issues []domain.Issue) string {
	if len(issues) == 0 {
		return ""
	}

	worst := domain.Severity("")
	var worstIssues []domain.Issue
	for _, iss := range issues {
		switch {
		case iss.Severity == domain.SeverityCritical && worst != domain.SeverityCritical:
			worst = domain.SeverityCritical
			worstIssues = []domain.Issue{iss}
		case iss.Severity == domain.SeverityCritical && worst == domain.SeverityCritical:
			worstIssues = append(worstIssues, iss)
		case iss.Severity == domain.SeverityWarning && worst != domain.SeverityCritical:
			if worst != domain.SeverityWarning {
				worst = domain.SeverityWarning
				worstIssues = []domain.Issue{iss}
			} else {
				worstIssues = append(worstIssues, iss)
			}
		}
	}
	if len(worstIssues) == 0 {
		return ""
	}

	parts := make([]string, len(worstIssues))
	for i, iss := range worstIssues {
		parts[i] = iss.Description
	}

	label := "Note"
	if worst == domain.SeverityCritical {
		label = "Important"
	}
	return fmt.Sprintf("%s: %s.", label, strings.Join(parts, "; "))
}
