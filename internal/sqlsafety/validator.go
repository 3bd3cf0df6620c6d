// Package sqlsafety implements C4: a pure-function, tier-parameterized
// static validator for planner-generated SQL. It never touches a database —
// per spec.md §9, validation and execution are two separate components, and
// execution (internal/executor) trusts only what this package certifies.
package sqlsafety

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// forbiddenKeywords are DDL/DML tokens that must never appear in
// live-executed SQL (spec.md §3 invariant 2).
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"EXEC", "EXECUTE", "GRANT", "REVOKE", "PRAGMA", "CALL", "RENAME", "REPLACE",
}

var (
	tokenRe       = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	limitRe       = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\b`)
	joinRe        = regexp.MustCompile(`(?i)\bJOIN\b`)
	unionSelectRe = regexp.MustCompile(`(?i)\bUNION\s+SELECT\b`)
	tautologyRe   = regexp.MustCompile(`'1'\s*=\s*'1'|1\s*=\s*1\b`)
	blockCommentRe = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	starRe        = regexp.MustCompile(`(?i)SELECT\s+\*`)
	subqueryRe    = regexp.MustCompile(`(?i)\(\s*SELECT\b`)
)

// TierOptions is the subset of domain.Tier the validator needs. Passed
// explicitly rather than the full Tier to keep this package's surface
// minimal and testable in isolation.
type TierOptions struct {
	MaxRows    int
	AllowJoins bool
	MaxJoins   int
}

// FromTier narrows a domain.Tier to the validator's required fields.
func FromTier(t domain.Tier) TierOptions {
	return TierOptions{MaxRows: t.MaxRows, AllowJoins: t.AllowJoins, MaxJoins: t.MaxJoins}
}

// ErrInvalidTierConfig signals a tier configuration the validator can never
// satisfy regardless of the SQL presented to it (testable property: maxRows
// == 0 is an invalid configuration, not a per-query validation failure).
var ErrInvalidTierConfig = fmt.Errorf("sqlsafety: tier configuration has maxRows <= 0")

// ValidateTierOptions rejects a tier configuration that can never produce a
// valid LIMIT. It is a configuration-time check: no package in this module
// calls it, and Validate does not check MaxRows itself.
func ValidateTierOptions(opts TierOptions) error {
	if opts.MaxRows <= 0 {
		return ErrInvalidTierConfig
	}
	return nil
}

// Validate runs the ordered rule pipeline from spec.md §4.5 and returns a
// ValidationReport. It is a pure function: no I/O, no randomness, safe to
// call concurrently.
func Validate(sql string, opts TierOptions) domain.ValidationReport {
	report := domain.ValidationReport{IsValid: true, EstimatedCost: domain.CostLow}

	trimmed := strings.TrimSpace(stripLeadingComments(sql))
	upper := strings.ToUpper(trimmed)

	// Rule 1: must start with SELECT or WITH.
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		report.IsValid = false
		report.Errors = append(report.Errors, "query must start with SELECT or WITH")
	}

	// Rule 2: must contain FROM.
	if !containsWholeToken(upper, "FROM") {
		report.IsValid = false
		report.Errors = append(report.Errors, "query must contain a FROM clause")
	}

	// Rule 3: forbidden keywords.
	for _, kw := range forbiddenKeywords {
		if containsWholeToken(upper, kw) {
			report.IsValid = false
			report.Errors = append(report.Errors, fmt.Sprintf("forbidden keyword %q is not permitted", kw))
		}
	}

	// Rule 4: injection patterns.
	if strings.Contains(trimmed, ";--") {
		report.IsValid = false
		report.Errors = append(report.Errors, "trailing statement terminator followed by a comment is not permitted")
	}
	if blockCommentRe.MatchString(trimmed) {
		report.IsValid = false
		report.Errors = append(report.Errors, "block comments are not permitted")
	}
	if unionSelectRe.MatchString(trimmed) && opts.MaxJoins == 0 {
		report.IsValid = false
		report.Errors = append(report.Errors, "UNION SELECT is not permitted for this tier")
	}
	if tautologyRe.MatchString(trimmed) {
		report.IsValid = false
		report.Errors = append(report.Errors, "tautological condition is not permitted")
	}
	if lineCommentRe.MatchString(trimmed) {
		report.IsValid = false
		report.Errors = append(report.Errors, "trailing comment is not permitted")
	}

	// Rule 6: JOIN policy.
	joinCount := len(joinRe.FindAllString(trimmed, -1))
	if joinCount > 0 {
		if !opts.AllowJoins {
			report.IsValid = false
			report.Errors = append(report.Errors, "JOINs are not permitted for this tier")
		} else if joinCount > opts.MaxJoins {
			report.IsValid = false
			report.Errors = append(report.Errors, fmt.Sprintf("query uses %d joins, exceeding the tier limit of %d", joinCount, opts.MaxJoins))
		}
	}

	enhanced := trimmed
	if report.IsValid {
		// Rule 5: LIMIT enforcement, only meaningful once the query is
		// otherwise structurally valid.
		enhanced = enforceLimit(enhanced, opts.MaxRows, &report)
	}
	report.EnhancedSQL = enhanced

	// Rule 7: cost heuristic (informational only, does not affect IsValid).
	report.EstimatedCost = estimateCost(trimmed, joinCount)

	return report
}

// enforceLimit appends a LIMIT clause if absent, or rewrites it down to
// maxRows with a warning if it exceeds the cap.
func enforceLimit(sql string, maxRows int, report *domain.ValidationReport) string {
	m := limitRe.FindStringSubmatchIndex(sql)
	if m == nil {
		return strings.TrimRight(sql, "; \t\n") + fmt.Sprintf(" LIMIT %d", maxRows)
	}

	existing, _ := strconv.Atoi(sql[m[2]:m[3]])
	if existing <= maxRows {
		return sql
	}

	report.Warnings = append(report.Warnings, fmt.Sprintf("requested LIMIT %d exceeds the tier cap of %d; rewritten", existing, maxRows))
	return sql[:m[2]] + strconv.Itoa(maxRows) + sql[m[3]:]
}

// estimateCost is a rough heuristic, not a real query planner: SELECT *,
// subqueries, and multiple joins each raise the estimate one notch.
func estimateCost(sql string, joinCount int) domain.CostEstimate {
	score := 0
	if starRe.MatchString(sql) {
		score++
	}
	if subqueryRe.MatchString(sql) {
		score++
	}
	if joinCount >= 2 {
		score++
	}

	switch {
	case score >= 2:
		return domain.CostHigh
	case score == 1:
		return domain.CostMedium
	default:
		return domain.CostLow
	}
}

// stripLeadingComments removes leading line/block comments so rule 1 can
// find the real statement start, per spec.md §4.5 ("after optional leading
// comments").
func stripLeadingComments(sql string) string {
	s := sql
	for {
		trimmed := strings.TrimLeft(s, " \t\n\r")
		switch {
		case strings.HasPrefix(trimmed, "--"):
			idx := strings.IndexByte(trimmed, '\n')
			if idx == -1 {
				return ""
			}
			s = trimmed[idx+1:]
		case strings.HasPrefix(trimmed, "/*"):
			idx := strings.Index(trimmed, "*/")
			if idx == -1 {
				return ""
			}
			s = trimmed[idx+2:]
		default:
			return trimmed
		}
	}
}

// containsWholeToken reports whether upper (already uppercased) contains
// token as a whole word, not as a substring of a longer identifier.
func containsWholeToken(upper, token string) bool {
	for _, m := range tokenRe.FindAllString(upper, -1) {
		if m == token {
			return true
		}
	}
	return false
}
