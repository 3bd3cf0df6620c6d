package sqlsafety_test

import (
	"strings"
	"testing"

	"github.com/nlanalytics/gatewaycore/internal/domain"
	"github.com/nlanalytics/gatewaycore/internal/sqlsafety"
)

func starterOpts() sqlsafety.TierOptions {
	return sqlsafety.FromTier(domain.Tiers[domain.TierStarter])
}

func enterpriseOpts() sqlsafety.TierOptions {
	return sqlsafety.FromTier(domain.Tiers[domain.TierEnterprise])
}

func TestValidate_AcceptsSimpleSelect(t *testing.T) {
	r := sqlsafety.Validate("SELECT product, SUM(revenue) FROM sales GROUP BY product", starterOpts())
	if !r.IsValid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if !strings.Contains(r.EnhancedSQL, "LIMIT 100") {
		t.Errorf("expected LIMIT 100 appended, got: %s", r.EnhancedSQL)
	}
}

func TestValidate_RejectsNonSelect(t *testing.T) {
	r := sqlsafety.Validate("DELETE FROM sales", starterOpts())
	if r.IsValid {
		t.Fatal("expected invalid for a DELETE statement")
	}
}

func TestValidate_RejectsForbiddenKeywordInsideSelect(t *testing.T) {
	r := sqlsafety.Validate("SELECT * FROM sales; DROP TABLE sales", starterOpts())
	if r.IsValid {
		t.Fatal("expected invalid: forbidden keyword present")
	}
}

func TestValidate_DoesNotFalsePositiveOnKeywordSubstring(t *testing.T) {
	// "created_at" contains "create" as a substring but not as a whole token.
	r := sqlsafety.Validate("SELECT created_at FROM sales", starterOpts())
	if !r.IsValid {
		t.Fatalf("expected valid: column name containing a forbidden keyword substring should not trip the rule, got: %v", r.Errors)
	}
}

func TestValidate_RequiresFromClause(t *testing.T) {
	r := sqlsafety.Validate("SELECT 1", starterOpts())
	if r.IsValid {
		t.Fatal("expected invalid: no FROM clause")
	}
}

func TestValidate_RejectsTrailingComment(t *testing.T) {
	r := sqlsafety.Validate("SELECT * FROM sales -- ignore rest", starterOpts())
	if r.IsValid {
		t.Fatal("expected invalid: trailing comment")
	}
}

func TestValidate_RejectsTautology(t *testing.T) {
	r := sqlsafety.Validate("SELECT * FROM sales WHERE '1'='1'", starterOpts())
	if r.IsValid {
		t.Fatal("expected invalid: tautological condition")
	}
}

func TestValidate_AppendsLimitWhenAbsent(t *testing.T) {
	r := sqlsafety.Validate("SELECT product FROM sales", starterOpts())
	if !strings.Contains(r.EnhancedSQL, "LIMIT 100") {
		t.Errorf("expected LIMIT 100 appended, got: %s", r.EnhancedSQL)
	}
}

func TestValidate_RewritesLimitAboveCapWithWarning(t *testing.T) {
	r := sqlsafety.Validate("SELECT product FROM sales LIMIT 99999", starterOpts())
	if !r.IsValid {
		t.Fatalf("expected valid (rewritten, not rejected), got errors: %v", r.Errors)
	}
	if !strings.Contains(r.EnhancedSQL, "LIMIT 100") {
		t.Errorf("expected LIMIT rewritten to 100, got: %s", r.EnhancedSQL)
	}
	if len(r.Warnings) == 0 {
		t.Error("expected a warning about the rewritten LIMIT")
	}
}

func TestValidate_KeepsLimitBelowCapUnchanged(t *testing.T) {
	r := sqlsafety.Validate("SELECT product FROM sales LIMIT 10", starterOpts())
	if !strings.Contains(r.EnhancedSQL, "LIMIT 10") {
		t.Errorf("expected LIMIT 10 preserved, got: %s", r.EnhancedSQL)
	}
}

func TestValidate_IsIdempotent(t *testing.T) {
	// Testable property 7 (spec.md §8): re-validating the enhanced SQL
	// produces the same enhanced SQL.
	first := sqlsafety.Validate("SELECT product FROM sales", starterOpts())
	second := sqlsafety.Validate(first.EnhancedSQL, starterOpts())
	if first.EnhancedSQL != second.EnhancedSQL {
		t.Errorf("validator is not idempotent: %q != %q", first.EnhancedSQL, second.EnhancedSQL)
	}
}

func TestValidate_JoinPolicy_RejectsWhenJoinsDisallowed(t *testing.T) {
	r := sqlsafety.Validate("SELECT a.x FROM a JOIN b ON a.id = b.id", starterOpts())
	if r.IsValid {
		t.Fatal("expected invalid: starter tier disallows joins")
	}
}

func TestValidate_JoinPolicy_AllowsWithinTierLimit(t *testing.T) {
	r := sqlsafety.Validate("SELECT a.x FROM a JOIN b ON a.id = b.id", enterpriseOpts())
	if !r.IsValid {
		t.Fatalf("expected valid: enterprise tier allows up to 5 joins, got errors: %v", r.Errors)
	}
}

func TestValidate_JoinPolicy_RejectsAboveTierMax(t *testing.T) {
	sql := "SELECT a.x FROM a JOIN b ON 1=1 JOIN c ON 1=1 JOIN d ON 1=1 JOIN e ON 1=1 JOIN f ON 1=1 JOIN g ON 1=1"
	r := sqlsafety.Validate(sql, enterpriseOpts())
	if r.IsValid {
		t.Fatal("expected invalid: 6 joins exceeds enterprise's limit of 5")
	}
}

func TestValidate_CostHeuristic_SelectStarRaisesCost(t *testing.T) {
	plain := sqlsafety.Validate("SELECT product FROM sales", starterOpts())
	star := sqlsafety.Validate("SELECT * FROM sales", starterOpts())
	if plain.EstimatedCost != domain.CostLow {
		t.Errorf("expected plain select to be low cost, got %s", plain.EstimatedCost)
	}
	if star.EstimatedCost == domain.CostLow {
		t.Errorf("expected SELECT * to raise the cost estimate above low")
	}
}

func TestValidateTierOptions_RejectsZeroMaxRows(t *testing.T) {
	err := sqlsafety.ValidateTierOptions(sqlsafety.TierOptions{MaxRows: 0})
	if err == nil {
		t.Fatal("expected an error for maxRows == 0")
	}
}

func TestValidateTierOptions_AcceptsPositiveMaxRows(t *testing.T) {
	if err := sqlsafety.ValidateTierOptions(sqlsafety.TierOptions{MaxRows: 100}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
