package prompt_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nlanalytics/gatewaycore/internal/domain"
	"github.com/nlanalytics/gatewaycore/internal/prompt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubService returns canned results/errors per method, recording calls.
type stubService struct {
	planSQLResult domain.PlanSQLResult
	planSQLErr    error
	called        bool
}

func (s *stubService) PlanSQL(ctx context.Context, question string, schema []domain.TableHandle) (domain.PlanSQLResult, error) {
	s.called = true
	return s.planSQLResult, s.planSQLErr
}
func (s *stubService) ValidateSQL(ctx context.Context, sql, question string, schema []domain.TableHandle) (domain.ValidateSQLResult, error) {
	return domain.ValidateSQLResult{}, nil
}
func (s *stubService) PlanMultiStep(ctx context.Context, question string, schema []domain.TableHandle, maxSubSteps int) (domain.PlanMultiStepResult, error) {
	return domain.PlanMultiStepResult{}, nil
}
func (s *stubService) Analyze(ctx context.Context, question string, result domain.QueryResult, rules domain.TierRules, missingColumns []string) (domain.AnalyzeResult, error) {
	return domain.AnalyzeResult{}, nil
}
func (s *stubService) Synthesize(ctx context.Context, question string, steps []domain.StepResult, rules domain.TierRules) (string, error) {
	return "", nil
}

func TestFallbackService_UsesPrimaryWhenItSucceeds(t *testing.T) {
	primary := &stubService{planSQLResult: domain.PlanSQLResult{SQL: "SELECT 1 FROM t"}}
	secondary := &stubService{planSQLResult: domain.PlanSQLResult{SQL: "SELECT 2 FROM t"}}

	svc := prompt.NewFallbackService(primary, secondary, discardLogger())
	got, err := svc.PlanSQL(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SQL != "SELECT 1 FROM t" {
		t.Errorf("expected primary's result, got %q", got.SQL)
	}
	if secondary.called {
		t.Error("secondary should not have been called when primary succeeds")
	}
}

func TestFallbackService_FallsBackToSecondaryOnPrimaryError(t *testing.T) {
	primary := &stubService{planSQLErr: errors.New("primary down")}
	secondary := &stubService{planSQLResult: domain.PlanSQLResult{SQL: "SELECT 2 FROM t"}}

	svc := prompt.NewFallbackService(primary, secondary, discardLogger())
	got, err := svc.PlanSQL(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SQL != "SELECT 2 FROM t" {
		t.Errorf("expected secondary's result, got %q", got.SQL)
	}
}

func TestFallbackService_ReturnsPrimaryErrorWhenNoSecondary(t *testing.T) {
	primary := &stubService{planSQLErr: errors.New("primary down")}

	svc := prompt.NewFallbackService(primary, nil, discardLogger())
	_, err := svc.PlanSQL(context.Background(), "q", nil)
	if err == nil {
		t.Fatal("expected an error when primary fails and no secondary is configured")
	}
}

func TestFallbackService_NilPrimaryGoesStraightToSecondary(t *testing.T) {
	secondary := &stubService{planSQLResult: domain.PlanSQLResult{SQL: "SELECT 3 FROM t"}}

	svc := prompt.NewFallbackService(nil, secondary, discardLogger())
	got, err := svc.PlanSQL(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SQL != "SELECT 3 FROM t" {
		t.Errorf("expected secondary's result, got %q", got.SQL)
	}
}
