package prompt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// fallbackService wraps two PromptService implementations, trying primary
// first and falling back to secondary on error. Generalizes the teacher's
// internal/ai/fallback.go fallbackHedger to PromptService's five
// capabilities — same shape, one retry hop, failure logged not swallowed.
type fallbackService struct {
	primary   domain.PromptService
	secondary domain.PromptService
	logger    *slog.Logger
}

// NewFallbackService returns a PromptService that calls primary and, on
// failure, falls back to secondary. Either may be nil: a nil primary skips
// straight to secondary; a nil secondary means a primary failure is
// returned directly.
func NewFallbackService(primary, secondary domain.PromptService, logger *slog.Logger) domain.PromptService {
	return &fallbackService{primary: primary, secondary: secondary, logger: logger}
}

func (f *fallbackService) PlanSQL(ctx context.Context, question string, schema []domain.TableHandle) (domain.PlanSQLResult, error) {
	if f.primary != nil {
		r, err := f.primary.PlanSQL(ctx, question, schema)
		if err == nil {
			return r, nil
		}
		f.logger.Warn("prompt: primary PlanSQL failed, trying secondary", "error", err)
		if f.secondary == nil {
			return domain.PlanSQLResult{}, fmt.Errorf("prompt: primary failed, no secondary configured: %w", err)
		}
	}
	return f.secondary.PlanSQL(ctx, question, schema)
}

func (f *fallbackService) ValidateSQL(ctx context.Context, sql, question string, schema []domain.TableHandle) (domain.ValidateSQLResult, error) {
	if f.primary != nil {
		r, err := f.primary.ValidateSQL(ctx, sql, question, schema)
		if err == nil {
			return r, nil
		}
		f.logger.Warn("prompt: primary ValidateSQL failed, trying secondary", "error", err)
		if f.secondary == nil {
			return domain.ValidateSQLResult{}, fmt.Errorf("prompt: primary failed, no secondary configured: %w", err)
		}
	}
	return f.secondary.ValidateSQL(ctx, sql, question, schema)
}

func (f *fallbackService) PlanMultiStep(ctx context.Context, question string, schema []domain.TableHandle, maxSubSteps int) (domain.PlanMultiStepResult, error) {
	if f.primary != nil {
		r, err := f.primary.PlanMultiStep(ctx, question, schema, maxSubSteps)
		if err == nil {
			return r, nil
		}
		f.logger.Warn("prompt: primary PlanMultiStep failed, trying secondary", "error", err)
		if f.secondary == nil {
			return domain.PlanMultiStepResult{}, fmt.Errorf("prompt: primary failed, no secondary configured: %w", err)
		}
	}
	return f.secondary.PlanMultiStep(ctx, question, schema, maxSubSteps)
}

func (f *fallbackService) Analyze(ctx context.Context, question string, result domain.QueryResult, rules domain.TierRules, missingColumns []string) (domain.AnalyzeResult, error) {
	if f.primary != nil {
		r, err := f.primary.Analyze(ctx, question, result, rules, missingColumns)
		if err == nil {
			return r, nil
		}
		f.logger.Warn("prompt: primary Analyze failed, trying secondary", "error", err)
		if f.secondary == nil {
			return domain.AnalyzeResult{}, fmt.Errorf("prompt: primary failed, no secondary configured: %w", err)
		}
	}
	return f.secondary.Analyze(ctx, question, result, rules, missingColumns)
}

func (f *fallbackService) Synthesize(ctx context.Context, question string, steps []domain.StepResult, rules domain.TierRules) (string, error) {
	if f.primary != nil {
		r, err := f.primary.Synthesize(ctx, question, steps, rules)
		if err == nil {
			return r, nil
		}
		f.logger.Warn("prompt: primary Synthesize failed, trying secondary", "error", err)
		if f.secondary == nil {
			return "", fmt.Errorf("prompt: primary failed, no secondary configured: %w", err)
		}
	}
	return f.secondary.Synthesize(ctx, question, steps, rules)
}
