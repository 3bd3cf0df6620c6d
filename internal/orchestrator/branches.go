package orchestrator

import (
	"context"
	"fmt"

	"github.com/nlanalytics/gatewaycore/internal/domain"
	"github.com/nlanalytics/gatewaycore/internal/multistep"
	"github.com/nlanalytics/gatewaycore/internal/responsevalidate"
	"github.com/nlanalytics/gatewaycore/internal/sqlsafety"
)

// primaryHandle picks which resolved table a single query executes
// against. True cross-source joins are an explicit spec.md non-goal
// ("streaming over joined heterogeneous sources with transactional
// guarantees"), so a composite multi-source resolution still executes one
// step against its first handle; the planner sees the full schema across
// all handles when choosing what to ask for.
func primaryHandle(rc *reqCtx) domain.TableHandle {
	return rc.resolution.Handles[0]
}

// singleStepBranch implements spec.md §4.12's SingleStep path: planSQL ->
// Validate -> maybeValidateByLLM -> Execute -> AnalyzeQuality ->
// Synthesize(analyze) -> ResponseValidate -> Assemble.
func (o *Orchestrator) singleStepBranch(ctx context.Context, rc *reqCtx) (domain.ChatResponse, error) {
	planResult, err := o.Prompt.PlanSQL(ctx, rc.message, rc.resolution.Handles)
	if err != nil {
		return domain.ChatResponse{}, domain.NewError(domain.ErrValidation, "I couldn't plan a query for that question.", "try rephrasing your question", err)
	}
	if len(planResult.MissingColumns) > 0 {
		return o.replyEducationalGeneric(planResult.MissingColumns, rc), nil
	}

	finalSQL, err := o.validateAndMaybeCorrect(ctx, planResult.SQL, rc)
	if err != nil {
		return domain.ChatResponse{}, err
	}

	result, err := o.executeAgainst(ctx, primaryHandle(rc), finalSQL, rc)
	if err != nil {
		return domain.ChatResponse{}, err
	}

	qualityReport := o.Quality.Analyze(result.Rows, nil)
	rules := tierRulesFor(rc)

	analyzeResult, err := o.Prompt.Analyze(ctx, rc.message, result, rules, nil)
	if err != nil {
		return domain.ChatResponse{}, domain.NewError(domain.ErrValidation, "I couldn't generate an explanation for that result.", "try rephrasing your question", err)
	}

	text := o.validateFinalText(analyzeResult.Text, result, rc.message)
	analyzeResult.Text = text

	return o.assemble(text, analyzeResult, qualityReport, result, rc), nil
}

// multiStepBranch implements spec.md §4.12's MultiStep path: steps run
// strictly sequentially, each observing only earlier results (spec.md §5,
// §9). A failure on any step aborts the whole plan rather than partially
// synthesizing — a half-answered multi-step comparison is worse than a
// clear apology.
func (o *Orchestrator) multiStepBranch(ctx context.Context, rc *reqCtx, plan multistep.Plan) (domain.ChatResponse, error) {
	tables := handleNames(rc.resolution.Handles)
	stepResults := make([]domain.StepResult, 0, len(plan.Steps))
	var allRows []domain.Row

	for _, step := range plan.Steps {
		planResult, err := o.Prompt.PlanSQL(ctx, step.SubQuestion, rc.resolution.Handles)
		if err != nil {
			return domain.ChatResponse{}, domain.NewError(domain.ErrValidation, fmt.Sprintf("I couldn't plan step %d of that question.", step.Order), "try simplifying your question", err)
		}
		if len(planResult.MissingColumns) > 0 {
			return o.replyEducationalGeneric(planResult.MissingColumns, rc), nil
		}

		finalSQL, err := o.validateAndMaybeCorrect(ctx, planResult.SQL, rc)
		if err != nil {
			return domain.ChatResponse{}, err
		}

		result, err := o.executeAgainst(ctx, primaryHandle(rc), finalSQL, rc)
		if err != nil {
			return domain.ChatResponse{}, err
		}

		stepResults = append(stepResults, domain.StepResult{Step: step, Result: result})
		allRows = append(allRows, result.Rows...)
	}

	rules := tierRulesFor(rc)
	text, err := o.Prompt.Synthesize(ctx, rc.message, stepResults, rules)
	if err != nil {
		return domain.ChatResponse{}, domain.NewError(domain.ErrValidation, "I couldn't synthesize an answer from those steps.", "try rephrasing your question", err)
	}

	combined := domain.QueryResult{Rows: allRows, RowCount: len(allRows), Tables: tables}
	text = o.validateFinalText(text, combined, rc.message)

	qualityReport := o.Quality.Analyze(allRows, nil)

	var analyzeResult domain.AnalyzeResult
	if (rc.tier.AllowCharts || rc.tier.AllowForecast) && len(stepResults) > 0 {
		last := stepResults[len(stepResults)-1].Result
		if ar, err := o.Prompt.Analyze(ctx, rc.message, last, rules, nil); err == nil {
			analyzeResult = ar
		}
	}

	return o.assemble(text, analyzeResult, qualityReport, combined, rc), nil
}

// defaultInsightBranch implements spec.md §4.12's DefaultInsightBranch. ok
// is false when buildDefaultInsightSQL can't build a template for the
// primary handle or the static validator rejects the built SQL, signalling
// the caller to fall through to normal planning.
func (o *Orchestrator) defaultInsightBranch(ctx context.Context, rc *reqCtx) (domain.ChatResponse, bool, error) {
	handle := primaryHandle(rc)

	sqlText, ok := buildDefaultInsightSQL(rc.message, handle, rc.tier.MaxRows)
	if !ok {
		return domain.ChatResponse{}, false, nil
	}

	report := sqlsafety.Validate(sqlText, sqlsafety.FromTier(rc.tier))
	if !report.IsValid {
		return domain.ChatResponse{}, false, nil
	}

	result, err := o.executeAgainst(ctx, handle, report.EnhancedSQL, rc)
	if err != nil {
		return domain.ChatResponse{}, true, err
	}

	qualityReport := o.Quality.Analyze(result.Rows, nil)
	rules := tierRulesFor(rc)

	analyzeResult, err := o.Prompt.Analyze(ctx, rc.message, result, rules, nil)
	if err != nil {
		return domain.ChatResponse{}, true, domain.NewError(domain.ErrValidation, "I couldn't generate an explanation for that result.", "try rephrasing your question", err)
	}

	text := o.validateFinalText(analyzeResult.Text, result, rc.message)
	analyzeResult.Text = text

	return o.assemble(text, analyzeResult, qualityReport, result, rc), true, nil
}

// validateAndMaybeCorrect runs C4's static validator, then — when the
// tier opts into the extra round trip — asks PromptService for a second
// opinion and re-validates any corrected SQL it proposes (spec.md §4.12
// "maybeValidateByLLM").
func (o *Orchestrator) validateAndMaybeCorrect(ctx context.Context, sql string, rc *reqCtx) (string, error) {
	opts := sqlsafety.FromTier(rc.tier)
	report := sqlsafety.Validate(sql, opts)
	if !report.IsValid {
		return "", domain.NewError(domain.ErrValidation, "I couldn't generate a safe query for that question.", "try simplifying your question", fmt.Errorf("sqlsafety: %v", report.Errors))
	}
	finalSQL := report.EnhancedSQL

	if !rc.tier.AgentSQLValidation {
		return finalSQL, nil
	}

	vr, err := o.Prompt.ValidateSQL(ctx, finalSQL, rc.message, rc.resolution.Handles)
	if err != nil {
		o.Logger.Warn("orchestrator: LLM SQL validation call failed, keeping statically-validated SQL", "error", err)
		return finalSQL, nil
	}
	if vr.IsValid || vr.CorrectedSQL == "" {
		return finalSQL, nil
	}

	corrected := sqlsafety.Validate(vr.CorrectedSQL, opts)
	if !corrected.IsValid {
		return finalSQL, nil
	}
	return corrected.EnhancedSQL, nil
}

// executeAgainst resolves handle into an executor.Source and runs sql
// through C6, tagging the result with every handle's logical name (spec.md
// §3: QueryResult.tables "referenced").
func (o *Orchestrator) executeAgainst(ctx context.Context, handle domain.TableHandle, sql string, rc *reqCtx) (domain.QueryResult, error) {
	src, err := o.sourceFor(handle, rc)
	if err != nil {
		return domain.QueryResult{}, domain.NewError(domain.ErrSQL, "I couldn't access your data source.", "try reconnecting your data source", err)
	}
	tables := handleNames(rc.resolution.Handles)
	return o.Executor.Run(ctx, src, sql, rc.tier, tables)
}

// validateFinalText runs C8 and substitutes the fixed apology when
// validation fails at the error level (spec.md §3 invariant 6, §7).
func (o *Orchestrator) validateFinalText(text string, result domain.QueryResult, question string) string {
	report := o.ResponseValidate.Validate(text, result, question)
	if len(report.Errors) > 0 {
		return responsevalidate.FallbackText
	}
	return text
}
