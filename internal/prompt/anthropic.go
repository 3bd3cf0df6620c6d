// Package prompt implements C5 PromptService: a typed wrapper over an LLM
// exposing four fixed capabilities (plan SQL, validate SQL, plan multi-step,
// analyze/synthesize results) with a strict JSON contract per capability.
// The concrete client uses the official Anthropic SDK, replacing the
// teacher's hand-rolled HTTP call in internal/ai/anthropic.go but keeping its
// shape: one system prompt per capability, temperature 0, a bounded token
// cap, and markdown-fence stripping before JSON parsing.
package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// maxTokens bounds every capability call; none of these responses need to
// be long, and a bounded cap keeps latency and cost predictable per spec.md
// §4.6.
const maxTokens = 1536

// AnthropicService is the concrete domain.PromptService backed by the
// Anthropic Messages API.
type AnthropicService struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicService returns a PromptService. apiKey is the caller's
// ANTHROPIC_API_KEY; model selects which Claude model answers every
// capability call (all four share one model — there is no reason for the
// plan/validate/analyze/synthesize split to use different models).
func NewAnthropicService(apiKey string, model anthropic.Model) *AnthropicService {
	return &AnthropicService{
		client: anthropic.NewClient(option.WithAPIKey(apiKey), option.WithRequestTimeout(90*time.Second)),
		model:  model,
	}
}

// complete sends one system+user turn at temperature 0 and returns the
// concatenated text content of the response.
func (s *AnthropicService) complete(ctx context.Context, system, user string) (string, error) {
	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       s.model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("prompt: anthropic call: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// stripFences removes accidental markdown code fences the model sometimes
// wraps JSON in, despite being asked not to — mirrors the teacher's
// anthropic.go behavior exactly.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeJSON unmarshals a model response into v, treating a parse failure
// as a caller-visible error rather than a panic; an empty response (after
// fence stripping) is an error too. Every JSON capability below maps any
// decodeJSON error to a "not applicable" result, per spec.md §4.6's "never
// crash" requirement.
func decodeJSON(raw string, v any) error {
	clean := stripFences(raw)
	if clean == "" {
		return fmt.Errorf("prompt: empty response")
	}
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return fmt.Errorf("prompt: parse response JSON: %w (raw: %.200s)", err, clean)
	}
	return nil
}

// missingColumnPrefix starts the planner's signal for a column the schema
// doesn't have: a line comment of this exact shape, which the core extracts
// and strips rather than ever sending to the validator or executor.
const missingColumnPrefix = "--MISSING:"

// extractMissingColumns scans sql for sentinel comments and returns the
// named columns plus the SQL with those comment lines removed.
func extractMissingColumns(sql string) (cleaned string, missing []string) {
	lines := strings.Split(sql, "\n")
	kept := lines[:0:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, missingColumnPrefix) {
			col := strings.TrimSpace(strings.TrimPrefix(trimmed, missingColumnPrefix))
			if col != "" {
				missing = append(missing, col)
			}
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), missing
}

func schemaDescription(schema []domain.TableHandle) string {
	var b strings.Builder
	for _, h := range schema {
		fmt.Fprintf(&b, "table %s (", h.LogicalName)
		for i, col := range h.Columns.ColumnNames() {
			if i > 0 {
				b.WriteString(", ")
			}
			t := h.Columns.Types[col]
			fmt.Fprintf(&b, "%s %s", col, t.Type)
		}
		b.WriteString(")\n")
	}
	return b.String()
}

const planSQLSystemPrompt = `You are a SQL planning assistant for a read-only analytics gateway.
Given a business question and a schema, produce exactly one SELECT statement that answers it.
Never use INSERT, UPDATE, DELETE, DROP, CREATE, ALTER, TRUNCATE, GRANT, REVOKE, or any other write/DDL keyword.
If the question requires a column that does not exist in the schema, do not guess a substitute: add a line comment ` + "`--MISSING:<column_name>`" + ` for each missing column and still return your best-effort SQL using only columns that do exist.
Respond ONLY with valid JSON, no markdown fences, no preamble:
{"sql": "SELECT ..."}`

// PlanSQL asks the model for a single-step SQL plan.
func (s *AnthropicService) PlanSQL(ctx context.Context, question string, schema []domain.TableHandle) (domain.PlanSQLResult, error) {
	user := fmt.Sprintf("Schema:\n%s\nQuestion: %s", schemaDescription(schema), question)

	raw, err := s.complete(ctx, planSQLSystemPrompt, user)
	if err != nil {
		return domain.PlanSQLResult{}, err
	}

	var parsed struct {
		SQL string `json:"sql"`
	}
	if err := decodeJSON(raw, &parsed); err != nil {
		// Empty/invalid JSON is a structured "not applicable", not a crash.
		return domain.PlanSQLResult{}, nil
	}

	cleaned, missing := extractMissingColumns(parsed.SQL)
	return domain.PlanSQLResult{SQL: cleaned, MissingColumns: missing}, nil
}

const validateSQLSystemPrompt = `You are a second-opinion SQL reviewer for a read-only analytics gateway.
Given a SQL query, the question it is meant to answer, and a schema, assess whether the SQL correctly and safely answers the question.
Respond ONLY with valid JSON, no markdown fences, no preamble:
{"isValid": true, "concerns": ["..."], "recommendations": ["..."], "correctedSQL": ""}
correctedSQL should be an empty string unless you have a specific fix; if provided it must remain a single read-only SELECT.`

// ValidateSQL asks the model for a second opinion on planner-generated SQL.
// This is distinct from, and in addition to, internal/sqlsafety's static
// validation — the orchestrator only calls this when tier.AgentSQLValidation
// is true (spec.md §4.12).
func (s *AnthropicService) ValidateSQL(ctx context.Context, sql, question string, schema []domain.TableHandle) (domain.ValidateSQLResult, error) {
	user := fmt.Sprintf("Schema:\n%sQuestion: %s\nSQL:\n%s", schemaDescription(schema), question, sql)

	raw, err := s.complete(ctx, validateSQLSystemPrompt, user)
	if err != nil {
		return domain.ValidateSQLResult{}, err
	}

	var parsed domain.ValidateSQLResult
	if err := decodeJSON(raw, &parsed); err != nil {
		return domain.ValidateSQLResult{IsValid: true}, nil
	}
	return parsed, nil
}

const planMultiStepSystemPrompt = `You are a query-planning assistant deciding whether a business question needs multiple sequential SQL steps to answer (for example, computing two separate aggregates before comparing them).
Given a question and a schema, decide if multi-step planning is needed. If so, produce an ordered list of steps; each step must be answerable as its own single SQL query and may depend on earlier steps by index (0-based, listed in dependsOn).
Respond ONLY with valid JSON, no markdown fences, no preamble:
{"needsMultiStep": false, "steps": [{"order": 0, "description": "...", "subQuestion": "...", "dependsOn": []}]}`

// PlanMultiStep asks the model whether a question needs multiple sequential
// steps, and if so, what they are. The caller (internal/multistep) enforces
// maxSubSteps and topological ordering; this method only relays the model's
// proposal.
func (s *AnthropicService) PlanMultiStep(ctx context.Context, question string, schema []domain.TableHandle, maxSubSteps int) (domain.PlanMultiStepResult, error) {
	user := fmt.Sprintf("Schema:\n%sQuestion: %s\nAt most %d steps are permitted.", schemaDescription(schema), question, maxSubSteps)

	raw, err := s.complete(ctx, planMultiStepSystemPrompt, user)
	if err != nil {
		return domain.PlanMultiStepResult{}, err
	}

	var parsed domain.PlanMultiStepResult
	if err := decodeJSON(raw, &parsed); err != nil {
		return domain.PlanMultiStepResult{NeedsMultiStep: false}, nil
	}
	return parsed, nil
}

const analyzeSystemPrompt = `You are a data analyst writing a short, concrete answer to a business question from already-executed query results.
Only state numbers and facts that literally appear in the provided rows. Never invent a number.
If missingColumns is non-empty, acknowledge the limitation briefly in the text.
Respond ONLY with valid JSON, no markdown fences, no preamble:
{"text": "...", "chart": null, "suggestions": [], "forecast": null}
chart, if present, has shape {"type": "line|bar|area|pie", "x": "column", "y": "column"}. Only include suggestions or forecast if explicitly told they are allowed.`

// Analyze asks the model to narrate an executed QueryResult into a final
// answer, optionally with a chart/suggestions/forecast depending on rules.
func (s *AnthropicService) Analyze(ctx context.Context, question string, result domain.QueryResult, rules domain.TierRules, missingColumns []string) (domain.AnalyzeResult, error) {
	resultJSON, _ := json.Marshal(result.Rows)
	user := fmt.Sprintf(
		"Question: %s\nRows (%d total, truncated=%v): %s\nmissingColumns: %v\nchartsAllowed: %v, suggestionsAllowed: %v, forecastAllowed: %v, extended: %v",
		question, result.RowCount, result.Truncated, string(resultJSON), missingColumns,
		rules.AllowCharts, rules.AllowSuggestions, rules.AllowForecast, rules.Extended,
	)

	raw, err := s.complete(ctx, analyzeSystemPrompt, user)
	if err != nil {
		return domain.AnalyzeResult{}, err
	}

	var parsed struct {
		Text        string `json:"text"`
		Chart       *domain.Chart
		Suggestions []string         `json:"suggestions"`
		Forecast    *domain.Forecast `json:"forecast"`
	}
	if err := decodeJSON(raw, &parsed); err != nil {
		return domain.AnalyzeResult{Text: "I wasn't able to generate an analysis for this result."}, nil
	}

	out := domain.AnalyzeResult{Text: parsed.Text}
	if rules.AllowCharts {
		out.Chart = parsed.Chart
	}
	if rules.AllowSuggestions {
		out.Suggestions = parsed.Suggestions
	}
	if rules.AllowForecast {
		out.Forecast = parsed.Forecast
	}
	return out, nil
}

const synthesizeSystemPrompt = `You are a data analyst writing a short final answer that combines the results of several already-executed SQL steps.
Only state numbers that literally appear in the provided step results. Never invent a number.
Respond with plain text only — no JSON, no markdown fences.`

// Synthesize combines multiple step results into one final answer.
func (s *AnthropicService) Synthesize(ctx context.Context, question string, steps []domain.StepResult, rules domain.TierRules) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", question)
	for _, st := range steps {
		rowsJSON, _ := json.Marshal(st.Result.Rows)
		fmt.Fprintf(&b, "Step %d (%s): %s\n", st.Step.Order, st.Step.SubQuestion, string(rowsJSON))
	}
	fmt.Fprintf(&b, "extended: %v", rules.Extended)

	raw, err := s.complete(ctx, synthesizeSystemPrompt, b.String())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "I wasn't able to synthesize a combined answer for these results.", nil
	}
	return raw, nil
}
