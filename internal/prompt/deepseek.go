package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// DeepSeekService is the concrete domain.PromptService backed by DeepSeek's
// OpenAI-compatible chat completions endpoint. It shares every system
// prompt and request-shaping helper with AnthropicService — only the wire
// format and transport differ — so the two providers are genuinely
// interchangeable behind fallbackService.
type DeepSeekService struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewDeepSeekService returns a PromptService that calls the DeepSeek API.
//   - apiKey: DEEPSEEK_API_KEY
//   - model:  e.g. "deepseek-chat" or "deepseek-reasoner"
func NewDeepSeekService(apiKey, model string) *DeepSeekService {
	return &DeepSeekService{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat instructs the model to return valid JSON. DeepSeek honours
// {"type": "json_object"} the same way OpenAI does.
type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// complete sends one request to the DeepSeek chat completions endpoint and
// returns the text content of the first choice. wantJSON signals whether to ask
// for json_object mode; Synthesize's plain-text contract sets it false.
func (s *DeepSeekService) complete(ctx context.Context, system, user string, wantJSON bool) (string, error) {
	reqBody := openAIRequest{
		Model:     s.model,
		MaxTokens: maxTokens,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if wantJSON {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("deepseek: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.deepseek.com/v1/chat/completions",
		bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("deepseek: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepseek: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("deepseek: read response: %w", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("deepseek: unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("deepseek: API error %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepseek: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("deepseek: no choices in response")
	}

	return stripFences(strings.TrimSpace(parsed.Choices[0].Message.Content)), nil
}

func (s *DeepSeekService) PlanSQL(ctx context.Context, question string, schema []domain.TableHandle) (domain.PlanSQLResult, error) {
	user := fmt.Sprintf("Schema:\n%s\nQuestion: %s", schemaDescription(schema), question)

	raw, err := s.complete(ctx, planSQLSystemPrompt, user, true)
	if err != nil {
		return domain.PlanSQLResult{}, err
	}

	var parsed struct {
		SQL string `json:"sql"`
	}
	if err := decodeJSON(raw, &parsed); err != nil {
		return domain.PlanSQLResult{}, nil
	}

	cleaned, missing := extractMissingColumns(parsed.SQL)
	return domain.PlanSQLResult{SQL: cleaned, MissingColumns: missing}, nil
}

func (s *DeepSeekService) ValidateSQL(ctx context.Context, sql, question string, schema []domain.TableHandle) (domain.ValidateSQLResult, error) {
	user := fmt.Sprintf("Schema:\n%sQuestion: %s\nSQL:\n%s", schemaDescription(schema), question, sql)

	raw, err := s.complete(ctx, validateSQLSystemPrompt, user, true)
	if err != nil {
		return domain.ValidateSQLResult{}, err
	}

	var parsed domain.ValidateSQLResult
	if err := decodeJSON(raw, &parsed); err != nil {
		return domain.ValidateSQLResult{IsValid: true}, nil
	}
	return parsed, nil
}

func (s *DeepSeekService) PlanMultiStep(ctx context.Context, question string, schema []domain.TableHandle, maxSubSteps int) (domain.PlanMultiStepResult, error) {
	user := fmt.Sprintf("Schema:\n%sQuestion: %s\nAt most %d steps are permitted.", schemaDescription(schema), question, maxSubSteps)

	raw, err := s.complete(ctx, planMultiStepSystemPrompt, user, true)
	if err != nil {
		return domain.PlanMultiStepResult{}, err
	}

	var parsed domain.PlanMultiStepResult
	if err := decodeJSON(raw, &parsed); err != nil {
		return domain.PlanMultiStepResult{NeedsMultiStep: false}, nil
	}
	return parsed, nil
}

func (s *DeepSeekService) Analyze(ctx context.Context, question string, result domain.QueryResult, rules domain.TierRules, missingColumns []string) (domain.AnalyzeResult, error) {
	resultJSON, _ := json.Marshal(result.Rows)
	user := fmt.Sprintf(
		"Question: %s\nRows (%d total, truncated=%v): %s\nmissingColumns: %v\nchartsAllowed: %v, suggestionsAllowed: %v, forecastAllowed: %v, extended: %v",
		question, result.RowCount, result.Truncated, string(resultJSON), missingColumns,
		rules.AllowCharts, rules.AllowSuggestions, rules.AllowForecast, rules.Extended,
	)

	raw, err := s.complete(ctx, analyzeSystemPrompt, user, true)
	if err != nil {
		return domain.AnalyzeResult{}, err
	}

	var parsed struct {
		Text        string           `json:"text"`
		Chart       *domain.Chart    `json:"chart"`
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

func (s *DeepSeekService) Synthesize(ctx context.Context, question string, steps []domain.StepResult, rules domain.TierRules) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", question)
	for _, st := range steps {
		rowsJSON, _ := json.Marshal(st.Result.Rows)
		fmt.Fprintf(&b, "Step %d (%s): %s\n", st.Step.Order, st.Step.SubQuestion, string(rowsJSON))
	}
	fmt.Fprintf(&b, "extended: %v", rules.Extended)

	return s.complete(ctx, synthesizeSystemPrompt, b.String(), false)
}
