package domain

import (
	"context"
	"time"
)

// ─── COLLABORATOR INTERFACES (spec.md §6) ─────────────────────────────────
// The core depends only on these shapes. Concrete implementations live
// outside this package (internal/store, internal/prompt, internal/pool,
// internal/clock) or are supplied entirely by the embedding application.

// DataSourceStore lists a user's connected sources and reads file-backed
// rows. Live-source rows never flow through this interface — those go
// through QueryExecutor and ConnectionPoolRegistry instead.
type DataSourceStore interface {
	ListActive(ctx context.Context, userID int64) ([]DataSourceDescriptor, error)
	RowsOf(ctx context.Context, sourceID int64, limit int) ([]Row, error)
}

// ConversationStore persists the chat transcript and enforces content-hash
// deduplication (spec.md §6, §9).
type ConversationStore interface {
	SaveUser(ctx context.Context, convID int64, content, requestID string) (ChatMessage, error)
	SaveAI(ctx context.Context, convID int64, content, requestID string, meta map[string]any) (ChatMessage, error)
	Update(ctx context.Context, messageID int64, content string, complete bool) error
	ByHash(ctx context.Context, userID, convID int64, content string) (ChatMessage, bool, error)
}

// PlanSQLResult is PromptService.PlanSQL's output.
type PlanSQLResult struct {
	SQL            string
	MissingColumns []string
}

// ValidateSQLResult is PromptService.ValidateSQL's output.
type ValidateSQLResult struct {
	IsValid         bool
	Concerns        []string
	Recommendations []string
	CorrectedSQL    string
}

// PlanMultiStepResult is PromptService.PlanMultiStep's output.
type PlanMultiStepResult struct {
	NeedsMultiStep bool
	Steps          []PlanStep
}

// Forecast is an optional forecast block analyze() may produce when the tier
// allows it.
type Forecast struct {
	Horizon     string
	Narrative   string
	Projections []Row
}

// AnalyzeResult is PromptService.Analyze's output.
type AnalyzeResult struct {
	Text        string
	Chart       *Chart
	Suggestions []string
	Forecast    *Forecast
}

// TierRules is the subset of Tier that shapes prompt behavior (style/length,
// whether charts/suggestions/forecast are even worth asking the model for).
// Passed explicitly rather than the model inferring capability from tier
// name, per spec.md §9.
type TierRules struct {
	AllowCharts      bool
	AllowSuggestions bool
	AllowForecast    bool
	Extended         bool // ChatRequest.ExtendedResponses: longer answers allowed
}

// StepResult pairs one multi-step plan step with its executed rows, for
// synthesis.
type StepResult struct {
	Step   PlanStep
	Result QueryResult
}

// PromptService is the five-capability typed wrapper over an LLM (spec.md
// §4.6). Every method must treat empty/invalid JSON as a structured
// "not applicable" response rather than crashing the pipeline; timeouts
// propagate to the caller as a plain error, which the orchestrator maps to
// ErrSQL or ErrValidation depending on which call failed.
type PromptService interface {
	PlanSQL(ctx context.Context, question string, schema []TableHandle) (PlanSQLResult, error)
	ValidateSQL(ctx context.Context, sql, question string, schema []TableHandle) (ValidateSQLResult, error)
	PlanMultiStep(ctx context.Context, question string, schema []TableHandle, maxSubSteps int) (PlanMultiStepResult, error)
	Analyze(ctx context.Context, question string, result QueryResult, rules TierRules, missingColumns []string) (AnalyzeResult, error)
	Synthesize(ctx context.Context, question string, steps []StepResult, rules TierRules) (string, error)
}

// LiveDbDriver describes running SQL against a live RDBMS connection through
// a pool handle for (kind, secret). No package in this module implements or
// calls it: the executor runs live SQL through internal/pool's Conn, which
// wraps pgx for postgres and database/sql+go-sql-driver/mysql for mysql.
type LiveDbDriver interface {
	Execute(ctx context.Context, handle any, sql string) ([]Row, []string, error)
}

// Clock abstracts time so rate-limiter and dedup-cache logic is testable
// without sleeping.
type Clock interface {
	Now() time.Time
}

// RandomID generates opaque identifiers (conversation/message ids where the
// embedding application doesn't supply one).
type RandomID interface {
	NewID() string
}

// DedupCache is the short-lived (1-minute TTL) cross-request dedup interface
// the orchestrator consults before re-running identical work (spec.md §5,
// §9). It is intentionally distinct from ConversationStore's content-hash
// dedup, which has no TTL and is keyed by (userID, convID, content) rather
// than requestID.
type DedupCache interface {
	// Get returns the previously computed response for (userID, requestID)
	// if it is still within the cache's TTL.
	Get(userID int64, requestID string) (ChatResponse, bool)
	Put(userID int64, requestID string, resp ChatResponse)
}
