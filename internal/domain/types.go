// Package domain holds the shared data model and collaborator interfaces for
// the query orchestration core. Every component package (ratelimit, intent,
// datasource, schema, sqlsafety, prompt, pool, executor, quality,
// responsevalidate, multistep, orchestrator) imports domain; domain imports
// nothing from them. This keeps the dependency graph a strict DAG rooted
// here, the same way the teacher's scoring package stays import-free from db
// so it can be exercised without a database.
package domain

import (
	"context"
	"time"
)

// ─── USER & TIER ──────────────────────────────────────────────────────────────

// TierName is the canonical tier identifier. Only these three values are
// recognized anywhere in the core — aliases seen in some upstream systems
// (beginner/pro/elite) are not translated; callers must send the canonical
// name.
type TierName string

const (
	TierStarter      TierName = "starter"
	TierProfessional TierName = "professional"
	TierEnterprise   TierName = "enterprise"
)

// Unbounded marks a quota field as having no ceiling (the enterprise hourly
// query limit, and enterprise maxSubSteps).
const Unbounded = -1

// Tier is the single config record threaded through every component that
// needs to know what a user is allowed to do. Components read its fields
// rather than branching on TierName (see design note in spec.md §9), with two
// exceptions: datasource allows multi-source resolution for professional and
// enterprise by name, and ratelimit's deny message names the next tier up.
type Tier struct {
	Name TierName

	// MaxQueriesPerHour is the sliding-window quota. Unbounded for enterprise.
	MaxQueriesPerHour int

	// SpamWindowCap is the per-minute cap applied only when MaxQueriesPerHour
	// is Unbounded. Zero means "not applicable" (bounded tiers enforce their
	// hourly cap only).
	SpamWindowCap int

	AllowCharts      bool
	AllowSuggestions bool
	AllowForecast    bool
	AllowMultiStep   bool

	// MaxSubSteps is the ceiling on planner steps. Unbounded for enterprise.
	MaxSubSteps int

	MaxRows    int
	AllowJoins bool
	MaxJoins   int

	// AgentSQLValidation gates the extra PromptService.validateSQL round trip
	// in the single-step branch (see orchestrator.validateAndMaybeCorrect). Starter
	// skips it to keep the cheapest tier cheap; professional and enterprise
	// spend the extra LLM call for a second opinion on generated SQL.
	AgentSQLValidation bool

	// ExecTimeout bounds query execution and is the per-request deadline
	// propagated to the driver (spec.md §5).
	ExecTimeout time.Duration
}

// Tiers is the fixed configuration surface from spec.md §6. It is the only
// place tier numbers are hard-coded; every component reads a Tier value, not
// this map, at call time.
var Tiers = map[TierName]Tier{
	TierStarter: {
		Name:               TierStarter,
		MaxQueriesPerHour:  5,
		SpamWindowCap:      0,
		AllowCharts:        false,
		AllowSuggestions:   false,
		AllowForecast:      false,
		AllowMultiStep:     false,
		MaxSubSteps:        1,
		MaxRows:            100,
		AllowJoins:         false,
		MaxJoins:           0,
		AgentSQLValidation: false,
		ExecTimeout:        10 * time.Second,
	},
	TierProfessional: {
		Name:               TierProfessional,
		MaxQueriesPerHour:  25,
		SpamWindowCap:      0,
		AllowCharts:        true,
		AllowSuggestions:   true,
		AllowForecast:      false,
		AllowMultiStep:     true,
		MaxSubSteps:        3,
		MaxRows:            1000,
		AllowJoins:         true,
		MaxJoins:           2,
		AgentSQLValidation: true,
		ExecTimeout:        30 * time.Second,
	},
	TierEnterprise: {
		Name:               TierEnterprise,
		MaxQueriesPerHour:  Unbounded,
		SpamWindowCap:      60,
		AllowCharts:        true,
		AllowSuggestions:   true,
		AllowForecast:      true,
		AllowMultiStep:     true,
		MaxSubSteps:        Unbounded,
		MaxRows:            5000,
		AllowJoins:         true,
		MaxJoins:           5,
		AgentSQLValidation: true,
		ExecTimeout:        60 * time.Second,
	},
}

// LookupTier resolves a canonical tier name. The second return is false for
// any name outside {starter, professional, enterprise}, including the
// inconsistent beginner/pro/elite aliases spec.md explicitly tells us not to
// guess a mapping for.
func LookupTier(name string) (Tier, bool) {
	t, ok := Tiers[TierName(name)]
	return t, ok
}

// User is the minimal identity the core needs: who is asking, and under what
// tier. Everything else (email, plan billing state, org membership) belongs
// to the collaborator that owns auth, not to this core.
type User struct {
	ID   int64
	Tier Tier
}

// ─── DATA SOURCES ─────────────────────────────────────────────────────────────

// SourceKind identifies where a DataSourceDescriptor's rows live.
type SourceKind string

const (
	SourceFile     SourceKind = "file"
	SourcePostgres SourceKind = "postgres"
	SourceMySQL    SourceKind = "mysql"
)

// SourceStatus is the ingestion/connection health of a data source.
type SourceStatus string

const (
	StatusActive   SourceStatus = "active"
	StatusSyncing  SourceStatus = "syncing"
	StatusError    SourceStatus = "error"
	StatusEmpty    SourceStatus = "empty"
)

// ColumnSchema describes one column of a table or file source.
type ColumnSchema struct {
	Type        string
	Description string
}

// Schema is the ordered column map for a table or source. Go maps have no
// guaranteed iteration order, so order is carried alongside in Columns.
type Schema struct {
	Columns []string
	Types   map[string]ColumnSchema
}

// ColumnNames returns the ordered column name list.
func (s Schema) ColumnNames() []string {
	return s.Columns
}

// Has reports whether the schema contains a column, case-insensitively.
func (s Schema) Has(name string) bool {
	_, ok := s.lookup(name)
	return ok
}

func (s Schema) lookup(name string) (ColumnSchema, bool) {
	for _, c := range s.Columns {
		if eqFold(c, name) {
			return s.Types[c], true
		}
	}
	return ColumnSchema{}, false
}

func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// DataSourceDescriptor is the typed handle the core receives for a connected
// data source. It is owned outside the core (by ingestion / connector
// collaborators) and treated as immutable within one request (spec.md §3,
// invariant on lifecycles).
type DataSourceDescriptor struct {
	ID       int64
	Name     string
	Kind     SourceKind
	Schema   Schema
	RowCount int
	Status   SourceStatus

	// ConnectionSecret is opaque and encrypted at rest by the owning
	// collaborator; the core only ever passes it through to
	// ConnectionPoolRegistry, which hashes it before using it as a pool key
	// and before logging (spec.md §4.9, §9).
	ConnectionSecret string
}

// TableHandle is a logical table view exposed to the planner: a name plus a
// column schema. A file source exposes exactly one handle; a live source
// exposes every table in its default schema (spec.md §3).
type TableHandle struct {
	LogicalName string
	Columns     Schema
	SourceID    int64
	Kind        SourceKind
}

// ─── SQL PLAN ──────────────────────────────────────────────────────────────

// PlanStep is one step of a multi-step plan.
type PlanStep struct {
	Order       int
	Description string
	SubQuestion string
	DependsOn   []int
}

// SQLPlan is the planner's (or default-insight template's) output. SQL is
// always read-only by construction; the validator (C4) is the only component
// that is trusted to certify that, never the planner.
type SQLPlan struct {
	SQL            string
	MissingColumns []string
	Steps          []PlanStep
}

// ─── QUERY RESULT ─────────────────────────────────────────────────────────

// Row is one result row: column name to scalar or nil.
type Row map[string]any

// QueryResult is the normalized output of C6 QueryExecutor, regardless of
// backend.
type QueryResult struct {
	Rows      []Row
	RowCount  int
	Tables    []string
	Truncated bool
}

// ─── DATA QUALITY ─────────────────────────────────────────────────────────

// Severity is the DataQualityReport issue level.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// QualityIssueKind names the six checks C7 runs.
type QualityIssueKind string

const (
	IssueNulls        QualityIssueKind = "nulls"
	IssueEmptyStrings QualityIssueKind = "empty_strings"
	IssueMixedTypes   QualityIssueKind = "mixed_types"
	IssueInvalidDates QualityIssueKind = "invalid_dates"
	IssueOutliers     QualityIssueKind = "outliers"
	IssueDuplicates   QualityIssueKind = "duplicate_rows"
)

// Issue is one finding from DataQualityAnalyzer.
type Issue struct {
	Kind          QualityIssueKind
	Severity      Severity
	Column        string
	AffectedCount int
	TotalCount    int
	Percentage    float64
	Description   string
}

// DataQualityReport is the full set of findings for one QueryResult.
type DataQualityReport struct {
	Issues            []Issue
	DisclosureMessage string
	CompleteRecords   int
}

// WorstSeverity returns the highest severity present, or "" if Issues is
// empty.
func (r DataQualityReport) WorstSeverity() Severity {
	worst := Severity("")
	for _, iss := range r.Issues {
		if severityRank(iss.Severity) > severityRank(worst) {
			worst = iss.Severity
		}
	}
	return worst
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// ─── VALIDATION REPORT ────────────────────────────────────────────────────

// CostEstimate is SQLSafetyValidator's rough cost heuristic output.
type CostEstimate string

const (
	CostLow    CostEstimate = "low"
	CostMedium CostEstimate = "medium"
	CostHigh   CostEstimate = "high"
)

// ValidationReport is C4's pure-function output.
type ValidationReport struct {
	IsValid       bool
	Warnings      []string
	Errors        []string
	EstimatedCost CostEstimate
	EnhancedSQL   string
}

// ─── CHAT REQUEST / RESPONSE ──────────────────────────────────────────────

// ChatRequest is the sole entry point's input (spec.md §6).
type ChatRequest struct {
	UserID               int64  `validate:"required"`
	Tier                 string `validate:"required,oneof=starter professional enterprise"`
	Message              string `validate:"required,min=1,max=4000"`
	ConversationID       int64
	ExtendedResponses    bool
	IsSuggestionFollowup bool
	RequestID            string
	RequestChart         bool
	RequestForecast      bool
}

// ChartType enumerates the chart kinds the core may attach.
type ChartType string

const (
	ChartLine ChartType = "line"
	ChartBar  ChartType = "bar"
	ChartArea ChartType = "area"
	ChartPie  ChartType = "pie"
)

// Chart is an attached chart spec; Data is the row slice the chart renders,
// a subset/view of the executed QueryResult.
type Chart struct {
	Type ChartType
	X    string
	Y    string
	Data []Row
}

// Intent is the classifier's output (C10).
type Intent string

const (
	IntentDataQuery   Intent = "data_query"
	IntentFAQProduct  Intent = "faq_product"
	IntentIrrelevant  Intent = "irrelevant"
)

// ChatMeta is the metadata block on every ChatResponse.
type ChatMeta struct {
	Intent       Intent
	Tier         TierName
	Tables       []string
	Rows         int
	Limited      bool
	MetaphorUsed bool
	Suggestions  []string
}

// ChatResponse is the sole entry point's output (spec.md §6).
type ChatResponse struct {
	Text  string
	Chart *Chart
	Meta  ChatMeta
}

// ─── RATE LIMIT WINDOW ────────────────────────────────────────────────────

// RequestRecord is one timestamped non-free query, used by RateLimiter to
// compute the sliding window.
type RequestRecord struct {
	UserID    int64
	Timestamp time.Time
}

// SlidingWindow is the duration over which MaxQueriesPerHour is enforced.
const SlidingWindow = time.Hour

// SpamWindow is the duration over which SpamWindowCap is enforced.
const SpamWindow = time.Minute

// ─── PERSISTED CHAT MESSAGE SHAPE (owned outside the core, stable shape) ──

// ChatRole distinguishes user vs assistant turns in a persisted transcript.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage mirrors the persisted shape named in spec.md §6. The core
// writes these through ConversationStore; it does not own the table.
type ChatMessage struct {
	ID             int64
	ConversationID int64
	Role           ChatRole
	Content        string
	MessageHash    string
	RequestID      string
	IsComplete     bool
	Metadata       map[string]any
	CreatedAt      time.Time
}

// ─── CONTEXT DEADLINE HELPER ──────────────────────────────────────────────

// WithTierDeadline returns a context bounded by tier.ExecTimeout, alongside
// its cancel func. Every I/O-bound call in the query branch is derived from
// this context (spec.md §5).
func WithTierDeadline(ctx context.Context, tier Tier) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, tier.ExecTimeout)
}
