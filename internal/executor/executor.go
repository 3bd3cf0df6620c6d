// Package executor implements C6 QueryExecutor: runs validator-certified SQL
// against either a file-backed row store (a bounded scan, never a real SQL
// engine — spec.md §9) or a live Postgres/MySQL pool, and normalizes the
// result shape regardless of backend.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nlanalytics/gatewaycore/internal/domain"
	"github.com/nlanalytics/gatewaycore/internal/pool"
)

// LivePool is the narrow slice of internal/pool.Registry the executor needs.
type LivePool interface {
	Conn(ctx context.Context, kind domain.SourceKind, secret string) (pool.Conn, error)
}

// Source identifies which backend to run against.
type Source struct {
	Kind             domain.SourceKind
	FileSourceID     int64  // meaningful when Kind == domain.SourceFile
	ConnectionSecret string // meaningful for postgres/mysql
}

// Executor is C6.
type Executor struct {
	store domain.DataSourceStore
	pools LivePool
}

// New constructs an Executor. pools may be nil for file-only deployments.
func New(store domain.DataSourceStore, pools LivePool) *Executor {
	return &Executor{store: store, pools: pools}
}

var limitRe = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\b`)

// Run executes validated, enhanced SQL against src and returns a normalized
// QueryResult. tables is the logical table name list the caller already
// knows from planning (used to populate QueryResult.Tables since a bounded
// file scan never parses SQL to discover it).
func (e *Executor) Run(ctx context.Context, src Source, enhancedSQL string, tier domain.Tier, tables []string) (domain.QueryResult, error) {
	ctx, cancel := domain.WithTierDeadline(ctx, tier)
	defer cancel()

	switch src.Kind {
	case domain.SourceFile:
		return e.runFile(ctx, src, enhancedSQL, tier, tables)
	case domain.SourcePostgres, domain.SourceMySQL:
		return e.runLive(ctx, src, enhancedSQL, tier, tables)
	default:
		return domain.QueryResult{}, domain.NewError(domain.ErrSQL, "unsupported data source kind", "try reconnecting your data source", fmt.Errorf("executor: unknown source kind %q", src.Kind))
	}
}

// runFile treats a file source as a bounded row scan: the validated SQL is
// only ever used as a tier-checked representation of intent, never
// evaluated as SQL. It exists so the same validator/LIMIT machinery governs
// file and live sources identically.
func (e *Executor) runFile(ctx context.Context, src Source, enhancedSQL string, tier domain.Tier, tables []string) (domain.QueryResult, error) {
	limit := tier.MaxRows
	if m := limitRe.FindStringSubmatch(enhancedSQL); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n < limit {
			limit = n
		}
	}

	rows, err := e.store.RowsOf(ctx, src.FileSourceID, limit)
	if err != nil {
		return domain.QueryResult{RowCount: 0}, domain.NewError(domain.ErrSQL, "could not read the data source", "try again in a moment", err)
	}

	return domain.QueryResult{
		Rows:      rows,
		RowCount:  len(rows),
		Tables:    tables,
		Truncated: len(rows) >= limit,
	}, nil
}

// runLive acquires a pool connection and executes the enhanced SQL verbatim
// — the validator is the sole authority on its safety; the executor assumes
// only that guarantee holds (spec.md §9).
func (e *Executor) runLive(ctx context.Context, src Source, enhancedSQL string, tier domain.Tier, tables []string) (domain.QueryResult, error) {
	if e.pools == nil {
		return domain.QueryResult{RowCount: 0}, domain.NewError(domain.ErrSQL, "no live connection is configured", "reconnect your database", fmt.Errorf("executor: no pool registry configured"))
	}

	conn, err := e.pools.Conn(ctx, src.Kind, src.ConnectionSecret)
	if err != nil {
		return domain.QueryResult{RowCount: 0}, domain.NewError(domain.ErrSQL, "could not connect to your database", "check your connection and try again", err)
	}

	rows, _, err := conn.Execute(ctx, enhancedSQL)
	if err != nil {
		return domain.QueryResult{RowCount: 0}, domain.NewError(domain.ErrSQL, "the query could not be executed", "try simplifying your question", err)
	}

	normalized := normalizeRows(rows)

	return domain.QueryResult{
		Rows:      normalized,
		RowCount:  len(normalized),
		Tables:    tables,
		Truncated: len(normalized) >= tier.MaxRows,
	}, nil
}

// pureNumberRe requires a canonical integer part (no leading zeros, "0"
// itself excepted) so that zero-padded identifiers like "007" are left as
// strings rather than coerced to 7.
var pureNumberRe = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?$`)

// normalizeRows lowercases column keys (drivers vary in casing convention)
// and coerces numeric-looking strings to numbers, but only when the string
// is unambiguously numeric — anything else (IDs with leading zeros, mixed
// alphanumerics) is left as a string.
func normalizeRows(rows []domain.Row) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, row := range rows {
		normalized := make(domain.Row, len(row))
		for k, v := range row {
			normalized[strings.ToLower(k)] = coerceNumeric(v)
		}
		out[i] = normalized
	}
	return out
}

func coerceNumeric(v any) any {
	s, ok := v.(string)
	if !ok || s == "" || !pureNumberRe.MatchString(s) {
		return v
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return v
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return v
}
