// Package pool implements C1 ConnectionPoolRegistry: process-global, lazily
// created connection pools for live Postgres and MySQL sources, keyed by a
// hash of (kind, secret) so the raw connection secret never appears in
// memory keys or logs (spec.md §4.9, §9).
package pool

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nlanalytics/gatewaycore/internal/domain"
	"github.com/nlanalytics/gatewaycore/internal/metrics"
	"github.com/nlanalytics/gatewaycore/internal/schema"
)

const (
	defaultMaxOpen        = 5
	defaultIdleTimeout    = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// Conn is what one pooled connection offers: read-only introspection
// queries (schema.LiveIntrospectionQuerier) plus plain SQL execution for
// QueryExecutor. The two are the same underlying connection — kept as one
// interface so the registry only ever opens one pool per (kind, secret).
type Conn interface {
	schema.LiveIntrospectionQuerier
	// Execute runs a fully-resolved read-only statement (no placeholder
	// args — the validator has already produced concrete SQL) and returns
	// rows alongside the column names in result order.
	Execute(ctx context.Context, sql string) ([]domain.Row, []string, error)
}

// Registry is C1.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Conn
	logger  *slog.Logger
}

// New constructs an empty Registry. Pools are created lazily on first use.
func New(logger *slog.Logger) *Registry {
	return &Registry{entries: make(map[string]Conn), logger: logger}
}

// poolKey hashes (kind, secret) so the secret itself is never retained as a
// map key or logged.
func poolKey(kind domain.SourceKind, secret string) string {
	sum := sha256.Sum256([]byte(string(kind) + ":" + secret))
	return hex.EncodeToString(sum[:])
}

// Open returns the pool for (kind, secret), creating it on first use. This
// method is how Registry satisfies datasource.LivePoolOpener; the pool is
// returned as a schema.LiveIntrospectionQuerier.
func (r *Registry) Open(ctx context.Context, kind domain.SourceKind, secret string) (schema.LiveIntrospectionQuerier, error) {
	return r.open(ctx, kind, secret)
}

// Conn returns the same pool, typed for executor use.
func (r *Registry) Conn(ctx context.Context, kind domain.SourceKind, secret string) (Conn, error) {
	return r.open(ctx, kind, secret)
}

func (r *Registry) open(ctx context.Context, kind domain.SourceKind, secret string) (Conn, error) {
	key := poolKey(kind, secret)

	r.mu.Lock()
	if c, ok := r.entries[key]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	conn, err := r.connect(ctx, kind, secret)
	if err != nil {
		r.logger.Error("pool: connect failed", "kind", kind, "keyHash", key[:12], "error", err)
		return nil, fmt.Errorf("pool: connect %s: %w", kind, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[key]; ok {
		// Lost the race with a concurrent Open for the same key; keep the
		// winner, discard the connection we just made.
		closeConn(conn)
		return existing, nil
	}
	r.entries[key] = conn
	r.logger.Info("pool: opened new connection pool", "kind", kind, "keyHash", key[:12])
	metrics.ObservePoolOpened(string(kind))
	return conn, nil
}

func (r *Registry) connect(ctx context.Context, kind domain.SourceKind, secret string) (Conn, error) {
	switch kind {
	case domain.SourcePostgres:
		return newPostgresConn(ctx, secret)
	case domain.SourceMySQL:
		return newMySQLConn(ctx, secret)
	default:
		return nil, fmt.Errorf("pool: unsupported live source kind %q", kind)
	}
}

// CloseAll tears down every pool. Called once, on orderly shutdown — pools
// are never closed per-request (spec.md §3 invariant 7).
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, c := range r.entries {
		closeConn(c)
		delete(r.entries, key)
	}
}

func closeConn(c Conn) {
	switch t := c.(type) {
	case *pgConn:
		t.pool.Close()
	case *mysqlConn:
		_ = t.db.Close()
	}
}

// ─── POSTGRES ──────────────────────────────────────────────────────────────

type pgConn struct {
	pool *pgxpool.Pool
}

func newPostgresConn(ctx context.Context, dsn string) (Conn, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = defaultMaxOpen
	cfg.MaxConnIdleTime = defaultIdleTimeout
	cfg.ConnConfig.ConnectTimeout = defaultConnectTimeout

	connectCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	p, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := p.Ping(connectCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &pgConn{pool: p}, nil
}

func (c *pgConn) QueryRows(ctx context.Context, sqlText string, args ...any) ([]domain.Row, error) {
	rows, cols, err := c.query(ctx, sqlText, args...)
	_ = cols
	return rows, err
}

func (c *pgConn) Execute(ctx context.Context, sqlText string) ([]domain.Row, []string, error) {
	return c.query(ctx, sqlText)
}

func (c *pgConn) query(ctx context.Context, sqlText string, args ...any) ([]domain.Row, []string, error) {
	start := time.Now()
	defer func() { metrics.ObservePoolQuery(string(domain.SourcePostgres), time.Since(start)) }()

	rows, err := c.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = string(f.Name)
	}

	var out []domain.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("postgres scan row: %w", err)
		}
		row := make(domain.Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("postgres row iteration: %w", err)
	}
	return out, cols, nil
}

// ─── MYSQL ─────────────────────────────────────────────────────────────────

type mysqlConn struct {
	db *sql.DB
}

func newMySQLConn(ctx context.Context, dsn string) (Conn, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql pool: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpen)
	db.SetMaxIdleConns(defaultMaxOpen)
	db.SetConnMaxIdleTime(defaultIdleTimeout)

	connectCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := db.PingContext(connectCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return &mysqlConn{db: db}, nil
}

func (c *mysqlConn) QueryRows(ctx context.Context, sqlText string, args ...any) ([]domain.Row, error) {
	rows, _, err := c.query(ctx, sqlText, args...)
	return rows, err
}

func (c *mysqlConn) Execute(ctx context.Context, sqlText string) ([]domain.Row, []string, error) {
	return c.query(ctx, sqlText)
}

func (c *mysqlConn) query(ctx context.Context, sqlText string, args ...any) ([]domain.Row, []string, error) {
	start := time.Now()
	defer func() { metrics.ObservePoolQuery(string(domain.SourceMySQL), time.Since(start)) }()

	rows, err := c.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("mysql columns: %w", err)
	}

	var out []domain.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("mysql scan row: %w", err)
		}
		row := make(domain.Row, len(cols))
		for i, c := range cols {
			row[c] = normalizeMySQLValue(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("mysql row iteration: %w", err)
	}
	return out, cols, nil
}

// normalizeMySQLValue converts the []byte the mysql driver returns for most
// textual/numeric columns into a plain string, so downstream components
// never need to special-case driver byte slices.
func normalizeMySQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
