package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// DataSourceStore backs domain.DataSourceStore for file-uploaded sources.
// Live Postgres/MySQL sources never read rows through here — those go
// through internal/pool and internal/executor directly, using the
// descriptor's ConnectionSecret.
//
// Expected schema, in addition to the tables documented in store.go:
//
//	CREATE TABLE data_sources (
//	    id                BIGSERIAL PRIMARY KEY,
//	    user_id           BIGINT NOT NULL,
//	    name              TEXT NOT NULL,
//	    kind              TEXT NOT NULL,
//	    status            TEXT NOT NULL,
//	    row_count         INT NOT NULL DEFAULT 0,
//	    schema_columns    JSONB NOT NULL,
//	    connection_secret TEXT NOT NULL DEFAULT '',
//	    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
//	CREATE TABLE file_rows (
//	    source_id BIGINT NOT NULL REFERENCES data_sources(id),
//	    row_index INT NOT NULL,
//	    data      JSONB NOT NULL,
//	    PRIMARY KEY (source_id, row_index)
//	);
type DataSourceStore struct {
	pool *sql.DB
}

// NewDataSourceStore wraps the same pool Store uses; the two types share a
// connection but have no other coupling.
func NewDataSourceStore(pool *sql.DB) *DataSourceStore {
	return &DataSourceStore{pool: pool}
}

// columnSchemaRow is the JSON shape persisted in data_sources.schema_columns.
type columnSchemaRow struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ListActive returns every data source owned by userID regardless of status
// — the orchestrator's DataSourceResolver decides which statuses count as
// usable (spec.md §4.2).
func (s *DataSourceStore) ListActive(ctx context.Context, userID int64) ([]domain.DataSourceDescriptor, error) {
	rows, err := s.pool.QueryContext(ctx, `
		SELECT id, name, kind, status, row_count, schema_columns, connection_secret
		FROM data_sources
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list data sources: %w", err)
	}
	defer rows.Close()

	var out []domain.DataSourceDescriptor
	for rows.Next() {
		var (
			d          domain.DataSourceDescriptor
			kind       string
			status     string
			schemaJSON []byte
		)
		if err := rows.Scan(&d.ID, &d.Name, &kind, &status, &d.RowCount, &schemaJSON, &d.ConnectionSecret); err != nil {
			return nil, fmt.Errorf("store: scan data source: %w", err)
		}
		d.Kind = domain.SourceKind(kind)
		d.Status = domain.SourceStatus(status)

		schema, err := decodeSchema(schemaJSON)
		if err != nil {
			return nil, fmt.Errorf("store: decode schema for source %d: %w", d.ID, err)
		}
		d.Schema = schema

		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list data sources: %w", err)
	}
	return out, nil
}

// RowsOf reads up to limit rows for a file-backed source, in insertion
// order. Callers never request more rows than a tier's MaxRows, so this is
// always a bounded scan — exactly the "never a real SQL engine" semantics
// internal/executor documents for file sources.
func (s *DataSourceStore) RowsOf(ctx context.Context, sourceID int64, limit int) ([]domain.Row, error) {
	rows, err := s.pool.QueryContext(ctx, `
		SELECT data FROM file_rows
		WHERE source_id = $1
		ORDER BY row_index
		LIMIT $2
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: read file rows: %w", err)
	}
	defer rows.Close()

	var out []domain.Row
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan file row: %w", err)
		}
		var row domain.Row
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("store: decode file row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read file rows: %w", err)
	}
	return out, nil
}

func decodeSchema(raw []byte) (domain.Schema, error) {
	var cols []columnSchemaRow
	if err := json.Unmarshal(raw, &cols); err != nil {
		return domain.Schema{}, err
	}
	schema := domain.Schema{
		Columns: make([]string, len(cols)),
		Types:   make(map[string]domain.ColumnSchema, len(cols)),
	}
	for i, c := range cols {
		schema.Columns[i] = c.Name
		schema.Types[c.Name] = domain.ColumnSchema{Type: c.Type, Description: c.Description}
	}
	return schema, nil
}
