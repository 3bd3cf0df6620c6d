package store_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nlanalytics/gatewaycore/internal/domain"
	"github.com/nlanalytics/gatewaycore/internal/store"
)

func TestDataSourceStoreListAndRows(t *testing.T) {
	pool := openTestDB(t)
	ds := store.NewDataSourceStore(pool)
	ctx := context.Background()

	schemaJSON, err := json.Marshal([]map[string]string{
		{"name": "product", "type": "text"},
		{"name": "revenue", "type": "numeric"},
	})
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}

	var sourceID int64
	err = pool.QueryRowContext(ctx, `
		INSERT INTO data_sources (user_id, name, kind, status, row_count, schema_columns)
		VALUES ($1, 'sales.csv', 'file', 'active', 2, $2)
		RETURNING id
	`, 5, schemaJSON).Scan(&sourceID)
	if err != nil {
		t.Fatalf("seed data source: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.ExecContext(context.Background(), `DELETE FROM file_rows WHERE source_id = $1`, sourceID)
		_, _ = pool.ExecContext(context.Background(), `DELETE FROM data_sources WHERE id = $1`, sourceID)
	})

	for i, row := range []map[string]any{
		{"product": "Widget", "revenue": 100},
		{"product": "Gadget", "revenue": 200},
	} {
		raw, _ := json.Marshal(row)
		if _, err := pool.ExecContext(ctx, `
			INSERT INTO file_rows (source_id, row_index, data) VALUES ($1, $2, $3)
		`, sourceID, i, raw); err != nil {
			t.Fatalf("seed file row %d: %v", i, err)
		}
	}

	descriptors, err := ds.ListActive(ctx, 5)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(descriptors) != 1 {
		t.Fatalf("ListActive: got %d descriptors, want 1", len(descriptors))
	}
	d := descriptors[0]
	if d.Kind != domain.SourceFile {
		t.Fatalf("ListActive: kind = %q, want file", d.Kind)
	}
	if !d.Schema.Has("revenue") {
		t.Fatalf("ListActive: schema missing revenue column: %+v", d.Schema)
	}

	rows, err := ds.RowsOf(ctx, sourceID, 10)
	if err != nil {
		t.Fatalf("RowsOf: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("RowsOf: got %d rows, want 2", len(rows))
	}
	if rows[0]["product"] != "Widget" {
		t.Fatalf("RowsOf: rows out of order: %+v", rows)
	}
}
