package schema_test

import (
	"context"
	"testing"

	"github.com/nlanalytics/gatewaycore/internal/domain"
	"github.com/nlanalytics/gatewaycore/internal/schema"
)

func TestFileLogicalName(t *testing.T) {
	cases := map[string]string{
		"Sales":          "sales",
		"Q1 Marketing":   "q1_marketing",
		"  Orders  ":     "orders",
		"Revenue\tTable": "revenue_table",
	}
	for in, want := range cases {
		if got := schema.FileLogicalName(in); got != want {
			t.Errorf("FileLogicalName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestForFile(t *testing.T) {
	d := domain.DataSourceDescriptor{
		ID:   7,
		Name: "Sales",
		Kind: domain.SourceFile,
		Schema: domain.Schema{
			Columns: []string{"date", "product", "revenue"},
			Types: map[string]domain.ColumnSchema{
				"date":    {Type: "date"},
				"product": {Type: "text"},
				"revenue": {Type: "numeric"},
			},
		},
	}

	h := schema.New().ForFile(d)
	if h.LogicalName != "sales" {
		t.Errorf("logical name = %q, want sales", h.LogicalName)
	}
	if h.SourceID != 7 || h.Kind != domain.SourceFile {
		t.Errorf("unexpected handle metadata: %+v", h)
	}
	if len(h.Columns.Columns) != 3 {
		t.Errorf("expected 3 columns, got %d", len(h.Columns.Columns))
	}
}

type stubQuerier struct {
	tables  []domain.Row
	columns map[string][]domain.Row
}

func (s stubQuerier) QueryRows(ctx context.Context, sql string, args ...any) ([]domain.Row, error) {
	if len(args) == 0 {
		return s.tables, nil
	}
	name, _ := args[0].(string)
	return s.columns[name], nil
}

func TestForLive(t *testing.T) {
	q := stubQuerier{
		tables: []domain.Row{{"table_name": "orders"}, {"table_name": "customers"}},
		columns: map[string][]domain.Row{
			"orders": {
				{"column_name": "order_id", "data_type": "integer"},
				{"column_name": "customer_id", "data_type": "integer"},
				{"column_name": "amount", "data_type": "numeric"},
				{"column_name": "placed_at", "data_type": "timestamp"},
			},
			"customers": {
				{"column_name": "customer_id", "data_type": "integer"},
				{"column_name": "name", "data_type": "text"},
			},
		},
	}

	handles, err := schema.New().ForLive(context.Background(), domain.DataSourceDescriptor{ID: 1, Kind: domain.SourcePostgres}, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("expected 2 table handles, got %d", len(handles))
	}
	// sorted alphabetically: customers, orders
	if handles[0].LogicalName != "customers" || handles[1].LogicalName != "orders" {
		t.Fatalf("unexpected handle order: %+v", handles)
	}
	ordersCols := handles[1].Columns.ColumnNames()
	want := []string{"order_id", "customer_id", "amount", "placed_at"}
	if len(ordersCols) != len(want) {
		t.Fatalf("expected %d ordered columns, got %d", len(want), len(ordersCols))
	}
	for i, c := range want {
		if ordersCols[i] != c {
			t.Errorf("column %d = %q, want %q (ordinal order must be preserved)", i, ordersCols[i], c)
		}
	}
}
