package executor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nlanalytics/gatewaycore/internal/domain"
	"github.com/nlanalytics/gatewaycore/internal/executor"
)

type stubStore struct {
	rows []domain.Row
	err  error
}

func (s stubStore) ListActive(ctx context.Context, userID int64) ([]domain.DataSourceDescriptor, error) {
	return nil, nil
}

func (s stubStore) RowsOf(ctx context.Context, sourceID int64, limit int) ([]domain.Row, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.rows) {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func tenRows() []domain.Row {
	rows := make([]domain.Row, 10)
	for i := range rows {
		rows[i] = domain.Row{"id": i}
	}
	return rows
}

func TestRun_File_RespectsParsedLimit(t *testing.T) {
	store := stubStore{rows: tenRows()}
	e := executor.New(store, nil)

	result, err := e.Run(context.Background(), executor.Source{Kind: domain.SourceFile, FileSourceID: 1},
		"SELECT id FROM sales LIMIT 5", domain.Tiers[domain.TierStarter], []string{"sales"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RowCount != 5 {
		t.Errorf("row count = %d, want 5", result.RowCount)
	}
	if !result.Truncated {
		t.Error("expected truncated=true when rows == limit")
	}
}

func TestRun_File_FallsBackToTierMaxRowsWhenNoLimit(t *testing.T) {
	store := stubStore{rows: tenRows()}
	e := executor.New(store, nil)

	tier := domain.Tiers[domain.TierStarter] // maxRows = 100
	result, err := e.Run(context.Background(), executor.Source{Kind: domain.SourceFile, FileSourceID: 1},
		"SELECT id FROM sales", tier, []string{"sales"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RowCount != 10 {
		t.Errorf("row count = %d, want 10 (all available rows, under tier cap)", result.RowCount)
	}
	if result.Truncated {
		t.Error("expected truncated=false when fewer rows exist than the cap")
	}
}

func TestRun_File_BackendErrorMapsToSQLError(t *testing.T) {
	store := stubStore{err: errors.New("boom")}
	e := executor.New(store, nil)

	result, err := e.Run(context.Background(), executor.Source{Kind: domain.SourceFile, FileSourceID: 1},
		"SELECT id FROM sales LIMIT 5", domain.Tiers[domain.TierStarter], []string{"sales"})
	if err == nil {
		t.Fatal("expected an error")
	}
	var domErr *domain.Error
	if !errors.As(err, &domErr) {
		t.Fatalf("expected a *domain.Error, got %T", err)
	}
	if domErr.Kind != domain.ErrSQL {
		t.Errorf("expected ErrSQL, got %s", domErr.Kind)
	}
	if result.RowCount != 0 {
		t.Errorf("expected RowCount 0 on failure, got %d", result.RowCount)
	}
}

func TestRun_Live_WithoutPoolsConfiguredErrors(t *testing.T) {
	e := executor.New(stubStore{}, nil)

	_, err := e.Run(context.Background(), executor.Source{Kind: domain.SourcePostgres, ConnectionSecret: "x"},
		"SELECT 1 FROM orders LIMIT 5", domain.Tiers[domain.TierEnterprise], []string{"orders"})
	if err == nil {
		t.Fatal("expected an error when no pool registry is configured for a live source")
	}
}
