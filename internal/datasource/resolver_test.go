package datasource_test

import (
	"context"
	"testing"

	"github.com/nlanalytics/gatewaycore/internal/datasource"
	"github.com/nlanalytics/gatewaycore/internal/domain"
)

type stubStore struct {
	descriptors []domain.DataSourceDescriptor
	err         error
}

func (s stubStore) ListActive(ctx context.Context, userID int64) ([]domain.DataSourceDescriptor, error) {
	return s.descriptors, s.err
}

func (s stubStore) RowsOf(ctx context.Context, sourceID int64, limit int) ([]domain.Row, error) {
	return nil, nil
}

func fileSource(id int64, name string, rows int, status domain.SourceStatus) domain.DataSourceDescriptor {
	return domain.DataSourceDescriptor{
		ID:   id,
		Name: name,
		Kind: domain.SourceFile,
		Schema: domain.Schema{
			Columns: []string{"date", "product", "units", "revenue"},
			Types: map[string]domain.ColumnSchema{
				"date":    {Type: "date"},
				"product": {Type: "text"},
				"units":   {Type: "integer"},
				"revenue": {Type: "numeric"},
			},
		},
		RowCount: rows,
		Status:   status,
	}
}

func TestGetActive_EmptyWhenNoUsableSource(t *testing.T) {
	store := stubStore{descriptors: nil}
	r := datasource.New(store, nil)

	res, err := r.GetActive(context.Background(), 1, domain.Tiers[domain.TierStarter])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Active {
		t.Fatal("expected inactive resolution with no sources")
	}
	if res.Reason != datasource.ReasonEmptySource {
		t.Errorf("reason = %q, want %q", res.Reason, datasource.ReasonEmptySource)
	}
}

func TestGetActive_EmptyWhenOnlySourceHasNoRows(t *testing.T) {
	store := stubStore{descriptors: []domain.DataSourceDescriptor{
		fileSource(1, "Sales", 0, domain.StatusActive),
	}}
	r := datasource.New(store, nil)

	res, err := r.GetActive(context.Background(), 1, domain.Tiers[domain.TierStarter])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Active {
		t.Fatal("expected inactive resolution when the only source is empty")
	}
}

func TestGetActive_SingleSource(t *testing.T) {
	store := stubStore{descriptors: []domain.DataSourceDescriptor{
		fileSource(1, "Sales", 500, domain.StatusActive),
	}}
	r := datasource.New(store, nil)

	res, err := r.GetActive(context.Background(), 1, domain.Tiers[domain.TierStarter])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Active {
		t.Fatal("expected active resolution")
	}
	if len(res.Handles) != 1 {
		t.Fatalf("expected 1 handle, got %d", len(res.Handles))
	}
	if res.Handles[0].LogicalName != "sales" {
		t.Errorf("logical name = %q, want %q", res.Handles[0].LogicalName, "sales")
	}
	if res.TotalRows != 500 {
		t.Errorf("total rows = %d, want 500", res.TotalRows)
	}
}

func TestGetActive_StarterTierIgnoresSecondSource(t *testing.T) {
	store := stubStore{descriptors: []domain.DataSourceDescriptor{
		fileSource(1, "Sales", 500, domain.StatusActive),
		fileSource(2, "Marketing", 300, domain.StatusActive),
	}}
	r := datasource.New(store, nil)

	res, err := r.GetActive(context.Background(), 1, domain.Tiers[domain.TierStarter])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Starter disallows multi-step and is below professional, so it must
	// resolve to a single source even though two are active.
	if len(res.Handles) != 1 {
		t.Fatalf("expected starter tier to resolve a single source, got %d handles", len(res.Handles))
	}
	if res.TotalRows != 500 {
		t.Errorf("total rows = %d, want 500 (first usable source only)", res.TotalRows)
	}
}

func TestGetActive_ProfessionalTierComposesMultipleSources(t *testing.T) {
	store := stubStore{descriptors: []domain.DataSourceDescriptor{
		fileSource(1, "Sales", 500, domain.StatusActive),
		fileSource(2, "Marketing", 300, domain.StatusActive),
	}}
	r := datasource.New(store, nil)

	res, err := r.GetActive(context.Background(), 1, domain.Tiers[domain.TierProfessional])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Active {
		t.Fatal("expected active resolution")
	}
	if len(res.Handles) != 2 {
		t.Fatalf("expected composite with 2 handles, got %d", len(res.Handles))
	}
	if res.TotalRows != 800 {
		t.Errorf("total rows = %d, want 800", res.TotalRows)
	}
}

func TestGetActive_SkipsErrorAndSyncingSources(t *testing.T) {
	store := stubStore{descriptors: []domain.DataSourceDescriptor{
		fileSource(1, "Broken", 500, domain.StatusError),
		fileSource(2, "Syncing", 500, domain.StatusSyncing),
		fileSource(3, "Sales", 500, domain.StatusActive),
	}}
	r := datasource.New(store, nil)

	res, err := r.GetActive(context.Background(), 1, domain.Tiers[domain.TierEnterprise])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Handles) != 1 {
		t.Fatalf("expected only the active source to resolve, got %d handles", len(res.Handles))
	}
	if res.Handles[0].LogicalName != "sales" {
		t.Errorf("expected the active source, got %q", res.Handles[0].LogicalName)
	}
}

func TestGetActive_LiveSourceWithoutPoolOpenerErrors(t *testing.T) {
	store := stubStore{descriptors: []domain.DataSourceDescriptor{
		{ID: 1, Name: "Orders", Kind: domain.SourcePostgres, RowCount: 100, Status: domain.StatusActive, ConnectionSecret: "secret"},
	}}
	r := datasource.New(store, nil)

	_, err := r.GetActive(context.Background(), 1, domain.Tiers[domain.TierEnterprise])
	if err == nil {
		t.Fatal("expected an error resolving a live source with no pool opener configured")
	}
}
