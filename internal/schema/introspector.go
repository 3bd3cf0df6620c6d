// Package schema implements C3: producing the TableHandle list the planner
// reasons over, either by reading a file source's attached schema or by
// introspecting a live database's information_schema.
package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// LiveIntrospectionQuerier is the narrow read-only interface a live pool
// handle must satisfy for schema introspection. Concrete implementations
// live in internal/pool (pgx for postgres, database/sql for mysql); this
// package never imports a driver directly, matching spec.md §9's "validator
// and executor are separate, never fused" principle extended to
// introspection: Introspector only ever issues read-only
// information_schema queries, never DML/DDL.
type LiveIntrospectionQuerier interface {
	// QueryRows runs a read-only query and returns rows shaped as
	// column-name -> scalar, in result order.
	QueryRows(ctx context.Context, sql string, args ...any) ([]domain.Row, error)
}

// Introspector is C3.
type Introspector struct{}

// New constructs an Introspector. It holds no state — the live path takes
// its pool handle per call, and the file path reads straight off the
// descriptor.
func New() *Introspector {
	return &Introspector{}
}

// ForFile returns the single TableHandle a file source exposes: its schema
// is already attached to the descriptor, and its logical name is derived
// from the source name (lowercased, whitespace -> underscore), per spec.md
// §3.
func (Introspector) ForFile(d domain.DataSourceDescriptor) domain.TableHandle {
	return domain.TableHandle{
		LogicalName: FileLogicalName(d.Name),
		Columns:     d.Schema,
		SourceID:    d.ID,
		Kind:        domain.SourceFile,
	}
}

// FileLogicalName derives the logical table name exposed for a file source.
func FileLogicalName(sourceName string) string {
	lower := strings.ToLower(strings.TrimSpace(sourceName))
	var b strings.Builder
	for _, r := range lower {
		if r == ' ' || r == '\t' || r == '\n' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// tablesQuery lists base tables in the connection's default schema.
const tablesQuery = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema()
  AND table_type = 'BASE TABLE'
ORDER BY table_name`

// columnsQuery lists columns for one table, in ordinal position order.
const columnsQuery = `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = current_schema()
  AND table_name = $1
ORDER BY ordinal_position`

// ForLive introspects a live connection's default schema and returns one
// TableHandle per base table, columns in ordinal order. It issues only
// SELECTs against information_schema — never anything that could touch
// user data.
func (Introspector) ForLive(ctx context.Context, d domain.DataSourceDescriptor, q LiveIntrospectionQuerier) ([]domain.TableHandle, error) {
	tableRows, err := q.QueryRows(ctx, tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("schema: list tables: %w", err)
	}

	handles := make([]domain.TableHandle, 0, len(tableRows))
	for _, row := range tableRows {
		name, _ := row["table_name"].(string)
		if name == "" {
			continue
		}

		colRows, err := q.QueryRows(ctx, columnsQuery, name)
		if err != nil {
			return nil, fmt.Errorf("schema: list columns for %q: %w", name, err)
		}

		sch := domain.Schema{Types: make(map[string]domain.ColumnSchema, len(colRows))}
		for _, cr := range colRows {
			colName, _ := cr["column_name"].(string)
			dataType, _ := cr["data_type"].(string)
			if colName == "" {
				continue
			}
			sch.Columns = append(sch.Columns, colName)
			sch.Types[colName] = domain.ColumnSchema{Type: dataType}
		}

		handles = append(handles, domain.TableHandle{
			LogicalName: name,
			Columns:     sch,
			SourceID:    d.ID,
			Kind:        d.Kind,
		})
	}

	sort.Slice(handles, func(i, j int) bool { return handles[i].LogicalName < handles[j].LogicalName })
	return handles, nil
}
