// Package datasource implements C2: resolving which of a user's connected
// sources the current request should query, and building the TableHandle
// list the planner reasons over.
package datasource

import (
	"context"
	"fmt"

	"github.com/nlanalytics/gatewaycore/internal/domain"
	"github.com/nlanalytics/gatewaycore/internal/schema"
)

// Resolution is GetActive's result (spec.md §4.3).
type Resolution struct {
	Active    bool
	Kind      domain.SourceKind
	Handles   []domain.TableHandle
	TotalRows int
	Reason    string
}

// ReasonEmptySource is the only defined Reason value: no usable source.
const ReasonEmptySource = "empty_source"

// LivePoolOpener acquires the introspection querier for a live source. It is
// satisfied by internal/pool's registry; kept narrow here so datasource never
// imports a driver package.
type LivePoolOpener interface {
	Open(ctx context.Context, kind domain.SourceKind, secret string) (schema.LiveIntrospectionQuerier, error)
}

// Resolver is C2.
type Resolver struct {
	store        domain.DataSourceStore
	introspector *schema.Introspector
	pools        LivePoolOpener
}

// New constructs a Resolver. pools may be nil if the deployment only serves
// file sources; calling GetActive against a live descriptor without a pool
// opener returns an error.
func New(store domain.DataSourceStore, pools LivePoolOpener) *Resolver {
	return &Resolver{store: store, introspector: schema.New(), pools: pools}
}

// List returns every source connected for a user, active or not, exactly as
// the owning collaborator reports them.
func (r *Resolver) List(ctx context.Context, userID int64) ([]domain.DataSourceDescriptor, error) {
	return r.store.ListActive(ctx, userID)
}

// allowsMultiSource reports whether a tier may resolve more than one active
// source into a composite view (spec.md §4.3: tiers with AllowMultiStep, or
// professional and above).
func allowsMultiSource(tier domain.Tier) bool {
	return tier.AllowMultiStep || tier.Name == domain.TierProfessional || tier.Name == domain.TierEnterprise
}

// GetActive resolves the source(s) a request should run against.
func (r *Resolver) GetActive(ctx context.Context, userID int64, tier domain.Tier) (Resolution, error) {
	descriptors, err := r.store.ListActive(ctx, userID)
	if err != nil {
		return Resolution{}, fmt.Errorf("datasource: list active sources: %w", err)
	}

	usable := make([]domain.DataSourceDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Status == domain.StatusActive && d.RowCount > 0 {
			usable = append(usable, d)
		}
	}

	if len(usable) == 0 {
		return Resolution{Active: false, Reason: ReasonEmptySource}, nil
	}

	if len(usable) >= 2 && allowsMultiSource(tier) {
		return r.composite(ctx, usable)
	}

	return r.single(ctx, usable[0])
}

// single builds a Resolution for exactly one source.
func (r *Resolver) single(ctx context.Context, d domain.DataSourceDescriptor) (Resolution, error) {
	handles, err := r.handlesFor(ctx, d)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{
		Active:    true,
		Kind:      d.Kind,
		Handles:   handles,
		TotalRows: d.RowCount,
	}, nil
}

// composite flattens multiple active sources into one virtual view. Kind is
// reported as the first source's kind when all sources share a kind, or
// "composite" when they are mixed (e.g. a file upload alongside a live
// Postgres connection).
func (r *Resolver) composite(ctx context.Context, sources []domain.DataSourceDescriptor) (Resolution, error) {
	var handles []domain.TableHandle
	total := 0
	kind := sources[0].Kind
	mixed := false

	for _, d := range sources {
		if d.Kind != kind {
			mixed = true
		}
		hs, err := r.handlesFor(ctx, d)
		if err != nil {
			return Resolution{}, err
		}
		handles = append(handles, hs...)
		total += d.RowCount
	}

	resolvedKind := kind
	if mixed {
		resolvedKind = domain.SourceKind("composite")
	}

	return Resolution{
		Active:    true,
		Kind:      resolvedKind,
		Handles:   handles,
		TotalRows: total,
	}, nil
}

func (r *Resolver) handlesFor(ctx context.Context, d domain.DataSourceDescriptor) ([]domain.TableHandle, error) {
	if d.Kind == domain.SourceFile {
		return []domain.TableHandle{r.introspector.ForFile(d)}, nil
	}

	if r.pools == nil {
		return nil, fmt.Errorf("datasource: live source %d (%s) requires a pool opener", d.ID, d.Kind)
	}
	q, err := r.pools.Open(ctx, d.Kind, d.ConnectionSecret)
	if err != nil {
		return nil, fmt.Errorf("datasource: open live source %d: %w", d.ID, err)
	}
	return r.introspector.ForLive(ctx, d, q)
}
