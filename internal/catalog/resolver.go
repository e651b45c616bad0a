// Package catalog resolves a product name to a catalog entry, creating one
// when permitted. The remote store does not deduplicate by name, so the
// resolver memoizes resolutions for the life of a run; within one run a
// given name is searched at most once and created at most once.
package catalog

import (
	"context"
	"strings"

	"github.com/crestline/pipelink/pkg/errors"
	"github.com/crestline/pipelink/pkg/types"
)

// DryRunProductID is the synthetic id substituted for a product create in
// dry-run mode, chosen to be recognizable in reports.
const DryRunProductID = 999999

// API is the catalog surface of the remote CRM.
type API interface {
	SearchProduct(ctx context.Context, name string, exact bool) (*types.Product, error)
	CreateProduct(ctx context.Context, name string, code *string, active bool, visibleTo int) (*types.Product, error)
}

// Resolver finds or creates catalog products by exact name.
type Resolver struct {
	api        API
	autoCreate bool
	visibleTo  int
	activeFlag bool

	memo map[string]resolution
}

type resolution struct {
	product *types.Product
	kind    types.ActionKind
}

// New creates a Resolver. With autoCreate disabled, a missing product is an
// error for the caller to record.
func New(api API, autoCreate bool, visibleTo int, activeFlag bool) *Resolver {
	return &Resolver{
		api:        api,
		autoCreate: autoCreate,
		visibleTo:  visibleTo,
		activeFlag: activeFlag,
		memo:       make(map[string]resolution),
	}
}

// Resolve returns the catalog product for name and whether it was found or
// created. In dry-run mode a create is simulated with DryRunProductID and
// no mutating call is made; lookups still happen so dry-run reports match
// a real run.
func (r *Resolver) Resolve(ctx context.Context, name string, dryRun bool) (*types.Product, types.ActionKind, error) {
	key := memoKey(name)
	if prev, ok := r.memo[key]; ok {
		// A later company resolving the same name sees the product that
		// the earlier resolution produced.
		return prev.product, types.ActionFoundCatalog, nil
	}

	product, err := r.api.SearchProduct(ctx, name, true)
	if err != nil {
		return nil, "", err
	}
	if product != nil {
		r.memo[key] = resolution{product: product, kind: types.ActionFoundCatalog}
		return product, types.ActionFoundCatalog, nil
	}

	if !r.autoCreate {
		return nil, "", errors.NewResourceError("resolve", "product", name, errors.ErrNotFound)
	}

	if dryRun {
		placeholder := &types.Product{
			ID:     DryRunProductID,
			Name:   name,
			Active: true,
		}
		r.memo[key] = resolution{product: placeholder, kind: types.ActionCreatedCatalog}
		return placeholder, types.ActionCreatedCatalog, nil
	}

	created, err := r.api.CreateProduct(ctx, name, nil, r.activeFlag, r.visibleTo)
	if err != nil {
		return nil, "", err
	}
	r.memo[key] = resolution{product: created, kind: types.ActionCreatedCatalog}
	return created, types.ActionCreatedCatalog, nil
}

// memoKey normalizes a product name for the per-run memo table.
func memoKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
