package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline/pipelink/pkg/errors"
	"github.com/crestline/pipelink/pkg/types"
)

// fakeAPI is an in-memory catalog standing in for the remote CRM.
type fakeAPI struct {
	products map[string]*types.Product
	nextID   int

	searches int
	creates  int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{products: make(map[string]*types.Product), nextID: 100}
}

func (f *fakeAPI) SearchProduct(_ context.Context, name string, _ bool) (*types.Product, error) {
	f.searches++
	if p, ok := f.products[name]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeAPI) CreateProduct(_ context.Context, name string, _ *string, active bool, _ int) (*types.Product, error) {
	f.creates++
	f.nextID++
	p := &types.Product{ID: f.nextID, Name: name, Active: active}
	f.products[name] = p
	copied := *p
	return &copied, nil
}

func TestResolveFindsExisting(t *testing.T) {
	api := newFakeAPI()
	api.products["Acme Inc"] = &types.Product{ID: 55, Name: "Acme Inc", Active: true}

	r := New(api, true, 3, true)
	product, kind, err := r.Resolve(context.Background(), "Acme Inc", false)
	require.NoError(t, err)
	assert.Equal(t, types.ActionFoundCatalog, kind)
	assert.Equal(t, 55, product.ID)
	assert.Zero(t, api.creates)
}

func TestResolveCreatesWhenAbsent(t *testing.T) {
	api := newFakeAPI()

	r := New(api, true, 3, true)
	product, kind, err := r.Resolve(context.Background(), "Beta LLC", false)
	require.NoError(t, err)
	assert.Equal(t, types.ActionCreatedCatalog, kind)
	assert.Equal(t, "Beta LLC", product.Name)
	assert.Equal(t, 1, api.creates)
}

func TestResolveMissingWithoutAutoCreate(t *testing.T) {
	api := newFakeAPI()

	r := New(api, false, 3, true)
	_, _, err := r.Resolve(context.Background(), "Gamma GmbH", false)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Zero(t, api.creates)
}

func TestResolveMemoizesWithinRun(t *testing.T) {
	api := newFakeAPI()

	r := New(api, true, 3, true)
	first, kind, err := r.Resolve(context.Background(), "Acme Inc", false)
	require.NoError(t, err)
	assert.Equal(t, types.ActionCreatedCatalog, kind)

	// Same name again: no second search, no second create, and the later
	// resolution reports the product as found.
	second, kind, err := r.Resolve(context.Background(), "Acme Inc", false)
	require.NoError(t, err)
	assert.Equal(t, types.ActionFoundCatalog, kind)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, api.searches)
	assert.Equal(t, 1, api.creates)
}

func TestResolveMemoNormalizesNames(t *testing.T) {
	api := newFakeAPI()

	r := New(api, true, 3, true)
	_, _, err := r.Resolve(context.Background(), "Acme Inc", false)
	require.NoError(t, err)

	_, kind, err := r.Resolve(context.Background(), "acme   inc", false)
	require.NoError(t, err)
	assert.Equal(t, types.ActionFoundCatalog, kind)
	assert.Equal(t, 1, api.searches)
	assert.Equal(t, 1, api.creates)
}

func TestResolveDryRunPlaceholder(t *testing.T) {
	api := newFakeAPI()

	r := New(api, true, 3, true)
	product, kind, err := r.Resolve(context.Background(), "Acme Inc", true)
	require.NoError(t, err)
	assert.Equal(t, types.ActionCreatedCatalog, kind)
	assert.Equal(t, DryRunProductID, product.ID)

	// Lookup happened, create did not.
	assert.Equal(t, 1, api.searches)
	assert.Zero(t, api.creates)
}

func TestResolveDryRunStillFindsExisting(t *testing.T) {
	api := newFakeAPI()
	api.products["Acme Inc"] = &types.Product{ID: 55, Name: "Acme Inc", Active: true}

	r := New(api, true, 3, true)
	product, kind, err := r.Resolve(context.Background(), "Acme Inc", true)
	require.NoError(t, err)
	assert.Equal(t, types.ActionFoundCatalog, kind)
	assert.Equal(t, 55, product.ID)
}
