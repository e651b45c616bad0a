package pipelink

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline/pipelink/internal/config"
	"github.com/crestline/pipelink/pkg/types"
)

// fakeGateway is an in-memory CRM: a deal store, a product catalog, and
// per-deal attachments.
type fakeGateway struct {
	deals       map[int]*types.Deal
	products    map[string]*types.Product
	attachments map[int][]types.Attachment
	nextID      int
	calls       int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		deals:       make(map[int]*types.Deal),
		products:    make(map[string]*types.Product),
		attachments: make(map[int][]types.Attachment),
	}
}

func (g *fakeGateway) VerifyConnection(context.Context) error {
	g.calls++
	return nil
}

func (g *fakeGateway) Calls() int64 { return g.calls }

func (g *fakeGateway) GetDeal(_ context.Context, dealID int) (*types.Deal, error) {
	g.calls++
	return g.deals[dealID], nil
}

func (g *fakeGateway) ListDealProducts(_ context.Context, dealID int) ([]types.Attachment, error) {
	g.calls++
	return g.attachments[dealID], nil
}

func (g *fakeGateway) SearchProduct(_ context.Context, name string, _ bool) (*types.Product, error) {
	g.calls++
	return g.products[name], nil
}

func (g *fakeGateway) CreateProduct(_ context.Context, name string, _ *string, active bool, _ int) (*types.Product, error) {
	g.calls++
	g.nextID++
	p := &types.Product{ID: g.nextID, Name: name, Active: active}
	g.products[name] = p
	return p, nil
}

func (g *fakeGateway) AttachProduct(_ context.Context, dealID, productID int, itemPrice float64, quantity int, comments *string) (*types.Attachment, error) {
	g.calls++
	g.nextID++
	a := types.Attachment{ID: g.nextID, ProductID: productID, DealID: dealID, ItemPrice: itemPrice, Quantity: quantity, Comments: comments}
	g.attachments[dealID] = append(g.attachments[dealID], a)
	return &a, nil
}

func (g *fakeGateway) UpdateAttachment(_ context.Context, dealID, attachmentID int, itemPrice *float64, quantity *int, _ *string) (*types.Attachment, error) {
	g.calls++
	list := g.attachments[dealID]
	for i := range list {
		if list[i].ID != attachmentID {
			continue
		}
		if itemPrice != nil {
			list[i].ItemPrice = *itemPrice
		}
		if quantity != nil {
			list[i].Quantity = *quantity
		}
		a := list[i]
		return &a, nil
	}
	return nil, nil
}

type memorySource struct {
	subs []types.Submission
}

func (m *memorySource) Count(context.Context) (int, error) { return len(m.subs), nil }

func (m *memorySource) List(_ context.Context, mode types.ProcessMode, limit int) ([]types.Submission, error) {
	out := m.subs
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("PIPEDRIVE_API_KEY", "test-key")
	t.Setenv("PIPEDRIVE_DOMAIN", "acme.pipedrive.com")
	cfg, err := config.Load("", config.ProfileStandard)
	require.NoError(t, err)
	return cfg
}

func intp(v int) *int { return &v }

func testSubmissions() []types.Submission {
	dealA, dealB := 1, 2
	return []types.Submission{
		{ID: "sub-1", DealID: &dealA, Additional: []types.Company{
			{Name: "Acme Inc", W2Count: intp(10)},
			{Name: "Beta LLC", W2Count: intp(3)},
		}},
		{ID: "sub-2", DealID: &dealB, Additional: []types.Company{
			{Name: "Acme Inc", W2Count: intp(10)},
		}},
	}
}

func TestRunEndToEnd(t *testing.T) {
	gw := newFakeGateway()
	gw.deals[1] = &types.Deal{ID: 1}
	gw.deals[2] = &types.Deal{ID: 2}

	var out bytes.Buffer
	p, err := New(testConfig(t),
		WithGateway(gw),
		WithSource(&memorySource{subs: testSubmissions()}),
		WithPacing(time.Millisecond),
		WithOutput(&out),
	)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, types.StatusSuccess, result.Outcomes[0].Status)
	assert.Equal(t, types.StatusSuccess, result.Outcomes[1].Status)
	assert.False(t, result.Failed())

	// Acme Inc is created once and reused for the second deal.
	assert.Len(t, gw.products, 2)
	assert.Equal(t, 2, result.Summary.ProductsCreated)
	assert.Equal(t, 1, result.Summary.ProductsFound)
	assert.Equal(t, 3, result.Summary.AttachmentsCreated)
	// 10*1 + 3*1 + 10*1 with the standard per-employee price of 1.0.
	assert.Equal(t, "23.00", result.Summary.TotalValue.StringFixed(2))
	assert.Contains(t, out.String(), "[1/2] submission sub-1")
}

func TestRunIsIdempotent(t *testing.T) {
	gw := newFakeGateway()
	gw.deals[1] = &types.Deal{ID: 1}
	gw.deals[2] = &types.Deal{ID: 2}

	newRun := func() *Pipelink {
		p, err := New(testConfig(t),
			WithGateway(gw),
			WithSource(&memorySource{subs: testSubmissions()}),
			WithPacing(0),
		)
		require.NoError(t, err)
		return p
	}

	first, err := newRun().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, first.Summary.AttachmentsCreated)

	// Catalog and attachments are already aligned: the second run is a
	// pure read.
	second, err := newRun().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Summary.AttachmentsCreated)
	assert.Equal(t, 0, second.Summary.AttachmentsUpdated)
	assert.Equal(t, 2, second.Summary.Skipped)
	assert.Equal(t, "0.00", second.Summary.TotalValue.StringFixed(2))
}

func TestRunDryRunMakesNoWrites(t *testing.T) {
	gw := newFakeGateway()
	gw.deals[1] = &types.Deal{ID: 1}
	gw.deals[2] = &types.Deal{ID: 2}

	p, err := New(testConfig(t),
		WithGateway(gw),
		WithSource(&memorySource{subs: testSubmissions()}),
		WithPacing(0),
		WithDryRun(true),
	)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, gw.products, "dry run must not create products")
	for _, list := range gw.attachments {
		assert.Empty(t, list, "dry run must not attach products")
	}
	// Decisions and reported values are identical to a real run.
	assert.Equal(t, "23.00", result.Summary.TotalValue.StringFixed(2))
	assert.Equal(t, 3, result.Summary.AttachmentsCreated)
}

func TestRunLimit(t *testing.T) {
	gw := newFakeGateway()
	gw.deals[1] = &types.Deal{ID: 1}
	gw.deals[2] = &types.Deal{ID: 2}

	p, err := New(testConfig(t),
		WithGateway(gw),
		WithSource(&memorySource{subs: testSubmissions()}),
		WithPacing(0),
		WithLimit(1),
	)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Outcomes, 1)
}

func TestVerify(t *testing.T) {
	gw := newFakeGateway()
	p, err := New(testConfig(t),
		WithGateway(gw),
		WithSource(&memorySource{subs: testSubmissions()}),
	)
	require.NoError(t, err)

	n, err := p.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
