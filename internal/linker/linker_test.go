package linker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline/pipelink/internal/policy"
	"github.com/crestline/pipelink/pkg/errors"
	"github.com/crestline/pipelink/pkg/types"
)

type fakeDeals struct {
	deals       map[int]*types.Deal
	attachments map[int][]types.Attachment
	getCalls    int
	listCalls   int
	failList    error
}

func (f *fakeDeals) GetDeal(_ context.Context, dealID int) (*types.Deal, error) {
	f.getCalls++
	return f.deals[dealID], nil
}

func (f *fakeDeals) ListDealProducts(_ context.Context, dealID int) ([]types.Attachment, error) {
	f.listCalls++
	if f.failList != nil {
		return nil, f.failList
	}
	return f.attachments[dealID], nil
}

type fakeResolver struct {
	nextID int
	kind   types.ActionKind
	err    error
	names  []string
}

func (f *fakeResolver) Resolve(_ context.Context, name string, _ bool) (*types.Product, types.ActionKind, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	f.names = append(f.names, name)
	f.nextID++
	return &types.Product{ID: f.nextID, Name: name, Active: true}, f.kind, nil
}

type reconcileCall struct {
	dealID   int
	product  int
	quantity int
	price    float64
}

type fakeReconciler struct {
	calls []reconcileCall
	kind  types.ActionKind
}

func (f *fakeReconciler) Reconcile(_ context.Context, dealID int, company types.Company, product *types.Product, quantity int, price float64, _ []types.Attachment, _ bool) types.Action {
	f.calls = append(f.calls, reconcileCall{dealID, product.ID, quantity, price})
	return types.Action{
		CompanyName: company.Name,
		W2Count:     company.W2Count,
		Kind:        f.kind,
		ProductID:   &product.ID,
		NewQuantity: &quantity,
		NewPrice:    &price,
	}
}

func stdRules() policy.Rules {
	return policy.Rules{
		SkipMissingW2:    true,
		SkipZeroW2:       true,
		MaxW2Count:       10000,
		CalcMode:         types.CalcW2CountTimesPrice,
		QuantityMode:     types.QuantityW2Count,
		PricePerEmployee: 2.0,
		NameFormat:       types.NameFormatCompany,
	}
}

func intp(v int) *int { return &v }

func submission(id string, dealID int, companies ...types.Company) types.Submission {
	return types.Submission{ID: id, DealID: &dealID, Additional: companies}
}

func TestLinkNoDealID(t *testing.T) {
	deals := &fakeDeals{}
	l := New(deals, &fakeResolver{}, &fakeReconciler{}, stdRules(), types.ProcessAdditionalOnly, true)

	sub := types.Submission{ID: "sub-1", Additional: []types.Company{{Name: "Acme", W2Count: intp(5)}}}
	outcome, err := l.Link(context.Background(), &sub)
	require.NoError(t, err)

	assert.Equal(t, types.StatusNoDealID, outcome.Status)
	assert.Zero(t, deals.getCalls, "no remote call for a submission without a deal id")
}

func TestLinkNoCompanies(t *testing.T) {
	deals := &fakeDeals{}
	l := New(deals, &fakeResolver{}, &fakeReconciler{}, stdRules(), types.ProcessAdditionalOnly, true)

	sub := submission("sub-1", 42)
	outcome, err := l.Link(context.Background(), &sub)
	require.NoError(t, err)

	assert.Equal(t, types.StatusNoCompanies, outcome.Status)
	assert.Zero(t, deals.getCalls)
}

func TestLinkOrphanedDeal(t *testing.T) {
	sub := submission("sub-1", 42, types.Company{Name: "Acme", W2Count: intp(5)})

	t.Run("skip mode yields orphaned outcome", func(t *testing.T) {
		deals := &fakeDeals{}
		l := New(deals, &fakeResolver{}, &fakeReconciler{}, stdRules(), types.ProcessAdditionalOnly, true)
		outcome, err := l.Link(context.Background(), &sub)
		require.NoError(t, err)
		assert.Equal(t, types.StatusOrphaned, outcome.Status)
		assert.Contains(t, outcome.ErrorMessage, "deal 42")
		assert.Zero(t, deals.listCalls, "no attachment fetch for an orphaned deal")
	})

	t.Run("propagate mode raises", func(t *testing.T) {
		deals := &fakeDeals{}
		l := New(deals, &fakeResolver{}, &fakeReconciler{}, stdRules(), types.ProcessAdditionalOnly, false)
		_, err := l.Link(context.Background(), &sub)
		require.Error(t, err)
		assert.True(t, errors.IsOrphanedDeal(err))
	})
}

func TestLinkHappyPath(t *testing.T) {
	deals := &fakeDeals{deals: map[int]*types.Deal{42: {ID: 42, Title: "Acme deal"}}}
	resolver := &fakeResolver{kind: types.ActionCreatedCatalog}
	reconciler := &fakeReconciler{kind: types.ActionAttachedNew}
	l := New(deals, resolver, reconciler, stdRules(), types.ProcessAdditionalOnly, true)

	sub := submission("sub-1", 42,
		types.Company{Name: "Acme Inc", W2Count: intp(10)},
		types.Company{Name: "Beta LLC", W2Count: intp(3)},
	)
	outcome, err := l.Link(context.Background(), &sub)
	require.NoError(t, err)

	assert.Equal(t, types.StatusSuccess, outcome.Status)
	assert.Equal(t, 2, outcome.CompaniesProcessed)
	assert.Equal(t, 1, deals.getCalls, "one deal fetch per submission")
	assert.Equal(t, 1, deals.listCalls, "attachment list fetched once and reused")
	require.Len(t, reconciler.calls, 2)
	assert.Equal(t, 10, reconciler.calls[0].quantity)
	assert.Equal(t, 2.0, reconciler.calls[0].price)
	// 10*2 + 3*2
	assert.Equal(t, 26.0, outcome.TotalValueAdded)
	require.Len(t, outcome.Actions, 2)
	assert.Equal(t, types.ActionCreatedCatalog, outcome.Actions[0].Catalog)
	assert.Equal(t, 2, outcome.ProductsCreated())
}

func TestLinkValidationFailureDoesNotHaltSiblings(t *testing.T) {
	deals := &fakeDeals{deals: map[int]*types.Deal{42: {ID: 42}}}
	reconciler := &fakeReconciler{kind: types.ActionAttachedNew}
	l := New(deals, &fakeResolver{kind: types.ActionFoundCatalog}, reconciler, stdRules(), types.ProcessAdditionalOnly, true)

	sub := submission("sub-1", 42,
		types.Company{Name: "No W2 Co"},
		types.Company{Name: "Acme Inc", W2Count: intp(10)},
	)
	outcome, err := l.Link(context.Background(), &sub)
	require.NoError(t, err)

	require.Len(t, outcome.Actions, 2)
	assert.Equal(t, types.ActionError, outcome.Actions[0].Kind)
	assert.Equal(t, types.ActionAttachedNew, outcome.Actions[1].Kind)
	assert.Equal(t, types.StatusSuccess, outcome.Status, "any write wins over sibling errors")
	assert.Equal(t, 1, outcome.Errors())
}

func TestLinkResolverFailureBecomesErrorAction(t *testing.T) {
	deals := &fakeDeals{deals: map[int]*types.Deal{42: {ID: 42}}}
	resolver := &fakeResolver{err: errors.ErrNotFound}
	l := New(deals, resolver, &fakeReconciler{}, stdRules(), types.ProcessAdditionalOnly, true)

	sub := submission("sub-1", 42, types.Company{Name: "Acme Inc", W2Count: intp(10)})
	outcome, err := l.Link(context.Background(), &sub)
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailedError, outcome.Status)
	require.Len(t, outcome.Actions, 1)
	assert.Contains(t, outcome.Actions[0].ErrorMessage, "failed to find or create product")
}

func TestLinkListFailure(t *testing.T) {
	deals := &fakeDeals{
		deals:    map[int]*types.Deal{42: {ID: 42}},
		failList: errors.NewAPIError("GET /deals/42/products", 500, "boom"),
	}
	l := New(deals, &fakeResolver{}, &fakeReconciler{}, stdRules(), types.ProcessAdditionalOnly, true)

	sub := submission("sub-1", 42, types.Company{Name: "Acme Inc", W2Count: intp(10)})
	outcome, err := l.Link(context.Background(), &sub)
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailedError, outcome.Status)
	assert.Contains(t, outcome.ErrorMessage, "failed to fetch deal products")
}

func TestOverallStatus(t *testing.T) {
	action := func(kind types.ActionKind) types.Action { return types.Action{Kind: kind} }

	tests := []struct {
		name    string
		actions []types.Action
		want    types.Status
	}{
		{"all writes", []types.Action{action(types.ActionAttachedNew)}, types.StatusSuccess},
		{"write plus error", []types.Action{action(types.ActionUpdatedBoth), action(types.ActionError)}, types.StatusSuccess},
		{"errors only", []types.Action{action(types.ActionError)}, types.StatusFailedError},
		{"skips only", []types.Action{action(types.ActionSkippedExists)}, types.StatusSkipped},
		{"skip plus error", []types.Action{action(types.ActionSkippedExists), action(types.ActionError)}, types.StatusFailedError},
		{"no actions", nil, types.StatusFailedError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overallStatus(tt.actions))
		})
	}
}

func TestRunPacingAndCancellation(t *testing.T) {
	deals := &fakeDeals{deals: map[int]*types.Deal{1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3}}}
	subs := []types.Submission{
		submission("sub-1", 1, types.Company{Name: "A", W2Count: intp(1)}),
		submission("sub-2", 2, types.Company{Name: "B", W2Count: intp(1)}),
		submission("sub-3", 3, types.Company{Name: "C", W2Count: intp(1)}),
	}

	t.Run("pacing between submissions", func(t *testing.T) {
		var slept []time.Duration
		l := New(deals, &fakeResolver{kind: types.ActionFoundCatalog}, &fakeReconciler{kind: types.ActionAttachedNew},
			stdRules(), types.ProcessAdditionalOnly, true,
			WithPacing(500*time.Millisecond),
			WithSleep(func(d time.Duration) { slept = append(slept, d) }),
		)
		outcomes, err := l.Run(context.Background(), subs)
		require.NoError(t, err)
		assert.Len(t, outcomes, 3)
		assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, slept,
			"no pause before the first submission")
	})

	t.Run("cancellation between submissions", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		l := New(deals, &fakeResolver{kind: types.ActionFoundCatalog}, &fakeReconciler{kind: types.ActionAttachedNew},
			stdRules(), types.ProcessAdditionalOnly, true,
			WithSleep(func(time.Duration) { cancel() }),
		)
		outcomes, err := l.Run(ctx, subs)
		require.ErrorIs(t, err, context.Canceled)
		assert.Len(t, outcomes, 1, "the in-flight submission finished; later ones never started")
	})
}
