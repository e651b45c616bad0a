// Package linker orchestrates reconciliation of one submission at a time:
// deal lookup, company selection, and the per-company policy, catalog, and
// attachment steps. It owns submission-level statuses; per-company outcomes
// belong to the reconciler.
package linker

import (
	"context"
	"fmt"
	"time"

	"github.com/crestline/pipelink/internal/policy"
	"github.com/crestline/pipelink/pkg/errors"
	"github.com/crestline/pipelink/pkg/logging"
	"github.com/crestline/pipelink/pkg/types"
)

// DefaultPacing is the delay between submissions within a run.
const DefaultPacing = 500 * time.Millisecond

// DealAPI is the deal-facing surface the orchestrator consumes.
type DealAPI interface {
	GetDeal(ctx context.Context, dealID int) (*types.Deal, error)
	ListDealProducts(ctx context.Context, dealID int) ([]types.Attachment, error)
}

// ProductResolver finds or creates the catalog product for a name.
type ProductResolver interface {
	Resolve(ctx context.Context, name string, dryRun bool) (*types.Product, types.ActionKind, error)
}

// AttachmentReconciler aligns one product's attachment on a deal.
type AttachmentReconciler interface {
	Reconcile(ctx context.Context, dealID int, company types.Company, product *types.Product, quantity int, price float64, current []types.Attachment, dryRun bool) types.Action
}

// Linker runs the per-submission reconciliation pipeline.
type Linker struct {
	deals      DealAPI
	resolver   ProductResolver
	reconciler AttachmentReconciler
	rules      policy.Rules

	mode         types.ProcessMode
	skipOrphaned bool
	dryRun       bool
	pacing       time.Duration
	sleep        func(time.Duration)
	observe      func(o *types.Outcome, index, total int)
}

// Option configures a Linker.
type Option func(*Linker)

// WithDryRun previews every decision without mutating the remote CRM.
func WithDryRun(on bool) Option {
	return func(l *Linker) { l.dryRun = on }
}

// WithPacing sets the delay between submissions.
func WithPacing(d time.Duration) Option {
	return func(l *Linker) { l.pacing = d }
}

// WithSleep replaces the pacing sleep, for tests.
func WithSleep(fn func(time.Duration)) Option {
	return func(l *Linker) { l.sleep = fn }
}

// WithObserver registers a callback invoked after each submission
// completes, with its 1-based position and the total count.
func WithObserver(fn func(o *types.Outcome, index, total int)) Option {
	return func(l *Linker) { l.observe = fn }
}

// New creates a Linker.
func New(deals DealAPI, resolver ProductResolver, reconciler AttachmentReconciler, rules policy.Rules, mode types.ProcessMode, skipOrphaned bool, opts ...Option) *Linker {
	l := &Linker{
		deals:        deals,
		resolver:     resolver,
		reconciler:   reconciler,
		rules:        rules,
		mode:         mode,
		skipOrphaned: skipOrphaned,
		pacing:       DefaultPacing,
		sleep:        time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run reconciles submissions in order with pacing between them.
// Cancellation is honored between submissions only: a submission that has
// started always runs to completion so no deal is left half-reconciled.
func (l *Linker) Run(ctx context.Context, submissions []types.Submission) ([]types.Outcome, error) {
	outcomes := make([]types.Outcome, 0, len(submissions))
	for i := range submissions {
		if i > 0 && l.pacing > 0 {
			l.sleep(l.pacing)
		}
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcome, err := l.Link(ctx, &submissions[i])
		if err != nil {
			// Orphan propagation aborts the run.
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
		if l.observe != nil {
			l.observe(&outcomes[len(outcomes)-1], i+1, len(submissions))
		}
	}
	return outcomes, nil
}

// Link reconciles a single submission. The only error return is an
// orphaned deal when the run is configured to propagate; every other
// failure is folded into the outcome.
func (l *Linker) Link(ctx context.Context, sub *types.Submission) (types.Outcome, error) {
	log := logging.With().Str("submission_id", sub.ID).Logger()

	if sub.DealID == nil {
		log.Debug().Msg("submission has no deal id")
		return terminal(sub, nil, types.StatusNoDealID, "no deal id in submission"), nil
	}
	dealID := *sub.DealID

	companies := sub.Companies(l.mode)
	if len(companies) == 0 {
		log.Debug().Msg("no companies to process")
		return terminal(sub, &dealID, types.StatusNoCompanies, "no companies to process"), nil
	}

	// One existence check per submission.
	deal, err := l.deals.GetDeal(ctx, dealID)
	if err != nil {
		return terminal(sub, &dealID, types.StatusFailedError, fmt.Sprintf("failed to verify deal: %v", err)), nil
	}
	if deal == nil {
		if l.skipOrphaned {
			log.Warn().Int("deal_id", dealID).Msg("deal not found, skipping submission")
			return terminal(sub, &dealID, types.StatusOrphaned,
				fmt.Sprintf("deal %d not found in remote CRM", dealID)), nil
		}
		return types.Outcome{}, &errors.OrphanedDealError{DealID: dealID, SubmissionID: sub.ID}
	}

	// One attachment-list fetch, reused across every company below.
	current, err := l.deals.ListDealProducts(ctx, dealID)
	if err != nil {
		return terminal(sub, &dealID, types.StatusFailedError, fmt.Sprintf("failed to fetch deal products: %v", err)), nil
	}

	actions := make([]types.Action, 0, len(companies))
	totalValue := 0.0
	for _, company := range companies {
		action := l.processCompany(ctx, dealID, company, current)
		totalValue += action.ValueAdded()
		actions = append(actions, action)
	}

	outcome := types.Outcome{
		SubmissionID:       sub.ID,
		DealID:             &dealID,
		Status:             overallStatus(actions),
		CompaniesProcessed: len(companies),
		Actions:            actions,
		TotalValueAdded:    totalValue,
	}
	log.Info().
		Str("status", string(outcome.Status)).
		Int("companies", outcome.CompaniesProcessed).
		Float64("value_added", outcome.TotalValueAdded).
		Msg("submission reconciled")
	return outcome, nil
}

// processCompany runs one company through policy, catalog, and
// reconciliation. A failure here never halts the sibling companies.
func (l *Linker) processCompany(ctx context.Context, dealID int, company types.Company, current []types.Attachment) types.Action {
	if err := l.rules.Validate(company); err != nil {
		return types.ErrorAction(company, err.Error())
	}

	name := l.rules.FormatName(company.Name)

	product, catalogKind, err := l.resolver.Resolve(ctx, name, l.dryRun)
	if err != nil {
		return types.ErrorAction(company, fmt.Sprintf("failed to find or create product: %v", err))
	}

	quantity, price := l.rules.Compute(company.W2Count)

	action := l.reconciler.Reconcile(ctx, dealID, company, product, quantity, price, current, l.dryRun)
	if action.Kind != types.ActionError {
		action.Catalog = catalogKind
	}
	return action
}

// overallStatus folds per-company actions into the submission status.
func overallStatus(actions []types.Action) types.Status {
	hasSuccess := false
	hasError := false
	hasSkip := false
	for i := range actions {
		switch {
		case actions[i].Kind.IsWrite():
			hasSuccess = true
		case actions[i].Kind == types.ActionError:
			hasError = true
		case actions[i].Kind == types.ActionSkippedExists:
			hasSkip = true
		}
	}

	switch {
	case hasError && !hasSuccess:
		return types.StatusFailedError
	case hasSuccess:
		return types.StatusSuccess
	case hasSkip:
		return types.StatusSkipped
	default:
		return types.StatusFailedError
	}
}

func terminal(sub *types.Submission, dealID *int, status types.Status, msg string) types.Outcome {
	return types.Outcome{
		SubmissionID: sub.ID,
		DealID:       dealID,
		Status:       status,
		ErrorMessage: msg,
		Actions:      []types.Action{},
	}
}
