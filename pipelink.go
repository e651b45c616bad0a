// Package pipelink reconciles source business records against a
// Pipedrive-shaped CRM: each company on a submission becomes exactly one
// correctly priced product line item on the submission's deal,
// idempotently across repeated runs.
package pipelink

import (
	"context"

	"github.com/agentstation/utc"

	"github.com/crestline/pipelink/internal/catalog"
	"github.com/crestline/pipelink/internal/config"
	"github.com/crestline/pipelink/internal/linker"
	"github.com/crestline/pipelink/internal/pipedrive"
	"github.com/crestline/pipelink/internal/policy"
	"github.com/crestline/pipelink/internal/reconcile"
	"github.com/crestline/pipelink/internal/report"
	"github.com/crestline/pipelink/internal/source"
	"github.com/crestline/pipelink/pkg/errors"
	"github.com/crestline/pipelink/pkg/logging"
	"github.com/crestline/pipelink/pkg/types"
)

// Gateway is the remote CRM surface the run consumes. *pipedrive.Client
// satisfies it; tests may substitute a fake.
type Gateway interface {
	catalog.API
	linker.DealAPI
	reconcile.API
	VerifyConnection(ctx context.Context) error
	Calls() int64
}

// Pipelink wires configuration, the submission source, and the remote
// gateway into runnable reconciliation.
type Pipelink struct {
	cfg      *config.Config
	settings *settings
}

// New creates a Pipelink instance for the given configuration.
func New(cfg *config.Config, opts ...Option) (*Pipelink, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("pipelink", "configuration is required", nil)
	}

	s := defaultSettings()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.source == nil {
		s.source = source.NewFileSource(cfg.SubmissionsFile)
	}
	if s.gateway == nil {
		s.gateway = pipedrive.New(cfg.BaseURL, cfg.APIKey)
	}

	return &Pipelink{cfg: cfg, settings: s}, nil
}

// Verify checks remote connectivity and returns the number of submissions
// available in the source.
func (p *Pipelink) Verify(ctx context.Context) (int, error) {
	if err := p.settings.gateway.VerifyConnection(ctx); err != nil {
		return 0, err
	}
	return p.settings.source.Count(ctx)
}

// RunResult is the outcome of a full reconciliation run.
type RunResult struct {
	Outcomes []types.Outcome
	Summary  report.Summary
}

// Failed reports whether any submission ended in failed_error.
func (r *RunResult) Failed() bool {
	return r.Summary.Failed > 0
}

// Run fetches submissions and reconciles them in order. A partial result
// is returned alongside the error when the run is interrupted or an
// orphaned deal propagates.
func (p *Pipelink) Run(ctx context.Context) (*RunResult, error) {
	s := p.settings
	cfg := p.cfg

	runID := report.NewRunID()
	log := logging.With().Str("run_id", runID).Logger()
	started := utc.Now()

	submissions, err := s.source.List(ctx, cfg.ProcessMode, s.limit)
	if err != nil {
		return nil, err
	}
	log.Info().Int("submissions", len(submissions)).Bool("dry_run", s.dryRun).Msg("run started")

	rules := policy.Rules{
		SkipMissingW2:    cfg.SkipMissingW2,
		SkipZeroW2:       cfg.SkipZeroW2,
		MinW2Count:       cfg.MinW2Count,
		MaxW2Count:       cfg.MaxW2Count,
		CalcMode:         cfg.CalcMode,
		QuantityMode:     cfg.QuantityMode,
		PricePerEmployee: cfg.PricePerEmployee,
		FixedPrice:       cfg.FixedPrice,
		CustomQuantity:   cfg.CustomQuantity,
		NameFormat:       cfg.NameFormat,
		NamePrefix:       cfg.NamePrefix,
	}
	reporter := report.NewReporter(s.output, s.verbose)
	resolver := catalog.New(s.gateway, cfg.AutoCreateProducts, cfg.ProductVisibleTo, cfg.ProductActiveFlag)
	reconciler := reconcile.New(s.gateway, cfg.DuplicateAction, cfg.ChangeAction)
	run := linker.New(s.gateway, resolver, reconciler, rules, cfg.ProcessMode, cfg.SkipOrphanedDeals,
		linker.WithDryRun(s.dryRun),
		linker.WithPacing(s.pacing),
		linker.WithObserver(func(o *types.Outcome, index, total int) {
			reporter.Result(o, index, total, s.dryRun)
		}),
	)

	outcomes, runErr := run.Run(ctx, submissions)

	finished := utc.Now()
	summary := report.Summarize(runID, outcomes, s.gateway.Calls(), started, finished, s.dryRun)
	log.Info().
		Int("success", summary.Success).
		Int("failed", summary.Failed).
		Str("value_added", summary.TotalValue.StringFixed(2)).
		Msg("run finished")

	return &RunResult{Outcomes: outcomes, Summary: summary}, runErr
}
