package app

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crestline/pipelink"
	"github.com/crestline/pipelink/internal/config"
	"github.com/crestline/pipelink/internal/report"
	"github.com/crestline/pipelink/pkg/logging"
)

func (a *App) attachProductsCommand() *cobra.Command {
	var (
		dryRun     bool
		limit      int
		reportPath string
		noConfirm  bool
	)

	cmd := &cobra.Command{
		Use:   "attach-products",
		Short: "Attach company products to their submissions' deals",
		Long: `Reconcile submissions against the remote CRM: find or create a catalog
product for each company and create or update its line item on the
submission's deal.

Examples:
  # Preview with the first 5 submissions
  pipelink attach-products --dry-run --limit 5

  # Full run with a CSV report
  pipelink attach-products --report products_report.csv

  # Skip the confirmation prompt
  pipelink attach-products --no-confirm`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runAttachProducts(cmd, dryRun, limit, reportPath, noConfirm)
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "preview changes without updating")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "limit number of submissions to process")
	cmd.Flags().StringVarP(&reportPath, "report", "r", "", "path to save CSV report")
	cmd.Flags().BoolVar(&noConfirm, "no-confirm", false, "skip confirmation prompt")
	return cmd
}

func (a *App) runAttachProducts(cmd *cobra.Command, dryRun bool, limit int, reportPath string, noConfirm bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := config.Load(a.envFile, a.profile)
	if err != nil {
		return err
	}

	issues := cfg.Validate()
	reporter := report.NewReporter(out, a.verbose)
	reporter.ConfigSummary(cfg, issues)
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration errors found, aborting")
	}

	p, err := pipelink.New(cfg,
		pipelink.WithDryRun(dryRun),
		pipelink.WithLimit(limit),
		pipelink.WithVerbose(a.verbose),
		pipelink.WithOutput(out),
	)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Checking connectivity...")
	count, err := p.Verify(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected (submissions available: %d)\n\n", count)
	if count == 0 {
		fmt.Fprintln(out, "No submissions to process.")
		return nil
	}

	if cfg.RequireConfirmation && !noConfirm {
		if dryRun {
			fmt.Fprintln(out, "DRY RUN MODE - no changes will be made")
		} else {
			fmt.Fprintln(out, "This will modify remote CRM data.")
		}
		if !confirm(out) {
			fmt.Fprintln(out, "Cancelled by user")
			return nil
		}
	}

	fmt.Fprintln(out, "Processing submissions...")
	result, runErr := p.Run(ctx)
	if result != nil {
		reporter.RunSummary(result.Summary, reportPath)
		if reportPath != "" {
			if err := report.ExportCSV(reportPath, result.Outcomes); err != nil {
				logging.Err(err).Str("path", reportPath).Msg("failed to export report")
			}
		}
	}
	if runErr != nil {
		return runErr
	}
	if result.Failed() {
		return fmt.Errorf("%d submission(s) failed", result.Summary.Failed)
	}
	return nil
}

func confirm(out io.Writer) bool {
	fmt.Fprint(out, "Continue? [y/N]: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
