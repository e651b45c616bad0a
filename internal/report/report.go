// Package report renders run output: per-submission result lines, the
// aggregate run summary, and the CSV export of outcomes.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crestline/pipelink/internal/config"
	"github.com/crestline/pipelink/pkg/errors"
	"github.com/crestline/pipelink/pkg/types"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Summary aggregates a full run.
type Summary struct {
	RunID      string
	StartedAt  utc.Time
	FinishedAt utc.Time
	DryRun     bool

	Total              int
	CompaniesProcessed int

	Success     int
	Skipped     int
	NoDealID    int
	NoCompanies int
	Orphaned    int
	Failed      int

	ProductsCreated    int
	ProductsFound      int
	AttachmentsCreated int
	AttachmentsUpdated int
	AttachmentsSkipped int

	// TotalValue is the grand total of per-submission value added,
	// accumulated as decimal to keep cents exact across many submissions.
	TotalValue decimal.Decimal

	APICalls int64
}

// Duration is the elapsed wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Summarize folds outcomes into a run summary.
func Summarize(runID string, outcomes []types.Outcome, apiCalls int64, started, finished utc.Time, dryRun bool) Summary {
	s := Summary{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: finished,
		DryRun:     dryRun,
		Total:      len(outcomes),
		TotalValue: decimal.Zero,
		APICalls:   apiCalls,
	}

	for i := range outcomes {
		o := &outcomes[i]
		s.CompaniesProcessed += o.CompaniesProcessed
		switch o.Status {
		case types.StatusSuccess:
			s.Success++
		case types.StatusSkipped:
			s.Skipped++
		case types.StatusNoDealID:
			s.NoDealID++
		case types.StatusNoCompanies:
			s.NoCompanies++
		case types.StatusOrphaned:
			s.Orphaned++
		case types.StatusFailedError:
			s.Failed++
		}
		s.ProductsCreated += o.ProductsCreated()
		s.ProductsFound += o.ProductsFound()
		s.AttachmentsCreated += o.AttachmentsCreated()
		s.AttachmentsUpdated += o.AttachmentsUpdated()
		s.AttachmentsSkipped += o.AttachmentsSkipped()
		s.TotalValue = s.TotalValue.Add(decimal.NewFromFloat(o.TotalValueAdded))
	}

	return s
}

// Reporter writes human-readable run output.
type Reporter struct {
	w       io.Writer
	verbose bool
}

// NewReporter creates a reporter writing to w.
func NewReporter(w io.Writer, verbose bool) *Reporter {
	return &Reporter{w: w, verbose: verbose}
}

// ConfigSummary prints the configuration overview and validation findings.
func (r *Reporter) ConfigSummary(cfg *config.Config, issues []config.Issue) {
	fmt.Fprintln(r.w, cfg.Summary())
	fmt.Fprintln(r.w, "Validation:")
	if len(issues) == 0 {
		fmt.Fprintln(r.w, "  all settings valid")
	}
	for _, issue := range issues {
		fmt.Fprintf(r.w, "  [%s] %s\n", issue.Level, issue.Message)
	}
	fmt.Fprintln(r.w)
}

// Result prints one submission's outcome.
func (r *Reporter) Result(o *types.Outcome, index, total int, dryRun bool) {
	deal := ""
	if o.DealID != nil {
		deal = fmt.Sprintf(" (deal #%d)", *o.DealID)
	}
	fmt.Fprintf(r.w, "[%d/%d] submission %s%s\n", index, total, o.SubmissionID, deal)

	switch o.Status {
	case types.StatusSuccess:
		fmt.Fprintf(r.w, "  companies processed: %d\n", o.CompaniesProcessed)
		fmt.Fprintf(r.w, "  total value added: $%.2f\n", o.TotalValueAdded)
		fmt.Fprintf(r.w, "    products created: %d, found: %d\n", o.ProductsCreated(), o.ProductsFound())
		fmt.Fprintf(r.w, "    attachments created: %d, updated: %d\n", o.AttachmentsCreated(), o.AttachmentsUpdated())
		if r.verbose {
			for i := range o.Actions {
				r.action(&o.Actions[i])
			}
		}
		if dryRun {
			fmt.Fprintln(r.w, "  DRY RUN: would make these changes")
		} else {
			fmt.Fprintln(r.w, "  processed successfully")
		}
	case types.StatusSkipped:
		fmt.Fprintln(r.w, "  all products already attached with correct values")
	case types.StatusNoDealID:
		fmt.Fprintln(r.w, "  skipped: no deal id")
	case types.StatusNoCompanies:
		fmt.Fprintln(r.w, "  skipped: no companies to process")
	case types.StatusOrphaned:
		fmt.Fprintf(r.w, "  orphaned: deal not found\n")
	case types.StatusFailedError:
		fmt.Fprintf(r.w, "  failed: %s\n", o.ErrorMessage)
	}
	fmt.Fprintln(r.w)
}

func (r *Reporter) action(a *types.Action) {
	const indent = "      "
	switch a.Kind {
	case types.ActionAttachedNew:
		fmt.Fprintf(r.w, "%s- attached: %s (qty %s, price $%s)\n",
			indent, a.CompanyName, intOr(a.NewQuantity), floatOr(a.NewPrice))
	case types.ActionUpdatedQuantity:
		fmt.Fprintf(r.w, "%s- updated: %s (qty %s -> %s)\n",
			indent, a.CompanyName, intOr(a.OldQuantity), intOr(a.NewQuantity))
	case types.ActionUpdatedPrice:
		fmt.Fprintf(r.w, "%s- updated: %s (price $%s -> $%s)\n",
			indent, a.CompanyName, floatOr(a.OldPrice), floatOr(a.NewPrice))
	case types.ActionUpdatedBoth:
		fmt.Fprintf(r.w, "%s- updated: %s (qty %s -> %s, price $%s -> $%s)\n",
			indent, a.CompanyName, intOr(a.OldQuantity), intOr(a.NewQuantity),
			floatOr(a.OldPrice), floatOr(a.NewPrice))
	case types.ActionSkippedExists:
		fmt.Fprintf(r.w, "%s- skipped: %s (already correct)\n", indent, a.CompanyName)
	case types.ActionError:
		fmt.Fprintf(r.w, "%s- error: %s - %s\n", indent, a.CompanyName, a.ErrorMessage)
	}
}

// RunSummary prints the aggregate summary table.
func (r *Reporter) RunSummary(s Summary, reportPath string) {
	fmt.Fprintln(r.w)
	if s.DryRun {
		fmt.Fprintln(r.w, "Product Attachment Summary (DRY RUN MODE)")
	} else {
		fmt.Fprintln(r.w, "Product Attachment Summary")
	}
	fmt.Fprintf(r.w, "Run ID: %s\n\n", s.RunID)

	fmt.Fprintf(r.w, "  Total Submissions Processed  %d\n", s.Total)
	fmt.Fprintf(r.w, "  Total Companies Processed    %d\n", s.CompaniesProcessed)
	fmt.Fprintf(r.w, "  Successfully Processed       %d\n", s.Success)
	fmt.Fprintf(r.w, "  Skipped (Already Correct)    %d\n", s.Skipped)
	fmt.Fprintf(r.w, "  No Deal ID                   %d\n", s.NoDealID)
	fmt.Fprintf(r.w, "  No Companies                 %d\n", s.NoCompanies)
	fmt.Fprintf(r.w, "  Orphaned Deals               %d\n", s.Orphaned)
	fmt.Fprintf(r.w, "  Errors                       %d\n\n", s.Failed)

	fmt.Fprintf(r.w, "  Products Created             %d\n", s.ProductsCreated)
	fmt.Fprintf(r.w, "  Products Found               %d\n", s.ProductsFound)
	fmt.Fprintf(r.w, "  Attachments Created          %d\n", s.AttachmentsCreated)
	fmt.Fprintf(r.w, "  Attachments Updated          %d\n", s.AttachmentsUpdated)
	fmt.Fprintf(r.w, "  Attachments Skipped          %d\n\n", s.AttachmentsSkipped)

	fmt.Fprintf(r.w, "  Total Value Added            $%s\n", s.TotalValue.StringFixed(2))
	fmt.Fprintf(r.w, "  Total API Calls Made         %d\n", s.APICalls)
	fmt.Fprintf(r.w, "  Total Time Elapsed           %s\n", formatDuration(s.Duration()))
	if s.Total > 0 {
		avg := s.Duration() / time.Duration(s.Total)
		fmt.Fprintf(r.w, "  Average Time per Submission  %.2fs\n", avg.Seconds())
	}
	fmt.Fprintln(r.w)

	switch {
	case s.DryRun:
		fmt.Fprintln(r.w, "DRY RUN MODE - no actual changes were made")
		fmt.Fprintln(r.w, "  run without --dry-run to apply changes")
	case s.Failed == 0:
		fmt.Fprintln(r.w, "Processing completed successfully")
	default:
		fmt.Fprintln(r.w, "Processing completed with some errors")
	}
	if reportPath != "" {
		fmt.Fprintf(r.w, "  report saved to: %s\n", reportPath)
	}
}

// WriteCSV writes outcomes as CSV to w.
func WriteCSV(w io.Writer, outcomes []types.Outcome) error {
	cw := csv.NewWriter(w)
	header := []string{
		"submission_id", "deal_id", "status", "companies_processed",
		"products_created", "products_found",
		"attachments_created", "attachments_updated", "attachments_skipped",
		"total_value_added", "error_message",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range outcomes {
		o := &outcomes[i]
		dealID := ""
		if o.DealID != nil {
			dealID = strconv.Itoa(*o.DealID)
		}
		record := []string{
			o.SubmissionID,
			dealID,
			string(o.Status),
			strconv.Itoa(o.CompaniesProcessed),
			strconv.Itoa(o.ProductsCreated()),
			strconv.Itoa(o.ProductsFound()),
			strconv.Itoa(o.AttachmentsCreated()),
			strconv.Itoa(o.AttachmentsUpdated()),
			strconv.Itoa(o.AttachmentsSkipped()),
			fmt.Sprintf("%.2f", o.TotalValueAdded),
			o.ErrorMessage,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes outcomes as CSV to path.
func ExportCSV(path string, outcomes []types.Outcome) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapResource("create", "report file", path, err)
	}
	if err := WriteCSV(f, outcomes); err != nil {
		f.Close()
		return errors.WrapResource("write", "report file", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.WrapResource("close", "report file", path, err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

func intOr(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func floatOr(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
