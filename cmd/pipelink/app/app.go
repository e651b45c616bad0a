// Package app wires configuration, logging, and the pipelink library into
// the CLI: flag parsing, the confirmation prompt, and exit codes live here.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// App holds CLI-wide state: version information and the global flags
// shared by every command.
type App struct {
	version string
	commit  string
	date    string

	envFile string
	profile string
	verbose bool
}

// New creates an App with the given version information.
func New(version, commit, date string) *App {
	return &App{version: version, commit: commit, date: date}
}

// Execute runs the CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "pipelink",
		Short:   "Attach company products to CRM deals",
		Version: a.version,
		Long: `Pipelink reconciles source business records against a Pipedrive
product catalog and per-deal line items: each company on a submission
becomes exactly one correctly priced product attachment on the
submission's deal, idempotently across repeated runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "path to .env file")
	root.PersistentFlags().StringVarP(&a.profile, "profile", "p", "", "configuration profile (standard, conservative, aggressive)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(a.attachProductsCommand())
	return root
}

// ContextWithSignals creates a context cancelled on SIGINT or SIGTERM.
func ContextWithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// ExitOnError prints an error to stderr and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
