package pipelink

import (
	"io"
	"time"

	"github.com/crestline/pipelink/internal/linker"
	"github.com/crestline/pipelink/internal/source"
)

// Option is a function that configures a Pipelink instance.
type Option func(*settings) error

// settings holds the configurable behavior of a Pipelink instance.
type settings struct {
	dryRun  bool
	limit   int
	pacing  time.Duration
	verbose bool

	source  source.Source
	gateway Gateway
	output  io.Writer
}

func defaultSettings() *settings {
	return &settings{
		pacing: linker.DefaultPacing,
		output: io.Discard,
	}
}

// WithDryRun previews every decision without mutating the remote CRM.
func WithDryRun(enabled bool) Option {
	return func(s *settings) error {
		s.dryRun = enabled
		return nil
	}
}

// WithLimit caps the number of submissions fetched from the source.
// A non-positive limit means no cap.
func WithLimit(n int) Option {
	return func(s *settings) error {
		s.limit = n
		return nil
	}
}

// WithPacing sets the delay between submissions.
func WithPacing(d time.Duration) Option {
	return func(s *settings) error {
		s.pacing = d
		return nil
	}
}

// WithVerbose enables per-action detail in result output.
func WithVerbose(enabled bool) Option {
	return func(s *settings) error {
		s.verbose = enabled
		return nil
	}
}

// WithSource replaces the configured submission source.
func WithSource(src source.Source) Option {
	return func(s *settings) error {
		s.source = src
		return nil
	}
}

// WithGateway replaces the remote CRM gateway, for tests or alternative
// transports.
func WithGateway(gw Gateway) Option {
	return func(s *settings) error {
		s.gateway = gw
		return nil
	}
}

// WithOutput directs human-readable run output to w.
func WithOutput(w io.Writer) Option {
	return func(s *settings) error {
		s.output = w
		return nil
	}
}
