// Package config loads and validates run configuration from the
// environment. A profile supplies defaults; individual environment
// variables override them. Unknown enum values and missing credentials
// fail the load, before any remote call is made.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/crestline/pipelink/pkg/errors"
	"github.com/crestline/pipelink/pkg/types"
)

// Issue levels.
const (
	LevelError   = "ERROR"
	LevelWarning = "WARNING"
)

// Issue is one validation finding. Errors block a run; warnings are
// printed and the run proceeds.
type Issue struct {
	Level   string
	Message string
}

// Config is the full run configuration.
type Config struct {
	// CRM connection
	APIKey  string `validate:"required"`
	Domain  string `validate:"required"`
	BaseURL string

	// Submission source
	SubmissionsFile string

	// Product naming and pricing
	ProcessMode      types.ProcessMode
	NameFormat       types.NameFormat
	NamePrefix       string
	CalcMode         types.CalcMode
	PricePerEmployee float64
	FixedPrice       float64
	QuantityMode     types.QuantityMode
	CustomQuantity   int `validate:"gte=1"`

	// Duplicate handling
	DuplicateAction types.DuplicateAction
	ChangeAction    types.ChangeAction

	// Catalog management
	AutoCreateProducts bool
	ProductVisibleTo   int `validate:"oneof=1 3 5 7"`
	ProductActiveFlag  bool

	// Safety
	SkipOrphanedDeals   bool
	SkipMissingW2       bool
	SkipZeroW2          bool
	MinW2Count          int `validate:"gte=0"`
	MaxW2Count          int `validate:"gte=0"`
	RequireConfirmation bool

	Profile string
}

// Profile names.
const (
	ProfileStandard     = "standard"
	ProfileConservative = "conservative"
	ProfileAggressive   = "aggressive"
)

// Load reads configuration from envFile (if present) and the process
// environment. profile selects the default set; an empty profile falls
// back to the CONFIG_PROFILE variable, then to standard.
func Load(envFile, profile string) (*Config, error) {
	if envFile != "" {
		// A missing .env file is fine; the environment may be complete.
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.NewConfigError("config", fmt.Sprintf("failed to load %s: %v", envFile, err), err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	if profile == "" {
		profile = v.GetString("CONFIG_PROFILE")
	}
	if profile == "" {
		profile = ProfileStandard
	}
	if err := applyProfileDefaults(v, profile); err != nil {
		return nil, err
	}

	cfg := &Config{
		APIKey:              v.GetString("PIPEDRIVE_API_KEY"),
		Domain:              cleanDomain(v.GetString("PIPEDRIVE_DOMAIN")),
		SubmissionsFile:     v.GetString("SUBMISSIONS_FILE"),
		NamePrefix:          v.GetString("PRODUCT_NAME_PREFIX"),
		PricePerEmployee:    v.GetFloat64("ITEM_PRICE_PER_EMPLOYEE"),
		FixedPrice:          v.GetFloat64("FIXED_PRODUCT_PRICE"),
		CustomQuantity:      v.GetInt("CUSTOM_QUANTITY"),
		AutoCreateProducts:  v.GetBool("AUTO_CREATE_PRODUCTS"),
		ProductVisibleTo:    v.GetInt("PRODUCT_VISIBLE_TO"),
		ProductActiveFlag:   v.GetBool("PRODUCT_ACTIVE_FLAG"),
		SkipOrphanedDeals:   v.GetBool("SKIP_ORPHANED_DEALS"),
		SkipMissingW2:       v.GetBool("SKIP_MISSING_W2"),
		SkipZeroW2:          v.GetBool("SKIP_ZERO_W2"),
		MinW2Count:          v.GetInt("MIN_W2_COUNT"),
		MaxW2Count:          v.GetInt("MAX_W2_COUNT"),
		RequireConfirmation: v.GetBool("REQUIRE_CONFIRMATION"),
		Profile:             profile,
	}

	var missing []string
	if cfg.APIKey == "" {
		missing = append(missing, "PIPEDRIVE_API_KEY")
	}
	if cfg.Domain == "" {
		missing = append(missing, "PIPEDRIVE_DOMAIN")
	}
	if len(missing) > 0 {
		return nil, errors.NewConfigError("config",
			"missing required environment variables: "+strings.Join(missing, ", "), nil)
	}
	cfg.BaseURL = "https://" + cfg.Domain + "/api/v1"

	if err := parseEnums(v, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyProfileDefaults(v *viper.Viper, profile string) error {
	// Standard defaults; the other profiles override a handful of keys.
	defaults := map[string]any{
		"SUBMISSIONS_FILE":            "submissions.yaml",
		"PROCESS_COMPANIES":           string(types.ProcessAdditionalOnly),
		"PRODUCT_NAME_FORMAT":         string(types.NameFormatCompany),
		"PRODUCT_NAME_PREFIX":         "",
		"VALUE_CALCULATION_MODE":      string(types.CalcW2CountTimesPrice),
		"ITEM_PRICE_PER_EMPLOYEE":     1.0,
		"FIXED_PRODUCT_PRICE":         100.0,
		"QUANTITY_MODE":               string(types.QuantityW2Count),
		"CUSTOM_QUANTITY":             1,
		"DUPLICATE_ATTACHMENT_ACTION": string(types.DuplicateUpdate),
		"W2_CHANGE_ACTION":            string(types.ChangeUpdateBoth),
		"AUTO_CREATE_PRODUCTS":        true,
		"PRODUCT_VISIBLE_TO":          3,
		"PRODUCT_ACTIVE_FLAG":         true,
		"SKIP_ORPHANED_DEALS":         true,
		"SKIP_MISSING_W2":             true,
		"SKIP_ZERO_W2":                true,
		"MIN_W2_COUNT":                0,
		"MAX_W2_COUNT":                10000,
		"REQUIRE_CONFIRMATION":        true,
	}

	switch profile {
	case ProfileStandard:
	case ProfileConservative:
		defaults["DUPLICATE_ATTACHMENT_ACTION"] = string(types.DuplicateSkip)
		defaults["AUTO_CREATE_PRODUCTS"] = false
	case ProfileAggressive:
		defaults["PROCESS_COMPANIES"] = string(types.ProcessBoth)
		defaults["REQUIRE_CONFIRMATION"] = false
	default:
		return errors.NewConfigError("config", fmt.Sprintf(
			"invalid profile: %s (valid profiles: %s, %s, %s)",
			profile, ProfileStandard, ProfileConservative, ProfileAggressive), nil)
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return nil
}

func parseEnums(v *viper.Viper, cfg *Config) error {
	var err error
	if cfg.ProcessMode, err = types.ParseProcessMode(v.GetString("PROCESS_COMPANIES")); err != nil {
		return errors.NewConfigError("PROCESS_COMPANIES", err.Error(), err)
	}
	if cfg.NameFormat, err = types.ParseNameFormat(v.GetString("PRODUCT_NAME_FORMAT")); err != nil {
		return errors.NewConfigError("PRODUCT_NAME_FORMAT", err.Error(), err)
	}
	if cfg.CalcMode, err = types.ParseCalcMode(v.GetString("VALUE_CALCULATION_MODE")); err != nil {
		return errors.NewConfigError("VALUE_CALCULATION_MODE", err.Error(), err)
	}
	if cfg.QuantityMode, err = types.ParseQuantityMode(v.GetString("QUANTITY_MODE")); err != nil {
		return errors.NewConfigError("QUANTITY_MODE", err.Error(), err)
	}
	if cfg.DuplicateAction, err = types.ParseDuplicateAction(v.GetString("DUPLICATE_ATTACHMENT_ACTION")); err != nil {
		return errors.NewConfigError("DUPLICATE_ATTACHMENT_ACTION", err.Error(), err)
	}
	if cfg.ChangeAction, err = types.ParseChangeAction(v.GetString("W2_CHANGE_ACTION")); err != nil {
		return errors.NewConfigError("W2_CHANGE_ACTION", err.Error(), err)
	}
	return nil
}

// cleanDomain strips any scheme from a configured CRM domain.
func cleanDomain(domain string) string {
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimSuffix(strings.TrimSpace(domain), "/")
}

// Validate checks the loaded configuration for field-level and
// cross-field problems. The caller refuses to run on any ERROR issue.
func (c *Config) Validate() []Issue {
	var issues []Issue

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				issues = append(issues, Issue{
					Level:   LevelError,
					Message: fmt.Sprintf("%s fails constraint %q (value %v)", fe.Field(), fe.Tag(), fe.Value()),
				})
			}
		} else {
			issues = append(issues, Issue{Level: LevelError, Message: err.Error()})
		}
	}

	if c.MaxW2Count > 0 && c.MaxW2Count < c.MinW2Count {
		issues = append(issues, Issue{
			Level:   LevelError,
			Message: "MAX_W2_COUNT must be greater than MIN_W2_COUNT",
		})
	}
	if c.PricePerEmployee <= 0 {
		issues = append(issues, Issue{
			Level:   LevelError,
			Message: "ITEM_PRICE_PER_EMPLOYEE must be greater than 0",
		})
	}
	if c.QuantityMode == types.QuantityW2Count && c.CalcMode == types.CalcFixedPrice {
		issues = append(issues, Issue{
			Level:   LevelWarning,
			Message: "using W2 quantity with fixed price may produce unexpected values",
		})
	}
	if c.DuplicateAction == types.DuplicateForceNew {
		issues = append(issues, Issue{
			Level:   LevelWarning,
			Message: "force_new will create duplicate attachments - use with caution",
		})
	}
	if !c.AutoCreateProducts && c.ProcessMode == types.ProcessBoth {
		issues = append(issues, Issue{
			Level:   LevelWarning,
			Message: "processing both company types but not auto-creating products",
		})
	}

	return issues
}

// HasErrors reports whether any issue in the list is an error.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Level == LevelError {
			return true
		}
	}
	return false
}

// Summary renders a human-readable configuration overview for the
// pre-run confirmation prompt.
func (c *Config) Summary() string {
	var b strings.Builder
	b.WriteString("Configuration Summary\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Profile: %s\n\n", c.Profile)
	fmt.Fprintf(&b, "Companies to Process:\n  %s\n\n", c.ProcessMode)
	b.WriteString("Product Settings:\n")
	fmt.Fprintf(&b, "  Name Format: %s\n", c.NameFormat)
	prefix := c.NamePrefix
	if prefix == "" {
		prefix = "(none)"
	}
	fmt.Fprintf(&b, "  Name Prefix: %s\n", prefix)
	fmt.Fprintf(&b, "  Auto-create: %t\n\n", c.AutoCreateProducts)
	b.WriteString("Value Calculation:\n")
	fmt.Fprintf(&b, "  Mode: %s\n", c.CalcMode)
	fmt.Fprintf(&b, "  Price per Employee: $%g\n", c.PricePerEmployee)
	fmt.Fprintf(&b, "  Quantity Mode: %s\n\n", c.QuantityMode)
	b.WriteString("Duplicate Handling:\n")
	fmt.Fprintf(&b, "  Attachment Action: %s\n", c.DuplicateAction)
	fmt.Fprintf(&b, "  W2 Change Action: %s\n\n", c.ChangeAction)
	b.WriteString("Safety Settings:\n")
	fmt.Fprintf(&b, "  Skip Orphaned Deals: %t\n", c.SkipOrphanedDeals)
	fmt.Fprintf(&b, "  Skip Missing W2: %t\n", c.SkipMissingW2)
	fmt.Fprintf(&b, "  Min W2 Count: %d\n", c.MinW2Count)
	fmt.Fprintf(&b, "  Max W2 Count: %d\n", c.MaxW2Count)
	return b.String()
}
