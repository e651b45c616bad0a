package types

import (
	"fmt"
)

// ProcessMode selects which companies on a submission become line items.
type ProcessMode string

// ProcessMode values.
const (
	ProcessAdditionalOnly ProcessMode = "additional_only"
	ProcessPrimaryOnly    ProcessMode = "primary_only"
	ProcessBoth           ProcessMode = "both"
)

// ParseProcessMode parses s into a ProcessMode, rejecting unknown values.
func ParseProcessMode(s string) (ProcessMode, error) {
	switch ProcessMode(s) {
	case ProcessAdditionalOnly, ProcessPrimaryOnly, ProcessBoth:
		return ProcessMode(s), nil
	}
	return "", fmt.Errorf("unknown process mode %q", s)
}

// NameFormat selects how a company name becomes a catalog product name.
type NameFormat string

// NameFormat values.
const (
	NameFormatCompany       NameFormat = "company_name"
	NameFormatCompanyPrefix NameFormat = "company_name_with_prefix"
	NameFormatCustom        NameFormat = "custom_format"
)

// ParseNameFormat parses s into a NameFormat, rejecting unknown values.
func ParseNameFormat(s string) (NameFormat, error) {
	switch NameFormat(s) {
	case NameFormatCompany, NameFormatCompanyPrefix, NameFormatCustom:
		return NameFormat(s), nil
	}
	return "", fmt.Errorf("unknown product name format %q", s)
}

// CalcMode selects how a line item's price is derived from the W2 count.
type CalcMode string

// CalcMode values.
const (
	// CalcW2Count prices the item at the W2 count itself.
	CalcW2Count CalcMode = "w2_count"
	// CalcW2CountTimesPrice prices the item at a fixed per-employee rate,
	// with quantity normally tracking the W2 count.
	CalcW2CountTimesPrice CalcMode = "w2_count_times_price"
	// CalcFixedPrice prices the item at a flat configured amount.
	CalcFixedPrice CalcMode = "fixed_price"
)

// ParseCalcMode parses s into a CalcMode, rejecting unknown values.
func ParseCalcMode(s string) (CalcMode, error) {
	switch CalcMode(s) {
	case CalcW2Count, CalcW2CountTimesPrice, CalcFixedPrice:
		return CalcMode(s), nil
	}
	return "", fmt.Errorf("unknown value calculation mode %q", s)
}

// QuantityMode selects how a line item's quantity is derived.
type QuantityMode string

// QuantityMode values.
const (
	QuantityW2Count   QuantityMode = "w2_count"
	QuantityAlwaysOne QuantityMode = "always_one"
	QuantityCustom    QuantityMode = "custom"
)

// ParseQuantityMode parses s into a QuantityMode, rejecting unknown values.
func ParseQuantityMode(s string) (QuantityMode, error) {
	switch QuantityMode(s) {
	case QuantityW2Count, QuantityAlwaysOne, QuantityCustom:
		return QuantityMode(s), nil
	}
	return "", fmt.Errorf("unknown quantity mode %q", s)
}

// DuplicateAction selects what to do when the product is already attached
// to the deal with different values.
type DuplicateAction string

// DuplicateAction values.
const (
	DuplicateUpdate DuplicateAction = "update"
	DuplicateSkip   DuplicateAction = "skip"
	DuplicateError  DuplicateAction = "error"
	// DuplicateForceNew deliberately creates a second attachment for the
	// same product. The only mode that breaks the one-attachment-per-product
	// invariant.
	DuplicateForceNew DuplicateAction = "force_new"
)

// ParseDuplicateAction parses s into a DuplicateAction, rejecting unknown values.
func ParseDuplicateAction(s string) (DuplicateAction, error) {
	switch DuplicateAction(s) {
	case DuplicateUpdate, DuplicateSkip, DuplicateError, DuplicateForceNew:
		return DuplicateAction(s), nil
	}
	return "", fmt.Errorf("unknown duplicate attachment action %q", s)
}

// ChangeAction selects which fields an update is allowed to touch when the
// computed values drift from an existing attachment.
type ChangeAction string

// ChangeAction values.
const (
	ChangeUpdateQuantity ChangeAction = "update_quantity"
	ChangeUpdatePrice    ChangeAction = "update_price"
	ChangeUpdateBoth     ChangeAction = "update_both"
	ChangeSkip           ChangeAction = "skip"
)

// ParseChangeAction parses s into a ChangeAction, rejecting unknown values.
func ParseChangeAction(s string) (ChangeAction, error) {
	switch ChangeAction(s) {
	case ChangeUpdateQuantity, ChangeUpdatePrice, ChangeUpdateBoth, ChangeSkip:
		return ChangeAction(s), nil
	}
	return "", fmt.Errorf("unknown change action %q", s)
}

// Status is the overall outcome of reconciling one submission.
type Status string

// Status values.
const (
	StatusSuccess     Status = "success"
	StatusUpdated     Status = "updated"
	StatusSkipped     Status = "skipped"
	StatusNoDealID    Status = "no_deal_id"
	StatusNoCompanies Status = "no_companies"
	StatusOrphaned    Status = "orphaned"
	StatusFailedError Status = "failed_error"
)

// ActionKind is the action taken for one company during reconciliation.
type ActionKind string

// ActionKind values.
const (
	ActionCreatedCatalog  ActionKind = "created_catalog"
	ActionFoundCatalog    ActionKind = "found_catalog"
	ActionAttachedNew     ActionKind = "attached_new"
	ActionUpdatedQuantity ActionKind = "updated_quantity"
	ActionUpdatedPrice    ActionKind = "updated_price"
	// ActionUpdatedBoth marks a single update call that changed quantity
	// and price together.
	ActionUpdatedBoth   ActionKind = "updated_both"
	ActionSkippedExists ActionKind = "skipped_exists"
	ActionError         ActionKind = "error"
)

// IsWrite reports whether the kind represents a successful mutation that
// contributes to a submission's total value added.
func (k ActionKind) IsWrite() bool {
	switch k {
	case ActionAttachedNew, ActionUpdatedQuantity, ActionUpdatedPrice, ActionUpdatedBoth:
		return true
	}
	return false
}
