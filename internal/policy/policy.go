// Package policy turns configuration and company data into a validation
// verdict and the computed quantity, price, and product name for a line
// item. Everything here is pure: identical inputs always yield identical
// outputs, which is what makes repeated reconciliation runs idempotent.
package policy

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/crestline/pipelink/internal/utils/ptr"
	"github.com/crestline/pipelink/pkg/errors"
	"github.com/crestline/pipelink/pkg/types"
)

// Rules is the slice of configuration the resolver needs.
type Rules struct {
	SkipMissingW2 bool
	SkipZeroW2    bool
	MinW2Count    int
	MaxW2Count    int

	CalcMode         types.CalcMode
	QuantityMode     types.QuantityMode
	PricePerEmployee float64
	FixedPrice       float64
	CustomQuantity   int

	NameFormat types.NameFormat
	NamePrefix string
}

// Validate returns nil when the company may be reconciled, or a
// ValidationError describing why it must be recorded as an error action.
// A missing W2 count passes when skip-missing is disabled (the effective
// count defaults to 1 downstream); the zero, minimum, and maximum checks
// apply only when a count is present.
func (r Rules) Validate(c types.Company) error {
	if c.W2Count == nil {
		if r.SkipMissingW2 {
			return errors.NewValidationError("w2_count", nil, "missing W2 employee count")
		}
		return nil
	}

	w2 := *c.W2Count

	if w2 == 0 && r.SkipZeroW2 {
		return errors.NewValidationError("w2_count", w2, "W2 employee count is zero")
	}

	if r.MinW2Count > 0 && w2 < r.MinW2Count {
		return errors.NewValidationError("w2_count", w2,
			fmt.Sprintf("W2 count (%d) below minimum (%d)", w2, r.MinW2Count))
	}

	if r.MaxW2Count > 0 && w2 > r.MaxW2Count {
		return errors.NewValidationError("w2_count", w2,
			fmt.Sprintf("W2 count (%d) exceeds maximum (%d)", w2, r.MaxW2Count))
	}

	return nil
}

// Compute derives the line-item quantity and price from the W2 count.
// A missing count contributes an effective W2 of 1.
func (r Rules) Compute(w2 *int) (quantity int, price float64) {
	effective := ptr.Deref(w2, 1)

	switch r.QuantityMode {
	case types.QuantityW2Count:
		quantity = effective
	case types.QuantityAlwaysOne:
		quantity = 1
	case types.QuantityCustom:
		quantity = r.CustomQuantity
	}

	switch r.CalcMode {
	case types.CalcW2Count:
		price = float64(effective)
	case types.CalcW2CountTimesPrice:
		price = r.PricePerEmployee
	case types.CalcFixedPrice:
		price = r.FixedPrice
	}

	return quantity, price
}

// FormatName turns a raw company name into the catalog product name:
// NFC-normalized, surrounding whitespace trimmed, at most one trailing
// period removed, then formatted per the configured name format.
func (r Rules) FormatName(raw string) string {
	name := strings.TrimSpace(norm.NFC.String(raw))
	name = strings.TrimSuffix(name, ".")

	switch r.NameFormat {
	case types.NameFormatCompany:
		return name
	case types.NameFormatCompanyPrefix:
		return r.NamePrefix + name
	case types.NameFormatCustom:
		// Passthrough hook for installations with bespoke naming.
		return name
	}
	return name
}
