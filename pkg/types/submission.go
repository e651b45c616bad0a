// Package types defines the domain model shared across pipelink: source
// submissions and their companies, the remote CRM's deals, catalog products
// and deal attachments, and the per-run reconciliation records.
package types

// Company is one business record carried by a submission. Immutable input;
// Raw holds the untyped source payload for reference.
type Company struct {
	Name    string         `json:"name" yaml:"name"`
	W2Count *int           `json:"w2_count,omitempty" yaml:"w2_count,omitempty"`
	Raw     map[string]any `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// Submission is one source record: company data plus an optional linked
// deal in the remote CRM.
type Submission struct {
	ID         string         `json:"id" yaml:"id"`
	DealID     *int           `json:"deal_id,omitempty" yaml:"deal_id,omitempty"`
	Primary    *Company       `json:"primary_company,omitempty" yaml:"primary_company,omitempty"`
	Additional []Company      `json:"additional_companies,omitempty" yaml:"additional_companies,omitempty"`
	Email      string         `json:"email,omitempty" yaml:"email,omitempty"`
	Raw        map[string]any `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// Companies returns the companies to reconcile for the given process mode,
// primary first when both are selected.
func (s *Submission) Companies(mode ProcessMode) []Company {
	var out []Company
	if mode == ProcessPrimaryOnly || mode == ProcessBoth {
		if s.Primary != nil {
			out = append(out, *s.Primary)
		}
	}
	if mode == ProcessAdditionalOnly || mode == ProcessBoth {
		out = append(out, s.Additional...)
	}
	return out
}
