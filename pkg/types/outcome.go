package types

// Outcome is the aggregate result of reconciling a single submission.
// Produced fresh each run; no state persists between runs.
type Outcome struct {
	SubmissionID       string   `json:"submission_id"`
	DealID             *int     `json:"deal_id,omitempty"`
	Status             Status   `json:"status"`
	CompaniesProcessed int      `json:"companies_processed"`
	Actions            []Action `json:"actions"`
	TotalValueAdded    float64  `json:"total_value_added"`
	ErrorMessage       string   `json:"error_message,omitempty"`
}

// ProductsCreated counts companies whose product was created in the catalog.
func (o *Outcome) ProductsCreated() int {
	return o.countCatalog(ActionCreatedCatalog)
}

// ProductsFound counts companies whose product already existed in the catalog.
func (o *Outcome) ProductsFound() int {
	return o.countCatalog(ActionFoundCatalog)
}

// AttachmentsCreated counts new attachments created on the deal.
func (o *Outcome) AttachmentsCreated() int {
	return o.count(ActionAttachedNew)
}

// AttachmentsUpdated counts attachments whose quantity and/or price changed.
func (o *Outcome) AttachmentsUpdated() int {
	return o.count(ActionUpdatedQuantity) + o.count(ActionUpdatedPrice) + o.count(ActionUpdatedBoth)
}

// AttachmentsSkipped counts attachments left untouched.
func (o *Outcome) AttachmentsSkipped() int {
	return o.count(ActionSkippedExists)
}

// Errors counts per-company failures.
func (o *Outcome) Errors() int {
	return o.count(ActionError)
}

func (o *Outcome) count(kind ActionKind) int {
	n := 0
	for _, a := range o.Actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

func (o *Outcome) countCatalog(kind ActionKind) int {
	n := 0
	for _, a := range o.Actions {
		if a.Catalog == kind {
			n++
		}
	}
	return n
}
