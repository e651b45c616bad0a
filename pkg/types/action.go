package types

// Action records what happened for one company during a reconciliation run.
// Created once per company per run and immutable thereafter.
//
// Kind is the attachment-level outcome. Catalog separately records whether
// the product was found in or created against the catalog, so a created
// product does not mask the attachment outcome it led to.
type Action struct {
	CompanyName  string     `json:"company_name"`
	W2Count      *int       `json:"w2_count,omitempty"`
	Kind         ActionKind `json:"kind"`
	Catalog      ActionKind `json:"catalog,omitempty"`
	ProductID    *int       `json:"product_id,omitempty"`
	AttachmentID *int       `json:"attachment_id,omitempty"`
	OldQuantity  *int       `json:"old_quantity,omitempty"`
	NewQuantity  *int       `json:"new_quantity,omitempty"`
	OldPrice     *float64   `json:"old_price,omitempty"`
	NewPrice     *float64   `json:"new_price,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ValueAdded returns the monetary value this action contributed to the
// deal: new quantity times new price for write actions, zero otherwise.
func (a *Action) ValueAdded() float64 {
	if !a.Kind.IsWrite() || a.NewQuantity == nil || a.NewPrice == nil {
		return 0
	}
	return float64(*a.NewQuantity) * *a.NewPrice
}

// ErrorAction builds an error action for a company.
func ErrorAction(c Company, msg string) Action {
	return Action{
		CompanyName:  c.Name,
		W2Count:      c.W2Count,
		Kind:         ActionError,
		ErrorMessage: msg,
	}
}
