package types

// Deal is the downstream pipeline record that products are attached to.
type Deal struct {
	ID         int      `json:"id"`
	Title      string   `json:"title"`
	Value      *float64 `json:"value,omitempty"`
	StageID    int      `json:"stage_id"`
	PipelineID int      `json:"pipeline_id"`
	OrgID      *int     `json:"org_id,omitempty"`
}

// Product is a catalog entry owned by the remote CRM. It is fetched or
// created during a run, never mutated locally.
type Product struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Code   *string `json:"code,omitempty"`
	Active bool    `json:"active_flag"`
}

// Attachment is the association of a catalog product to one deal, carrying
// the deal-specific quantity and price.
type Attachment struct {
	ID        int     `json:"id"`
	ProductID int     `json:"product_id"`
	DealID    int     `json:"deal_id"`
	ItemPrice float64 `json:"item_price"`
	Quantity  int     `json:"quantity"`
	Sum       float64 `json:"sum"`
	Name      string  `json:"name"`
	Comments  *string `json:"comments,omitempty"`
}
