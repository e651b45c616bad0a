// Package reconcile decides, for one company and its resolved catalog
// product, whether the deal needs a new attachment, an update, or nothing,
// and performs the chosen mutation. The duplicate policy governs what
// happens when the product is already attached; the change policy governs
// which fields an update may touch.
package reconcile

import (
	"context"
	"math"

	"github.com/crestline/pipelink/pkg/types"
)

// priceTolerance is the slack used when comparing monetary values.
const priceTolerance = 0.01

// autoComment tags attachments created by this tool.
const autoCommentPrefix = "AUTO_ATTACHED|company:"

// API is the attachment surface of the remote CRM.
type API interface {
	AttachProduct(ctx context.Context, dealID, productID int, itemPrice float64, quantity int, comments *string) (*types.Attachment, error)
	UpdateAttachment(ctx context.Context, dealID, attachmentID int, itemPrice *float64, quantity *int, comments *string) (*types.Attachment, error)
}

// Reconciler applies the duplicate and change policies to one
// (product, existing attachments) pair at a time.
type Reconciler struct {
	api       API
	duplicate types.DuplicateAction
	change    types.ChangeAction
}

// New creates a Reconciler with the given policies.
func New(api API, duplicate types.DuplicateAction, change types.ChangeAction) *Reconciler {
	return &Reconciler{api: api, duplicate: duplicate, change: change}
}

// Reconcile aligns the deal's attachment for product with the computed
// quantity and price, returning the action taken. In dry-run mode every
// decision is made identically but no mutating call is issued.
func (r *Reconciler) Reconcile(ctx context.Context, dealID int, company types.Company, product *types.Product, quantity int, price float64, current []types.Attachment, dryRun bool) types.Action {
	existing := findAttachment(product.ID, current)
	if existing == nil {
		return r.attachNew(ctx, dealID, company, product, quantity, price, dryRun)
	}

	quantityMatches := existing.Quantity == quantity
	priceMatches := math.Abs(existing.ItemPrice-price) < priceTolerance

	if quantityMatches && priceMatches {
		// Already attached with correct values; no policy applies.
		return skipAction(company, product, existing, quantity, price)
	}

	switch r.duplicate {
	case types.DuplicateSkip:
		return skipAction(company, product, existing, quantity, price)

	case types.DuplicateError:
		action := types.ErrorAction(company, "product already attached (configured to error)")
		action.ProductID = &product.ID
		return action

	case types.DuplicateForceNew:
		// Intentional duplicate: a second attachment for the same product.
		return r.attachNew(ctx, dealID, company, product, quantity, price, dryRun)

	case types.DuplicateUpdate:
		return r.applyChange(ctx, dealID, company, product, existing, quantity, price, dryRun)
	}

	// Unrecognized values are rejected at config load; this is unreachable.
	return types.ErrorAction(company, "unhandled duplicate policy")
}

// applyChange selects which fields to update per the change policy and
// issues at most one partial update.
func (r *Reconciler) applyChange(ctx context.Context, dealID int, company types.Company, product *types.Product, existing *types.Attachment, quantity int, price float64, dryRun bool) types.Action {
	quantityChanged := existing.Quantity != quantity
	priceChanged := math.Abs(existing.ItemPrice-price) > priceTolerance

	var updateQuantity, updatePrice bool
	switch r.change {
	case types.ChangeUpdateQuantity:
		updateQuantity = quantityChanged
	case types.ChangeUpdatePrice:
		updatePrice = priceChanged
	case types.ChangeUpdateBoth:
		updateQuantity = quantityChanged
		updatePrice = priceChanged
	case types.ChangeSkip:
		return skipAction(company, product, existing, quantity, price)
	}

	if !updateQuantity && !updatePrice {
		// Nothing the policy allows us to touch actually differs.
		return skipAction(company, product, existing, quantity, price)
	}

	kind := updateKind(updateQuantity, updatePrice)

	newQuantity := existing.Quantity
	if updateQuantity {
		newQuantity = quantity
	}
	newPrice := existing.ItemPrice
	if updatePrice {
		newPrice = price
	}

	if dryRun {
		return types.Action{
			CompanyName:  company.Name,
			W2Count:      company.W2Count,
			Kind:         kind,
			ProductID:    &product.ID,
			AttachmentID: &existing.ID,
			OldQuantity:  &existing.Quantity,
			NewQuantity:  &newQuantity,
			OldPrice:     &existing.ItemPrice,
			NewPrice:     &newPrice,
		}
	}

	var quantityField *int
	if updateQuantity {
		quantityField = &quantity
	}
	var priceField *float64
	if updatePrice {
		priceField = &price
	}

	updated, err := r.api.UpdateAttachment(ctx, dealID, existing.ID, priceField, quantityField, nil)
	if err != nil {
		action := types.ErrorAction(company, "failed to update attachment: "+err.Error())
		action.ProductID = &product.ID
		return action
	}

	// Report the values we computed, not the remote echo: a partial update
	// only sends the changed fields, so the echo may omit the rest, and the
	// reported values must match what a dry run would have said.
	return types.Action{
		CompanyName:  company.Name,
		W2Count:      company.W2Count,
		Kind:         kind,
		ProductID:    &product.ID,
		AttachmentID: &updated.ID,
		OldQuantity:  &existing.Quantity,
		NewQuantity:  &newQuantity,
		OldPrice:     &existing.ItemPrice,
		NewPrice:     &newPrice,
	}
}

// attachNew creates a new attachment for the product.
func (r *Reconciler) attachNew(ctx context.Context, dealID int, company types.Company, product *types.Product, quantity int, price float64, dryRun bool) types.Action {
	if dryRun {
		return types.Action{
			CompanyName: company.Name,
			W2Count:     company.W2Count,
			Kind:        types.ActionAttachedNew,
			ProductID:   &product.ID,
			NewQuantity: &quantity,
			NewPrice:    &price,
		}
	}

	comments := autoCommentPrefix + company.Name
	attachment, err := r.api.AttachProduct(ctx, dealID, product.ID, price, quantity, &comments)
	if err != nil {
		action := types.ErrorAction(company, "failed to attach product: "+err.Error())
		action.ProductID = &product.ID
		return action
	}

	return types.Action{
		CompanyName:  company.Name,
		W2Count:      company.W2Count,
		Kind:         types.ActionAttachedNew,
		ProductID:    &product.ID,
		AttachmentID: &attachment.ID,
		NewQuantity:  &quantity,
		NewPrice:     &price,
	}
}

// updateKind maps the selected fields to the action kind.
func updateKind(quantity, price bool) types.ActionKind {
	switch {
	case quantity && price:
		return types.ActionUpdatedBoth
	case quantity:
		return types.ActionUpdatedQuantity
	default:
		return types.ActionUpdatedPrice
	}
}

// skipAction builds a skipped-exists action reporting desired vs actual.
func skipAction(company types.Company, product *types.Product, existing *types.Attachment, quantity int, price float64) types.Action {
	return types.Action{
		CompanyName:  company.Name,
		W2Count:      company.W2Count,
		Kind:         types.ActionSkippedExists,
		ProductID:    &product.ID,
		AttachmentID: &existing.ID,
		OldQuantity:  &existing.Quantity,
		NewQuantity:  &quantity,
		OldPrice:     &existing.ItemPrice,
		NewPrice:     &price,
	}
}

// findAttachment returns the first attachment for productID, or nil.
func findAttachment(productID int, attachments []types.Attachment) *types.Attachment {
	for i := range attachments {
		if attachments[i].ProductID == productID {
			return &attachments[i]
		}
	}
	return nil
}
