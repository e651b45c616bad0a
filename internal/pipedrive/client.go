// Package pipedrive implements the remote CRM client: deal lookups, the
// product catalog, and per-deal product attachments, over the retrying
// transport layer. Responses arrive in the Pipedrive v1 envelope, where a
// boolean success field signals the call outcome.
//
// Lookup methods translate a remote 404 (and a successful-but-empty
// envelope) into a nil result rather than an error; mutation methods treat
// anything but success as an error.
package pipedrive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/crestline/pipelink/internal/transport"
	"github.com/crestline/pipelink/pkg/errors"
	"github.com/crestline/pipelink/pkg/types"
)

// maxProductNameLen is the remote catalog's limit on product names.
const maxProductNameLen = 255

// Client is a Pipedrive API client.
type Client struct {
	transport *transport.Client
	baseURL   string
}

// New creates a client for the given API base URL and key.
func New(baseURL, apiKey string, opts ...transport.Option) *Client {
	return &Client{
		transport: transport.New(&transport.QueryAuth{Param: "api_token"}, apiKey, opts...),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Calls returns the total number of remote call attempts made so far.
func (c *Client) Calls() int64 {
	return c.transport.Calls().Total()
}

// envelope is the Pipedrive response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// get performs a GET and decodes the envelope. A remote 404 returns
// (nil, nil) so callers can treat missing resources as absence.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) (*envelope, error) {
	resp, err := c.transport.Do(ctx, "GET", c.baseURL+"/"+endpoint, query, nil)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var env envelope
	if err := transport.DecodeJSON(resp, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// send performs a mutating call (POST/PUT/DELETE) and decodes the envelope.
func (c *Client) send(ctx context.Context, method, endpoint string, body any) (*envelope, error) {
	resp, err := c.transport.Do(ctx, method, c.baseURL+"/"+endpoint, nil, body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := transport.DecodeJSON(resp, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// VerifyConnection checks that the API is reachable and the credential is
// accepted, using the current-user endpoint.
func (c *Client) VerifyConnection(ctx context.Context) error {
	env, err := c.get(ctx, "users/me", nil)
	if err != nil {
		return errors.WrapResource("verify", "connection", "", err)
	}
	if env == nil || !env.Success {
		return errors.NewResourceError("verify", "connection", "", errors.New("credential rejected"))
	}
	return nil
}

// GetDeal fetches a deal by id. Returns (nil, nil) when the deal does not
// exist so the orchestrator can apply its orphaned-deal policy.
func (c *Client) GetDeal(ctx context.Context, dealID int) (*types.Deal, error) {
	env, err := c.get(ctx, fmt.Sprintf("deals/%d", dealID), nil)
	if err != nil {
		return nil, errors.WrapResource("fetch", "deal", fmt.Sprint(dealID), err)
	}
	if env == nil || !env.Success || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}

	var deal types.Deal
	if err := json.Unmarshal(env.Data, &deal); err != nil {
		return nil, errors.WrapResource("decode", "deal", fmt.Sprint(dealID), err)
	}
	return &deal, nil
}

// ListDealProducts returns all product attachments on a deal. A missing
// deal yields an empty list.
func (c *Client) ListDealProducts(ctx context.Context, dealID int) ([]types.Attachment, error) {
	env, err := c.get(ctx, fmt.Sprintf("deals/%d/products", dealID), nil)
	if err != nil {
		return nil, errors.WrapResource("fetch", "deal products", fmt.Sprint(dealID), err)
	}
	if env == nil || !env.Success || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}

	var attachments []types.Attachment
	if err := json.Unmarshal(env.Data, &attachments); err != nil {
		return nil, errors.WrapResource("decode", "deal products", fmt.Sprint(dealID), err)
	}
	return attachments, nil
}

// searchItem is one hit in the product search response.
type searchItem struct {
	Item types.Product `json:"item"`
}

// searchData is the data payload of the product search response.
type searchData struct {
	Items []searchItem `json:"items"`
}

// SearchProduct searches the catalog by name. With exact set, only an
// exact match on the trimmed name is returned; otherwise the first hit.
// Returns (nil, nil) when nothing matches.
func (c *Client) SearchProduct(ctx context.Context, name string, exact bool) (*types.Product, error) {
	term := strings.TrimSpace(name)

	query := url.Values{}
	query.Set("term", term)
	if exact {
		query.Set("exact_match", "1")
	} else {
		query.Set("exact_match", "0")
	}

	env, err := c.get(ctx, "products/search", query)
	if err != nil {
		return nil, errors.WrapResource("search", "product", term, err)
	}
	if env == nil || !env.Success || len(env.Data) == 0 {
		return nil, nil
	}

	var data searchData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, errors.WrapResource("decode", "product search", term, err)
	}

	for _, hit := range data.Items {
		if exact {
			if strings.TrimSpace(hit.Item.Name) == term {
				product := hit.Item
				return &product, nil
			}
			continue
		}
		product := hit.Item
		return &product, nil
	}
	return nil, nil
}

// CreateProduct creates a catalog product. The name is bounded to the
// remote limit; visibility and the active flag come from configuration.
func (c *Client) CreateProduct(ctx context.Context, name string, code *string, active bool, visibleTo int) (*types.Product, error) {
	if len(name) > maxProductNameLen {
		name = name[:maxProductNameLen]
	}

	body := map[string]any{
		"name":        name,
		"active_flag": active,
		"visible_to":  visibleTo,
	}
	if code != nil && *code != "" {
		body["code"] = *code
	}

	env, err := c.send(ctx, "POST", "products", body)
	if err != nil {
		return nil, errors.WrapResource("create", "product", name, err)
	}
	if !env.Success {
		return nil, errors.NewResourceError("create", "product", name, errors.New("remote rejected create"))
	}

	var product types.Product
	if err := json.Unmarshal(env.Data, &product); err != nil {
		return nil, errors.WrapResource("decode", "product", name, err)
	}
	return &product, nil
}

// AttachProduct attaches a product to a deal as a new line item.
func (c *Client) AttachProduct(ctx context.Context, dealID, productID int, itemPrice float64, quantity int, comments *string) (*types.Attachment, error) {
	body := map[string]any{
		"product_id":   productID,
		"item_price":   itemPrice,
		"quantity":     quantity,
		"discount":     0,
		"duration":     1,
		"enabled_flag": true,
	}
	if comments != nil && *comments != "" {
		body["comments"] = *comments
	}

	env, err := c.send(ctx, "POST", fmt.Sprintf("deals/%d/products", dealID), body)
	if err != nil {
		return nil, errors.WrapResource("attach", "product", fmt.Sprint(productID), err)
	}
	if !env.Success {
		return nil, errors.NewResourceError("attach", "product", fmt.Sprint(productID),
			fmt.Errorf("remote rejected attachment to deal %d", dealID))
	}

	var attachment types.Attachment
	if err := json.Unmarshal(env.Data, &attachment); err != nil {
		return nil, errors.WrapResource("decode", "attachment", fmt.Sprint(productID), err)
	}
	return &attachment, nil
}

// UpdateAttachment partially updates an attachment: only non-nil fields are
// sent, so an unchanged field is never written.
func (c *Client) UpdateAttachment(ctx context.Context, dealID, attachmentID int, itemPrice *float64, quantity *int, comments *string) (*types.Attachment, error) {
	body := map[string]any{}
	if itemPrice != nil {
		body["item_price"] = *itemPrice
	}
	if quantity != nil {
		body["quantity"] = *quantity
	}
	if comments != nil {
		body["comments"] = *comments
	}

	env, err := c.send(ctx, "PUT", fmt.Sprintf("deals/%d/products/%d", dealID, attachmentID), body)
	if err != nil {
		return nil, errors.WrapResource("update", "attachment", fmt.Sprint(attachmentID), err)
	}
	if !env.Success {
		return nil, errors.NewResourceError("update", "attachment", fmt.Sprint(attachmentID),
			fmt.Errorf("remote rejected update on deal %d", dealID))
	}

	var attachment types.Attachment
	if err := json.Unmarshal(env.Data, &attachment); err != nil {
		return nil, errors.WrapResource("decode", "attachment", fmt.Sprint(attachmentID), err)
	}
	return &attachment, nil
}

// DeleteAttachment removes a product attachment from a deal.
func (c *Client) DeleteAttachment(ctx context.Context, dealID, attachmentID int) (bool, error) {
	env, err := c.send(ctx, "DELETE", fmt.Sprintf("deals/%d/products/%d", dealID, attachmentID), nil)
	if err != nil {
		return false, errors.WrapResource("delete", "attachment", fmt.Sprint(attachmentID), err)
	}
	return env.Success, nil
}
