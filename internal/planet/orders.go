package planet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Provider order states.
const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateSuccess   = "success"
	StatePartial   = "partial"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// SubmitRequest describes a clipped scene order.
type SubmitRequest struct {
	Name           string
	ItemIDs        []string
	ProductBundle  string
	FallbackBundle string
	ClipGeometry   json.RawMessage
}

type orderProduct struct {
	ItemIDs       []string `json:"item_ids"`
	ItemType      string   `json:"item_type"`
	ProductBundle string   `json:"product_bundle"`
}

type orderTool struct {
	Clip *clipTool `json:"clip,omitempty"`
}

type clipTool struct {
	AOI json.RawMessage `json:"aoi"`
}

type orderPayload struct {
	Name     string         `json:"name"`
	Products []orderProduct `json:"products"`
	Tools    []orderTool    `json:"tools,omitempty"`
}

type orderResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// SubmitOrder places a scene order and returns the provider order ID.
// When a fallback bundle is set it is appended to the bundle list, so
// the provider can fall through if the primary bundle is unavailable
// for some item.
func (c *Client) SubmitOrder(ctx context.Context, req SubmitRequest) (string, error) {
	if len(req.ItemIDs) == 0 {
		return "", fmt.Errorf("order %q has no item IDs", req.Name)
	}

	bundle := req.ProductBundle
	if req.FallbackBundle != "" {
		bundle = req.ProductBundle + "," + req.FallbackBundle
	}
	payload := orderPayload{
		Name: req.Name,
		Products: []orderProduct{{
			ItemIDs:       req.ItemIDs,
			ItemType:      itemTypePSScene,
			ProductBundle: bundle,
		}},
	}
	if req.ClipGeometry != nil {
		payload.Tools = []orderTool{{Clip: &clipTool{AOI: req.ClipGeometry}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal order: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/compute/ops/orders/v2"
	data, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("order submission failed: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to decode order response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("order response missing id, body: %s", string(data))
	}
	return resp.ID, nil
}

// ResultLink is one deliverable file of a finished order.
type ResultLink struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// OrderStatus is the provider's view of an order. Raw is the response
// body exactly as received, so callers can persist the manifest without
// interpreting it.
type OrderStatus struct {
	ID         string
	State      string
	SourceType string
	ErrorHints []string
	Results    []ResultLink
	Raw        json.RawMessage
}

// GetOrder polls the current state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*OrderStatus, error) {
	url := strings.TrimSuffix(c.baseURL, "/") + "/compute/ops/orders/v2/" + orderID
	data, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("order status check failed: %w", err)
	}

	var resp struct {
		ID         string   `json:"id"`
		State      string   `json:"state"`
		SourceType string   `json:"source_type"`
		ErrorHints []string `json:"error_hints"`
		Links      struct {
			Results []ResultLink `json:"results"`
		} `json:"_links"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode order status: %w", err)
	}
	return &OrderStatus{
		ID:         resp.ID,
		State:      resp.State,
		SourceType: resp.SourceType,
		ErrorHints: resp.ErrorHints,
		Results:    resp.Links.Results,
		Raw:        json.RawMessage(data),
	}, nil
}
