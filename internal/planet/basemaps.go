package planet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Mosaic is one basemap series entry.
type Mosaic struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	FirstAcquired string `json:"first_acquired"`
	LastAcquired  string `json:"last_acquired"`
}

// ListBasemaps returns the mosaics whose names contain the given
// fragment, following pagination until exhausted. An empty fragment
// lists everything.
func (c *Client) ListBasemaps(ctx context.Context, nameContains string) ([]Mosaic, error) {
	u := strings.TrimSuffix(c.baseURL, "/") + "/basemaps/v1/mosaics"
	if nameContains != "" {
		u += "?name__contains=" + url.QueryEscape(nameContains)
	}

	var mosaics []Mosaic
	for u != "" {
		data, err := c.do(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("basemap listing failed: %w", err)
		}

		var page struct {
			Mosaics []Mosaic `json:"mosaics"`
			Links   struct {
				Next string `json:"_next"`
			} `json:"_links"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("failed to decode basemap listing: %w", err)
		}
		mosaics = append(mosaics, page.Mosaics...)

		u = page.Links.Next
		if u != "" {
			c.sleep(c.paginationDelay)
		}
	}
	return mosaics, nil
}

// BasemapRequest describes a basemap order clipped to a geometry.
type BasemapRequest struct {
	Name       string
	MosaicName string
	Geometry   json.RawMessage
}

// OrderBasemap places a basemap order and returns the provider order ID.
func (c *Client) OrderBasemap(ctx context.Context, req BasemapRequest) (string, error) {
	payload := map[string]interface{}{
		"name":        req.Name,
		"source_type": "basemaps",
		"products": []map[string]interface{}{{
			"mosaic_name": req.MosaicName,
			"geometry":    req.Geometry,
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal basemap order: %w", err)
	}

	u := strings.TrimSuffix(c.baseURL, "/") + "/compute/ops/orders/v2"
	data, err := c.do(ctx, http.MethodPost, u, body)
	if err != nil {
		return "", fmt.Errorf("basemap order submission failed: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to decode basemap order response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("basemap order response missing id, body: %s", string(data))
	}
	return resp.ID, nil
}
