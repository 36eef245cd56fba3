package planet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"flowzero/internal/models"
)

const itemTypePSScene = "PSScene"

type searchFilter struct {
	Type   string            `json:"type"`
	Config []json.RawMessage `json:"config"`
}

type searchRequest struct {
	ItemTypes []string     `json:"item_types"`
	Filter    searchFilter `json:"filter"`
}

type searchPage struct {
	Features []struct {
		ID         string          `json:"id"`
		Geometry   json.RawMessage `json:"geometry"`
		Properties struct {
			Acquired   time.Time `json:"acquired"`
			CloudCover float64   `json:"cloud_cover"`
		} `json:"properties"`
	} `json:"features"`
	Links struct {
		Next string `json:"_next"`
	} `json:"_links"`
}

// SearchScenes runs a quick-search for PSScene items intersecting the
// geometry within [startDate, endDate], following pagination links
// until exhausted. The client's pagination delay runs between page
// fetches, never before the first. Cloud cover comes back as a
// percentage.
func (c *Client) SearchScenes(ctx context.Context, geometry json.RawMessage, startDate, endDate string) ([]models.Scene, error) {
	body, err := buildSearchRequest(geometry, startDate, endDate)
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/data/v1/quick-search"
	method := http.MethodPost

	var scenes []models.Scene
	for url != "" {
		data, err := c.do(ctx, method, url, body)
		if err != nil {
			return nil, fmt.Errorf("scene search failed: %w", err)
		}

		var page searchPage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("failed to decode search response: %w", err)
		}
		for _, f := range page.Features {
			scenes = append(scenes, models.Scene{
				ID:            f.ID,
				AcquiredAt:    f.Properties.Acquired,
				CloudCoverPct: f.Properties.CloudCover * 100,
				Geometry:      f.Geometry,
			})
		}

		// Follow-up pages are plain GETs on the provider's next link.
		url = page.Links.Next
		method = http.MethodGet
		body = nil
		if url != "" {
			c.sleep(c.paginationDelay)
		}
	}
	return scenes, nil
}

func buildSearchRequest(geometry json.RawMessage, startDate, endDate string) ([]byte, error) {
	geomFilter, err := json.Marshal(map[string]interface{}{
		"type":       "GeometryFilter",
		"field_name": "geometry",
		"config":     geometry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build geometry filter: %w", err)
	}
	dateFilter, err := json.Marshal(map[string]interface{}{
		"type":       "DateRangeFilter",
		"field_name": "acquired",
		"config": map[string]string{
			"gte": startDate + "T00:00:00Z",
			"lte": endDate + "T23:59:59Z",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build date filter: %w", err)
	}
	permFilter, err := json.Marshal(map[string]interface{}{
		"type":   "PermissionFilter",
		"config": []string{"assets:download"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build permission filter: %w", err)
	}

	req := searchRequest{
		ItemTypes: []string{itemTypePSScene},
		Filter: searchFilter{
			Type:   "AndFilter",
			Config: []json.RawMessage{geomFilter, dateFilter, permFilter},
		},
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}
	return data, nil
}
