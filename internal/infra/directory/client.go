package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"renthub/internal/app/policies"
)

// Client resolves properties from the external property directory over HTTP.
// Status is read per call; nothing is cached.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

type propertyResponse struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
}

func (c *Client) GetProperty(ctx context.Context, propertyID string) (policies.Property, error) {
	var zero policies.Property
	if c == nil || c.HTTP == nil {
		return zero, errors.New("directory: http client not configured")
	}
	if c.BaseURL == "" {
		return zero, errors.New("directory: base url not configured")
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/properties/" + url.PathEscape(strings.TrimSpace(propertyID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return zero, policies.ErrPropertyNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return zero, fmt.Errorf("directory: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload propertyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return zero, fmt.Errorf("directory: decode response: %w", err)
	}
	return policies.Property{
		ID:      payload.ID,
		OwnerID: payload.OwnerID,
		Title:   payload.Title,
		Status:  policies.PropertyStatus(strings.ToLower(payload.Status)),
	}, nil
}

var _ policies.PropertyDirectory = (*Client)(nil)
