package tng

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Page is one page of an archive listing endpoint.
type Page struct {
	Count    int              `json:"count"`
	Next     string           `json:"next"`
	Previous string           `json:"previous"`
	Results  []map[string]any `json:"results"`
}

// Page fetches one listing page. Listing pages are never cached.
func (c *Client) Page(ctx context.Context, rawURL string) (*Page, error) {
	resp, err := c.get(ctx, "listing", rawURL, nil)
	if err != nil {
		return nil, err
	}
	if !isJSON(resp.Header) {
		return nil, fmt.Errorf("%w: %s returned %q", ErrNotMetadata, rawURL, resp.ContentType())
	}
	var p Page
	if err := json.NewDecoder(bytes.NewReader(resp.Body)).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrNotMetadata, rawURL, err)
	}
	return &p, nil
}

// SubhaloListURL returns the subhalo listing of a snapshot starting at
// offset with at most limit entries.
func (c *Client) SubhaloListURL(simulation string, snapshot, limit, offset int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return c.snapshotURL(simulation, snapshot) + "subhalos/?" + q.Encode()
}
