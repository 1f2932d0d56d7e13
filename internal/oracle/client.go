package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Source supplies price quotes for an asset. The zero Quote with a
// non-nil error means the asset is unavailable.
type Source interface {
	GetQuote(ctx context.Context, assetID string) (Quote, error)
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("oracle API error (%d): %s", e.Status, e.Body)
}

// Client fetches quotes from a Hermes-style price feed HTTP API.
type Client struct {
	host       string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client, host string) *Client {
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

type quotePayload struct {
	Parsed []struct {
		ID    string `json:"id"`
		Price struct {
			Price       string `json:"price"`
			Conf        string `json:"conf"`
			Expo        int32  `json:"expo"`
			PublishTime int64  `json:"publish_time"`
		} `json:"price"`
	} `json:"parsed"`
}

func (c *Client) GetQuote(ctx context.Context, assetID string) (Quote, error) {
	if assetID == "" {
		return Quote{}, fmt.Errorf("asset_id is required")
	}
	query := url.Values{}
	query.Set("ids[]", assetID)
	fullURL := c.host + "/v2/updates/price/latest?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return parseQuote(body, assetID)
}

func parseQuote(body []byte, assetID string) (Quote, error) {
	var payload quotePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Quote{}, fmt.Errorf("failed to parse quote: %w", err)
	}
	for _, item := range payload.Parsed {
		if !strings.EqualFold(strings.TrimPrefix(item.ID, "0x"), strings.TrimPrefix(assetID, "0x")) {
			continue
		}
		var q Quote
		if _, err := fmt.Sscan(item.Price.Price, &q.Price); err != nil {
			return Quote{}, fmt.Errorf("bad price %q: %w", item.Price.Price, err)
		}
		if _, err := fmt.Sscan(item.Price.Conf, &q.Conf); err != nil {
			return Quote{}, fmt.Errorf("bad conf %q: %w", item.Price.Conf, err)
		}
		q.Expo = item.Price.Expo
		q.PublishTime = item.Price.PublishTime
		return q, nil
	}
	return Quote{}, fmt.Errorf("no quote for asset %s", assetID)
}
