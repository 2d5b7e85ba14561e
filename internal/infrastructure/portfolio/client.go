package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"NewsRadar/internal/ports"
)

// Client reads aggregate symbol weights from the external portfolio service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.WeightsFeed = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// SymbolWeights fetches the current holdings aggregated as symbol → weight.
// Symbols come back upper-cased; non-positive weights are dropped.
func (c *Client) SymbolWeights(ctx context.Context) (map[string]float64, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("portfolio feed endpoint is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portfolio feed returned %s", resp.Status)
	}

	var payload struct {
		Weights map[string]float64 `json:"weights"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	weights := make(map[string]float64, len(payload.Weights))
	for symbol, weight := range payload.Weights {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" || weight <= 0 {
			continue
		}
		weights[symbol] = weight
	}

	return weights, nil
}
