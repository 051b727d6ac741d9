package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/root-daemon/saveme/internal/domain"
)

// Default configuration values.
const (
	DefaultEndpoint = "https://pro-api.coinmarketcap.com/v1/cryptocurrency/listings/latest"
	DefaultTimeout  = 30 * time.Second

	apiKeyHeader = "X-CMC_PRO_API_KEY"
)

// Client fetches real-world reference quotes from a CoinMarketCap-style
// listings endpoint.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithEndpoint overrides the listings endpoint.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new listings client. apiKey may be empty; the
// upstream rejects the call and the caller falls back to canned quotes.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// listingsResponse is the upstream wire format.
type listingsResponse struct {
	Data []struct {
		ID     int    `json:"id"`
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
		Quote  struct {
			USD struct {
				Price            float64 `json:"price"`
				PercentChange24h float64 `json:"percent_change_24h"`
			} `json:"USD"`
		} `json:"quote"`
	} `json:"data"`
}

// Listings fetches the latest quotes.
func (c *Client) Listings(ctx context.Context) ([]domain.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build listings request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch listings: unexpected status %d", resp.StatusCode)
	}

	var body listingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	quotes := make([]domain.Quote, 0, len(body.Data))
	for _, d := range body.Data {
		quotes = append(quotes, domain.Quote{
			ID:               d.ID,
			Symbol:           d.Symbol,
			Name:             d.Name,
			PriceUSD:         d.Quote.USD.Price,
			PercentChange24h: d.Quote.USD.PercentChange24h,
		})
	}
	return quotes, nil
}

// FallbackQuotes returns the canned quotes served when the upstream
// call fails.
func FallbackQuotes() []domain.Quote {
	return []domain.Quote{
		{ID: 1, Symbol: "BTC", Name: "Bitcoin", PriceUSD: 45000, PercentChange24h: 2.5},
		{ID: 2, Symbol: "ETH", Name: "Ethereum", PriceUSD: 3000, PercentChange24h: 1.8},
		{ID: 3, Symbol: "LINK", Name: "Chainlink", PriceUSD: 15, PercentChange24h: -0.5},
		{ID: 4, Symbol: "DOT", Name: "Polkadot", PriceUSD: 20, PercentChange24h: 1.2},
	}
}
