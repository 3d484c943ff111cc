// Package eodhd provides a client for the EODHD (End of Day Historical Data)
// API and adapts it to the DataProvider contract.
package eodhd

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/httpclient"
)

const (
	// DefaultBaseURL is the base URL for the EODHD API.
	DefaultBaseURL = "https://eodhd.com/api"

	// fundamentalsCallCost is what EODHD bills for one fundamentals request.
	fundamentalsCallCost = 10
)

// Client is an EODHD API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new EODHD API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: httpclient.NewDefaultHTTPClient(httpclient.DefaultTimeout),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get performs a GET request to the API.
func (c *Client) get(ctx context.Context, op, path string, result interface{}) error {
	params := url.Values{}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	return httpclient.GetJSON(ctx, c.httpClient, c.logger, httpclient.Request{
		Provider: ProviderID,
		Op:       op,
		URL:      c.baseURL + path + "?" + params.Encode(),
		LogURL:   c.baseURL + path,
	}, result)
}

// GetFundamentals retrieves fundamental data for a symbol.
// Symbol format: TICKER.EXCHANGE (e.g., "AAPL.US", "BHP.AU")
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*FundamentalsResponse, error) {
	var result FundamentalsResponse
	if err := c.get(ctx, "fundamentals", "/fundamentals/"+url.PathEscape(symbol), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRealTimeQuote retrieves the latest (delayed) quote for a symbol.
func (c *Client) GetRealTimeQuote(ctx context.Context, symbol string) (*Quote, error) {
	var result Quote
	if err := c.get(ctx, "real-time", "/real-time/"+url.PathEscape(symbol), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
