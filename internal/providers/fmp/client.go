// Package fmp fetches quotes, profiles and annual statements from Financial
// Modeling Prep.
package fmp

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/httpclient"
)

// DefaultBaseURL is the FMP v3 API root.
const DefaultBaseURL = "https://financialmodelingprep.com/api/v3"

// Client is a Financial Modeling Prep API client.
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
			c.baseURL = baseURL
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

// NewClient creates a new FMP client.
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

// Row is one JSON object from an FMP list endpoint.
type Row map[string]interface{}

// list fetches an endpoint that answers with a JSON array.
func (c *Client) list(ctx context.Context, op, path string, extra url.Values) ([]Row, error) {
	params := url.Values{}
	for k, v := range extra {
		params[k] = v
	}
	params.Set("apikey", c.apiKey)

	var rows []Row
	err := httpclient.GetJSON(ctx, c.httpClient, c.logger, httpclient.Request{
		Provider: ProviderID,
		Op:       op,
		URL:      c.baseURL + path + "?" + params.Encode(),
		LogURL:   c.baseURL + path,
	}, &rows)
	return rows, err
}

// Quote returns the quote row for symbol, or nil when FMP has none.
func (c *Client) Quote(ctx context.Context, symbol string) (Row, error) {
	rows, err := c.list(ctx, "quote", "/quote/"+url.PathEscape(symbol), nil)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Profile returns the company profile row for symbol, or nil when FMP has none.
func (c *Client) Profile(ctx context.Context, symbol string) (Row, error) {
	rows, err := c.list(ctx, "profile", "/profile/"+url.PathEscape(symbol), nil)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Statement returns up to limit annual rows of one statement endpoint,
// e.g. "income-statement" or "cash-flow-statement".
func (c *Client) Statement(ctx context.Context, statement, symbol string, limit int) ([]Row, error) {
	params := url.Values{}
	params.Set("period", "annual")
	params.Set("limit", strconv.Itoa(limit))
	return c.list(ctx, statement, "/"+statement+"/"+url.PathEscape(symbol), params)
}
