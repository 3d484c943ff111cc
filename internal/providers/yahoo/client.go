// Package yahoo reads quotes and annual statements from the public Yahoo
// Finance quoteSummary endpoint. No API key is needed.
package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/httpclient"
	"github.com/ternarybob/valuer/internal/models"
)

// DefaultBaseURL is the quoteSummary host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Client is a Yahoo Finance quoteSummary client.
type Client struct {
	baseURL    string
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

// NewClient creates a new Yahoo client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: httpclient.NewDefaultHTTPClient(httpclient.DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Module is one quoteSummary section keyed by module name.
type Module map[string]interface{}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []map[string]Module `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// QuoteSummary fetches the named modules for symbol in one request.
func (c *Client) QuoteSummary(ctx context.Context, symbol string, modules ...string) (map[string]Module, error) {
	path := "/v10/finance/quoteSummary/" + url.PathEscape(symbol)
	params := url.Values{}
	params.Set("modules", strings.Join(modules, ","))

	var resp quoteSummaryResponse
	err := httpclient.GetJSON(ctx, c.httpClient, c.logger, httpclient.Request{
		Provider: ProviderID,
		Op:       "quoteSummary",
		URL:      c.baseURL + path + "?" + params.Encode(),
		LogURL:   c.baseURL + path,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if e := resp.QuoteSummary.Error; e != nil {
		kind := models.KindMalformedResponse
		if e.Code == "Not Found" {
			kind = models.KindInvalidTicker
		}
		return nil, models.NewError(kind, "quoteSummary", fmt.Errorf("%s: %s", e.Code, e.Description)).WithProvider(ProviderID)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, nil
	}
	return resp.QuoteSummary.Result[0], nil
}
