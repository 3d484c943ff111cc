// Package alphavantage fetches statements, quotes and company overviews from
// the Alpha Vantage query API.
package alphavantage

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/httpclient"
	"github.com/ternarybob/valuer/internal/models"
)

// DefaultBaseURL is the Alpha Vantage query endpoint.
const DefaultBaseURL = "https://www.alphavantage.co/query"

// Client is an Alpha Vantage API client.
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

// NewClient creates a new Alpha Vantage client.
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

// query calls one API function. Alpha Vantage reports throttling and bad
// symbols with HTTP 200, so the body is inspected for those messages.
func (c *Client) query(ctx context.Context, function, symbol string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)

	var body map[string]interface{}
	err := httpclient.GetJSON(ctx, c.httpClient, c.logger, httpclient.Request{
		Provider: ProviderID,
		Op:       function,
		URL:      c.baseURL + "?" + params.Encode(),
		LogURL:   c.baseURL + "?function=" + function + "&symbol=" + symbol,
	}, &body)
	if err != nil {
		return nil, err
	}

	for _, key := range []string{"Note", "Information"} {
		if msg, ok := body[key].(string); ok {
			return nil, models.Errorf(classifyInformation(msg), function, "%s", msg).WithProvider(ProviderID)
		}
	}
	if msg, ok := body["Error Message"].(string); ok {
		return nil, models.Errorf(models.KindInvalidTicker, function, "%s", msg).WithProvider(ProviderID)
	}
	return body, nil
}

// classifyInformation maps a Note or Information message to a kind. Messages
// about the key that do not mention a limit are credential problems.
func classifyInformation(msg string) models.ErrorKind {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "call frequency") {
		return models.KindRateLimit
	}
	if strings.Contains(lower, "api key") || strings.Contains(lower, "apikey") {
		return models.KindAuthentication
	}
	return models.KindRateLimit
}

// AnnualReports returns the annualReports rows of a statement function.
func (c *Client) AnnualReports(ctx context.Context, function, symbol string) ([]map[string]interface{}, error) {
	body, err := c.query(ctx, function, symbol)
	if err != nil {
		return nil, err
	}
	raw, ok := body["annualReports"]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, models.Errorf(models.KindMalformedResponse, function, "annualReports is %T", raw).WithProvider(ProviderID)
	}
	rows := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if row, ok := item.(map[string]interface{}); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// GlobalQuote returns the "Global Quote" object.
func (c *Client) GlobalQuote(ctx context.Context, symbol string) (map[string]interface{}, error) {
	body, err := c.query(ctx, "GLOBAL_QUOTE", symbol)
	if err != nil {
		return nil, err
	}
	quote, _ := body["Global Quote"].(map[string]interface{})
	return quote, nil
}

// Overview returns the company overview object.
func (c *Client) Overview(ctx context.Context, symbol string) (map[string]interface{}, error) {
	return c.query(ctx, "OVERVIEW", symbol)
}
