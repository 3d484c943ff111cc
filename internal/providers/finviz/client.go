// Package finviz scrapes the snapshot table of the Finviz quote page. It only
// covers US listings and has no statements.
package finviz

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/httpclient"
	"github.com/ternarybob/valuer/internal/models"
)

// DefaultBaseURL is the Finviz site root.
const DefaultBaseURL = "https://finviz.com"

// Client fetches and parses Finviz quote pages.
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

// NewClient creates a new Finviz client.
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

// Snapshot is the parsed quote page: label/value cells plus the company name.
type Snapshot struct {
	Company string
	Fields  map[string]string
}

// Quote fetches the quote page for symbol and parses its snapshot table.
func (c *Client) Quote(ctx context.Context, symbol string) (*Snapshot, error) {
	params := url.Values{}
	params.Set("t", symbol)
	params.Set("p", "d")
	pageURL := c.baseURL + "/quote.ashx?" + params.Encode()

	body, err := httpclient.GetBody(ctx, c.httpClient, c.logger, httpclient.Request{
		Provider: ProviderID,
		Op:       "quote",
		URL:      pageURL,
		LogURL:   pageURL,
		Header:   http.Header{"Accept": []string{"text/html"}},
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, httpclient.DecodeError(ProviderID, "quote", err)
	}
	return parseSnapshot(doc), nil
}

// parseSnapshot reads alternating label and value cells of the snapshot table.
func parseSnapshot(doc *goquery.Document) *Snapshot {
	snap := &Snapshot{Fields: map[string]string{}}

	doc.Find("table.snapshot-table2 tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		for i := 0; i+1 < cells.Length(); i += 2 {
			label := strings.TrimSpace(cells.Eq(i).Text())
			value := strings.TrimSpace(cells.Eq(i + 1).Text())
			if label == "" {
				continue
			}
			if _, seen := snap.Fields[label]; !seen {
				snap.Fields[label] = value
			}
		}
	})

	snap.Company = strings.TrimSpace(doc.Find(".quote-header_ticker-wrapper_company").First().Text())
	if snap.Company == "" {
		snap.Company = strings.TrimSpace(doc.Find("h2 a.tab-link").First().Text())
	}
	return snap
}

// notFound reports whether the page is Finviz's soft "ticker not found" page.
func (s *Snapshot) notFound() bool {
	return len(s.Fields) == 0
}

var errNotUS = models.Errorf(models.KindInvalidTicker, "quote", "finviz covers US listings only")
