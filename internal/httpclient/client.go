// Package httpclient is the shared transport for provider clients: one GET per
// call, a fixed timeout and failure classification into models.ErrorKind.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/models"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 32 << 20

// UserAgent is sent with every request.
var UserAgent = "Mozilla/5.0 (compatible; valuer/1.0)"

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
	}
}

// Request describes one provider GET.
type Request struct {
	Provider string
	Op       string
	URL      string
	// LogURL is logged instead of URL so credentials in query strings stay out of logs.
	LogURL   string
	Header   http.Header
}

// GetBody performs the request and returns the body of a 200 response.
// Non-200 statuses and transport failures are returned as *models.Error.
func GetBody(ctx context.Context, client *http.Client, logger arbor.ILogger, r Request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, models.NewError(models.KindNetwork, r.Op, fmt.Errorf("failed to create request: %w", err)).WithProvider(r.Provider)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9")
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if logger != nil {
		logger.Debug().Str("provider", r.Provider).Str("url", r.LogURL).Msg("Provider API request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, TransportError(r.Provider, r.Op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, TransportError(r.Provider, r.Op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, StatusError(r.Provider, r.Op, resp.StatusCode, body)
	}
	return body, nil
}

// GetJSON performs the request and decodes a JSON body into result.
func GetJSON(ctx context.Context, client *http.Client, logger arbor.ILogger, r Request, result interface{}) error {
	body, err := GetBody(ctx, client, logger, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return DecodeError(r.Provider, r.Op, err)
	}
	return nil
}

// StatusError classifies a non-200 response.
func StatusError(provider, op string, status int, body []byte) error {
	msg := string(body)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return models.Errorf(KindForStatus(status), op, "status %d: %s", status, msg).WithProvider(provider)
}

// KindForStatus maps an HTTP status to an error kind.
func KindForStatus(status int) models.ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusPaymentRequired:
		return models.KindAuthentication
	case status == http.StatusTooManyRequests:
		return models.KindRateLimit
	case status == http.StatusNotFound:
		return models.KindInvalidTicker
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return models.KindTimeout
	case status >= 500:
		return models.KindNetwork
	}
	return models.KindMalformedResponse
}

// TransportError classifies a failed round trip as TIMEOUT or NETWORK.
func TransportError(provider, op string, err error) error {
	kind := models.KindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = models.KindTimeout
	}
	return models.NewError(kind, op, err).WithProvider(provider)
}

// DecodeError classifies an unparseable body.
func DecodeError(provider, op string, err error) error {
	return models.NewError(models.KindMalformedResponse, op, fmt.Errorf("failed to decode response: %w", err)).WithProvider(provider)
}
