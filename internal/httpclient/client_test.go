package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/valuer/internal/models"
)

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"price": 12.5}`))
	}))
	defer srv.Close()

	var out struct {
		Price float64 `json:"price"`
	}
	err := GetJSON(context.Background(), NewDefaultHTTPClient(time.Second), nil, Request{
		Provider: "test",
		Op:       "quote",
		URL:      srv.URL,
		Header:   http.Header{"X-Test": []string{"yes"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 12.5, out.Price)
}

func TestGetJSON_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   models.ErrorKind
	}{
		{http.StatusUnauthorized, models.KindAuthentication},
		{http.StatusForbidden, models.KindAuthentication},
		{http.StatusTooManyRequests, models.KindRateLimit},
		{http.StatusNotFound, models.KindInvalidTicker},
		{http.StatusGatewayTimeout, models.KindTimeout},
		{http.StatusInternalServerError, models.KindNetwork},
		{http.StatusBadGateway, models.KindNetwork},
		{http.StatusBadRequest, models.KindMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			var out map[string]interface{}
			err := GetJSON(context.Background(), NewDefaultHTTPClient(time.Second), nil, Request{Provider: "p", Op: "op", URL: srv.URL}, &out)
			require.Error(t, err)
			assert.Equal(t, tt.want, models.KindOf(err))

			var me *models.Error
			require.True(t, errors.As(err, &me))
			assert.Equal(t, "p", me.Provider)
		})
	}
}

func TestGetJSON_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	var out map[string]interface{}
	err := GetJSON(context.Background(), NewDefaultHTTPClient(time.Second), nil, Request{Provider: "p", URL: srv.URL}, &out)
	assert.True(t, errors.Is(err, models.ErrMalformedResponse))
}

func TestGetBody_Timeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	defer close(done)

	_, err := GetBody(context.Background(), NewDefaultHTTPClient(50*time.Millisecond), nil, Request{Provider: "slow", URL: srv.URL})
	assert.Equal(t, models.KindTimeout, models.KindOf(err))
}

func TestGetBody_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := GetBody(context.Background(), NewDefaultHTTPClient(time.Second), nil, Request{Provider: "down", URL: url})
	assert.Equal(t, models.KindNetwork, models.KindOf(err))
}
