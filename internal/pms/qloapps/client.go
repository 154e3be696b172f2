package qloapps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/mhdraihanr/loyalinn-pms/internal/pms"
)

// Client is the subset of the QloApps webservice used by the adapter.
// Defining it as an interface allows fake injection in tests.
type Client interface {
	// Get fetches /api/{resource} with output_format=JSON plus query and
	// decodes the body into out.
	Get(ctx context.Context, resource string, query url.Values, out any) error
}

// httpClient talks to the PrestaShop webservice with HTTP Basic auth, where
// the API key is the username and the password is empty.
type httpClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

func newHTTPClient(baseURL, apiKey string, hc *http.Client, limiter *rate.Limiter, timeout time.Duration) *httpClient {
	if hc == nil {
		hc = &http.Client{}
	}
	return &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      hc,
		limiter: limiter,
		timeout: timeout,
	}
}

func (c *httpClient) Get(ctx context.Context, resource string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("output_format", "JSON")
	endpoint := c.baseURL + "/api/" + strings.TrimLeft(resource, "/") + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pms.Permanent(fmt.Errorf("%w: create request: %w", pms.ErrIntegration, err))
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %w", pms.ErrIntegration, resource, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &pms.StatusError{Method: http.MethodGet, URL: c.baseURL + "/api/" + resource, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", pms.ErrIntegration, resource, err)
	}
	// An empty listing comes back as a bare [] instead of an object.
	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("[]")) {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return pms.Permanent(fmt.Errorf("%w: decode %s: %w", pms.ErrIntegration, resource, err))
	}
	return nil
}
