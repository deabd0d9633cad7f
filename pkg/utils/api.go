package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kerbaras/onepiece-offline/pkg/data"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0 Safari/537.36"

// maxBodySize bounds how much of a markup page is read into memory.
const maxBodySize = 32 << 20

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the response has a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// API is the shared HTTP client for the remote site and its image hosts. The
// per-request timeout is the only cancellation besides the caller's context.
type API struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

func NewAPI(baseURL, userAgent string, timeout time.Duration) *API {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &API{
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		userAgent: userAgent,
	}
}

// WithClient replaces the underlying http.Client.
func (a *API) WithClient(client *http.Client) *API {
	a.client = client
	return a
}

func (a *API) BaseURL() string {
	return a.baseURL
}

// URL joins path onto the base URL.
func (a *API) URL(path string) string {
	return fmt.Sprintf("%s%s", a.baseURL, path)
}

// Get fetches url and reads the whole body regardless of status. Only
// transport failures are returned as errors; status handling is left to the
// caller.
func (a *API) Get(ctx context.Context, url string) (*Response, error) {
	resp, err := a.do(ctx, url, "text/html,application/xhtml+xml,*/*")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, data.Transient(err, "read %s", url)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Stream fetches url and hands the body to fn. Non-2xx statuses are
// transient failures.
func (a *API) Stream(ctx context.Context, url string, fn func(contentType string, body io.Reader) error) error {
	resp, err := a.do(ctx, url, "image/*,*/*")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data.Transient(fmt.Errorf("bad status: %s", resp.Status), "get %s", url)
	}
	return fn(resp.Header.Get("Content-Type"), resp.Body)
}

func (a *API) do(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, data.Transient(err, "build request for %s", url)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", accept)
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, data.Transient(err, "get %s", url)
	}
	return resp, nil
}
