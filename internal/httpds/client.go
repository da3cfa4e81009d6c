// Package httpds is a small HTTP datasource client shared by the archive
// fetcher and the REST destination. It carries a set of base headers applied
// to every request and leaves deadlines to the caller's context, since the
// long-running archive download has no timeout while probes and inserts do.
package httpds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Client wraps an http.Client with base headers.
type Client struct {
	httpClient  *http.Client
	baseHeaders http.Header
}

// NewClient constructs a Client. baseHeaders may be nil.
func NewClient(baseHeaders http.Header) *Client {
	hdr := http.Header{}
	for k, vs := range baseHeaders {
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}
	return &Client{
		httpClient:  &http.Client{},
		baseHeaders: hdr,
	}
}

// Do sends one request. There is no retry: transport failures surface
// directly to the caller. The returned body must be closed by the caller.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, headers http.Header) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("httpds: build request: %w", err)
	}
	for k, vs := range c.baseHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	// Per-request headers override base headers.
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	return c.httpClient.Do(req)
}

// Get is a convenience wrapper over Do for HTTP GET.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, nil)
}

// Post is a convenience wrapper over Do for HTTP POST.
func (c *Client) Post(ctx context.Context, url string, body []byte, headers http.Header) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, url, body, headers)
}
