// Package bridge posts JSON queries to the CMS web bridges (DCS, OMS) and decodes
// their JSON answers.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout matches the server-side limit of the DCS bridge for a full batch.
const DefaultTimeout = 300 * time.Second

// Client handles bridge HTTP requests over a pooled transport.
type Client struct {
	url        string
	httpClient *http.Client
	bufferPool sync.Pool
}

// NewClient creates a client for url. A non-positive timeout selects DefaultTimeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout: 10 * time.Second,

		// the bridges answer only once the archive query has finished
		ResponseHeaderTimeout: timeout,
	}

	return NewClientWithHTTP(url, &http.Client{
		Timeout:   timeout,
		Transport: transport,
	})
}

// NewClientWithHTTP wraps an existing http.Client, e.g. one returned by httptest.
func NewClientWithHTTP(url string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		url:        url,
		httpClient: hc,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 4096))
			},
		},
	}
}

// URL returns the bridge endpoint.
func (c *Client) URL() string {
	return c.url
}

// StatusError is returned for non-2xx bridge answers.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bridge %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// PostJSON encodes payload, posts it and decodes the answer into out. out may be nil.
func (c *Client) PostJSON(ctx context.Context, payload, out interface{}) error {
	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return fmt.Errorf("failed to marshal bridge query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("failed to build bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{URL: c.url, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode bridge response: %w", err)
	}
	return nil
}
