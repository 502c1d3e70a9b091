// Package invoice queries an upstream fiscal service for electronic
// invoice (NF-e) documents by access key. The upstream is outside our
// control; its outages surface as ErrUpstreamUnavailable so callers
// can degrade instead of failing the whole request.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidKey          = errors.New("invoice: access key must be exactly 44 digits")
	ErrNotFound            = errors.New("invoice: not found")
	ErrUpstreamUnavailable = errors.New("invoice: upstream service unavailable")
)

const accessKeyLength = 44

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ValidKey reports whether key is a syntactically valid NF-e access
// key: exactly 44 decimal digits.
func ValidKey(key string) bool {
	if len(key) != accessKeyLength {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Lookup fetches the raw NF-e XML document for the given access key.
// Network failures and upstream 5xx responses both map to
// ErrUpstreamUnavailable; a 404 maps to ErrNotFound.
func (c *Client) Lookup(ctx context.Context, key string) ([]byte, error) {
	if !ValidKey(key) {
		return nil, ErrInvalidKey
	}
	return c.fetch(ctx, fmt.Sprintf("/invoices/%s", url.PathEscape(key)), "application/xml")
}

// Danfe fetches the rendered DANFE (the printable invoice
// representation) as a PDF for the given access key.
func (c *Client) Danfe(ctx context.Context, key string) ([]byte, error) {
	if !ValidKey(key) {
		return nil, ErrInvalidKey
	}
	return c.fetch(ctx, fmt.Sprintf("/invoices/%s/danfe", url.PathEscape(key)), "application/pdf")
}

func (c *Client) fetch(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("invoice: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read invoice response: %w", err)
	}
	return body, nil
}
