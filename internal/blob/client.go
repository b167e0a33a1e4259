// Package blob is the HTTP client for the external key/value object store.
// The store is addressed by path and only supports put, prefix-scan list,
// delete, and plain content fetch of a returned URL; there are no secondary
// indices.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultRequestTimeout = 5 * time.Second

	maxErrorBodyBytes = 2048
	maxFetchBodyBytes = 4 * 1024 * 1024
)

var (
	// ErrRateLimited signals an HTTP 429 from the store. Multi-entry scans
	// abort early on it instead of retrying.
	ErrRateLimited = errors.New("blob store rate limited")

	// ErrNotFound signals an HTTP 404 for a path or content URL.
	ErrNotFound = errors.New("blob not found")
)

// Options configures the store client.
type Options struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

// PutOptions mirrors the store's write parameters.
type PutOptions struct {
	ContentType string
	Access      string
	Overwrite   bool
}

// PutResult carries the content URL assigned by the store.
type PutResult struct {
	URL string `json:"url"`
}

// Item is one entry of a prefix scan.
type Item struct {
	Path       string    `json:"path"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// ListPage is one cursor-delimited page of a prefix scan.
type ListPage struct {
	Items      []Item `json:"items"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor"`
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("blob store base URL is required")
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("blob store token is required")
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		timeout:    timeout,
		httpClient: httpClient,
	}, nil
}

// Put stores body under path and returns the assigned content URL.
func (c *Client) Put(ctx context.Context, path string, body []byte, opts PutOptions) (PutResult, error) {
	cleanPath := strings.TrimLeft(strings.TrimSpace(path), "/")
	if cleanPath == "" {
		return PutResult{}, fmt.Errorf("blob path is required")
	}

	query := url.Values{}
	if opts.Access != "" {
		query.Set("access", opts.Access)
	}
	if opts.Overwrite {
		query.Set("overwrite", "1")
	}

	endpoint := c.baseURL + "/objects/" + escapePath(cleanPath)
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return PutResult{}, fmt.Errorf("build put request: %w", err)
	}
	c.authorize(req)
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PutResult{}, fmt.Errorf("put %s: %w", cleanPath, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return PutResult{}, fmt.Errorf("put %s: %w", cleanPath, err)
	}

	var result PutResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return PutResult{}, fmt.Errorf("decode put response for %s: %w", cleanPath, err)
	}
	if strings.TrimSpace(result.URL) == "" {
		return PutResult{}, fmt.Errorf("put %s: store returned no content URL", cleanPath)
	}
	return result, nil
}

// List returns one page of entries under prefix, continuing from cursor.
func (c *Client) List(ctx context.Context, prefix string, limit int, cursor string) (ListPage, error) {
	query := url.Values{}
	if prefix != "" {
		query.Set("prefix", prefix)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	endpoint := c.baseURL + "/objects"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ListPage{}, fmt.Errorf("build list request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ListPage{}, fmt.Errorf("list prefix %q: %w", prefix, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return ListPage{}, fmt.Errorf("list prefix %q: %w", prefix, err)
	}

	var page ListPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return ListPage{}, fmt.Errorf("decode list response: %w", err)
	}
	return page, nil
}

// Delete removes the object at path. A missing object is reported as
// ErrNotFound so callers can decide whether absence matters.
func (c *Client) Delete(ctx context.Context, path string) error {
	cleanPath := strings.TrimLeft(strings.TrimSpace(path), "/")
	if cleanPath == "" {
		return fmt.Errorf("blob path is required")
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodDelete, c.baseURL+"/objects/"+escapePath(cleanPath), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", cleanPath, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return fmt.Errorf("delete %s: %w", cleanPath, err)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Fetch retrieves object content through its store-assigned URL with
// cache-busting headers, so a just-updated record is never served stale.
func (c *Client) Fetch(ctx context.Context, contentURL string) ([]byte, error) {
	trimmed := strings.TrimSpace(contentURL)
	if trimmed == "" {
		return nil, fmt.Errorf("content URL is required")
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, trimmed, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", trimmed, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", trimmed, err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read fetch body: %w", err)
	}
	return body, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	text := strings.TrimSpace(string(snippet))
	if text == "" {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, text)
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
