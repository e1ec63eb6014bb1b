// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog talks to the upstream author catalog (OpenAlex) and the
// country naming service.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/talent-harvester/internal/httputil"
	"github.com/pdiddy/talent-harvester/pkg/types"
)

// ErrUpstream marks a non-success response from an upstream service.
var ErrUpstream = errors.New("upstream error")

// Client is a rate-limited client for the OpenAlex API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        types.CatalogConfig
	maxRetries int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxRetries sets how many times a throttled request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// NewClient creates a catalog client from cfg. Zero-valued settings fall
// back to the package defaults.
func NewClient(cfg types.CatalogConfig, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = types.DefaultCatalogURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = types.DefaultRequestRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = types.DefaultTimeout
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = types.DefaultPerPage
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getJSON issues a GET against path with params and decodes the JSON body
// into out. Any non-200 status is reported as ErrUpstream.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}
	if c.cfg.Email != "" {
		params.Set("mailto", c.cfg.Email)
	}

	reqURL := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: OpenAlex API returned HTTP %d", ErrUpstream, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: parsing OpenAlex response: %v", ErrUpstream, err)
	}
	return nil
}

// StripID turns "https://openalex.org/A123" into "A123". Short ids are
// returned unchanged.
func StripID(id string) string {
	if !strings.HasPrefix(id, "http") {
		return id
	}
	u, err := url.Parse(id)
	if err != nil {
		return id
	}
	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
