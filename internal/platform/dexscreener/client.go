// Package dexscreener is the REST client for the DexScreener API, the
// market-data collaborator the poller reads market caps from.
//
// Documented rate limits: 300 requests/minute for pairs, search, and pools;
// 60 requests/minute for profile endpoints. The client enforces the pairs
// budget with a shared limiter so a large subscription set degrades into
// waiting instead of 429 responses.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.dexscreener.com"
	defaultTimeout = 10 * time.Second

	// MaxAddressesPerRequest is the API's ceiling on the batched pairs
	// lookup; the poller chunks its address lists to this size.
	MaxAddressesPerRequest = 30

	pairsPerMinute = 300
)

// Client talks to the DexScreener REST API with a bounded request timeout
// and a client-side rate limiter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, e.g. for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout overrides the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates a DexScreener client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(pairsPerMinute)/60, pairsPerMinute/10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPairsByToken returns the pairs for up to MaxAddressesPerRequest token
// addresses on one network.
func (c *Client) GetPairsByToken(ctx context.Context, network string, addresses []string) ([]Pair, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	if len(addresses) > MaxAddressesPerRequest {
		return nil, fmt.Errorf("dexscreener: at most %d addresses per request, got %d", MaxAddressesPerRequest, len(addresses))
	}

	path := fmt.Sprintf("/tokens/v1/%s/%s", url.PathEscape(network), strings.Join(addresses, ","))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: get pairs for %s: %w", network, err)
	}

	var pairs []Pair
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, fmt.Errorf("dexscreener: decode pairs: %w", err)
	}
	return pairs, nil
}

// SearchPairs searches pairs by token address, name, or symbol.
func (c *Client) SearchPairs(ctx context.Context, query string) ([]Pair, error) {
	path := "/latest/dex/search?q=" + url.QueryEscape(query)
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: search %q: %w", query, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener: decode search: %w", err)
	}
	return resp.Pairs, nil
}

// GetTokenPools returns all pools for a single token address.
func (c *Client) GetTokenPools(ctx context.Context, network, address string) ([]Pair, error) {
	path := fmt.Sprintf("/token-pairs/v1/%s/%s", url.PathEscape(network), url.PathEscape(address))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: get pools for %s: %w", address, err)
	}

	var pairs []Pair
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, fmt.Errorf("dexscreener: decode pools: %w", err)
	}
	return pairs, nil
}

// doGet waits for the rate limiter, performs the GET, and returns the body
// for 2xx responses.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body[:min(len(body), 256)])))
	}
	return body, nil
}
