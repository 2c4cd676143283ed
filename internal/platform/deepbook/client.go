// Package deepbook is a REST client for the DeepBook v3 indexer.
package deepbook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// Client talks to a DeepBook indexer, e.g.
// "https://deepbook-indexer.mainnet.mystenlabs.com".
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a new indexer client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

var _ domain.MarketData = (*Client)(nil)

// Pools lists every pool the indexer knows about.
func (c *Client) Pools(ctx context.Context) ([]Pool, error) {
	body, err := c.doGet(ctx, "/get_pools")
	if err != nil {
		return nil, fmt.Errorf("deepbook: get pools: %w", err)
	}
	var pools []Pool
	if err := json.Unmarshal(body, &pools); err != nil {
		return nil, fmt.Errorf("deepbook: decode pools: %w", err)
	}
	return pools, nil
}

// Depth returns up to levels price levels per side for the named pool.
func (c *Client) Depth(ctx context.Context, pool string, levels int) (domain.Depth, error) {
	if levels <= 0 {
		levels = 20
	}
	params := url.Values{}
	params.Set("level", "2")
	params.Set("depth", strconv.Itoa(levels))

	path := fmt.Sprintf("/orderbook/%s?%s", url.PathEscape(pool), params.Encode())
	body, err := c.doGet(ctx, path)
	if err != nil {
		return domain.Depth{}, fmt.Errorf("deepbook: orderbook %s: %w", pool, err)
	}

	var book Orderbook
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.Depth{}, fmt.Errorf("deepbook: decode orderbook %s: %w", pool, err)
	}
	depth, err := book.ToDomain(pool, c.now())
	if err != nil {
		return domain.Depth{}, fmt.Errorf("deepbook: orderbook %s: %w", pool, err)
	}
	return depth, nil
}

// MidPrice returns the mid of the best bid and ask for the pool.
func (c *Client) MidPrice(ctx context.Context, pool string) (decimal.Decimal, time.Time, error) {
	depth, err := c.Depth(ctx, pool, 1)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	mid := depth.Mid()
	if !mid.IsPositive() {
		return decimal.Zero, time.Time{}, fmt.Errorf("deepbook: %s: %w: empty book", pool, domain.ErrNotFound)
	}
	return mid, depth.Timestamp, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
