package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// Client is a minimal Sui JSON-RPC 2.0 client covering the name service,
// object reads and coin listing.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	nextID     atomic.Int64
}

// NewClient creates a new Sui RPC client.
//
// rpcURL is the fullnode endpoint, e.g. "https://fullnode.mainnet.sui.io:443".
func NewClient(rpcURL string) *Client {
	return &Client{
		rpcURL: strings.TrimRight(rpcURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

var _ domain.NameService = (*Client)(nil)

// ResolveAddress returns the address a name record points to. A name without
// a target address yields domain.ErrNotFound.
func (c *Client) ResolveAddress(ctx context.Context, name string) (string, error) {
	var addr *string
	if err := c.call(ctx, "suix_resolveNameServiceAddress", []any{name}, &addr); err != nil {
		return "", fmt.Errorf("sui: resolve %s: %w", name, err)
	}
	if addr == nil || *addr == "" {
		return "", fmt.Errorf("sui: resolve %s: %w", name, domain.ErrNotFound)
	}
	norm, err := domain.NormalizeAddress(*addr)
	if err != nil {
		return "", fmt.Errorf("sui: resolve %s: %w", name, err)
	}
	return norm, nil
}

// ReverseResolve returns the names whose reverse record points at address.
func (c *Client) ReverseResolve(ctx context.Context, address string) ([]string, error) {
	var page NamesPage
	if err := c.call(ctx, "suix_resolveNameServiceNames", []any{address, nil, 10}, &page); err != nil {
		return nil, fmt.Errorf("sui: reverse resolve %s: %w", address, err)
	}
	return page.Data, nil
}

// GetObject reads an object with its owner and Move content.
func (c *Client) GetObject(ctx context.Context, id string) (ObjectData, error) {
	opts := map[string]bool{"showContent": true, "showOwner": true, "showType": true}
	var resp ObjectResponse
	if err := c.call(ctx, "sui_getObject", []any{id, opts}, &resp); err != nil {
		return ObjectData{}, fmt.Errorf("sui: get object %s: %w", id, err)
	}
	if resp.Error != nil || resp.Data == nil {
		return ObjectData{}, fmt.Errorf("sui: get object %s: %w", id, domain.ErrNotFound)
	}
	return *resp.Data, nil
}

// GetCoins lists the owner's coins of one type, following pagination up to
// limit coins.
func (c *Client) GetCoins(ctx context.Context, owner, coinType string, limit int) ([]CoinObject, error) {
	var (
		out    []CoinObject
		cursor *string
	)
	for {
		var page CoinPage
		if err := c.call(ctx, "suix_getCoins", []any{owner, coinType, cursor, 50}, &page); err != nil {
			return nil, fmt.Errorf("sui: get coins %s: %w", coinType, err)
		}
		out = append(out, page.Data...)
		if !page.HasNextPage || page.NextCursor == nil || (limit > 0 && len(out) >= limit) {
			break
		}
		cursor = page.NextCursor
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return err
	}

	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
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
