// Package quotefeed provides a Go SDK for the quotefeed-server HTTP API.
package quotefeed

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

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Quote is one price point as served by the API. Origin is "live" for
// samples derived from upstream market data and "synthetic" for fabricated
// fallback data.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
	Volume    uint64  `json:"volume"`
	Timestamp int64   `json:"timestamp"`
	Origin    string  `json:"origin"`
}

// Time returns the quote timestamp as a time.Time.
func (q Quote) Time() time.Time {
	return time.UnixMilli(q.Timestamp)
}

// Client provides access to the quotefeed-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new quotefeed API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetQuote retrieves the current cached quote for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	var q Quote
	err := c.get(ctx, "/api/quote/"+url.PathEscape(symbol), &q)
	return q, err
}

// GetQuotes retrieves the cached quote for every active symbol.
func (c *Client) GetQuotes(ctx context.Context) ([]Quote, error) {
	var resp struct {
		Quotes []Quote `json:"quotes"`
	}
	if err := c.get(ctx, "/api/quotes", &resp); err != nil {
		return nil, err
	}
	return resp.Quotes, nil
}

// GetSymbols retrieves the symbols with an active poll loop.
func (c *Client) GetSymbols(ctx context.Context) ([]string, error) {
	var resp struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.get(ctx, "/api/symbols", &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// GetHistory retrieves recorded quotes for a symbol within [start, end].
// Zero times leave the corresponding bound at the server default.
func (c *Client) GetHistory(ctx context.Context, symbol string, start, end time.Time) ([]Quote, error) {
	path := "/api/history/" + url.PathEscape(symbol)
	params := url.Values{}
	if !start.IsZero() {
		params.Set("start", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		params.Set("end", strconv.FormatInt(end.UnixMilli(), 10))
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Symbol  string  `json:"symbol"`
		Samples []Quote `json:"samples"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Samples, nil
}

// Stream opens a websocket subscription for the symbol and invokes onQuote
// for every sample the server pushes, until ctx is cancelled or the
// connection fails. Holding a stream open keeps the symbol polling
// server-side.
func (c *Client) Stream(ctx context.Context, symbol string, onQuote func(Quote)) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/stream/" + url.PathEscape(symbol)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		var q Quote
		if err := wsjson.Read(ctx, conn, &q); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		onQuote(q)
	}
}

// Watch asks the server to keep the symbol polling.
func (c *Client) Watch(ctx context.Context, symbol string) error {
	return c.do(ctx, http.MethodPost, "/api/watch/"+url.PathEscape(symbol))
}

// Unwatch releases a server-held watch for the symbol.
func (c *Client) Unwatch(ctx context.Context, symbol string) error {
	return c.do(ctx, http.MethodDelete, "/api/watch/"+url.PathEscape(symbol))
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) do(ctx context.Context, method, path string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return apiError(resp)
	}
	return nil
}

// apiError extracts the server's JSON error message when present.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, payload.Error)
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}
