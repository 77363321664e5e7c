// Package bitflyer maps the bitFlyer REST API onto the normalized models.
// Public ticker fetches need no credentials; the account surface signs
// every request with the HMAC-SHA256 scheme of the venue.
package bitflyer

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ratewatch/internal/adapter"
	"ratewatch/internal/models"
)

const timeLayout = "2006-01-02T15:04:05"

// Client talks to one bitFlyer endpoint.
type Client struct {
	endpoint string
	key      string
	secret   string
	http     *http.Client
}

// New builds a client. key and secret may be empty for ticker-only use.
func New(endpoint string, timeout time.Duration, key, secret string) *Client {
	return &Client{
		endpoint: endpoint,
		key:      key,
		secret:   secret,
		http:     adapter.NewHTTPClient(timeout),
	}
}

// Authenticated reports whether private endpoints can be called.
func (c *Client) Authenticated() bool {
	return c.key != "" && c.secret != ""
}

type tickerPayload struct {
	Ask  *float64 `json:"best_ask"`
	Bid  *float64 `json:"best_bid"`
	Last *float64 `json:"ltp"`
}

// Fetch returns the public ticker of one product code.
func (c *Client) Fetch(ctx context.Context, code string) (models.Ticker, error) {
	var payload tickerPayload
	u := c.endpoint + "/v1/ticker?product_code=" + url.QueryEscape(code)
	if err := adapter.GetJSON(ctx, c.http, u, nil, &payload); err != nil {
		return models.Ticker{}, err
	}
	return models.Ticker{Ask: payload.Ask, Bid: payload.Bid, Last: payload.Last}, nil
}

// private performs a signed GET. path must include the query string, since
// it is part of the signature.
func (c *Client) private(ctx context.Context, path string, out interface{}) error {
	if !c.Authenticated() {
		return fmt.Errorf("credentials not configured")
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(timestamp + http.MethodGet + path))
	sign := hex.EncodeToString(mac.Sum(nil))

	headers := map[string]string{
		"ACCESS-KEY":       c.key,
		"ACCESS-TIMESTAMP": timestamp,
		"ACCESS-SIGN":      sign,
		"Content-Type":     "application/json",
	}
	return adapter.GetJSON(ctx, c.http, c.endpoint+path, headers, out)
}

type balancePayload struct {
	CurrencyCode string   `json:"currency_code"`
	Amount       *float64 `json:"amount"`
}

// Balances returns the cash balances of the account.
func (c *Client) Balances(ctx context.Context) ([]models.BalanceEntry, error) {
	var payload []balancePayload
	if err := c.private(ctx, "/v1/me/getbalance", &payload); err != nil {
		return nil, err
	}
	entries := make([]models.BalanceEntry, 0, len(payload))
	for _, b := range payload {
		if b.CurrencyCode == "" {
			continue
		}
		entries = append(entries, models.BalanceEntry{Currency: b.CurrencyCode, Amount: b.Amount})
	}
	return entries, nil
}

type collateralPayload struct {
	Collateral        *float64 `json:"collateral"`
	OpenPositionPnl   *float64 `json:"open_position_pnl"`
	RequireCollateral *float64 `json:"require_collateral"`
}

// Collateral returns the margin account summary.
func (c *Client) Collateral(ctx context.Context) (models.Collateral, error) {
	var payload collateralPayload
	if err := c.private(ctx, "/v1/me/getcollateral", &payload); err != nil {
		return models.Collateral{}, err
	}
	return models.Collateral{
		Deposited:  payload.Collateral,
		Unrealized: payload.OpenPositionPnl,
		Required:   payload.RequireCollateral,
	}, nil
}

// CollateralBalances returns the per-currency collateral accounts.
func (c *Client) CollateralBalances(ctx context.Context) ([]models.BalanceEntry, error) {
	var payload []balancePayload
	if err := c.private(ctx, "/v1/me/getcollateralaccounts", &payload); err != nil {
		return nil, err
	}
	entries := make([]models.BalanceEntry, 0, len(payload))
	for _, b := range payload {
		if b.CurrencyCode == "" {
			continue
		}
		entries = append(entries, models.BalanceEntry{Currency: b.CurrencyCode, Amount: b.Amount})
	}
	return entries, nil
}

type positionPayload struct {
	Side string   `json:"side"`
	Size *float64 `json:"size"`
	Pnl  *float64 `json:"pnl"`
}

// Positions returns the open positions of one product.
func (c *Client) Positions(ctx context.Context, code string) ([]models.Position, error) {
	var payload []positionPayload
	path := "/v1/me/getpositions?product_code=" + url.QueryEscape(code)
	if err := c.private(ctx, path, &payload); err != nil {
		return nil, err
	}
	positions := make([]models.Position, 0, len(payload))
	for _, p := range payload {
		if p.Side == "" {
			continue
		}
		positions = append(positions, models.Position{Side: p.Side, Size: p.Size, Unrealized: p.Pnl})
	}
	return positions, nil
}

type executionPayload struct {
	ID       int64    `json:"id"`
	Price    *float64 `json:"price"`
	Size     *float64 `json:"size"`
	ExecDate string   `json:"exec_date"`
}

// Executions returns one page of trade history older than the cursor,
// newest first. bitFlyer pages by numeric id via the before parameter.
func (c *Client) Executions(ctx context.Context, code string, before models.Cursor, limit int) ([]models.Execution, error) {
	path := fmt.Sprintf("/v1/me/getexecutions?count=%d&product_code=%s", limit, url.QueryEscape(code))
	if before.ID > 0 {
		path += "&before=" + strconv.FormatInt(before.ID, 10)
	}

	var payload []executionPayload
	if err := c.private(ctx, path, &payload); err != nil {
		return nil, err
	}

	execs := make([]models.Execution, 0, len(payload))
	for _, e := range payload {
		if e.ID == 0 || len(e.ExecDate) < len(timeLayout) {
			continue
		}
		// exec_date carries no zone; bitFlyer reports UTC.
		ts, err := time.Parse(timeLayout, e.ExecDate[:len(timeLayout)])
		if err != nil {
			continue
		}
		execs = append(execs, models.Execution{
			ID:    e.ID,
			Price: e.Price,
			Size:  e.Size,
			Time:  ts.UTC(),
		})
	}
	return execs, nil
}
