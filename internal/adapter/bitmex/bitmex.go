// Package bitmex maps the BitMEX REST API onto the normalized models.
// Quotes are public; the account surface signs every request with the
// api-key/api-nonce/api-signature scheme. Monetary amounts come back in
// satoshi and are rescaled to BTC. Position and history endpoints accept
// contract aliases such as "XBT:quarterly", resolved against the venue's
// active instrument listing.
package bitmex

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"ratewatch/internal/adapter"
	"ratewatch/internal/models"
)

const (
	satoshi    = 0.00000001
	timeLayout = "2006-01-02T15:04:05"
)

// Client talks to one BitMEX endpoint.
type Client struct {
	endpoint string
	key      string
	secret   string
	http     *http.Client

	mu          sync.Mutex
	aliases     map[string]string
	aliasExpiry time.Time
}

// New builds a client. key and secret may be empty for quote-only use.
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

type quotePayload struct {
	Symbol string   `json:"symbol"`
	Ask    *float64 `json:"askPrice"`
	Bid    *float64 `json:"bidPrice"`
}

// Fetch returns the latest quote of one symbol.
func (c *Client) Fetch(ctx context.Context, code string) (models.Ticker, error) {
	u := c.endpoint + "/api/v1/quote?count=1&reverse=true&symbol=" + url.QueryEscape(code)

	var payload []quotePayload
	if err := adapter.GetJSON(ctx, c.http, u, nil, &payload); err != nil {
		return models.Ticker{}, err
	}

	for _, q := range payload {
		if q.Symbol != code {
			continue
		}
		return models.Ticker{Ask: q.Ask, Bid: q.Bid}, nil
	}
	return models.Ticker{}, fmt.Errorf("no quote for %s", code)
}

// private performs a signed GET. path must include the query string, since
// it is part of the signature.
func (c *Client) private(ctx context.Context, path string, out interface{}) error {
	if !c.Authenticated() {
		return fmt.Errorf("credentials not configured")
	}

	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(http.MethodGet + path + nonce))
	sign := hex.EncodeToString(mac.Sum(nil))

	headers := map[string]string{
		"api-key":       c.key,
		"api-nonce":     nonce,
		"api-signature": sign,
		"Accept":        "application/json",
	}
	return adapter.GetJSON(ctx, c.http, c.endpoint+path, headers, out)
}

type aliasPayload struct {
	Intervals []string `json:"intervals"`
	Symbols   []string `json:"symbols"`
}

// resolveSymbol maps a contract alias ("XBT:quarterly") to the concrete
// symbol currently trading under it. Plain symbols pass through unchanged.
// The listing is cached for a minute; aliases change at contract rollover,
// not per cycle.
func (c *Client) resolveSymbol(ctx context.Context, code string) (string, error) {
	if !strings.Contains(code, ":") {
		return code, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().After(c.aliasExpiry) {
		var payload aliasPayload
		if err := c.private(ctx, "/api/v1/instrument/activeIntervals", &payload); err != nil {
			return "", err
		}
		aliases := make(map[string]string, len(payload.Intervals))
		for i, alias := range payload.Intervals {
			if i < len(payload.Symbols) {
				aliases[alias] = payload.Symbols[i]
			}
		}
		c.aliases = aliases
		c.aliasExpiry = time.Now().Add(time.Minute)
	}

	symbol, ok := c.aliases[code]
	if !ok {
		return "", fmt.Errorf("no active symbol for %s", code)
	}
	return symbol, nil
}

// Balances is not a BitMEX concept; all funds live in the margin account.
func (c *Client) Balances(ctx context.Context) ([]models.BalanceEntry, error) {
	return nil, nil
}

// CollateralBalances is not a BitMEX concept.
func (c *Client) CollateralBalances(ctx context.Context) ([]models.BalanceEntry, error) {
	return nil, nil
}

type marginPayload struct {
	Currency      string   `json:"currency"`
	WalletBalance *float64 `json:"walletBalance"`
	UnrealisedPnl *float64 `json:"unrealisedPnl"`
	ExcessMargin  *float64 `json:"excessMargin"`
}

// Collateral returns the XBt margin summary rescaled to BTC. The excess
// margin figure fills the third summary slot.
func (c *Client) Collateral(ctx context.Context) (models.Collateral, error) {
	var payload []marginPayload
	if err := c.private(ctx, "/api/v1/user/margin?currency=all", &payload); err != nil {
		return models.Collateral{}, err
	}

	for _, m := range payload {
		if m.Currency != "XBt" {
			continue
		}
		return models.Collateral{
			Deposited:  fromSatoshi(m.WalletBalance),
			Unrealized: fromSatoshi(m.UnrealisedPnl),
			Required:   fromSatoshi(m.ExcessMargin),
		}, nil
	}
	return models.Collateral{}, nil
}

type positionPayload struct {
	Symbol        string   `json:"symbol"`
	CurrentQty    *float64 `json:"currentQty"`
	UnrealisedPnl *float64 `json:"unrealisedPnl"`
}

// Positions returns the open position of one contract alias. BitMEX
// reports a single signed quantity per symbol; the sign becomes the side.
func (c *Client) Positions(ctx context.Context, code string) ([]models.Position, error) {
	symbol, err := c.resolveSymbol(ctx, code)
	if err != nil {
		return nil, err
	}

	var payload []positionPayload
	if err := c.private(ctx, "/api/v1/position", &payload); err != nil {
		return nil, err
	}

	for _, p := range payload {
		if p.Symbol != symbol || p.CurrentQty == nil {
			continue
		}
		side := "BUY"
		qty := *p.CurrentQty
		if qty < 0 {
			side = "SELL"
			qty = -qty
		}
		return []models.Position{{
			Side:       side,
			Size:       models.Float(qty),
			Unrealized: fromSatoshi(p.UnrealisedPnl),
		}}, nil
	}
	return nil, nil
}

type executionPayload struct {
	Symbol       string   `json:"symbol"`
	LastQty      *float64 `json:"lastQty"`
	TransactTime string   `json:"transactTime"`
}

// Executions returns one page of trade history older than the cursor,
// newest first. BitMEX pages by timestamp via the endTime parameter, and
// reports plain contract quantities, so Price stays nil.
func (c *Client) Executions(ctx context.Context, code string, before models.Cursor, limit int) ([]models.Execution, error) {
	symbol, err := c.resolveSymbol(ctx, code)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/api/v1/execution/tradeHistory?count=%d&reverse=true&symbol=%s", limit, url.QueryEscape(symbol))
	if !before.Time.IsZero() {
		path += "&endTime=" + url.QueryEscape(before.Time.UTC().Format(timeLayout))
	}

	var payload []executionPayload
	if err := c.private(ctx, path, &payload); err != nil {
		return nil, err
	}

	execs := make([]models.Execution, 0, len(payload))
	for _, e := range payload {
		if e.LastQty == nil || len(e.TransactTime) < len(timeLayout) {
			continue
		}
		// transactTime carries no zone; BitMEX reports UTC.
		ts, err := time.Parse(timeLayout, e.TransactTime[:len(timeLayout)])
		if err != nil {
			continue
		}
		execs = append(execs, models.Execution{
			Size: e.LastQty,
			Time: ts.UTC(),
		})
	}
	return execs, nil
}

func fromSatoshi(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return models.Float(*v * satoshi)
}
