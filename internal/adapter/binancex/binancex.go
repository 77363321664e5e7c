// Package binancex wraps the official Binance SDK behind the normalized
// ticker interface.
package binancex

import (
	"context"
	"fmt"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"ratewatch/internal/adapter"
	"ratewatch/internal/models"
)

type Client struct {
	sdk *binance.Client
}

// New builds a public-data client. endpoint overrides the SDK base URL when
// non-empty (test servers).
func New(endpoint string, timeout time.Duration) *Client {
	sdk := binance.NewClient("", "")
	if endpoint != "" {
		sdk.BaseURL = endpoint
	}
	sdk.HTTPClient = adapter.NewHTTPClient(timeout)
	return &Client{sdk: sdk}
}

// Fetch returns the book ticker and last price of one symbol.
func (c *Client) Fetch(ctx context.Context, code string) (models.Ticker, error) {
	books, err := c.sdk.NewListBookTickersService().Symbol(code).Do(ctx)
	if err != nil {
		return models.Ticker{}, fmt.Errorf("book ticker fetch failed: %w", err)
	}
	if len(books) == 0 {
		return models.Ticker{}, fmt.Errorf("no book ticker for %s", code)
	}

	tk := models.Ticker{
		Ask: adapter.ParseFloat(books[0].AskPrice),
		Bid: adapter.ParseFloat(books[0].BidPrice),
	}

	prices, err := c.sdk.NewListPricesService().Symbol(code).Do(ctx)
	if err != nil {
		return models.Ticker{}, fmt.Errorf("last price fetch failed: %w", err)
	}
	if len(prices) > 0 {
		tk.Last = adapter.ParseFloat(prices[0].Price)
	}

	return tk, nil
}
