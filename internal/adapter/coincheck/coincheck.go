// Package coincheck maps the Coincheck public ticker onto the normalized
// models. The venue serves a single BTC/JPY ticker regardless of code.
package coincheck

import (
	"context"
	"net/http"
	"time"

	"ratewatch/internal/adapter"
	"ratewatch/internal/models"
)

type Client struct {
	endpoint string
	http     *http.Client
}

func New(endpoint string, timeout time.Duration) *Client {
	return &Client{endpoint: endpoint, http: adapter.NewHTTPClient(timeout)}
}

type tickerPayload struct {
	Ask  *float64 `json:"ask"`
	Bid  *float64 `json:"bid"`
	Last *float64 `json:"last"`
}

func (c *Client) Fetch(ctx context.Context, code string) (models.Ticker, error) {
	_ = code // single-instrument venue
	var payload tickerPayload
	if err := adapter.GetJSON(ctx, c.http, c.endpoint+"/api/ticker", nil, &payload); err != nil {
		return models.Ticker{}, err
	}
	return models.Ticker{Ask: payload.Ask, Bid: payload.Bid, Last: payload.Last}, nil
}
