// Package zaif maps the Zaif public ticker onto the normalized models.
package zaif

import (
	"context"
	"net/http"
	"net/url"
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
	var payload tickerPayload
	u := c.endpoint + "/api/1/ticker/" + url.PathEscape(code)
	if err := adapter.GetJSON(ctx, c.http, u, nil, &payload); err != nil {
		return models.Ticker{}, err
	}
	return models.Ticker{Ask: payload.Ask, Bid: payload.Bid, Last: payload.Last}, nil
}
