// Package bitfinex maps the Bitfinex v1 public ticker onto the normalized
// models. The venue encodes numbers as strings and reports its own mid, so
// no derivation happens downstream.
package bitfinex

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
	Ask  string `json:"ask"`
	Bid  string `json:"bid"`
	Mid  string `json:"mid"`
	Last string `json:"last_price"`
}

func (c *Client) Fetch(ctx context.Context, code string) (models.Ticker, error) {
	var payload tickerPayload
	u := c.endpoint + "/v1/pubticker/" + url.PathEscape(code)
	if err := adapter.GetJSON(ctx, c.http, u, nil, &payload); err != nil {
		return models.Ticker{}, err
	}
	return models.Ticker{
		Ask:  adapter.ParseFloat(payload.Ask),
		Bid:  adapter.ParseFloat(payload.Bid),
		Mid:  adapter.ParseFloat(payload.Mid),
		Last: adapter.ParseFloat(payload.Last),
	}, nil
}
