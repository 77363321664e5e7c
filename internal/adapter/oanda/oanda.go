// Package oanda maps the OANDA v1 prices API onto the normalized models.
// One bearer-authenticated request covers every tracked instrument; halted
// instruments are treated as missing.
package oanda

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ratewatch/internal/adapter"
	"ratewatch/internal/models"
)

type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

func New(endpoint string, timeout time.Duration, token string) *Client {
	return &Client{endpoint: endpoint, token: token, http: adapter.NewHTTPClient(timeout)}
}

type pricePayload struct {
	Instrument string   `json:"instrument"`
	Status     string   `json:"status"`
	Ask        *float64 `json:"ask"`
	Bid        *float64 `json:"bid"`
}

type pricesPayload struct {
	Prices []pricePayload `json:"prices"`
}

// FetchAll returns prices for the requested codes. Halted or unreported
// instruments are left out of the result.
func (c *Client) FetchAll(ctx context.Context, codes []string) (map[string]models.Ticker, error) {
	if c.token == "" {
		return nil, fmt.Errorf("token not configured")
	}

	u := c.endpoint + "/v1/prices?instruments=" + url.QueryEscape(strings.Join(codes, ","))
	headers := map[string]string{"Authorization": "Bearer " + c.token}

	var payload pricesPayload
	if err := adapter.GetJSON(ctx, c.http, u, headers, &payload); err != nil {
		return nil, err
	}

	out := make(map[string]models.Ticker, len(codes))
	for _, price := range payload.Prices {
		if price.Status == "halted" || price.Instrument == "" {
			continue
		}
		out[price.Instrument] = models.Ticker{Ask: price.Ask, Bid: price.Bid}
	}
	return out, nil
}
