// Package quoine maps the Quoine products listing onto the normalized
// models. One request returns every product; the poller distributes the
// result across its instruments. Prices arrive as strings.
package quoine

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

type productPayload struct {
	CurrencyPairCode string `json:"currency_pair_code"`
	MarketAsk        string `json:"market_ask"`
	MarketBid        string `json:"market_bid"`
	LastTradedPrice  string `json:"last_traded_price"`
}

// FetchAll returns tickers for the requested codes. Codes absent from the
// venue listing are left out of the result.
func (c *Client) FetchAll(ctx context.Context, codes []string) (map[string]models.Ticker, error) {
	var payload []productPayload
	if err := adapter.GetJSON(ctx, c.http, c.endpoint+"/products", nil, &payload); err != nil {
		return nil, err
	}

	listed := make(map[string]productPayload, len(payload))
	for _, p := range payload {
		if p.CurrencyPairCode == "" {
			continue
		}
		listed[p.CurrencyPairCode] = p
	}

	out := make(map[string]models.Ticker, len(codes))
	for _, code := range codes {
		p, ok := listed[code]
		if !ok {
			continue
		}
		out[code] = models.Ticker{
			Ask:  adapter.ParseFloat(p.MarketAsk),
			Bid:  adapter.ParseFloat(p.MarketBid),
			Last: adapter.ParseFloat(p.LastTradedPrice),
		}
	}
	return out, nil
}
