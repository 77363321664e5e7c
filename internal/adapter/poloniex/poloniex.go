// Package poloniex maps the Poloniex public ticker onto the normalized
// models. One request returns every market; the poller distributes the
// result across its instruments.
package poloniex

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
	LowestAsk  string `json:"lowestAsk"`
	HighestBid string `json:"highestBid"`
	Last       string `json:"last"`
}

// FetchAll returns tickers for the requested codes. Codes absent from the
// venue response are left out of the result.
func (c *Client) FetchAll(ctx context.Context, codes []string) (map[string]models.Ticker, error) {
	var payload map[string]tickerPayload
	u := c.endpoint + "/public?command=returnTicker"
	if err := adapter.GetJSON(ctx, c.http, u, nil, &payload); err != nil {
		return nil, err
	}

	out := make(map[string]models.Ticker, len(codes))
	for _, code := range codes {
		tick, ok := payload[code]
		if !ok {
			continue
		}
		out[code] = models.Ticker{
			Ask:  adapter.ParseFloat(tick.LowestAsk),
			Bid:  adapter.ParseFloat(tick.HighestBid),
			Last: adapter.ParseFloat(tick.Last),
		}
	}
	return out, nil
}
