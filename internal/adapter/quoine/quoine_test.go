package quoine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`[
			{"currency_pair_code": "BTCJPY", "market_ask": "5000100.0", "market_bid": "4999900.0", "last_traded_price": "5000000.0"},
			{"currency_pair_code": "ETHBTC", "market_ask": "0.051", "market_bid": "0.049", "last_traded_price": "0.050"},
			{"currency_pair_code": "XRPJPY", "market_ask": "50.0", "market_bid": "49.0", "last_traded_price": "49.5"}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ticks, err := c.FetchAll(context.Background(), []string{"BTCJPY", "ETHBTC", "BTCUSD"})
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	tk, ok := ticks["BTCJPY"]
	if !ok {
		t.Fatal("BTCJPY missing from result")
	}
	if tk.Ask == nil || *tk.Ask != 5000100 {
		t.Errorf("ask = %v", tk.Ask)
	}
	if tk.Last == nil || *tk.Last != 5000000 {
		t.Errorf("ltp = %v", tk.Last)
	}

	if _, ok := ticks["ETHBTC"]; !ok {
		t.Fatal("ETHBTC missing from result")
	}
	if _, ok := ticks["BTCUSD"]; ok {
		t.Fatal("unlisted code must be left out")
	}
	if _, ok := ticks["XRPJPY"]; ok {
		t.Fatal("unrequested code must be left out")
	}
}

func TestFetchAllMalformedPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"currency_pair_code": "BTCJPY", "market_ask": "", "market_bid": "n/a", "last_traded_price": "5000000.0"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ticks, err := c.FetchAll(context.Background(), []string{"BTCJPY"})
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	tk := ticks["BTCJPY"]
	if tk.Ask != nil || tk.Bid != nil {
		t.Error("unparseable prices must come out nil")
	}
	if tk.Last == nil || *tk.Last != 5000000 {
		t.Errorf("ltp = %v", tk.Last)
	}
}
