package bitflyer

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ratewatch/internal/models"
)

func TestFetchTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/ticker" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("product_code"); got != "BTC_JPY" {
			t.Errorf("product_code = %q", got)
		}
		w.Write([]byte(`{"best_ask": 5000100, "best_bid": 4999900, "ltp": 5000000}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, "", "")
	tk, err := c.Fetch(context.Background(), "BTC_JPY")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if tk.Ask == nil || *tk.Ask != 5000100 {
		t.Errorf("ask = %v", tk.Ask)
	}
	if tk.Bid == nil || *tk.Bid != 4999900 {
		t.Errorf("bid = %v", tk.Bid)
	}
	if tk.Last == nil || *tk.Last != 5000000 {
		t.Errorf("ltp = %v", tk.Last)
	}
}

func TestFetchTickerNullFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"best_ask": null, "best_bid": null, "ltp": 5000000}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, "", "")
	tk, err := c.Fetch(context.Background(), "BTC_JPY")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if tk.Ask != nil || tk.Bid != nil {
		t.Error("null fields must come out nil")
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, "", "")
	if _, err := c.Fetch(context.Background(), "BTC_JPY"); err == nil {
		t.Fatal("non-2xx status must surface as an error")
	}
}

func TestPrivateRequestSigning(t *testing.T) {
	const key, secret = "test-key", "test-secret"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("ACCESS-KEY"); got != key {
			t.Errorf("ACCESS-KEY = %q", got)
		}
		ts := r.Header.Get("ACCESS-TIMESTAMP")
		if ts == "" {
			t.Error("missing ACCESS-TIMESTAMP")
		}

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(ts + http.MethodGet + r.URL.RequestURI()))
		want := hex.EncodeToString(mac.Sum(nil))
		if got := r.Header.Get("ACCESS-SIGN"); got != want {
			t.Errorf("ACCESS-SIGN = %q, want %q", got, want)
		}

		w.Write([]byte(`[{"currency_code": "JPY", "amount": 100000}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, key, secret)
	entries, err := c.Balances(context.Background())
	if err != nil {
		t.Fatalf("Balances failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Currency != "JPY" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Amount == nil || *entries[0].Amount != 100000 {
		t.Fatalf("amount = %v", entries[0].Amount)
	}
}

func TestPrivateWithoutCredentials(t *testing.T) {
	c := New("http://unused", time.Second, "", "")
	if c.Authenticated() {
		t.Fatal("no credentials, Authenticated must be false")
	}
	if _, err := c.Balances(context.Background()); err == nil {
		t.Fatal("private call without credentials must fail")
	}
}

func TestExecutionsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("count"); got != "500" {
			t.Errorf("count = %q", got)
		}
		switch q.Get("before") {
		case "":
			w.Write([]byte(`[
				{"id": 300, "price": 5000000, "size": 0.1, "exec_date": "2026-08-30T01:00:00.123"},
				{"id": 200, "price": 4990000, "size": 0.2, "exec_date": "2026-08-30T00:00:00"}
			]`))
		case "200":
			w.Write([]byte(`[]`))
		default:
			t.Errorf("unexpected before = %q", q.Get("before"))
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, "k", "s")

	page, err := c.Executions(context.Background(), "BTC_JPY", models.Cursor{}, 500)
	if err != nil {
		t.Fatalf("Executions failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page length = %d", len(page))
	}
	if page[0].ID != 300 || page[1].ID != 200 {
		t.Fatalf("ids = %d, %d", page[0].ID, page[1].ID)
	}
	want := time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC)
	if !page[0].Time.Equal(want) {
		t.Fatalf("time = %v, want %v", page[0].Time, want)
	}

	next, err := c.Executions(context.Background(), "BTC_JPY", models.Cursor{ID: 200}, 500)
	if err != nil {
		t.Fatalf("Executions with cursor failed: %v", err)
	}
	if len(next) != 0 {
		t.Fatalf("expected empty page past the cursor, got %d", len(next))
	}
}
