package poller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ratewatch/internal/models"
	"ratewatch/internal/rates"
)

type fakeSource struct {
	mu    sync.Mutex
	ticks map[string]models.Ticker
	fails map[string]bool
	calls map[string]int
}

func (f *fakeSource) Fetch(ctx context.Context, code string) (models.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[code]++
	if f.fails[code] {
		return models.Ticker{}, fmt.Errorf("simulated failure for %s", code)
	}
	return f.ticks[code], nil
}

type fakeBatchSource struct {
	ticks map[string]models.Ticker
	err   error
}

func (f *fakeBatchSource) FetchAll(ctx context.Context, codes []string) (map[string]models.Ticker, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ticks, nil
}

func TestCycleFetchesEveryInstrument(t *testing.T) {
	src := &fakeSource{ticks: map[string]models.Ticker{
		"BTC_JPY": {Ask: models.Float(102), Bid: models.Float(98)},
		"ETH_BTC": {Ask: models.Float(0.051), Bid: models.Float(0.049)},
	}}
	cache := rates.NewCache(nil)
	p := New("bitflyer", time.Minute, time.Second, []Instrument{
		{Code: "BTC_JPY", Product: models.JPYBTC},
		{Code: "ETH_BTC", Product: models.BTCETH},
	}, src, cache)

	p.cycle(context.Background())

	if v, ok := cache.Value("bitflyer", "BTC_JPY", rates.FieldMid); !ok || v != 100 {
		t.Fatalf("BTC_JPY mid = %v (ok=%v), want 100", v, ok)
	}
	if _, ok := cache.Value("bitflyer", "ETH_BTC", rates.FieldAsk); !ok {
		t.Fatal("ETH_BTC should have been cached")
	}
	if src.calls["BTC_JPY"] != 1 || src.calls["ETH_BTC"] != 1 {
		t.Fatalf("calls = %v, want one per instrument", src.calls)
	}
}

func TestCycleIsolatesFailures(t *testing.T) {
	src := &fakeSource{
		ticks: map[string]models.Ticker{
			"ETH_BTC": {Last: models.Float(0.05)},
		},
		fails: map[string]bool{"BTC_JPY": true},
	}
	cache := rates.NewCache(nil)
	p := New("bitflyer", time.Minute, time.Second, []Instrument{
		{Code: "BTC_JPY", Product: models.JPYBTC},
		{Code: "ETH_BTC", Product: models.BTCETH},
	}, src, cache)

	p.cycle(context.Background())

	if _, ok := cache.Value("bitflyer", "BTC_JPY", rates.FieldLast); ok {
		t.Fatal("failed instrument must not reach the cache")
	}
	if v, ok := cache.Value("bitflyer", "ETH_BTC", rates.FieldLast); !ok || v != 0.05 {
		t.Fatalf("sibling instrument must still update, got %v (ok=%v)", v, ok)
	}
}

func TestCycleRetainsStaleSnapshot(t *testing.T) {
	src := &fakeSource{ticks: map[string]models.Ticker{
		"BTC_JPY": {Last: models.Float(100)},
	}}
	cache := rates.NewCache(nil)
	p := New("bitflyer", time.Minute, time.Second, []Instrument{
		{Code: "BTC_JPY", Product: models.JPYBTC},
	}, src, cache)

	p.cycle(context.Background())

	src.mu.Lock()
	src.fails = map[string]bool{"BTC_JPY": true}
	src.mu.Unlock()

	p.cycle(context.Background())

	if v, ok := cache.Value("bitflyer", "BTC_JPY", rates.FieldLast); !ok || v != 100 {
		t.Fatalf("stale snapshot must survive a failed fetch, got %v (ok=%v)", v, ok)
	}
}

func TestBatchCycle(t *testing.T) {
	src := &fakeBatchSource{ticks: map[string]models.Ticker{
		"USDT_BTC": {Last: models.Float(60000)},
	}}
	cache := rates.NewCache(nil)
	p := NewBatch("poloniex", time.Minute, time.Second, []Instrument{
		{Code: "USDT_BTC", Product: models.USDBTC},
		{Code: "BTC_ETH", Product: models.BTCETH},
	}, src, cache)

	p.cycle(context.Background())

	if v, ok := cache.Value("poloniex", "USDT_BTC", rates.FieldLast); !ok || v != 60000 {
		t.Fatalf("batch result not cached, got %v (ok=%v)", v, ok)
	}
	if _, ok := cache.Value("poloniex", "BTC_ETH", rates.FieldLast); ok {
		t.Fatal("instrument missing from batch must stay absent")
	}
}

func TestStartGuardsDoubleRun(t *testing.T) {
	src := &fakeSource{}
	p := New("bitflyer", 10*time.Millisecond, time.Second, nil, src, rates.NewCache(nil))

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Fatal("second Start must fail while running")
	}

	cancel()
	p.Stop()

	st := p.Status()
	if st.Running {
		t.Fatal("status must report stopped after Stop")
	}
	if st.Site != "bitflyer" {
		t.Fatalf("status site = %q", st.Site)
	}
}
