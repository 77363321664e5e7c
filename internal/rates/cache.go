// Package rates holds the last observed snapshot per (site, instrument) and
// derives cross-rate values from it. The cache is both the backing store for
// the exported ticker series and the oracle used for unit conversion.
package rates

import (
	"sync"

	"ratewatch/internal/metrics"
	"ratewatch/internal/models"
)

// Field selects one component of a cached snapshot.
type Field int

const (
	FieldAsk Field = iota
	FieldBid
	FieldMid
	FieldLast
)

type cacheKey struct {
	site string
	code string
}

// Cache stores the latest snapshot per (site, code). Every update overwrites
// the whole snapshot; writers never merge fields across fetches. Updates are
// mirrored into the metric registry as a side effect so the exported series
// and the conversion oracle can never disagree.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]models.Ticker
	reg     *metrics.Registry
}

// NewCache returns an empty cache. reg may be nil in tests that only
// exercise the caching behaviour.
func NewCache(reg *metrics.Registry) *Cache {
	return &Cache{
		entries: make(map[cacheKey]models.Ticker),
		reg:     reg,
	}
}

// Update replaces the snapshot for (site, code) and publishes ask/bid/mid/ltp
// under the product's series. Mid is derived as (ask+bid)/2 when the venue
// did not report one and both sides are present. Non-finite inputs are
// treated as absent.
func (c *Cache) Update(site string, product models.Product, code string, tk models.Ticker) {
	tk.Ask = models.Sanitize(tk.Ask)
	tk.Bid = models.Sanitize(tk.Bid)
	tk.Mid = models.Sanitize(tk.Mid)
	tk.Last = models.Sanitize(tk.Last)

	if tk.Mid == nil && tk.Ask != nil && tk.Bid != nil {
		tk.Mid = models.Float((*tk.Ask + *tk.Bid) / 2)
	}

	c.mu.Lock()
	c.entries[cacheKey{site: site, code: code}] = tk
	c.mu.Unlock()

	if c.reg == nil {
		return
	}

	bbo := c.reg.BBO(product)
	metrics.SetOptional(bbo.WithLabelValues(site, code, metrics.LabelAsk), tk.Ask)
	metrics.SetOptional(bbo.WithLabelValues(site, code, metrics.LabelBid), tk.Bid)
	metrics.SetOptional(c.reg.Mid(product).WithLabelValues(site, code), tk.Mid)
	metrics.SetOptional(c.reg.LTP(product).WithLabelValues(site, code), tk.Last)
}

// Value returns the cached value of one field, or false when no snapshot
// exists or the field was absent in the latest one.
func (c *Cache) Value(site, code string, f Field) (float64, bool) {
	c.mu.RLock()
	tk, ok := c.entries[cacheKey{site: site, code: code}]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}

	var v *float64
	switch f {
	case FieldAsk:
		v = tk.Ask
	case FieldBid:
		v = tk.Bid
	case FieldMid:
		v = tk.Mid
	case FieldLast:
		v = tk.Last
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}
