// Package metrics owns every exported series of the process.
//
// Series are created lazily, once per (category, denomination) key, and are
// never removed. Absent values are written as NaN so a series keeps its label
// set and consumers can tell "unknown" from "observed zero".
package metrics

import (
	"math"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ratewatch/internal/models"
)

const (
	LabelAsk = "ask"
	LabelBid = "bid"
)

type accountKey struct {
	account models.Account
	unit    models.Unit
}

// Registry wraps a private prometheus.Registry. It is constructed once at
// startup and shared by reference across all pollers; there is no package
// level state.
type Registry struct {
	mu  sync.Mutex
	reg *prometheus.Registry

	bbo     map[models.Product]*prometheus.GaugeVec
	mid     map[models.Product]*prometheus.GaugeVec
	ltp     map[models.Product]*prometheus.GaugeVec
	account map[accountKey]*prometheus.GaugeVec

	created int
}

// NewRegistry returns an empty registry with the standard process and Go
// runtime collectors attached.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Registry{
		reg:     reg,
		bbo:     make(map[models.Product]*prometheus.GaugeVec),
		mid:     make(map[models.Product]*prometheus.GaugeVec),
		ltp:     make(map[models.Product]*prometheus.GaugeVec),
		account: make(map[accountKey]*prometheus.GaugeVec),
	}
}

// BBO returns the best bid/offer gauge for a product, creating it on first
// use. Labels: site, product, type (ask|bid).
func (r *Registry) BBO(p models.Product) *prometheus.GaugeVec {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.bbo[p]
	if !ok {
		g = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ticker_bbo_" + p.String(),
			Help: "Best bid/offer price for " + p.String(),
		}, []string{"site", "product", "type"})
		r.reg.MustRegister(g)
		r.bbo[p] = g
		r.created++
	}
	return g
}

// Mid returns the mid price gauge for a product. Labels: site, product.
func (r *Registry) Mid(p models.Product) *prometheus.GaugeVec {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.mid[p]
	if !ok {
		g = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ticker_mid_" + p.String(),
			Help: "Mid price for " + p.String(),
		}, []string{"site", "product"})
		r.reg.MustRegister(g)
		r.mid[p] = g
		r.created++
	}
	return g
}

// LTP returns the last trade price gauge for a product. Labels: site, product.
func (r *Registry) LTP(p models.Product) *prometheus.GaugeVec {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.ltp[p]
	if !ok {
		g = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ticker_ltp_" + p.String(),
			Help: "Last trade price for " + p.String(),
		}, []string{"site", "product"})
		r.reg.MustRegister(g)
		r.ltp[p] = g
		r.created++
	}
	return g
}

// Account returns the account gauge for a (category, unit) pair.
// Labels: site, type, name.
func (r *Registry) Account(a models.Account, u models.Unit) *prometheus.GaugeVec {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := accountKey{account: a, unit: u}
	g, ok := r.account[key]
	if !ok {
		g = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "account_" + a.String() + "_" + u.String(),
			Help: "Account " + a.String() + " in " + u.String(),
		}, []string{"site", "type", "name"})
		r.reg.MustRegister(g)
		r.account[key] = g
		r.created++
	}
	return g
}

// Created reports how many vectors have been registered so far.
func (r *Registry) Created() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

// Handler exposes every registered series for pull-based scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for scrape-side inspection.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// SetOptional writes v to the gauge, or the NaN sentinel when v is nil.
func SetOptional(g prometheus.Gauge, v *float64) {
	if v == nil {
		g.Set(math.NaN())
		return
	}
	g.Set(*v)
}
