// Package poller runs one fetch loop per market-data source.
//
// Each cycle fans out one fetch per tracked instrument, waits for every
// fetch to settle, then sleeps the configured interval. The sleep starts
// after the cycle has joined, so effective cadence is cycle time plus
// interval. A failed fetch keeps the previously cached snapshot; only a
// successful fetch overwrites.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ratewatch/internal/models"
	"ratewatch/internal/rates"
	"ratewatch/logger"
)

// TickerSource fetches one instrument per call.
type TickerSource interface {
	Fetch(ctx context.Context, code string) (models.Ticker, error)
}

// BatchTickerSource fetches all instruments of a venue in one call. Codes
// missing from the result are treated as failed individually.
type BatchTickerSource interface {
	FetchAll(ctx context.Context, codes []string) (map[string]models.Ticker, error)
}

// Instrument is one tracked (code, product) pair of a source.
type Instrument struct {
	Code    string
	Product models.Product
}

// Status is a point-in-time view of a poller, served on the status endpoint.
type Status struct {
	Site      string    `json:"site"`
	Running   bool      `json:"running"`
	Cycles    int64     `json:"cycles"`
	LastCycle time.Time `json:"last_cycle,omitempty"`
}

// Poller drives the poll cycle of one source.
type Poller struct {
	site        string
	interval    time.Duration
	timeout     time.Duration
	instruments []Instrument
	source      TickerSource
	batch       BatchTickerSource
	cache       *rates.Cache
	log         *logger.Log

	mu        sync.Mutex
	running   bool
	cycles    int64
	lastCycle time.Time

	ctx context.Context
	wg  sync.WaitGroup
}

// New builds a poller over a per-instrument source.
func New(site string, interval, timeout time.Duration, instruments []Instrument, source TickerSource, cache *rates.Cache) *Poller {
	return &Poller{
		site:        site,
		interval:    interval,
		timeout:     timeout,
		instruments: instruments,
		source:      source,
		cache:       cache,
		log:         logger.GetLogger(),
	}
}

// NewBatch builds a poller over a source whose single request covers all
// instruments (poloniex/oanda style).
func NewBatch(site string, interval, timeout time.Duration, instruments []Instrument, source BatchTickerSource, cache *rates.Cache) *Poller {
	return &Poller{
		site:        site,
		interval:    interval,
		timeout:     timeout,
		instruments: instruments,
		batch:       source,
		cache:       cache,
		log:         logger.GetLogger(),
	}
}

// Start launches the poll loop. It returns an error when already running.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.ctx = ctx
	p.mu.Unlock()

	p.log.WithComponent(p.site+"_poller").WithFields(logger.Fields{
		"instruments": len(p.instruments),
		"interval":    p.interval.String(),
	}).Info("starting ticker poller")

	p.wg.Add(1)
	go p.run(ctx)
	return nil
}

// Stop waits for the loop to exit. The context passed to Start must be
// cancelled first.
func (p *Poller) Stop() {
	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.log.WithComponent(p.site + "_poller").Info("ticker poller stopped")
}

// Status reports the current loop state.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Site:      p.site,
		Running:   p.running,
		Cycles:    p.cycles,
		LastCycle: p.lastCycle,
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		p.cycle(ctx)

		p.mu.Lock()
		p.cycles++
		p.lastCycle = time.Now()
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

// cycle dispatches one fetch per instrument and joins them all. Individual
// failures never cancel or delay siblings.
func (p *Poller) cycle(ctx context.Context) {
	log := p.log.WithComponent(p.site + "_poller").WithFields(logger.Fields{
		"cycle_id": uuid.NewString(),
	})

	if p.batch != nil {
		p.batchCycle(ctx, log)
		return
	}

	var wg sync.WaitGroup
	for _, inst := range p.instruments {
		wg.Add(1)
		go func(inst Instrument) {
			defer wg.Done()
			p.fetchOne(ctx, log, inst)
		}(inst)
	}
	wg.Wait()
}

func (p *Poller) fetchOne(ctx context.Context, log *logger.Entry, inst Instrument) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tk, err := p.source.Fetch(fetchCtx, inst.Code)
	if err != nil {
		// Keep the stale snapshot; the next successful fetch replaces it.
		log.WithError(err).WithFields(logger.Fields{"code": inst.Code}).Warn("fetch failed")
		return
	}

	p.cache.Update(p.site, inst.Product, inst.Code, tk)
	log.WithFields(logger.Fields{
		"code": inst.Code,
		"ask":  deref(tk.Ask),
		"bid":  deref(tk.Bid),
		"ltp":  deref(tk.Last),
	}).Debug("fetched")
}

func (p *Poller) batchCycle(ctx context.Context, log *logger.Entry) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	codes := make([]string, 0, len(p.instruments))
	for _, inst := range p.instruments {
		codes = append(codes, inst.Code)
	}

	ticks, err := p.batch.FetchAll(fetchCtx, codes)
	if err != nil {
		log.WithError(err).Warn("batch fetch failed")
		return
	}

	for _, inst := range p.instruments {
		tk, ok := ticks[inst.Code]
		if !ok {
			log.WithFields(logger.Fields{"code": inst.Code}).Warn("instrument missing from batch response")
			continue
		}
		p.cache.Update(p.site, inst.Product, inst.Code, tk)
	}
}

func deref(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
