// Package account polls balance, collateral and margin endpoints of a venue
// and republishes every non-base balance in the base units through the rate
// cache. Only instantaneous snapshots; the trailing-volume scan is delegated
// to the volume aggregator.
package account

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ratewatch/internal/metrics"
	"ratewatch/internal/models"
	"ratewatch/internal/poller"
	"ratewatch/internal/rates"
	"ratewatch/internal/volume"
	"ratewatch/logger"
)

const (
	labelCash       = "cash"
	labelCollateral = "collateral"
	labelMargin     = "margin"
)

// Source is the private-endpoint surface of one venue. Authenticated
// reports whether credentials are configured; when false every sub-fetch is
// skipped proactively without a network call.
type Source interface {
	Authenticated() bool
	Balances(ctx context.Context) ([]models.BalanceEntry, error)
	Collateral(ctx context.Context) (models.Collateral, error)
	CollateralBalances(ctx context.Context) ([]models.BalanceEntry, error)
	Positions(ctx context.Context, code string) ([]models.Position, error)
}

// Config wires one account poller.
type Config struct {
	Site     string
	Interval time.Duration
	BaseUnit models.Unit
	// Balances maps reported currency codes to their unit.
	Balances map[string]models.Unit
	// Collateral maps collateral-account currency codes to their unit.
	Collateral map[string]models.Unit
	// Margins maps position instrument codes to their size unit.
	Margins map[string]models.Unit
	// Volumes maps instrument codes to their quote unit for the trailing
	// volume scan.
	Volumes map[string]models.Unit
}

// Poller drives the account poll cycle of one venue: one goroutine per
// sub-resource, joined before the sleep.
type Poller struct {
	cfg  Config
	src  Source
	vol  *volume.Aggregator
	reg  *metrics.Registry
	conv *rates.Converter
	log  *logger.Log

	mu        sync.Mutex
	running   bool
	cycles    int64
	lastCycle time.Time

	wg sync.WaitGroup
}

// NewPoller builds an account poller. vol may be nil when the venue exposes
// no execution history.
func NewPoller(cfg Config, src Source, vol *volume.Aggregator, reg *metrics.Registry, conv *rates.Converter) *Poller {
	return &Poller{
		cfg:  cfg,
		src:  src,
		vol:  vol,
		reg:  reg,
		conv: conv,
		log:  logger.GetLogger(),
	}
}

// Start launches the poll loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("account poller already running")
	}
	p.running = true
	p.mu.Unlock()

	p.log.WithComponent(p.cfg.Site+"_account").WithFields(logger.Fields{
		"interval": p.cfg.Interval.String(),
	}).Info("starting account poller")

	p.wg.Add(1)
	go p.run(ctx)
	return nil
}

// Stop waits for the loop to exit after its context is cancelled.
func (p *Poller) Stop() {
	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.log.WithComponent(p.cfg.Site + "_account").Info("account poller stopped")
}

// Status reports the current loop state.
func (p *Poller) Status() poller.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return poller.Status{
		Site:      p.cfg.Site + "_account",
		Running:   p.running,
		Cycles:    p.cycles,
		LastCycle: p.lastCycle,
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		// Sleep first so the ticker pollers warm the conversion cache.
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.Interval):
		}

		p.cycle(ctx)

		p.mu.Lock()
		p.cycles++
		p.lastCycle = time.Now()
		p.mu.Unlock()
	}
}

func (p *Poller) cycle(ctx context.Context) {
	log := p.log.WithComponent(p.cfg.Site + "_account").WithFields(logger.Fields{
		"cycle_id": uuid.NewString(),
	})

	if !p.src.Authenticated() {
		log.Debug("credentials not configured; skipping account cycle")
		return
	}

	jobs := []func(context.Context, *logger.Entry){
		p.fetchBalances,
		p.fetchCollateral,
		p.fetchCollateralBalances,
		p.fetchMargins,
		p.fetchVolumes,
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job func(context.Context, *logger.Entry)) {
			defer wg.Done()
			job(ctx, log)
		}(job)
	}
	wg.Wait()
}

func (p *Poller) fetchBalances(ctx context.Context, log *logger.Entry) {
	if len(p.cfg.Balances) == 0 {
		return
	}

	entries, err := p.src.Balances(ctx)
	if err != nil {
		log.WithError(err).Warn("balance fetch failed")
		return
	}

	p.publishEntries(entries, p.cfg.Balances, labelCash)
}

func (p *Poller) fetchCollateralBalances(ctx context.Context, log *logger.Entry) {
	if len(p.cfg.Collateral) == 0 {
		return
	}

	entries, err := p.src.CollateralBalances(ctx)
	if err != nil {
		log.WithError(err).Warn("collateral account fetch failed")
		return
	}

	p.publishEntries(entries, p.cfg.Collateral, labelCollateral)
}

// publishEntries records every configured currency under its own unit and
// republishes it in the base unit (and BTC where a further pivot exists).
// Currencies the venue did not report come out as the absent sentinel.
func (p *Poller) publishEntries(entries []models.BalanceEntry, units map[string]models.Unit, label string) {
	for ccy, unit := range units {
		var amount *float64
		for _, e := range entries {
			if e.Currency == ccy {
				amount = e.Amount
			}
		}

		g := p.reg.Account(models.AccountBalance, unit)
		metrics.SetOptional(g.WithLabelValues(p.cfg.Site, label, ccy), amount)

		if unit != p.cfg.BaseUnit {
			base := p.reg.Account(models.AccountBalance, p.cfg.BaseUnit)
			metrics.SetOptional(base.WithLabelValues(p.cfg.Site, label, ccy), p.conv.ConvertOptional(amount, unit, p.cfg.BaseUnit))
		}
		if unit != p.cfg.BaseUnit && unit != models.BTC {
			btc := p.reg.Account(models.AccountBalance, models.BTC)
			metrics.SetOptional(btc.WithLabelValues(p.cfg.Site, label, ccy), p.conv.ConvertOptional(amount, unit, models.BTC))
		}
	}
}

func (p *Poller) fetchCollateral(ctx context.Context, log *logger.Entry) {
	col, err := p.src.Collateral(ctx)
	if err != nil {
		log.WithError(err).Warn("collateral fetch failed")
		return
	}

	name := strings.ToUpper(p.cfg.BaseUnit.String())
	g := p.reg.Account(models.AccountCollateral, p.cfg.BaseUnit)
	metrics.SetOptional(g.WithLabelValues(p.cfg.Site, "deposited", name), col.Deposited)
	metrics.SetOptional(g.WithLabelValues(p.cfg.Site, "unrealized", name), col.Unrealized)
	metrics.SetOptional(g.WithLabelValues(p.cfg.Site, "required", name), col.Required)
}

func (p *Poller) fetchMargins(ctx context.Context, log *logger.Entry) {
	for code, unit := range p.cfg.Margins {
		positions, err := p.src.Positions(ctx, code)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"code": code}).Warn("position fetch failed")
			continue
		}

		quantity := 0.0
		unrealized := 0.0
		for _, pos := range positions {
			if pos.Size == nil {
				continue
			}
			sign := 1.0
			if strings.EqualFold(pos.Side, "SELL") {
				sign = -1
			}
			quantity += *pos.Size * sign
			if pos.Unrealized != nil {
				unrealized += *pos.Unrealized
			}
		}

		g := p.reg.Account(models.AccountBalance, unit)
		g.WithLabelValues(p.cfg.Site, labelMargin, code).Set(quantity)

		base := p.reg.Account(models.AccountBalance, p.cfg.BaseUnit)
		base.WithLabelValues(p.cfg.Site, labelMargin, code).Set(unrealized)
	}
}

func (p *Poller) fetchVolumes(ctx context.Context, log *logger.Entry) {
	if p.vol == nil {
		return
	}
	for code, unit := range p.cfg.Volumes {
		if _, err := p.vol.Aggregate(ctx, code, unit); err != nil && ctx.Err() != nil {
			return
		}
	}
}
