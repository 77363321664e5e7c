// Package volume recomputes trailing-window trade volume per instrument.
//
// One backward scan of the execution history buckets every execution into
// all windows at once. The scan pages from newest to oldest with a strictly
// decreasing cursor and stops at the first page that contributes to no
// window; history is reverse-chronological, so no earlier page can
// contribute either.
package volume

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"ratewatch/internal/metrics"
	"ratewatch/internal/models"
	"ratewatch/internal/rates"
	"ratewatch/logger"
)

// Window is one trailing duration bucket.
type Window struct {
	Label string
	Span  time.Duration
}

// Windows is the fixed set shared by every source.
var Windows = []Window{
	{Label: "01H", Span: time.Hour},
	{Label: "06H", Span: 6 * time.Hour},
	{Label: "12H", Span: 12 * time.Hour},
	{Label: "01D", Span: 24 * time.Hour},
	{Label: "07D", Span: 7 * 24 * time.Hour},
	{Label: "30D", Span: 30 * 24 * time.Hour},
}

// HistorySource returns one page of executions strictly older than the
// cursor, newest first. A zero cursor means "start from the newest".
type HistorySource interface {
	Executions(ctx context.Context, code string, before models.Cursor, limit int) ([]models.Execution, error)
}

const defaultPageSize = 500

// Aggregator scans one venue's execution history and publishes per-window
// notionals. All windows are recomputed from scratch on every run; no
// cross-cycle state is kept.
type Aggregator struct {
	site     string
	source   HistorySource
	reg      *metrics.Registry
	conv     *rates.Converter
	limiter  *rate.Limiter
	pageSize int
	log      *logger.Log
}

// NewAggregator builds an aggregator for one site. The limiter paces page
// requests so a deep scan cannot hammer the venue.
func NewAggregator(site string, source HistorySource, reg *metrics.Registry, conv *rates.Converter, limiter *rate.Limiter) *Aggregator {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(5), 1)
	}
	return &Aggregator{
		site:     site,
		source:   source,
		reg:      reg,
		conv:     conv,
		limiter:  limiter,
		pageSize: defaultPageSize,
		log:      logger.GetLogger(),
	}
}

// Aggregate scans code's history and publishes every window, even when
// zero. A page failure aborts the remaining pagination and publishes the
// partial sums accumulated so far. The returned sums are keyed by window
// label.
func (a *Aggregator) Aggregate(ctx context.Context, code string, unit models.Unit) (map[string]float64, error) {
	now := time.Now()

	sums, paged, err := a.scan(ctx, code, now)
	if err != nil {
		a.log.WithComponent(a.site+"_volume").WithError(err).WithFields(logger.Fields{
			"code": code,
		}).Warn("history scan aborted; publishing partial sums")
	}

	// A failure before the first page says nothing about the volume;
	// publish the absent sentinel instead of a false zero.
	if err != nil && !paged {
		a.publishAbsent(code, unit)
		return sums, err
	}

	a.publish(code, unit, sums)
	return sums, err
}

// scan pages backward until a page contributes nothing. now is captured
// once by the caller so every window shares the same horizon. paged
// reports whether at least one page was fetched successfully.
func (a *Aggregator) scan(ctx context.Context, code string, now time.Time) (sums map[string]float64, paged bool, err error) {
	sums = make(map[string]float64, len(Windows))
	for _, w := range Windows {
		sums[w.Label] = 0
	}

	var cursor models.Cursor

	for {
		if err := a.limiter.Wait(ctx); err != nil {
			return sums, paged, err
		}

		page, err := a.source.Executions(ctx, code, cursor, a.pageSize)
		if err != nil {
			return sums, paged, err
		}
		paged = true
		if len(page) == 0 {
			return sums, paged, nil
		}

		var next models.Cursor
		seen := false
		contributed := 0

		for _, exec := range page {
			if exec.Size == nil || exec.Time.IsZero() {
				continue
			}

			c := models.Cursor{ID: exec.ID, Time: exec.Time}
			if !seen || c.Before(next) {
				next = c
				seen = true
			}

			value := *exec.Size
			if exec.Price != nil {
				value = *exec.Price * *exec.Size
			}

			for _, w := range Windows {
				if exec.Time.Add(w.Span).Before(now) {
					continue
				}
				sums[w.Label] += value
				contributed++
			}
		}

		if contributed == 0 {
			return sums, paged, nil
		}

		// Termination guarantee: the cursor must strictly decrease, or the
		// same page would be requested forever.
		if !seen || !next.Before(cursor) {
			return sums, paged, fmt.Errorf("pagination cursor did not advance (id=%d)", cursor.ID)
		}
		cursor = next
	}
}

// publishAbsent writes the sentinel to every window series of code.
func (a *Aggregator) publishAbsent(code string, unit models.Unit) {
	if a.reg == nil {
		return
	}
	native := a.reg.Account(models.AccountVolume, unit)
	for _, w := range Windows {
		metrics.SetOptional(native.WithLabelValues(a.site, w.Label, code), nil)
	}
}

func (a *Aggregator) publish(code string, unit models.Unit, sums map[string]float64) {
	if a.reg == nil {
		return
	}

	native := a.reg.Account(models.AccountVolume, unit)
	for _, w := range Windows {
		v := sums[w.Label]
		native.WithLabelValues(a.site, w.Label, code).Set(v)

		if a.conv == nil {
			continue
		}
		if unit != models.JPY {
			g := a.reg.Account(models.AccountVolume, models.JPY)
			metrics.SetOptional(g.WithLabelValues(a.site, w.Label, code), a.conv.ConvertOptional(&v, unit, models.JPY))
		}
		if unit != models.JPY && unit != models.BTC {
			g := a.reg.Account(models.AccountVolume, models.BTC)
			metrics.SetOptional(g.WithLabelValues(a.site, w.Label, code), a.conv.ConvertOptional(&v, unit, models.BTC))
		}
	}
}
