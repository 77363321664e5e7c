package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ratewatch/config"
	"ratewatch/internal/account"
	"ratewatch/internal/adapter/binancex"
	"ratewatch/internal/adapter/bitfinex"
	"ratewatch/internal/adapter/bitflyer"
	"ratewatch/internal/adapter/bitmex"
	"ratewatch/internal/adapter/coincheck"
	"ratewatch/internal/adapter/oanda"
	"ratewatch/internal/adapter/poloniex"
	"ratewatch/internal/adapter/quoine"
	"ratewatch/internal/adapter/zaif"
	"ratewatch/internal/dashboard"
	"ratewatch/internal/metrics"
	"ratewatch/internal/models"
	"ratewatch/internal/poller"
	"ratewatch/internal/rates"
	"ratewatch/internal/volume"
	"ratewatch/logger"
)

type runnable interface {
	Start(ctx context.Context) error
	Stop()
	Status() poller.Status
}

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Ratewatch.Name,
		"version": cfg.Ratewatch.Version,
	}).Info("starting ratewatch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := metrics.NewRegistry()
	cache := rates.NewCache(registry)

	pollers := buildPollers(cfg, cache, registry, log)
	if len(pollers) == 0 {
		log.Error("no sources enabled")
		os.Exit(1)
	}

	providers := make([]dashboard.StatusProvider, 0, len(pollers))
	for _, p := range pollers {
		providers = append(providers, p)
	}
	server := dashboard.NewServer(
		cfg.Ratewatch.Name,
		cfg.Ratewatch.Version,
		cfg.Server.Address,
		cfg.Server.ResourceInterval,
		registry,
		providers,
	)

	for _, p := range pollers {
		if err := p.Start(ctx); err != nil {
			log.WithError(err).Warn("poller failed to start")
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run(ctx)
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-serverErr:
		// Failure to bind the exposition endpoint is the one fatal error.
		if err != nil {
			log.WithError(err).Error("metrics server failed")
		}
	}

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, p := range pollers {
			wg.Add(1)
			go func(p runnable) {
				defer wg.Done()
				p.Stop()
			}(p)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("ratewatch stopped")
}

// buildPollers wires one ticker poller per enabled source, plus account
// pollers for sources with account polling configured.
func buildPollers(cfg *config.Config, cache *rates.Cache, registry *metrics.Registry, log *logger.Log) []runnable {
	var pollers []runnable

	add := func(name string, src config.SourceConfig, build func() runnable) {
		if !src.Enabled {
			log.WithComponent("main").WithFields(logger.Fields{"source": name}).Info("source disabled")
			return
		}
		pollers = append(pollers, build())
	}

	add("bitflyer", cfg.Sources.Bitflyer, func() runnable {
		src := cfg.Sources.Bitflyer
		client := bitflyer.New(src.Endpoint, src.Timeout, src.APIKey, src.APISecret)
		return poller.New("bitflyer", src.Interval, src.Timeout, instruments(src), client, cache)
	})
	add("bitmex", cfg.Sources.Bitmex, func() runnable {
		src := cfg.Sources.Bitmex
		client := bitmex.New(src.Endpoint, src.Timeout, src.APIKey, src.APISecret)
		return poller.New("bitmex", src.Interval, src.Timeout, instruments(src), client, cache)
	})
	add("coincheck", cfg.Sources.Coincheck, func() runnable {
		src := cfg.Sources.Coincheck
		client := coincheck.New(src.Endpoint, src.Timeout)
		return poller.New("coincheck", src.Interval, src.Timeout, instruments(src), client, cache)
	})
	add("zaif", cfg.Sources.Zaif, func() runnable {
		src := cfg.Sources.Zaif
		client := zaif.New(src.Endpoint, src.Timeout)
		return poller.New("zaif", src.Interval, src.Timeout, instruments(src), client, cache)
	})
	add("bitfinex", cfg.Sources.Bitfinex, func() runnable {
		src := cfg.Sources.Bitfinex
		client := bitfinex.New(src.Endpoint, src.Timeout)
		return poller.New("bitfinex", src.Interval, src.Timeout, instruments(src), client, cache)
	})
	add("poloniex", cfg.Sources.Poloniex, func() runnable {
		src := cfg.Sources.Poloniex
		client := poloniex.New(src.Endpoint, src.Timeout)
		return poller.NewBatch("poloniex", src.Interval, src.Timeout, instruments(src), client, cache)
	})
	add("quoine", cfg.Sources.Quoine, func() runnable {
		src := cfg.Sources.Quoine
		client := quoine.New(src.Endpoint, src.Timeout)
		return poller.NewBatch("quoine", src.Interval, src.Timeout, instruments(src), client, cache)
	})
	add("oanda", cfg.Sources.Oanda, func() runnable {
		src := cfg.Sources.Oanda
		client := oanda.New(src.Endpoint, src.Timeout, src.Token)
		return poller.NewBatch("oanda", src.Interval, src.Timeout, instruments(src), client, cache)
	})
	add("binance", cfg.Sources.Binance, func() runnable {
		src := cfg.Sources.Binance
		client := binancex.New(src.Endpoint, src.Timeout)
		return poller.New("binance", src.Interval, src.Timeout, instruments(src), client, cache)
	})

	if src := cfg.Sources.Bitflyer; src.Enabled && src.Account.Enabled {
		client := bitflyer.New(src.Endpoint, src.Timeout, src.APIKey, src.APISecret)
		conv := rates.NewConverter(cache, "bitflyer", rates.EdgesFor(instrumentRefs(src)))
		agg := volume.NewAggregator("bitflyer", client, registry, conv, nil)
		acct := account.NewPoller(account.Config{
			Site:       "bitflyer",
			Interval:   src.Account.Interval,
			BaseUnit:   models.JPY,
			Balances:   config.UnitMap(src.Account.Balances),
			Collateral: config.UnitMap(src.Account.Collateral),
			Margins:    config.UnitMap(src.Account.Margins),
			Volumes:    config.UnitMap(src.Account.Volumes),
		}, client, agg, registry, conv)
		pollers = append(pollers, acct)
	}

	if src := cfg.Sources.Bitmex; src.Enabled && src.Account.Enabled {
		client := bitmex.New(src.Endpoint, src.Timeout, src.APIKey, src.APISecret)
		conv := rates.NewConverter(cache, "bitmex", rates.EdgesFor(instrumentRefs(src)))
		agg := volume.NewAggregator("bitmex", client, registry, conv, nil)
		acct := account.NewPoller(account.Config{
			Site:       "bitmex",
			Interval:   src.Account.Interval,
			BaseUnit:   models.BTC,
			Balances:   config.UnitMap(src.Account.Balances),
			Collateral: config.UnitMap(src.Account.Collateral),
			Margins:    config.UnitMap(src.Account.Margins),
			Volumes:    config.UnitMap(src.Account.Volumes),
		}, client, agg, registry, conv)
		pollers = append(pollers, acct)
	}

	return pollers
}

func instruments(src config.SourceConfig) []poller.Instrument {
	out := make([]poller.Instrument, 0, len(src.Instruments))
	for _, inst := range src.Instruments {
		product, err := inst.ProductType()
		if err != nil {
			continue // rejected during validation
		}
		out = append(out, poller.Instrument{Code: inst.Code, Product: product})
	}
	return out
}

func instrumentRefs(src config.SourceConfig) []rates.InstrumentRef {
	out := make([]rates.InstrumentRef, 0, len(src.Instruments))
	for _, inst := range src.Instruments {
		product, err := inst.ProductType()
		if err != nil {
			continue
		}
		out = append(out, rates.InstrumentRef{Code: inst.Code, Product: product})
	}
	return out
}
