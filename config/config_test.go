package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ratewatch/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const validConfig = `
ratewatch:
  name: "ratewatch"
  version: "1.0.0"
sources:
  bitflyer:
    enabled: true
    endpoint: "https://api.bitflyer.jp"
    interval: 15s
    timeout: 10s
    instruments:
      - code: "BTC_JPY"
        product: "jpy_btc"
    account:
      enabled: true
      interval: 60s
      balances:
        JPY: "jpy"
        BTC: "btc"
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Address != "localhost:10001" {
		t.Errorf("default address = %q", cfg.Server.Address)
	}
	if cfg.Server.ResourceInterval != 5*time.Second {
		t.Errorf("default resource interval = %v", cfg.Server.ResourceInterval)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stdout" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}

	src := cfg.Sources.Bitflyer
	if !src.Enabled || src.Interval != 15*time.Second {
		t.Errorf("bitflyer source = %+v", src)
	}
	product, err := src.Instruments[0].ProductType()
	if err != nil || product != models.JPYBTC {
		t.Errorf("product = %v (err=%v)", product, err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing name", `
ratewatch:
  version: "1.0.0"
`},
		{"source without endpoint", `
ratewatch:
  name: "ratewatch"
  version: "1.0.0"
sources:
  zaif:
    enabled: true
    interval: 15s
    timeout: 10s
    instruments:
      - code: "btc_jpy"
        product: "jpy_btc"
`},
		{"zero interval", `
ratewatch:
  name: "ratewatch"
  version: "1.0.0"
sources:
  zaif:
    enabled: true
    endpoint: "https://api.zaif.jp"
    timeout: 10s
    instruments:
      - code: "btc_jpy"
        product: "jpy_btc"
`},
		{"unknown product", `
ratewatch:
  name: "ratewatch"
  version: "1.0.0"
sources:
  zaif:
    enabled: true
    endpoint: "https://api.zaif.jp"
    interval: 15s
    timeout: 10s
    instruments:
      - code: "btc_jpy"
        product: "nope"
`},
		{"unknown account unit", `
ratewatch:
  name: "ratewatch"
  version: "1.0.0"
sources:
  bitflyer:
    enabled: true
    endpoint: "https://api.bitflyer.jp"
    interval: 15s
    timeout: 10s
    instruments:
      - code: "BTC_JPY"
        product: "jpy_btc"
    account:
      enabled: true
      interval: 60s
      balances:
        JPY: "yen"
`},
		{"nothing to poll", `
ratewatch:
  name: "ratewatch"
  version: "1.0.0"
sources:
  zaif:
    enabled: true
    endpoint: "https://api.zaif.jp"
    interval: 15s
    timeout: 10s
`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, c.content)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigDisabledSourceSkipsValidation(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
ratewatch:
  name: "ratewatch"
  version: "1.0.0"
sources:
  bitflyer:
    enabled: true
    endpoint: "https://api.bitflyer.jp"
    interval: 15s
    timeout: 10s
    instruments:
      - code: "BTC_JPY"
        product: "jpy_btc"
  oanda:
    enabled: false
`))
	if err != nil {
		t.Fatalf("disabled source must not be validated: %v", err)
	}
	if cfg.Sources.Oanda.Enabled {
		t.Fatal("oanda should be disabled")
	}
}

func TestLoadConfigBitmexAndQuoine(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
ratewatch:
  name: "ratewatch"
  version: "1.0.0"
sources:
  bitmex:
    enabled: true
    endpoint: "https://www.bitmex.com"
    interval: 15s
    timeout: 10s
    instruments:
      - code: "XBTUSD"
        product: "usd_btc"
    account:
      enabled: true
      interval: 60s
      volumes:
        "XBT:perpetual": "btc"
        "XBJ:quarterly": "btc"
  quoine:
    enabled: true
    endpoint: "https://api.quoine.com"
    interval: 15s
    timeout: 10s
    instruments:
      - code: "BTCJPY"
        product: "jpy_btc"
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	volumes := UnitMap(cfg.Sources.Bitmex.Account.Volumes)
	if volumes["XBT:perpetual"] != models.BTC || volumes["XBJ:quarterly"] != models.BTC {
		t.Fatalf("bitmex volumes = %v", volumes)
	}

	product, err := cfg.Sources.Quoine.Instruments[0].ProductType()
	if err != nil || product != models.JPYBTC {
		t.Fatalf("quoine product = %v (err=%v)", product, err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BITFLYER_APIKEY", "env-key")
	t.Setenv("BITFLYER_SECRET", " env-secret ")
	t.Setenv("BITFLYER_ENDPOINT", "https://staging.bitflyer.jp")

	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	src := cfg.Sources.Bitflyer
	if src.APIKey != "env-key" {
		t.Errorf("api key = %q", src.APIKey)
	}
	if src.APISecret != "env-secret" {
		t.Errorf("api secret = %q, whitespace should be trimmed", src.APISecret)
	}
	if src.Endpoint != "https://staging.bitflyer.jp" {
		t.Errorf("endpoint = %q", src.Endpoint)
	}
}

func TestUnitMap(t *testing.T) {
	m := UnitMap(map[string]string{"JPY": "jpy", "BTC": "btc"})
	if m["JPY"] != models.JPY || m["BTC"] != models.BTC {
		t.Fatalf("UnitMap = %v", m)
	}
}
