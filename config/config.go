package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ratewatch/internal/models"
)

type Config struct {
	Ratewatch RatewatchConfig `yaml:"ratewatch"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sources   SourcesConfig   `yaml:"sources"`
}

type RatewatchConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Address          string        `yaml:"address"`
	ResourceInterval time.Duration `yaml:"resource_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type SourcesConfig struct {
	Bitflyer  SourceConfig `yaml:"bitflyer"`
	Bitmex    SourceConfig `yaml:"bitmex"`
	Coincheck SourceConfig `yaml:"coincheck"`
	Zaif      SourceConfig `yaml:"zaif"`
	Bitfinex  SourceConfig `yaml:"bitfinex"`
	Poloniex  SourceConfig `yaml:"poloniex"`
	Quoine    SourceConfig `yaml:"quoine"`
	Oanda     SourceConfig `yaml:"oanda"`
	Binance   SourceConfig `yaml:"binance"`
}

type SourceConfig struct {
	Enabled     bool               `yaml:"enabled"`
	Endpoint    string             `yaml:"endpoint"`
	Interval    time.Duration      `yaml:"interval"`
	Timeout     time.Duration      `yaml:"timeout"`
	APIKey      string             `yaml:"api_key"`
	APISecret   string             `yaml:"api_secret"`
	Token       string             `yaml:"token"`
	Instruments []InstrumentConfig `yaml:"instruments"`
	Account     AccountConfig      `yaml:"account"`
}

type InstrumentConfig struct {
	Code    string `yaml:"code"`
	Product string `yaml:"product"`
}

// AccountConfig describes the private endpoints polled for one venue.
// Balances and collateral map reported currency codes to units; margins and
// volumes map instrument codes to the unit their values are denominated in.
type AccountConfig struct {
	Enabled    bool              `yaml:"enabled"`
	Interval   time.Duration     `yaml:"interval"`
	Balances   map[string]string `yaml:"balances"`
	Collateral map[string]string `yaml:"collateral"`
	Margins    map[string]string `yaml:"margins"`
	Volumes    map[string]string `yaml:"volumes"`
}

// ProductType resolves the instrument's product tag.
func (i InstrumentConfig) ProductType() (models.Product, error) {
	return models.ParseProduct(i.Product)
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Server: ServerConfig{
			Address:          "localhost:10001",
			ResourceInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets credentials and endpoints come from the environment
// instead of the config file, e.g. BITFLYER_APIKEY / BITFLYER_SECRET /
// OANDA_TOKEN / ZAIF_ENDPOINT.
func applyEnvOverrides(cfg *Config) {
	for name, src := range namedSources(cfg) {
		prefix := strings.ToUpper(name)
		if v := os.Getenv(prefix + "_APIKEY"); v != "" {
			src.APIKey = strings.TrimSpace(v)
		}
		if v := os.Getenv(prefix + "_SECRET"); v != "" {
			src.APISecret = strings.TrimSpace(v)
		}
		if v := os.Getenv(prefix + "_TOKEN"); v != "" {
			src.Token = strings.TrimSpace(v)
		}
		if v := os.Getenv(prefix + "_ENDPOINT"); v != "" {
			src.Endpoint = strings.TrimSpace(v)
		}
	}
}

func namedSources(cfg *Config) map[string]*SourceConfig {
	return map[string]*SourceConfig{
		"bitflyer":  &cfg.Sources.Bitflyer,
		"bitmex":    &cfg.Sources.Bitmex,
		"coincheck": &cfg.Sources.Coincheck,
		"zaif":      &cfg.Sources.Zaif,
		"bitfinex":  &cfg.Sources.Bitfinex,
		"poloniex":  &cfg.Sources.Poloniex,
		"quoine":    &cfg.Sources.Quoine,
		"oanda":     &cfg.Sources.Oanda,
		"binance":   &cfg.Sources.Binance,
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Ratewatch.Name == "" {
		return fmt.Errorf("ratewatch.name is required")
	}

	if cfg.Ratewatch.Version == "" {
		return fmt.Errorf("ratewatch.version is required")
	}

	if cfg.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}

	for name, src := range namedSources(cfg) {
		if !src.Enabled {
			continue
		}
		if src.Endpoint == "" {
			return fmt.Errorf("sources.%s.endpoint is required", name)
		}
		if src.Interval <= 0 {
			return fmt.Errorf("sources.%s.interval must be greater than 0", name)
		}
		if src.Timeout <= 0 {
			return fmt.Errorf("sources.%s.timeout must be greater than 0", name)
		}
		if len(src.Instruments) == 0 && !src.Account.Enabled {
			return fmt.Errorf("sources.%s has neither instruments nor account polling", name)
		}
		for _, inst := range src.Instruments {
			if inst.Code == "" {
				return fmt.Errorf("sources.%s has an instrument without a code", name)
			}
			if _, err := inst.ProductType(); err != nil {
				return fmt.Errorf("sources.%s instrument %s: %w", name, inst.Code, err)
			}
		}
		if src.Account.Enabled {
			if src.Account.Interval <= 0 {
				return fmt.Errorf("sources.%s.account.interval must be greater than 0", name)
			}
			for _, m := range []map[string]string{src.Account.Balances, src.Account.Collateral, src.Account.Margins, src.Account.Volumes} {
				for code, unit := range m {
					if _, err := models.ParseUnit(unit); err != nil {
						return fmt.Errorf("sources.%s.account entry %s: %w", name, code, err)
					}
				}
			}
		}
	}

	return nil
}

// UnitMap converts a config currency->unit mapping into model types.
// Invalid entries were already rejected during validation.
func UnitMap(m map[string]string) map[string]models.Unit {
	out := make(map[string]models.Unit, len(m))
	for code, name := range m {
		if u, err := models.ParseUnit(name); err == nil {
			out[code] = u
		}
	}
	return out
}
