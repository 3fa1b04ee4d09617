// Package config loads the screener's TOML configuration, with .env applied
// first so secrets stay out of the config file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Target names one asset to screen.
type Target struct {
	Symbol string `toml:"symbol"`
	Name   string `toml:"name"`
	Source string `toml:"source"`
	Limit  int    `toml:"limit"`
}

type BinanceConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	Interval  string `toml:"interval"`
}

type CoinGeckoConfig struct {
	VsCurrency string `toml:"vs_currency"`
	Days       int    `toml:"days"`
}

type Config struct {
	DBPath      string          `toml:"db_path"`
	LogLevel    string          `toml:"log_level"`
	ListenAddr  string          `toml:"listen_addr"`
	ExportDir   string          `toml:"export_dir"`
	RateLimitMS int             `toml:"rate_limit_ms"`
	Parallel    int             `toml:"parallel"`
	Binance     BinanceConfig   `toml:"binance"`
	CoinGecko   CoinGeckoConfig `toml:"coingecko"`
	Targets     []Target        `toml:"targets"`
}

// RateLimit returns the fetch pacing interval.
func (c Config) RateLimit() time.Duration {
	return time.Duration(c.RateLimitMS) * time.Millisecond
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.DBPath == "" {
		out.DBPath = "screener.db"
	}
	if out.LogLevel == "" {
		out.LogLevel = "info"
	}
	if out.ListenAddr == "" {
		out.ListenAddr = ":8787"
	}
	if out.RateLimitMS <= 0 {
		out.RateLimitMS = 1200
	}
	if out.Parallel <= 0 {
		out.Parallel = 1
	}
	if out.Binance.Interval == "" {
		out.Binance.Interval = "1d"
	}
	if out.CoinGecko.VsCurrency == "" {
		out.CoinGecko.VsCurrency = "usd"
	}
	if out.CoinGecko.Days <= 0 {
		out.CoinGecko.Days = 90
	}
	for i := range out.Targets {
		if out.Targets[i].Limit <= 0 {
			out.Targets[i].Limit = 365
		}
	}
	return out
}

// Load reads path (optional: an absent file yields defaults), applying .env
// beforehand and environment overrides for credentials afterwards.
func Load(path string) (Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if v := os.Getenv("SCREENER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SCREENER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		cfg.Binance.APISecret = v
	}
	return cfg.withDefaults(), nil
}
