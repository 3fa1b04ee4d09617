// Package coingecko fetches close-only market charts. CoinGecko reports
// [timestamp, price] pairs, so everything it supplies flows through the
// price-only normalization path.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"screener/internal/logger"
	"screener/internal/normalize"
)

// Config describes the CoinGecko source.
type Config struct {
	BaseURL     string
	VsCurrency  string
	Days        int
	HTTPTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if out.VsCurrency == "" {
		out.VsCurrency = "usd"
	}
	if out.Days <= 0 {
		out.Days = 90
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	return out
}

type Source struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	return &Source{
		cfg:        final,
		httpClient: &http.Client{Timeout: final.HTTPTimeout},
	}
}

func (s *Source) Name() string  { return "coingecko" }
func (s *Source) Shape() string { return normalize.ShapePriceOnly }

// Fetch pulls the market chart for a coin id and returns the raw pairs
// payload. CoinGecko has no per-request limit knob; limit trims the tail of
// the configured day range when positive.
func (s *Source) Fetch(ctx context.Context, symbol string, limit int) ([]byte, error) {
	coin := strings.ToLower(strings.TrimSpace(symbol))
	if coin == "" {
		return nil, fmt.Errorf("coin id is required")
	}
	u := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=%s&days=%d",
		s.cfg.BaseURL, url.PathEscape(coin), url.QueryEscape(s.cfg.VsCurrency), s.cfg.Days)
	logger.Debugf("[coingecko] GET %s", u)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("coingecko market_chart error: %s", resp.Status)
	}
	var body struct {
		Prices []json.RawMessage `json:"prices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(body.Prices) {
		body.Prices = body.Prices[len(body.Prices)-limit:]
	}
	return json.Marshal(body.Prices)
}
