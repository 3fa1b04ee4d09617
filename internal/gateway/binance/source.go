// Package binance fetches OHLCV klines through the official client and
// re-emits them as discrete records for the ohlcv normalization path.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adshao/go-binance/v2"

	"screener/internal/logger"
	"screener/internal/normalize"
)

const maxKlineLimit = 1000

// Config describes the Binance source. Keys are optional; kline history is
// a public endpoint.
type Config struct {
	APIKey    string
	APISecret string
	Interval  string
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Interval == "" {
		out.Interval = "1d"
	}
	return out
}

type Source struct {
	cfg    Config
	client *binance.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	return &Source{
		cfg:    final,
		client: binance.NewClient(final.APIKey, final.APISecret),
	}
}

func (s *Source) Name() string  { return "binance" }
func (s *Source) Shape() string { return normalize.ShapeOHLCV }

// record is the payload row handed to the normalizer. Prices stay as the
// vendor's numeric strings; coercion is the normalizer's job.
type record struct {
	Timestamp int64  `json:"timestamp"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
}

// Fetch pulls up to limit klines for symbol and returns them as an
// ohlcv-records payload, oldest first.
func (s *Source) Fetch(ctx context.Context, symbol string, limit int) ([]byte, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if limit <= 0 {
		limit = 500
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	logger.Debugf("[binance] klines %s interval=%s limit=%d", sym, s.cfg.Interval, limit)
	klines, err := s.client.NewKlinesService().
		Symbol(sym).
		Interval(s.cfg.Interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}
	records := make([]record, 0, len(klines))
	for _, k := range klines {
		records = append(records, record{
			Timestamp: k.OpenTime,
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
		})
	}
	return json.Marshal(records)
}
