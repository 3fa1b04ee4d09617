package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"screener/internal/analysis"
	"screener/internal/config"
	"screener/internal/export"
	"screener/internal/gateway/binance"
	"screener/internal/gateway/coingecko"
	"screener/internal/logger"
	"screener/internal/market"
	"screener/internal/pipeline"
	"screener/internal/store"
	transport "screener/internal/transport/http"
)

func main() {
	var (
		configPath = flag.String("config", "screener.toml", "path to TOML config")
		serve      = flag.Bool("serve", false, "serve the query API after the run")
		recompute  = flag.String("recompute", "", "recompute indicators for one stored symbol and exit")
	)
	flag.Parse()

	if err := run(*configPath, *serve, *recompute); err != nil {
		fmt.Fprintln(os.Stderr, "screener:", err)
		os.Exit(1)
	}
}

func run(configPath string, serve bool, recompute string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.LogLevel)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe := pipeline.New(st, pipeline.Config{
		RateLimit: cfg.RateLimit(),
		Parallel:  cfg.Parallel,
	})
	if cfg.ExportDir != "" {
		pipe.OnFrame(func(symbol string, s market.Series, frame *analysis.Frame) {
			if _, err := export.WriteFrameJSON(cfg.ExportDir, symbol, s, frame); err != nil {
				logger.Warnf("export json %s: %v", symbol, err)
			}
			if _, err := export.WriteChart(cfg.ExportDir, symbol, s, frame); err != nil {
				logger.Warnf("export chart %s: %v", symbol, err)
			}
		})
	}

	if recompute != "" {
		rep, err := pipe.Recompute(ctx, recompute)
		if err != nil {
			return err
		}
		fmt.Println(export.RenderSummary([]pipeline.AssetReport{rep}))
		return nil
	}

	targets, err := buildTargets(cfg)
	if err != nil {
		return err
	}
	if len(targets) > 0 {
		reports := pipe.RunAll(ctx, targets)
		fmt.Println(export.RenderSummary(reports))
	} else if !serve {
		return fmt.Errorf("no targets configured in %s", configPath)
	}

	if serve {
		srv, err := transport.NewServer(transport.Config{Addr: cfg.ListenAddr, Store: st})
		if err != nil {
			return err
		}
		logger.Infof("serving query API on %s", cfg.ListenAddr)
		return srv.Start(ctx)
	}
	return nil
}

func buildTargets(cfg config.Config) ([]pipeline.Target, error) {
	var (
		gecko   *coingecko.Source
		binSrc  *binance.Source
		targets []pipeline.Target
	)
	for _, t := range cfg.Targets {
		var src market.Source
		switch t.Source {
		case "coingecko", "":
			if gecko == nil {
				gecko = coingecko.New(coingecko.Config{
					VsCurrency: cfg.CoinGecko.VsCurrency,
					Days:       cfg.CoinGecko.Days,
				})
			}
			src = gecko
		case "binance":
			if binSrc == nil {
				binSrc = binance.New(binance.Config{
					APIKey:    cfg.Binance.APIKey,
					APISecret: cfg.Binance.APISecret,
					Interval:  cfg.Binance.Interval,
				})
			}
			src = binSrc
		default:
			return nil, fmt.Errorf("target %s: unknown source %q", t.Symbol, t.Source)
		}
		targets = append(targets, pipeline.Target{
			Symbol:      t.Symbol,
			DisplayName: t.Name,
			Limit:       t.Limit,
			Source:      src,
		})
	}
	return targets, nil
}
