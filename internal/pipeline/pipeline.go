// Package pipeline drives the per-asset batch sequence: fetch → normalize →
// gate → compute → melt → persist. One asset runs to completion before the
// next begins unless fan-out is enabled, in which case the store's per-chunk
// transaction is the only shared resource.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"screener/internal/analysis"
	"screener/internal/analysis/indicator"
	"screener/internal/logger"
	"screener/internal/market"
	"screener/internal/normalize"
	"screener/internal/store"
)

// Target names one asset to screen and the source that supplies it.
type Target struct {
	Symbol      string
	DisplayName string
	Limit       int
	Source      market.Source
}

// Config tunes pacing and fan-out.
type Config struct {
	// RateLimit is the cooperative delay between successive upstream
	// fetches.
	RateLimit time.Duration
	// Parallel is the number of concurrent asset workers; values below 2
	// keep the sequential batch behavior.
	Parallel int
}

// AssetReport summarizes one asset's run.
type AssetReport struct {
	RunID    string
	Symbol   string
	Bars     int
	NewBars  int
	Points   int
	Skipped  []indicator.Decision
	Degraded []string
	Duration time.Duration
	Err      error
}

// FrameHook receives each asset's wide frame after persistence, for optional
// export. It must not mutate the frame.
type FrameHook func(symbol string, s market.Series, frame *analysis.Frame)

type Pipeline struct {
	store *store.Store
	cfg   Config
	hook  FrameHook
	pacer *pacer
}

func New(st *store.Store, cfg Config) *Pipeline {
	return &Pipeline{
		store: st,
		cfg:   cfg,
		pacer: &pacer{interval: cfg.RateLimit},
	}
}

// OnFrame registers the export hook.
func (p *Pipeline) OnFrame(hook FrameHook) { p.hook = hook }

// RunAll screens every target and returns one report per target, in input
// order. A failed asset never aborts the others.
func (p *Pipeline) RunAll(ctx context.Context, targets []Target) []AssetReport {
	runID := uuid.NewString()
	logger.Infof("[pipeline] run %s: %d targets (parallel=%d)", runID, len(targets), p.cfg.Parallel)
	reports := make([]AssetReport, len(targets))

	if p.cfg.Parallel < 2 {
		for i, t := range targets {
			if ctx.Err() != nil {
				reports[i] = AssetReport{RunID: runID, Symbol: t.Symbol, Err: ctx.Err()}
				continue
			}
			reports[i] = p.runOne(ctx, runID, t)
		}
		return reports
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Parallel)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			reports[i] = p.runOne(gctx, runID, t)
			return nil
		})
	}
	g.Wait()
	return reports
}

// runOne executes the full sequence for one asset. Each step failure is
// terminal for this asset only.
func (p *Pipeline) runOne(ctx context.Context, runID string, t Target) AssetReport {
	started := time.Now()
	rep := AssetReport{RunID: runID, Symbol: t.Symbol}
	fail := func(err error) AssetReport {
		rep.Err = err
		rep.Duration = time.Since(started)
		logger.Errorf("[pipeline] %s: %v", t.Symbol, err)
		return rep
	}

	if t.Source == nil {
		return fail(fmt.Errorf("no source for %s", t.Symbol))
	}
	if err := p.pacer.wait(ctx); err != nil {
		return fail(err)
	}
	raw, err := t.Source.Fetch(ctx, t.Symbol, t.Limit)
	if err != nil {
		return fail(fmt.Errorf("fetch %s from %s: %w", t.Symbol, t.Source.Name(), err))
	}
	series, err := normalize.Normalize(t.Source.Shape(), raw)
	if err != nil {
		return fail(err)
	}
	rep.Bars = series.Len()

	asset, err := p.store.UpsertAsset(ctx, market.Asset{
		Symbol: t.Symbol,
		Name:   t.DisplayName,
		Source: t.Source.Name(),
	})
	if err != nil {
		return fail(err)
	}
	newBars, err := p.store.InsertBars(ctx, asset.ID, series.Bars)
	if err != nil {
		return fail(err)
	}
	rep.NewBars = newBars

	res, err := indicator.Compute(series)
	if err != nil {
		return fail(fmt.Errorf("compute %s: %w", t.Symbol, err))
	}
	rep.Skipped = res.Skipped
	rep.Degraded = res.Degraded
	for _, d := range res.Skipped {
		logger.Infof("[pipeline] %s: %s skipped (%s)", t.Symbol, d.Family, d.Reason)
	}

	points := res.Frame.Melt(asset.ID)
	written, err := p.store.UpsertIndicatorPoints(ctx, points)
	if err != nil {
		return fail(err)
	}
	rep.Points = written

	if p.hook != nil {
		p.hook(t.Symbol, series, res.Frame)
	}
	rep.Duration = time.Since(started)
	logger.Infof("[pipeline] %s: %d bars (%d new), %d indicator points in %s",
		t.Symbol, rep.Bars, rep.NewBars, rep.Points, rep.Duration.Round(time.Millisecond))
	return rep
}

// Recompute reloads an asset's stored bars and recomputes every indicator
// family from them, without touching upstream sources. Bars keep their
// first-write values; points are overwritten with the fresh computation.
func (p *Pipeline) Recompute(ctx context.Context, symbol string) (AssetReport, error) {
	started := time.Now()
	rep := AssetReport{RunID: uuid.NewString(), Symbol: symbol}
	asset, ok, err := p.store.GetAsset(ctx, symbol)
	if err != nil {
		return rep, err
	}
	if !ok {
		return rep, fmt.Errorf("unknown asset %s", symbol)
	}
	bars, err := p.store.LoadBars(ctx, asset.ID, time.Time{}, time.Time{})
	if err != nil {
		return rep, err
	}
	series := normalize.FromBars(bars)
	rep.Bars = series.Len()
	res, err := indicator.Compute(series)
	if err != nil {
		return rep, fmt.Errorf("compute %s: %w", symbol, err)
	}
	rep.Skipped = res.Skipped
	rep.Degraded = res.Degraded
	written, err := p.store.UpsertIndicatorPoints(ctx, res.Frame.Melt(asset.ID))
	if err != nil {
		return rep, err
	}
	rep.Points = written
	if p.hook != nil {
		p.hook(symbol, series, res.Frame)
	}
	rep.Duration = time.Since(started)
	return rep, nil
}

// pacer spaces upstream fetches by a fixed interval across workers.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func (p *pacer) wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}
	p.mu.Lock()
	now := time.Now()
	next := p.last.Add(p.interval)
	if next.Before(now) {
		next = now
	}
	p.last = next
	p.mu.Unlock()
	d := time.Until(next)
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
