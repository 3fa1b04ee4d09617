package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"screener/internal/market"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestUpsertAssetBackfillsButNeverOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertAsset(ctx, market.Asset{Symbol: "BTC"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("id not assigned")
	}

	// Name arrives on a later run: backfill.
	second, err := s.UpsertAsset(ctx, market.Asset{Symbol: "BTC", Name: "Bitcoin", Source: "coingecko"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("id changed on upsert: %d != %d", second.ID, first.ID)
	}
	if second.Name != "Bitcoin" || second.Source != "coingecko" {
		t.Fatalf("backfill lost: %+v", second)
	}

	// A conflicting later name must not replace the stored one.
	third, err := s.UpsertAsset(ctx, market.Asset{Symbol: "BTC", Name: "Bitcoin Renamed"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if third.Name != "Bitcoin" {
		t.Fatalf("stored name overwritten: %+v", third)
	}
}

func TestInsertBarsFirstWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	asset, err := s.UpsertAsset(ctx, market.Asset{Symbol: "ETH"})
	if err != nil {
		t.Fatal(err)
	}

	bars := []market.Bar{
		{Time: day(0), Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
		{Time: day(1), Open: 11, High: 13, Low: 10, Close: 12, Volume: 110},
	}
	n, err := s.InsertBars(ctx, asset.ID, bars)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 new bars, got %d", n)
	}

	// Re-fetch with different values: the original rows must survive.
	refetch := []market.Bar{
		{Time: day(0), Close: 999},
		{Time: day(2), Close: 13},
	}
	n, err = s.InsertBars(ctx, asset.ID, refetch)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 new bar on re-fetch, got %d", n)
	}

	stored, err := s.LoadBars(ctx, asset.ID, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("want 3 bars, got %d", len(stored))
	}
	if stored[0].Close != 11 {
		t.Fatalf("first write lost: close=%v", stored[0].Close)
	}
}

func TestInsertBarsSkipsMissingClose(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	asset, err := s.UpsertAsset(ctx, market.Asset{Symbol: "SOL"})
	if err != nil {
		t.Fatal(err)
	}
	bars := []market.Bar{
		{Time: day(0), Close: market.Null()},
		{Time: day(1), Close: 20},
	}
	n, err := s.InsertBars(ctx, asset.ID, bars)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 inserted bar, got %d", n)
	}
}

func TestBarsNullRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	asset, err := s.UpsertAsset(ctx, market.Asset{Symbol: "ADA"})
	if err != nil {
		t.Fatal(err)
	}
	null := market.Null()
	in := []market.Bar{{Time: day(0), Open: null, High: null, Low: null, Close: 5, Volume: null}}
	if _, err := s.InsertBars(ctx, asset.ID, in); err != nil {
		t.Fatalf("insert: %v", err)
	}
	out, err := s.LoadBars(ctx, asset.ID, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b := out[0]
	if !market.IsNull(b.Open) || !market.IsNull(b.High) || !market.IsNull(b.Low) || !market.IsNull(b.Volume) {
		t.Fatalf("nulls did not survive the round trip: %+v", b)
	}
	if b.Close != 5 || !b.Time.Equal(day(0)) {
		t.Fatalf("present columns lost: %+v", b)
	}
}

func TestUpsertIndicatorPointsLastWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	asset, err := s.UpsertAsset(ctx, market.Asset{Symbol: "DOT"})
	if err != nil {
		t.Fatal(err)
	}
	point := market.IndicatorPoint{AssetID: asset.ID, Time: day(0), Name: "SMA_20", Value: 1.5}
	if _, err := s.UpsertIndicatorPoints(ctx, []market.IndicatorPoint{point}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	point.Value = 2.5
	if _, err := s.UpsertIndicatorPoints(ctx, []market.IndicatorPoint{point}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	points, err := s.LoadIndicatorPoints(ctx, asset.ID, time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("want 1 point, got %d", len(points))
	}
	if points[0].Value != 2.5 {
		t.Fatalf("recomputation did not win: %v", points[0].Value)
	}
}

func TestUpsertIndicatorPointsChunked(t *testing.T) {
	s := openTestStore(t)
	s.chunkSize = 3
	ctx := context.Background()
	asset, err := s.UpsertAsset(ctx, market.Asset{Symbol: "XRP"})
	if err != nil {
		t.Fatal(err)
	}
	points := make([]market.IndicatorPoint, 10)
	for i := range points {
		points[i] = market.IndicatorPoint{AssetID: asset.ID, Time: day(i), Name: "RSI_14", Value: float64(i)}
	}
	if _, err := s.UpsertIndicatorPoints(ctx, points); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	stored, err := s.LoadIndicatorPoints(ctx, asset.ID, time.Time{}, time.Time{}, "RSI_14")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stored) != 10 {
		t.Fatalf("want 10 points across chunks, got %d", len(stored))
	}
	for i, p := range stored {
		if p.Value != float64(i) {
			t.Fatalf("point %d: want %d, got %v", i, i, p.Value)
		}
	}
}

func TestUpsertIndicatorPointsSkipsNullsInCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	asset, err := s.UpsertAsset(ctx, market.Asset{Symbol: "AVAX"})
	if err != nil {
		t.Fatal(err)
	}
	points := []market.IndicatorPoint{
		{AssetID: asset.ID, Time: day(0), Name: "SMA_20", Value: 1},
		{AssetID: asset.ID, Time: day(1), Name: "SMA_20", Value: market.Null()},
		{AssetID: asset.ID, Time: day(2), Name: "SMA_20", Value: 3},
	}
	written, err := s.UpsertIndicatorPoints(ctx, points)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if written != 2 {
		t.Fatalf("want 2 written points, got %d", written)
	}
	stored, err := s.LoadIndicatorPoints(ctx, asset.ID, time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != written {
		t.Fatalf("reported %d writes but stored %d rows", written, len(stored))
	}
}

func TestLoadWithTimeRangeAndNameFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	asset, err := s.UpsertAsset(ctx, market.Asset{Symbol: "LTC"})
	if err != nil {
		t.Fatal(err)
	}
	var bars []market.Bar
	var points []market.IndicatorPoint
	for i := 0; i < 5; i++ {
		bars = append(bars, market.Bar{Time: day(i), Close: float64(i + 1)})
		points = append(points,
			market.IndicatorPoint{AssetID: asset.ID, Time: day(i), Name: "SMA_20", Value: float64(i)},
			market.IndicatorPoint{AssetID: asset.ID, Time: day(i), Name: "atr", Value: float64(i) * 2},
		)
	}
	if _, err := s.InsertBars(ctx, asset.ID, bars); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertIndicatorPoints(ctx, points); err != nil {
		t.Fatal(err)
	}

	mid, err := s.LoadBars(ctx, asset.ID, day(1), day(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(mid) != 3 || mid[0].Close != 2 || mid[2].Close != 4 {
		t.Fatalf("range load wrong: %+v", mid)
	}

	atrOnly, err := s.LoadIndicatorPoints(ctx, asset.ID, time.Time{}, time.Time{}, "atr")
	if err != nil {
		t.Fatal(err)
	}
	if len(atrOnly) != 5 {
		t.Fatalf("want 5 atr points, got %d", len(atrOnly))
	}
	for _, p := range atrOnly {
		if p.Name != "atr" {
			t.Fatalf("name filter leaked: %+v", p)
		}
	}
}

func TestGetAssetUnknownSymbol(t *testing.T) {
	s := openTestStore(t)
	_, found, err := s.GetAsset(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("unknown symbol reported as found")
	}
}

func TestListAssetsOrdered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, sym := range []string{"ZEC", "BTC", "ETH"} {
		if _, err := s.UpsertAsset(ctx, market.Asset{Symbol: sym}); err != nil {
			t.Fatal(err)
		}
	}
	assets, err := s.ListAssets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("want 3 assets, got %d", len(assets))
	}
	for i, want := range []string{"BTC", "ETH", "ZEC"} {
		if assets[i].Symbol != want {
			t.Fatalf("order wrong at %d: %s", i, assets[i].Symbol)
		}
	}
}
