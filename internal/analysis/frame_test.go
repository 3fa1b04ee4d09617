package analysis

import (
	"testing"
	"time"

	"screener/internal/market"
)

func dayIndex(n int) []time.Time {
	out := make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = base.AddDate(0, 0, i)
	}
	return out
}

func TestAddColumnValidation(t *testing.T) {
	f := NewFrame(dayIndex(3))
	if err := f.AddColumn("a", []float64{1, 2}); err == nil {
		t.Fatal("length mismatch must be rejected")
	}
	if err := f.AddColumn("a", []float64{1, 2, 3}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := f.AddColumn("a", []float64{4, 5, 6}); err == nil {
		t.Fatal("duplicate column name must be rejected")
	}
}

func TestMeltDropsNullCells(t *testing.T) {
	f := NewFrame(dayIndex(4))
	null := market.Null()
	if err := f.AddColumn("a", []float64{null, null, 1.5, 2.5}); err != nil {
		t.Fatal(err)
	}
	if err := f.AddColumn("b", []float64{null, 3.5, null, 4.5}); err != nil {
		t.Fatal(err)
	}
	points := f.Melt(7)
	if len(points) != 4 {
		t.Fatalf("want 4 points for 4 non-null cells, got %d", len(points))
	}
	for _, p := range points {
		if p.AssetID != 7 {
			t.Fatalf("asset id lost: %+v", p)
		}
		if market.IsNull(p.Value) {
			t.Fatalf("null cell leaked into melt: %+v", p)
		}
	}
	// Column order is insertion order, rows ascending within a column.
	if points[0].Name != "a" || !points[0].Time.Equal(f.Times()[2]) || points[0].Value != 1.5 {
		t.Fatalf("unexpected first point: %+v", points[0])
	}
	if points[2].Name != "b" || points[2].Value != 3.5 {
		t.Fatalf("unexpected third point: %+v", points[2])
	}
}

func TestMeltAllNullYieldsNothing(t *testing.T) {
	f := NewFrame(dayIndex(3))
	null := market.Null()
	if err := f.AddColumn("a", []float64{null, null, null}); err != nil {
		t.Fatal(err)
	}
	if points := f.Melt(1); len(points) != 0 {
		t.Fatalf("want no points, got %d", len(points))
	}
}

func TestValueOutOfRangeIsNull(t *testing.T) {
	f := NewFrame(dayIndex(2))
	if err := f.AddColumn("a", []float64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if !market.IsNull(f.Value("missing", 0)) {
		t.Fatal("unknown column must read as null")
	}
	if !market.IsNull(f.Value("a", 5)) {
		t.Fatal("out-of-range row must read as null")
	}
	if f.Value("a", 1) != 2 {
		t.Fatal("in-range cell lost")
	}
}
