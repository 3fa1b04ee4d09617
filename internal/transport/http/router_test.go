package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"screener/internal/market"
	"screener/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	srv, err := NewServer(Config{Store: st})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, st
}

func seedAsset(t *testing.T, st *store.Store) market.Asset {
	t.Helper()
	ctx := context.Background()
	asset, err := st.UpsertAsset(ctx, market.Asset{Symbol: "BTC", Name: "Bitcoin"})
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []market.Bar{
		{Time: base, Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
		{Time: base.AddDate(0, 0, 1), Open: market.Null(), High: market.Null(), Low: market.Null(), Close: 12, Volume: market.Null()},
	}
	if _, err := st.InsertBars(ctx, asset.ID, bars); err != nil {
		t.Fatal(err)
	}
	points := []market.IndicatorPoint{
		{AssetID: asset.ID, Time: base, Name: "SMA_20", Value: 10.5},
		{AssetID: asset.ID, Time: base.AddDate(0, 0, 1), Name: "RSI_14", Value: 55},
	}
	if _, err := st.UpsertIndicatorPoints(ctx, points); err != nil {
		t.Fatal(err)
	}
	return asset
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestListAssetsRoute(t *testing.T) {
	srv, st := newTestServer(t)
	seedAsset(t, st)

	w := get(t, srv, "/api/assets")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var body struct {
		Assets []market.Asset `json:"assets"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Assets) != 1 || body.Assets[0].Symbol != "BTC" {
		t.Fatalf("unexpected assets: %+v", body.Assets)
	}
}

func TestBarsRouteKeepsNulls(t *testing.T) {
	srv, st := newTestServer(t)
	seedAsset(t, st)

	w := get(t, srv, "/api/assets/BTC/bars")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var body struct {
		Symbol string   `json:"symbol"`
		Bars   []barDTO `json:"bars"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Symbol != "BTC" || len(body.Bars) != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Bars[0].Open == nil || *body.Bars[0].Open != 10 {
		t.Fatalf("present open lost: %+v", body.Bars[0])
	}
	if body.Bars[1].Open != nil || body.Bars[1].Volume != nil {
		t.Fatalf("absent columns must serialize as null: %+v", body.Bars[1])
	}
}

func TestIndicatorsRouteNameFilter(t *testing.T) {
	srv, st := newTestServer(t)
	seedAsset(t, st)

	w := get(t, srv, "/api/assets/BTC/indicators?name=RSI_14")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var body struct {
		Points []pointDTO `json:"points"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Points) != 1 || body.Points[0].Name != "RSI_14" || body.Points[0].Value != 55 {
		t.Fatalf("unexpected points: %+v", body.Points)
	}
}

func TestUnknownSymbolIs404(t *testing.T) {
	srv, st := newTestServer(t)
	seedAsset(t, st)

	if w := get(t, srv, "/api/assets/NOPE/bars"); w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", w.Code)
	}
}

func TestBadTimeRangeIs400(t *testing.T) {
	srv, st := newTestServer(t)
	seedAsset(t, st)

	if w := get(t, srv, "/api/assets/BTC/bars?from=yesterday"); w.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", w.Code)
	}
}

func TestTimeRangeFilters(t *testing.T) {
	srv, st := newTestServer(t)
	seedAsset(t, st)

	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli()
	w := get(t, srv, "/api/assets/BTC/bars?from="+strconv.FormatInt(from, 10))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var body struct {
		Bars []barDTO `json:"bars"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Bars) != 1 || body.Bars[0].Close != 12 {
		t.Fatalf("range filter wrong: %+v", body.Bars)
	}
}
