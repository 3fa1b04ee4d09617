// Package http exposes a read-only gin API over the series store.
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"screener/internal/market"
	"screener/internal/store"
)

// Server serves stored assets, bars and indicator points. No mutation
// routes: writes only happen through the pipeline.
type Server struct {
	addr   string
	store  *store.Store
	router *gin.Engine
}

type Config struct {
	Addr  string
	Store *store.Store
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8787"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s := &Server{addr: cfg.Addr, store: cfg.Store, router: router}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	api.GET("/assets", s.handleAssets)
	api.GET("/assets/:symbol/bars", s.handleBars)
	api.GET("/assets/:symbol/indicators", s.handleIndicators)
}

func (s *Server) handleAssets(c *gin.Context) {
	assets, err := s.store.ListAssets(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

// barDTO keeps SQL nulls as JSON nulls on the wire.
type barDTO struct {
	Time   int64    `json:"time"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume"`
}

func (s *Server) handleBars(c *gin.Context) {
	asset, ok := s.lookupAsset(c)
	if !ok {
		return
	}
	from, to, ok := timeRange(c)
	if !ok {
		return
	}
	bars, err := s.store.LoadBars(c.Request.Context(), asset.ID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]barDTO, 0, len(bars))
	for _, b := range bars {
		out = append(out, barDTO{
			Time:   b.Time.UnixMilli(),
			Open:   optional(b.Open),
			High:   optional(b.High),
			Low:    optional(b.Low),
			Close:  b.Close,
			Volume: optional(b.Volume),
		})
	}
	c.JSON(http.StatusOK, gin.H{"symbol": asset.Symbol, "bars": out})
}

type pointDTO struct {
	Time  int64   `json:"time"`
	Name  string  `json:"indicator_name"`
	Value float64 `json:"value"`
}

func (s *Server) handleIndicators(c *gin.Context) {
	asset, ok := s.lookupAsset(c)
	if !ok {
		return
	}
	from, to, ok := timeRange(c)
	if !ok {
		return
	}
	points, err := s.store.LoadIndicatorPoints(c.Request.Context(), asset.ID, from, to, c.Query("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]pointDTO, 0, len(points))
	for _, p := range points {
		out = append(out, pointDTO{Time: p.Time.UnixMilli(), Name: p.Name, Value: p.Value})
	}
	c.JSON(http.StatusOK, gin.H{"symbol": asset.Symbol, "points": out})
}

func (s *Server) lookupAsset(c *gin.Context) (market.Asset, bool) {
	symbol := c.Param("symbol")
	asset, found, err := s.store.GetAsset(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return market.Asset{}, false
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol " + symbol})
		return market.Asset{}, false
	}
	return asset, true
}

// timeRange parses optional from/to query params as unix milliseconds.
func timeRange(c *gin.Context) (time.Time, time.Time, bool) {
	parse := func(key string) (time.Time, bool) {
		raw := c.Query(key)
		if raw == "" {
			return time.Time{}, true
		}
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be unix milliseconds"})
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}
	from, ok := parse("from")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := parse("to")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func optional(v float64) *float64 {
	if market.IsNull(v) {
		return nil
	}
	return &v
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
