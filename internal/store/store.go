// Package store persists assets, bars and indicator points in SQLite with
// the pipeline's asymmetric upsert policies: bars are first-write-wins,
// indicator points are last-write-wins.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"screener/internal/logger"
	"screener/internal/market"
)

const defaultChunkSize = 500

// PersistenceError wraps a transaction failure. The failed chunk has been
// rolled back in full; the caller may retry or move on to the next asset,
// since other chunks and assets are unaffected.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store wraps a single SQLite database. Writes are serialized on one
// connection; per-chunk transactions are the only shared resource the
// pipeline's workers contend on.
type Store struct {
	mu        sync.Mutex
	db        *sql.DB
	chunkSize int
}

// Open opens (creating if needed) the database at path and applies the
// schema. WAL keeps readers unblocked while the pipeline writes.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	logger.Infof("[store] opened database at %s", path)
	return &Store{db: db, chunkSize: defaultChunkSize}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS assets (
            id     INTEGER PRIMARY KEY AUTOINCREMENT,
            symbol TEXT NOT NULL UNIQUE,
            name   TEXT,
            source TEXT
        );

        CREATE TABLE IF NOT EXISTS bars (
            asset_id INTEGER NOT NULL REFERENCES assets(id),
            time     INTEGER NOT NULL,
            open     REAL,
            high     REAL,
            low      REAL,
            close    REAL NOT NULL,
            volume   REAL,
            PRIMARY KEY (asset_id, time)
        );

        CREATE TABLE IF NOT EXISTS indicator_points (
            asset_id       INTEGER NOT NULL REFERENCES assets(id),
            time           INTEGER NOT NULL,
            indicator_name TEXT NOT NULL,
            value          REAL NOT NULL,
            PRIMARY KEY (asset_id, time, indicator_name)
        );
    `)
	return err
}

// UpsertAsset creates the asset on first ingestion of its symbol and returns
// the stored identity. On conflict only previously unknown name/source are
// backfilled; existing values are never overwritten and never nulled.
func (s *Store) UpsertAsset(ctx context.Context, a market.Asset) (market.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO assets (symbol, name, source) VALUES (?, ?, ?)
        ON CONFLICT(symbol) DO UPDATE SET
            name   = COALESCE(assets.name, excluded.name),
            source = COALESCE(assets.source, excluded.source)`,
		a.Symbol, nullIfEmpty(a.Name), nullIfEmpty(a.Source))
	if err != nil {
		return market.Asset{}, &PersistenceError{Op: "upsert asset", Err: err}
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, symbol, COALESCE(name, ''), COALESCE(source, '') FROM assets WHERE symbol = ?`,
		a.Symbol)
	var out market.Asset
	if err := row.Scan(&out.ID, &out.Symbol, &out.Name, &out.Source); err != nil {
		return market.Asset{}, &PersistenceError{Op: "upsert asset", Err: err}
	}
	return out, nil
}

// InsertBars writes bars with insert-or-ignore semantics: the first write
// for an (asset_id, time) key wins, so a later lower-quality re-fetch never
// clobbers stored OHLCV. Bars without a close are not persistable and are
// skipped with a warning. Returns the number of newly inserted rows.
func (s *Store) InsertBars(ctx context.Context, assetID int64, bars []market.Bar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for start := 0; start < len(bars); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(bars) {
			end = len(bars)
		}
		n, err := s.insertBarChunk(ctx, assetID, bars[start:end])
		if err != nil {
			return inserted, &PersistenceError{Op: "insert bars", Err: err}
		}
		inserted += n
	}
	return inserted, nil
}

func (s *Store) insertBarChunk(ctx context.Context, assetID int64, bars []market.Bar) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO bars (asset_id, time, open, high, low, close, volume)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(asset_id, time) DO NOTHING`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	inserted := 0
	for _, b := range bars {
		if market.IsNull(b.Close) {
			logger.Warnf("[store] asset %d: bar at %s has no close, skipped", assetID, b.Time.Format(time.RFC3339))
			continue
		}
		res, err := stmt.ExecContext(ctx, assetID, b.Time.UnixMilli(),
			nullIfNaN(b.Open), nullIfNaN(b.High), nullIfNaN(b.Low), b.Close, nullIfNaN(b.Volume))
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// UpsertIndicatorPoints writes points with insert-or-update semantics: the
// last write for an (asset_id, time, indicator_name) key wins, since
// indicator values are derived and should reflect the latest computation.
func (s *Store) UpsertIndicatorPoints(ctx context.Context, points []market.IndicatorPoint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	written := 0
	for start := 0; start < len(points); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(points) {
			end = len(points)
		}
		n, err := s.upsertPointChunk(ctx, points[start:end])
		if err != nil {
			return written, &PersistenceError{Op: "upsert indicator points", Err: err}
		}
		written += n
	}
	return written, nil
}

func (s *Store) upsertPointChunk(ctx context.Context, points []market.IndicatorPoint) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO indicator_points (asset_id, time, indicator_name, value)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(asset_id, time, indicator_name) DO UPDATE SET value = excluded.value`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	written := 0
	for _, p := range points {
		if market.IsNull(p.Value) {
			// Nulls never reach storage; the long format is sparse.
			continue
		}
		if _, err := stmt.ExecContext(ctx, p.AssetID, p.Time.UnixMilli(), p.Name, p.Value); err != nil {
			tx.Rollback()
			return 0, err
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// GetAsset looks an asset up by symbol.
func (s *Store) GetAsset(ctx context.Context, symbol string) (market.Asset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, symbol, COALESCE(name, ''), COALESCE(source, '') FROM assets WHERE symbol = ?`, symbol)
	var a market.Asset
	if err := row.Scan(&a.ID, &a.Symbol, &a.Name, &a.Source); err != nil {
		if err == sql.ErrNoRows {
			return market.Asset{}, false, nil
		}
		return market.Asset{}, false, &PersistenceError{Op: "get asset", Err: err}
	}
	return a, true, nil
}

// ListAssets returns every known asset ordered by symbol.
func (s *Store) ListAssets(ctx context.Context) ([]market.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, COALESCE(name, ''), COALESCE(source, '') FROM assets ORDER BY symbol ASC`)
	if err != nil {
		return nil, &PersistenceError{Op: "list assets", Err: err}
	}
	defer rows.Close()
	var out []market.Asset
	for rows.Next() {
		var a market.Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name, &a.Source); err != nil {
			return nil, &PersistenceError{Op: "list assets", Err: err}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LoadBars returns the stored bars for an asset ascending by time. Zero
// from/to leave that bound open.
func (s *Store) LoadBars(ctx context.Context, assetID int64, from, to time.Time) ([]market.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := `SELECT time, open, high, low, close, volume FROM bars WHERE asset_id = ?`
	args := []any{assetID}
	if !from.IsZero() {
		query += ` AND time >= ?`
		args = append(args, from.UnixMilli())
	}
	if !to.IsZero() {
		query += ` AND time <= ?`
		args = append(args, to.UnixMilli())
	}
	query += ` ORDER BY time ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &PersistenceError{Op: "load bars", Err: err}
	}
	defer rows.Close()
	var out []market.Bar
	for rows.Next() {
		var ms int64
		var open, high, low, volume sql.NullFloat64
		var b market.Bar
		if err := rows.Scan(&ms, &open, &high, &low, &b.Close, &volume); err != nil {
			return nil, &PersistenceError{Op: "load bars", Err: err}
		}
		b.Time = time.UnixMilli(ms).UTC()
		b.Open = fromNull(open)
		b.High = fromNull(high)
		b.Low = fromNull(low)
		b.Volume = fromNull(volume)
		out = append(out, b)
	}
	return out, rows.Err()
}

// LoadIndicatorPoints returns stored points for an asset, optionally
// filtered by indicator name, ascending by time then name.
func (s *Store) LoadIndicatorPoints(ctx context.Context, assetID int64, from, to time.Time, name string) ([]market.IndicatorPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := `SELECT time, indicator_name, value FROM indicator_points WHERE asset_id = ?`
	args := []any{assetID}
	if !from.IsZero() {
		query += ` AND time >= ?`
		args = append(args, from.UnixMilli())
	}
	if !to.IsZero() {
		query += ` AND time <= ?`
		args = append(args, to.UnixMilli())
	}
	if name != "" {
		query += ` AND indicator_name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY time ASC, indicator_name ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &PersistenceError{Op: "load indicator points", Err: err}
	}
	defer rows.Close()
	var out []market.IndicatorPoint
	for rows.Next() {
		var ms int64
		var p market.IndicatorPoint
		if err := rows.Scan(&ms, &p.Name, &p.Value); err != nil {
			return nil, &PersistenceError{Op: "load indicator points", Err: err}
		}
		p.AssetID = assetID
		p.Time = time.UnixMilli(ms).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func nullIfNaN(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return market.Null()
	}
	return v.Float64
}
