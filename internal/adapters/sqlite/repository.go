// Package sqlite implements the local candle history cache on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chartfeed/internal/domain"
	"chartfeed/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.CandleRepository interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite candle cache instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/chartfeed.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory %q: %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("%w: opening database at %q: %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: pinging database at %q: %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "Candle cache opened", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS candles (
		symbol       TEXT    NOT NULL,
		timeframe    TEXT    NOT NULL,
		bucket_start INTEGER NOT NULL,
		open         REAL    NOT NULL,
		high         REAL    NOT NULL,
		low          REAL    NOT NULL,
		close        REAL    NOT NULL,
		volume       REAL    NOT NULL DEFAULT 0,
		fetched_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, timeframe, bucket_start)
	);
	CREATE INDEX IF NOT EXISTS idx_candles_lookup ON candles (symbol, timeframe, bucket_start DESC);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing candle cache")
		return r.db.Close()
	}
	return nil
}

// UpsertCandles stores candles, replacing rows with the same bucket start.
func (r *Repository) UpsertCandles(ctx context.Context, symbol string, tf domain.Timeframe, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", ports.ErrUpdateFailed, err)
	}
	defer tx.Rollback()

	const query = `
	INSERT INTO candles (symbol, timeframe, bucket_start, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (symbol, timeframe, bucket_start) DO UPDATE SET
		open = excluded.open,
		high = excluded.high,
		low = excluded.low,
		close = excluded.close,
		volume = excluded.volume,
		fetched_at = CURRENT_TIMESTAMP`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: preparing upsert: %v", ports.ErrUpdateFailed, err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, string(tf), c.BucketStart, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("%w: upserting candle %d for %s: %v", ports.ErrUpdateFailed, c.BucketStart, symbol, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing upsert: %v", ports.ErrUpdateFailed, err)
	}

	r.logger.Debug(ctx, "Cached candles", map[string]interface{}{
		"symbol":    symbol,
		"timeframe": string(tf),
		"count":     len(candles),
	})
	return nil
}

// FindCandles retrieves up to limit of the most recent cached candles,
// ordered ascending by bucket start.
func (r *Repository) FindCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	const query = `
	SELECT bucket_start, open, high, low, close, volume
	FROM candles
	WHERE symbol = ? AND timeframe = ?
	ORDER BY bucket_start DESC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying candles for %s %s: %v", ports.ErrQueryFailed, symbol, tf, err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.BucketStart, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("%w: scanning candle row: %v", ports.ErrQueryFailed, err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating candle rows: %v", ports.ErrQueryFailed, err)
	}

	// Newest-first query for the LIMIT; callers want ascending order.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}
