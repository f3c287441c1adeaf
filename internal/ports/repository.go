package ports

import (
	"context"

	"chartfeed/internal/domain"
)

// CandleRepository defines the interface for the local candle history cache.
// The cache lets a restart or a transient source outage still seed the
// committed sequence with the last fetched history.
type CandleRepository interface {
	// UpsertCandles stores candles for a (symbol, timeframe) pair, replacing
	// existing rows with the same bucket start. Must be idempotent.
	UpsertCandles(ctx context.Context, symbol string, tf domain.Timeframe, candles []domain.Candle) error
	// FindCandles retrieves up to limit of the most recent cached candles for
	// a (symbol, timeframe) pair, ordered ascending by bucket start.
	FindCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error)
	// Close releases the underlying storage.
	Close() error
}
