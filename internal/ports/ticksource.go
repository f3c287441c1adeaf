package ports

import (
	"context"

	"chartfeed/internal/domain"
)

// StreamSource is the push delivery model: an event-driven subscription that
// delivers raw ticks asynchronously, in arrival order, until stopped.
// Implementations own reconnection; handler and errHandler may be invoked
// from the stream's goroutine.
type StreamSource interface {
	// StreamTicks starts a subscription for a symbol at the given timeframe.
	// Returns channels to control the stream: doneCh closes when the stream
	// has fully stopped, stopCh accepts a single stop signal.
	StreamTicks(ctx context.Context, symbol string, tf domain.Timeframe, handler func(raw domain.RawTick), errHandler func(err error)) (doneCh chan struct{}, stopCh chan struct{}, err error)
}

// QuoteSource is the pull delivery model: one request yields at most one
// last-price tick. A failed or timed-out request returns an error wrapping
// a sentinel from this package (ErrSourceUnavailable, ErrTimeout, ...) and
// produces no tick; it must not block the caller's polling schedule beyond
// the request's own context deadline.
type QuoteSource interface {
	FetchQuote(ctx context.Context, symbol string) (domain.RawTick, error)
}

// HistorySource fetches historical candles used to seed the committed
// sequence before live ingestion starts.
type HistorySource interface {
	// FetchHistory returns up to limit candles for symbol at tf, ordered
	// ascending by bucket start. The candles may be at a finer granularity
	// than tf; callers re-bucket via batch aggregation.
	FetchHistory(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error)
}
