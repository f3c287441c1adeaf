// Package aggregate implements the core candle aggregation state machine:
// normalizing irregular ticks, folding them into fixed-width OHLCV buckets
// anchored at exchange-correct boundaries, and projecting the live price onto
// the in-progress bucket for display.
package aggregate

import (
	"context"
	"time"

	"chartfeed/internal/domain"
	"chartfeed/internal/interval"
	"chartfeed/internal/marketcal"
	"chartfeed/internal/ports"
)

// Outcome reports what a single ingest did to the committed sequence.
type Outcome int

const (
	// OutcomeDropped means the tick was rejected (invalid, stale, or outside
	// the equity regular session) and the committed sequence is unchanged.
	OutcomeDropped Outcome = iota
	// OutcomeCreated means a new bucket was opened.
	OutcomeCreated
	// OutcomeMerged means the tick was folded into the currently open bucket.
	OutcomeMerged
)

// Stats are observability counters; they never drive control flow.
type Stats struct {
	Accepted      uint64 // ticks that created or merged a bucket
	Rejected      uint64 // normalization failures
	Discarded     uint64 // stale or out-of-session ticks
	TicksInBucket int    // ticks folded into the currently open bucket
}

// Engine owns the committed candle sequence for one (symbol, timeframe,
// asset class) pipeline. Mutation only ever appends a new last element or
// mutates that same last element in place; a candle becomes immutable the
// moment a later bucket opens. The engine is not goroutine-safe: the owning
// pipeline serializes access.
type Engine struct {
	tf     domain.Timeframe
	asset  domain.AssetClass
	cal    *marketcal.Calendar
	logger ports.Logger

	candles   []domain.Candle
	lastQuote float64
	stats     Stats
}

// Config for a new Engine.
type Config struct {
	Timeframe  domain.Timeframe
	AssetClass domain.AssetClass
	Calendar   *marketcal.Calendar
	Logger     ports.Logger
}

// NewEngine creates an empty aggregation engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		return nil, ports.ErrConfigurationError
	}
	if cfg.Calendar == nil {
		return nil, ports.ErrSessionUnavailable
	}
	if _, err := domain.ParseTimeframe(string(cfg.Timeframe)); err != nil {
		return nil, err
	}
	return &Engine{
		tf:     cfg.Timeframe,
		asset:  cfg.AssetClass,
		cal:    cfg.Calendar,
		logger: cfg.Logger,
	}, nil
}

// Ingest folds one raw tick into the committed sequence. Invalid ticks are
// counted and dropped without mutating state; they are never an error the
// caller needs to act on.
func (e *Engine) Ingest(ctx context.Context, raw domain.RawTick) Outcome {
	tick, err := Normalize(raw)
	if err != nil {
		e.stats.Rejected++
		e.logger.Debug(ctx, "Dropping unparseable tick", map[string]interface{}{"error": err.Error()})
		return OutcomeDropped
	}

	// The latest quote always tracks the most recent valid observation, even
	// when the tick is barred from bucket construction: the live overlay and
	// the reference-price indicator read it during extended hours.
	e.lastQuote = tick.Close

	// Strict freeze: extended-hours equity ticks never create a bucket and
	// never mutate the shape of the last committed one.
	if e.asset == domain.AssetEquity {
		sess := e.cal.Classify(time.UnixMilli(tick.Time), e.asset)
		if !sess.IsSessionActive {
			e.stats.Discarded++
			e.logger.Debug(ctx, "Dropping out-of-session equity tick", map[string]interface{}{
				"tickTime": tick.Time,
				"session":  string(sess.Status),
			})
			return OutcomeDropped
		}
	}

	key := interval.KeyFor(tick.Time, e.tf, e.asset, e.cal)

	if len(e.candles) == 0 {
		e.openBucket(key, tick)
		return OutcomeCreated
	}

	last := &e.candles[len(e.candles)-1]
	switch {
	case key < last.BucketStart:
		// Stale/out-of-order tick from a backward-jumping source.
		e.stats.Discarded++
		e.logger.Debug(ctx, "Discarding stale tick", map[string]interface{}{
			"tickKey": key,
			"lastKey": last.BucketStart,
		})
		return OutcomeDropped
	case key == last.BucketStart:
		e.merge(last, tick)
		e.stats.Accepted++
		e.stats.TicksInBucket++
		return OutcomeMerged
	default:
		// Rollover: the previous candle is now immutable.
		e.openBucket(key, tick)
		return OutcomeCreated
	}
}

func (e *Engine) openBucket(key int64, tick domain.Tick) {
	e.candles = append(e.candles, domain.Candle{
		BucketStart: key,
		Open:        tick.Open,
		High:        tick.High,
		Low:         tick.Low,
		Close:       tick.Close,
		Volume:      tick.Volume,
	})
	e.stats.Accepted++
	e.stats.TicksInBucket = 1
}

// merge folds a tick into the open bucket. Full-OHLC ticks are themselves
// running aggregates of the same bucket upstream, so their fields replace the
// existing ones outright, except the bucket open which stays stable.
// Last-price ticks combine conservatively, and polled quotes cannot supply a
// reliable incremental volume, so volume only accumulates when the tick
// carries a genuine delta.
func (e *Engine) merge(c *domain.Candle, tick domain.Tick) {
	if tick.Kind == domain.FullOHLCTick {
		c.High = tick.High
		c.Low = tick.Low
		c.Close = tick.Close
		c.Volume = tick.Volume
		return
	}
	c.Close = tick.Close
	if tick.Close > c.High {
		c.High = tick.Close
	}
	if tick.Close < c.Low {
		c.Low = tick.Close
	}
	if tick.Volume > 0 {
		c.Volume += tick.Volume
	}
}

// Seed replaces the committed sequence with a batch-aggregated history. Used
// when a bulk fetch replaces the working set on symbol or timeframe change.
func (e *Engine) Seed(history []domain.Candle) {
	e.candles = AggregateBatch(history, e.tf, e.asset, e.cal)
	e.stats.TicksInBucket = 0
}

// Committed returns a copy of the committed sequence. The copy shares no
// mutable state with the engine, so callers can hold it across rollovers.
func (e *Engine) Committed() []domain.Candle {
	return domain.CloneCandles(e.candles)
}

// Len returns the number of committed candles.
func (e *Engine) Len() int {
	return len(e.candles)
}

// LastQuote returns the close of the most recent valid tick, including
// extended-hours ticks that never reached a bucket. Zero until the first
// valid tick arrives.
func (e *Engine) LastQuote() float64 {
	return e.lastQuote
}

// Stats returns the engine's observability counters.
func (e *Engine) Stats() Stats {
	return e.stats
}
