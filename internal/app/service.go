// Package app orchestrates chart selections: one live pipeline at a time,
// seeded from history and torn down fully before the next selection attaches.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"chartfeed/config"
	"chartfeed/internal/domain"
	"chartfeed/internal/marketcal"
	"chartfeed/internal/pipeline"
	"chartfeed/internal/ports"
)

const seedRetryAttempts = 4

// ChartService owns the active chart selection. Selecting a new symbol or
// timeframe tears the previous pipeline down before the new one attaches, so
// at most one source feeds the display sequence at any time.
type ChartService struct {
	cfg     *config.Config
	logger  ports.Logger
	cal     *marketcal.Calendar
	stream  ports.StreamSource
	quotes  ports.QuoteSource
	history ports.HistorySource
	cache   ports.CandleRepository

	mu        sync.Mutex
	current   *pipeline.Pipeline
	symbol    string
	timeframe domain.Timeframe
	asset     domain.AssetClass
	reference *PriceReference
}

// NewChartService creates the application service instance.
func NewChartService(
	cfg *config.Config,
	logger ports.Logger,
	cal *marketcal.Calendar,
	stream ports.StreamSource,
	quotes ports.QuoteSource,
	history ports.HistorySource,
	cache ports.CandleRepository,
) (*ChartService, error) {
	if cfg == nil || logger == nil || cal == nil || history == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for ChartService", ports.ErrConfigurationError)
	}
	if stream == nil && quotes == nil {
		return nil, fmt.Errorf("%w: ChartService requires at least one tick source", ports.ErrConfigurationError)
	}
	return &ChartService{
		cfg:     cfg,
		logger:  logger,
		cal:     cal,
		stream:  stream,
		quotes:  quotes,
		history: history,
		cache:   cache,
	}, nil
}

// Select switches the active chart to (symbol, tf, asset). The previous
// pipeline, if any, is torn down completely first: after Select returns, no
// tick from the old selection can reach the display sequence.
func (s *ChartService) Select(ctx context.Context, symbol string, tf domain.Timeframe, asset domain.AssetClass) error {
	op := "ChartService.Select"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.logger.Info(ctx, op+": tearing down previous selection", map[string]interface{}{
			"symbol":    s.symbol,
			"timeframe": string(s.timeframe),
		})
		s.current.Teardown(ctx)
		s.current = nil
	}

	p, err := pipeline.New(pipeline.Config{
		Symbol:         symbol,
		Timeframe:      tf,
		AssetClass:     asset,
		Calendar:       s.cal,
		Logger:         s.logger,
		Stream:         s.stream,
		Quotes:         s.quotes,
		PollInterval:   s.cfg.PollInterval,
		RequestTimeout: s.cfg.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("%s: creating pipeline: %w", op, err)
	}

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("%s: starting pipeline: %w", op, err)
	}

	// The pipeline drops live ticks until the seed is applied, so a slow
	// history fetch cannot race a stray tick into a malformed first bucket.
	history, err := s.loadHistory(ctx, symbol, tf)
	if err != nil {
		p.Teardown(ctx)
		return fmt.Errorf("%s: seeding history: %w", op, err)
	}
	p.Seed(history)

	if s.reference == nil || s.symbol != symbol {
		s.reference = NewPriceReference(s.cfg.RefAnchorGap)
	}

	s.current = p
	s.symbol = symbol
	s.timeframe = tf
	s.asset = asset

	s.logger.Info(ctx, op+": selection active", map[string]interface{}{
		"symbol":    symbol,
		"timeframe": string(tf),
		"asset":     string(asset),
		"seeded":    len(history),
	})
	return nil
}

// loadHistory fetches the seed candles with bounded retry, falling back to
// the local cache when the source stays unavailable. Fetched candles are
// written through to the cache for the next cold start.
func (s *ChartService) loadHistory(ctx context.Context, symbol string, tf domain.Timeframe) ([]domain.Candle, error) {
	op := "ChartService.loadHistory"

	var candles []domain.Candle
	fetch := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
		var err error
		candles, err = s.history.FetchHistory(reqCtx, symbol, tf, s.cfg.HistoryLimit)
		if err != nil {
			if errors.Is(err, ports.ErrInvalidRequest) {
				return backoff.Permanent(err)
			}
			s.logger.Warn(ctx, op+": history fetch failed, will retry", map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			})
			return err
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), seedRetryAttempts), ctx)
	fetchErr := backoff.Retry(fetch, b)
	if fetchErr == nil {
		if s.cache != nil && len(candles) > 0 {
			if err := s.cache.UpsertCandles(ctx, symbol, tf, candles); err != nil {
				s.logger.Warn(ctx, op+": failed to cache fetched history", map[string]interface{}{
					"symbol": symbol,
					"error":  err.Error(),
				})
			}
		}
		return candles, nil
	}

	if s.cache == nil {
		return nil, fetchErr
	}
	s.logger.Warn(ctx, op+": history source unavailable, falling back to cache", map[string]interface{}{
		"symbol": symbol,
		"error":  fetchErr.Error(),
	})
	cached, cacheErr := s.cache.FindCandles(ctx, symbol, tf, s.cfg.HistoryLimit)
	if cacheErr != nil {
		return nil, fmt.Errorf("history fetch failed (%v) and cache lookup failed: %w", fetchErr, cacheErr)
	}
	if len(cached) == 0 {
		return nil, fmt.Errorf("history fetch failed and cache is empty for %s %s: %w", symbol, tf, fetchErr)
	}
	s.logger.Info(ctx, op+": seeded from cache", map[string]interface{}{
		"symbol": symbol,
		"count":  len(cached),
	})
	return cached, nil
}

// Run starts the configured selection and blocks until the context is
// canceled or a shutdown signal arrives.
func (s *ChartService) Run(ctx context.Context) error {
	op := "ChartService.Run"
	s.logger.Info(ctx, "Starting chart service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.Select(ctx, s.cfg.Symbol, s.cfg.Timeframe, s.cfg.AssetClass); err != nil {
		s.logger.Error(ctx, err, op+": initial selection failed")
		return err
	}

	// The pipeline does the live work; this loop keeps the reference anchor
	// current and emits a periodic heartbeat.
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(context.Background(), op+": shutting down")
			s.Close(context.Background())
			return nil
		case <-ticker.C:
			s.observeQuote(ctx)
		}
	}
}

// observeQuote feeds the pipeline's latest price into the reference state and
// logs a heartbeat at debug level.
func (s *ChartService) observeQuote(ctx context.Context) {
	s.mu.Lock()
	p := s.current
	ref := s.reference
	asset := s.asset
	s.mu.Unlock()
	if p == nil || ref == nil {
		return
	}

	now := time.Now()
	price := p.LatestPrice()
	if price <= 0 {
		return
	}
	sess := s.cal.Classify(now, asset)
	ref.Observe(price, now, sess.Status == domain.SessionRegular)

	fields := map[string]interface{}{
		"symbol":  s.symbol,
		"price":   price,
		"session": string(sess.Status),
	}
	if pct, ok := ref.ChangePercent(price, now); ok {
		fields["changePct"] = pct
	}
	s.logger.Debug(ctx, "Quote heartbeat", fields)
}

// Snapshot returns the current display sequence with the live overlay
// applied, or nil when no selection is active.
func (s *ChartService) Snapshot() []domain.Candle {
	s.mu.Lock()
	p := s.current
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Snapshot(time.Now())
}

// LatestPrice returns the most recent valid quote for the active selection,
// including extended-hours prices that are barred from candle bodies.
func (s *ChartService) LatestPrice() float64 {
	s.mu.Lock()
	p := s.current
	s.mu.Unlock()
	if p == nil {
		return 0
	}
	return p.LatestPrice()
}

// ReferencePrice returns the current percentage-change anchor, or false when
// none is known yet.
func (s *ChartService) ReferencePrice() (float64, bool) {
	s.mu.Lock()
	ref := s.reference
	s.mu.Unlock()
	if ref == nil {
		return 0, false
	}
	return ref.Anchor(time.Now())
}

// Close tears down the active pipeline.
func (s *ChartService) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Teardown(ctx)
		s.current = nil
	}
}
