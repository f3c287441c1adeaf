// Package pipeline owns one live ingestion pipeline per (symbol, timeframe)
// selection: a single mutator over the aggregation engine, fed by a push
// stream (crypto) or a single-flight polling loop (equities).
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chartfeed/internal/aggregate"
	"chartfeed/internal/domain"
	"chartfeed/internal/marketcal"
	"chartfeed/internal/ports"
)

const teardownTimeout = 5 * time.Second

// Config for a new Pipeline.
type Config struct {
	Symbol     string
	Timeframe  domain.Timeframe
	AssetClass domain.AssetClass
	Calendar   *marketcal.Calendar
	Logger     ports.Logger

	// Stream drives crypto pipelines; Quotes drives equity pipelines.
	Stream ports.StreamSource
	Quotes ports.QuoteSource

	PollInterval   time.Duration // target cadence measured from request start
	RequestTimeout time.Duration // per-request deadline for pull cycles
}

// Pipeline serializes all mutation of the committed candle sequence. Live
// ticks are gated until Seed applies the historical batch, so a stray tick
// can never create a malformed single-tick bucket ahead of real history, and
// after Teardown returns no further tick from this pipeline's source reaches
// the engine.
type Pipeline struct {
	cfg    Config
	logger ports.Logger

	mu      sync.Mutex
	engine  *aggregate.Engine
	loading bool
	closed  bool

	cancel  context.CancelFunc
	srcDone chan struct{}
	srcStop chan struct{}
}

// New creates a pipeline with the history-loading gate engaged.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	switch cfg.AssetClass {
	case domain.AssetCrypto:
		if cfg.Stream == nil {
			return nil, fmt.Errorf("%w: crypto pipeline requires a stream source", ports.ErrConfigurationError)
		}
	case domain.AssetEquity:
		if cfg.Quotes == nil {
			return nil, fmt.Errorf("%w: equity pipeline requires a quote source", ports.ErrConfigurationError)
		}
		if cfg.PollInterval <= 0 || cfg.RequestTimeout <= 0 {
			return nil, fmt.Errorf("%w: equity pipeline requires poll interval and request timeout", ports.ErrConfigurationError)
		}
	default:
		return nil, fmt.Errorf("%w: unknown asset class %q", ports.ErrConfigurationError, cfg.AssetClass)
	}

	engine, err := aggregate.NewEngine(aggregate.Config{
		Timeframe:  cfg.Timeframe,
		AssetClass: cfg.AssetClass,
		Calendar:   cfg.Calendar,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:     cfg,
		logger:  cfg.Logger,
		engine:  engine,
		loading: true,
	}, nil
}

// Start attaches the tick source. For crypto this subscribes the push stream;
// for equities it launches the polling loop.
func (p *Pipeline) Start(ctx context.Context) error {
	op := "Pipeline.Start"
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	if p.cfg.AssetClass == domain.AssetCrypto {
		done, stop, err := p.cfg.Stream.StreamTicks(runCtx, p.cfg.Symbol, p.cfg.Timeframe, p.HandleTick, p.handleSourceError)
		if err != nil {
			cancel()
			return fmt.Errorf("%s: starting stream: %w", op, err)
		}
		p.srcDone = done
		p.srcStop = stop
	} else {
		p.srcDone = make(chan struct{})
		go p.pollLoop(runCtx)
	}

	p.logger.Info(runCtx, op+": pipeline attached", map[string]interface{}{
		"symbol":    p.cfg.Symbol,
		"timeframe": string(p.cfg.Timeframe),
		"asset":     string(p.cfg.AssetClass),
	})
	return nil
}

// Seed applies the batch-aggregated historical working set and releases the
// loading gate.
func (p *Pipeline) Seed(history []domain.Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.engine.Seed(history)
	p.loading = false
}

// HandleTick feeds one raw tick to the engine, in arrival order. Ticks are
// dropped while history is loading and after teardown.
func (p *Pipeline) HandleTick(raw domain.RawTick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.loading {
		return
	}
	p.engine.Ingest(context.Background(), raw)
}

// Teardown detaches the source. It is synchronous-observable: once it
// returns, no tick from this pipeline's source mutates the engine, including
// late ticks still in flight from the source's goroutine.
func (p *Pipeline) Teardown(ctx context.Context) {
	op := "Pipeline.Teardown"

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	if p.srcStop != nil {
		select {
		case p.srcStop <- struct{}{}:
		default:
		}
	}
	if p.srcDone != nil {
		select {
		case <-p.srcDone:
			p.logger.Info(ctx, op+": source shut down", map[string]interface{}{"symbol": p.cfg.Symbol})
		case <-time.After(teardownTimeout):
			// The closed flag already bars late ticks; the source goroutine
			// will observe cancellation on its own schedule.
			p.logger.Warn(ctx, op+": timeout waiting for source shutdown", map[string]interface{}{"symbol": p.cfg.Symbol})
		}
	}
}

// Snapshot returns the display sequence: the committed candles with the live
// overlay applied for the session state at now.
func (p *Pipeline) Snapshot(now time.Time) []domain.Candle {
	p.mu.Lock()
	committed := p.engine.Committed()
	latest := p.engine.LastQuote()
	p.mu.Unlock()

	sess := p.cfg.Calendar.Classify(now, p.cfg.AssetClass)
	return aggregate.Overlay(committed, latest, p.cfg.AssetClass, sess)
}

// LatestPrice returns the most recent valid quote, including extended-hours
// observations that were barred from bucket construction.
func (p *Pipeline) LatestPrice() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.LastQuote()
}

// Stats returns the engine's observability counters.
func (p *Pipeline) Stats() aggregate.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Stats()
}

func (p *Pipeline) handleSourceError(err error) {
	p.logger.Warn(context.Background(), "Stream source reported error", map[string]interface{}{
		"symbol": p.cfg.Symbol,
		"error":  err.Error(),
	})
}
