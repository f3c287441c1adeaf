package pipeline

import (
	"context"
	"time"
)

// pollLoop is the pull scheduler: one outstanding request at a time, cadence
// measured from request start so request latency is subtracted from the
// sleep, keeping the overall rate stable under variable network latency. A
// failed or timed-out request simply yields no tick this cycle; the loop
// never halts on source errors.
func (p *Pipeline) pollLoop(ctx context.Context) {
	op := "Pipeline.pollLoop"
	defer close(p.srcDone)

	for {
		started := time.Now()

		reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
		raw, err := p.cfg.Quotes.FetchQuote(reqCtx, p.cfg.Symbol)
		cancel()

		if ctx.Err() != nil {
			// Teardown raced the request; discard any response.
			p.logger.Info(ctx, op+": context cancelled, stopping", map[string]interface{}{"symbol": p.cfg.Symbol})
			return
		}
		if err != nil {
			p.logger.Warn(ctx, op+": poll cycle produced no tick", map[string]interface{}{
				"symbol": p.cfg.Symbol,
				"error":  err.Error(),
			})
		} else {
			p.HandleTick(raw)
		}

		sleep := p.cfg.PollInterval - time.Since(started)
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-ctx.Done():
			p.logger.Info(ctx, op+": context cancelled, stopping", map[string]interface{}{"symbol": p.cfg.Symbol})
			return
		case <-time.After(sleep):
		}
	}
}
