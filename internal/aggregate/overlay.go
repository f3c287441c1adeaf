package aggregate

import (
	"chartfeed/internal/domain"
)

// Overlay projects the latest quote onto a display copy of the committed
// sequence. It is a pure projection: the committed input is never mutated,
// and recomputing on every quote update accumulates no drift because it
// always starts from the immutable committed candle, not from its own prior
// output.
//
// For crypto, or an equity whose regular session is active, the display
// copy's last candle absorbs the quote (close replaced, high/low widened).
// Outside the equity regular session the committed shape is displayed frozen;
// the caller renders the quote as a separate scalar indicator instead.
func Overlay(committed []domain.Candle, latestQuote float64, asset domain.AssetClass, sess domain.Session) []domain.Candle {
	display := domain.CloneCandles(committed)
	if len(display) == 0 || latestQuote <= 0 {
		return display
	}
	if asset == domain.AssetEquity && !sess.IsSessionActive {
		return display
	}

	last := &display[len(display)-1]
	last.Close = latestQuote
	if latestQuote > last.High {
		last.High = latestQuote
	}
	if latestQuote < last.Low {
		last.Low = latestQuote
	}
	return display
}
