package app

import (
	"sync"
	"time"
)

// PriceReference tracks the regular-close anchor used for percentage-change
// display for one symbol. It is an explicit per-symbol record owned by the
// service, not shared across symbols, so concurrent pipelines cannot
// contaminate each other's anchors.
//
// Anchor selection is a heuristic, not a calendar certainty: while quotes
// keep arriving shortly after a regular close, the anchor stays at the close
// of the session before it (the percentage still describes "today"). Once the
// gap since the last regular close exceeds the configured threshold, the
// session is considered over and the anchor flips to that last close.
type PriceReference struct {
	mu sync.Mutex

	// anchorGap is the time-gap threshold for flipping the anchor.
	anchorGap time.Duration

	lastClose     float64   // most recent regular-session close
	lastCloseTime time.Time // when lastClose was observed
	prevClose     float64   // regular close of the session before lastClose
}

// NewPriceReference creates the reference state for one symbol.
func NewPriceReference(anchorGap time.Duration) *PriceReference {
	return &PriceReference{anchorGap: anchorGap}
}

// SeedPrevClose installs an externally supplied previous close, such as the
// prior-close field of a quote API response. It only fills an empty anchor;
// closes observed live take precedence.
func (r *PriceReference) SeedPrevClose(price float64, at time.Time) {
	if price <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastClose == 0 {
		r.lastClose = price
		r.lastCloseTime = at
	}
}

// Observe records a quote observation. Quotes during the regular session keep
// overwriting the running close; the first observation after the session ends
// commits it and shifts the previous anchor down.
func (r *PriceReference) Observe(price float64, at time.Time, regularSession bool) {
	if price <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if regularSession {
		if !r.inSameSession(at) {
			r.prevClose = r.lastClose
		}
		r.lastClose = price
		r.lastCloseTime = at
	}
}

// Anchor returns the reference price for percentage-change display at the
// given instant. The boolean reports whether any anchor is known yet.
func (r *PriceReference) Anchor(at time.Time) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastCloseTime.IsZero() {
		return 0, false
	}
	if r.inSameSession(at) && r.prevClose > 0 {
		// Still the same trading session as the last observed close, so the
		// percentage anchors to the close before it.
		return r.prevClose, true
	}
	return r.lastClose, true
}

// ChangePercent returns the percentage change of quote against the anchor at
// the given instant, or false when no anchor is known.
func (r *PriceReference) ChangePercent(quote float64, at time.Time) (float64, bool) {
	anchor, ok := r.Anchor(at)
	if !ok || anchor <= 0 {
		return 0, false
	}
	return (quote - anchor) / anchor * 100, true
}

// inSameSession reports whether at still belongs to the trading session of
// the last observed close. Callers must hold r.mu.
func (r *PriceReference) inSameSession(at time.Time) bool {
	return at.Sub(r.lastCloseTime) <= r.anchorGap
}
