package domain

// Candle represents one fixed-width OHLCV bar in a committed sequence.
// BucketStart is the canonical key: unique within a sequence, milliseconds
// since epoch, anchored per asset class (UTC for crypto, exchange-local
// calendar boundaries for equity daily-and-above timeframes).
type Candle struct {
	BucketStart int64   // Start of the bucket (ms epoch), canonical key
	Open        float64 // Opening price
	High        float64 // Highest price
	Low         float64 // Lowest price
	Close       float64 // Closing price
	Volume      float64 // Accumulated volume; 0 when the source supplies none

	// Extra carries derived fields attached by external collaborators
	// (sma, ema, rsi, vwap, ...). The aggregation core passes them through
	// unmodified and never reads them.
	Extra map[string]float64
}

// Clone returns a deep copy of the candle, including the Extra map.
func (c Candle) Clone() Candle {
	out := c
	if c.Extra != nil {
		out.Extra = make(map[string]float64, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// CloneCandles deep-copies a candle sequence.
func CloneCandles(in []Candle) []Candle {
	if in == nil {
		return nil
	}
	out := make([]Candle, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
