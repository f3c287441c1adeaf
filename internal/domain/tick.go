package domain

// TickKind tags which variant of tick a source delivered, resolved once at
// the normalizer boundary so merge logic can branch on an explicit tag
// instead of probing for field presence.
type TickKind int

const (
	// LastPriceTick carries only a last-traded price (equity quote polling).
	LastPriceTick TickKind = iota
	// FullOHLCTick carries a full running OHLC aggregate (crypto kline ticks).
	FullOHLCTick
)

// RawTick is the inbound observation shape produced by the networking
// collaborators (both push and pull sources), before normalization.
// Time is a seconds or milliseconds epoch number, or a calendar date-time
// string; Open/High/Low are optional.
type RawTick struct {
	Time   any      `json:"time"`
	Open   *float64 `json:"open,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Low    *float64 `json:"low,omitempty"`
	Close  float64  `json:"close"`
	Volume float64  `json:"volume,omitempty"`
}

// Tick is the canonical normalized observation. Transient: it is consumed
// immediately into the candle sequence and never stored.
type Tick struct {
	Time   int64 // ms epoch
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Kind   TickKind
}
