package aggregate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"chartfeed/internal/domain"
	"chartfeed/internal/ports"
)

// msThreshold disambiguates second-epoch from millisecond-epoch timestamps:
// values above it are treated as milliseconds. Unambiguous through ~2033.
const msThreshold = 2e9

// Normalize coerces a heterogeneous raw tick into the canonical form:
// millisecond timestamps, missing open/high/low defaulted to close (a
// synthesized zero-range tick, correct for pull-based quote ticks that carry
// only a last price), and an explicit kind tag. A tick whose time cannot be
// parsed to a finite number or whose close is not a finite positive number is
// rejected with ports.ErrInvalidTick.
func Normalize(raw domain.RawTick) (domain.Tick, error) {
	ms, err := parseTimestamp(raw.Time)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("%w: %v", ports.ErrInvalidTick, err)
	}
	if !isFinitePositive(raw.Close) {
		return domain.Tick{}, fmt.Errorf("%w: close %v is not a finite positive number", ports.ErrInvalidTick, raw.Close)
	}

	kind := domain.LastPriceTick
	if raw.Open != nil && raw.High != nil && raw.Low != nil {
		kind = domain.FullOHLCTick
	}

	tick := domain.Tick{
		Time:   ms,
		Open:   valueOr(raw.Open, raw.Close),
		High:   valueOr(raw.High, raw.Close),
		Low:    valueOr(raw.Low, raw.Close),
		Close:  raw.Close,
		Volume: raw.Volume,
		Kind:   kind,
	}
	if !isFinitePositive(tick.Open) || !isFinitePositive(tick.High) || !isFinitePositive(tick.Low) {
		return domain.Tick{}, fmt.Errorf("%w: non-finite or non-positive OHLC field", ports.ErrInvalidTick)
	}
	if tick.Volume < 0 || math.IsNaN(tick.Volume) || math.IsInf(tick.Volume, 0) {
		return domain.Tick{}, fmt.Errorf("%w: volume %v is not a non-negative finite number", ports.ErrInvalidTick, raw.Volume)
	}

	// Repair inverted ranges from sloppy sources so the candle invariant
	// low <= open,close <= high holds from the first merge.
	tick.High = math.Max(tick.High, math.Max(tick.Open, tick.Close))
	tick.Low = math.Min(tick.Low, math.Min(tick.Open, tick.Close))
	return tick, nil
}

// parseTimestamp accepts seconds or milliseconds epoch numbers (int, float,
// json.Number or numeric string) and calendar date-time strings.
func parseTimestamp(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return epochToMs(float64(t))
	case int:
		return epochToMs(float64(t))
	case float64:
		return epochToMs(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("numeric time %q: %v", t.String(), err)
		}
		return epochToMs(f)
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return epochToMs(f)
		}
		return parseDateTime(t)
	case nil:
		return 0, fmt.Errorf("missing time")
	}
	return 0, fmt.Errorf("unsupported time type %T", v)
}

func epochToMs(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("epoch time %v is not a finite positive number", v)
	}
	if v > msThreshold {
		return int64(v), nil
	}
	return int64(v * 1000), nil
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDateTime(s string) (int64, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unparseable time string %q", s)
}

func valueOr(p *float64, fallback float64) float64 {
	if p != nil {
		return *p
	}
	return fallback
}

func isFinitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
