package aggregate

import (
	"sort"

	"chartfeed/internal/domain"
	"chartfeed/internal/interval"
	"chartfeed/internal/marketcal"
)

// AggregateBatch groups a flat historical candle list into timeframe buckets:
// within a bucket the first entry's open wins, highs and lows widen, the
// chronologically last close wins, and volumes sum. Exact-key collisions
// deduplicate into the merged result. The output is sorted ascending by
// bucket key and the operation is idempotent: re-running it over its own
// output yields the same output.
//
// Conflicting opens for the same key resolve deterministically (earliest-seen
// open kept), never as an error.
func AggregateBatch(history []domain.Candle, tf domain.Timeframe, asset domain.AssetClass, cal *marketcal.Calendar) []domain.Candle {
	if len(history) == 0 {
		return nil
	}

	// Process in chronological order so "first open" and "last close" are
	// well defined even for unsorted input.
	in := make([]domain.Candle, len(history))
	copy(in, history)
	sort.SliceStable(in, func(i, j int) bool { return in[i].BucketStart < in[j].BucketStart })

	merged := make(map[int64]*domain.Candle, len(in))
	keys := make([]int64, 0, len(in))
	for _, c := range in {
		key := interval.KeyFor(c.BucketStart, tf, asset, cal)
		agg, ok := merged[key]
		if !ok {
			clone := c.Clone()
			clone.BucketStart = key
			merged[key] = &clone
			keys = append(keys, key)
			continue
		}
		if c.High > agg.High {
			agg.High = c.High
		}
		if c.Low < agg.Low {
			agg.Low = c.Low
		}
		agg.Close = c.Close
		agg.Volume += c.Volume
		// Indicator passthrough: later entries refresh derived fields.
		for k, v := range c.Extra {
			if agg.Extra == nil {
				agg.Extra = make(map[string]float64, len(c.Extra))
			}
			agg.Extra[k] = v
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]domain.Candle, 0, len(keys))
	for _, key := range keys {
		out = append(out, *merged[key])
	}
	return out
}
