package domain

import (
	"fmt"
	"time"
)

// Timeframe is one of the fixed chart bucket widths.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
	TF1M  Timeframe = "1M"
	TF3M  Timeframe = "3M"
	TF1y  Timeframe = "1y"
)

var timeframeDurations = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF30m: 30 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
	TF1w:  7 * 24 * time.Hour,
	TF1M:  30 * 24 * time.Hour,  // nominal; calendar anchoring is authoritative
	TF3M:  90 * 24 * time.Hour,  // nominal
	TF1y:  365 * 24 * time.Hour, // nominal
}

// ParseTimeframe validates a timeframe string against the supported set.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// Duration returns the nominal width of the bucket. For month-and-above
// timeframes this is approximate; bucket boundaries for those are computed
// from calendar dates, not by adding this duration.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// IsIntraday reports whether the timeframe is below one day. Intraday buckets
// floor-divide absolute time; day-and-above buckets anchor to calendar dates.
func (tf Timeframe) IsIntraday() bool {
	return tf.Duration() < 24*time.Hour
}
