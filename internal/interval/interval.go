// Package interval maps raw instants to bucket boundaries for a timeframe
// and asset class, consulting the exchange calendar to clip equity boundaries
// at session edges.
package interval

import (
	"time"

	"chartfeed/internal/domain"
	"chartfeed/internal/marketcal"
)

// BucketStart returns the start instant of the bucket containing t.
//
// Sub-daily timeframes floor-divide absolute time against the timeframe
// width for both asset classes; equity intraday buckets are deliberately not
// aligned to the session-open wall clock, so the first bucket of a trading
// day is generally partial-width. Day-and-above timeframes anchor to calendar
// dates: UTC for crypto, the exchange-local date for equities (exchange
// trading days do not align with UTC days year-round).
func BucketStart(t time.Time, tf domain.Timeframe, asset domain.AssetClass, cal *marketcal.Calendar) time.Time {
	if tf.IsIntraday() {
		return t.Truncate(tf.Duration())
	}

	loc := time.UTC
	if asset == domain.AssetEquity {
		loc = cal.Location()
	}
	local := t.In(loc)

	switch tf {
	case domain.TF1d:
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	case domain.TF1w:
		// Anchor to the preceding Monday.
		back := (int(local.Weekday()) + 6) % 7
		return time.Date(local.Year(), local.Month(), local.Day()-back, 0, 0, 0, 0, loc)
	case domain.TF1M:
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	case domain.TF3M:
		quarterStart := local.Month() - (local.Month()-1)%3
		return time.Date(local.Year(), quarterStart, 1, 0, 0, 0, 0, loc)
	case domain.TF1y:
		return time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, loc)
	}
	// Unreachable for supported timeframes.
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// BucketEnd returns the boundary instant of the bucket containing t: the
// arithmetic end of the bucket, except that for equities an inactive regular
// session collapses the boundary to the session oracle's next event, and an
// active session clamps it to the regular close (a bucket cannot run past the
// close it belongs to, including early closes).
func BucketEnd(t time.Time, tf domain.Timeframe, asset domain.AssetClass, cal *marketcal.Calendar) time.Time {
	end := arithmeticEnd(BucketStart(t, tf, asset, cal), tf)
	if asset != domain.AssetEquity {
		return end
	}

	sess := cal.Classify(t, asset)
	if !sess.IsSessionActive {
		return sess.NextEvent
	}
	if closeAt := cal.RegularCloseAt(t); end.After(closeAt) {
		return closeAt
	}
	return end
}

// arithmeticEnd advances a bucket start by one timeframe width. Calendar
// timeframes advance by calendar units so DST-shifted days and variable month
// lengths land on the next anchor exactly.
func arithmeticEnd(start time.Time, tf domain.Timeframe) time.Time {
	switch tf {
	case domain.TF1d:
		return start.AddDate(0, 0, 1)
	case domain.TF1w:
		return start.AddDate(0, 0, 7)
	case domain.TF1M:
		return start.AddDate(0, 1, 0)
	case domain.TF3M:
		return start.AddDate(0, 3, 0)
	case domain.TF1y:
		return start.AddDate(1, 0, 0)
	}
	return start.Add(tf.Duration())
}

// KeyFor computes the canonical bucket key (ms epoch) for a normalized tick
// timestamp.
func KeyFor(tickMs int64, tf domain.Timeframe, asset domain.AssetClass, cal *marketcal.Calendar) int64 {
	return BucketStart(time.UnixMilli(tickMs).UTC(), tf, asset, cal).UnixMilli()
}
