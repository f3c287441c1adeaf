package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartfeed/internal/domain"
	"chartfeed/internal/marketcal"
)

func newTestCalendar(t *testing.T) *marketcal.Calendar {
	t.Helper()
	cal, err := marketcal.New(marketcal.DefaultNYSE())
	require.NoError(t, err)
	return cal
}

func nyTime(t *testing.T, cal *marketcal.Calendar, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", value, cal.Location())
	require.NoError(t, err)
	return ts
}

func TestBucketStartIntradayCrypto(t *testing.T) {
	cal := newTestCalendar(t)
	at := time.Date(2026, 3, 10, 10, 47, 12, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		BucketStart(at, domain.TF1h, domain.AssetCrypto, cal))
	assert.Equal(t, time.Date(2026, 3, 10, 10, 45, 0, 0, time.UTC),
		BucketStart(at, domain.TF15m, domain.AssetCrypto, cal))
	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		BucketStart(at, domain.TF4h, domain.AssetCrypto, cal))
}

func TestBucketStartIntradayEquityFloorsAbsoluteTime(t *testing.T) {
	cal := newTestCalendar(t)

	// 09:45 ET is 14:45 UTC in winter; a 4h bucket floors against absolute
	// time, not the session open, so the bucket starts at 12:00 UTC.
	at := nyTime(t, cal, "2026-01-20 09:45:00")
	got := BucketStart(at, domain.TF4h, domain.AssetEquity, cal)

	assert.Equal(t, time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC), got.UTC())
}

func TestBucketStartDailyAnchors(t *testing.T) {
	cal := newTestCalendar(t)

	// 01:00 UTC on the 21st is still the evening of the 20th in New York; the
	// equity daily bucket anchors to exchange-local midnight.
	at := time.Date(2026, 1, 21, 1, 0, 0, 0, time.UTC)

	crypto := BucketStart(at, domain.TF1d, domain.AssetCrypto, cal)
	equity := BucketStart(at, domain.TF1d, domain.AssetEquity, cal)

	assert.Equal(t, time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC), crypto)
	assert.True(t, equity.Equal(nyTime(t, cal, "2026-01-20 00:00:00")))
}

func TestBucketStartWeekAnchorsToMonday(t *testing.T) {
	cal := newTestCalendar(t)

	// 2026-01-22 is a Thursday; the week bucket starts Monday the 19th.
	at := time.Date(2026, 1, 22, 15, 0, 0, 0, time.UTC)
	got := BucketStart(at, domain.TF1w, domain.AssetCrypto, cal)

	assert.Equal(t, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.Monday, got.Weekday())

	// A Monday maps to itself.
	monday := time.Date(2026, 1, 19, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
		BucketStart(monday, domain.TF1w, domain.AssetCrypto, cal))
}

func TestBucketStartMonthQuarterYear(t *testing.T) {
	cal := newTestCalendar(t)
	at := time.Date(2026, 8, 17, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		BucketStart(at, domain.TF1M, domain.AssetCrypto, cal))
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		BucketStart(at, domain.TF3M, domain.AssetCrypto, cal))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		BucketStart(at, domain.TF1y, domain.AssetCrypto, cal))
}

func TestBucketEndCrypto(t *testing.T) {
	cal := newTestCalendar(t)
	at := time.Date(2026, 3, 10, 10, 47, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
		BucketEnd(at, domain.TF1h, domain.AssetCrypto, cal))
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		BucketEnd(at, domain.TF1M, domain.AssetCrypto, cal))
}

func TestBucketEndEquityEarlyClose(t *testing.T) {
	cal := newTestCalendar(t)

	// 2026-11-27 closes at 13:00. A 4h bucket covering 12:00 ET must end at
	// the early close, not run to 16:00.
	at := nyTime(t, cal, "2026-11-27 12:30:00")
	got := BucketEnd(at, domain.TF4h, domain.AssetEquity, cal)

	assert.True(t, got.Equal(nyTime(t, cal, "2026-11-27 13:00:00")), "got %s", got)
}

func TestBucketEndEquityInactiveSessionCollapses(t *testing.T) {
	cal := newTestCalendar(t)

	// Post-market: the boundary collapses to the session oracle's next event
	// (the next regular open).
	at := nyTime(t, cal, "2026-01-20 17:00:00")
	got := BucketEnd(at, domain.TF1h, domain.AssetEquity, cal)

	sess := cal.Classify(at, domain.AssetEquity)
	assert.True(t, got.Equal(sess.NextEvent))
}

func TestBucketEndEquityActiveSessionArithmetic(t *testing.T) {
	cal := newTestCalendar(t)

	// Mid regular session, 1h bucket well inside the day: plain arithmetic end.
	at := nyTime(t, cal, "2026-01-20 10:30:00")
	got := BucketEnd(at, domain.TF1h, domain.AssetEquity, cal)

	assert.True(t, got.Equal(nyTime(t, cal, "2026-01-20 11:00:00")))
}

func TestKeyFor(t *testing.T) {
	cal := newTestCalendar(t)

	tickMs := time.Date(2026, 3, 10, 10, 47, 12, 0, time.UTC).UnixMilli()
	want := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC).UnixMilli()

	assert.Equal(t, want, KeyFor(tickMs, domain.TF1h, domain.AssetCrypto, cal))
}
