package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartfeed/internal/domain"
)

func TestAggregateBatchGroupsFinerCandles(t *testing.T) {
	cal := newTestCalendar(t)

	// Four 15m candles re-bucketed into one hour.
	base := msAt("2026-03-10 10:00:00")
	quarter := int64(15 * 60 * 1000)
	history := []domain.Candle{
		{BucketStart: base, Open: 100, High: 102, Low: 99, Close: 101, Volume: 5},
		{BucketStart: base + quarter, Open: 101, High: 105, Low: 100, Close: 104, Volume: 3},
		{BucketStart: base + 2*quarter, Open: 104, High: 104, Low: 97, Close: 98, Volume: 4},
		{BucketStart: base + 3*quarter, Open: 98, High: 100, Low: 98, Close: 99, Volume: 2},
	}

	out := AggregateBatch(history, domain.TF1h, domain.AssetCrypto, cal)

	require.Len(t, out, 1)
	c := out[0]
	assert.Equal(t, base, c.BucketStart)
	assert.Equal(t, 100.0, c.Open)
	assert.Equal(t, 105.0, c.High)
	assert.Equal(t, 97.0, c.Low)
	assert.Equal(t, 99.0, c.Close)
	assert.Equal(t, 14.0, c.Volume)
}

func TestAggregateBatchSortsUnsortedInput(t *testing.T) {
	cal := newTestCalendar(t)

	history := []domain.Candle{
		{BucketStart: msAt("2026-03-10 12:00:00"), Open: 3, High: 3, Low: 3, Close: 3},
		{BucketStart: msAt("2026-03-10 10:00:00"), Open: 1, High: 1, Low: 1, Close: 1},
		{BucketStart: msAt("2026-03-10 11:00:00"), Open: 2, High: 2, Low: 2, Close: 2},
	}

	out := AggregateBatch(history, domain.TF1h, domain.AssetCrypto, cal)

	require.Len(t, out, 3)
	assert.True(t, out[0].BucketStart < out[1].BucketStart)
	assert.True(t, out[1].BucketStart < out[2].BucketStart)
	assert.Equal(t, 1.0, out[0].Open)
}

func TestAggregateBatchDeduplicatesExactKeys(t *testing.T) {
	cal := newTestCalendar(t)

	key := msAt("2026-03-10 10:00:00")
	history := []domain.Candle{
		{BucketStart: key, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1},
		{BucketStart: key, Open: 200, High: 103, Low: 98, Close: 102, Volume: 2},
	}

	out := AggregateBatch(history, domain.TF1h, domain.AssetCrypto, cal)

	require.Len(t, out, 1)
	// Earliest-seen open wins deterministically; no error on conflict.
	assert.Equal(t, 100.0, out[0].Open)
	assert.Equal(t, 103.0, out[0].High)
	assert.Equal(t, 98.0, out[0].Low)
	assert.Equal(t, 102.0, out[0].Close)
	assert.Equal(t, 3.0, out[0].Volume)
}

func TestAggregateBatchIdempotent(t *testing.T) {
	cal := newTestCalendar(t)

	base := msAt("2026-03-10 10:00:00")
	quarter := int64(15 * 60 * 1000)
	history := []domain.Candle{
		{BucketStart: base, Open: 100, High: 102, Low: 99, Close: 101, Volume: 5},
		{BucketStart: base + quarter, Open: 101, High: 105, Low: 100, Close: 104, Volume: 3},
		{BucketStart: base + 5*quarter, Open: 104, High: 106, Low: 103, Close: 105, Volume: 1},
	}

	once := AggregateBatch(history, domain.TF1h, domain.AssetCrypto, cal)
	twice := AggregateBatch(once, domain.TF1h, domain.AssetCrypto, cal)

	assert.Equal(t, once, twice)
}

func TestAggregateBatchPreservesExtraFields(t *testing.T) {
	cal := newTestCalendar(t)

	base := msAt("2026-03-10 10:00:00")
	history := []domain.Candle{
		{BucketStart: base, Open: 1, High: 1, Low: 1, Close: 1, Extra: map[string]float64{"sma": 1.5}},
		{BucketStart: base + 900000, Open: 1, High: 1, Low: 1, Close: 1, Extra: map[string]float64{"sma": 1.7, "rsi": 55}},
	}

	out := AggregateBatch(history, domain.TF1h, domain.AssetCrypto, cal)

	require.Len(t, out, 1)
	assert.Equal(t, 1.7, out[0].Extra["sma"])
	assert.Equal(t, 55.0, out[0].Extra["rsi"])
}

func TestAggregateBatchEmptyInput(t *testing.T) {
	cal := newTestCalendar(t)
	assert.Nil(t, AggregateBatch(nil, domain.TF1h, domain.AssetCrypto, cal))
}
