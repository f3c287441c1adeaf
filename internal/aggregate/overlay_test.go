package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartfeed/internal/domain"
)

func committedFixture() []domain.Candle {
	return []domain.Candle{
		{BucketStart: 1000, Open: 100, High: 102, Low: 99, Close: 101},
		{BucketStart: 2000, Open: 101, High: 103, Low: 100, Close: 102},
	}
}

func TestOverlayAppliesQuoteToLastCandle(t *testing.T) {
	committed := committedFixture()
	sess := domain.Session{Status: domain.SessionRegular, IsOpen: true, IsSessionActive: true}

	display := Overlay(committed, 104.5, domain.AssetCrypto, sess)

	require.Len(t, display, 2)
	last := display[1]
	assert.Equal(t, 104.5, last.Close)
	assert.Equal(t, 104.5, last.High)
	assert.Equal(t, 100.0, last.Low)
	// Prior candles are untouched.
	assert.Equal(t, committed[0], display[0])
}

func TestOverlayWidensLowOnDownMove(t *testing.T) {
	sess := domain.Session{Status: domain.SessionRegular, IsSessionActive: true}

	display := Overlay(committedFixture(), 99.5, domain.AssetCrypto, sess)

	assert.Equal(t, 99.5, display[1].Close)
	assert.Equal(t, 99.5, display[1].Low)
	assert.Equal(t, 103.0, display[1].High)
}

func TestOverlayNeverMutatesCommitted(t *testing.T) {
	committed := committedFixture()
	sess := domain.Session{Status: domain.SessionRegular, IsSessionActive: true}

	_ = Overlay(committed, 200, domain.AssetCrypto, sess)

	assert.Equal(t, 102.0, committed[1].Close)
	assert.Equal(t, 103.0, committed[1].High)
}

func TestOverlayIsPure(t *testing.T) {
	committed := committedFixture()
	sess := domain.Session{Status: domain.SessionRegular, IsSessionActive: true}

	first := Overlay(committed, 104.5, domain.AssetCrypto, sess)
	second := Overlay(committed, 104.5, domain.AssetCrypto, sess)

	assert.Equal(t, first, second)
}

func TestOverlayFreezesInactiveEquitySession(t *testing.T) {
	committed := committedFixture()
	sess := domain.Session{Status: domain.SessionPost, IsOpen: true, IsSessionActive: false}

	display := Overlay(committed, 150, domain.AssetEquity, sess)

	// Frozen body: the quote is rendered as a separate indicator instead.
	assert.Equal(t, committed, display)
}

func TestOverlayActiveEquitySessionApplies(t *testing.T) {
	sess := domain.Session{Status: domain.SessionRegular, IsOpen: true, IsSessionActive: true}

	display := Overlay(committedFixture(), 104, domain.AssetEquity, sess)

	assert.Equal(t, 104.0, display[1].Close)
}

func TestOverlayEdgeInputs(t *testing.T) {
	sess := domain.Session{Status: domain.SessionRegular, IsSessionActive: true}

	assert.Empty(t, Overlay(nil, 100, domain.AssetCrypto, sess))

	// A zero quote (no valid tick yet) leaves the display copy untouched.
	committed := committedFixture()
	assert.Equal(t, committed, Overlay(committed, 0, domain.AssetCrypto, sess))
}
