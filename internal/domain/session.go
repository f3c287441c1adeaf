package domain

import "time"

// AssetClass selects the calendar and delivery model for a symbol.
type AssetClass string

const (
	AssetCrypto AssetClass = "CRYPTO"
	AssetEquity AssetClass = "EQUITY"
)

// SessionStatus classifies a trading instant.
type SessionStatus string

const (
	SessionRegular       SessionStatus = "REGULAR"
	SessionPre           SessionStatus = "PRE"
	SessionPost          SessionStatus = "POST"
	SessionClosed        SessionStatus = "CLOSED"
	SessionClosedHoliday SessionStatus = "CLOSED_HOLIDAY"
)

// Session describes the market state at a given instant for an asset class.
// It is derived, never persisted.
type Session struct {
	Status SessionStatus
	// IsOpen reports whether any trading window (including pre/post market)
	// is active. Distinct from IsSessionActive: extended hours are open but
	// not regular.
	IsOpen bool
	// IsSessionActive reports whether the regular trading session is active.
	IsSessionActive bool
	// NextEvent is the instant of the next session-boundary event, used for
	// UI countdowns and for clipping bucket boundaries.
	NextEvent time.Time
}
