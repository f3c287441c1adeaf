package marketcal

import (
	"time"

	"chartfeed/internal/domain"
)

// maxOpenScanDays bounds the forward search for the next trading day so the
// scan terminates even on a degenerate calendar.
const maxOpenScanDays = 60

// Classify returns the Session for an instant and asset class.
//
// Crypto has no session concept: always open and regular, with the next event
// pinned to the start of the next minute as a fine-grained UI tick.
//
// Equities are classified against the exchange-local civil time of t.
func (c *Calendar) Classify(t time.Time, asset domain.AssetClass) domain.Session {
	if asset == domain.AssetCrypto {
		return domain.Session{
			Status:          domain.SessionRegular,
			IsOpen:          true,
			IsSessionActive: true,
			NextEvent:       t.Truncate(time.Minute).Add(time.Minute),
		}
	}

	local := t.In(c.loc)

	if c.weekend[local.Weekday()] {
		return domain.Session{
			Status:    domain.SessionClosed,
			NextEvent: c.NextRegularOpen(t),
		}
	}
	if c.holidays[dateKey(local)] {
		return domain.Session{
			Status:    domain.SessionClosedHoliday,
			NextEvent: c.NextRegularOpen(t),
		}
	}

	closeMin := c.regClose
	if m, ok := c.earlyCloses[dateKey(local)]; ok {
		closeMin = m
	}

	minute := local.Hour()*60 + local.Minute()
	switch {
	case minute >= c.preOpen && minute < c.regularOpen:
		return domain.Session{
			Status:    domain.SessionPre,
			IsOpen:    true,
			NextEvent: c.instantAt(local, c.regularOpen),
		}
	case minute >= c.regularOpen && minute < closeMin:
		return domain.Session{
			Status:          domain.SessionRegular,
			IsOpen:          true,
			IsSessionActive: true,
			NextEvent:       c.instantAt(local, closeMin),
		}
	case minute >= closeMin && minute < c.postClose:
		return domain.Session{
			Status:    domain.SessionPost,
			IsOpen:    true,
			NextEvent: c.NextRegularOpen(t),
		}
	default:
		// Overnight: after post-market close or before pre-market open.
		return domain.Session{
			Status:    domain.SessionClosed,
			NextEvent: c.NextRegularOpen(t),
		}
	}
}

// NextRegularOpen returns the first regular-open instant strictly after t,
// skipping weekends and holidays. The open on t's own date counts when it has
// not yet happened (overnight before pre-market).
func (c *Calendar) NextRegularOpen(t time.Time) time.Time {
	probe := t.In(c.loc)
	for i := 0; i < maxOpenScanDays; i++ {
		if !c.weekend[probe.Weekday()] && !c.holidays[dateKey(probe)] {
			open := c.instantAt(probe, c.regularOpen)
			if open.After(t) {
				return open
			}
		}
		probe = time.Date(probe.Year(), probe.Month(), probe.Day()+1, 12, 0, 0, 0, c.loc)
	}
	// Degenerate calendar with no trading day in the scan window; return the
	// last probed open rather than looping forever.
	return c.instantAt(probe, c.regularOpen)
}
