package marketcal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartfeed/internal/domain"
)

func newTestCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := New(DefaultNYSE())
	require.NoError(t, err)
	return cal
}

// localTime builds an instant from exchange-local wall-clock components.
func localTime(t *testing.T, cal *Calendar, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, cal.Location())
	require.NoError(t, err)
	return ts
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default config", mutate: func(c *Config) {}, wantErr: false},
		{name: "empty zone", mutate: func(c *Config) { c.Zone = "" }, wantErr: true},
		{name: "unknown zone", mutate: func(c *Config) { c.Zone = "Mars/Olympus_Mons" }, wantErr: true},
		{name: "bad weekday", mutate: func(c *Config) { c.Weekend = []string{"Caturday"} }, wantErr: true},
		{name: "bad wall clock", mutate: func(c *Config) { c.RegularOpen = "9h30" }, wantErr: true},
		{name: "inverted session bounds", mutate: func(c *Config) { c.RegularClose = "09:00" }, wantErr: true},
		{name: "bad holiday date", mutate: func(c *Config) { c.Holidays = []string{"Jan 19"} }, wantErr: true},
		{name: "bad early close", mutate: func(c *Config) { c.EarlyCloses = map[string]string{"2026-11-27": "1pm"} }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultNYSE()
			tt.mutate(&cfg)
			cal, err := New(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cal)
		})
	}
}

func TestClassifyCrypto(t *testing.T) {
	cal := newTestCalendar(t)
	at := time.Date(2026, 1, 19, 15, 42, 30, 0, time.UTC) // a holiday for equities

	sess := cal.Classify(at, domain.AssetCrypto)

	assert.Equal(t, domain.SessionRegular, sess.Status)
	assert.True(t, sess.IsOpen)
	assert.True(t, sess.IsSessionActive)
	assert.Equal(t, time.Date(2026, 1, 19, 15, 43, 0, 0, time.UTC), sess.NextEvent)
}

func TestClassifyEquity(t *testing.T) {
	cal := newTestCalendar(t)

	tests := []struct {
		name       string
		local      string
		wantStatus domain.SessionStatus
		wantOpen   bool
		wantActive bool
	}{
		{"pre-market", "2026-01-20 08:00", domain.SessionPre, true, false},
		{"regular open minute", "2026-01-20 09:30", domain.SessionRegular, true, true},
		{"mid regular session", "2026-01-20 12:00", domain.SessionRegular, true, true},
		{"post-market", "2026-01-20 16:05", domain.SessionPost, true, false},
		{"overnight before pre", "2026-01-20 03:30", domain.SessionClosed, false, false},
		{"overnight after post", "2026-01-20 21:00", domain.SessionClosed, false, false},
		{"weekend", "2026-01-17 12:00", domain.SessionClosed, false, false},
		{"holiday", "2026-01-19 15:00", domain.SessionClosedHoliday, false, false},
		{"early close afternoon", "2026-11-27 14:00", domain.SessionPost, true, false},
		{"early close morning still regular", "2026-11-27 12:59", domain.SessionRegular, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := cal.Classify(localTime(t, cal, tt.local), domain.AssetEquity)
			assert.Equal(t, tt.wantStatus, sess.Status)
			assert.Equal(t, tt.wantOpen, sess.IsOpen)
			assert.Equal(t, tt.wantActive, sess.IsSessionActive)
		})
	}
}

func TestClassifyHolidayNextEvent(t *testing.T) {
	cal := newTestCalendar(t)

	// 2026-01-19 is MLK Day; the 20th is a normal trading day.
	sess := cal.Classify(localTime(t, cal, "2026-01-19 15:00"), domain.AssetEquity)

	require.Equal(t, domain.SessionClosedHoliday, sess.Status)
	assert.False(t, sess.IsOpen)
	assert.True(t, sess.NextEvent.Equal(localTime(t, cal, "2026-01-20 09:30")))
}

func TestClassifyRegularNextEventIsClose(t *testing.T) {
	cal := newTestCalendar(t)

	sess := cal.Classify(localTime(t, cal, "2026-01-20 12:00"), domain.AssetEquity)

	require.True(t, sess.IsSessionActive)
	assert.True(t, sess.NextEvent.Equal(localTime(t, cal, "2026-01-20 16:00")))
}

func TestClassifyEarlyCloseNextEvent(t *testing.T) {
	cal := newTestCalendar(t)

	sess := cal.Classify(localTime(t, cal, "2026-11-27 11:00"), domain.AssetEquity)

	require.Equal(t, domain.SessionRegular, sess.Status)
	assert.True(t, sess.NextEvent.Equal(localTime(t, cal, "2026-11-27 13:00")))
}

func TestNextRegularOpen(t *testing.T) {
	cal := newTestCalendar(t)

	tests := []struct {
		name string
		from string
		want string
	}{
		{"overnight same day", "2026-01-20 03:00", "2026-01-20 09:30"},
		{"after close goes to next day", "2026-01-20 17:00", "2026-01-21 09:30"},
		{"friday evening skips weekend", "2026-01-16 18:00", "2026-01-20 09:30"}, // Mon 19th is a holiday
		{"saturday skips to monday", "2026-02-07 12:00", "2026-02-09 09:30"},
		{"exactly at open moves forward", "2026-01-20 09:30", "2026-01-21 09:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cal.NextRegularOpen(localTime(t, cal, tt.from))
			assert.True(t, got.Equal(localTime(t, cal, tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestNextRegularOpenAcrossDST(t *testing.T) {
	cal := newTestCalendar(t)

	// US DST starts 2026-03-08; Friday 2026-03-06 evening to Monday 09:30 EDT.
	got := cal.NextRegularOpen(localTime(t, cal, "2026-03-06 18:00"))
	want := localTime(t, cal, "2026-03-09 09:30")

	assert.True(t, got.Equal(want), "got %s want %s", got, want)
	// The wall clock stays 09:30 even though the UTC offset changed.
	assert.Equal(t, 9, got.In(cal.Location()).Hour())
	assert.Equal(t, 30, got.In(cal.Location()).Minute())
}

func TestRegularCloseAtHonorsEarlyClose(t *testing.T) {
	cal := newTestCalendar(t)

	normal := cal.RegularCloseAt(localTime(t, cal, "2026-01-20 10:00"))
	early := cal.RegularCloseAt(localTime(t, cal, "2026-11-27 10:00"))

	assert.True(t, normal.Equal(localTime(t, cal, "2026-01-20 16:00")))
	assert.True(t, early.Equal(localTime(t, cal, "2026-11-27 13:00")))
}

func TestIsTradingDay(t *testing.T) {
	cal := newTestCalendar(t)

	assert.True(t, cal.IsTradingDay(localTime(t, cal, "2026-01-20 12:00")))
	assert.False(t, cal.IsTradingDay(localTime(t, cal, "2026-01-17 12:00"))) // Saturday
	assert.False(t, cal.IsTradingDay(localTime(t, cal, "2026-01-19 12:00"))) // holiday
}
