package marketcal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chartfeed/internal/ports"
)

// Config is the exchange calendar as declared in configuration. All times are
// exchange-local wall-clock values ("HH:MM"); dates are "YYYY-MM-DD".
type Config struct {
	Zone            string            `yaml:"zone"`              // IANA zone, e.g. "America/New_York"
	Weekend         []string          `yaml:"weekend"`           // e.g. ["Saturday", "Sunday"]
	PreMarketOpen   string            `yaml:"pre_market_open"`   // e.g. "04:00"
	RegularOpen     string            `yaml:"regular_open"`      // e.g. "09:30"
	RegularClose    string            `yaml:"regular_close"`     // e.g. "16:00"
	PostMarketClose string            `yaml:"post_market_close"` // e.g. "20:00"
	Holidays        []string          `yaml:"holidays"`
	EarlyCloses     map[string]string `yaml:"early_closes"` // date -> modified close time
}

// LoadConfig reads a calendar Config from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading calendar file %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing calendar file %q: %w", path, err)
	}
	return cfg, nil
}

// DefaultNYSE returns the built-in NYSE calendar: 09:30-16:00 regular session,
// 04:00 pre-market, 20:00 post-market close, 2026 holiday and early-close set.
func DefaultNYSE() Config {
	return Config{
		Zone:            "America/New_York",
		Weekend:         []string{"Saturday", "Sunday"},
		PreMarketOpen:   "04:00",
		RegularOpen:     "09:30",
		RegularClose:    "16:00",
		PostMarketClose: "20:00",
		Holidays: []string{
			"2026-01-01", // New Year's Day
			"2026-01-19", // Martin Luther King Jr. Day
			"2026-02-16", // Washington's Birthday
			"2026-04-03", // Good Friday
			"2026-05-25", // Memorial Day
			"2026-06-19", // Juneteenth
			"2026-07-03", // Independence Day (observed)
			"2026-09-07", // Labor Day
			"2026-11-26", // Thanksgiving Day
			"2026-12-25", // Christmas Day
		},
		EarlyCloses: map[string]string{
			"2026-11-27": "13:00",
			"2026-12-24": "13:00",
		},
	}
}

// Calendar answers session questions for a declared exchange calendar,
// evaluated in the exchange's local civil time.
type Calendar struct {
	loc         *time.Location
	weekend     map[time.Weekday]bool
	preOpen     int // minutes after local midnight
	regularOpen int
	regClose    int
	postClose   int
	holidays    map[string]bool
	earlyCloses map[string]int
}

// New builds a Calendar from a Config. The exchange timezone must be
// resolvable in the runtime; a missing zone database entry is a hard failure
// because the concept of a trading session is meaningless without it.
func New(cfg Config) (*Calendar, error) {
	if cfg.Zone == "" {
		return nil, fmt.Errorf("%w: calendar zone is empty", ports.ErrSessionUnavailable)
	}
	loc, err := time.LoadLocation(cfg.Zone)
	if err != nil {
		return nil, fmt.Errorf("%w: loading zone %q: %v", ports.ErrSessionUnavailable, cfg.Zone, err)
	}

	weekend := make(map[time.Weekday]bool, len(cfg.Weekend))
	for _, name := range cfg.Weekend {
		wd, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		weekend[wd] = true
	}

	preOpen, err := parseWallClock(cfg.PreMarketOpen)
	if err != nil {
		return nil, fmt.Errorf("pre_market_open: %w", err)
	}
	regOpen, err := parseWallClock(cfg.RegularOpen)
	if err != nil {
		return nil, fmt.Errorf("regular_open: %w", err)
	}
	regClose, err := parseWallClock(cfg.RegularClose)
	if err != nil {
		return nil, fmt.Errorf("regular_close: %w", err)
	}
	postClose, err := parseWallClock(cfg.PostMarketClose)
	if err != nil {
		return nil, fmt.Errorf("post_market_close: %w", err)
	}
	if !(preOpen < regOpen && regOpen < regClose && regClose < postClose) {
		return nil, fmt.Errorf("%w: session bounds must satisfy pre < open < close < post", ports.ErrConfigurationError)
	}

	holidays := make(map[string]bool, len(cfg.Holidays))
	for _, d := range cfg.Holidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("holiday date %q: %w", d, err)
		}
		holidays[d] = true
	}
	earlyCloses := make(map[string]int, len(cfg.EarlyCloses))
	for d, t := range cfg.EarlyCloses {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("early close date %q: %w", d, err)
		}
		m, err := parseWallClock(t)
		if err != nil {
			return nil, fmt.Errorf("early close time for %s: %w", d, err)
		}
		earlyCloses[d] = m
	}

	return &Calendar{
		loc:         loc,
		weekend:     weekend,
		preOpen:     preOpen,
		regularOpen: regOpen,
		regClose:    regClose,
		postClose:   postClose,
		holidays:    holidays,
		earlyCloses: earlyCloses,
	}, nil
}

// Location returns the exchange's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsTradingDay reports whether the local calendar date of t is neither a
// weekend day nor a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	return !c.weekend[local.Weekday()] && !c.holidays[dateKey(local)]
}

// RegularOpenAt returns the absolute instant of the regular open on the local
// calendar date of t. time.Date resolves the wall-clock value through the
// zone's DST rules, so the result is correct across transitions.
func (c *Calendar) RegularOpenAt(t time.Time) time.Time {
	return c.instantAt(t.In(c.loc), c.regularOpen)
}

// RegularCloseAt returns the absolute instant of the regular close on the
// local calendar date of t, honoring a declared early close for that date.
func (c *Calendar) RegularCloseAt(t time.Time) time.Time {
	local := t.In(c.loc)
	closeMin := c.regClose
	if m, ok := c.earlyCloses[dateKey(local)]; ok {
		closeMin = m
	}
	return c.instantAt(local, closeMin)
}

// instantAt converts a local calendar date plus minutes-after-midnight into
// an absolute instant in the exchange zone.
func (c *Calendar) instantAt(local time.Time, minuteOfDay int) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), minuteOfDay/60, minuteOfDay%60, 0, 0, c.loc)
}

func dateKey(local time.Time) string {
	return local.Format("2006-01-02")
}

func parseWallClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid wall-clock time %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(name) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("invalid weekday %q", name)
}
