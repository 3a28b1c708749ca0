package timeslot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PeriodEnd is the wall-clock end of a single period.
type PeriodEnd struct {
	Hour   int
	Minute int
}

// String renders the period end as HH:MM.
func (p PeriodEnd) String() string {
	return fmt.Sprintf("%02d:%02d", p.Hour, p.Minute)
}

// Catalog maps window codes ("<day>-<period>") to concrete end timestamps.
// A Catalog is immutable once built; several catalogs may coexist.
type Catalog struct {
	days    []string
	dayIdx  map[string]int
	periods []PeriodEnd
	loc     *time.Location
}

// DefaultDays are the day tokens used when none are configured (Monday to Friday).
var DefaultDays = []string{"0", "1", "2", "3", "4"}

// DefaultPeriodEnds are the period end times used when none are configured.
var DefaultPeriodEnds = []string{"08:45", "09:35", "10:25", "11:15", "12:05", "13:35", "14:25", "15:15"}

// NewCatalog builds a catalog from ordered day tokens and ordered HH:MM period end times.
// The first day token is the week anchor itself; period indexes in codes are 1-based.
func NewCatalog(days []string, periodEnds []string, loc *time.Location) (*Catalog, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("timeslot catalog requires at least one day token")
	}
	if len(periodEnds) == 0 {
		return nil, fmt.Errorf("timeslot catalog requires at least one period")
	}
	if loc == nil {
		loc = time.UTC
	}

	c := &Catalog{
		days:    make([]string, 0, len(days)),
		dayIdx:  make(map[string]int, len(days)),
		periods: make([]PeriodEnd, 0, len(periodEnds)),
		loc:     loc,
	}
	for _, raw := range days {
		token := strings.TrimSpace(raw)
		if token == "" || strings.Contains(token, "-") {
			return nil, fmt.Errorf("invalid day token %q", raw)
		}
		if _, dup := c.dayIdx[token]; dup {
			return nil, fmt.Errorf("duplicate day token %q", token)
		}
		c.dayIdx[token] = len(c.days)
		c.days = append(c.days, token)
	}
	for _, raw := range periodEnds {
		end, err := parsePeriodEnd(raw)
		if err != nil {
			return nil, err
		}
		c.periods = append(c.periods, end)
	}
	return c, nil
}

// MustCatalog is NewCatalog that panics on error; intended for tests and package defaults.
func MustCatalog(days []string, periodEnds []string, loc *time.Location) *Catalog {
	c, err := NewCatalog(days, periodEnds, loc)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCatalog returns the five-day, eight-period catalog in UTC.
func DefaultCatalog() *Catalog {
	return MustCatalog(DefaultDays, DefaultPeriodEnds, time.UTC)
}

// Location returns the time zone period end times are interpreted in.
func (c *Catalog) Location() *time.Location {
	if c == nil || c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Days returns a copy of the configured day tokens.
func (c *Catalog) Days() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.days...)
}

// Periods returns a copy of the configured period end times.
func (c *Catalog) Periods() []PeriodEnd {
	if c == nil {
		return nil
	}
	return append([]PeriodEnd(nil), c.periods...)
}

// Codes enumerates every valid window code, day-major.
func (c *Catalog) Codes() []string {
	if c == nil {
		return nil
	}
	codes := make([]string, 0, len(c.days)*len(c.periods))
	for _, day := range c.days {
		for p := range c.periods {
			codes = append(codes, Code(day, p+1))
		}
	}
	return codes
}

// Valid reports whether code names a window in the catalog.
func (c *Catalog) Valid(code string) bool {
	_, _, ok := c.parse(code)
	return ok
}

// ResolveEndTime returns the end timestamp of the window identified by code in the
// week starting at anchor. It returns false instead of failing for a nil catalog,
// a zero anchor, malformed syntax, an unknown day token or an out-of-range period.
func (c *Catalog) ResolveEndTime(anchor time.Time, code string) (time.Time, bool) {
	if anchor.IsZero() {
		return time.Time{}, false
	}
	dayOffset, period, ok := c.parse(code)
	if !ok {
		return time.Time{}, false
	}
	y, m, d := anchor.Date()
	return time.Date(y, m, d+dayOffset, period.Hour, period.Minute, 0, 0, c.Location()), true
}

func (c *Catalog) parse(code string) (int, PeriodEnd, bool) {
	if c == nil {
		return 0, PeriodEnd{}, false
	}
	code = strings.TrimSpace(code)
	dayToken, periodToken, found := strings.Cut(code, "-")
	if !found || dayToken == "" || periodToken == "" {
		return 0, PeriodEnd{}, false
	}
	dayOffset, ok := c.dayIdx[dayToken]
	if !ok {
		return 0, PeriodEnd{}, false
	}
	index, err := strconv.Atoi(periodToken)
	if err != nil || index < 1 || index > len(c.periods) {
		return 0, PeriodEnd{}, false
	}
	return dayOffset, c.periods[index-1], true
}

// Code formats a window code from a day token and a 1-based period index.
func Code(day string, period int) string {
	return fmt.Sprintf("%s-%d", day, period)
}

// WeekAnchor returns midnight of the Monday of the week containing t, in t's location.
func WeekAnchor(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

func parsePeriodEnd(raw string) (PeriodEnd, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return PeriodEnd{}, fmt.Errorf("invalid period end %q: %w", raw, err)
	}
	return PeriodEnd{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}
