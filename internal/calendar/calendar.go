// Package calendar is the single source of truth for trading-day math.
//
// Every T/T+1/T+30 calculation in the system goes through this package.
// No other component may do its own trading-day arithmetic.
package calendar

import (
	"fmt"
	"time"
)

// ErrOutOfRange is returned when no trading day can be found inside the
// bounded lookahead window. It signals a calendar data gap and callers must
// fail closed rather than guess a date.
type ErrOutOfRange struct {
	From     time.Time
	Lookahead int
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("no trading day found within %d days of %s", e.Lookahead, e.From.Format("2006-01-02"))
}

// lookaheadDays bounds how far NextTradingDay will scan before failing.
const lookaheadDays = 30

// TradingDates holds all dates derived from one earnings event.
// EntryDate is the first trading day strictly after TDay; ExitDate is the
// holding-period close (entry counts as day 1 of the hold).
type TradingDates struct {
	TDay               time.Time `json:"t_day"`
	EntryDate          time.Time `json:"entry_date"`
	ExitDate           time.Time `json:"exit_date"`
	TradingDaysBetween int       `json:"trading_days_between"`
}

// Calendar provides US equity market trading-day calculations.
// Holidays are computed from NYSE rules per year and cached.
type Calendar struct {
	exchange string
	holidays map[int]map[time.Time]bool
}

// New returns a calendar for the given exchange label. Only NYSE rules are
// implemented; the label is carried for logging and manifests.
func New(exchange string) *Calendar {
	if exchange == "" {
		exchange = "NYSE"
	}
	return &Calendar{
		exchange: exchange,
		holidays: make(map[int]map[time.Time]bool),
	}
}

// Exchange returns the exchange label this calendar was built for.
func (c *Calendar) Exchange() string { return c.exchange }

// Day truncates a timestamp to a UTC calendar date. All calendar methods
// operate on Day-normalized values.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsTradingDay reports whether d is an NYSE trading day (weekends and
// market holidays excluded).
func (c *Calendar) IsTradingDay(d time.Time) bool {
	d = Day(d)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidaySet(d.Year())[d]
}

// NextTradingDay returns the first trading day strictly after d.
func (c *Calendar) NextTradingDay(d time.Time) (time.Time, error) {
	d = Day(d)
	next := d.AddDate(0, 0, 1)
	for i := 0; i < lookaheadDays; i++ {
		if c.IsTradingDay(next) {
			return next, nil
		}
		next = next.AddDate(0, 0, 1)
	}
	return time.Time{}, &ErrOutOfRange{From: d, Lookahead: lookaheadDays}
}

// AddTradingDays returns the n-th trading day strictly after d. n must be
// positive. The scan is bounded so a broken holiday table fails instead of
// looping forever.
func (c *Calendar) AddTradingDays(d time.Time, n int) (time.Time, error) {
	if n <= 0 {
		return time.Time{}, fmt.Errorf("n must be positive, got %d", n)
	}
	d = Day(d)
	// Worst case roughly 2 holidays + 2 weekend days per 5 trading days;
	// 3x calendar slack plus the base window is comfortably past that.
	limit := n*3 + lookaheadDays
	cur := d
	count := 0
	for i := 0; i < limit; i++ {
		cur = cur.AddDate(0, 0, 1)
		if c.IsTradingDay(cur) {
			count++
			if count == n {
				return cur, nil
			}
		}
	}
	return time.Time{}, &ErrOutOfRange{From: d, Lookahead: limit}
}

// TradingDaysBetween returns all trading days in [start, end], sorted.
func (c *Calendar) TradingDaysBetween(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	var days []time.Time
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		if c.IsTradingDay(cur) {
			days = append(days, cur)
		}
	}
	return days
}

// CountTradingDays counts trading days after start up to and including end.
func (c *Calendar) CountTradingDays(start, end time.Time) int {
	return len(c.TradingDaysBetween(Day(start).AddDate(0, 0, 1), end))
}

// EntryDate returns the T+1 entry date for an event: the first trading day
// strictly after the event date.
func (c *Calendar) EntryDate(eventDate time.Time) (time.Time, error) {
	return c.NextTradingDay(eventDate)
}

// ExitDate returns the holding-period close for an event. Entry counts as
// day 1 of the hold, so the exit is holdingDays-1 trading days past entry.
func (c *Calendar) ExitDate(eventDate time.Time, holdingDays int) (time.Time, error) {
	if holdingDays <= 0 {
		return time.Time{}, fmt.Errorf("holdingDays must be positive, got %d", holdingDays)
	}
	entry, err := c.EntryDate(eventDate)
	if err != nil {
		return time.Time{}, err
	}
	if holdingDays == 1 {
		return entry, nil
	}
	return c.AddTradingDays(entry, holdingDays-1)
}

// TradingDates computes the full date set for an earnings event.
func (c *Calendar) TradingDates(eventDate time.Time, holdingDays int) (TradingDates, error) {
	entry, err := c.EntryDate(eventDate)
	if err != nil {
		return TradingDates{}, err
	}
	exit, err := c.ExitDate(eventDate, holdingDays)
	if err != nil {
		return TradingDates{}, err
	}
	return TradingDates{
		TDay:               Day(eventDate),
		EntryDate:          entry,
		ExitDate:           exit,
		TradingDaysBetween: c.CountTradingDays(entry, exit),
	}, nil
}

func (c *Calendar) holidaySet(year int) map[time.Time]bool {
	if set, ok := c.holidays[year]; ok {
		return set
	}
	set := nyseHolidays(year)
	c.holidays[year] = set
	return set
}

// nyseHolidays computes the NYSE full-closure holidays for a year.
func nyseHolidays(year int) map[time.Time]bool {
	set := make(map[time.Time]bool)
	add := func(d time.Time) { set[d] = true }

	// New Year's Day. When Jan 1 is a Saturday the NYSE does not observe it
	// (no Friday close in the prior year); Sunday shifts to Monday.
	newYear := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if newYear.Weekday() == time.Sunday {
		add(newYear.AddDate(0, 0, 1))
	} else if newYear.Weekday() != time.Saturday {
		add(newYear)
	}

	add(nthWeekday(year, time.January, time.Monday, 3))  // MLK Day
	add(nthWeekday(year, time.February, time.Monday, 3)) // Washington's Birthday
	add(easterSunday(year).AddDate(0, 0, -2))            // Good Friday
	add(lastWeekday(year, time.May, time.Monday))        // Memorial Day
	if year >= 2022 {
		add(observed(time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC))) // Juneteenth
	}
	add(observed(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC))) // Independence Day
	add(nthWeekday(year, time.September, time.Monday, 1))              // Labor Day
	add(nthWeekday(year, time.November, time.Thursday, 4))             // Thanksgiving
	add(observed(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC))) // Christmas

	return set
}

// observed shifts a fixed-date holiday falling on a weekend to the adjacent
// weekday (Saturday -> Friday, Sunday -> Monday).
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// nthWeekday returns the n-th given weekday of a month.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}

// lastWeekday returns the last given weekday of a month.
func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// easterSunday computes Easter for a year (Gregorian, Meeus algorithm),
// needed for Good Friday.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	cc := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := cc / 4
	k := cc % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
