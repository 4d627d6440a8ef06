// Package calendar provides business-day calendars and date adjustment
// conventions for payment and fixing schedules.
package calendar

import "time"

// CalendarID identifies a holiday calendar.
type CalendarID string

const (
	TARGET CalendarID = "TARGET"
	USD    CalendarID = "USD"
	GBP    CalendarID = "GBP"
	JPN    CalendarID = "JPN"
)

// extraHolidays holds registered holiday dates keyed by calendar.
// TARGET holidays are rule based and need no registration; US, UK and
// Japanese calendars start weekend-only and accept holiday lists from
// market data via RegisterHolidays.
var extraHolidays = map[CalendarID]map[time.Time]bool{
	USD: {},
	GBP: {},
	JPN: {},
}

// RegisterHolidays adds holiday dates to a calendar. Dates are truncated
// to midnight UTC before storage.
func RegisterHolidays(id CalendarID, dates []time.Time) {
	m, ok := extraHolidays[id]
	if !ok {
		m = map[time.Time]bool{}
		extraHolidays[id] = m
	}
	for _, d := range dates {
		m[time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)] = true
	}
}

// easterSunday returns Easter Sunday for the given year in the Gregorian
// calendar (Anonymous Gregorian algorithm).
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// isTargetHoliday reports whether t is a TARGET closing day other than a
// weekend. The TARGET calendar is fully rule based: New Year's Day,
// Good Friday, Easter Monday, Labour Day, Christmas and Boxing Day.
func isTargetHoliday(t time.Time) bool {
	if t.Month() == time.January && t.Day() == 1 {
		return true
	}
	if t.Month() == time.May && t.Day() == 1 && t.Year() >= 2000 {
		return true
	}
	if t.Month() == time.December && (t.Day() == 25 || t.Day() == 26) {
		return true
	}
	easter := easterSunday(t.Year())
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if day.Equal(easter.AddDate(0, 0, -2)) || day.Equal(easter.AddDate(0, 0, 1)) {
		return true
	}
	return false
}

// IsBusinessDay reports whether t is a business day on the given calendar.
func IsBusinessDay(id CalendarID, t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if id == TARGET {
		return !isTargetHoliday(t)
	}
	if m, ok := extraHolidays[id]; ok {
		key := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if m[key] {
			return false
		}
	}
	return true
}

// AdjustFollowing rolls t forward to the next business day.
func AdjustFollowing(id CalendarID, t time.Time) time.Time {
	for !IsBusinessDay(id, t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// Adjust rolls t to a business day using the modified following
// convention: forward, unless that crosses a month end, in which case
// backward.
func Adjust(id CalendarID, t time.Time) time.Time {
	adj := AdjustFollowing(id, t)
	if adj.Month() != t.Month() {
		adj = t
		for !IsBusinessDay(id, adj) {
			adj = adj.AddDate(0, 0, -1)
		}
	}
	return adj
}

// AddBusinessDays shifts t by n business days. Negative n moves backward.
func AddBusinessDays(id CalendarID, t time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	for n > 0 {
		t = t.AddDate(0, 0, step)
		if IsBusinessDay(id, t) {
			n--
		}
	}
	return t
}

// LastBusinessDayOfMonth returns the last business day of the month
// containing t.
func LastBusinessDayOfMonth(id CalendarID, t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
	for !IsBusinessDay(id, d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
