package billing

import (
	"strings"
	"time"
)

// DurationCategory classifies a plan's length.
type DurationCategory string

// Supported duration categories.
const (
	DurationDay      DurationCategory = "DAY"
	DurationMonth    DurationCategory = "MONTH"
	DurationQuarter  DurationCategory = "QUARTER"
	DurationSemester DurationCategory = "SEMESTER"
	DurationYear     DurationCategory = "YEAR"
)

// DefaultTimezone is the civil timezone all membership dates are computed in.
const DefaultTimezone = "America/Sao_Paulo"

// ParseDurationCategory normalises raw input. Unknown values fall back to
// MONTH, matching the billing rule that an unspecified plan is monthly.
func ParseDurationCategory(raw string) DurationCategory {
	switch DurationCategory(strings.ToUpper(strings.TrimSpace(raw))) {
	case DurationDay:
		return DurationDay
	case DurationQuarter:
		return DurationQuarter
	case DurationSemester:
		return DurationSemester
	case DurationYear:
		return DurationYear
	default:
		return DurationMonth
	}
}

// Days returns the fixed day offset for the category. Months are a flat 30
// days, not "same day next month".
func (c DurationCategory) Days() int {
	switch c {
	case DurationDay:
		return 1
	case DurationQuarter:
		return 90
	case DurationSemester:
		return 180
	case DurationYear:
		return 365
	default:
		return 30
	}
}

// Period is a concrete membership date range.
type Period struct {
	StartDate time.Time
	EndDate   time.Time
}

// NewPeriod computes the date range a plan of the given category covers,
// anchored at now. The start is the beginning of now's civil day and the end
// is the end of the day the offset lands on, so a DAY plan bought at 22:00
// is still valid through the whole next day and no category suffers an
// off-by-one from UTC/local boundary crossing.
func NewPeriod(category DurationCategory, now time.Time, loc *time.Location) Period {
	start := StartOfDay(now, loc)
	end := EndOfDay(start.AddDate(0, 0, category.Days()), loc)
	return Period{StartDate: start, EndDate: end}
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay moves t to the last nanosecond of its civil day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), loc)
}

// SameCivilDay reports whether a and b fall on the same calendar day in loc.
func SameCivilDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// BeforeCivilDay reports whether a's calendar day in loc precedes b's.
func BeforeCivilDay(a, b time.Time, loc *time.Location) bool {
	return StartOfDay(a, loc).Before(StartOfDay(b, loc))
}
