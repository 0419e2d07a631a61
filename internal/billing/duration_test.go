package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)
	return loc
}

func TestParseDurationCategory(t *testing.T) {
	assert.Equal(t, DurationDay, ParseDurationCategory("day"))
	assert.Equal(t, DurationQuarter, ParseDurationCategory(" QUARTER "))
	assert.Equal(t, DurationSemester, ParseDurationCategory("Semester"))
	assert.Equal(t, DurationYear, ParseDurationCategory("year"))
	assert.Equal(t, DurationMonth, ParseDurationCategory("month"))

	// Unknown or missing categories fall back to monthly.
	assert.Equal(t, DurationMonth, ParseDurationCategory(""))
	assert.Equal(t, DurationMonth, ParseDurationCategory("fortnight"))
}

func TestDurationDays(t *testing.T) {
	cases := map[DurationCategory]int{
		DurationDay:      1,
		DurationMonth:    30,
		DurationQuarter:  90,
		DurationSemester: 180,
		DurationYear:     365,
	}
	for category, want := range cases {
		assert.Equal(t, want, category.Days(), string(category))
	}
}

func TestNewPeriodMonthlyPlan(t *testing.T) {
	loc := saoPaulo(t)
	// Plan "Mensal" bought on 2024-01-10 runs through 2024-02-09.
	now := time.Date(2024, 1, 10, 14, 30, 0, 0, loc)

	period := NewPeriod(DurationMonth, now, loc)

	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, loc), period.StartDate)
	assert.Equal(t, 2024, period.EndDate.Year())
	assert.Equal(t, time.February, period.EndDate.Month())
	assert.Equal(t, 9, period.EndDate.Day())
	assert.Equal(t, 23, period.EndDate.Hour())
}

func TestNewPeriodDailyPlanExpiresEndOfNextDay(t *testing.T) {
	loc := saoPaulo(t)
	// Plan "Diária" bought on 2024-03-01 is valid through all of 2024-03-02.
	now := time.Date(2024, 3, 1, 22, 15, 0, 0, loc)

	period := NewPeriod(DurationDay, now, loc)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc), period.StartDate)
	assert.Equal(t, 2, period.EndDate.Day())
	assert.Equal(t, time.March, period.EndDate.Month())
	assert.Equal(t, 23, period.EndDate.Hour())
	assert.Equal(t, 59, period.EndDate.Minute())
}

func TestNewPeriodFixedOffsets(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, loc)

	for _, tc := range []struct {
		category DurationCategory
		days     int
	}{
		{DurationDay, 1},
		{DurationMonth, 30},
		{DurationQuarter, 90},
		{DurationSemester, 180},
		{DurationYear, 365},
	} {
		period := NewPeriod(tc.category, now, loc)
		gap := StartOfDay(period.EndDate, loc).Sub(period.StartDate)
		assert.InDelta(t, float64(tc.days*24), gap.Hours(), 1.5, string(tc.category))
	}
}

func TestNewPeriodIsDeterministic(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2024, 5, 20, 11, 0, 0, 0, loc)

	first := NewPeriod(DurationQuarter, now, loc)
	second := NewPeriod(DurationQuarter, now, loc)

	assert.Equal(t, first, second)
}

func TestNewPeriodNormalisesUTCInput(t *testing.T) {
	loc := saoPaulo(t)
	// 2024-01-11 01:00 UTC is still 2024-01-10 in São Paulo (UTC-3).
	now := time.Date(2024, 1, 11, 1, 0, 0, 0, time.UTC)

	period := NewPeriod(DurationMonth, now, loc)

	assert.Equal(t, 10, period.StartDate.Day())
	assert.Equal(t, time.January, period.StartDate.Month())
}

func TestCivilDayComparisons(t *testing.T) {
	loc := saoPaulo(t)
	morning := time.Date(2024, 4, 2, 6, 0, 0, 0, loc)
	night := time.Date(2024, 4, 2, 23, 30, 0, 0, loc)
	nextDay := time.Date(2024, 4, 3, 0, 5, 0, 0, loc)

	assert.True(t, SameCivilDay(morning, night, loc))
	assert.False(t, SameCivilDay(night, nextDay, loc))
	assert.True(t, BeforeCivilDay(night, nextDay, loc))
	assert.False(t, BeforeCivilDay(morning, night, loc))
}
