package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildScheduleEvenSplit(t *testing.T) {
	loc := saoPaulo(t)
	// R$300 over 3 tranches starting 2024-01-15 with payment day 5.
	tranches, err := BuildSchedule(ScheduleInput{
		TotalAmount:       300,
		TotalInstallments: 3,
		StartDate:         time.Date(2024, 1, 15, 0, 0, 0, 0, loc),
		PaymentDay:        5,
	}, loc)
	require.NoError(t, err)
	require.Len(t, tranches, 3)

	for i, tranche := range tranches {
		assert.Equal(t, i+1, tranche.Number)
		assert.Equal(t, 100.0, tranche.Amount)
		assert.Equal(t, 5, tranche.DueDate.Day())
	}
	assert.Equal(t, time.January, tranches[0].DueDate.Month())
	assert.Equal(t, time.February, tranches[1].DueDate.Month())
	assert.Equal(t, time.March, tranches[2].DueDate.Month())
}

func TestBuildScheduleLastTrancheAbsorbsRemainder(t *testing.T) {
	loc := saoPaulo(t)
	tranches, err := BuildSchedule(ScheduleInput{
		TotalAmount:       100,
		TotalInstallments: 3,
		StartDate:         time.Date(2024, 2, 1, 0, 0, 0, 0, loc),
	}, loc)
	require.NoError(t, err)
	require.Len(t, tranches, 3)

	assert.Equal(t, 33.33, tranches[0].Amount)
	assert.Equal(t, 33.33, tranches[1].Amount)
	assert.Equal(t, 33.34, tranches[2].Amount)

	var sum float64
	for _, tranche := range tranches {
		sum += tranche.Amount
	}
	assert.InDelta(t, 100, sum, 0.001)
}

func TestBuildScheduleWithoutPaymentDayKeepsStartDay(t *testing.T) {
	loc := saoPaulo(t)
	tranches, err := BuildSchedule(ScheduleInput{
		TotalAmount:       240,
		TotalInstallments: 2,
		StartDate:         time.Date(2024, 3, 18, 0, 0, 0, 0, loc),
	}, loc)
	require.NoError(t, err)

	assert.Equal(t, 18, tranches[0].DueDate.Day())
	assert.Equal(t, time.March, tranches[0].DueDate.Month())
	assert.Equal(t, 18, tranches[1].DueDate.Day())
	assert.Equal(t, time.April, tranches[1].DueDate.Month())
}

func TestBuildScheduleClampsDayToMonthLength(t *testing.T) {
	loc := saoPaulo(t)
	tranches, err := BuildSchedule(ScheduleInput{
		TotalAmount:       300,
		TotalInstallments: 3,
		StartDate:         time.Date(2024, 1, 31, 0, 0, 0, 0, loc),
		PaymentDay:        31,
	}, loc)
	require.NoError(t, err)

	assert.Equal(t, 31, tranches[0].DueDate.Day())
	// 2024 is a leap year.
	assert.Equal(t, 29, tranches[1].DueDate.Day())
	assert.Equal(t, time.February, tranches[1].DueDate.Month())
	assert.Equal(t, 31, tranches[2].DueDate.Day())
}

func TestBuildScheduleCrossesYearBoundary(t *testing.T) {
	loc := saoPaulo(t)
	tranches, err := BuildSchedule(ScheduleInput{
		TotalAmount:       400,
		TotalInstallments: 4,
		StartDate:         time.Date(2024, 11, 10, 0, 0, 0, 0, loc),
		PaymentDay:        10,
	}, loc)
	require.NoError(t, err)

	assert.Equal(t, time.November, tranches[0].DueDate.Month())
	assert.Equal(t, time.December, tranches[1].DueDate.Month())
	assert.Equal(t, time.January, tranches[2].DueDate.Month())
	assert.Equal(t, 2025, tranches[2].DueDate.Year())
	assert.Equal(t, time.February, tranches[3].DueDate.Month())
}

func TestBuildScheduleSingleInstallment(t *testing.T) {
	loc := saoPaulo(t)
	tranches, err := BuildSchedule(ScheduleInput{
		TotalAmount:       89.90,
		TotalInstallments: 1,
		StartDate:         time.Date(2024, 5, 2, 0, 0, 0, 0, loc),
	}, loc)
	require.NoError(t, err)
	require.Len(t, tranches, 1)
	assert.Equal(t, 89.90, tranches[0].Amount)
}

func TestBuildScheduleValidation(t *testing.T) {
	loc := saoPaulo(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, loc)

	_, err := BuildSchedule(ScheduleInput{TotalAmount: 100, TotalInstallments: 0, StartDate: start}, loc)
	assert.ErrorIs(t, err, ErrInvalidInstallmentCount)

	_, err = BuildSchedule(ScheduleInput{TotalAmount: -5, TotalInstallments: 2, StartDate: start}, loc)
	assert.ErrorIs(t, err, ErrNegativePrice)

	_, err = BuildSchedule(ScheduleInput{TotalAmount: 100, TotalInstallments: 2, StartDate: start, PaymentDay: 40}, loc)
	assert.ErrorIs(t, err, ErrInvalidPaymentDay)
}
