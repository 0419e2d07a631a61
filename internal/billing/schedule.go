package billing

import "time"

// Tranche is one generated installment before persistence.
type Tranche struct {
	Number  int
	Amount  float64
	DueDate time.Time
}

// ScheduleInput describes an installment plan to be generated.
type ScheduleInput struct {
	TotalAmount       float64
	TotalInstallments int
	StartDate         time.Time
	// PaymentDay, when non-zero, overrides the day-of-month of every due
	// date. Clamped to the target month's length.
	PaymentDay int
}

// BuildSchedule splits a total into monthly tranches. Due dates fall one
// calendar month apart starting in the start date's month. Each tranche is
// the total divided by the count rounded to cents; the last tranche absorbs
// the rounding remainder so the amounts sum to the total exactly.
func BuildSchedule(in ScheduleInput, loc *time.Location) ([]Tranche, error) {
	if in.TotalAmount < 0 {
		return nil, ErrNegativePrice
	}
	if in.TotalInstallments < 1 {
		return nil, ErrInvalidInstallmentCount
	}
	if in.PaymentDay < 0 || in.PaymentDay > 31 {
		return nil, ErrInvalidPaymentDay
	}

	base := Round2(in.TotalAmount / float64(in.TotalInstallments))
	start := in.StartDate.In(loc)

	tranches := make([]Tranche, in.TotalInstallments)
	for i := range tranches {
		amount := base
		if i == in.TotalInstallments-1 {
			amount = Round2(in.TotalAmount - base*float64(in.TotalInstallments-1))
		}
		tranches[i] = Tranche{
			Number:  i + 1,
			Amount:  amount,
			DueDate: dueDate(start, i, in.PaymentDay, loc),
		}
	}
	return tranches, nil
}

func dueDate(start time.Time, monthOffset, paymentDay int, loc *time.Location) time.Time {
	year, month, day := start.Date()
	month += time.Month(monthOffset)
	for month > time.December {
		month -= 12
		year++
	}
	if paymentDay > 0 {
		day = paymentDay
	}
	if max := daysIn(year, month); day > max {
		day = max
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
