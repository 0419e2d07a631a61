package billing

import (
	"errors"
	"math"
)

// Validation errors surfaced by the pure billing rules. Services map these
// onto the API error taxonomy.
var (
	ErrNegativePrice           = errors.New("price must not be negative")
	ErrInvalidInstallmentCount = errors.New("installment count must be at least 1")
	ErrInvalidPaymentDay       = errors.New("payment day must be between 1 and 31")
)

// Round2 rounds a monetary amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TotalPrice aggregates the titular price with the selected dependents'
// individual prices. The dependent list may be empty; on reactivation the
// caller passes only the re-selected subset.
func TotalPrice(titularPrice float64, dependentPrices []float64) (float64, error) {
	if titularPrice < 0 {
		return 0, ErrNegativePrice
	}
	total := titularPrice
	for _, price := range dependentPrices {
		if price < 0 {
			return 0, ErrNegativePrice
		}
		total += price
	}
	return Round2(total), nil
}
