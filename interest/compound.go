package interest

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTenure      = errors.New("tenure must be a positive number of months")
	ErrInvalidCompounding = errors.New("compounding must be a positive number of months")
	ErrNegativePrincipal  = errors.New("principal cannot be negative")
)

// CompoundAmount returns P(1 + r/n)^(n*t) for an annual percentage rate,
// compounded every compoundingMonths over tenureMonths. A tenure that is not
// a whole number of compounding periods earns simple interest on the
// remaining months.
func CompoundAmount(principal, annualRate decimal.Decimal, tenureMonths, compoundingMonths int) (decimal.Decimal, error) {
	if tenureMonths <= 0 {
		return decimal.Zero, ErrInvalidTenure
	}
	if compoundingMonths <= 0 || compoundingMonths > 12 {
		return decimal.Zero, ErrInvalidCompounding
	}
	if principal.IsNegative() {
		return decimal.Zero, ErrNegativePrincipal
	}

	r := annualRate.Div(hundred)
	periodRate := r.Mul(decimal.NewFromInt(int64(compoundingMonths))).Div(decimal.NewFromInt(12))
	periods := tenureMonths / compoundingMonths
	rest := tenureMonths % compoundingMonths

	amount := principal.Mul(decimal.NewFromInt(1).Add(periodRate).Pow(decimal.NewFromInt(int64(periods))))
	if rest > 0 {
		simple := r.Mul(decimal.NewFromInt(int64(rest))).Div(decimal.NewFromInt(12))
		amount = amount.Add(amount.Mul(simple))
	}
	return amount, nil
}

// MaturityAmount is CompoundAmount rounded to digits, with the interest part.
func MaturityAmount(principal, annualRate decimal.Decimal, tenureMonths, compoundingMonths int, digits int32) (amount, earned decimal.Decimal, err error) {
	a, err := CompoundAmount(principal, annualRate, tenureMonths, compoundingMonths)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	amount = a.RoundBank(digits)
	return amount, amount.Sub(principal), nil
}
