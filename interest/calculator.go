// Package interest implements savings interest calculation: posting and
// compounding periods, end of day balances and the compound amount formula
// used for fixed deposits.
package interest

import (
	"sort"
	"time"

	"go-savings-api/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Entry is a balance movement. Credits are positive, debits negative.
type Entry struct {
	Date   time.Time
	Amount decimal.Decimal
}

// Balance is an end of day balance that holds for every day of the interval.
type Balance struct {
	Interval
	Amount decimal.Decimal
}

// Period is the interest result of one posting period.
type Period struct {
	PostingInterval
	PostingDate    time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	// Interest is rounded to the currency digits. It is negative when the
	// period earned overdraft interest.
	Interest decimal.Decimal
	Balances []Balance
}

// Calculator holds the interest terms of one account.
type Calculator struct {
	Compounding model.CompoundingPeriod
	Posting     model.PostingPeriod
	Method      model.InterestCalculation
	// Rate and OverdraftRate are annual rates as fractions, 0.05 for 5%.
	Rate          decimal.Decimal
	OverdraftRate decimal.Decimal
	DaysInYear    int
	MinBalance    decimal.Decimal
	MinOverdraft  decimal.Decimal

	FinancialYearBeginningMonth int
	PostAtPeriodEnd             bool
	Digits                      int32
}

// NewCalculator builds a Calculator from account terms. rate is a
// percentage, as stored on the account.
func NewCalculator(terms model.Terms, rate decimal.Decimal, fyBeginMonth int, postAtPeriodEnd bool) Calculator {
	days := int(terms.DaysInYear)
	if days == 0 {
		days = int(model.DaysInYear365)
	}
	return Calculator{
		Compounding:                 terms.CompoundingPeriod,
		Posting:                     terms.PostingPeriod,
		Method:                      terms.Calculation,
		Rate:                        rate.Div(hundred),
		OverdraftRate:               terms.NominalAnnualInterestRateOverdraft.Div(hundred),
		DaysInYear:                  days,
		MinBalance:                  terms.MinBalanceForInterestCalculation,
		MinOverdraft:                terms.MinOverdraftForInterestCalculation,
		FinancialYearBeginningMonth: fyBeginMonth,
		PostAtPeriodEnd:             postAtPeriodEnd,
		Digits:                      terms.Digits,
	}
}

// Calculate computes interest for every posting period from start to upTo.
// Interest compounded in earlier periods keeps earning in later ones.
func (c Calculator) Calculate(entries []Entry, start, upTo time.Time, manualDates []time.Time) []Period {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	compounded := decimal.Zero
	uncompounded := decimal.Zero

	var periods []Period
	for _, pi := range PostingIntervals(start, upTo, c.Posting, c.FinancialYearBeginningMonth, manualDates) {
		balances := DailyBalances(sorted, pi.Interval)
		earned := decimal.Zero
		for _, ci := range CompoundingIntervals(pi.Interval, c.Compounding, c.FinancialYearBeginningMonth) {
			amount := c.interestFor(clip(balances, ci), compounded)
			earned = earned.Add(amount)
			if amount.IsPositive() {
				uncompounded = uncompounded.Add(amount)
			}
			if isCompoundingEnd(ci.End, c.Compounding, c.FinancialYearBeginningMonth) {
				compounded = compounded.Add(uncompounded)
				uncompounded = decimal.Zero
			}
		}

		p := Period{
			PostingInterval: pi,
			PostingDate:     c.postingDate(pi),
			Interest:        earned.RoundBank(c.Digits),
			Balances:        balances,
		}
		if len(balances) > 0 {
			p.OpeningBalance = balances[0].Amount
			p.ClosingBalance = balances[len(balances)-1].Amount
		}
		periods = append(periods, p)
	}
	return periods
}

// Total is the rounded interest of all periods.
func Total(periods []Period) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range periods {
		sum = sum.Add(p.Interest)
	}
	return sum
}

func (c Calculator) postingDate(pi PostingInterval) time.Time {
	if pi.Manual || !c.PostAtPeriodEnd {
		return pi.End.AddDate(0, 0, 1)
	}
	return pi.End
}

func (c Calculator) interestFor(balances []Balance, compounded decimal.Decimal) decimal.Decimal {
	if c.Method == model.CalculationAverageDailyBalance {
		return c.averageDailyBalanceInterest(balances, compounded)
	}
	sum := decimal.Zero
	for _, b := range balances {
		sum = sum.Add(c.onBalance(b.Amount, compounded, b.Days()))
	}
	return sum
}

func (c Calculator) averageDailyBalanceInterest(balances []Balance, compounded decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	days := 0
	for _, b := range balances {
		total = total.Add(b.Amount.Mul(decimal.NewFromInt(int64(b.Days()))))
		days += b.Days()
	}
	if days == 0 {
		return decimal.Zero
	}
	avg := total.Div(decimal.NewFromInt(int64(days)))
	return c.onBalance(avg, compounded, days)
}

// onBalance is the interest earned over days by balance plus the interest
// compounded so far. Amounts under the minimum earn nothing; overdrawn
// amounts are charged the overdraft rate.
func (c Calculator) onBalance(balance, compounded decimal.Decimal, days int) decimal.Decimal {
	d := decimal.NewFromInt(int64(days))
	diy := decimal.NewFromInt(int64(c.DaysInYear))
	base := balance.Add(compounded)
	if base.IsNegative() {
		if !c.OverdraftRate.IsPositive() || base.Abs().LessThan(c.MinOverdraft) {
			return decimal.Zero
		}
		return base.Mul(c.OverdraftRate).Mul(d).Div(diy)
	}
	if base.IsZero() || base.LessThan(c.MinBalance) {
		return decimal.Zero
	}
	return base.Mul(c.Rate).Mul(d).Div(diy)
}

// DailyBalances folds sorted entries into runs of equal end of day balance
// covering iv.
func DailyBalances(sorted []Entry, iv Interval) []Balance {
	bal := decimal.Zero
	i := 0
	for ; i < len(sorted) && sorted[i].Date.Before(iv.Start); i++ {
		bal = bal.Add(sorted[i].Amount)
	}

	var out []Balance
	cursor := iv.Start
	for ; i < len(sorted) && !sorted[i].Date.After(iv.End); i++ {
		e := sorted[i]
		if e.Date.After(cursor) {
			out = append(out, Balance{Interval: Interval{Start: cursor, End: e.Date.AddDate(0, 0, -1)}, Amount: bal})
			cursor = e.Date
		}
		bal = bal.Add(e.Amount)
	}
	out = append(out, Balance{Interval: Interval{Start: cursor, End: iv.End}, Amount: bal})
	return out
}

func clip(balances []Balance, iv Interval) []Balance {
	var out []Balance
	for _, b := range balances {
		if b.End.Before(iv.Start) || b.Start.After(iv.End) {
			continue
		}
		out = append(out, Balance{
			Interval: Interval{Start: maxDate(b.Start, iv.Start), End: minDate(b.End, iv.End)},
			Amount:   b.Amount,
		})
	}
	return out
}
