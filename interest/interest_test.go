package interest

import (
	"testing"
	"time"

	"go-savings-api/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(year int, month time.Month, day int) time.Time {
	return model.Date(year, month, day)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

func TestDates(t *testing.T) {
	t.Run("adding a month clamps to the end of the month", func(t *testing.T) {
		assert.Equal(t, d(2024, time.February, 29), AddPeriod(d(2024, time.January, 31), 1, model.FrequencyMonths))
		assert.Equal(t, d(2025, time.February, 28), AddPeriod(d(2024, time.February, 29), 1, model.FrequencyYears))
		assert.Equal(t, d(2024, time.January, 15), AddPeriod(d(2024, time.January, 1), 2, model.FrequencyWeeks))
		assert.Equal(t, d(2024, time.January, 11), AddPeriod(d(2024, time.January, 1), 10, model.FrequencyDays))
	})

	t.Run("whole periods between dates", func(t *testing.T) {
		assert.Equal(t, 0, PeriodsBetween(d(2024, time.January, 31), d(2024, time.February, 28), model.FrequencyMonths))
		assert.Equal(t, 1, PeriodsBetween(d(2024, time.January, 31), d(2024, time.February, 29), model.FrequencyMonths))
		assert.Equal(t, 2, PeriodsBetween(d(2024, time.January, 1), d(2024, time.January, 15), model.FrequencyWeeks))
		assert.Equal(t, 1, PeriodsBetween(d(2024, time.January, 1), d(2025, time.January, 1), model.FrequencyYears))
		assert.Equal(t, 366, PeriodsBetween(d(2024, time.January, 1), d(2025, time.January, 1), model.FrequencyDays))
	})

	t.Run("interval days are inclusive", func(t *testing.T) {
		iv := Interval{Start: d(2024, time.January, 1), End: d(2024, time.January, 31)}
		assert.Equal(t, 31, iv.Days())
		assert.True(t, iv.Contains(d(2024, time.January, 31)))
		assert.False(t, iv.Contains(d(2024, time.February, 1)))
	})
}

func TestPostingIntervals(t *testing.T) {
	t.Run("monthly periods clipped to the calculation date", func(t *testing.T) {
		got := PostingIntervals(d(2024, time.January, 10), d(2024, time.March, 15), model.PostingMonthly, 1, nil)

		require.Len(t, got, 3)
		assert.Equal(t, Interval{Start: d(2024, time.January, 10), End: d(2024, time.January, 31)}, got[0].Interval)
		assert.True(t, got[0].Complete)
		assert.Equal(t, Interval{Start: d(2024, time.February, 1), End: d(2024, time.February, 29)}, got[1].Interval)
		assert.Equal(t, Interval{Start: d(2024, time.March, 1), End: d(2024, time.March, 15)}, got[2].Interval)
		assert.False(t, got[2].Complete)
	})

	t.Run("quarters follow the financial year", func(t *testing.T) {
		got := PostingIntervals(d(2024, time.February, 15), d(2024, time.August, 1), model.PostingQuarterly, 4, nil)

		require.Len(t, got, 3)
		assert.Equal(t, d(2024, time.March, 31), got[0].End)
		assert.Equal(t, Interval{Start: d(2024, time.April, 1), End: d(2024, time.June, 30)}, got[1].Interval)
		assert.Equal(t, d(2024, time.August, 1), got[2].End)
		assert.False(t, got[2].Complete)
	})

	t.Run("annual period in a financial year starting in april", func(t *testing.T) {
		got := PostingIntervals(d(2024, time.February, 1), d(2024, time.March, 31), model.PostingAnnual, 4, nil)

		require.Len(t, got, 1)
		assert.Equal(t, d(2024, time.March, 31), got[0].End)
		assert.True(t, got[0].Complete)
	})

	t.Run("manual posting splits the running period", func(t *testing.T) {
		got := PostingIntervals(d(2024, time.January, 1), d(2024, time.March, 31), model.PostingMonthly, 1,
			[]time.Time{d(2024, time.February, 10)})

		require.Len(t, got, 4)
		assert.Equal(t, Interval{Start: d(2024, time.February, 1), End: d(2024, time.February, 9)}, got[1].Interval)
		assert.True(t, got[1].Manual)
		assert.Equal(t, Interval{Start: d(2024, time.February, 10), End: d(2024, time.February, 29)}, got[2].Interval)
		assert.False(t, got[2].Manual)
	})

	t.Run("no periods when the start is after the calculation date", func(t *testing.T) {
		got := PostingIntervals(d(2024, time.February, 1), d(2024, time.January, 31), model.PostingMonthly, 1, nil)
		assert.Empty(t, got)
	})
}

func TestCompoundingIntervals(t *testing.T) {
	iv := Interval{Start: d(2024, time.January, 1), End: d(2024, time.January, 3)}
	assert.Len(t, CompoundingIntervals(iv, model.CompoundingDaily, 1), 3)
	assert.Len(t, CompoundingIntervals(iv, model.CompoundingMonthly, 1), 1)

	quarter := Interval{Start: d(2024, time.February, 15), End: d(2024, time.May, 31)}
	got := CompoundingIntervals(quarter, model.CompoundingMonthly, 1)
	require.Len(t, got, 4)
	assert.Equal(t, d(2024, time.February, 29), got[0].End)
	assert.Equal(t, d(2024, time.May, 31), got[3].End)
}

func baseCalculator() Calculator {
	return Calculator{
		Compounding:                 model.CompoundingMonthly,
		Posting:                     model.PostingMonthly,
		Method:                      model.CalculationDailyBalance,
		Rate:                        dec("0.1"),
		DaysInYear:                  365,
		FinancialYearBeginningMonth: 1,
		PostAtPeriodEnd:             true,
		Digits:                      2,
	}
}

func TestCalculator(t *testing.T) {
	deposit := []Entry{{Date: d(2024, time.January, 1), Amount: dec("1000")}}

	t.Run("daily balance over a month", func(t *testing.T) {
		periods := baseCalculator().Calculate(deposit, d(2024, time.January, 1), d(2024, time.January, 31), nil)

		require.Len(t, periods, 1)
		assertDecimal(t, "8.49", periods[0].Interest)
		assert.Equal(t, d(2024, time.January, 31), periods[0].PostingDate)
		assert.True(t, periods[0].Complete)
		assertDecimal(t, "1000", periods[0].ClosingBalance)
	})

	t.Run("monthly compounding earns on last month's interest", func(t *testing.T) {
		periods := baseCalculator().Calculate(deposit, d(2024, time.January, 1), d(2024, time.February, 29), nil)

		require.Len(t, periods, 2)
		assertDecimal(t, "8.49", periods[0].Interest)
		assertDecimal(t, "8.01", periods[1].Interest)
		assertDecimal(t, "16.50", Total(periods))
	})

	t.Run("annual compounding does not compound within the year", func(t *testing.T) {
		c := baseCalculator()
		c.Compounding = model.CompoundingAnnual
		periods := c.Calculate(deposit, d(2024, time.January, 1), d(2024, time.February, 29), nil)

		require.Len(t, periods, 2)
		assertDecimal(t, "7.95", periods[1].Interest)
	})

	t.Run("withdrawal splits the balance runs", func(t *testing.T) {
		entries := append(deposit, Entry{Date: d(2024, time.January, 16), Amount: dec("-500")})
		periods := baseCalculator().Calculate(entries, d(2024, time.January, 1), d(2024, time.January, 31), nil)

		require.Len(t, periods, 1)
		require.Len(t, periods[0].Balances, 2)
		assert.Equal(t, 15, periods[0].Balances[0].Days())
		assertDecimal(t, "500", periods[0].ClosingBalance)
		assertDecimal(t, "6.30", periods[0].Interest)
	})

	t.Run("average daily balance", func(t *testing.T) {
		c := baseCalculator()
		c.Method = model.CalculationAverageDailyBalance
		entries := append(deposit, Entry{Date: d(2024, time.January, 16), Amount: dec("-500")})
		periods := c.Calculate(entries, d(2024, time.January, 1), d(2024, time.January, 31), nil)

		require.Len(t, periods, 1)
		assertDecimal(t, "6.30", periods[0].Interest)
	})

	t.Run("balances under the minimum earn nothing", func(t *testing.T) {
		c := baseCalculator()
		c.MinBalance = dec("600")
		entries := append(deposit, Entry{Date: d(2024, time.January, 16), Amount: dec("-500")})
		periods := c.Calculate(entries, d(2024, time.January, 1), d(2024, time.January, 31), nil)

		assertDecimal(t, "4.11", periods[0].Interest)
	})

	t.Run("overdrawn balance is charged overdraft interest", func(t *testing.T) {
		c := baseCalculator()
		c.OverdraftRate = dec("0.12")
		entries := []Entry{{Date: d(2024, time.January, 1), Amount: dec("-1000")}}
		periods := c.Calculate(entries, d(2024, time.January, 1), d(2024, time.January, 31), nil)

		assertDecimal(t, "-10.19", periods[0].Interest)
	})

	t.Run("posting date is the day after the period end", func(t *testing.T) {
		c := baseCalculator()
		c.PostAtPeriodEnd = false
		periods := c.Calculate(deposit, d(2024, time.January, 1), d(2024, time.February, 15), nil)

		require.Len(t, periods, 2)
		assert.Equal(t, d(2024, time.February, 1), periods[0].PostingDate)
		assert.False(t, periods[1].Complete)
	})

	t.Run("new calculator converts percentages", func(t *testing.T) {
		terms := model.Terms{
			CompoundingPeriod:                  model.CompoundingDaily,
			PostingPeriod:                      model.PostingQuarterly,
			Calculation:                        model.CalculationDailyBalance,
			NominalAnnualInterestRateOverdraft: dec("12"),
			Digits:                             2,
		}
		c := NewCalculator(terms, dec("5"), 4, false)

		assertDecimal(t, "0.05", c.Rate)
		assertDecimal(t, "0.12", c.OverdraftRate)
		assert.Equal(t, 365, c.DaysInYear)
		assert.Equal(t, 4, c.FinancialYearBeginningMonth)
	})
}

func TestApplicableRate(t *testing.T) {
	twelve := 12
	tenThousand := dec("9999.99")
	chart := &model.RateChart{
		FromDate: d(2024, time.January, 1),
		Slabs: []model.ChartSlab{
			{PeriodFrequency: model.FrequencyMonths, FromPeriod: 0, ToPeriod: &twelve, AmountRangeTo: &tenThousand, AnnualInterestRate: dec("5")},
			{PeriodFrequency: model.FrequencyMonths, FromPeriod: 0, ToPeriod: &twelve, AmountRangeFrom: dec("10000"), AnnualInterestRate: dec("6")},
			{PeriodFrequency: model.FrequencyMonths, FromPeriod: 13, AnnualInterestRate: dec("7")},
		},
	}

	tests := []struct {
		name   string
		amount string
		end    time.Time
		rate   string
		found  bool
	}{
		{"short term small amount", "5000", d(2025, time.January, 1), "5", true},
		{"short term large amount", "20000", d(2025, time.January, 1), "6", true},
		{"long term", "5000", d(2025, time.March, 1), "7", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rate, ok := ApplicableRate(chart, dec(tc.amount), d(2024, time.January, 1), tc.end)
			assert.Equal(t, tc.found, ok)
			assertDecimal(t, tc.rate, rate)
		})
	}

	t.Run("no chart", func(t *testing.T) {
		_, ok := ApplicableRate(nil, dec("100"), d(2024, time.January, 1), d(2025, time.January, 1))
		assert.False(t, ok)
	})
}

func TestCompoundAmount(t *testing.T) {
	t.Run("monthly compounding for a year", func(t *testing.T) {
		amount, earned, err := MaturityAmount(dec("1000"), dec("12"), 12, 1, 2)
		require.NoError(t, err)
		assertDecimal(t, "1126.83", amount)
		assertDecimal(t, "126.83", earned)
	})

	t.Run("quarterly compounding for a year", func(t *testing.T) {
		amount, _, err := MaturityAmount(dec("1000"), dec("12"), 12, 3, 2)
		require.NoError(t, err)
		assertDecimal(t, "1125.51", amount)
	})

	t.Run("remaining months earn simple interest", func(t *testing.T) {
		amount, err := CompoundAmount(dec("1000"), dec("10"), 18, 12)
		require.NoError(t, err)
		assertDecimal(t, "1155", amount)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := CompoundAmount(dec("1000"), dec("10"), 0, 1)
		assert.ErrorIs(t, err, ErrInvalidTenure)
		_, err = CompoundAmount(dec("1000"), dec("10"), 12, 0)
		assert.ErrorIs(t, err, ErrInvalidCompounding)
		_, err = CompoundAmount(dec("-1"), dec("10"), 12, 1)
		assert.ErrorIs(t, err, ErrNegativePrincipal)
	})
}
