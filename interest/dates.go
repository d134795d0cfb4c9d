package interest

import (
	"math"
	"time"

	"go-savings-api/model"
)

// Interval is an inclusive range of business dates.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days is the number of days covered by the interval, both ends included.
func (i Interval) Days() int {
	return DaysBetween(i.Start, i.End) + 1
}

// Contains reports whether d falls inside the interval.
func (i Interval) Contains(d time.Time) bool {
	return !d.Before(i.Start) && !d.After(i.End)
}

// DaysBetween counts the days from a to b. It is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// AddPeriod moves d forward by n periods of the given frequency.
func AddPeriod(d time.Time, n int, f model.PeriodFrequency) time.Time {
	switch f {
	case model.FrequencyWeeks:
		return d.AddDate(0, 0, 7*n)
	case model.FrequencyMonths:
		return addMonths(d, n)
	case model.FrequencyYears:
		return addMonths(d, 12*n)
	}
	return d.AddDate(0, 0, n)
}

// addMonths clamps to the last day of the target month instead of
// overflowing into the next one.
func addMonths(d time.Time, n int) time.Time {
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location()).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, d.Location())
}

// PeriodsBetween counts the whole periods of frequency f from start to end.
func PeriodsBetween(start, end time.Time, f model.PeriodFrequency) int {
	switch f {
	case model.FrequencyWeeks:
		return DaysBetween(start, end) / 7
	case model.FrequencyMonths:
		return monthsBetween(start, end)
	case model.FrequencyYears:
		return monthsBetween(start, end) / 12
	}
	return DaysBetween(start, end)
}

func monthsBetween(start, end time.Time) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if months > 0 && addMonths(start, months).After(end) {
		months--
	}
	return months
}

// EndOfMonth returns the last day of d's month.
func EndOfMonth(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location()).AddDate(0, 1, -1)
}

// periodEnd returns the last day of the period of length months that
// contains d. Periods longer than a month are aligned on the financial year
// beginning month.
func periodEnd(d time.Time, months, fyBeginMonth int) time.Time {
	if months <= 1 {
		return EndOfMonth(d)
	}
	if fyBeginMonth < 1 || fyBeginMonth > 12 {
		fyBeginMonth = 1
	}
	offset := (int(d.Month()) - fyBeginMonth + 12) % 12
	start := time.Date(d.Year(), d.Month()-time.Month(offset%months), 1, 0, 0, 0, 0, d.Location())
	return start.AddDate(0, months, -1)
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
