package interest

import (
	"sort"
	"time"

	"go-savings-api/model"
)

// PostingInterval is one posting period of an account.
type PostingInterval struct {
	Interval
	// Complete is false for the trailing period cut short by the
	// calculation date.
	Complete bool
	// Manual is set when the period ends the day before a manual posting.
	Manual bool
}

func postingMonths(p model.PostingPeriod) int {
	switch p {
	case model.PostingQuarterly:
		return 3
	case model.PostingBiAnnual:
		return 6
	case model.PostingAnnual:
		return 12
	}
	return 1
}

func compoundingMonths(c model.CompoundingPeriod) int {
	switch c {
	case model.CompoundingDaily:
		return 0
	case model.CompoundingQuarterly:
		return 3
	case model.CompoundingBiAnnual:
		return 6
	case model.CompoundingAnnual:
		return 12
	}
	return 1
}

// PostingIntervals splits [start, upTo] into posting periods. A manual
// posting on date D closes the running period on D-1.
func PostingIntervals(start, upTo time.Time, posting model.PostingPeriod, fyBeginMonth int, manualDates []time.Time) []PostingInterval {
	manual := append([]time.Time(nil), manualDates...)
	sort.Slice(manual, func(i, j int) bool { return manual[i].Before(manual[j]) })

	months := postingMonths(posting)
	var out []PostingInterval
	for s := start; !s.After(upTo); {
		e := periodEnd(s, months, fyBeginMonth)
		isManual := false
		for _, m := range manual {
			if m.After(s) && !m.AddDate(0, 0, -1).After(e) {
				e = m.AddDate(0, 0, -1)
				isManual = true
				break
			}
		}
		complete := true
		if e.After(upTo) {
			e = upTo
			complete = false
			isManual = false
		}
		out = append(out, PostingInterval{
			Interval: Interval{Start: s, End: e},
			Complete: complete,
			Manual:   isManual,
		})
		s = e.AddDate(0, 0, 1)
	}
	return out
}

// CompoundingIntervals splits a posting interval on compounding period
// boundaries.
func CompoundingIntervals(iv Interval, compounding model.CompoundingPeriod, fyBeginMonth int) []Interval {
	months := compoundingMonths(compounding)
	var out []Interval
	for s := iv.Start; !s.After(iv.End); {
		e := s
		if months > 0 {
			e = periodEnd(s, months, fyBeginMonth)
		}
		e = minDate(e, iv.End)
		out = append(out, Interval{Start: s, End: e})
		s = e.AddDate(0, 0, 1)
	}
	return out
}

// isCompoundingEnd reports whether d is the natural last day of its
// compounding period.
func isCompoundingEnd(d time.Time, compounding model.CompoundingPeriod, fyBeginMonth int) bool {
	months := compoundingMonths(compounding)
	if months == 0 {
		return true
	}
	return periodEnd(d, months, fyBeginMonth).Equal(d)
}

// CompoundingFitsPosting reports whether interest compounds at least as often
// as it is posted.
func CompoundingFitsPosting(c model.CompoundingPeriod, p model.PostingPeriod) bool {
	return compoundingMonths(c) <= postingMonths(p)
}
