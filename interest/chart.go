package interest

import (
	"time"

	"go-savings-api/model"

	"github.com/shopspring/decimal"
)

// ApplicableRate finds the chart rate for depositing amount from start to
// end. When several slabs match, the one with the highest lower period bound
// wins, then the one with the highest lower amount bound.
func ApplicableRate(chart *model.RateChart, amount decimal.Decimal, start, end time.Time) (decimal.Decimal, bool) {
	if chart == nil {
		return decimal.Zero, false
	}
	var best *model.ChartSlab
	for i := range chart.Slabs {
		slab := &chart.Slabs[i]
		if !slabMatches(slab, amount, start, end) {
			continue
		}
		if best == nil || moreSpecific(slab, best) {
			best = slab
		}
	}
	if best == nil {
		return decimal.Zero, false
	}
	return best.AnnualInterestRate, true
}

func slabMatches(slab *model.ChartSlab, amount decimal.Decimal, start, end time.Time) bool {
	periods := PeriodsBetween(start, end, slab.PeriodFrequency)
	if periods < slab.FromPeriod {
		return false
	}
	if slab.ToPeriod != nil && periods > *slab.ToPeriod {
		return false
	}
	if amount.LessThan(slab.AmountRangeFrom) {
		return false
	}
	if slab.AmountRangeTo != nil && amount.GreaterThan(*slab.AmountRangeTo) {
		return false
	}
	return true
}

func moreSpecific(a, b *model.ChartSlab) bool {
	if a.FromPeriod != b.FromPeriod {
		return a.FromPeriod > b.FromPeriod
	}
	return a.AmountRangeFrom.GreaterThan(b.AmountRangeFrom)
}
