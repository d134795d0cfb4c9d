package savings

import (
	"time"

	"go-savings-api/interest"
	"go-savings-api/model"

	"github.com/shopspring/decimal"
)

const interestCode = "error.msg.savingsaccount.interest"

type postOptions struct {
	// manual adds posting dates that close a period early.
	manual []time.Time
	// closing also posts the trailing partial period, on the day after upTo.
	closing bool
	// rate replaces the nominal rate of the account.
	rate *decimal.Decimal
}

// CalculateInterest refreshes the interest earned up to upTo without
// posting it.
func (r Rules) CalculateInterest(acc *model.Account, upTo time.Time) ([]interest.Period, error) {
	if err := requireActive(acc, interestCode); err != nil {
		return nil, err
	}
	if err := r.notInFuture(interestCode+".calculation", upTo); err != nil {
		return nil, err
	}
	periods := r.periods(acc, upTo, postOptions{})
	acc.Summary.TotalInterestEarned = interest.Total(periods)
	acc.Summary.LastInterestCalculationDate = datePtr(upTo)
	return periods, nil
}

// PostInterest posts the interest of every posting period due by upTo.
// Postings that no longer match the calculation are reversed and replaced.
// Fixed deposits post no further than the day before maturity.
func (r Rules) PostInterest(acc *model.Account, upTo time.Time) error {
	if err := requireActive(acc, interestCode); err != nil {
		return err
	}
	if err := r.notInFuture(interestCode+".posting", upTo); err != nil {
		return err
	}
	if acc.IsFixedDeposit() && acc.DepositTerm.MaturityDate != nil {
		if last := acc.DepositTerm.MaturityDate.AddDate(0, 0, -1); upTo.After(last) {
			upTo = last
		}
	}
	return r.postInterest(acc, upTo, postOptions{})
}

// PostInterestAsOn posts interest earned up to the day before date, on date.
func (r Rules) PostInterestAsOn(acc *model.Account, date time.Time) error {
	if err := requireActive(acc, interestCode); err != nil {
		return err
	}
	if err := r.notInFuture(interestCode+".posting", date); err != nil {
		return err
	}
	if err := notBefore(interestCode+".posting.date.before.activation.date", "date", date, acc.ActivatedOn); err != nil {
		return err
	}
	if till := acc.Summary.InterestPostedTillDate; till != nil && !date.After(*till) {
		return invalid(interestCode+".posting.date.not.after.last.posting", "date",
			"interest is already posted till %s", till.Format(model.DateLayout))
	}
	return r.postInterest(acc, date, postOptions{manual: []time.Time{date}})
}

func (r Rules) periods(acc *model.Account, upTo time.Time, opts postOptions) []interest.Period {
	if acc.ActivatedOn == nil {
		return nil
	}
	rate := acc.Terms.NominalAnnualInterestRate
	if opts.rate != nil {
		rate = *opts.rate
	}
	manual := append([]time.Time(nil), opts.manual...)
	for _, t := range acc.Transactions {
		if t.Manual && !t.Reversed && t.Type.IsInterest() {
			manual = append(manual, t.Date)
		}
	}
	return r.calculator(acc, rate).Calculate(balanceEntries(acc), *acc.ActivatedOn, upTo, manual)
}

func (r Rules) postInterest(acc *model.Account, upTo time.Time, opts postOptions) error {
	periods := r.periods(acc, upTo, opts)
	limit := upTo
	if opts.closing {
		limit = upTo.AddDate(0, 0, 1)
	}
	for _, p := range periods {
		date := p.PostingDate
		if !p.Complete {
			if !opts.closing {
				continue
			}
			date = p.End.AddDate(0, 0, 1)
		}
		if date.After(limit) {
			continue
		}
		applyPosting(acc, date, p.Interest, p.Manual)
	}
	acc.Summary.TotalInterestEarned = interest.Total(periods)
	acc.Summary.LastInterestCalculationDate = datePtr(upTo)
	recalculate(acc)
	return nil
}

// applyPosting makes the interest posted on date equal amount. Negative
// amounts are overdraft interest.
func applyPosting(acc *model.Account, date time.Time, amount decimal.Decimal, manual bool) {
	typ := model.TransactionInterestPosting
	abs := amount
	if amount.IsNegative() {
		typ = model.TransactionOverdraftInterest
		abs = amount.Neg()
	}

	for i := range acc.Transactions {
		t := &acc.Transactions[i]
		if t.Reversed || !t.Date.Equal(date) || !t.Type.IsInterest() {
			continue
		}
		if t.Type == typ && t.Amount.Equal(abs) {
			return
		}
		reverseOn(acc, date, t.Type)
		reverseOn(acc, date, model.TransactionWithholdTax)
		break
	}
	if abs.IsZero() {
		return
	}

	txn := appendTransaction(acc, typ, date, abs)
	txn.Manual = manual
	if typ == model.TransactionInterestPosting && acc.Terms.WithholdTax && acc.Terms.WithholdTaxRate.IsPositive() {
		tax := round(acc, percentOf(abs, acc.Terms.WithholdTaxRate))
		if tax.IsPositive() {
			appendTransaction(acc, model.TransactionWithholdTax, date, tax)
		}
	}
}

func reverseOn(acc *model.Account, date time.Time, typ model.TransactionType) {
	for i := range acc.Transactions {
		t := &acc.Transactions[i]
		if !t.Reversed && t.Type == typ && t.Date.Equal(date) {
			t.Reversed = true
			t.Dirty = true
		}
	}
}
