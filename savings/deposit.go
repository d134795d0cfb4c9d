package savings

import (
	"time"

	"go-savings-api/interest"
	"go-savings-api/model"

	"github.com/shopspring/decimal"
)

const (
	fdCode        = "error.msg.fixeddepositaccount"
	prematureCode = "error.msg.fixeddepositaccount.premature.close"
	maturityCode  = "error.msg.fixeddepositaccount.maturity"
)

func validateDepositTerm(acc *model.Account) error {
	t := acc.DepositTerm
	if !t.DepositAmount.IsPositive() {
		return invalid(fdCode+".deposit.amount.not.positive", "deposit_amount", "deposit amount %s must be greater than zero", t.DepositAmount)
	}
	if t.DepositPeriod <= 0 {
		return invalid(fdCode+".deposit.period.not.positive", "deposit_period", "deposit period must be greater than zero")
	}
	if !validFrequency(t.DepositPeriodFrequency) {
		return invalid(fdCode+".deposit.period.frequency.invalid", "deposit_period_frequency", "unknown period frequency %d", t.DepositPeriodFrequency)
	}

	start := acc.SubmittedOn
	end := interest.AddPeriod(start, t.DepositPeriod, t.DepositPeriodFrequency)
	if t.MinDepositTerm > 0 && end.Before(interest.AddPeriod(start, t.MinDepositTerm, t.MinDepositTermFrequency)) {
		return invalid(fdCode+".deposit.period.less.than.min.deposit.term", "deposit_period",
			"deposit period %d %s is shorter than the minimum term %d %s",
			t.DepositPeriod, t.DepositPeriodFrequency, t.MinDepositTerm, t.MinDepositTermFrequency)
	}
	if t.MaxDepositTerm > 0 && end.After(interest.AddPeriod(start, t.MaxDepositTerm, t.MaxDepositTermFrequency)) {
		return invalid(fdCode+".deposit.period.greater.than.max.deposit.term", "deposit_period",
			"deposit period %d %s is longer than the maximum term %d %s",
			t.DepositPeriod, t.DepositPeriodFrequency, t.MaxDepositTerm, t.MaxDepositTermFrequency)
	}
	if t.InMultiplesOf > 0 && t.DepositPeriodFrequency == t.InMultiplesOfFrequency &&
		t.DepositPeriodFrequency == t.MinDepositTermFrequency &&
		(t.DepositPeriod-t.MinDepositTerm)%t.InMultiplesOf != 0 {
		return invalid(fdCode+".deposit.period.not.multiple.of", "deposit_period",
			"deposit period must exceed the minimum term in multiples of %d %s", t.InMultiplesOf, t.InMultiplesOfFrequency)
	}

	if t.PreClosurePenalApplicable {
		if t.PreClosurePenalInterest.IsNegative() {
			return invalid(fdCode+".pre.closure.penal.interest.negative", "pre_closure_penal_interest", "penal interest cannot be negative")
		}
		switch t.PreClosurePenalInterestOn {
		case 0:
			t.PreClosurePenalInterestOn = model.PenalOnWholeTerm
		case model.PenalOnWholeTerm, model.PenalOnTillPrematureWithdrawal:
		default:
			return invalid(fdCode+".pre.closure.penal.interest.on.invalid", "pre_closure_penal_interest_on",
				"unknown penal interest basis %d", t.PreClosurePenalInterestOn)
		}
	}

	switch t.OnClosure {
	case 0, model.ClosureWithdraw, model.ClosureReinvest:
	case model.ClosureTransferToSavings:
		if t.TransferToSavingsID <= 0 {
			return invalid(fdCode+".transfer.to.savings.account.required", "transfer_to_savings_id",
				"transfer on closure needs a savings account")
		}
	default:
		return invalid(fdCode+".on.closure.invalid", "on_closure", "unknown closure action %d", t.OnClosure)
	}

	if t.Chart != nil {
		rate, ok := interest.ApplicableRate(t.Chart, t.DepositAmount, start, end)
		if !ok {
			return invalid(fdCode+".no.applicable.chart.slab", "deposit_amount",
				"no chart slab covers %s for %d %s", t.DepositAmount, t.DepositPeriod, t.DepositPeriodFrequency)
		}
		acc.Terms.NominalAnnualInterestRate = rate
	}

	acc.Terms.AllowOverdraft = false
	acc.Terms.OverdraftLimit = decimal.Zero
	t.MaturityDate = nil
	t.MaturityAmount = decimal.Zero
	return nil
}

func validFrequency(f model.PeriodFrequency) bool {
	switch f {
	case model.FrequencyDays, model.FrequencyWeeks, model.FrequencyMonths, model.FrequencyYears:
		return true
	}
	return false
}

// chartRate is the chart rate for the deposit held from start to end. The
// nominal rate applies when the account has no chart or no slab matches.
func chartRate(acc *model.Account, start, end time.Time) decimal.Decimal {
	if rate, ok := interest.ApplicableRate(acc.DepositTerm.Chart, acc.DepositTerm.DepositAmount, start, end); ok {
		return rate
	}
	return acc.Terms.NominalAnnualInterestRate
}

// updateMaturity sets the maturity date and the projected maturity amount
// from the activation date.
func (r Rules) updateMaturity(acc *model.Account) error {
	term := acc.DepositTerm
	start := *acc.ActivatedOn
	maturity := interest.AddPeriod(start, term.DepositPeriod, term.DepositPeriodFrequency)
	term.MaturityDate = &maturity

	rate := chartRate(acc, start, maturity)
	acc.Terms.NominalAnnualInterestRate = rate
	entries := []interest.Entry{{Date: start, Amount: term.DepositAmount}}
	periods := r.calculator(acc, rate).Calculate(entries, start, maturity.AddDate(0, 0, -1), nil)
	term.MaturityAmount = term.DepositAmount.Add(interest.Total(periods))
	recalculate(acc)
	return nil
}

// prematureRate is the rate a deposit closed on date earns: the chart rate
// for the whole term, or for the time actually held, less the penal rate.
func prematureRate(acc *model.Account, date time.Time) decimal.Decimal {
	term := acc.DepositTerm
	end := date
	if term.MaturityDate != nil && term.PreClosurePenalInterestOn != model.PenalOnTillPrematureWithdrawal {
		end = *term.MaturityDate
	}
	rate := chartRate(acc, *acc.ActivatedOn, end)
	if term.PreClosurePenalApplicable {
		rate = rate.Sub(term.PreClosurePenalInterest)
	}
	if rate.IsNegative() {
		return decimal.Zero
	}
	return rate
}

func (r Rules) validatePrematureClose(acc *model.Account, date time.Time) error {
	if err := requireFixedDeposit(acc); err != nil {
		return err
	}
	if err := requireActive(acc, prematureCode); err != nil {
		return err
	}
	if err := notBefore(prematureCode+".date.cannot.be.before.activation.date", "date", date, acc.ActivatedOn); err != nil {
		return err
	}
	if acc.LockedInUntil != nil && date.Before(*acc.LockedInUntil) {
		return ErrAccountLocked
	}
	if m := acc.DepositTerm.MaturityDate; m != nil && !date.Before(*m) {
		return invalid(prematureCode+".date.not.before.maturity.date", "date",
			"date %s is not before the maturity date %s", date.Format(model.DateLayout), m.Format(model.DateLayout))
	}
	if err := r.notInFuture(prematureCode, date); err != nil {
		return err
	}
	return notBefore(prematureCode+".date.cannot.be.before.last.transaction.date", "date", date, lastTransactionDate(acc))
}

// PrematureAmount is what a fixed deposit closed on date pays out. Interest
// is reposted at the premature rate on a copy of the account, so withheld
// tax and pre-closure charges come out as PrematureClose books them.
func (r Rules) PrematureAmount(acc *model.Account, date time.Time) (*model.PrematureAmountResponse, error) {
	if err := r.validatePrematureClose(acc, date); err != nil {
		return nil, err
	}
	rate := prematureRate(acc, date)
	quote := copyAccount(acc)
	if err := r.postInterest(quote, date.AddDate(0, 0, -1), postOptions{closing: true, rate: &rate}); err != nil {
		return nil, err
	}
	gross := quote.Summary.AccountBalance
	charge, err := r.payChargesOfType(quote, model.ChargePreClosureFee, date, gross)
	if err != nil {
		return nil, err
	}
	return &model.PrematureAmountResponse{
		Date:             date,
		Amount:           quote.Summary.AccountBalance,
		InterestEarned:   quote.Summary.TotalInterestEarned,
		ApplicableRate:   rate,
		PreClosureCharge: charge,
	}, nil
}

// copyAccount copies everything the account rules mutate.
func copyAccount(acc *model.Account) *model.Account {
	c := *acc
	c.Transactions = append([]model.Transaction(nil), acc.Transactions...)
	c.Charges = append([]model.Charge(nil), acc.Charges...)
	if acc.DepositTerm != nil {
		term := *acc.DepositTerm
		c.DepositTerm = &term
	}
	return &c
}

// PrematureClose closes a fixed deposit before maturity. Interest is
// reposted at the premature rate, pre-closure charges are paid and the
// balance is withdrawn or transferred to the savings account to.
func (r Rules) PrematureClose(acc *model.Account, req model.CloseRequest, date time.Time, to *model.Account) error {
	if err := r.validatePrematureClose(acc, date); err != nil {
		return err
	}
	action := req.Action
	if action == 0 {
		action = model.ClosureWithdraw
	}
	if action == model.ClosureReinvest {
		return invalid(prematureCode+".reinvest.not.allowed", "action", "premature closure cannot reinvest")
	}

	rate := prematureRate(acc, date)
	if err := r.postInterest(acc, date.AddDate(0, 0, -1), postOptions{closing: true, rate: &rate}); err != nil {
		return err
	}
	if _, err := r.payChargesOfType(acc, model.ChargePreClosureFee, date, acc.Summary.AccountBalance); err != nil {
		return err
	}
	if err := r.payOut(acc, action, date, to); err != nil {
		return err
	}

	acc.Status = model.StatusPrematureClosed
	acc.ClosedOn = datePtr(date)
	acc.Summary.TotalInterestEarned = acc.Summary.TotalInterestPosted
	acc.DepositTerm.OnClosure = action
	return nil
}

// Mature posts the interest of the full term once the maturity date is
// reached and marks the deposit matured.
func (r Rules) Mature(acc *model.Account) error {
	if err := requireFixedDeposit(acc); err != nil {
		return err
	}
	if err := requireActive(acc, maturityCode); err != nil {
		return err
	}
	maturity := acc.DepositTerm.MaturityDate
	if maturity == nil || maturity.After(r.Today) {
		return invalid(maturityCode+".date.not.reached", "maturity_date", "account %d has not reached maturity", acc.ID)
	}
	if err := r.postInterest(acc, maturity.AddDate(0, 0, -1), postOptions{closing: true}); err != nil {
		return err
	}
	acc.Status = model.StatusMatured
	acc.Summary.TotalInterestEarned = acc.Summary.TotalInterestPosted
	acc.DepositTerm.MaturityAmount = acc.Summary.AccountBalance
	return nil
}

// CloseMatured closes a matured deposit. Reinvesting returns the new fixed
// deposit, active from date and funded with the whole balance.
func (r Rules) CloseMatured(acc *model.Account, req model.CloseRequest, date time.Time, to *model.Account) (*model.Account, error) {
	if err := requireFixedDeposit(acc); err != nil {
		return nil, err
	}
	if err := requireStatus(acc, model.StatusMatured, fdCode+".close"); err != nil {
		return nil, err
	}
	if err := notBefore(fdCode+".close.date.before.maturity.date", "date", date, acc.DepositTerm.MaturityDate); err != nil {
		return nil, err
	}
	if err := r.validateClosingDate(acc, date, fdCode+".close"); err != nil {
		return nil, err
	}

	action := req.Action
	if action == 0 {
		action = acc.DepositTerm.OnClosure
	}
	if action == 0 {
		action = model.ClosureWithdraw
	}

	var reinvested *model.Account
	if action == model.ClosureReinvest {
		next, err := r.reinvestment(acc, date)
		if err != nil {
			return nil, err
		}
		reinvested = next
		action = model.ClosureWithdraw
		if err := r.payOut(acc, action, date, nil); err != nil {
			return nil, err
		}
		action = model.ClosureReinvest
	} else if err := r.payOut(acc, action, date, to); err != nil {
		return nil, err
	}

	acc.Status = model.StatusClosed
	acc.ClosedOn = datePtr(date)
	acc.DepositTerm.OnClosure = action
	return reinvested, nil
}

// reinvestment opens a new fixed deposit with the terms of acc, funded with
// its balance on date.
func (r Rules) reinvestment(acc *model.Account, date time.Time) (*model.Account, error) {
	term := *acc.DepositTerm
	term.DepositAmount = acc.Summary.AccountBalance
	term.OnClosure = 0
	term.MaturityDate = nil
	term.MaturityAmount = decimal.Zero

	next := &model.Account{
		ClientID:    acc.ClientID,
		GroupID:     acc.GroupID,
		DepositType: model.DepositTypeFixedDeposit,
		Status:      model.StatusSubmittedAndPendingApproval,
		Terms:       acc.Terms,
		DepositTerm: &term,
		SubmittedOn: date,
	}
	if err := validateDepositTerm(next); err != nil {
		return nil, err
	}
	if err := r.Approve(next, date); err != nil {
		return nil, err
	}
	if err := r.Activate(next, date); err != nil {
		return nil, err
	}
	return next, nil
}

// payOut empties acc on date by withdrawal or by transfer to a savings
// account.
func (r Rules) payOut(acc *model.Account, action model.ClosureAction, date time.Time, to *model.Account) error {
	amount := acc.Summary.AccountBalance
	switch action {
	case model.ClosureWithdraw:
		if amount.IsPositive() {
			_, err := r.applyWithdrawal(acc, date, amount, false)
			return err
		}
		return nil
	case model.ClosureTransferToSavings:
		return r.transfer(acc, to, date, amount)
	}
	return invalid(fdCode+".close.action.invalid", "action", "unknown closure action %d", action)
}

// transfer moves amount from a closing deposit into an active savings
// account in the same currency.
func (r Rules) transfer(from, to *model.Account, date time.Time, amount decimal.Decimal) error {
	if to == nil {
		return invalid(fdCode+".transfer.to.savings.account.required", "to_savings_account_id", "transfer needs a savings account")
	}
	if to.IsFixedDeposit() || to.ID == from.ID {
		return invalid(fdCode+".transfer.to.savings.account.invalid", "to_savings_account_id",
			"account %d cannot receive the transfer", to.ID)
	}
	if to.Terms.Currency != from.Terms.Currency {
		return invalid(fdCode+".transfer.currency.mismatch", "to_savings_account_id",
			"account %d holds %s, not %s", to.ID, to.Terms.Currency, from.Terms.Currency)
	}
	if err := requireActive(to, fdCode+".transfer"); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return nil
	}
	if _, err := r.applyWithdrawal(from, date, amount, false); err != nil {
		return err
	}
	_, err := r.deposit(to, date, amount)
	return err
}
