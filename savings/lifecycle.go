package savings

import (
	"strings"
	"time"

	"go-savings-api/interest"
	"go-savings-api/model"

	"github.com/shopspring/decimal"
)

const (
	accountCode  = "error.msg.savingsaccount"
	approvalCode = "error.msg.savingsaccount.approval"
	activateCode = "error.msg.savingsaccount.activate"
	rejectCode   = "error.msg.savingsaccount.reject"
	withdrawCode = "error.msg.savingsaccount.withdrawnbyapplicant"
	closeCode    = "error.msg.savingsaccount.close"
)

// NewAccount validates an application and returns the account in the
// submitted state.
func (r Rules) NewAccount(req model.SubmitAccountRequest) (*model.Account, error) {
	submitted := r.Today
	if req.SubmittedOn != "" {
		d, err := model.ParseDate(req.SubmittedOn)
		if err != nil {
			return nil, invalid(accountCode+".submitted.on.date.invalid", "submitted_on", "%v", err)
		}
		submitted = d
	}
	if err := r.notInFuture(accountCode+".submittal", submitted); err != nil {
		return nil, err
	}
	if req.ClientID <= 0 && req.GroupID <= 0 {
		return nil, invalid(accountCode+".client.or.group.required", "client_id", "an application needs a client or a group")
	}

	terms := req.Terms
	if err := validateTerms(&terms); err != nil {
		return nil, err
	}

	acc := &model.Account{
		AccountNo:   req.AccountNo,
		ExternalID:  req.ExternalID,
		ClientID:    req.ClientID,
		GroupID:     req.GroupID,
		DepositType: model.DepositTypeSavings,
		Status:      model.StatusSubmittedAndPendingApproval,
		Terms:       terms,
		SubmittedOn: submitted,
	}
	if req.DepositTerm != nil {
		term := *req.DepositTerm
		acc.DepositType = model.DepositTypeFixedDeposit
		acc.DepositTerm = &term
		if err := validateDepositTerm(acc); err != nil {
			return nil, err
		}
	}

	for _, cr := range req.Charges {
		c, err := NewCharge(cr)
		if err != nil {
			return nil, err
		}
		if _, err := r.AddCharge(acc, c); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func validateTerms(t *model.Terms) error {
	t.Currency = strings.ToUpper(strings.TrimSpace(t.Currency))
	if len(t.Currency) != 3 {
		return invalid(accountCode+".currency.invalid", "currency", "currency %q is not an ISO 4217 code", t.Currency)
	}
	if t.Digits < 0 || t.Digits > 6 {
		return invalid(accountCode+".digits.out.of.range", "digits", "digits after decimal %d must be between 0 and 6", t.Digits)
	}
	if t.NominalAnnualInterestRate.IsNegative() {
		return invalid(accountCode+".nominal.annual.interest.rate.negative", "nominal_annual_interest_rate", "interest rate cannot be negative")
	}
	if t.CompoundingPeriod == 0 {
		t.CompoundingPeriod = model.CompoundingDaily
	}
	if t.PostingPeriod == 0 {
		t.PostingPeriod = model.PostingMonthly
	}
	if t.Calculation == 0 {
		t.Calculation = model.CalculationDailyBalance
	}
	if t.DaysInYear == 0 {
		t.DaysInYear = model.DaysInYear365
	}
	switch t.CompoundingPeriod {
	case model.CompoundingDaily, model.CompoundingMonthly, model.CompoundingQuarterly, model.CompoundingBiAnnual, model.CompoundingAnnual:
	default:
		return invalid(accountCode+".compounding.period.invalid", "compounding_period", "unknown compounding period %d", t.CompoundingPeriod)
	}
	switch t.PostingPeriod {
	case model.PostingMonthly, model.PostingQuarterly, model.PostingBiAnnual, model.PostingAnnual:
	default:
		return invalid(accountCode+".posting.period.invalid", "posting_period", "unknown posting period %d", t.PostingPeriod)
	}
	if !interest.CompoundingFitsPosting(t.CompoundingPeriod, t.PostingPeriod) {
		return invalid(accountCode+".compounding.period.longer.than.posting.period", "compounding_period",
			"interest cannot compound less often than it is posted")
	}
	if t.Calculation != model.CalculationDailyBalance && t.Calculation != model.CalculationAverageDailyBalance {
		return invalid(accountCode+".calculation.type.invalid", "calculation", "unknown interest calculation %d", t.Calculation)
	}
	if t.DaysInYear != model.DaysInYear360 && t.DaysInYear != model.DaysInYear365 {
		return invalid(accountCode+".days.in.year.invalid", "days_in_year", "days in year must be 360 or 365")
	}
	for name, v := range map[string]decimal.Decimal{
		"min_required_opening_balance":           t.MinRequiredOpeningBalance,
		"overdraft_limit":                        t.OverdraftLimit,
		"nominal_annual_interest_rate_overdraft": t.NominalAnnualInterestRateOverdraft,
		"min_overdraft_for_interest_calculation": t.MinOverdraftForInterestCalculation,
		"min_required_balance":                   t.MinRequiredBalance,
		"min_balance_for_interest_calculation":   t.MinBalanceForInterestCalculation,
	} {
		if v.IsNegative() {
			return invalid(accountCode+"."+strings.ReplaceAll(name, "_", ".")+".negative", name, "%s cannot be negative", name)
		}
	}
	if t.LockinPeriod < 0 {
		return invalid(accountCode+".lockin.period.negative", "lockin_period", "lock-in period cannot be negative")
	}
	if t.WithholdTax && (t.WithholdTaxRate.IsNegative() || t.WithholdTaxRate.GreaterThan(decimal.NewFromInt(100))) {
		return invalid(accountCode+".withhold.tax.rate.out.of.range", "withhold_tax_rate", "withhold tax rate must be between 0 and 100")
	}
	return nil
}

// Approve moves a submitted application to approved.
func (r Rules) Approve(acc *model.Account, date time.Time) error {
	if err := requireStatus(acc, model.StatusSubmittedAndPendingApproval, approvalCode); err != nil {
		return err
	}
	if err := notBefore(approvalCode+".date.cannot.be.before.submittal.date", "date", date, &acc.SubmittedOn); err != nil {
		return err
	}
	if err := r.notInFuture(approvalCode, date); err != nil {
		return err
	}
	acc.Status = model.StatusApproved
	acc.ApprovedOn = datePtr(date)
	return nil
}

// UndoApproval returns an approved application to the submitted state.
func (r Rules) UndoApproval(acc *model.Account) error {
	if err := requireStatus(acc, model.StatusApproved, accountCode+".undo.approval"); err != nil {
		return err
	}
	acc.Status = model.StatusSubmittedAndPendingApproval
	acc.ApprovedOn = nil
	return nil
}

// Reject closes a submitted application as rejected.
func (r Rules) Reject(acc *model.Account, date time.Time) error {
	if err := r.endApplication(acc, date, rejectCode); err != nil {
		return err
	}
	acc.Status = model.StatusRejected
	acc.RejectedOn = datePtr(date)
	acc.ClosedOn = datePtr(date)
	return nil
}

// WithdrawApplication closes a submitted application on the applicant's
// request.
func (r Rules) WithdrawApplication(acc *model.Account, date time.Time) error {
	if err := r.endApplication(acc, date, withdrawCode); err != nil {
		return err
	}
	acc.Status = model.StatusWithdrawnByApplicant
	acc.WithdrawnOn = datePtr(date)
	acc.ClosedOn = datePtr(date)
	return nil
}

func (r Rules) endApplication(acc *model.Account, date time.Time, code string) error {
	if err := requireStatus(acc, model.StatusSubmittedAndPendingApproval, code); err != nil {
		return err
	}
	if err := notBefore(code+".date.cannot.be.before.submittal.date", "date", date, &acc.SubmittedOn); err != nil {
		return err
	}
	return r.notInFuture(code, date)
}

// Activate opens an approved account. The minimum opening balance, or the
// deposit amount of a fixed deposit, is deposited on the activation date and
// activation charges are paid.
func (r Rules) Activate(acc *model.Account, date time.Time) error {
	if err := requireStatus(acc, model.StatusApproved, activateCode); err != nil {
		return err
	}
	if err := notBefore(activateCode+".date.cannot.be.before.approval.date", "date", date, acc.ApprovedOn); err != nil {
		return err
	}
	if err := r.notInFuture(activateCode, date); err != nil {
		return err
	}

	acc.Status = model.StatusActive
	acc.ActivatedOn = datePtr(date)
	if acc.Terms.LockinPeriod > 0 {
		acc.LockedInUntil = datePtr(interest.AddPeriod(date, acc.Terms.LockinPeriod, acc.Terms.LockinFrequency))
	}
	for i := range acc.Charges {
		initDueDate(&acc.Charges[i], date)
	}

	opening := acc.Terms.MinRequiredOpeningBalance
	if acc.IsFixedDeposit() {
		opening = acc.DepositTerm.DepositAmount
	}
	if opening.IsPositive() {
		if _, err := r.deposit(acc, date, opening); err != nil {
			return err
		}
	}
	if err := r.payActivationCharges(acc, date); err != nil {
		return err
	}
	if acc.IsFixedDeposit() {
		return r.updateMaturity(acc)
	}
	recalculate(acc)
	return nil
}

// Close closes an active savings account. The balance must be zero once
// interest, closure charges and the optional final withdrawal are applied.
func (r Rules) Close(acc *model.Account, req model.CloseRequest, date time.Time) error {
	if acc.IsFixedDeposit() {
		return invalid("error.msg.fixeddepositaccount.close.use.premature.or.maturity", "id",
			"fixed deposits close through premature or maturity closure")
	}
	if err := requireActive(acc, closeCode); err != nil {
		return err
	}
	if err := r.validateClosingDate(acc, date, closeCode); err != nil {
		return err
	}

	if req.PostInterestOnClose {
		if err := r.postInterest(acc, date.AddDate(0, 0, -1), postOptions{closing: true}); err != nil {
			return err
		}
	}
	if _, err := r.payChargesOfType(acc, model.ChargeSavingsClosure, date, acc.Summary.AccountBalance); err != nil {
		return err
	}
	if req.WithdrawBalance && acc.Summary.AccountBalance.IsPositive() {
		if _, err := r.withdraw(acc, date, acc.Summary.AccountBalance, false, false); err != nil {
			return err
		}
	}
	if !acc.Summary.AccountBalance.IsZero() {
		return invalid(closeCode+".results.in.balance.not.zero", "balance",
			"account balance %s must be zero to close", acc.Summary.AccountBalance)
	}
	acc.Status = model.StatusClosed
	acc.ClosedOn = datePtr(date)
	return nil
}

func (r Rules) validateClosingDate(acc *model.Account, date time.Time, code string) error {
	if err := notBefore(code+".date.cannot.be.before.activation.date", "date", date, acc.ActivatedOn); err != nil {
		return err
	}
	if err := r.notInFuture(code, date); err != nil {
		return err
	}
	return notBefore(code+".date.cannot.be.before.last.transaction.date", "date", date, lastTransactionDate(acc))
}
