// Package model defines the data structures shared by the savings service.
//
// Monetary values and rates use github.com/shopspring/decimal. float64 cannot
// represent most decimal fractions exactly and the rounding drift shows up in
// interest postings that are recomputed from the first day of the account.
//
// Business dates are time.Time values at midnight UTC. Requests carry dates as
// strings in DateLayout.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a savings account or a fixed deposit account together with the
// product terms copied onto it at submittal.
type Account struct {
	ID          int64         `json:"id"`
	AccountNo   string        `json:"account_no"`
	ExternalID  string        `json:"external_id,omitempty"`
	ClientID    int64         `json:"client_id,omitempty"`
	GroupID     int64         `json:"group_id,omitempty"`
	GSIMID      int64         `json:"gsim_id,omitempty"`
	DepositType DepositType   `json:"deposit_type"`
	Status      AccountStatus `json:"status"`

	Terms       Terms        `json:"terms"`
	DepositTerm *DepositTerm `json:"deposit_term,omitempty"`

	SubmittedOn   time.Time  `json:"submitted_on"`
	ApprovedOn    *time.Time `json:"approved_on,omitempty"`
	RejectedOn    *time.Time `json:"rejected_on,omitempty"`
	WithdrawnOn   *time.Time `json:"withdrawn_on,omitempty"`
	ActivatedOn   *time.Time `json:"activated_on,omitempty"`
	ClosedOn      *time.Time `json:"closed_on,omitempty"`
	LockedInUntil *time.Time `json:"locked_in_until,omitempty"`

	Summary      Summary       `json:"summary"`
	Transactions []Transaction `json:"transactions,omitempty"`
	Charges      []Charge      `json:"charges,omitempty"`

	Version int `json:"version"`
}

// IsFixedDeposit reports whether the account is a fixed deposit.
func (a *Account) IsFixedDeposit() bool {
	return a.DepositType == DepositTypeFixedDeposit
}

// Terms are the product settings an account carries for its whole life.
type Terms struct {
	Currency string `json:"currency"`
	Digits   int32  `json:"digits"`

	NominalAnnualInterestRate decimal.Decimal     `json:"nominal_annual_interest_rate"`
	CompoundingPeriod         CompoundingPeriod   `json:"compounding_period"`
	PostingPeriod             PostingPeriod       `json:"posting_period"`
	Calculation               InterestCalculation `json:"calculation"`
	DaysInYear                DaysInYear          `json:"days_in_year"`

	MinRequiredOpeningBalance decimal.Decimal `json:"min_required_opening_balance"`
	LockinPeriod              int             `json:"lockin_period,omitempty"`
	LockinFrequency           PeriodFrequency `json:"lockin_frequency,omitempty"`
	WithdrawalFeeForTransfers bool            `json:"withdrawal_fee_for_transfers"`

	AllowOverdraft                     bool            `json:"allow_overdraft"`
	OverdraftLimit                     decimal.Decimal `json:"overdraft_limit"`
	NominalAnnualInterestRateOverdraft decimal.Decimal `json:"nominal_annual_interest_rate_overdraft"`
	MinOverdraftForInterestCalculation decimal.Decimal `json:"min_overdraft_for_interest_calculation"`

	EnforceMinRequiredBalance        bool            `json:"enforce_min_required_balance"`
	MinRequiredBalance               decimal.Decimal `json:"min_required_balance"`
	MinBalanceForInterestCalculation decimal.Decimal `json:"min_balance_for_interest_calculation"`

	WithholdTax     bool            `json:"withhold_tax"`
	WithholdTaxRate decimal.Decimal `json:"withhold_tax_rate"`

	SavingsControlGLAccountID    int64 `json:"savings_control_gl_account_id,omitempty"`
	InterestOnSavingsGLAccountID int64 `json:"interest_on_savings_gl_account_id,omitempty"`
}

// DepositTerm holds the fixed deposit specific settings.
type DepositTerm struct {
	DepositAmount          decimal.Decimal `json:"deposit_amount"`
	DepositPeriod          int             `json:"deposit_period"`
	DepositPeriodFrequency PeriodFrequency `json:"deposit_period_frequency"`

	MinDepositTerm          int             `json:"min_deposit_term,omitempty"`
	MinDepositTermFrequency PeriodFrequency `json:"min_deposit_term_frequency,omitempty"`
	MaxDepositTerm          int             `json:"max_deposit_term,omitempty"`
	MaxDepositTermFrequency PeriodFrequency `json:"max_deposit_term_frequency,omitempty"`
	InMultiplesOf           int             `json:"in_multiples_of,omitempty"`
	InMultiplesOfFrequency  PeriodFrequency `json:"in_multiples_of_frequency,omitempty"`

	PreClosurePenalApplicable bool            `json:"pre_closure_penal_applicable"`
	PreClosurePenalInterest   decimal.Decimal `json:"pre_closure_penal_interest"`
	PreClosurePenalInterestOn PenalInterestOn `json:"pre_closure_penal_interest_on,omitempty"`

	MaturityDate   *time.Time      `json:"maturity_date,omitempty"`
	MaturityAmount decimal.Decimal `json:"maturity_amount"`

	OnClosure           ClosureAction `json:"on_closure,omitempty"`
	TransferToSavingsID int64         `json:"transfer_to_savings_id,omitempty"`

	Chart *RateChart `json:"chart,omitempty"`
}

// RateChart is the interest rate chart copied onto a fixed deposit account.
type RateChart struct {
	FromDate time.Time   `json:"from_date"`
	EndDate  *time.Time  `json:"end_date,omitempty"`
	Slabs    []ChartSlab `json:"slabs"`
}

// ChartSlab is one rate band of a chart. A nil upper bound is open ended.
type ChartSlab struct {
	PeriodFrequency    PeriodFrequency  `json:"period_frequency"`
	FromPeriod         int              `json:"from_period"`
	ToPeriod           *int             `json:"to_period,omitempty"`
	AmountRangeFrom    decimal.Decimal  `json:"amount_range_from"`
	AmountRangeTo      *decimal.Decimal `json:"amount_range_to,omitempty"`
	AnnualInterestRate decimal.Decimal  `json:"annual_interest_rate"`
}

// Summary holds the derived totals of an account.
type Summary struct {
	TotalDeposits          decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals       decimal.Decimal `json:"total_withdrawals"`
	TotalWithdrawalFees    decimal.Decimal `json:"total_withdrawal_fees"`
	TotalAnnualFees        decimal.Decimal `json:"total_annual_fees"`
	TotalFeeCharge         decimal.Decimal `json:"total_fee_charge"`
	TotalPenaltyCharge     decimal.Decimal `json:"total_penalty_charge"`
	TotalInterestEarned    decimal.Decimal `json:"total_interest_earned"`
	TotalInterestPosted    decimal.Decimal `json:"total_interest_posted"`
	TotalOverdraftInterest decimal.Decimal `json:"total_overdraft_interest"`
	TotalWithholdTax       decimal.Decimal `json:"total_withhold_tax"`
	AccountBalance         decimal.Decimal `json:"account_balance"`

	LastInterestCalculationDate *time.Time `json:"last_interest_calculation_date,omitempty"`
	InterestPostedTillDate      *time.Time `json:"interest_posted_till_date,omitempty"`
}

// Transaction is a single money movement on an account.
type Transaction struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"account_id"`
	Type      TransactionType `json:"type"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`

	RunningBalance    decimal.Decimal `json:"running_balance"`
	CumulativeBalance decimal.Decimal `json:"cumulative_balance"`
	BalanceEndDate    *time.Time      `json:"balance_end_date,omitempty"`
	BalanceDays       int             `json:"balance_days"`

	Reversed bool   `json:"reversed"`
	Manual   bool   `json:"manual"`
	RefNo    string `json:"ref_no,omitempty"`
	ChargeID int64  `json:"charge_id,omitempty"`

	// LinkedRefNo is the withdrawal a withdrawal fee was charged on.
	LinkedRefNo string `json:"linked_ref_no,omitempty"`

	// Dirty marks a persisted row whose mutable columns changed.
	Dirty bool `json:"-"`
}

// Charge is a fee or penalty applied to an account.
type Charge struct {
	ID                int64             `json:"id"`
	AccountID         int64             `json:"account_id"`
	Name              string            `json:"name"`
	TimeType          ChargeTime        `json:"time_type"`
	Calculation       ChargeCalculation `json:"calculation"`
	Value             decimal.Decimal   `json:"value"`
	Amount            decimal.Decimal   `json:"amount"`
	AmountPaid        decimal.Decimal   `json:"amount_paid"`
	AmountWaived      decimal.Decimal   `json:"amount_waived"`
	AmountOutstanding decimal.Decimal   `json:"amount_outstanding"`
	DueDate           *time.Time        `json:"due_date,omitempty"`
	FeeOnMonth        int               `json:"fee_on_month,omitempty"`
	FeeOnDay          int               `json:"fee_on_day,omitempty"`
	FeeInterval       int               `json:"fee_interval,omitempty"`
	Penalty           bool              `json:"penalty"`
	Active            bool              `json:"active"`
}

// IsSettled reports whether nothing remains outstanding on the charge.
func (c *Charge) IsSettled() bool {
	return !c.AmountOutstanding.IsPositive()
}

// GSIM groups one child savings account per member of a group.
type GSIM struct {
	ID            int64           `json:"id"`
	GroupID       int64           `json:"group_id"`
	AccountNo     string          `json:"account_no"`
	Status        AccountStatus   `json:"status"`
	ParentDeposit decimal.Decimal `json:"parent_deposit"`
	ChildCount    int             `json:"child_count"`
	Children      []Account       `json:"children,omitempty"`
}

// JournalEntry links a generated savings transaction to a GL account.
type JournalEntry struct {
	ID                   int64            `json:"id"`
	GLAccountID          int64            `json:"gl_account_id"`
	AccountID            int64            `json:"account_id"`
	SavingsTransactionID int64            `json:"savings_transaction_id"`
	TransactionID        string           `json:"transaction_id"`
	Currency             string           `json:"currency"`
	Type                 JournalEntryType `json:"type"`
	Amount               decimal.Decimal  `json:"amount"`
	EntryDate            time.Time        `json:"entry_date"`

	// Reversed is set on the entries of a reversed posting and on the
	// opposite entries that cancel them.
	Reversed bool `json:"reversed"`
}

// AccountFilter narrows account listings. Zero values are ignored.
type AccountFilter struct {
	ClientID    int64
	GroupID     int64
	GSIMID      int64
	Status      AccountStatus
	DepositType DepositType
}
