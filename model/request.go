package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the format of every date carried in a request body.
const DateLayout = "2006-01-02"

// ParseDate parses a request date into a business date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Date returns the business date for year, month and day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to its calendar date in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return Date(t.Year(), t.Month(), t.Day())
}

// SubmitAccountRequest defines the expected JSON body for a savings or fixed
// deposit application.
type SubmitAccountRequest struct {
	ClientID    int64           `json:"client_id"`
	GroupID     int64           `json:"group_id,omitempty"`
	AccountNo   string          `json:"account_no,omitempty"`
	ExternalID  string          `json:"external_id,omitempty"`
	SubmittedOn string          `json:"submitted_on"`
	Terms       Terms           `json:"terms"`
	DepositTerm *DepositTerm    `json:"deposit_term,omitempty"`
	Charges     []ChargeRequest `json:"charges,omitempty"`
}

// ChargeRequest defines a charge to add to an account.
type ChargeRequest struct {
	Name        string            `json:"name"`
	TimeType    ChargeTime        `json:"time_type"`
	Calculation ChargeCalculation `json:"calculation"`
	Value       decimal.Decimal   `json:"value"`
	DueDate     string            `json:"due_date,omitempty"`
	FeeOnMonth  int               `json:"fee_on_month,omitempty"`
	FeeOnDay    int               `json:"fee_on_day,omitempty"`
	FeeInterval int               `json:"fee_interval,omitempty"`
	Penalty     bool              `json:"penalty"`
}

// StateRequest carries the date of a lifecycle transition such as approval or
// activation.
type StateRequest struct {
	Date string `json:"date"`
	Note string `json:"note,omitempty"`
}

// TransactionRequest defines the expected JSON body for a deposit, a
// withdrawal or a charge payment.
type TransactionRequest struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// CloseRequest defines the expected JSON body for closing an account.
type CloseRequest struct {
	Date                string        `json:"date"`
	Action              ClosureAction `json:"action,omitempty"`
	ToSavingsAccountID  int64         `json:"to_savings_account_id,omitempty"`
	WithdrawBalance     bool          `json:"withdraw_balance,omitempty"`
	PostInterestOnClose bool          `json:"post_interest_on_close,omitempty"`
}

// InterestCalculatorRequest asks for the compound amount of a principal.
type InterestCalculatorRequest struct {
	Principal          decimal.Decimal `json:"principal"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate"`
	TenureMonths       int             `json:"tenure_months"`
	CompoundingMonths  int             `json:"compounding_months"`
}

// InterestCalculatorResponse is the result of an interest calculator request.
type InterestCalculatorResponse struct {
	MaturityAmount decimal.Decimal `json:"maturity_amount"`
	Interest       decimal.Decimal `json:"interest"`
}

// PrematureAmountResponse is the amount payable if a fixed deposit is closed
// on Date.
type PrematureAmountResponse struct {
	Date             time.Time       `json:"date"`
	Amount           decimal.Decimal `json:"amount"`
	InterestEarned   decimal.Decimal `json:"interest_earned"`
	ApplicableRate   decimal.Decimal `json:"applicable_rate"`
	PreClosureCharge decimal.Decimal `json:"pre_closure_charge"`
}

// GSIMRequest defines the expected JSON body for a group savings application.
type GSIMRequest struct {
	GroupID   int64                `json:"group_id"`
	ClientIDs []int64              `json:"client_ids"`
	Template  SubmitAccountRequest `json:"template"`
}
