// Package savings holds the account rules for savings and fixed deposit
// accounts and the Service that applies them to stored accounts.
package savings

import (
	"time"

	"go-savings-api/interest"
	"go-savings-api/model"

	"github.com/shopspring/decimal"
)

// Policy holds the tenant wide interest settings.
type Policy struct {
	PostAtPeriodEnd             bool
	FinancialYearBeginningMonth int
}

// Rules applies account commands as of the business date Today.
type Rules struct {
	Policy Policy
	Today  time.Time
}

func (r Rules) notInFuture(code string, date time.Time) error {
	if date.After(r.Today) {
		return invalid(code+".in.the.future", "date", "date %s cannot be in the future", date.Format(model.DateLayout))
	}
	return nil
}

func requireStatus(acc *model.Account, status model.AccountStatus, code string) error {
	if acc.Status != status {
		return invalid(code+".not.in."+status.String()+".state", "status",
			"account %d is %s, expected %s", acc.ID, acc.Status, status)
	}
	return nil
}

func requireActive(acc *model.Account, code string) error {
	if acc.Status != model.StatusActive {
		return invalid(code+".account.is.not.active", "status", "account %d is %s", acc.ID, acc.Status)
	}
	return nil
}

func requireFixedDeposit(acc *model.Account) error {
	if !acc.IsFixedDeposit() {
		return invalid("error.msg.fixeddepositaccount.not.a.fixed.deposit", "id", "account %d is not a fixed deposit", acc.ID)
	}
	return nil
}

func notBefore(code, param string, date time.Time, limit *time.Time) error {
	if limit != nil && date.Before(*limit) {
		return invalid(code, param, "date %s is before %s", date.Format(model.DateLayout), limit.Format(model.DateLayout))
	}
	return nil
}

func (r Rules) calculator(acc *model.Account, rate decimal.Decimal) interest.Calculator {
	return interest.NewCalculator(acc.Terms, rate, r.Policy.FinancialYearBeginningMonth, r.Policy.PostAtPeriodEnd)
}

func datePtr(t time.Time) *time.Time {
	return &t
}

func round(acc *model.Account, v decimal.Decimal) decimal.Decimal {
	return v.RoundBank(acc.Terms.Digits)
}

func percentOf(value, pct decimal.Decimal) decimal.Decimal {
	return value.Mul(pct).Div(decimal.NewFromInt(100))
}
