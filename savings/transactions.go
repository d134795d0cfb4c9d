package savings

import (
	"fmt"
	"sort"
	"time"

	"go-savings-api/interest"
	"go-savings-api/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const txnCode = "error.msg.savingsaccount.transaction"

// Deposit credits amount to an active savings account.
func (r Rules) Deposit(acc *model.Account, date time.Time, amount decimal.Decimal) (*model.Transaction, error) {
	if acc.IsFixedDeposit() {
		return nil, invalid("error.msg.fixeddepositaccount.deposit.not.allowed", "id", "fixed deposit accounts do not accept deposits")
	}
	return r.deposit(acc, date, amount)
}

func (r Rules) deposit(acc *model.Account, date time.Time, amount decimal.Decimal) (*model.Transaction, error) {
	if err := r.validateMovement(acc, date, amount); err != nil {
		return nil, err
	}
	ref := appendTransaction(acc, model.TransactionDeposit, date, amount).RefNo
	recalculate(acc)
	if err := r.repostIfBackdated(acc, date); err != nil {
		return nil, err
	}
	return byRef(acc, ref), nil
}

// Withdraw debits amount from an active savings account and applies the
// withdrawal fees configured on it.
func (r Rules) Withdraw(acc *model.Account, date time.Time, amount decimal.Decimal) (*model.Transaction, error) {
	if acc.IsFixedDeposit() {
		return nil, invalid("error.msg.fixeddepositaccount.withdrawal.not.allowed", "id", "fixed deposit accounts do not allow withdrawals")
	}
	return r.withdraw(acc, date, amount, true, false)
}

func (r Rules) withdraw(acc *model.Account, date time.Time, amount decimal.Decimal, applyFees, transfer bool) (*model.Transaction, error) {
	if err := r.validateMovement(acc, date, amount); err != nil {
		return nil, err
	}
	if acc.LockedInUntil != nil && date.Before(*acc.LockedInUntil) {
		return nil, fmt.Errorf("withdrawal on %s: %w", date.Format(model.DateLayout), ErrAccountLocked)
	}
	return r.applyWithdrawal(acc, date, amount, applyFees && (!transfer || acc.Terms.WithdrawalFeeForTransfers))
}

// applyWithdrawal debits the account without checking its state. Callers
// validate the state they allow.
func (r Rules) applyWithdrawal(acc *model.Account, date time.Time, amount decimal.Decimal, applyFees bool) (*model.Transaction, error) {
	n := len(acc.Transactions)
	charges := append([]model.Charge(nil), acc.Charges...)
	ref := appendTransaction(acc, model.TransactionWithdrawal, date, amount).RefNo
	if applyFees {
		applyWithdrawalFees(acc, ref, date, amount)
	}
	if err := validateBalance(acc); err != nil {
		acc.Transactions = acc.Transactions[:n]
		acc.Charges = charges
		return nil, err
	}
	recalculate(acc)
	if err := r.repostIfBackdated(acc, date); err != nil {
		return nil, err
	}
	return byRef(acc, ref), nil
}

// UndoTransaction reverses a deposit or withdrawal together with the
// withdrawal fee it triggered.
func (r Rules) UndoTransaction(acc *model.Account, txnID int64) error {
	if err := requireActive(acc, txnCode); err != nil {
		return err
	}
	idx := -1
	for i := range acc.Transactions {
		if acc.Transactions[i].ID == txnID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return invalid(txnCode+".not.found", "transactionId", "transaction %d does not belong to account %d", txnID, acc.ID)
	}
	txn := &acc.Transactions[idx]
	if txn.Reversed {
		return invalid(txnCode+".already.reversed", "transactionId", "transaction %d is already reversed", txnID)
	}
	if txn.Type != model.TransactionDeposit && txn.Type != model.TransactionWithdrawal {
		return invalid(txnCode+".undo.not.allowed", "transactionId", "%s transactions cannot be undone", txn.Type)
	}

	reversed := []int{idx}
	if txn.Type == model.TransactionWithdrawal {
		for i := range acc.Transactions {
			fee := &acc.Transactions[i]
			if fee.Type == model.TransactionWithdrawalFee && !fee.Reversed && fee.LinkedRefNo == txn.RefNo {
				reversed = append(reversed, i)
			}
		}
	}
	dirty := make([]bool, len(reversed))
	for k, i := range reversed {
		dirty[k] = acc.Transactions[i].Dirty
		acc.Transactions[i].Reversed = true
		acc.Transactions[i].Dirty = true
	}
	if err := validateBalance(acc); err != nil {
		for k, i := range reversed {
			acc.Transactions[i].Reversed = false
			acc.Transactions[i].Dirty = dirty[k]
		}
		return err
	}
	for _, i := range reversed[1:] {
		fee := acc.Transactions[i]
		if c := findCharge(acc, fee.ChargeID); c != nil {
			c.AmountPaid = c.AmountPaid.Sub(fee.Amount)
		}
	}
	date := txn.Date
	recalculate(acc)
	return r.repostIfBackdated(acc, date)
}

func (r Rules) validateMovement(acc *model.Account, date time.Time, amount decimal.Decimal) error {
	if err := requireActive(acc, txnCode); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return invalid(txnCode+".amount.not.positive", "amount", "amount %s must be greater than zero", amount)
	}
	if err := r.notInFuture(txnCode, date); err != nil {
		return err
	}
	return notBefore(txnCode+".before.activation.date", "date", date, acc.ActivatedOn)
}

// repostIfBackdated recalculates posted interest when a movement lands on
// or before the last interest posting. Fixed deposits post their interest
// through maturity and premature closure only.
func (r Rules) repostIfBackdated(acc *model.Account, date time.Time) error {
	till := acc.Summary.InterestPostedTillDate
	if acc.IsFixedDeposit() || till == nil || date.After(*till) {
		return nil
	}
	return r.postInterest(acc, r.Today, postOptions{})
}

func appendTransaction(acc *model.Account, typ model.TransactionType, date time.Time, amount decimal.Decimal) *model.Transaction {
	acc.Transactions = append(acc.Transactions, model.Transaction{
		AccountID: acc.ID,
		Type:      typ,
		Date:      date,
		Amount:    amount,
		RefNo:     newRefNo(),
	})
	return &acc.Transactions[len(acc.Transactions)-1]
}

// byRef returns a copy of the transaction with the given reference number.
func byRef(acc *model.Account, refNo string) *model.Transaction {
	for i := range acc.Transactions {
		if acc.Transactions[i].RefNo == refNo {
			t := acc.Transactions[i]
			return &t
		}
	}
	return nil
}

func newRefNo() string {
	return uuid.NewString()
}

func lastTransactionDate(acc *model.Account) *time.Time {
	var last *time.Time
	for i := range acc.Transactions {
		t := acc.Transactions[i]
		if t.Reversed {
			continue
		}
		if last == nil || t.Date.After(*last) {
			last = datePtr(t.Date)
		}
	}
	return last
}

// signed is the effect of t on the account balance.
func signed(t model.Transaction) decimal.Decimal {
	switch {
	case t.Reversed:
		return decimal.Zero
	case t.Type.IsCredit():
		return t.Amount
	case t.Type.IsDebit():
		return t.Amount.Neg()
	}
	return decimal.Zero
}

// balanceEntries are the movements interest is earned on. Interest postings
// and the tax withheld on them are left out.
func balanceEntries(acc *model.Account) []interest.Entry {
	var out []interest.Entry
	for _, t := range acc.Transactions {
		if t.Reversed || t.Type.IsInterest() || t.Type == model.TransactionWithholdTax || t.Type == model.TransactionWaiveCharges {
			continue
		}
		out = append(out, interest.Entry{Date: t.Date, Amount: signed(t)})
	}
	return out
}

func sortTransactions(acc *model.Account) {
	sort.SliceStable(acc.Transactions, func(i, j int) bool {
		return acc.Transactions[i].Date.Before(acc.Transactions[j].Date)
	})
}

// validateBalance walks the account history and fails when the running
// balance drops below what the account allows.
func validateBalance(acc *model.Account) error {
	txns := append([]model.Transaction(nil), acc.Transactions...)
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].Date.Before(txns[j].Date) })
	floor := decimal.Zero
	if acc.Terms.AllowOverdraft {
		floor = acc.Terms.OverdraftLimit.Neg()
	}
	bal := decimal.Zero
	for _, t := range txns {
		bal = bal.Add(signed(t))
		if bal.LessThan(floor) {
			return fmt.Errorf("balance %s on %s is below %s: %w", bal, t.Date.Format(model.DateLayout), floor, ErrInsufficientFunds)
		}
	}
	if acc.Terms.EnforceMinRequiredBalance && !acc.Terms.AllowOverdraft && bal.LessThan(acc.Terms.MinRequiredBalance) {
		return fmt.Errorf("balance %s is below the minimum required balance %s: %w", bal, acc.Terms.MinRequiredBalance, ErrInsufficientFunds)
	}
	return nil
}

// recalculate refreshes running balances and the account summary from the
// transaction history.
func recalculate(acc *model.Account) {
	sortTransactions(acc)

	s := &acc.Summary
	s.TotalDeposits = decimal.Zero
	s.TotalWithdrawals = decimal.Zero
	s.TotalWithdrawalFees = decimal.Zero
	s.TotalAnnualFees = decimal.Zero
	s.TotalFeeCharge = decimal.Zero
	s.TotalPenaltyCharge = decimal.Zero
	s.TotalInterestPosted = decimal.Zero
	s.TotalOverdraftInterest = decimal.Zero
	s.TotalWithholdTax = decimal.Zero
	s.InterestPostedTillDate = nil

	var active []int
	running := make([]decimal.Decimal, len(acc.Transactions))
	bal := decimal.Zero
	for i := range acc.Transactions {
		t := &acc.Transactions[i]
		if t.Reversed {
			continue
		}
		active = append(active, i)
		bal = bal.Add(signed(*t))
		running[i] = bal
		switch t.Type {
		case model.TransactionDeposit:
			s.TotalDeposits = s.TotalDeposits.Add(t.Amount)
		case model.TransactionWithdrawal:
			s.TotalWithdrawals = s.TotalWithdrawals.Add(t.Amount)
		case model.TransactionWithdrawalFee:
			s.TotalWithdrawalFees = s.TotalWithdrawalFees.Add(t.Amount)
		case model.TransactionAnnualFee:
			s.TotalAnnualFees = s.TotalAnnualFees.Add(t.Amount)
		case model.TransactionPayCharge:
			if c := findCharge(acc, t.ChargeID); c != nil && c.Penalty {
				s.TotalPenaltyCharge = s.TotalPenaltyCharge.Add(t.Amount)
			} else {
				s.TotalFeeCharge = s.TotalFeeCharge.Add(t.Amount)
			}
		case model.TransactionInterestPosting:
			s.TotalInterestPosted = s.TotalInterestPosted.Add(t.Amount)
		case model.TransactionOverdraftInterest:
			s.TotalOverdraftInterest = s.TotalOverdraftInterest.Add(t.Amount)
		case model.TransactionWithholdTax:
			s.TotalWithholdTax = s.TotalWithholdTax.Add(t.Amount)
		}
		if t.Type.IsInterest() && (s.InterestPostedTillDate == nil || t.Date.After(*s.InterestPostedTillDate)) {
			s.InterestPostedTillDate = datePtr(t.Date)
		}
	}
	s.AccountBalance = bal

	for k, i := range active {
		t := &acc.Transactions[i]
		var end *time.Time
		days := 0
		if k+1 < len(active) {
			if next := acc.Transactions[active[k+1]].Date; next.After(t.Date) {
				end = datePtr(next.AddDate(0, 0, -1))
				days = interest.DaysBetween(t.Date, *end) + 1
			}
		}
		setDerived(t, running[i], end, days)
	}
}

func setDerived(t *model.Transaction, running decimal.Decimal, end *time.Time, days int) {
	cumulative := running.Mul(decimal.NewFromInt(int64(days)))
	sameEnd := (end == nil && t.BalanceEndDate == nil) ||
		(end != nil && t.BalanceEndDate != nil && end.Equal(*t.BalanceEndDate))
	if t.RunningBalance.Equal(running) && sameEnd && t.BalanceDays == days && t.CumulativeBalance.Equal(cumulative) {
		return
	}
	t.RunningBalance = running
	t.BalanceEndDate = end
	t.BalanceDays = days
	t.CumulativeBalance = cumulative
	if t.ID != 0 {
		t.Dirty = true
	}
}
