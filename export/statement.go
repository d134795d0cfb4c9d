// Package export renders accounts as spreadsheet statements.
package export

import (
	"fmt"
	"strconv"
	"time"

	"go-savings-api/model"

	"github.com/xuri/excelize/v2"
)

const (
	AccountSheet      = "Account"
	TransactionsSheet = "Transactions"
)

var transactionHeader = []any{"Date", "Type", "Amount", "Running balance", "Balance end date", "Days", "Reversed", "Reference"}

// Statement builds a workbook with the account details and summary on one
// sheet and the transaction history on another.
func Statement(acc *model.Account) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", AccountSheet); err != nil {
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}
	if err := writeAccount(f, acc); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(TransactionsSheet); err != nil {
		return nil, fmt.Errorf("export: create sheet: %w", err)
	}
	if err := writeTransactions(f, acc.Transactions); err != nil {
		return nil, err
	}
	return f, nil
}

func writeAccount(f *excelize.File, acc *model.Account) error {
	s := acc.Summary
	rows := [][]any{
		{"Account no", acc.AccountNo},
		{"External id", acc.ExternalID},
		{"Client id", acc.ClientID},
		{"Group id", acc.GroupID},
		{"Deposit type", acc.DepositType.String()},
		{"Status", acc.Status.String()},
		{"Currency", acc.Terms.Currency},
		{"Nominal annual interest rate", acc.Terms.NominalAnnualInterestRate.String()},
		{"Submitted on", formatDate(&acc.SubmittedOn)},
		{"Activated on", formatDate(acc.ActivatedOn)},
		{"Closed on", formatDate(acc.ClosedOn)},
		{},
		{"Total deposits", s.TotalDeposits.String()},
		{"Total withdrawals", s.TotalWithdrawals.String()},
		{"Total withdrawal fees", s.TotalWithdrawalFees.String()},
		{"Total annual fees", s.TotalAnnualFees.String()},
		{"Total fee charge", s.TotalFeeCharge.String()},
		{"Total penalty charge", s.TotalPenaltyCharge.String()},
		{"Total interest posted", s.TotalInterestPosted.String()},
		{"Total overdraft interest", s.TotalOverdraftInterest.String()},
		{"Total withhold tax", s.TotalWithholdTax.String()},
		{"Account balance", s.AccountBalance.String()},
		{"Interest posted till", formatDate(s.InterestPostedTillDate)},
	}
	if acc.DepositTerm != nil {
		rows = append(rows,
			[]any{},
			[]any{"Deposit amount", acc.DepositTerm.DepositAmount.String()},
			[]any{"Maturity date", formatDate(acc.DepositTerm.MaturityDate)},
			[]any{"Maturity amount", acc.DepositTerm.MaturityAmount.String()},
		)
	}
	if err := writeRows(f, AccountSheet, rows); err != nil {
		return err
	}
	return f.SetColWidth(AccountSheet, "A", "A", 30)
}

func writeTransactions(f *excelize.File, txns []model.Transaction) error {
	rows := make([][]any, 0, len(txns)+1)
	rows = append(rows, transactionHeader)
	for _, t := range txns {
		rows = append(rows, []any{
			formatDate(&t.Date),
			t.Type.String(),
			t.Amount.String(),
			t.RunningBalance.String(),
			formatDate(t.BalanceEndDate),
			t.BalanceDays,
			strconv.FormatBool(t.Reversed),
			t.RefNo,
		})
	}
	if err := writeRows(f, TransactionsSheet, rows); err != nil {
		return err
	}
	return f.SetColWidth(TransactionsSheet, "A", "H", 18)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("export: write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(model.DateLayout)
}
